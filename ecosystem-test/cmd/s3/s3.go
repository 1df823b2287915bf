/*
Copyright 2026 The Kubernetes Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package s3 implements the S3 transfer commands.
package s3

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cloudify-cosmo/ecosystem-test/pkg/flagutil"
	"github.com/cloudify-cosmo/ecosystem-test/pkg/storage"
)

// MakeCommands returns the S3 commands.
func MakeCommands() []*cobra.Command {
	return []*cobra.Command{makeUpload(), makeDownload()}
}

// resolve returns the key named by arg, which is either a key of the
// configured bucket or an s3://bucket/key URL that selects the bucket too.
func resolve(o *flagutil.S3Options, arg string) (string, error) {
	if !strings.HasPrefix(arg, "s3://") {
		return strings.TrimPrefix(arg, "/"), nil
	}
	bucket, key, err := storage.ParsePath(arg)
	if err != nil {
		return "", err
	}
	o.Bucket = bucket
	return key, nil
}

func makeUpload() *cobra.Command {
	var (
		o      flagutil.S3Options
		public bool
	)
	cmd := &cobra.Command{
		Use:   "upload-to-s3 FILE KEY",
		Short: "Upload a file to S3. KEY may be an s3://bucket/key URL.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := resolve(&o, args[1])
			if err != nil {
				return err
			}
			if err := o.Validate(); err != nil {
				return err
			}
			ctx := cmd.Context()
			client, err := o.StorageClient(ctx)
			if err != nil {
				return err
			}
			defer client.Close()
			if err := client.UploadFile(ctx, key, args[0], public); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), client.URL(key))
			return nil
		},
	}
	o.AddFlags(cmd.Flags())
	cmd.Flags().BoolVar(&public, "public", false, "Make the object publicly readable.")
	return cmd
}

func makeDownload() *cobra.Command {
	var o flagutil.S3Options
	cmd := &cobra.Command{
		Use:   "download-from-s3 KEY FILE",
		Short: "Download an object from S3. KEY may be an s3://bucket/key URL.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := resolve(&o, args[0])
			if err != nil {
				return err
			}
			if err := o.Validate(); err != nil {
				return err
			}
			ctx := cmd.Context()
			client, err := o.StorageClient(ctx)
			if err != nil {
				return err
			}
			defer client.Close()
			if err := client.DownloadFile(ctx, key, args[1]); err != nil {
				return err
			}
			logrus.WithFields(logrus.Fields{"key": key, "file": args[1]}).Info("Downloaded object.")
			return nil
		},
	}
	o.AddFlags(cmd.Flags())
	return cmd
}
