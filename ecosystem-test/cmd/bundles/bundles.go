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

// Package bundles implements the plugin bundle commands.
package bundles

import (
	"fmt"

	"github.com/gosuri/uitable"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cloudify-cosmo/ecosystem-test/pkg/bundle"
	"github.com/cloudify-cosmo/ecosystem-test/pkg/catalog"
	"github.com/cloudify-cosmo/ecosystem-test/pkg/flagutil"
	"github.com/cloudify-cosmo/ecosystem-test/pkg/retryhttp"
)

// MakeCommands returns the bundle commands.
func MakeCommands() []*cobra.Command {
	return []*cobra.Command{makeCreateBundle(), makeListBundle()}
}

type createOptions struct {
	catalog     string
	platform    string
	names       []string
	dest        string
	concurrency int64
	s3Key       string
	public      bool
	s3          flagutil.S3Options
}

func makeCreateBundle() *cobra.Command {
	o := &createOptions{}
	cmd := &cobra.Command{
		Use:   "create-bundle",
		Short: "Package the wagons and manifests of catalog plugins into one tar.gz bundle.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.s3Key != "" {
				if err := o.s3.Validate(); err != nil {
					return err
				}
			}
			ctx := cmd.Context()
			client := retryhttp.NewClient(retryhttp.DefaultOptions)
			c, err := catalog.Fetch(ctx, client, o.catalog)
			if err != nil {
				return err
			}
			sources, err := bundle.Select(c, o.names, o.platform)
			if err != nil {
				return err
			}
			b := &bundle.Builder{Client: client, Concurrency: o.concurrency}
			metadata, err := b.Create(ctx, o.dest, sources)
			if err != nil {
				return err
			}
			logrus.WithFields(logrus.Fields{"bundle": o.dest, "wagons": len(metadata)}).Info("Created bundle.")
			if o.s3Key == "" {
				return nil
			}
			s3, err := o.s3.StorageClient(ctx)
			if err != nil {
				return err
			}
			defer s3.Close()
			if err := s3.UploadFile(ctx, o.s3Key, o.dest, o.public); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s3.URL(o.s3Key))
			return nil
		},
	}
	cmd.Flags().StringVar(&o.catalog, "plugins-json", catalog.FileName, "Catalog path or URL.")
	cmd.Flags().StringVar(&o.platform, "platform", bundle.DefaultPlatform, "Wagon platform, such as manylinux or \"redhat maipo\".")
	cmd.Flags().StringSliceVar(&o.names, "plugin", nil, "Plugin to include. Defaults to every catalog plugin.")
	cmd.Flags().StringVar(&o.dest, "dest", "cloudify-plugins-bundle.tgz", "Bundle file to write.")
	cmd.Flags().Int64Var(&o.concurrency, "concurrency", 4, "Parallel downloads.")
	cmd.Flags().StringVar(&o.s3Key, "s3-key", "", "Upload the bundle to this key of --bucket.")
	cmd.Flags().BoolVar(&o.public, "public", false, "Make the uploaded bundle publicly readable.")
	o.s3.AddFlags(cmd.Flags())
	return cmd
}

func makeListBundle() *cobra.Command {
	return &cobra.Command{
		Use:   "list-bundle BUNDLE",
		Short: "List the wagons and manifests of a bundle.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			metadata, err := bundle.ReadMetadata(args[0])
			if err != nil {
				return err
			}
			table := uitable.New()
			table.MaxColWidth = 100
			table.AddRow("WAGON", "MANIFEST")
			for _, w := range metadata.Wagons() {
				table.AddRow(w, metadata[w])
			}
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}
}
