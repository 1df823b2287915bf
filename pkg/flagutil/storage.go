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

package flagutil

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/spf13/pflag"

	"github.com/cloudify-cosmo/ecosystem-test/pkg/logrusutil"
	"github.com/cloudify-cosmo/ecosystem-test/pkg/storage"
)

// S3Options select a bucket and the credentials to reach it.
type S3Options struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// AddFlags injects S3 options into the given FlagSet.
func (o *S3Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Bucket, "bucket", "", "S3 bucket name, or file:///path for a local mirror.")
	fs.StringVar(&o.Region, "region", "", "S3 region. Defaults to $AWS_DEFAULT_REGION.")
	fs.StringVar(&o.Endpoint, "s3-endpoint", "", "Custom S3 endpoint.")
	fs.StringVar(&o.AccessKey, "aws-access-key-id", "", "Base64 encoded access key. Defaults to $aws_access_key_id.")
	fs.StringVar(&o.SecretKey, "aws-secret-access-key", "", "Base64 encoded secret key. Defaults to $aws_secret_access_key.")
}

// Validate fills defaults from the environment and checks the options.
func (o *S3Options) Validate() error {
	MigrateOptions([]MigratedOption{
		{Env: "AWS_DEFAULT_REGION", Option: &o.Region, Name: "--region"},
		{Env: "aws_access_key_id", Option: &o.AccessKey, Name: "--aws-access-key-id"},
		{Env: "aws_secret_access_key", Option: &o.SecretKey, Name: "--aws-secret-access-key"},
	})
	if o.Bucket == "" {
		return errors.New("--bucket is required")
	}
	if (o.AccessKey == "") != (o.SecretKey == "") {
		return errors.New("--aws-access-key-id and --aws-secret-access-key must be set together")
	}
	return nil
}

// Credentials returns the storage credentials for the options.
func (o *S3Options) Credentials() storage.Credentials {
	return storage.Credentials{Region: o.Region, Endpoint: o.Endpoint, AccessKeyBase64: o.AccessKey, SecretKeyBase64: o.SecretKey}
}

// StorageClient opens the bucket.
func (o *S3Options) StorageClient(ctx context.Context) (*storage.Client, error) {
	if dir := strings.TrimPrefix(o.Bucket, "file://"); dir != o.Bucket {
		return storage.OpenLocal(dir)
	}
	for _, encoded := range []string{o.AccessKey, o.SecretKey} {
		logrusutil.RegisterSecrets(encoded)
		if decoded, err := base64.StdEncoding.DecodeString(encoded); err == nil {
			logrusutil.RegisterSecrets(string(decoded))
		}
	}
	return storage.Open(ctx, o.Credentials(), o.Bucket)
}
