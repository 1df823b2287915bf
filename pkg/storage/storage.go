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

// Package storage wraps an S3 bucket for the artifacts produced by plugin
// release pipelines.
package storage

import (
	"context"
	"encoding/base64"
	"io"
	"io/ioutil"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/blob/s3blob"
	"gocloud.dev/gcerrors"
)

// PublicRead is the canned ACL applied to public uploads.
const PublicRead = "public-read"

// Credentials configure access to S3. Keys are stored the way CI exports them:
// base64 encoded.
type Credentials struct {
	Region          string
	Endpoint        string
	AccessKeyBase64 string
	SecretKeyBase64 string
}

func decode(name, value string) (string, error) {
	b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(value))
	if err != nil {
		return "", errors.Wrapf(err, "decoding %s", name)
	}
	return strings.TrimSpace(string(b)), nil
}

// Session returns an aws session for the credentials. With no keys set the
// default credential chain is used.
func (c Credentials) Session() (*session.Session, error) {
	cfg := &aws.Config{}
	if c.AccessKeyBase64 != "" && c.SecretKeyBase64 != "" {
		accessKey, err := decode("access key", c.AccessKeyBase64)
		if err != nil {
			return nil, err
		}
		secretKey, err := decode("secret key", c.SecretKeyBase64)
		if err != nil {
			return nil, err
		}
		staticCredentials := credentials.StaticProvider{
			Value: credentials.Value{
				AccessKeyID:     accessKey,
				SecretAccessKey: secretKey,
			},
		}
		cfg.Credentials = credentials.NewChainCredentials([]credentials.Provider{&staticCredentials})
	}
	if c.Endpoint != "" {
		cfg.Endpoint = aws.String(c.Endpoint)
		cfg.S3ForcePathStyle = aws.Bool(true)
	}
	if c.Region != "" {
		cfg.Region = aws.String(c.Region)
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "creating S3 session")
	}
	return sess, nil
}

// ParsePath splits s3://bucket/key into its bucket and key.
func ParsePath(path string) (bucket, key string, err error) {
	parsed, err := url.Parse(path)
	if err != nil {
		return "", "", errors.Wrapf(err, "unable to parse path %q", path)
	}
	if parsed.Scheme != "s3" {
		return "", "", errors.Errorf("path %q is not an s3:// path", path)
	}
	if parsed.Host == "" {
		return "", "", errors.Errorf("could not find bucket in path %q", path)
	}
	return parsed.Host, strings.TrimPrefix(parsed.Path, "/"), nil
}

// Client reads and writes objects of a single bucket.
type Client struct {
	bucket *blob.Bucket
	name   string
	local  bool
}

// Open opens the named S3 bucket.
func Open(ctx context.Context, creds Credentials, bucket string) (*Client, error) {
	sess, err := creds.Session()
	if err != nil {
		return nil, err
	}
	bkt, err := s3blob.OpenBucket(ctx, sess, bucket, nil)
	if err != nil {
		return nil, errors.Wrap(err, "opening S3 bucket")
	}
	return &Client{bucket: bkt, name: bucket}, nil
}

// OpenLocal opens a directory as a bucket. Keys map to paths below dir.
func OpenLocal(dir string) (*Client, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	bkt, err := fileblob.OpenBucket(dir, nil)
	if err != nil {
		return nil, errors.Wrap(err, "opening local bucket")
	}
	return &Client{bucket: bkt, name: dir, local: true}, nil
}

// NewClient wraps an already opened bucket.
func NewClient(bucket *blob.Bucket, name string) *Client {
	return &Client{bucket: bucket, name: name}
}

// Close releases the bucket.
func (c *Client) Close() error {
	return c.bucket.Close()
}

// URL returns the public https address of key, or its file:// path for a
// local bucket.
func (c *Client) URL(key string) string {
	if c.local {
		return "file://" + filepath.Join(c.name, filepath.FromSlash(strings.TrimPrefix(key, "/")))
	}
	return "https://" + c.name + ".s3.amazonaws.com/" + strings.TrimPrefix(key, "/")
}

func writerOptions(key string, public bool) *blob.WriterOptions {
	opts := &blob.WriterOptions{}
	switch filepath.Ext(key) {
	case ".json":
		opts.ContentType = "application/json"
	case ".yaml", ".yml", ".txt":
		opts.ContentType = "text/plain"
	default:
		opts.ContentType = "application/octet-stream"
	}
	if public {
		opts.BeforeWrite = func(as func(interface{}) bool) error {
			var input *s3manager.UploadInput
			if as(&input) {
				input.ACL = aws.String(PublicRead)
			}
			return nil
		}
	}
	return opts
}

// Upload writes data to key.
func (c *Client) Upload(ctx context.Context, key string, data []byte, public bool) error {
	logrus.WithFields(logrus.Fields{"bucket": c.name, "key": key, "public": public}).Info("Uploading object.")
	if err := c.bucket.WriteAll(ctx, key, data, writerOptions(key, public)); err != nil {
		return errors.Wrapf(err, "writing s3://%s/%s", c.name, key)
	}
	return nil
}

// UploadFile streams the local file at path to key.
func (c *Client) UploadFile(ctx context.Context, key, path string, public bool) (err error) {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	logrus.WithFields(logrus.Fields{"bucket": c.name, "key": key, "file": path, "public": public}).Info("Uploading file.")
	// Closing a writer commits it, so a failed copy cancels wctx first.
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	w, err := c.bucket.NewWriter(wctx, key, writerOptions(key, public))
	if err != nil {
		return errors.Wrapf(err, "opening s3://%s/%s", c.name, key)
	}
	if _, err := io.Copy(w, f); err != nil {
		cancel()
		w.Close()
		return errors.Wrapf(err, "uploading %s", path)
	}
	if err := w.Close(); err != nil {
		return errors.Wrapf(err, "closing s3://%s/%s", c.name, key)
	}
	return nil
}

// Read returns the contents of key.
func (c *Client) Read(ctx context.Context, key string) ([]byte, error) {
	b, err := c.bucket.ReadAll(ctx, key)
	if err != nil {
		return nil, errors.Wrapf(err, "reading s3://%s/%s", c.name, key)
	}
	return b, nil
}

// DownloadFile writes key to the local path, creating parent directories.
func (c *Client) DownloadFile(ctx context.Context, key, path string) error {
	r, err := c.bucket.NewReader(ctx, key, nil)
	if err != nil {
		return errors.Wrapf(err, "reading s3://%s/%s", c.name, key)
	}
	defer r.Close()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp, err := ioutil.TempFile(filepath.Dir(path), ".download-")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrapf(err, "downloading s3://%s/%s", c.name, key)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	logrus.WithFields(logrus.Fields{"bucket": c.name, "key": key, "file": path}).Info("Downloaded object.")
	return os.Rename(tmp.Name(), path)
}

// Exists reports whether key is present.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	return c.bucket.Exists(ctx, key)
}

// Delete removes key. A missing key is not an error.
func (c *Client) Delete(ctx context.Context, key string) error {
	err := c.bucket.Delete(ctx, key)
	if gcerrors.Code(err) == gcerrors.NotFound {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "deleting s3://%s/%s", c.name, key)
	}
	return nil
}

// List returns the keys under prefix in lexical order.
func (c *Client) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := c.bucket.List(&blob.ListOptions{Prefix: prefix})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return keys, errors.Wrapf(err, "listing s3://%s/%s", c.name, prefix)
		}
		if !obj.IsDir {
			keys = append(keys, obj.Key)
		}
	}
	return keys, nil
}
