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

package storage

import (
	"context"
	"encoding/base64"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gocloud.dev/blob/memblob"
)

func TestParsePath(t *testing.T) {
	testCases := []struct {
		name           string
		path           string
		expectedBucket string
		expectedKey    string
		expectErr      bool
	}{
		{
			name:           "bucket and key",
			path:           "s3://cloudify-release/plugins/bundle.tgz",
			expectedBucket: "cloudify-release",
			expectedKey:    "plugins/bundle.tgz",
		},
		{
			name:           "bucket only",
			path:           "s3://cloudify-release",
			expectedBucket: "cloudify-release",
		},
		{
			name:      "wrong scheme",
			path:      "gs://bucket/key",
			expectErr: true,
		},
		{
			name:      "no bucket",
			path:      "s3:///key",
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			bucket, key, err := ParsePath(tc.path)
			if (err != nil) != tc.expectErr {
				t.Fatalf("expected error %t, got %v", tc.expectErr, err)
			}
			if bucket != tc.expectedBucket || key != tc.expectedKey {
				t.Errorf("expected (%q, %q), got (%q, %q)", tc.expectedBucket, tc.expectedKey, bucket, key)
			}
		})
	}
}

func TestCredentialsSession(t *testing.T) {
	testCases := []struct {
		name      string
		creds     Credentials
		expectErr bool
		expectKey string
	}{
		{
			name: "encoded keys",
			creds: Credentials{
				Region:          "eu-west-1",
				AccessKeyBase64: base64.StdEncoding.EncodeToString([]byte("AKIA123\n")),
				SecretKeyBase64: base64.StdEncoding.EncodeToString([]byte("secret")),
			},
			expectKey: "AKIA123",
		},
		{
			name: "undecodable key",
			creds: Credentials{
				AccessKeyBase64: "!!!",
				SecretKeyBase64: "c2VjcmV0",
			},
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sess, err := tc.creds.Session()
			if (err != nil) != tc.expectErr {
				t.Fatalf("expected error %t, got %v", tc.expectErr, err)
			}
			if err != nil {
				return
			}
			value, err := sess.Config.Credentials.Get()
			if err != nil {
				t.Fatalf("getting credentials: %v", err)
			}
			if value.AccessKeyID != tc.expectKey {
				t.Errorf("expected access key %q, got %q", tc.expectKey, value.AccessKeyID)
			}
		})
	}
}

func TestClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := NewClient(memblob.OpenBucket(nil), "cloudify-release")
	defer client.Close()

	dir := t.TempDir()
	src := filepath.Join(dir, "plugin.wgn")
	if err := ioutil.WriteFile(src, []byte("wagon"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := client.UploadFile(ctx, "plugins/a/plugin.wgn", src, true); err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	if err := client.Upload(ctx, "plugins/a/plugin.yaml", []byte("plugins: {}"), false); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if err := client.Upload(ctx, "other/file.txt", []byte("x"), false); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	keys, err := client.List(ctx, "plugins/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if diff := cmp.Diff([]string{"plugins/a/plugin.wgn", "plugins/a/plugin.yaml"}, keys); diff != "" {
		t.Errorf("keys differ (-want +got):\n%s", diff)
	}

	dst := filepath.Join(dir, "out", "plugin.wgn")
	if err := client.DownloadFile(ctx, "plugins/a/plugin.wgn", dst); err != nil {
		t.Fatalf("DownloadFile: %v", err)
	}
	b, err := ioutil.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "wagon" {
		t.Errorf("expected downloaded content %q, got %q", "wagon", string(b))
	}

	if err := client.Delete(ctx, "plugins/a/plugin.wgn"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := client.Delete(ctx, "plugins/a/plugin.wgn"); err != nil {
		t.Errorf("deleting a missing key should succeed, got %v", err)
	}
	exists, err := client.Exists(ctx, "plugins/a/plugin.wgn")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Error("expected deleted key to be gone")
	}
	if err := client.DownloadFile(ctx, "missing", filepath.Join(dir, "missing")); err == nil {
		t.Error("expected an error downloading a missing key")
	}
}

func TestUploadFileFailureLeavesNoObject(t *testing.T) {
	ctx := context.Background()
	client := NewClient(memblob.OpenBucket(nil), "cloudify-release")
	defer client.Close()
	if err := client.Upload(ctx, "wagons/old.wgn", []byte("old"), false); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	testCases := []struct {
		name     string
		key      string
		expected string
	}{
		{name: "new key", key: "wagons/x.wgn"},
		{name: "existing key keeps its content", key: "wagons/old.wgn", expected: "old"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if err := client.UploadFile(ctx, tc.key, t.TempDir(), false); err == nil {
				t.Fatal("expected an error uploading a directory")
			}
			exists, err := client.Exists(ctx, tc.key)
			if err != nil {
				t.Fatalf("Exists: %v", err)
			}
			if tc.expected == "" {
				if exists {
					t.Errorf("failed upload left an object at %s", tc.key)
				}
				return
			}
			b, err := client.Read(ctx, tc.key)
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if string(b) != tc.expected {
				t.Errorf("expected %q, got %q", tc.expected, string(b))
			}
		})
	}
}

func TestURL(t *testing.T) {
	client := NewClient(memblob.OpenBucket(nil), "cloudify-release")
	if got, want := client.URL("/a/b.tgz"), "https://cloudify-release.s3.amazonaws.com/a/b.tgz"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestOpenLocal(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "mirror")
	client, err := OpenLocal(dir)
	if err != nil {
		t.Fatalf("OpenLocal: %v", err)
	}
	defer client.Close()

	ctx := context.Background()
	if err := client.Upload(ctx, "plugins/plugins.json", []byte(`[]`), true); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	b, err := ioutil.ReadFile(filepath.Join(dir, "plugins", "plugins.json"))
	if err != nil {
		t.Fatalf("object not written below the directory: %v", err)
	}
	if string(b) != "[]" {
		t.Errorf("expected [], got %q", b)
	}
	keys, err := client.List(ctx, "plugins/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if diff := cmp.Diff([]string{"plugins/plugins.json"}, keys); diff != "" {
		t.Errorf("keys differ (-want +got):\n%s", diff)
	}
}
