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

package s3

import (
	"bytes"
	"context"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/cloudify-cosmo/ecosystem-test/pkg/flagutil"
)

func clearAWSEnv(t *testing.T) {
	for _, k := range []string{"AWS_DEFAULT_REGION", "aws_access_key_id", "aws_secret_access_key"} {
		t.Setenv(k, "")
	}
}

func TestResolve(t *testing.T) {
	testCases := []struct {
		name           string
		bucket         string
		arg            string
		expectedKey    string
		expectedBucket string
		expectErr      bool
	}{
		{name: "key of the configured bucket", bucket: "cloudify-release", arg: "/plugins/a.wgn", expectedKey: "plugins/a.wgn", expectedBucket: "cloudify-release"},
		{name: "url selects the bucket", bucket: "cloudify-release", arg: "s3://other/plugins/a.wgn", expectedKey: "plugins/a.wgn", expectedBucket: "other"},
		{name: "url without bucket", arg: "s3:///plugins/a.wgn", expectErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			o := flagutil.S3Options{Bucket: tc.bucket}
			key, err := resolve(&o, tc.arg)
			if (err != nil) != tc.expectErr {
				t.Fatalf("expected error %t, got %v", tc.expectErr, err)
			}
			if err != nil {
				return
			}
			if diff := cmp.Diff([]string{tc.expectedKey, tc.expectedBucket}, []string{key, o.Bucket}); diff != "" {
				t.Errorf("key and bucket differ (-want +got):\n%s", diff)
			}
		})
	}
}

func TestUploadAndDownload(t *testing.T) {
	clearAWSEnv(t)
	dir := t.TempDir()
	mirror := filepath.Join(dir, "mirror")
	src := filepath.Join(dir, "plugin.yaml")
	require.NoError(t, ioutil.WriteFile(src, []byte("plugins: {}\n"), 0644))

	var out bytes.Buffer
	upload := makeUpload()
	upload.SetOut(&out)
	upload.SetArgs([]string{"--bucket=file://" + mirror, "--public", src, "/cloudify-demo-plugin/3.0.1/plugin.yaml"})
	require.NoError(t, upload.ExecuteContext(context.Background()))
	require.Equal(t, "file://"+filepath.Join(mirror, "cloudify-demo-plugin", "3.0.1", "plugin.yaml"), strings.TrimSpace(out.String()))

	dst := filepath.Join(dir, "out", "plugin.yaml")
	download := makeDownload()
	download.SetArgs([]string{"--bucket=file://" + mirror, "cloudify-demo-plugin/3.0.1/plugin.yaml", dst})
	require.NoError(t, download.ExecuteContext(context.Background()))
	b, err := ioutil.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, "plugins: {}\n", string(b))

	missing := makeDownload()
	missing.SetArgs([]string{"--bucket=file://" + mirror, "cloudify-demo-plugin/9.9.9/plugin.yaml", dst})
	require.Error(t, missing.ExecuteContext(context.Background()))
}
