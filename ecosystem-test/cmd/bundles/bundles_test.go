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

package bundles

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/cloudify-cosmo/ecosystem-test/pkg/catalog"
)

const wagon = "cloudify_aws_plugin-3.0.1-py36-none-manylinux1_x86_64.wgn"

func digest(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func newServer(t *testing.T) *httptest.Server {
	files := map[string]string{
		"/aws/plugin.yaml":       "plugins: {aws: {}}",
		"/aws/" + wagon:          "aws wagon",
		"/aws/" + wagon + ".md5": digest("aws wagon") + "  " + wagon + "\n",
	}
	r := mux.NewRouter()
	r.HandleFunc("/{plugin}/{file}", func(w http.ResponseWriter, req *http.Request) {
		body, ok := files[req.URL.Path]
		if !ok {
			http.NotFound(w, req)
			return
		}
		io.WriteString(w, body)
	})
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server
}

func writeCatalog(t *testing.T, base string) string {
	t.Helper()
	c := catalog.Catalog{{
		Name:    "cloudify-aws-plugin",
		Version: "3.0.1",
		Link:    base + "/aws/plugin.yaml",
		Wagons:  []catalog.Wagon{{Name: "manylinux", URL: base + "/aws/" + wagon, MD5URL: base + "/aws/" + wagon + ".md5"}},
	}}
	data, err := c.Marshal()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), catalog.FileName)
	require.NoError(t, ioutil.WriteFile(path, data, 0644))
	return path
}

func execute(cmd *cobra.Command, args ...string) (string, error) {
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCreateAndListBundle(t *testing.T) {
	for _, k := range []string{"AWS_DEFAULT_REGION", "aws_access_key_id", "aws_secret_access_key"} {
		t.Setenv(k, "")
	}
	server := newServer(t)
	path := writeCatalog(t, server.URL)
	dir := t.TempDir()
	dest := filepath.Join(dir, "bundle.tgz")
	mirror := filepath.Join(dir, "mirror")

	out, err := execute(makeCreateBundle(),
		"--plugins-json="+path,
		"--dest="+dest,
		"--concurrency=1",
		"--bucket=file://"+mirror,
		"--s3-key=bundles/cloudify-plugins-bundle.tgz",
	)
	require.NoError(t, err)
	require.Equal(t, "file://"+filepath.Join(mirror, "bundles", "cloudify-plugins-bundle.tgz"), strings.TrimSpace(out))

	local, err := ioutil.ReadFile(dest)
	require.NoError(t, err)
	published, err := ioutil.ReadFile(filepath.Join(mirror, "bundles", "cloudify-plugins-bundle.tgz"))
	require.NoError(t, err)
	require.Equal(t, local, published)

	out, err = execute(makeListBundle(), dest)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, []string{"WAGON", "MANIFEST"}, strings.Fields(lines[0]))
	require.Equal(t, []string{"cloudify-aws-plugin/3.0.1/" + wagon, "cloudify-aws-plugin/3.0.1/plugin.yaml"}, strings.Fields(lines[1]))
}

func TestCreateBundleFailures(t *testing.T) {
	server := newServer(t)
	path := writeCatalog(t, server.URL)

	testCases := []struct {
		name string
		args []string
	}{
		{name: "unknown plugin", args: []string{"--plugin=cloudify-gcp-plugin"}},
		{name: "no wagon for platform", args: []string{"--platform=centos core"}},
		{name: "missing catalog", args: []string{"--plugins-json=" + filepath.Join(t.TempDir(), "missing.json")}},
		{name: "upload without bucket", args: []string{"--s3-key=bundle.tgz", "--bucket="}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dest := filepath.Join(t.TempDir(), "bundle.tgz")
			_, err := execute(makeCreateBundle(), append([]string{"--plugins-json=" + path, "--dest=" + dest}, tc.args...)...)
			require.Error(t, err)
			if _, err := os.Stat(dest); !os.IsNotExist(err) {
				t.Errorf("expected no bundle at %s, stat returned %v", dest, err)
			}
		})
	}
}
