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

package pluginsjson

import (
	"bytes"
	"context"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/cloudify-cosmo/ecosystem-test/pkg/catalog"
	"github.com/cloudify-cosmo/ecosystem-test/pkg/ghclient/fakegithub"
)

const existing = `[
  {
    "name": "cloudify-aws-plugin",
    "title": "AWS",
    "description": "Manage AWS resources.",
    "version": "3.0.0",
    "link": "https://github.com/cloudify-cosmo/cloudify-aws-plugin/releases/download/3.0.0/plugin.yaml",
    "wagons": []
  }
]
`

func clearEnv(t *testing.T) {
	for _, k := range []string{"RELEASE_BUILD_TOKEN", "CIRCLE_PROJECT_USERNAME", "CIRCLE_PROJECT_REPONAME", "AWS_DEFAULT_REGION", "aws_access_key_id", "aws_secret_access_key"} {
		t.Setenv(k, "")
	}
}

func execute(cmd *cobra.Command, args ...string) (string, error) {
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVerifyCommand(t *testing.T) {
	testCases := []struct {
		name      string
		catalogs  []string
		expectErr bool
	}{
		{name: "valid", catalogs: []string{existing}},
		{name: "missing version", catalogs: []string{`[{"name": "a", "link": "https://x/plugin.yaml", "wagons": []}]`}, expectErr: true},
		{
			name:      "one of several invalid",
			catalogs:  []string{existing, `[{"name": "a", "version": "1.0", "link": "l", "wagons": [{"name": "manylinux", "url": "u"}]}]`},
			expectErr: true,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			var args []string
			for i, c := range tc.catalogs {
				path := filepath.Join(dir, string(rune('a'+i))+".json")
				require.NoError(t, ioutil.WriteFile(path, []byte(c), 0644))
				args = append(args, path)
			}
			_, err := execute(makeVerify(), args...)
			if (err != nil) != tc.expectErr {
				t.Fatalf("expected error %t, got %v", tc.expectErr, err)
			}
		})
	}
}

func TestUpdateCommand(t *testing.T) {
	clearEnv(t)
	fake := fakegithub.New("cloudify-cosmo", "cloudify-aws-plugin")
	server := fake.Server()
	defer server.Close()

	const wagon = "cloudify_aws_plugin-3.1.0-py36-none-manylinux1_x86_64.wgn"
	release := fake.AddRelease("3.1.0")
	manifest := fake.AddAsset(release.GetID(), "plugin.yaml", "plugins: {}\n")
	v2 := fake.AddAsset(release.GetID(), "v2_plugin.yaml", "plugins: {}\n")
	w := fake.AddAsset(release.GetID(), wagon, "wagon")
	sum := fake.AddAsset(release.GetID(), wagon+".md5", "1dd908fb0ecaaee7cd33e3595dece640  "+wagon+"\n")
	fake.AddRelease("latest")

	dir := t.TempDir()
	path := filepath.Join(dir, catalog.FileName)
	require.NoError(t, ioutil.WriteFile(path, []byte(existing), 0644))
	mirror := filepath.Join(dir, "mirror")

	testCases := []struct {
		name         string
		args         []string
		expectedLink string
	}{
		{name: "v1 catalog", expectedLink: manifest.GetBrowserDownloadURL()},
		{name: "v2 catalog", args: []string{"--v2"}, expectedLink: v2.GetBrowserDownloadURL()},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := execute(makeUpdate(), append([]string{
				"--github-endpoint=" + server.URL,
				"--github-token=secret",
				"--org=cloudify-cosmo",
				"--repo=cloudify-aws-plugin",
				"--tag=3.1.0",
				"--plugins-json=" + path,
				"--bucket=file://" + mirror,
				"--s3-key=plugins/plugins.json",
			}, tc.args...)...)
			require.NoError(t, err)
			require.Equal(t, "file://"+filepath.Join(mirror, "plugins", "plugins.json"), strings.TrimSpace(out))

			cat, err := catalog.Load(path)
			require.NoError(t, err)
			require.Len(t, cat, 1)
			d := cat[0]
			require.Equal(t, "3.1.0", d.Version)
			require.Equal(t, "AWS", d.Title)
			require.Equal(t, tc.expectedLink, d.Link)
			expectedWagons := []catalog.Wagon{{Name: "manylinux", URL: w.GetBrowserDownloadURL(), MD5URL: sum.GetBrowserDownloadURL()}}
			if diff := cmp.Diff(expectedWagons, d.Wagons); diff != "" {
				t.Errorf("wagons differ (-want +got):\n%s", diff)
			}

			local, err := ioutil.ReadFile(path)
			require.NoError(t, err)
			published, err := ioutil.ReadFile(filepath.Join(mirror, "plugins", "plugins.json"))
			require.NoError(t, err)
			require.Equal(t, string(local), string(published))
		})
	}
}

func TestUpdateCommandWithoutManifest(t *testing.T) {
	clearEnv(t)
	fake := fakegithub.New("cloudify-cosmo", "cloudify-aws-plugin")
	server := fake.Server()
	defer server.Close()
	fake.AddRelease("3.1.0")

	path := filepath.Join(t.TempDir(), catalog.FileName)
	require.NoError(t, ioutil.WriteFile(path, []byte(existing), 0644))
	_, err := execute(makeUpdate(),
		"--github-endpoint="+server.URL,
		"--github-token=secret",
		"--org=cloudify-cosmo",
		"--repo=cloudify-aws-plugin",
		"--plugins-json="+path,
	)
	require.Error(t, err)

	b, err := ioutil.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, existing, string(b))
}
