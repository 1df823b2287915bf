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

package catalog

import (
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-github/github"

	"github.com/cloudify-cosmo/ecosystem-test/pkg/retryhttp"
)

func TestLoad(t *testing.T) {
	c, err := Load("testdata/plugins.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c) != 2 {
		t.Fatalf("expected 2 descriptors, got %d", len(c))
	}
	d, ok := c.Find("cloudify-aws-plugin")
	if !ok {
		t.Fatal("expected to find cloudify-aws-plugin")
	}
	w, ok := d.Wagon("redhat maipo")
	if !ok || !strings.HasSuffix(w.URL, "redhat-Maipo.wgn") {
		t.Errorf("unexpected wagon %+v", w)
	}
	if _, ok := d.Wagon("Centos Core"); ok {
		t.Error("did not expect a Centos Core wagon")
	}
}

func TestVerify(t *testing.T) {
	testCases := []struct {
		name     string
		data     string
		expected []string
	}{
		{
			name: "valid",
			data: `[{"name": "a", "version": "1.0", "link": "u", "wagons": [{"name": "manylinux", "url": "w", "md5": "x"}]}]`,
		},
		{
			name:     "not an array",
			data:     `{"name": "a"}`,
			expected: []string{"Invalid type"},
		},
		{
			name:     "missing required fields",
			data:     `[{"name": "a", "wagons": []}]`,
			expected: []string{"version is required", "link is required"},
		},
		{
			name: "duplicate names and missing md5",
			data: `[{"name": "a", "version": "1", "link": "u", "wagons": [{"name": "manylinux", "url": "w"}]},
			        {"name": "a", "version": "2", "link": "u", "wagons": []}]`,
			expected: []string{"plugin a is listed more than once", "plugin a wagon manylinux has no md5"},
		},
		{
			name:     "duplicate platform",
			data:     `[{"name": "a", "version": "1", "link": "u", "wagons": [{"name": "Centos Core", "url": "w", "md5": "x"}, {"name": "centos core", "url": "v", "md5": "y"}]}]`,
			expected: []string{"lists platform centos core more than once"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := Verify([]byte(tc.data))
			if len(tc.expected) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected an error")
			}
			for _, want := range tc.expected {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("expected error to contain %q, got %v", want, err)
				}
			}
		})
	}
}

func TestUpsert(t *testing.T) {
	c, err := Load("testdata/plugins.json")
	if err != nil {
		t.Fatal(err)
	}
	c = c.Upsert(Descriptor{
		Name:    "cloudify-aws-plugin",
		Version: "3.0.1",
		Link:    "https://example.com/plugin.yaml",
		Wagons:  []Wagon{{Name: "manylinux", URL: "https://example.com/a.wgn", MD5: "abc"}},
	})
	c = c.Upsert(Descriptor{Name: "cloudify-new-plugin", Version: "0.1.0", Link: "https://example.com/new.yaml"})

	var names []string
	for _, d := range c {
		names = append(names, d.Name+"@"+d.Version)
	}
	expected := []string{"cloudify-aws-plugin@3.0.1", "cloudify-utilities-plugin@1.25.0", "cloudify-new-plugin@0.1.0"}
	if diff := cmp.Diff(expected, names); diff != "" {
		t.Errorf("catalog differs (-want +got):\n%s", diff)
	}
	updated, _ := c.Find("cloudify-aws-plugin")
	if updated.Title != "AWS" || updated.Icon == "" {
		t.Errorf("expected title and icon to be kept, got %+v", updated)
	}

	path := filepath.Join(t.TempDir(), FileName)
	if err := c.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reloading saved catalog: %v", err)
	}
	if diff := cmp.Diff(c, reloaded); diff != "" {
		t.Errorf("reloaded catalog differs (-want +got):\n%s", diff)
	}
}

func TestFromRelease(t *testing.T) {
	base := "https://github.com/cloudify-cosmo/cloudify-aws-plugin/releases/download/3.0.1/"
	asset := func(name string) *github.ReleaseAsset {
		return &github.ReleaseAsset{Name: github.String(name), BrowserDownloadURL: github.String(base + name)}
	}
	release := &github.RepositoryRelease{
		TagName: github.String("3.0.1"),
		HTMLURL: github.String("https://github.com/cloudify-cosmo/cloudify-aws-plugin/releases/tag/3.0.1"),
	}
	wagon := "cloudify_aws_plugin-3.0.1-py36-none-manylinux1_x86_64.wgn"
	assets := []*github.ReleaseAsset{asset("plugin.yaml"), asset("v2_plugin.yaml"), asset(wagon), asset(wagon + ".md5")}

	d, err := FromRelease("cloudify-aws-plugin", release, assets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := Descriptor{
		Name:     "cloudify-aws-plugin",
		Version:  "3.0.1",
		Releases: "https://github.com/cloudify-cosmo/cloudify-aws-plugin/releases/tag/3.0.1",
		Link:     base + "plugin.yaml",
		YAML:     base + "plugin.yaml",
		YAMLs: []Manifest{
			{Name: "plugin.yaml", URL: base + "plugin.yaml"},
			{Name: "v2_plugin.yaml", URL: base + "v2_plugin.yaml"},
		},
		Wagons: []Wagon{{Name: "manylinux", URL: base + wagon, MD5URL: base + wagon + ".md5"}},
	}
	if diff := cmp.Diff(expected, d); diff != "" {
		t.Errorf("descriptor differs (-want +got):\n%s", diff)
	}

	v2 := d.V2()
	if v2.Link != base+"v2_plugin.yaml" || v2.YAML != base+"v2_plugin.yaml" {
		t.Errorf("v2 descriptor links %q and %q", v2.Link, v2.YAML)
	}
	if d.Link != base+"plugin.yaml" {
		t.Errorf("V2 modified the original descriptor")
	}

	if _, err := FromRelease("cloudify-aws-plugin", release, assets[2:]); err == nil {
		t.Error("expected an error for a release without plugin.yaml")
	}
}

func TestFetch(t *testing.T) {
	data, err := ioutil.ReadFile("testdata/plugins.json")
	if err != nil {
		t.Fatal(err)
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/plugins.json" {
			http.NotFound(w, r)
			return
		}
		w.Write(data)
	}))
	defer server.Close()
	client := retryhttp.NewClient(retryhttp.Options{RetryWaitMin: time.Millisecond, RetryWaitMax: time.Millisecond, Timeout: 5 * time.Second})

	testCases := []struct {
		name      string
		location  string
		expectErr bool
	}{
		{name: "local file", location: "testdata/plugins.json"},
		{name: "url", location: server.URL + "/plugins.json"},
		{name: "missing url", location: server.URL + "/v2_plugins.json", expectErr: true},
		{name: "missing file", location: filepath.Join(t.TempDir(), FileName), expectErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := Fetch(context.Background(), client, tc.location)
			if (err != nil) != tc.expectErr {
				t.Fatalf("expected error %t, got %v", tc.expectErr, err)
			}
			if err == nil && len(c) != 2 {
				t.Errorf("expected 2 descriptors, got %d", len(c))
			}
		})
	}
}
