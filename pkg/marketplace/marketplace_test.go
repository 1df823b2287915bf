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

package marketplace

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/mux"

	"github.com/cloudify-cosmo/ecosystem-test/pkg/retryhttp"
)

type fakeMarketplace struct {
	versions map[string][]Version
	releases []Release
}

func (f *fakeMarketplace) router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/plugins", func(w http.ResponseWriter, req *http.Request) {
		name := req.URL.Query().Get("name")
		items := []Plugin{}
		if _, ok := f.versions[name]; ok {
			items = append(items, Plugin{ID: "id-" + name, Name: name})
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"items": items})
	}).Methods(http.MethodGet)
	r.HandleFunc("/plugins/{id}/versions", func(w http.ResponseWriter, req *http.Request) {
		id := mux.Vars(req)["id"]
		json.NewEncoder(w).Encode(map[string]interface{}{"items": f.versions[id[len("id-"):]]})
	}).Methods(http.MethodGet)
	r.HandleFunc("/plugins/{name}/releases", func(w http.ResponseWriter, req *http.Request) {
		var release Release
		if err := json.NewDecoder(req.Body).Decode(&release); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if release.Name != mux.Vars(req)["name"] {
			http.Error(w, "name mismatch", http.StatusBadRequest)
			return
		}
		f.releases = append(f.releases, release)
		w.WriteHeader(http.StatusCreated)
	}).Methods(http.MethodPost)
	return r
}

func newTestClient(t *testing.T, f *fakeMarketplace, dryRun bool) *Client {
	server := httptest.NewServer(f.router())
	t.Cleanup(server.Close)
	return NewClient(server.URL+"/", retryhttp.NewClient(retryhttp.Options{RetryMax: 1, RetryWaitMin: time.Millisecond, RetryWaitMax: time.Millisecond, Timeout: 5 * time.Second}), dryRun)
}

func TestLatestVersion(t *testing.T) {
	f := &fakeMarketplace{versions: map[string][]Version{
		"cloudify-aws-plugin": {{Version: "2.9.1"}, {Version: "3.0.10"}, {Version: "3.0.9"}, {Version: "nightly"}},
		"cloudify-empty":      {},
	}}
	testCases := []struct {
		name      string
		plugin    string
		expected  string
		expectErr bool
	}{
		{
			name:     "semantic ordering",
			plugin:   "cloudify-aws-plugin",
			expected: "3.0.10",
		},
		{
			name:      "unknown plugin",
			plugin:    "cloudify-gcp-plugin",
			expectErr: true,
		},
		{
			name:      "no versions",
			plugin:    "cloudify-empty",
			expectErr: true,
		},
	}

	client := newTestClient(t, f, false)
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			latest, err := client.LatestVersion(context.Background(), tc.plugin)
			if (err != nil) != tc.expectErr {
				t.Fatalf("expected error %t, got %v", tc.expectErr, err)
			}
			if latest != tc.expected {
				t.Errorf("expected %q, got %q", tc.expected, latest)
			}
		})
	}
}

func TestGetPluginMissing(t *testing.T) {
	p, err := newTestClient(t, &fakeMarketplace{}, false).GetPlugin(context.Background(), "cloudify-aws-plugin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != nil {
		t.Errorf("expected no plugin, got %+v", p)
	}
}

func TestNotifyRelease(t *testing.T) {
	testCases := []struct {
		name     string
		dryRun   bool
		expected []Release
	}{
		{
			name:     "posts release",
			expected: []Release{{Name: "cloudify-aws-plugin", Version: "3.0.1", Assets: []string{"https://example.com/plugin.yaml"}}},
		},
		{
			name:   "dry run",
			dryRun: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := &fakeMarketplace{}
			err := newTestClient(t, f, tc.dryRun).NotifyRelease(context.Background(), "cloudify-aws-plugin", "3.0.1", []string{"https://example.com/plugin.yaml"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tc.expected, f.releases); diff != "" {
				t.Errorf("releases differ (-want +got):\n%s", diff)
			}
		})
	}
}
