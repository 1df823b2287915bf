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

package manager

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Plugin is an installed plugin.
type Plugin struct {
	ID             string `json:"id"`
	PackageName    string `json:"package_name"`
	PackageVersion string `json:"package_version"`
	Distribution   string `json:"distribution,omitempty"`
	Platform       string `json:"supported_platform,omitempty"`
	UploadedAt     string `json:"uploaded_at,omitempty"`
}

// UploadPlugin uploads a wagon together with its plugin YAML. The manager
// expects both packed in one zip archive.
func (c *Client) UploadPlugin(ctx context.Context, wagon, manifest string) (*Plugin, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, path := range []string{wagon, manifest} {
		if err := addToZip(zw, path); err != nil {
			return nil, errors.Wrapf(err, "packing %s", path)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{"wagon": filepath.Base(wagon), "yaml": filepath.Base(manifest)}).Info("Uploading plugin.")
	var p Plugin
	query := url.Values{"visibility": {"global"}}
	if err := c.do(ctx, request{method: http.MethodPost, path: "/plugins", query: query, raw: &buf, contentType: "application/zip"}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func addToZip(zw *zip.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w, err := zw.Create(filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}

// UploadPluginFromURLs has the manager fetch the wagon and YAML itself.
func (c *Client) UploadPluginFromURLs(ctx context.Context, wagonURL, yamlURL string) (*Plugin, error) {
	logrus.WithFields(logrus.Fields{"wagon": wagonURL, "yaml": yamlURL}).Info("Uploading plugin from URLs.")
	var p Plugin
	query := url.Values{"wagon_url": {wagonURL}, "yaml_url": {yamlURL}, "visibility": {"global"}}
	if err := c.do(ctx, request{method: http.MethodPost, path: "/plugins", query: query}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPlugins returns every installed plugin.
func (c *Client) ListPlugins(ctx context.Context) ([]Plugin, error) {
	var all []Plugin
	err := c.list(ctx, "/plugins", nil, func(items json.RawMessage) (int, error) {
		var page []Plugin
		err := json.Unmarshal(items, &page)
		all = append(all, page...)
		return len(page), err
	})
	return all, err
}

// FindPlugin returns the installed plugin with the package name and version,
// or nil.
func (c *Client) FindPlugin(ctx context.Context, name, version string) (*Plugin, error) {
	plugins, err := c.ListPlugins(ctx)
	if err != nil {
		return nil, err
	}
	for i := range plugins {
		if plugins[i].PackageName == name && (version == "" || plugins[i].PackageVersion == version) {
			return &plugins[i], nil
		}
	}
	return nil, nil
}

// DeletePlugin removes plugin id.
func (c *Client) DeletePlugin(ctx context.Context, id string, force bool) error {
	logrus.WithField("plugin", id).Info("Deleting plugin.")
	return c.do(ctx, request{method: http.MethodDelete, path: "/plugins/" + url.PathEscape(id), query: forceQuery(force)}, nil)
}
