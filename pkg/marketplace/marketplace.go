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

// Package marketplace talks to the plugin marketplace API.
package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"

	"github.com/blang/semver"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultURL is the public marketplace API.
const DefaultURL = "https://marketplace.cloudify.co"

// Plugin is a marketplace plugin entry.
type Plugin struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name,omitempty"`
	Description string `json:"description,omitempty"`
	Logo        string `json:"logo_url,omitempty"`
}

// Version is one published version of a plugin.
type Version struct {
	ID        string   `json:"id"`
	Version   string   `json:"version"`
	CreatedAt string   `json:"created_at,omitempty"`
	YAMLURLs  []string `json:"yaml_urls,omitempty"`
}

type list struct {
	Items json.RawMessage `json:"items"`
}

// Release announces a new plugin release.
type Release struct {
	Name    string   `json:"name"`
	Version string   `json:"version"`
	Assets  []string `json:"assets"`
}

// Client is a marketplace API client.
type Client struct {
	baseURL string
	client  *retryablehttp.Client
	dryRun  bool
}

// NewClient returns a client for the marketplace at baseURL.
func NewClient(baseURL string, client *retryablehttp.Client, dryRun bool) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Client{baseURL: strings.TrimSuffix(baseURL, "/"), client: client, dryRun: dryRun}
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := retryablehttp.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req.WithContext(ctx))
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()
	data, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("%s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	return errors.Wrapf(json.Unmarshal(data, out), "decoding %s response", path)
}

// GetPlugin returns the plugin called name, or nil if the marketplace has none.
func (c *Client) GetPlugin(ctx context.Context, name string) (*Plugin, error) {
	var l list
	if err := c.do(ctx, http.MethodGet, "/plugins?name="+url.QueryEscape(name), nil, &l); err != nil {
		return nil, err
	}
	var plugins []Plugin
	if err := json.Unmarshal(l.Items, &plugins); err != nil {
		return nil, errors.Wrap(err, "decoding plugins")
	}
	for i := range plugins {
		if plugins[i].Name == name {
			return &plugins[i], nil
		}
	}
	return nil, nil
}

// ListVersions returns the versions published for the plugin id.
func (c *Client) ListVersions(ctx context.Context, id string) ([]Version, error) {
	var l list
	if err := c.do(ctx, http.MethodGet, "/plugins/"+url.PathEscape(id)+"/versions", nil, &l); err != nil {
		return nil, err
	}
	var versions []Version
	if err := json.Unmarshal(l.Items, &versions); err != nil {
		return nil, errors.Wrap(err, "decoding versions")
	}
	return versions, nil
}

// LatestVersion returns the highest published version of the plugin called
// name. Versions that are not semantic are ignored.
func (c *Client) LatestVersion(ctx context.Context, name string) (string, error) {
	p, err := c.GetPlugin(ctx, name)
	if err != nil {
		return "", err
	}
	if p == nil {
		return "", errors.Errorf("plugin %s is not in the marketplace", name)
	}
	versions, err := c.ListVersions(ctx, p.ID)
	if err != nil {
		return "", err
	}
	var latest string
	var latestVersion semver.Version
	for _, v := range versions {
		parsed, err := semver.ParseTolerant(v.Version)
		if err != nil {
			logrus.WithField("version", v.Version).Debug("Ignoring non semantic version.")
			continue
		}
		if latest == "" || parsed.GT(latestVersion) {
			latest, latestVersion = v.Version, parsed
		}
	}
	if latest == "" {
		return "", errors.Errorf("plugin %s has no published versions", name)
	}
	return latest, nil
}

// NotifyRelease tells the marketplace that name was released at version with
// the given asset URLs.
func (c *Client) NotifyRelease(ctx context.Context, name, version string, assets []string) error {
	logrus.WithFields(logrus.Fields{"plugin": name, "version": version}).Infof("NotifyRelease(dry=%t)", c.dryRun)
	if c.dryRun {
		return nil
	}
	return c.do(ctx, http.MethodPost, "/plugins/"+url.PathEscape(name)+"/releases", Release{Name: name, Version: version, Assets: assets}, nil)
}
