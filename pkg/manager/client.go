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

// Package manager is a client for the manager REST API used to deploy and
// exercise blueprints in tests.
package manager

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// APIVersion is the REST API path prefix.
const APIVersion = "/api/v3.1"

// DefaultTenant is the tenant used when none is configured.
const DefaultTenant = "default_tenant"

// Auth identifies the caller. A token takes precedence over credentials.
type Auth struct {
	Username string
	Password string
	Token    string
	Tenant   string
}

// APIError is a non 2xx reply from the manager.
type APIError struct {
	StatusCode int
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	Method     string
	Path       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.Path, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("%s %s: %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// IsNotFound reports whether err is an APIError for a missing resource.
func IsNotFound(err error) bool {
	apiErr, ok := errors.Cause(err).(*APIError)
	return ok && apiErr.StatusCode == http.StatusNotFound
}

// Pagination is the metadata attached to list replies.
type Pagination struct {
	Total  int `json:"total"`
	Size   int `json:"size"`
	Offset int `json:"offset"`
}

type listResponse struct {
	Items    json.RawMessage `json:"items"`
	Metadata struct {
		Pagination Pagination `json:"pagination"`
	} `json:"metadata"`
}

// Client talks to one manager.
type Client struct {
	baseURL  string
	auth     Auth
	client   *retryablehttp.Client
	pageSize int
}

// NewClient returns a client for the manager at host. Host may carry a scheme;
// plain hosts use https when ssl is set and http otherwise.
func NewClient(host string, ssl bool, auth Auth, client *retryablehttp.Client) *Client {
	base := strings.TrimSuffix(host, "/")
	if !strings.Contains(base, "://") {
		scheme := "http"
		if ssl {
			scheme = "https"
		}
		base = scheme + "://" + base
	}
	if auth.Tenant == "" {
		auth.Tenant = DefaultTenant
	}
	return &Client{baseURL: base, auth: auth, client: client, pageSize: 1000}
}

// BaseURL is the manager address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type request struct {
	method      string
	path        string
	query       url.Values
	body        interface{}
	raw         io.Reader
	contentType string
}

func (c *Client) newRequest(ctx context.Context, r request) (*retryablehttp.Request, error) {
	u := c.baseURL + APIVersion + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}
	var body interface{}
	contentType := r.contentType
	switch {
	case r.raw != nil:
		raw, err := ioutil.ReadAll(r.raw)
		if err != nil {
			return nil, err
		}
		body = raw
		if contentType == "" {
			contentType = "application/octet-stream"
		}
	case r.body != nil:
		b, err := json.Marshal(r.body)
		if err != nil {
			return nil, err
		}
		body = b
		contentType = "application/json"
	}
	req, err := retryablehttp.NewRequest(r.method, u, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Tenant", c.auth.Tenant)
	if c.auth.Token != "" {
		req.Header.Set("Authentication-Token", c.auth.Token)
	} else if c.auth.Username != "" {
		req.SetBasicAuth(c.auth.Username, c.auth.Password)
	}
	return req.WithContext(ctx), nil
}

func (c *Client) do(ctx context.Context, r request, out interface{}) error {
	req, err := c.newRequest(ctx, r)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", r.method, r.path)
	}
	defer resp.Body.Close()
	data, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "reading %s %s", r.method, r.path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Method: r.method, Path: r.path}
		if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}
	logrus.WithFields(logrus.Fields{"method": r.method, "path": r.path, "status": resp.StatusCode}).Debug("Manager request.")
	if out == nil || len(data) == 0 {
		return nil
	}
	return errors.Wrapf(json.Unmarshal(data, out), "decoding %s %s", r.method, r.path)
}

// list fetches every page of a collection, appending decoded items through add.
func (c *Client) list(ctx context.Context, path string, query url.Values, add func(json.RawMessage) (int, error)) error {
	if query == nil {
		query = url.Values{}
	}
	for offset := 0; ; {
		query.Set("_offset", fmt.Sprint(offset))
		query.Set("_size", fmt.Sprint(c.pageSize))
		var page listResponse
		if err := c.do(ctx, request{method: http.MethodGet, path: path, query: query}, &page); err != nil {
			return err
		}
		n, err := add(page.Items)
		if err != nil {
			return errors.Wrapf(err, "decoding %s", path)
		}
		offset += n
		if n == 0 || offset >= page.Metadata.Pagination.Total {
			return nil
		}
	}
}

// Status is the manager health summary.
type Status struct {
	Status   string                     `json:"status"`
	Services map[string]json.RawMessage `json:"services,omitempty"`
}

// Status returns the manager health summary.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var s Status
	if err := c.do(ctx, request{method: http.MethodGet, path: "/status"}, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Healthy reports whether the manager answers and reports itself running.
func (c *Client) Healthy(ctx context.Context) bool {
	s, err := c.Status(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Manager is not answering yet.")
		return false
	}
	return s.Status == "running" || s.Status == "OK"
}

// UploadLicense installs a license.
func (c *Client) UploadLicense(ctx context.Context, license []byte) error {
	logrus.Info("Uploading license.")
	return c.do(ctx, request{method: http.MethodPut, path: "/license", raw: bytes.NewReader(license), contentType: "application/octet-stream"}, nil)
}
