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
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/cloudify-cosmo/ecosystem-test/pkg/archive"
)

// Blueprint upload states.
const (
	BlueprintUploaded = "uploaded"
	BlueprintInvalid  = "invalid"
)

// Blueprint is an uploaded blueprint.
type Blueprint struct {
	ID           string `json:"id"`
	State        string `json:"state,omitempty"`
	Error        string `json:"error,omitempty"`
	MainFileName string `json:"main_file_name,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
}

func (b *Blueprint) failed() bool {
	return b.State == BlueprintInvalid || strings.HasPrefix(b.State, "failed")
}

// UploadBlueprint archives the directory holding the blueprint file at path
// and uploads it as id, waiting up to timeout for the manager to parse it.
func (c *Client) UploadBlueprint(ctx context.Context, id, path string, timeout time.Duration) (*Blueprint, error) {
	dir, file := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	tmp, err := ioutil.TempDir("", "blueprint")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmp)

	w, err := archive.Create(filepath.Join(tmp, id+".tar.gz"))
	if err != nil {
		return nil, err
	}
	if err := w.AddDir(filepath.Base(dir), dir); err != nil {
		w.Abort()
		w.Close()
		return nil, errors.Wrapf(err, "archiving %s", dir)
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	f, err := os.Open(w.Name())
	if err != nil {
		return nil, err
	}
	defer f.Close()

	logrus.WithFields(logrus.Fields{"blueprint": id, "file": path}).Info("Uploading blueprint.")
	var b Blueprint
	query := url.Values{"application_file_name": {file}, "visibility": {"tenant"}}
	err = c.do(ctx, request{method: http.MethodPut, path: "/blueprints/" + url.PathEscape(id), query: query, raw: f, contentType: "application/octet-stream"}, &b)
	if err != nil {
		return nil, err
	}
	if b.State == "" || b.State == BlueprintUploaded {
		return &b, nil
	}
	return c.waitForBlueprint(ctx, id, timeout)
}

func (c *Client) waitForBlueprint(ctx context.Context, id string, timeout time.Duration) (*Blueprint, error) {
	var last *Blueprint
	err := wait.PollImmediate(2*time.Second, timeout, func() (bool, error) {
		b, err := c.GetBlueprint(ctx, id)
		if err != nil {
			return false, err
		}
		last = b
		if b.failed() {
			return false, errors.Errorf("blueprint %s upload %s: %s", id, b.State, b.Error)
		}
		return b.State == BlueprintUploaded, nil
	})
	if err == wait.ErrWaitTimeout {
		state := ""
		if last != nil {
			state = last.State
		}
		return last, errors.Errorf("blueprint %s still %q after %v", id, state, timeout)
	}
	return last, err
}

// GetBlueprint returns the blueprint id.
func (c *Client) GetBlueprint(ctx context.Context, id string) (*Blueprint, error) {
	var b Blueprint
	if err := c.do(ctx, request{method: http.MethodGet, path: "/blueprints/" + url.PathEscape(id)}, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// ListBlueprints returns every blueprint of the tenant.
func (c *Client) ListBlueprints(ctx context.Context) ([]Blueprint, error) {
	var all []Blueprint
	err := c.list(ctx, "/blueprints", nil, func(items json.RawMessage) (int, error) {
		var page []Blueprint
		err := json.Unmarshal(items, &page)
		all = append(all, page...)
		return len(page), err
	})
	return all, err
}

// DeleteBlueprint removes the blueprint id. A missing blueprint is not an error.
func (c *Client) DeleteBlueprint(ctx context.Context, id string, force bool) error {
	logrus.WithField("blueprint", id).Info("Deleting blueprint.")
	err := c.do(ctx, request{method: http.MethodDelete, path: "/blueprints/" + url.PathEscape(id), query: forceQuery(force)}, nil)
	if IsNotFound(err) {
		return nil
	}
	return err
}

func forceQuery(force bool) url.Values {
	if !force {
		return nil
	}
	return url.Values{"force": {"true"}}
}
