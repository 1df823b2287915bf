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
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"
)

type secretRequest struct {
	Value          string `json:"value"`
	UpdateIfExists bool   `json:"update_if_exists"`
	Visibility     string `json:"visibility"`
	IsHiddenValue  bool   `json:"is_hidden_value"`
}

// CreateSecret creates key or overwrites its value.
func (c *Client) CreateSecret(ctx context.Context, key, value string) error {
	logrus.WithField("secret", key).Info("Creating secret.")
	body := secretRequest{Value: value, UpdateIfExists: true, Visibility: "tenant", IsHiddenValue: true}
	return c.do(ctx, request{method: http.MethodPut, path: "/secrets/" + url.PathEscape(key), body: body}, nil)
}

// DeleteSecret removes key. A missing secret is not an error.
func (c *Client) DeleteSecret(ctx context.Context, key string) error {
	logrus.WithField("secret", key).Info("Deleting secret.")
	err := c.do(ctx, request{method: http.MethodDelete, path: "/secrets/" + url.PathEscape(key)}, nil)
	if IsNotFound(err) {
		return nil
	}
	return err
}
