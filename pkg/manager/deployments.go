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
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"
)

// Deployment is a deployment of a blueprint.
type Deployment struct {
	ID          string                 `json:"id"`
	BlueprintID string                 `json:"blueprint_id"`
	Inputs      map[string]interface{} `json:"inputs,omitempty"`
	CreatedAt   string                 `json:"created_at,omitempty"`
}

type createDeployment struct {
	BlueprintID string                 `json:"blueprint_id"`
	Inputs      map[string]interface{} `json:"inputs,omitempty"`
	Visibility  string                 `json:"visibility,omitempty"`
}

// CreateDeployment creates deployment id of blueprint with inputs. The
// manager installs the deployment environment asynchronously; see
// WaitForDeploymentEnvironment.
func (c *Client) CreateDeployment(ctx context.Context, id, blueprint string, inputs map[string]interface{}) (*Deployment, error) {
	logrus.WithFields(logrus.Fields{"deployment": id, "blueprint": blueprint}).Info("Creating deployment.")
	var d Deployment
	body := createDeployment{BlueprintID: blueprint, Inputs: inputs, Visibility: "tenant"}
	if err := c.do(ctx, request{method: http.MethodPut, path: "/deployments/" + url.PathEscape(id), body: body}, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// GetDeployment returns deployment id.
func (c *Client) GetDeployment(ctx context.Context, id string) (*Deployment, error) {
	var d Deployment
	if err := c.do(ctx, request{method: http.MethodGet, path: "/deployments/" + url.PathEscape(id)}, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// ListDeployments returns the deployments of blueprint, or all deployments
// when blueprint is empty.
func (c *Client) ListDeployments(ctx context.Context, blueprint string) ([]Deployment, error) {
	query := url.Values{}
	if blueprint != "" {
		query.Set("blueprint_id", blueprint)
	}
	var all []Deployment
	err := c.list(ctx, "/deployments", query, func(items json.RawMessage) (int, error) {
		var page []Deployment
		err := json.Unmarshal(items, &page)
		all = append(all, page...)
		return len(page), err
	})
	return all, err
}

// DeleteDeployment removes deployment id. A missing deployment is not an error.
func (c *Client) DeleteDeployment(ctx context.Context, id string, force bool) error {
	logrus.WithField("deployment", id).Info("Deleting deployment.")
	err := c.do(ctx, request{method: http.MethodDelete, path: "/deployments/" + url.PathEscape(id), query: forceQuery(force)}, nil)
	if IsNotFound(err) {
		return nil
	}
	return err
}
