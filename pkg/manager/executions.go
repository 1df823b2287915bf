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
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/apimachinery/pkg/util/wait"
)

// Execution statuses.
const (
	StatusPending    = "pending"
	StatusStarted    = "started"
	StatusQueued     = "queued"
	StatusCancelling = "cancelling"
	StatusTerminated = "terminated"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

// Workflows run by the test harness.
const (
	WorkflowCreateEnvironment = "create_deployment_environment"
	WorkflowInstall           = "install"
	WorkflowUninstall         = "uninstall"
)

var terminalStatuses = sets.NewString(StatusTerminated, StatusFailed, StatusCancelled)

// Execution is a workflow run.
type Execution struct {
	ID           string                 `json:"id"`
	WorkflowID   string                 `json:"workflow_id"`
	DeploymentID string                 `json:"deployment_id"`
	BlueprintID  string                 `json:"blueprint_id,omitempty"`
	Status       string                 `json:"status"`
	Error        string                 `json:"error,omitempty"`
	CreatedAt    string                 `json:"created_at,omitempty"`
	Parameters   map[string]interface{} `json:"parameters,omitempty"`
}

// Terminal reports whether the execution has finished.
func (e *Execution) Terminal() bool {
	return terminalStatuses.Has(e.Status)
}

// TimeoutError is returned when an execution does not finish in time.
type TimeoutError struct {
	Execution *Execution
	Timeout   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("execution %s (%s) still %s after %v", e.Execution.ID, e.Execution.WorkflowID, e.Execution.Status, e.Timeout)
}

// ExecutionFailedError is returned when an execution ends failed or cancelled.
type ExecutionFailedError struct {
	Execution *Execution
}

func (e *ExecutionFailedError) Error() string {
	msg := fmt.Sprintf("execution %s (%s) of %s %s", e.Execution.ID, e.Execution.WorkflowID, e.Execution.DeploymentID, e.Execution.Status)
	if e.Execution.Error != "" {
		msg += ": " + e.Execution.Error
	}
	return msg
}

// IsTimeout reports whether err is a TimeoutError.
func IsTimeout(err error) bool {
	_, ok := errors.Cause(err).(*TimeoutError)
	return ok
}

type startExecution struct {
	DeploymentID string                 `json:"deployment_id"`
	WorkflowID   string                 `json:"workflow_id"`
	Parameters   map[string]interface{} `json:"parameters,omitempty"`
	Force        bool                   `json:"force,omitempty"`
}

// StartExecution starts workflow on deployment.
func (c *Client) StartExecution(ctx context.Context, deployment, workflow string, params map[string]interface{}) (*Execution, error) {
	logrus.WithFields(logrus.Fields{"deployment": deployment, "workflow": workflow}).Info("Starting execution.")
	var e Execution
	body := startExecution{DeploymentID: deployment, WorkflowID: workflow, Parameters: params}
	if err := c.do(ctx, request{method: http.MethodPost, path: "/executions", body: body}, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// GetExecution returns execution id.
func (c *Client) GetExecution(ctx context.Context, id string) (*Execution, error) {
	var e Execution
	if err := c.do(ctx, request{method: http.MethodGet, path: "/executions/" + url.PathEscape(id)}, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// ListExecutions returns the executions of deployment, or all executions
// when deployment is empty.
func (c *Client) ListExecutions(ctx context.Context, deployment string) ([]Execution, error) {
	query := url.Values{}
	if deployment != "" {
		query.Set("deployment_id", deployment)
	}
	var all []Execution
	err := c.list(ctx, "/executions", query, func(items json.RawMessage) (int, error) {
		var page []Execution
		err := json.Unmarshal(items, &page)
		all = append(all, page...)
		return len(page), err
	})
	return all, err
}

// CancelExecution asks the manager to cancel execution id.
func (c *Client) CancelExecution(ctx context.Context, id string, force bool) (*Execution, error) {
	action := "cancel"
	if force {
		action = "force-cancel"
	}
	logrus.WithFields(logrus.Fields{"execution": id, "action": action}).Info("Cancelling execution.")
	var e Execution
	if err := c.do(ctx, request{method: http.MethodPost, path: "/executions/" + url.PathEscape(id), body: map[string]string{"action": action}}, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// WaitOptions control WaitForExecution.
type WaitOptions struct {
	Timeout  time.Duration
	Interval time.Duration
	// LogEvents streams the execution events to the log while waiting.
	LogEvents bool
}

// DefaultWaitOptions poll every five seconds for up to an hour.
var DefaultWaitOptions = WaitOptions{Timeout: time.Hour, Interval: 5 * time.Second, LogEvents: true}

func (o WaitOptions) withDefaults() WaitOptions {
	if o.Interval <= 0 {
		o.Interval = DefaultWaitOptions.Interval
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultWaitOptions.Timeout
	}
	return o
}

// WaitForExecution polls execution id until it is terminal. A terminated
// execution is returned; failed or cancelled ones yield ExecutionFailedError
// and running past the timeout yields TimeoutError.
func (c *Client) WaitForExecution(ctx context.Context, id string, opts WaitOptions) (*Execution, error) {
	opts = opts.withDefaults()
	log := logrus.WithField("execution", id)
	var last *Execution
	offset := 0
	err := wait.PollImmediate(opts.Interval, opts.Timeout, func() (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		e, err := c.GetExecution(ctx, id)
		if err != nil {
			return false, err
		}
		if last == nil || last.Status != e.Status {
			log.WithFields(logrus.Fields{"workflow": e.WorkflowID, "status": e.Status}).Info("Execution status.")
		}
		last = e
		if opts.LogEvents {
			events, err := c.ListEvents(ctx, id, offset)
			if err != nil {
				log.WithError(err).Warn("Failed to fetch execution events.")
			} else {
				offset += len(events)
				for _, ev := range events {
					log.Info(ev.String())
				}
			}
		}
		return e.Terminal(), nil
	})
	if err == wait.ErrWaitTimeout {
		return last, &TimeoutError{Execution: last, Timeout: opts.Timeout}
	}
	if err != nil {
		return last, err
	}
	if last.Status != StatusTerminated {
		return last, &ExecutionFailedError{Execution: last}
	}
	return last, nil
}

// RunWorkflow starts workflow on deployment and waits for it.
func (c *Client) RunWorkflow(ctx context.Context, deployment, workflow string, params map[string]interface{}, opts WaitOptions) (*Execution, error) {
	e, err := c.StartExecution(ctx, deployment, workflow, params)
	if err != nil {
		return nil, err
	}
	return c.WaitForExecution(ctx, e.ID, opts)
}

// WaitForDeploymentEnvironment waits for the environment creation execution
// the manager starts for a new deployment. opts.Timeout bounds finding the
// execution and waiting for it together.
func (c *Client) WaitForDeploymentEnvironment(ctx context.Context, deployment string, opts WaitOptions) (*Execution, error) {
	opts = opts.withDefaults()
	start := time.Now()
	var env *Execution
	err := wait.PollImmediate(opts.Interval, opts.Timeout, func() (bool, error) {
		executions, err := c.ListExecutions(ctx, deployment)
		if err != nil {
			return false, err
		}
		for i := range executions {
			if executions[i].WorkflowID == WorkflowCreateEnvironment {
				env = &executions[i]
				return true, nil
			}
		}
		return false, nil
	})
	if err == wait.ErrWaitTimeout {
		return nil, &TimeoutError{Execution: &Execution{WorkflowID: WorkflowCreateEnvironment, DeploymentID: deployment, Status: "missing"}, Timeout: opts.Timeout}
	}
	if err != nil {
		return nil, err
	}
	total := opts.Timeout
	opts.Timeout = total - time.Since(start)
	if opts.Timeout <= 0 {
		return env, &TimeoutError{Execution: env, Timeout: total}
	}
	e, err := c.WaitForExecution(ctx, env.ID, opts)
	if timeout, ok := err.(*TimeoutError); ok {
		timeout.Timeout = total
	}
	return e, err
}
