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

// Package blueprint runs blueprint lifecycle tests against a manager.
package blueprint

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/cloudify-cosmo/ecosystem-test/pkg/manager"
)

// OnFailure says what to do with a deployment whose test failed.
type OnFailure string

// Failure policies.
const (
	Rollback  OnFailure = "rollback"
	Uninstall OnFailure = "uninstall"
	DoNothing OnFailure = "donothing"
)

// ParseOnFailure validates a policy name. Empty means Rollback.
func ParseOnFailure(s string) (OnFailure, error) {
	switch p := OnFailure(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return Rollback, nil
	case Rollback, Uninstall, DoNothing:
		return p, nil
	default:
		return "", errors.Errorf("unknown failure policy %q, expected one of rollback, uninstall, donothing", s)
	}
}

// WorkflowRollback is run by the Rollback policy before uninstalling.
const WorkflowRollback = "rollback"

// Manager is the part of the manager client the harness drives.
type Manager interface {
	UploadBlueprint(ctx context.Context, id, path string, timeout time.Duration) (*manager.Blueprint, error)
	DeleteBlueprint(ctx context.Context, id string, force bool) error
	CreateDeployment(ctx context.Context, id, blueprint string, inputs map[string]interface{}) (*manager.Deployment, error)
	ListDeployments(ctx context.Context, blueprint string) ([]manager.Deployment, error)
	DeleteDeployment(ctx context.Context, id string, force bool) error
	WaitForDeploymentEnvironment(ctx context.Context, deployment string, opts manager.WaitOptions) (*manager.Execution, error)
	StartExecution(ctx context.Context, deployment, workflow string, params map[string]interface{}) (*manager.Execution, error)
	WaitForExecution(ctx context.Context, id string, opts manager.WaitOptions) (*manager.Execution, error)
	GetExecution(ctx context.Context, id string) (*manager.Execution, error)
	AllEvents(ctx context.Context, execution string) ([]manager.Event, error)
}

// Workflow is an extra workflow run between install and uninstall.
type Workflow struct {
	Name       string
	Parameters map[string]interface{}
}

// Test describes one blueprint test.
type Test struct {
	// Path is the blueprint file.
	Path string
	// ID names the blueprint and deployment. Generated from the blueprint
	// directory when empty.
	ID        string
	Inputs    map[string]interface{}
	Workflows []Workflow
	// Timeout bounds every single workflow.
	Timeout   time.Duration
	OnFailure OnFailure
	// KeepOnSuccess leaves the deployment installed when the test passes.
	KeepOnSuccess bool
}

// Runner executes tests.
type Runner struct {
	Manager Manager
	// Interval is the execution polling interval.
	Interval time.Duration
	// GracePeriod is waited before re-checking an execution that timed out.
	GracePeriod time.Duration
}

// NewRunner returns a runner with the default polling settings.
func NewRunner(m Manager) *Runner {
	return &Runner{Manager: m, Interval: 5 * time.Second, GracePeriod: time.Minute}
}

// GenerateID derives a unique id from the blueprint location.
func GenerateID(path string) string {
	base := filepath.Base(filepath.Dir(path))
	if base == "." || base == string(filepath.Separator) {
		base = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return fmt.Sprintf("%s-%s", strings.ReplaceAll(base, "_", "-"), uuid.New().String()[:8])
}

func (r *Runner) waitOptions(t Test) manager.WaitOptions {
	return manager.WaitOptions{Timeout: t.Timeout, Interval: r.Interval, LogEvents: true}
}

// Test runs install, any extra workflows and uninstall of the blueprint,
// cleaning up according to the failure policy when a step fails.
func (r *Runner) Test(ctx context.Context, t Test) error {
	if t.ID == "" {
		t.ID = GenerateID(t.Path)
	}
	if t.OnFailure == "" {
		t.OnFailure = Rollback
	}
	log := logrus.WithFields(logrus.Fields{"blueprint": t.ID, "path": t.Path})
	log.Info("Starting blueprint test.")
	start := time.Now()

	if _, err := r.Manager.UploadBlueprint(ctx, t.ID, t.Path, t.Timeout); err != nil {
		return errors.Wrapf(err, "uploading blueprint %s", t.Path)
	}
	if _, err := r.Manager.CreateDeployment(ctx, t.ID, t.ID, t.Inputs); err != nil {
		return r.fail(ctx, t, false, errors.Wrapf(err, "creating deployment %s", t.ID))
	}
	if _, err := r.Manager.WaitForDeploymentEnvironment(ctx, t.ID, r.waitOptions(t)); err != nil {
		r.dumpEvents(ctx, err)
		return r.fail(ctx, t, false, errors.Wrapf(err, "creating environment of %s", t.ID))
	}
	if err := r.run(ctx, t, manager.WorkflowInstall, nil); err != nil {
		return r.fail(ctx, t, true, err)
	}
	for _, w := range t.Workflows {
		if err := r.run(ctx, t, w.Name, w.Parameters); err != nil {
			return r.fail(ctx, t, true, err)
		}
	}
	if t.KeepOnSuccess {
		log.WithField("duration", time.Since(start).Round(time.Second)).Info("Blueprint test passed, deployment kept.")
		return nil
	}
	if err := r.run(ctx, t, manager.WorkflowUninstall, nil); err != nil {
		return r.fail(ctx, t, false, err)
	}
	if err := r.remove(ctx, t.ID); err != nil {
		return err
	}
	log.WithField("duration", time.Since(start).Round(time.Second)).Info("Blueprint test passed.")
	return nil
}

// run starts workflow and waits for it. A timed out execution gets one more
// look after the grace period, since the manager may finish just late.
func (r *Runner) run(ctx context.Context, t Test, workflow string, params map[string]interface{}) error {
	e, err := r.Manager.StartExecution(ctx, t.ID, workflow, params)
	if err != nil {
		return errors.Wrapf(err, "starting %s on %s", workflow, t.ID)
	}
	_, err = r.Manager.WaitForExecution(ctx, e.ID, r.waitOptions(t))
	if manager.IsTimeout(err) {
		logrus.WithFields(logrus.Fields{"execution": e.ID, "grace": r.GracePeriod}).Warn("Execution timed out, checking again after the grace period.")
		select {
		case <-time.After(r.GracePeriod):
		case <-ctx.Done():
			return ctx.Err()
		}
		latest, getErr := r.Manager.GetExecution(ctx, e.ID)
		switch {
		case getErr != nil:
			err = utilerrors.NewAggregate([]error{err, getErr})
		case latest.Status == manager.StatusTerminated:
			err = nil
		case latest.Terminal():
			err = &manager.ExecutionFailedError{Execution: latest}
		}
	}
	if err != nil {
		r.dumpEvents(ctx, err)
		return errors.Wrapf(err, "running %s on %s", workflow, t.ID)
	}
	return nil
}

// dumpEvents logs every event of the execution behind err.
func (r *Runner) dumpEvents(ctx context.Context, err error) {
	var execution *manager.Execution
	switch e := errors.Cause(err).(type) {
	case *manager.ExecutionFailedError:
		execution = e.Execution
	case *manager.TimeoutError:
		execution = e.Execution
	}
	if execution == nil || execution.ID == "" {
		return
	}
	events, eventsErr := r.Manager.AllEvents(ctx, execution.ID)
	if eventsErr != nil {
		logrus.WithError(eventsErr).Warn("Failed to fetch events of the failed execution.")
		return
	}
	log := logrus.WithField("execution", execution.ID)
	log.Errorf("Events of failed %s execution:", execution.WorkflowID)
	for _, ev := range events {
		log.Error(ev.String())
	}
}

// fail applies the failure policy and returns cause together with any
// cleanup errors.
func (r *Runner) fail(ctx context.Context, t Test, installed bool, cause error) error {
	log := logrus.WithFields(logrus.Fields{"blueprint": t.ID, "policy": t.OnFailure})
	log.WithError(cause).Error("Blueprint test failed.")
	errs := []error{cause}
	switch t.OnFailure {
	case DoNothing:
		log.Info("Leaving the deployment as it is.")
		return cause
	case Rollback:
		if installed {
			if err := r.cleanupWorkflow(ctx, t, WorkflowRollback, nil); err != nil {
				errs = append(errs, err)
			}
		}
		fallthrough
	case Uninstall:
		if installed {
			if err := r.cleanupWorkflow(ctx, t, manager.WorkflowUninstall, map[string]interface{}{"ignore_failure": true}); err != nil {
				errs = append(errs, err)
			}
		}
		if err := r.remove(ctx, t.ID); err != nil {
			errs = append(errs, err)
		}
	}
	return utilerrors.NewAggregate(errs)
}

func (r *Runner) cleanupWorkflow(ctx context.Context, t Test, workflow string, params map[string]interface{}) error {
	e, err := r.Manager.StartExecution(ctx, t.ID, workflow, params)
	if err != nil {
		return errors.Wrapf(err, "starting %s on %s", workflow, t.ID)
	}
	if _, err := r.Manager.WaitForExecution(ctx, e.ID, r.waitOptions(t)); err != nil {
		return errors.Wrapf(err, "running %s on %s", workflow, t.ID)
	}
	return nil
}

// remove deletes the deployment and blueprint id.
func (r *Runner) remove(ctx context.Context, id string) error {
	var errs []error
	if err := r.Manager.DeleteDeployment(ctx, id, true); err != nil {
		errs = append(errs, errors.Wrapf(err, "deleting deployment %s", id))
	}
	if err := r.Manager.DeleteBlueprint(ctx, id, true); err != nil {
		errs = append(errs, errors.Wrapf(err, "deleting blueprint %s", id))
	}
	return utilerrors.NewAggregate(errs)
}

// Validate uploads the blueprint under a throwaway id and deletes it again.
func (r *Runner) Validate(ctx context.Context, path string, timeout time.Duration) error {
	id := GenerateID(path)
	logrus.WithFields(logrus.Fields{"blueprint": id, "path": path}).Info("Validating blueprint.")
	if _, err := r.Manager.UploadBlueprint(ctx, id, path, timeout); err != nil {
		return errors.Wrapf(err, "validating %s", path)
	}
	return r.Manager.DeleteBlueprint(ctx, id, true)
}

// DeleteDeployments uninstalls, when asked, and deletes every deployment of
// the blueprint. With an empty blueprint all deployments are removed.
func (r *Runner) DeleteDeployments(ctx context.Context, blueprint string, uninstall bool, timeout time.Duration) error {
	deployments, err := r.Manager.ListDeployments(ctx, blueprint)
	if err != nil {
		return err
	}
	sort.Slice(deployments, func(i, j int) bool { return deployments[i].ID < deployments[j].ID })
	var errs []error
	for _, d := range deployments {
		if uninstall {
			t := Test{ID: d.ID, Timeout: timeout}
			if err := r.cleanupWorkflow(ctx, t, manager.WorkflowUninstall, map[string]interface{}{"ignore_failure": true}); err != nil {
				errs = append(errs, err)
			}
		}
		if err := r.Manager.DeleteDeployment(ctx, d.ID, true); err != nil {
			errs = append(errs, err)
		}
	}
	return utilerrors.NewAggregate(errs)
}
