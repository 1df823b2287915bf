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

// Package blueprints implements the blueprint validation and test commands.
package blueprints

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/cloudify-cosmo/ecosystem-test/pkg/blueprint"
	"github.com/cloudify-cosmo/ecosystem-test/pkg/container"
	"github.com/cloudify-cosmo/ecosystem-test/pkg/flagutil"
)

// MakeCommands returns the blueprint commands.
func MakeCommands() []*cobra.Command {
	return []*cobra.Command{
		makeValidate(),
		makeLocalTest(),
		makeRemoteTest(),
		makeDeleteDeployments(),
	}
}

type testOptions struct {
	id            string
	inputsFile    string
	inputs        []string
	workflows     []string
	timeout       time.Duration
	onFailure     string
	keepOnSuccess bool
	interval      time.Duration
	gracePeriod   time.Duration
}

func (o *testOptions) addFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.id, "id", "", "Blueprint and deployment id. Generated when empty; only valid with one blueprint.")
	fs.StringVar(&o.inputsFile, "inputs", "", "YAML file of deployment inputs.")
	fs.StringArrayVar(&o.inputs, "input", nil, "Deployment input as KEY=VALUE, several separated by ';'. May be repeated.")
	fs.StringArrayVar(&o.workflows, "workflow", nil, "Workflow to run after install, as NAME or NAME:KEY=VALUE;KEY=VALUE. May be repeated.")
	fs.DurationVar(&o.timeout, "timeout", 30*time.Minute, "Timeout of each workflow.")
	fs.StringVar(&o.onFailure, "on-failure", string(blueprint.Rollback), "What to do with a failed deployment: rollback, uninstall or donothing.")
	fs.BoolVar(&o.keepOnSuccess, "keep-on-success", false, "Leave the deployment installed when the test passes.")
	fs.DurationVar(&o.interval, "poll-interval", 5*time.Second, "Execution polling interval.")
	fs.DurationVar(&o.gracePeriod, "grace-period", time.Minute, "Wait before re-checking a timed out execution.")
}

// parseWorkflow reads NAME or NAME:KEY=VALUE;KEY=VALUE.
func parseWorkflow(s string) (blueprint.Workflow, error) {
	parts := strings.SplitN(s, ":", 2)
	w := blueprint.Workflow{Name: strings.TrimSpace(parts[0])}
	if w.Name == "" {
		return w, errors.Errorf("workflow %q has no name", s)
	}
	if len(parts) == 2 && strings.TrimSpace(parts[1]) != "" {
		params, err := blueprint.ParseInputs("", []string{parts[1]})
		if err != nil {
			return w, errors.Wrapf(err, "parsing parameters of %s", w.Name)
		}
		w.Parameters = params
	}
	return w, nil
}

// tests builds one test per blueprint path.
func (o *testOptions) tests(paths []string) ([]blueprint.Test, error) {
	if o.id != "" && len(paths) > 1 {
		return nil, errors.New("--id can only be used with a single blueprint")
	}
	policy, err := blueprint.ParseOnFailure(o.onFailure)
	if err != nil {
		return nil, err
	}
	inputs, err := blueprint.ParseInputs(o.inputsFile, o.inputs)
	if err != nil {
		return nil, err
	}
	var workflows []blueprint.Workflow
	for _, s := range o.workflows {
		w, err := parseWorkflow(s)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, w)
	}
	var tests []blueprint.Test
	for _, path := range paths {
		tests = append(tests, blueprint.Test{
			Path:          path,
			ID:            o.id,
			Inputs:        inputs,
			Workflows:     workflows,
			Timeout:       o.timeout,
			OnFailure:     policy,
			KeepOnSuccess: o.keepOnSuccess,
		})
	}
	return tests, nil
}

// runTests runs every test and reports all failures.
func runTests(ctx context.Context, r *blueprint.Runner, tests []blueprint.Test) error {
	var errs []error
	for _, t := range tests {
		if err := r.Test(ctx, t); err != nil {
			errs = append(errs, err)
		}
	}
	return utilerrors.NewAggregate(errs)
}

func (o *testOptions) runner(m blueprint.Manager) *blueprint.Runner {
	r := blueprint.NewRunner(m)
	r.Interval = o.interval
	r.GracePeriod = o.gracePeriod
	return r
}

func makeValidate() *cobra.Command {
	var (
		m       flagutil.ManagerOptions
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "validate-blueprint BLUEPRINT...",
		Short: "Check that blueprints upload cleanly, deleting them again.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := m.Validate(); err != nil {
				return err
			}
			r := blueprint.NewRunner(m.ManagerClient())
			var errs []error
			for _, path := range args {
				if err := r.Validate(cmd.Context(), path, timeout); err != nil {
					errs = append(errs, err)
				}
			}
			return utilerrors.NewAggregate(errs)
		},
	}
	m.AddFlags(cmd.Flags())
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "Timeout of each upload.")
	return cmd
}

func makeLocalTest() *cobra.Command {
	var (
		m    flagutil.ManagerOptions
		o    testOptions
		name string
	)
	cmd := &cobra.Command{
		Use:   "local-blueprint-test BLUEPRINT...",
		Short: "Test blueprints against a manager running in a local container.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if m.Host == "" {
				docker, err := container.New()
				if err != nil {
					return err
				}
				if m.Host, err = docker.IP(ctx, name); err != nil {
					return err
				}
			}
			if m.Token == "" && m.Username == "" && m.Password == "" {
				m.Username, m.Password = "admin", "admin"
			}
			if err := m.Validate(); err != nil {
				return err
			}
			tests, err := o.tests(args)
			if err != nil {
				return err
			}
			return runTests(ctx, o.runner(m.ManagerClient()), tests)
		},
	}
	m.AddFlags(cmd.Flags())
	o.addFlags(cmd.Flags())
	cmd.Flags().StringVar(&name, "container-name", container.DefaultName, "Manager container, used when --manager-host is not set.")
	return cmd
}

func makeRemoteTest() *cobra.Command {
	var (
		m flagutil.ManagerOptions
		o testOptions
	)
	cmd := &cobra.Command{
		Use:   "remote-blueprint-test BLUEPRINT...",
		Short: "Test blueprints against a remote manager.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := m.Validate(); err != nil {
				return err
			}
			tests, err := o.tests(args)
			if err != nil {
				return err
			}
			return runTests(cmd.Context(), o.runner(m.ManagerClient()), tests)
		},
	}
	m.AddFlags(cmd.Flags())
	o.addFlags(cmd.Flags())
	return cmd
}

func makeDeleteDeployments() *cobra.Command {
	var (
		m           flagutil.ManagerOptions
		blueprintID string
		uninstall   bool
		timeout     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "delete-deployments",
		Short: "Delete the deployments of a blueprint, or every deployment.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := m.Validate(); err != nil {
				return err
			}
			return blueprint.NewRunner(m.ManagerClient()).DeleteDeployments(cmd.Context(), blueprintID, uninstall, timeout)
		},
	}
	m.AddFlags(cmd.Flags())
	cmd.Flags().StringVar(&blueprintID, "blueprint", "", "Only delete deployments of this blueprint.")
	cmd.Flags().BoolVar(&uninstall, "uninstall", true, "Run uninstall before deleting.")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "Timeout of each uninstall.")
	return cmd
}
