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

package flagutil

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

// CIOptions describe the build being run.
type CIOptions struct {
	SHA         string
	Branch      string
	Tag         string
	PullRequest string
}

// AddFlags injects CI options into the given FlagSet.
func (o *CIOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.SHA, "sha", "", "Commit being built. Defaults to $CIRCLE_SHA1.")
	fs.StringVar(&o.Branch, "branch", "", "Branch being built. Defaults to $CIRCLE_BRANCH.")
	fs.StringVar(&o.Tag, "tag", "", "Tag being built. Defaults to $CIRCLE_TAG.")
	fs.StringVar(&o.PullRequest, "pull-request", "", "Pull request number or URL. Defaults to $CIRCLE_PULL_REQUEST.")
}

// Validate fills defaults from the environment.
func (o *CIOptions) Validate() error {
	MigrateOptions([]MigratedOption{
		{Env: "CIRCLE_SHA1", Option: &o.SHA, Name: "--sha"},
		{Env: "CIRCLE_BRANCH", Option: &o.Branch, Name: "--branch"},
		{Env: "CIRCLE_TAG", Option: &o.Tag, Name: "--tag"},
		{Env: "CIRCLE_PULL_REQUEST", Option: &o.PullRequest, Name: "--pull-request"},
	})
	if o.PullRequest != "" {
		if _, err := o.PullRequestNumber(); err != nil {
			return err
		}
	}
	return nil
}

// PullRequestNumber parses the pull request, given as a number or as a URL
// ending in /pull/<number>. Zero means no pull request.
func (o *CIOptions) PullRequestNumber() (int, error) {
	pr := strings.TrimSuffix(strings.TrimSpace(o.PullRequest), "/")
	if pr == "" {
		return 0, nil
	}
	if i := strings.LastIndex(pr, "/"); i >= 0 {
		pr = pr[i+1:]
	}
	n, err := strconv.Atoi(pr)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid pull request %q", o.PullRequest)
	}
	return n, nil
}
