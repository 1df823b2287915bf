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
	"errors"
	"fmt"
	"net/url"

	"github.com/spf13/pflag"

	"github.com/cloudify-cosmo/ecosystem-test/pkg/ghclient"
	"github.com/cloudify-cosmo/ecosystem-test/pkg/logrusutil"
)

// GitHubOptions holds options for interacting with GitHub.
type GitHubOptions struct {
	Token    string
	Org      string
	Repo     string
	Endpoint string
	DryRun   bool
}

// AddFlags injects GitHub options into the given FlagSet.
func (o *GitHubOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Token, "github-token", "", "GitHub token. Defaults to $RELEASE_BUILD_TOKEN.")
	fs.StringVar(&o.Org, "org", "", "Repository owner. Defaults to $CIRCLE_PROJECT_USERNAME.")
	fs.StringVar(&o.Repo, "repo", "", "Repository name. Defaults to $CIRCLE_PROJECT_REPONAME.")
	fs.StringVar(&o.Endpoint, "github-endpoint", "", "GitHub API endpoint. Defaults to api.github.com.")
	fs.BoolVar(&o.DryRun, "dry-run", false, "Do not mutate GitHub, only log what would be done.")
}

func (o *GitHubOptions) migrated() []MigratedOption {
	return []MigratedOption{
		{Env: "RELEASE_BUILD_TOKEN", Option: &o.Token, Name: "--github-token"},
		{Env: "CIRCLE_PROJECT_USERNAME", Option: &o.Org, Name: "--org"},
		{Env: "CIRCLE_PROJECT_REPONAME", Option: &o.Repo, Name: "--repo"},
	}
}

// Validate fills defaults from the environment and checks the options.
func (o *GitHubOptions) Validate() error {
	MigrateOptions(o.migrated())
	if o.Org == "" || o.Repo == "" {
		return errors.New("--org and --repo are required")
	}
	if o.Token == "" && !o.DryRun {
		return fmt.Errorf("--github-token is required unless --dry-run is set")
	}
	if o.Endpoint != "" {
		if u, err := url.ParseRequestURI(o.Endpoint); err != nil || u.Host == "" {
			return fmt.Errorf("invalid --github-endpoint URI: %q", o.Endpoint)
		}
	}
	return nil
}

// GitHubClient returns a client for the options. The token is censored
// from the logs.
func (o *GitHubOptions) GitHubClient() (*ghclient.Client, error) {
	logrusutil.RegisterSecrets(o.Token)
	if o.Endpoint == "" {
		return ghclient.NewClient(o.Token, o.DryRun), nil
	}
	return ghclient.NewEnterpriseClient(o.Token, o.Endpoint, o.DryRun)
}
