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
	"encoding/base64"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
)

var ciEnv = []string{
	"RELEASE_BUILD_TOKEN", "CIRCLE_PROJECT_USERNAME", "CIRCLE_PROJECT_REPONAME",
	"CIRCLE_SHA1", "CIRCLE_BRANCH", "CIRCLE_TAG", "CIRCLE_PULL_REQUEST",
	"AWS_DEFAULT_REGION", "aws_access_key_id", "aws_secret_access_key",
	"CLOUDIFY_HOST", "CLOUDIFY_SSL", "CLOUDIFY_USERNAME", "CLOUDIFY_PASSWORD",
	"CLOUDIFY_TOKEN", "CLOUDIFY_TENANT", "TEST_LICENSE", "MARKETPLACE_API_URL",
}

// setEnv clears the CI environment and then applies env.
func setEnv(t *testing.T, env map[string]string) {
	t.Helper()
	for _, k := range ciEnv {
		t.Setenv(k, "")
	}
	for k, v := range env {
		t.Setenv(k, v)
	}
}

func parse(t *testing.T, add func(*pflag.FlagSet), args ...string) {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	add(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parsing %v: %v", args, err)
	}
}

func TestGitHubOptions(t *testing.T) {
	testCases := []struct {
		name      string
		env       map[string]string
		args      []string
		expected  GitHubOptions
		expectErr bool
	}{
		{
			name:     "from environment",
			env:      map[string]string{"RELEASE_BUILD_TOKEN": "t0k3n", "CIRCLE_PROJECT_USERNAME": "cloudify-cosmo", "CIRCLE_PROJECT_REPONAME": "cloudify-aws-plugin"},
			expected: GitHubOptions{Token: "t0k3n", Org: "cloudify-cosmo", Repo: "cloudify-aws-plugin"},
		},
		{
			name:     "flags win",
			env:      map[string]string{"RELEASE_BUILD_TOKEN": "t0k3n", "CIRCLE_PROJECT_USERNAME": "cloudify-cosmo", "CIRCLE_PROJECT_REPONAME": "cloudify-aws-plugin"},
			args:     []string{"--repo=cloudify-gcp-plugin"},
			expected: GitHubOptions{Token: "t0k3n", Org: "cloudify-cosmo", Repo: "cloudify-gcp-plugin"},
		},
		{
			name:     "dry run needs no token",
			args:     []string{"--org=o", "--repo=r", "--dry-run"},
			expected: GitHubOptions{Org: "o", Repo: "r", DryRun: true},
		},
		{
			name:      "token required",
			args:      []string{"--org=o", "--repo=r"},
			expectErr: true,
		},
		{
			name:     "enterprise endpoint",
			args:     []string{"--org=o", "--repo=r", "--dry-run", "--github-endpoint=https://github.example.com/"},
			expected: GitHubOptions{Org: "o", Repo: "r", DryRun: true, Endpoint: "https://github.example.com/"},
		},
		{
			name:      "invalid endpoint",
			args:      []string{"--org=o", "--repo=r", "--dry-run", "--github-endpoint=github"},
			expectErr: true,
		},
		{
			name:      "repository required",
			env:       map[string]string{"RELEASE_BUILD_TOKEN": "t0k3n"},
			expectErr: true,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			setEnv(t, tc.env)
			var o GitHubOptions
			parse(t, o.AddFlags, tc.args...)
			err := o.Validate()
			if (err != nil) != tc.expectErr {
				t.Fatalf("expected error %t, got %v", tc.expectErr, err)
			}
			if err == nil {
				if diff := cmp.Diff(tc.expected, o); diff != "" {
					t.Errorf("options differ (-want +got):\n%s", diff)
				}
			}
		})
	}
}

func TestPullRequestNumber(t *testing.T) {
	testCases := []struct {
		name      string
		pr        string
		expected  int
		expectErr bool
	}{
		{name: "unset"},
		{name: "number", pr: "42", expected: 42},
		{name: "url", pr: "https://github.com/cloudify-cosmo/cloudify-aws-plugin/pull/417", expected: 417},
		{name: "trailing slash", pr: "https://github.com/o/r/pull/9/", expected: 9},
		{name: "garbage", pr: "https://github.com/o/r/pull/new", expectErr: true},
		{name: "negative", pr: "-3", expectErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			o := CIOptions{PullRequest: tc.pr}
			n, err := o.PullRequestNumber()
			if (err != nil) != tc.expectErr {
				t.Fatalf("expected error %t, got %v", tc.expectErr, err)
			}
			if n != tc.expected {
				t.Errorf("expected %d, got %d", tc.expected, n)
			}
		})
	}
}

func TestCIOptionsFromEnvironment(t *testing.T) {
	setEnv(t, map[string]string{"CIRCLE_SHA1": "abc", "CIRCLE_BRANCH": "master", "CIRCLE_PULL_REQUEST": "https://github.com/o/r/pull/5"})
	var o CIOptions
	parse(t, o.AddFlags, "--tag=3.0.1")
	if err := o.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := CIOptions{SHA: "abc", Branch: "master", Tag: "3.0.1", PullRequest: "https://github.com/o/r/pull/5"}
	if diff := cmp.Diff(expected, o); diff != "" {
		t.Errorf("options differ (-want +got):\n%s", diff)
	}
}

func TestS3Options(t *testing.T) {
	testCases := []struct {
		name      string
		env       map[string]string
		args      []string
		expectErr bool
	}{
		{
			name: "default credential chain",
			args: []string{"--bucket=cloudify-release-eu"},
		},
		{
			name: "keys from environment",
			env:  map[string]string{"aws_access_key_id": "YWtpZA==", "aws_secret_access_key": "c2VjcmV0", "AWS_DEFAULT_REGION": "eu-west-1"},
			args: []string{"--bucket=cloudify-release-eu"},
		},
		{
			name: "local mirror",
			args: []string{"--bucket=file:///tmp/mirror"},
		},
		{
			name:      "bucket required",
			expectErr: true,
		},
		{
			name:      "half a key pair",
			env:       map[string]string{"aws_access_key_id": "YWtpZA=="},
			args:      []string{"--bucket=b"},
			expectErr: true,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			setEnv(t, tc.env)
			var o S3Options
			parse(t, o.AddFlags, tc.args...)
			err := o.Validate()
			if (err != nil) != tc.expectErr {
				t.Fatalf("expected error %t, got %v", tc.expectErr, err)
			}
			if err != nil {
				return
			}
			creds := o.Credentials()
			if creds.Region != tc.env["AWS_DEFAULT_REGION"] || creds.AccessKeyBase64 != tc.env["aws_access_key_id"] {
				t.Errorf("unexpected credentials %+v", creds)
			}
		})
	}
}

func TestManagerOptions(t *testing.T) {
	testCases := []struct {
		name            string
		env             map[string]string
		args            []string
		expectedBaseURL string
		expectErr       bool
	}{
		{
			name:            "password from environment",
			env:             map[string]string{"CLOUDIFY_HOST": "10.0.0.2", "CLOUDIFY_USERNAME": "admin", "CLOUDIFY_PASSWORD": "admin"},
			expectedBaseURL: "http://10.0.0.2",
		},
		{
			name:            "ssl",
			env:             map[string]string{"CLOUDIFY_HOST": "10.0.0.2", "CLOUDIFY_SSL": "true", "CLOUDIFY_TOKEN": "tok"},
			expectedBaseURL: "https://10.0.0.2",
		},
		{
			name:            "flag overrides ssl",
			env:             map[string]string{"CLOUDIFY_SSL": "true"},
			args:            []string{"--manager-host=manager.local", "--manager-ssl=false", "--manager-token=tok"},
			expectedBaseURL: "http://manager.local",
		},
		{
			name:      "host required",
			args:      []string{"--manager-token=tok"},
			expectErr: true,
		},
		{
			name:      "credentials required",
			args:      []string{"--manager-host=h", "--manager-username=admin"},
			expectErr: true,
		},
		{
			name:      "bad ssl",
			args:      []string{"--manager-host=h", "--manager-token=t", "--manager-ssl=sometimes"},
			expectErr: true,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			setEnv(t, tc.env)
			var o ManagerOptions
			parse(t, o.AddFlags, tc.args...)
			err := o.Validate()
			if (err != nil) != tc.expectErr {
				t.Fatalf("expected error %t, got %v", tc.expectErr, err)
			}
			if err != nil {
				return
			}
			if got := o.ManagerClient().BaseURL(); got != tc.expectedBaseURL {
				t.Errorf("expected base URL %q, got %q", tc.expectedBaseURL, got)
			}
		})
	}
}

func TestLicenseOptions(t *testing.T) {
	setEnv(t, map[string]string{"TEST_LICENSE": base64.StdEncoding.EncodeToString([]byte("license: yes"))})
	var o LicenseOptions
	if err := o.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := o.License()
	if err != nil || string(b) != "license: yes" {
		t.Errorf("unexpected license %q: %v", b, err)
	}

	file := filepath.Join(t.TempDir(), "license.yaml")
	if err := ioutil.WriteFile(file, []byte("from file"), 0644); err != nil {
		t.Fatal(err)
	}
	o = LicenseOptions{File: file}
	if b, err := o.License(); err != nil || string(b) != "from file" {
		t.Errorf("unexpected license %q: %v", b, err)
	}

	setEnv(t, nil)
	o = LicenseOptions{}
	if err := o.Validate(); err == nil {
		t.Error("expected an error without a license")
	}
}

func TestMarketplaceOptionsDefault(t *testing.T) {
	setEnv(t, nil)
	var o MarketplaceOptions
	if err := o.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.URL == "" {
		t.Error("expected the default marketplace URL")
	}
	setEnv(t, map[string]string{"MARKETPLACE_API_URL": "http://localhost:8080"})
	o = MarketplaceOptions{}
	_ = o.Validate()
	if o.URL != "http://localhost:8080" {
		t.Errorf("expected the environment URL, got %q", o.URL)
	}
}
