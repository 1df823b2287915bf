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

package main

import (
	"bytes"
	"io/ioutil"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSubcommands(t *testing.T) {
	expected := []string{
		"create-bundle", "create-manager", "create-secret", "delete-asset", "delete-deployments",
		"download-asset", "download-from-s3", "downgrade-plugin-yaml", "list-assets", "list-bundle",
		"list-plugins", "local-blueprint-test", "manager-exec", "marketplace-latest", "marketplace-notify",
		"package-release", "prepare-test-manager", "remote-blueprint-test", "remove-manager",
		"update-plugins-json", "upload-assets", "upload-license", "upload-plugin", "upload-to-s3",
		"validate-blueprint", "validate-changelog", "validate-plugin-version", "verify-plugins-json",
	}
	var got []string
	for _, c := range makeRootCommand().Commands() {
		got = append(got, c.Name())
	}
	sort.Strings(got)
	sort.Strings(expected)
	if diff := cmp.Diff(expected, got); diff != "" {
		t.Errorf("subcommands differ (-want +got):\n%s", diff)
	}
}

func TestInvalidLogLevel(t *testing.T) {
	root := makeRootCommand()
	root.SetArgs([]string{"--log-level=loud", "verify-plugins-json", "missing.json"})
	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "loud") {
		t.Errorf("expected a log level error, got %v", err)
	}
}

func TestDowngradeCommand(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "plugin_1_4.yaml")
	manifest := `tosca_definitions_version: cloudify_dsl_1_4
plugins:
  aws:
    package_name: cloudify-aws-plugin
    package_version: '3.0.1'
blueprint_labels:
  obj-type:
    values: [aws]
node_types:
  cloudify.nodes.aws.ec2.Instances:
    properties:
      tags:
        type: list
        item_type: string
`
	if err := ioutil.WriteFile(src, []byte(manifest), 0644); err != nil {
		t.Fatal(err)
	}
	root := makeRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"downgrade-plugin-yaml", "--from=1.4", "--to=1.3", src})
	if err := root.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := ioutil.ReadFile(filepath.Join(dir, "plugin.yaml"))
	if err != nil {
		t.Fatalf("expected the default destination: %v", err)
	}
	for _, gone := range []string{"blueprint_labels", "item_type", "cloudify_dsl_1_4"} {
		if strings.Contains(string(data), gone) {
			t.Errorf("expected %q to be removed:\n%s", gone, data)
		}
	}

	root = makeRootCommand()
	root.SetArgs([]string{"downgrade-plugin-yaml", "--from=1.4", "--to=1.3", src})
	if err := root.Execute(); err == nil {
		t.Error("expected an error when the destination exists")
	}
}
