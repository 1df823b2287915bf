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

package dsl

import (
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"
)

// Version is a plugin DSL version.
type Version string

const (
	V1_3 Version = "1.3"
	V1_4 Version = "1.4"
	V1_5 Version = "1.5"
	// V2 is the 1.3 document published as v2_plugin.yaml.
	V2 Version = "v2"
)

const definitionsPrefix = "cloudify_dsl_"

// ParseVersion accepts "1.4", "1_4", "cloudify_dsl_1_4" and "v2".
func ParseVersion(s string) (Version, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.TrimPrefix(v, definitionsPrefix)
	v = strings.ReplaceAll(v, "_", ".")
	switch Version(v) {
	case V1_3, V1_4, V1_5, V2:
		return Version(v), nil
	}
	return "", fmt.Errorf("unknown dsl version %q", s)
}

// DefinitionsVersion is the tosca_definitions_version value for v.
func (v Version) DefinitionsVersion() string {
	if v == V2 {
		return definitionsPrefix + "1_3"
	}
	return definitionsPrefix + strings.ReplaceAll(string(v), ".", "_")
}

// FileName is the conventional manifest file name for v.
func (v Version) FileName() string {
	switch v {
	case V1_3:
		return "plugin.yaml"
	case V2:
		return "v2_plugin.yaml"
	}
	return "plugin_" + strings.ReplaceAll(string(v), ".", "_") + ".yaml"
}

var (
	types1_3 = sets.NewString("string", "boolean", "integer", "float", "list", "dict")
	types1_4 = types1_3.Union(sets.NewString(
		"regex",
		"textarea",
		"blueprint_id",
		"deployment_id",
		"capability_value",
		"secret_key",
		"node_id",
		"node_type",
		"node_instance",
		"scaling_group",
	))
	types1_5 = types1_4.Union(sets.NewString("operation_name", "deployment_group", "tenant_name"))
)

// Types returns the legal property types of v.
func (v Version) Types() sets.String {
	return sets.NewString(v.types().UnsortedList()...)
}

func (v Version) types() sets.String {
	switch v {
	case V1_3, V2:
		return types1_3
	case V1_4:
		return types1_4
	case V1_5:
		return types1_5
	}
	return sets.NewString()
}
