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

// Package plugin reads the metadata a plugin repository declares about itself:
// its manifests, changelog, python version module and built wagons.
package plugin

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"
)

// ManifestFiles are the manifest names a plugin repository may carry, in the
// order they are consulted.
var ManifestFiles = []string{"plugin.yaml", "plugin_1_4.yaml", "plugin_1_5.yaml", "v2_plugin.yaml"}

// Declaration is one entry of the manifest plugins section.
type Declaration struct {
	Executor       string `json:"executor,omitempty"`
	PackageName    string `json:"package_name,omitempty"`
	PackageVersion string `json:"package_version,omitempty"`
	SourceURL      string `json:"source,omitempty"`
	WagonURL       string `json:"wagon_url,omitempty"`
}

// Manifest is the subset of a plugin YAML needed for releases.
type Manifest struct {
	Path                   string                 `json:"-"`
	TOSCADefinitionVersion string                 `json:"tosca_definitions_version"`
	Plugins                map[string]Declaration `json:"plugins"`
}

// LoadManifest parses the manifest at path.
func LoadManifest(path string) (*Manifest, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m := &Manifest{Path: path}
	if err := yaml.Unmarshal(b, m); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	if len(m.Plugins) == 0 {
		return nil, errors.Errorf("%s declares no plugins", path)
	}
	return m, nil
}

// Names returns the declared plugin names in sorted order.
func (m *Manifest) Names() []string {
	names := make([]string, 0, len(m.Plugins))
	for name := range m.Plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Primary returns the first declaration by name.
func (m *Manifest) Primary() (string, Declaration) {
	name := m.Names()[0]
	return name, m.Plugins[name]
}

// Version returns the package version of the primary declaration.
func (m *Manifest) Version() string {
	_, d := m.Primary()
	return d.PackageVersion
}

// PackageName returns the package name of the primary declaration.
func (m *Manifest) PackageName() string {
	_, d := m.Primary()
	return d.PackageName
}

// FindManifests returns the paths of the manifests present in dir.
func FindManifests(dir string) ([]string, error) {
	var found []string
	for _, name := range ManifestFiles {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			found = append(found, path)
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}
	if len(found) == 0 {
		return nil, errors.Errorf("no plugin manifest found in %s", dir)
	}
	return found, nil
}
