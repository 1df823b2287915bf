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

// Package dsl rewrites plugin manifests so that they can be consumed by
// managers that only understand an older DSL version.
package dsl

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/util/sets"
)

var (
	// ErrUnsupportedTransition is returned for any version pair without rules.
	ErrUnsupportedTransition = errors.New("unsupported dsl transition")
	// ErrTargetExists is returned when the destination exists and overwriting was not requested.
	ErrTargetExists = errors.New("target file already exists")
)

type transition struct {
	from, to Version
}

type rules struct {
	// strip removes these keys from every definition.
	strip sets.String
	// sections are top level keys removed from the document.
	sections []string
}

var transitions = map[transition]rules{
	{from: V1_5, to: V1_4}: {},
	{from: V1_4, to: V1_3}: {
		strip:    sets.NewString("item_type", "constraints", "display_label", "hidden", "description"),
		sections: []string{"labels", "blueprint_labels"},
	},
	{from: V1_3, to: V2}: {
		strip:    sets.NewString("item_type", "constraints", "display_label", "hidden", "description"),
		sections: []string{"labels", "blueprint_labels"},
	},
}

// definitionPaths locate the maps whose values are property, input or
// parameter definitions. "*" matches every key of a mapping.
var definitionPaths = [][]string{
	{"data_types", "*", "properties"},
	{"node_types", "*", "properties"},
	{"node_types", "*", "interfaces", "*", "*", "inputs"},
	{"relationships", "*", "properties"},
	{"relationships", "*", "source_interfaces", "*", "*", "inputs"},
	{"relationships", "*", "target_interfaces", "*", "*", "inputs"},
	{"workflows", "*", "parameters"},
}

// Supported reports whether there are rules for from -> to.
func Supported(from, to Version) bool {
	_, ok := transitions[transition{from: from, to: to}]
	return ok
}

// Downgrade rewrites doc in place from one DSL version to the next older one.
func Downgrade(doc *yaml.Node, from, to Version) error {
	r, ok := transitions[transition{from: from, to: to}]
	if !ok {
		return errors.Wrapf(ErrUnsupportedTransition, "%s -> %s", from, to)
	}
	root := doc
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return errors.New("empty document")
		}
		expanded, err := expand(root.Content[0])
		if err != nil {
			return errors.Wrap(err, "expanding aliases")
		}
		root.Content[0] = expanded
		root = expanded
	} else {
		expanded, err := expand(root)
		if err != nil {
			return errors.Wrap(err, "expanding aliases")
		}
		*root = *expanded
	}
	if root.Kind != yaml.MappingNode {
		return errors.New("plugin manifest must be a mapping")
	}

	log := logrus.WithFields(logrus.Fields{"from": from, "to": to})
	if v := lookup(root, "tosca_definitions_version"); v != nil && v.Kind == yaml.ScalarNode {
		if v.Value != from.DefinitionsVersion() {
			log.Warnf("Document declares %s, downgrading it as %s", v.Value, from.DefinitionsVersion())
		}
		v.Value = to.DefinitionsVersion()
	}

	for _, section := range r.sections {
		if removeKey(root, section) {
			log.WithField("section", section).Debug("Removed section")
		}
	}

	vocabulary := to.types()
	for _, path := range definitionPaths {
		for _, defs := range collect(root, path) {
			forEach(defs, func(name, def *yaml.Node) {
				if def.Kind != yaml.MappingNode {
					return
				}
				rewriteDefinition(log.WithField("definition", name.Value), def, vocabulary, r.strip)
			})
		}
	}
	return nil
}

func rewriteDefinition(log *logrus.Entry, def *yaml.Node, vocabulary, strip sets.String) {
	for key := range strip {
		removeKey(def, key)
	}
	for _, key := range []string{"type", "item_type"} {
		v := lookup(def, key)
		if v == nil || v.Kind != yaml.ScalarNode || vocabulary.Has(v.Value) {
			continue
		}
		log.Debugf("Replacing %s %q with string", key, v.Value)
		v.Value = "string"
		v.Tag = "!!str"
	}
}

// Marshal encodes doc the way manifests are written to disk.
func Marshal(doc *yaml.Node) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal parses a manifest into a node tree.
func Unmarshal(data []byte) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind == 0 {
		return nil, errors.New("empty document")
	}
	return &doc, nil
}

// DowngradeBytes downgrades a serialized manifest.
func DowngradeBytes(data []byte, from, to Version) ([]byte, error) {
	doc, err := Unmarshal(data)
	if err != nil {
		return nil, errors.Wrap(err, "parsing plugin manifest")
	}
	if err := Downgrade(doc, from, to); err != nil {
		return nil, err
	}
	return Marshal(doc)
}

// DefaultTarget is the conventional destination for a downgrade of src.
func DefaultTarget(src string, to Version) string {
	return filepath.Join(filepath.Dir(src), to.FileName())
}

// DowngradeFile reads src, downgrades it and writes dst. An existing dst is
// only replaced when overwrite is set.
func DowngradeFile(src, dst string, from, to Version, overwrite bool) error {
	if !Supported(from, to) {
		return errors.Wrapf(ErrUnsupportedTransition, "%s -> %s", from, to)
	}
	if dst == "" {
		dst = DefaultTarget(src, to)
	}
	if _, err := os.Stat(dst); err == nil && !overwrite {
		return errors.Wrap(ErrTargetExists, dst)
	} else if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "checking %s", dst)
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return errors.Wrapf(err, "reading %s", src)
	}
	out, err := DowngradeBytes(data, from, to)
	if err != nil {
		return errors.Wrapf(err, "downgrading %s", src)
	}
	if err := os.WriteFile(dst, out, 0644); err != nil {
		return errors.Wrapf(err, "writing %s", dst)
	}
	logrus.WithFields(logrus.Fields{"src": src, "dst": dst, "from": from, "to": to}).Info("Wrote downgraded plugin manifest")
	return nil
}
