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
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/util/sets"
)

// lookup returns the value for key in mapping m, or nil.
func lookup(m *yaml.Node, key string) *yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

// removeKey deletes key from mapping m and reports whether it was present.
func removeKey(m *yaml.Node, key string) bool {
	if m == nil || m.Kind != yaml.MappingNode {
		return false
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content = append(m.Content[:i], m.Content[i+2:]...)
			return true
		}
	}
	return false
}

func forEach(m *yaml.Node, fn func(key, value *yaml.Node)) {
	if m == nil || m.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		fn(m.Content[i], m.Content[i+1])
	}
}

// collect follows path from n and returns every node it reaches.
func collect(n *yaml.Node, path []string) []*yaml.Node {
	if len(path) == 0 {
		return []*yaml.Node{n}
	}
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	if path[0] != "*" {
		next := lookup(n, path[0])
		if next == nil {
			return nil
		}
		return collect(next, path[1:])
	}
	var found []*yaml.Node
	forEach(n, func(_, value *yaml.Node) {
		found = append(found, collect(value, path[1:])...)
	})
	return found
}

// isMerge reports whether key is a "<<" merge key.
func isMerge(key *yaml.Node) bool {
	if key.Kind != yaml.ScalarNode || key.Value != "<<" {
		return false
	}
	return key.Tag == "!!merge" || (key.Tag == "" && key.Style == 0)
}

// expand replaces every alias with a copy of its anchored node and inlines
// merge keys, leaving a tree of plain nodes without anchors. Keys of the
// mapping itself win over merged keys, and earlier merge sources win over
// later ones.
func expand(n *yaml.Node) (*yaml.Node, error) {
	return expandNode(n, map[*yaml.Node]bool{})
}

func expandNode(n *yaml.Node, visiting map[*yaml.Node]bool) (*yaml.Node, error) {
	if n.Kind == yaml.AliasNode {
		if n.Alias == nil {
			return nil, errors.Errorf("line %d: unresolved alias *%s", n.Line, n.Value)
		}
		if visiting[n.Alias] {
			return nil, errors.Errorf("line %d: alias *%s refers to itself", n.Line, n.Value)
		}
		visiting[n.Alias] = true
		defer delete(visiting, n.Alias)
		return expandNode(deepCopy(n.Alias), visiting)
	}

	visiting[n] = true
	defer delete(visiting, n)
	n.Anchor = ""
	switch n.Kind {
	case yaml.DocumentNode, yaml.SequenceNode:
		for i, c := range n.Content {
			e, err := expandNode(c, visiting)
			if err != nil {
				return nil, err
			}
			n.Content[i] = e
		}
	case yaml.MappingNode:
		return n, expandMapping(n, visiting)
	}
	return n, nil
}

func expandMapping(m *yaml.Node, visiting map[*yaml.Node]bool) error {
	own := sets.NewString()
	for i := 0; i+1 < len(m.Content); i += 2 {
		if !isMerge(m.Content[i]) {
			own.Insert(m.Content[i].Value)
		}
	}

	var content []*yaml.Node
	merged := sets.NewString()
	for i := 0; i+1 < len(m.Content); i += 2 {
		key, err := expandNode(m.Content[i], visiting)
		if err != nil {
			return err
		}
		value, err := expandNode(m.Content[i+1], visiting)
		if err != nil {
			return err
		}
		if !isMerge(m.Content[i]) {
			content = append(content, key, value)
			continue
		}
		sources := []*yaml.Node{value}
		if value.Kind == yaml.SequenceNode {
			sources = value.Content
		}
		for _, src := range sources {
			if src.Kind != yaml.MappingNode {
				return errors.Errorf("line %d: merge value must be a mapping or a sequence of mappings", m.Content[i].Line)
			}
			for j := 0; j+1 < len(src.Content); j += 2 {
				k := src.Content[j].Value
				if own.Has(k) || merged.Has(k) {
					continue
				}
				merged.Insert(k)
				content = append(content, src.Content[j], src.Content[j+1])
			}
		}
	}
	m.Content = content
	return nil
}

// deepCopy copies n and its children. Aliases keep pointing at the
// original anchored nodes.
func deepCopy(n *yaml.Node) *yaml.Node {
	c := *n
	c.Content = make([]*yaml.Node, len(n.Content))
	for i, child := range n.Content {
		c.Content[i] = deepCopy(child)
	}
	return &c
}
