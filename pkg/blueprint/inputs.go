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

package blueprint

import (
	"io/ioutil"
	"strings"

	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"
)

// ParseInputs merges deployment inputs from a YAML file and key=value pairs;
// pairs win. Values in pairs are read as YAML scalars, so "3" is a number and
// "true" a boolean.
func ParseInputs(file string, pairs []string) (map[string]interface{}, error) {
	inputs := map[string]interface{}{}
	if file != "" {
		b, err := ioutil.ReadFile(file)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &inputs); err != nil {
			return nil, errors.Wrapf(err, "parsing inputs file %s", file)
		}
		if inputs == nil {
			inputs = map[string]interface{}{}
		}
	}
	for _, pair := range pairs {
		for _, item := range strings.Split(pair, ";") {
			if strings.TrimSpace(item) == "" {
				continue
			}
			parts := strings.SplitN(item, "=", 2)
			if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
				return nil, errors.Errorf("input %q is not of the form key=value", item)
			}
			var value interface{}
			if err := yaml.Unmarshal([]byte(parts[1]), &value); err != nil || value == nil {
				value = parts[1]
			}
			if _, nested := value.(map[string]interface{}); nested {
				value = parts[1]
			}
			inputs[strings.TrimSpace(parts[0])] = value
		}
	}
	return inputs, nil
}
