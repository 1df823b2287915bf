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
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseInputs(t *testing.T) {
	testCases := []struct {
		name      string
		file      string
		pairs     []string
		expected  map[string]interface{}
		expectErr bool
	}{
		{
			name:     "nothing",
			expected: map[string]interface{}{},
		},
		{
			name: "file",
			file: "testdata/inputs.yaml",
			expected: map[string]interface{}{
				"region":         "eu-west-1",
				"instance_count": float64(2),
				"tags":           map[string]interface{}{"owner": "ci"},
			},
		},
		{
			name:  "pairs override file",
			file:  "testdata/inputs.yaml",
			pairs: []string{"region=us-east-1;enabled=true", "instance_count=3", "note=a: b"},
			expected: map[string]interface{}{
				"region":         "us-east-1",
				"instance_count": float64(3),
				"enabled":        true,
				"note":           "a: b",
				"tags":           map[string]interface{}{"owner": "ci"},
			},
		},
		{
			name:     "empty value",
			pairs:    []string{"password="},
			expected: map[string]interface{}{"password": ""},
		},
		{
			name:      "malformed pair",
			pairs:     []string{"region"},
			expectErr: true,
		},
		{
			name:      "missing file",
			file:      "testdata/missing.yaml",
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			inputs, err := ParseInputs(tc.file, tc.pairs)
			if (err != nil) != tc.expectErr {
				t.Fatalf("expected error %t, got %v", tc.expectErr, err)
			}
			if err != nil {
				return
			}
			if diff := cmp.Diff(tc.expected, inputs); diff != "" {
				t.Errorf("inputs differ (-want +got):\n%s", diff)
			}
		})
	}
}
