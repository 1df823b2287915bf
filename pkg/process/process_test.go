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

package process

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
)

func TestRun(t *testing.T) {
	cases := []struct {
		name         string
		cmd          Command
		expectOutput string
		expectCode   int
		expectErr    bool
		expectTO     bool
	}{
		{
			name:         "combined output is captured",
			cmd:          Command{Name: "sh", Args: []string{"-c", "echo out; echo err 1>&2"}},
			expectOutput: "out\nerr",
		},
		{
			name:       "exit code is reported",
			cmd:        Command{Name: "sh", Args: []string{"-c", "echo failing; exit 3"}},
			expectCode: 3,
			expectErr:  true,
		},
		{
			name:      "timeout kills the command",
			cmd:       Command{Name: "sh", Args: []string{"-c", "sleep 5"}, Timeout: 100 * time.Millisecond},
			expectErr: true,
			expectTO:  true,
		},
		{
			name:         "env is appended",
			cmd:          Command{Name: "sh", Args: []string{"-c", "echo $ECO_TEST_VALUE"}, Env: []string{"ECO_TEST_VALUE=hello"}},
			expectOutput: "hello",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := Exec{}.Run(context.Background(), tc.cmd)
			if (err != nil) != tc.expectErr {
				t.Fatalf("expected error %t, got %v", tc.expectErr, err)
			}
			if tc.expectTO != errors.Is(err, ErrTimeout) {
				t.Errorf("expected timeout %t, got %v", tc.expectTO, err)
			}
			if res == nil {
				t.Fatal("expected a result")
			}
			if !tc.expectTO && res.ExitCode != tc.expectCode {
				t.Errorf("expected exit code %d, got %d", tc.expectCode, res.ExitCode)
			}
			if tc.expectOutput != "" && res.Output != tc.expectOutput {
				t.Errorf("expected output %q, got %q", tc.expectOutput, res.Output)
			}
		})
	}
}

func TestRunMissingBinary(t *testing.T) {
	if _, err := (Exec{}).Run(context.Background(), Command{Name: "definitely-not-a-real-binary"}); err == nil {
		t.Error("expected an error for a missing binary")
	}
}
