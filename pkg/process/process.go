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

// Package process runs external commands synchronously, capturing their
// combined output to a temporary file and enforcing a wall-clock timeout.
package process

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds commands that do not set their own timeout.
const DefaultTimeout = 30 * time.Minute

// ErrTimeout is returned when a command outlives its timeout.
var ErrTimeout = errors.New("command timed out")

// Command describes a single invocation.
type Command struct {
	Name    string
	Args    []string
	Dir     string
	Env     []string
	Timeout time.Duration
	// Quiet suppresses logging of the captured output on success.
	Quiet bool
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result is the outcome of a finished command.
type Result struct {
	ExitCode int
	Output   string
	Duration time.Duration
}

// Runner runs commands. It is an interface so callers can be tested without
// spawning processes.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// Exec is the Runner that spawns real processes.
type Exec struct{}

// Run starts cmd and blocks until it exits or its timeout elapses.
func (Exec) Run(ctx context.Context, c Command) (*Result, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := os.CreateTemp("", "ecosystem-cmd-*.log")
	if err != nil {
		return nil, errors.Wrap(err, "creating output file")
	}
	defer os.Remove(out.Name())
	defer out.Close()

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	cmd.Stdout = out
	cmd.Stderr = out

	log := logrus.WithFields(logrus.Fields{"command": c.String(), "dir": c.Dir})
	log.Info("Running command")
	start := time.Now()
	runErr := cmd.Run()
	res := &Result{Duration: time.Since(start)}

	output, err := os.ReadFile(out.Name())
	if err != nil {
		return nil, errors.Wrap(err, "reading command output")
	}
	res.Output = strings.TrimSpace(string(output))
	if runErr != nil || !c.Quiet {
		logOutput(log, output)
	}

	if ctx.Err() == context.DeadlineExceeded {
		res.ExitCode = -1
		return res, errors.Wrapf(ErrTimeout, "%s after %v", c, timeout)
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, fmt.Errorf("%s exited with code %d", c, res.ExitCode)
		}
		return res, errors.Wrapf(runErr, "running %s", c)
	}
	log.WithField("duration", res.Duration).Debug("Command finished")
	return res, nil
}

func logOutput(log *logrus.Entry, output []byte) {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		log.Info(scanner.Text())
	}
}

// Output runs cmd with the default runner and returns its trimmed output.
func Output(ctx context.Context, name string, args ...string) (string, error) {
	res, err := Exec{}.Run(ctx, Command{Name: name, Args: args, Quiet: true})
	if err != nil {
		return "", err
	}
	return res.Output, nil
}
