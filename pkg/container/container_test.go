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

package container

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"io/ioutil"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	"github.com/google/go-cmp/cmp"
	specs "github.com/opencontainers/image-spec/specs-go/v1"
)

type notFound struct{ error }

func (notFound) NotFound() {}

type fakeDocker struct {
	loaded     []byte
	config     *container.Config
	hostConfig *container.HostConfig
	name       string
	started    []string
	stopped    []string
	removed    []string
	copied     map[string]string
	stdout     string
	stderr     string
	exitCode   int
	ip         string
	stopErr    error
}

func (f *fakeDocker) ImageLoad(ctx context.Context, input io.Reader, quiet bool) (types.ImageLoadResponse, error) {
	b, err := ioutil.ReadAll(input)
	f.loaded = b
	return types.ImageLoadResponse{Body: ioutil.NopCloser(strings.NewReader(`{"stream":"Loaded image"}`))}, err
}

func (f *fakeDocker) ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *specs.Platform, containerName string) (container.ContainerCreateCreatedBody, error) {
	f.config, f.hostConfig, f.name = config, hostConfig, containerName
	return container.ContainerCreateCreatedBody{ID: "abc123"}, nil
}

func (f *fakeDocker) ContainerStart(ctx context.Context, containerID string, options types.ContainerStartOptions) error {
	f.started = append(f.started, containerID)
	return nil
}

func (f *fakeDocker) ContainerInspect(ctx context.Context, containerID string) (types.ContainerJSON, error) {
	settings := &types.NetworkSettings{}
	settings.IPAddress = f.ip
	return types.ContainerJSON{NetworkSettings: settings}, nil
}

func (f *fakeDocker) ContainerStop(ctx context.Context, containerID string, timeout *time.Duration) error {
	if f.stopErr != nil {
		return f.stopErr
	}
	f.stopped = append(f.stopped, containerID)
	return nil
}

func (f *fakeDocker) ContainerRemove(ctx context.Context, containerID string, options types.ContainerRemoveOptions) error {
	f.removed = append(f.removed, containerID)
	return nil
}

func (f *fakeDocker) ContainerExecCreate(ctx context.Context, container string, config types.ExecConfig) (types.IDResponse, error) {
	return types.IDResponse{ID: "exec1"}, nil
}

func (f *fakeDocker) ContainerExecAttach(ctx context.Context, execID string, config types.ExecStartCheck) (types.HijackedResponse, error) {
	var buf bytes.Buffer
	io.WriteString(stdcopy.NewStdWriter(&buf, stdcopy.Stdout), f.stdout)
	io.WriteString(stdcopy.NewStdWriter(&buf, stdcopy.Stderr), f.stderr)
	conn, other := net.Pipe()
	other.Close()
	return types.HijackedResponse{Conn: conn, Reader: bufio.NewReader(&buf)}, nil
}

func (f *fakeDocker) ContainerExecInspect(ctx context.Context, execID string) (types.ContainerExecInspect, error) {
	return types.ContainerExecInspect{ExecID: execID, ExitCode: f.exitCode}, nil
}

func (f *fakeDocker) CopyToContainer(ctx context.Context, containerID, dstPath string, content io.Reader, options types.CopyToContainerOptions) error {
	if f.copied == nil {
		f.copied = map[string]string{}
	}
	tr := tar.NewReader(content)
	for {
		hd, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		b, err := ioutil.ReadAll(tr)
		if err != nil {
			return err
		}
		f.copied[dstPath+"/"+hd.Name] = string(b)
	}
}

func TestRun(t *testing.T) {
	fake := &fakeDocker{}
	d := &Docker{docker: fake}
	id, err := d.Run(context.Background(), Config{
		Image:      "cloudifyplatform/premium-cloudify-manager-aio:latest",
		Privileged: true,
		Ports:      map[string]string{"80": "8080", "443/tcp": "443"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "abc123" || fake.name != DefaultName {
		t.Errorf("unexpected id %q or name %q", id, fake.name)
	}
	if diff := cmp.Diff([]string{"abc123"}, fake.started); diff != "" {
		t.Errorf("started differs (-want +got):\n%s", diff)
	}
	if !fake.hostConfig.Privileged {
		t.Error("expected a privileged container")
	}
	expected := nat.PortMap{
		"80/tcp":  {{HostIP: "0.0.0.0", HostPort: "8080"}},
		"443/tcp": {{HostIP: "0.0.0.0", HostPort: "443"}},
	}
	if diff := cmp.Diff(expected, fake.hostConfig.PortBindings); diff != "" {
		t.Errorf("port bindings differ (-want +got):\n%s", diff)
	}
	if _, ok := fake.config.ExposedPorts["443/tcp"]; !ok {
		t.Errorf("expected 443/tcp to be exposed, got %v", fake.config.ExposedPorts)
	}
}

func TestExec(t *testing.T) {
	testCases := []struct {
		name      string
		exitCode  int
		expectErr bool
	}{
		{name: "success"},
		{name: "failure", exitCode: 2, expectErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fake := &fakeDocker{stdout: "line one\nline two\n", stderr: "warning\n", exitCode: tc.exitCode}
			result, err := (&Docker{docker: fake}).Exec(context.Background(), DefaultName, []string{"cfy", "status"})
			if (err != nil) != tc.expectErr {
				t.Fatalf("expected error %t, got %v", tc.expectErr, err)
			}
			expected := &ExecResult{ExitCode: tc.exitCode, Stdout: "line one\nline two\n", Stderr: "warning\n"}
			if diff := cmp.Diff(expected, result); diff != "" {
				t.Errorf("result differs (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCopyToAndLoadImage(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "license.yaml")
	if err := ioutil.WriteFile(src, []byte("license"), 0644); err != nil {
		t.Fatal(err)
	}
	fake := &fakeDocker{}
	d := &Docker{docker: fake}
	if err := d.CopyTo(context.Background(), DefaultName, src, "/tmp"); err != nil {
		t.Fatalf("CopyTo: %v", err)
	}
	if diff := cmp.Diff(map[string]string{"/tmp/license.yaml": "license"}, fake.copied); diff != "" {
		t.Errorf("copied differs (-want +got):\n%s", diff)
	}
	if err := d.LoadImage(context.Background(), src); err != nil {
		t.Fatalf("LoadImage: %v", err)
	}
	if string(fake.loaded) != "license" {
		t.Errorf("expected the tarball to be streamed, got %q", fake.loaded)
	}
}

func TestRemove(t *testing.T) {
	testCases := []struct {
		name            string
		stopErr         error
		expectedRemoved []string
	}{
		{name: "running container", expectedRemoved: []string{DefaultName}},
		{name: "missing container", stopErr: notFound{errors.New("no such container")}},
		{name: "stop failure still removes", stopErr: errors.New("timeout"), expectedRemoved: []string{DefaultName}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fake := &fakeDocker{stopErr: tc.stopErr}
			if err := (&Docker{docker: fake}).Remove(context.Background(), DefaultName); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tc.expectedRemoved, fake.removed); diff != "" {
				t.Errorf("removed differs (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIP(t *testing.T) {
	ip, err := (&Docker{docker: &fakeDocker{ip: "172.17.0.2"}}).IP(context.Background(), DefaultName)
	if err != nil || ip != "172.17.0.2" {
		t.Errorf("expected 172.17.0.2, got %q (%v)", ip, err)
	}
	if _, err := (&Docker{docker: &fakeDocker{}}).IP(context.Background(), DefaultName); err == nil {
		t.Error("expected an error without an address")
	}
}

func TestWaitFor(t *testing.T) {
	calls := 0
	err := WaitFor(context.Background(), "manager", time.Millisecond, time.Second, func(context.Context) bool {
		calls++
		return calls == 3
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := WaitFor(context.Background(), "manager", time.Millisecond, 20*time.Millisecond, func(context.Context) bool { return false }); err == nil {
		t.Error("expected a timeout")
	}
}
