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

// Package container runs a manager in a local docker container for tests.
package container

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	specs "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/wait"
)

// DefaultName is the container name used for the test manager.
const DefaultName = "cfy_manager"

// dockerAPI is the part of the docker client used here.
type dockerAPI interface {
	ImageLoad(ctx context.Context, input io.Reader, quiet bool) (types.ImageLoadResponse, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *specs.Platform, containerName string) (container.ContainerCreateCreatedBody, error)
	ContainerStart(ctx context.Context, containerID string, options types.ContainerStartOptions) error
	ContainerInspect(ctx context.Context, containerID string) (types.ContainerJSON, error)
	ContainerStop(ctx context.Context, containerID string, timeout *time.Duration) error
	ContainerRemove(ctx context.Context, containerID string, options types.ContainerRemoveOptions) error
	ContainerExecCreate(ctx context.Context, container string, config types.ExecConfig) (types.IDResponse, error)
	ContainerExecAttach(ctx context.Context, execID string, config types.ExecStartCheck) (types.HijackedResponse, error)
	ContainerExecInspect(ctx context.Context, execID string) (types.ContainerExecInspect, error)
	CopyToContainer(ctx context.Context, containerID, dstPath string, content io.Reader, options types.CopyToContainerOptions) error
}

// Config describes the container to run.
type Config struct {
	Name       string
	Image      string
	Env        []string
	Privileged bool
	// Ports maps container ports such as "443/tcp" to host ports.
	Ports map[string]string
}

// Docker manages containers through the docker daemon.
type Docker struct {
	docker dockerAPI
}

// New connects to the daemon configured by the DOCKER_* environment.
func New() (*Docker, error) {
	docker, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, errors.Wrap(err, "creating docker client")
	}
	return &Docker{docker: docker}, nil
}

// LoadImage loads an image tarball, as written by docker save.
func (d *Docker) LoadImage(ctx context.Context, tarball string) error {
	file, err := os.Open(tarball)
	if err != nil {
		return err
	}
	defer file.Close()
	logrus.WithField("image", tarball).Info("Loading image.")
	resp, err := d.docker.ImageLoad(ctx, bufio.NewReader(file), true)
	if err != nil {
		return errors.Wrapf(err, "loading %s", tarball)
	}
	defer resp.Body.Close()
	_, err = io.Copy(ioutil.Discard, resp.Body)
	return err
}

// Run creates and starts the container and returns its id.
func (d *Docker) Run(ctx context.Context, cfg Config) (string, error) {
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	exposed := nat.PortSet{}
	bindings := nat.PortMap{}
	for containerPort, hostPort := range cfg.Ports {
		port, err := nat.NewPort(protoAndPort(containerPort))
		if err != nil {
			return "", errors.Wrapf(err, "parsing port %s", containerPort)
		}
		exposed[port] = struct{}{}
		bindings[port] = []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: hostPort}}
	}

	log := logrus.WithFields(logrus.Fields{"container": cfg.Name, "image": cfg.Image})
	resp, err := d.docker.ContainerCreate(ctx, &container.Config{
		Image:        cfg.Image,
		Env:          cfg.Env,
		ExposedPorts: exposed,
	}, &container.HostConfig{
		PortBindings: bindings,
		Privileged:   cfg.Privileged,
		SecurityOpt:  []string{"seccomp:unconfined"},
	}, nil, nil, cfg.Name)
	if err != nil {
		return "", errors.Wrapf(err, "creating container %s", cfg.Name)
	}
	for _, warning := range resp.Warnings {
		log.Warn(warning)
	}
	if err := d.docker.ContainerStart(ctx, resp.ID, types.ContainerStartOptions{}); err != nil {
		return "", errors.Wrapf(err, "starting container %s", cfg.Name)
	}
	log.WithField("id", resp.ID).Info("Started container.")
	return resp.ID, nil
}

func protoAndPort(spec string) (string, string) {
	if i := strings.Index(spec, "/"); i >= 0 {
		return spec[i+1:], spec[:i]
	}
	return "tcp", spec
}

// IP returns the address of the container on the default bridge.
func (d *Docker) IP(ctx context.Context, name string) (string, error) {
	info, err := d.docker.ContainerInspect(ctx, name)
	if err != nil {
		return "", errors.Wrapf(err, "inspecting %s", name)
	}
	if info.NetworkSettings == nil || info.NetworkSettings.IPAddress == "" {
		return "", errors.Errorf("container %s has no IP address", name)
	}
	return info.NetworkSettings.IPAddress, nil
}

// ExecResult is the outcome of a command run in a container.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Exec runs cmd in the container, logs its output and returns it. A non zero
// exit code is reported as an error alongside the result.
func (d *Docker) Exec(ctx context.Context, name string, cmd []string) (*ExecResult, error) {
	log := logrus.WithFields(logrus.Fields{"container": name, "command": strings.Join(cmd, " ")})
	created, err := d.docker.ContainerExecCreate(ctx, name, types.ExecConfig{
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "creating exec in %s", name)
	}
	attached, err := d.docker.ContainerExecAttach(ctx, created.ID, types.ExecStartCheck{})
	if err != nil {
		return nil, errors.Wrapf(err, "attaching to exec in %s", name)
	}
	defer attached.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, attached.Reader); err != nil {
		return nil, errors.Wrap(err, "reading exec output")
	}
	inspect, err := d.docker.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return nil, errors.Wrap(err, "inspecting exec")
	}

	result := &ExecResult{ExitCode: inspect.ExitCode, Stdout: stdout.String(), Stderr: stderr.String()}
	for _, line := range strings.Split(strings.TrimSpace(result.Stdout), "\n") {
		if line != "" {
			log.Info(line)
		}
	}
	for _, line := range strings.Split(strings.TrimSpace(result.Stderr), "\n") {
		if line != "" {
			log.Warn(line)
		}
	}
	if result.ExitCode != 0 {
		return result, errors.Errorf("command %q in %s exited with code %d", strings.Join(cmd, " "), name, result.ExitCode)
	}
	return result, nil
}

// CopyTo copies the local file src into directory dir of the container.
func (d *Docker) CopyTo(ctx context.Context, name, src, dir string) error {
	data, err := ioutil.ReadFile(src)
	if err != nil {
		return err
	}
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	if err := tw.WriteHeader(&tar.Header{
		Name:    filepath.Base(src),
		Mode:    int64(info.Mode().Perm()),
		Size:    int64(len(data)),
		ModTime: info.ModTime(),
	}); err != nil {
		return err
	}
	if _, err := tw.Write(data); err != nil {
		return err
	}
	if err := tw.Close(); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{"container": name, "file": src, "dest": path.Join(dir, filepath.Base(src))}).Info("Copying file into container.")
	if err := d.docker.CopyToContainer(ctx, name, dir, &buf, types.CopyToContainerOptions{}); err != nil {
		return errors.Wrapf(err, "copying %s to %s:%s", src, name, dir)
	}
	return nil
}

// Remove stops and deletes the container with its volumes.
func (d *Docker) Remove(ctx context.Context, name string) error {
	timeout := 30 * time.Second
	log := logrus.WithField("container", name)
	if err := d.docker.ContainerStop(ctx, name, &timeout); err != nil {
		if client.IsErrNotFound(err) {
			log.Info("Container does not exist.")
			return nil
		}
		log.WithError(err).Warn("Failed to stop container, removing it anyway.")
	}
	if err := d.docker.ContainerRemove(ctx, name, types.ContainerRemoveOptions{Force: true, RemoveVolumes: true}); err != nil {
		return errors.Wrapf(err, "removing container %s", name)
	}
	log.Info("Removed container.")
	return nil
}

// WaitFor polls healthy every interval until it reports true or timeout passes.
func WaitFor(ctx context.Context, what string, interval, timeout time.Duration, healthy func(context.Context) bool) error {
	logrus.WithField("timeout", timeout).Infof("Waiting for %s.", what)
	err := wait.PollImmediate(interval, timeout, func() (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		return healthy(ctx), nil
	})
	if err == wait.ErrWaitTimeout {
		return errors.Errorf("%s not ready after %v", what, timeout)
	}
	return err
}
