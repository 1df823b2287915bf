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

// Package managers implements the commands that run, prepare and populate
// test managers.
package managers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gosuri/uitable"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cloudify-cosmo/ecosystem-test/pkg/container"
	"github.com/cloudify-cosmo/ecosystem-test/pkg/flagutil"
	"github.com/cloudify-cosmo/ecosystem-test/pkg/manager"
	"github.com/cloudify-cosmo/ecosystem-test/pkg/retryhttp"
)

// MakeCommands returns the manager commands.
func MakeCommands() []*cobra.Command {
	return []*cobra.Command{
		makeCreateManager(),
		makeRemoveManager(),
		makeManagerExec(),
		makePrepareTestManager(),
		makeUploadPlugin(),
		makeListPlugins(),
		makeCreateSecret(),
		makeUploadLicense(),
	}
}

const healthInterval = 5 * time.Second

type createOptions struct {
	cfg         container.Config
	tarball     string
	username    string
	password    string
	waitTimeout time.Duration
}

func makeCreateManager() *cobra.Command {
	o := &createOptions{}
	cmd := &cobra.Command{
		Use:   "create-manager",
		Short: "Start a manager container and wait until its REST API is healthy.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			docker, err := container.New()
			if err != nil {
				return err
			}
			if o.tarball != "" {
				if err := docker.LoadImage(ctx, o.tarball); err != nil {
					return err
				}
			}
			if _, err := docker.Run(ctx, o.cfg); err != nil {
				return err
			}
			ip, err := docker.IP(ctx, o.cfg.Name)
			if err != nil {
				return err
			}
			client := manager.NewClient(ip, false, manager.Auth{Username: o.username, Password: o.password}, retryhttp.NewClient(retryhttp.Options{RetryMax: 0, Timeout: 10 * time.Second}))
			if err := container.WaitFor(ctx, "manager "+o.cfg.Name, healthInterval, o.waitTimeout, client.Healthy); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ip)
			return nil
		},
	}
	cmd.Flags().StringVar(&o.cfg.Name, "name", container.DefaultName, "Container name.")
	cmd.Flags().StringVar(&o.cfg.Image, "image", "", "Manager image.")
	cmd.Flags().StringVar(&o.tarball, "image-tarball", "", "Load the image from this docker save tarball first.")
	cmd.Flags().StringSliceVar(&o.cfg.Env, "env", nil, "Container environment as NAME=value. May be repeated.")
	cmd.Flags().BoolVar(&o.cfg.Privileged, "privileged", true, "Run the container privileged.")
	cmd.Flags().StringToStringVar(&o.cfg.Ports, "port", map[string]string{"80/tcp": "80", "443/tcp": "443"}, "Published ports as CONTAINER=HOST.")
	cmd.Flags().StringVar(&o.username, "admin-username", "admin", "Manager admin user for the health check.")
	cmd.Flags().StringVar(&o.password, "admin-password", "admin", "Manager admin password for the health check.")
	cmd.Flags().DurationVar(&o.waitTimeout, "wait-timeout", 10*time.Minute, "How long to wait for the manager.")
	cmd.MarkFlagRequired("image")
	return cmd
}

func makeRemoveManager() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "remove-manager",
		Short: "Stop and delete a manager container.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			docker, err := container.New()
			if err != nil {
				return err
			}
			return docker.Remove(cmd.Context(), name)
		},
	}
	cmd.Flags().StringVar(&name, "name", container.DefaultName, "Container name.")
	return cmd
}

func makeManagerExec() *cobra.Command {
	var (
		name  string
		files []string
		dir   string
	)
	cmd := &cobra.Command{
		Use:   "manager-exec -- COMMAND...",
		Short: "Run a command inside a manager container, optionally copying files in first.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			docker, err := container.New()
			if err != nil {
				return err
			}
			for _, f := range files {
				if err := docker.CopyTo(ctx, name, f, dir); err != nil {
					return err
				}
			}
			res, err := docker.Exec(ctx, name, args)
			if res != nil {
				fmt.Fprint(cmd.OutOrStdout(), res.Stdout)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&name, "name", container.DefaultName, "Container name.")
	cmd.Flags().StringSliceVar(&files, "copy", nil, "Local file to copy into the container. May be repeated.")
	cmd.Flags().StringVar(&dir, "copy-dir", "/tmp", "Container directory receiving --copy files.")
	return cmd
}

// pluginSpec is a wagon and manifest pair given as WAGON,YAML. Either
// may be a local path or an http(s) URL, but both must be of one kind.
type pluginSpec struct {
	wagon string
	yaml  string
}

func parsePluginSpec(s string) (pluginSpec, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return pluginSpec{}, errors.Errorf("plugin %q is not of the form WAGON,YAML", s)
	}
	p := pluginSpec{wagon: strings.TrimSpace(parts[0]), yaml: strings.TrimSpace(parts[1])}
	if isURL(p.wagon) != isURL(p.yaml) {
		return pluginSpec{}, errors.Errorf("plugin %q mixes a URL and a local file", s)
	}
	return p, nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func uploadPlugin(ctx context.Context, c *manager.Client, p pluginSpec) (*manager.Plugin, error) {
	if isURL(p.wagon) {
		return c.UploadPluginFromURLs(ctx, p.wagon, p.yaml)
	}
	return c.UploadPlugin(ctx, p.wagon, p.yaml)
}

func makeUploadPlugin() *cobra.Command {
	var (
		m     flagutil.ManagerOptions
		wagon string
		yaml  string
	)
	cmd := &cobra.Command{
		Use:   "upload-plugin",
		Short: "Upload a wagon and its plugin YAML, from files or URLs.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := m.Validate(); err != nil {
				return err
			}
			spec, err := parsePluginSpec(wagon + "," + yaml)
			if err != nil {
				return err
			}
			p, err := uploadPlugin(cmd.Context(), m.ManagerClient(), spec)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), p.ID)
			return nil
		},
	}
	m.AddFlags(cmd.Flags())
	cmd.Flags().StringVar(&wagon, "wagon", "", "Wagon path or URL.")
	cmd.Flags().StringVar(&yaml, "yaml", "", "Plugin YAML path or URL.")
	cmd.MarkFlagRequired("wagon")
	cmd.MarkFlagRequired("yaml")
	return cmd
}

func formatPlugins(plugins []manager.Plugin) *uitable.Table {
	table := uitable.New()
	table.MaxColWidth = 50
	table.AddRow("ID", "PACKAGE", "VERSION", "DISTRIBUTION", "PLATFORM")
	for _, p := range plugins {
		table.AddRow(p.ID, p.PackageName, p.PackageVersion, p.Distribution, p.Platform)
	}
	return table
}

func makeListPlugins() *cobra.Command {
	var m flagutil.ManagerOptions
	cmd := &cobra.Command{
		Use:   "list-plugins",
		Short: "List the plugins installed on a manager.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := m.Validate(); err != nil {
				return err
			}
			plugins, err := m.ManagerClient().ListPlugins(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatPlugins(plugins))
			return nil
		},
	}
	m.AddFlags(cmd.Flags())
	return cmd
}

func makeCreateSecret() *cobra.Command {
	var m flagutil.ManagerOptions
	cmd := &cobra.Command{
		Use:   "create-secret KEY VALUE",
		Short: "Create or update a manager secret.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := m.Validate(); err != nil {
				return err
			}
			return m.ManagerClient().CreateSecret(cmd.Context(), args[0], args[1])
		},
	}
	m.AddFlags(cmd.Flags())
	return cmd
}

func makeUploadLicense() *cobra.Command {
	var (
		m flagutil.ManagerOptions
		l flagutil.LicenseOptions
	)
	cmd := &cobra.Command{
		Use:   "upload-license",
		Short: "Install a license on a manager.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := m.Validate(); err != nil {
				return err
			}
			if err := l.Validate(); err != nil {
				return err
			}
			license, err := l.License()
			if err != nil {
				return err
			}
			return m.ManagerClient().UploadLicense(cmd.Context(), license)
		},
	}
	m.AddFlags(cmd.Flags())
	l.AddFlags(cmd.Flags())
	return cmd
}

// logSkipped notes a plugin that is already installed.
func logSkipped(p *manager.Plugin) {
	logrus.WithFields(logrus.Fields{"plugin": p.PackageName, "version": p.PackageVersion}).Info("Plugin already installed.")
}
