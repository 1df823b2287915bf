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

package managers

import (
	"context"
	"io/ioutil"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cloudify-cosmo/ecosystem-test/pkg/bundle"
	"github.com/cloudify-cosmo/ecosystem-test/pkg/catalog"
	"github.com/cloudify-cosmo/ecosystem-test/pkg/container"
	"github.com/cloudify-cosmo/ecosystem-test/pkg/flagutil"
	"github.com/cloudify-cosmo/ecosystem-test/pkg/logrusutil"
	"github.com/cloudify-cosmo/ecosystem-test/pkg/manager"
	"github.com/cloudify-cosmo/ecosystem-test/pkg/retryhttp"
)

// preparation is what prepare-test-manager installs on a manager.
type preparation struct {
	license        []byte
	secrets        map[string]string
	plugins        []pluginSpec
	catalog        catalog.Catalog
	catalogPlugins []string
	platform       string
	interval       time.Duration
	waitTimeout    time.Duration
}

// prepare waits for the manager and installs the license, secrets and
// plugins. Catalog plugins already installed at their catalog version are
// left alone.
func prepare(ctx context.Context, c *manager.Client, p preparation) error {
	if err := container.WaitFor(ctx, "manager at "+c.BaseURL(), p.interval, p.waitTimeout, c.Healthy); err != nil {
		return err
	}
	if len(p.license) > 0 {
		if err := c.UploadLicense(ctx, p.license); err != nil {
			return errors.Wrap(err, "uploading license")
		}
	}

	keys := make([]string, 0, len(p.secrets))
	for k := range p.secrets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := c.CreateSecret(ctx, k, p.secrets[k]); err != nil {
			return errors.Wrapf(err, "creating secret %s", k)
		}
	}

	if len(p.catalogPlugins) > 0 {
		sources, err := bundle.Select(p.catalog, p.catalogPlugins, p.platform)
		if err != nil {
			return err
		}
		for _, s := range sources {
			installed, err := c.FindPlugin(ctx, s.Name, s.Version)
			if err != nil {
				return err
			}
			if installed != nil {
				logSkipped(installed)
				continue
			}
			if _, err := c.UploadPluginFromURLs(ctx, s.WagonURL, s.YAMLURL); err != nil {
				return errors.Wrapf(err, "uploading %s %s", s.Name, s.Version)
			}
		}
	}

	for _, spec := range p.plugins {
		if _, err := uploadPlugin(ctx, c, spec); err != nil {
			return errors.Wrapf(err, "uploading %s", spec.wagon)
		}
	}
	return nil
}

// parseSecrets reads KEY=VALUE pairs, and KEY=PATH pairs whose values are
// read from files.
func parseSecrets(values, files []string) (map[string]string, error) {
	secrets := map[string]string{}
	split := func(s string) (string, string, error) {
		parts := strings.SplitN(s, "=", 2)
		if len(parts) != 2 || parts[0] == "" {
			return "", "", errors.Errorf("secret %q is not of the form KEY=VALUE", s)
		}
		return parts[0], parts[1], nil
	}
	for _, s := range values {
		k, v, err := split(s)
		if err != nil {
			return nil, err
		}
		secrets[k] = v
	}
	for _, s := range files {
		k, path, err := split(s)
		if err != nil {
			return nil, err
		}
		b, err := ioutil.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "reading secret %s", k)
		}
		secrets[k] = string(b)
	}
	for _, v := range secrets {
		logrusutil.RegisterSecrets(v)
	}
	return secrets, nil
}

func makePrepareTestManager() *cobra.Command {
	var (
		m           flagutil.ManagerOptions
		l           flagutil.LicenseOptions
		secrets     []string
		secretFiles []string
		plugins     []string
		catalogPath string
		p           = preparation{interval: healthInterval}
	)
	cmd := &cobra.Command{
		Use:   "prepare-test-manager",
		Short: "Install the license, secrets and plugins a blueprint test needs.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := m.Validate(); err != nil {
				return err
			}
			if err := l.Validate(); err == nil {
				license, err := l.License()
				if err != nil {
					return err
				}
				p.license = license
			} else {
				logrus.Info("No license given, the manager keeps its current license.")
			}
			var err error
			if p.secrets, err = parseSecrets(secrets, secretFiles); err != nil {
				return err
			}
			for _, s := range plugins {
				spec, err := parsePluginSpec(s)
				if err != nil {
					return err
				}
				p.plugins = append(p.plugins, spec)
			}
			if len(p.catalogPlugins) > 0 {
				if p.catalog, err = catalog.Fetch(ctx, retryhttp.NewClient(retryhttp.DefaultOptions), catalogPath); err != nil {
					return err
				}
			}
			return prepare(ctx, m.ManagerClient(), p)
		},
	}
	m.AddFlags(cmd.Flags())
	l.AddFlags(cmd.Flags())
	cmd.Flags().StringSliceVar(&secrets, "secret", nil, "Secret as KEY=VALUE. May be repeated.")
	cmd.Flags().StringSliceVar(&secretFiles, "secret-file", nil, "Secret read from a file, as KEY=PATH. May be repeated.")
	cmd.Flags().StringArrayVar(&plugins, "plugin", nil, "Plugin as WAGON,YAML paths or URLs. May be repeated.")
	cmd.Flags().StringVar(&catalogPath, "plugins-json", catalog.FileName, "Catalog path or URL used by --catalog-plugin.")
	cmd.Flags().StringSliceVar(&p.catalogPlugins, "catalog-plugin", nil, "Catalog plugin to install. May be repeated.")
	cmd.Flags().StringVar(&p.platform, "platform", bundle.DefaultPlatform, "Wagon platform of catalog plugins.")
	cmd.Flags().DurationVar(&p.waitTimeout, "wait-timeout", 10*time.Minute, "How long to wait for the manager.")
	return cmd
}
