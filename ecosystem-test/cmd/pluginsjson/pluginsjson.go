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

// Package pluginsjson implements the plugin catalog commands.
package pluginsjson

import (
	"fmt"
	"io/ioutil"

	"github.com/google/go-github/github"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/cloudify-cosmo/ecosystem-test/pkg/catalog"
	"github.com/cloudify-cosmo/ecosystem-test/pkg/flagutil"
)

// MakeCommands returns the catalog commands.
func MakeCommands() []*cobra.Command {
	return []*cobra.Command{makeVerify(), makeUpdate()}
}

func makeVerify() *cobra.Command {
	return &cobra.Command{
		Use:   "verify-plugins-json FILE...",
		Short: "Validate plugin catalogs against the catalog schema.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var errs []error
			for _, path := range args {
				data, err := ioutil.ReadFile(path)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				if err := catalog.Verify(data); err != nil {
					errs = append(errs, errors.Wrapf(err, "%s is invalid", path))
					continue
				}
				logrus.WithField("catalog", path).Info("Catalog is valid.")
			}
			return utilerrors.NewAggregate(errs)
		},
	}
}

type updateOptions struct {
	gh          flagutil.GitHubOptions
	s3          flagutil.S3Options
	path        string
	v2          bool
	name        string
	tag         string
	title       string
	description string
	icon        string
	s3Key       string
}

func makeUpdate() *cobra.Command {
	o := &updateOptions{}
	cmd := &cobra.Command{
		Use:   "update-plugins-json",
		Short: "Add or refresh the catalog entry of a plugin from its GitHub release.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.gh.Validate(); err != nil {
				return err
			}
			if o.s3Key != "" {
				if err := o.s3.Validate(); err != nil {
					return err
				}
			}
			ctx := cmd.Context()
			c, err := o.gh.GitHubClient()
			if err != nil {
				return err
			}
			var release *github.RepositoryRelease
			if o.tag == "" {
				release, err = c.GetLatestRelease(ctx, o.gh.Org, o.gh.Repo)
			} else {
				release, err = c.GetRelease(ctx, o.gh.Org, o.gh.Repo, o.tag)
			}
			if err != nil {
				return err
			}
			if release == nil {
				return errors.Errorf("%s/%s has no release %q", o.gh.Org, o.gh.Repo, o.tag)
			}
			assets, err := c.ListReleaseAssets(ctx, o.gh.Org, o.gh.Repo, release.GetID())
			if err != nil {
				return err
			}
			name := o.name
			if name == "" {
				name = o.gh.Repo
			}
			d, err := catalog.FromRelease(name, release, assets)
			if err != nil {
				return err
			}
			if o.v2 {
				d = d.V2()
			}
			d.Title, d.Description, d.Icon = o.title, o.description, o.icon

			cat, err := catalog.Load(o.path)
			if err != nil {
				return err
			}
			cat = cat.Upsert(d)
			data, err := cat.Marshal()
			if err != nil {
				return err
			}
			if err := catalog.Verify(data); err != nil {
				return errors.Wrap(err, "updated catalog is invalid")
			}
			if err := ioutil.WriteFile(o.path, data, 0644); err != nil {
				return err
			}
			logrus.WithFields(logrus.Fields{"catalog": o.path, "plugin": name, "version": d.Version}).Info("Updated catalog.")
			if o.s3Key == "" {
				return nil
			}
			s3, err := o.s3.StorageClient(ctx)
			if err != nil {
				return err
			}
			defer s3.Close()
			if err := s3.Upload(ctx, o.s3Key, data, true); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s3.URL(o.s3Key))
			return nil
		},
	}
	o.gh.AddFlags(cmd.Flags())
	o.s3.AddFlags(cmd.Flags())
	cmd.Flags().StringVar(&o.path, "plugins-json", catalog.FileName, "Catalog file to update.")
	cmd.Flags().BoolVar(&o.v2, "v2", false, "Link the v2 manifest, for "+catalog.V2FileName+".")
	cmd.Flags().StringVar(&o.name, "name", "", "Catalog name of the plugin. Defaults to --repo.")
	cmd.Flags().StringVar(&o.tag, "tag", "", "Release to publish. Defaults to the latest release.")
	cmd.Flags().StringVar(&o.title, "title", "", "Plugin title. Kept from the catalog when empty.")
	cmd.Flags().StringVar(&o.description, "description", "", "Plugin description. Kept from the catalog when empty.")
	cmd.Flags().StringVar(&o.icon, "icon", "", "Plugin icon URL. Kept from the catalog when empty.")
	cmd.Flags().StringVar(&o.s3Key, "s3-key", "", "Also publish the catalog to this key of --bucket.")
	return cmd
}
