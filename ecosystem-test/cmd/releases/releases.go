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

// Package releases implements the GitHub release commands.
package releases

import (
	"context"
	"fmt"

	"github.com/google/go-github/github"
	"github.com/gosuri/uitable"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cloudify-cosmo/ecosystem-test/pkg/flagutil"
	"github.com/cloudify-cosmo/ecosystem-test/pkg/ghclient"
	"github.com/cloudify-cosmo/ecosystem-test/pkg/release"
)

// MakeCommands returns the release commands.
func MakeCommands() []*cobra.Command {
	return []*cobra.Command{
		makePackageRelease(),
		makeUploadAssets(),
		makeDeleteAsset(),
		makeDownloadAsset(),
		makeListAssets(),
		makeValidatePluginVersion(),
		makeValidateChangelog(),
	}
}

func makePackageRelease() *cobra.Command {
	var (
		gh   flagutil.GitHubOptions
		ci   flagutil.CIOptions
		opts release.Options
	)
	cmd := &cobra.Command{
		Use:   "package-release",
		Short: "Create the GitHub release of a plugin and upload its wagons and manifests.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := gh.Validate(); err != nil {
				return err
			}
			if err := ci.Validate(); err != nil {
				return err
			}
			c, err := gh.GitHubClient()
			if err != nil {
				return err
			}
			r := &release.Releaser{GitHub: c, Org: gh.Org, Repo: gh.Repo, Commitish: ci.SHA}
			rel, err := r.PluginRelease(cmd.Context(), opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), rel.GetHTMLURL())
			return nil
		},
	}
	gh.AddFlags(cmd.Flags())
	ci.AddFlags(cmd.Flags())
	cmd.Flags().StringVar(&opts.Dir, "plugin-dir", ".", "Plugin repository checkout.")
	cmd.Flags().StringVar(&opts.WagonDir, "wagon-dir", "", "Directory searched for wagons. Defaults to --plugin-dir.")
	cmd.Flags().StringSliceVar(&opts.Assets, "asset", nil, "Additional glob of files to upload. May be repeated.")
	cmd.Flags().BoolVar(&opts.UpdateLatest, "update-latest", true, "Refresh the latest release with the same assets.")
	cmd.Flags().BoolVar(&opts.Prerelease, "prerelease", false, "Mark the release as a prerelease.")
	return cmd
}

func makeUploadAssets() *cobra.Command {
	var (
		gh  flagutil.GitHubOptions
		tag string
	)
	cmd := &cobra.Command{
		Use:   "upload-assets PATTERN...",
		Short: "Upload files to an existing release, replacing assets of the same name.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := gh.Validate(); err != nil {
				return err
			}
			c, err := gh.GitHubClient()
			if err != nil {
				return err
			}
			r := &release.Releaser{GitHub: c, Org: gh.Org, Repo: gh.Repo}
			files, err := r.UploadAssets(cmd.Context(), tag, args)
			if err != nil {
				return err
			}
			logrus.WithFields(logrus.Fields{"tag": tag, "assets": len(files)}).Info("Uploaded assets.")
			return nil
		},
	}
	gh.AddFlags(cmd.Flags())
	cmd.Flags().StringVar(&tag, "tag", "", "Release tag.")
	cmd.MarkFlagRequired("tag")
	return cmd
}

// findRelease returns the release tag, or the latest release when tag is empty.
func findRelease(ctx context.Context, c *ghclient.Client, org, repo, tag string) (*github.RepositoryRelease, error) {
	var (
		rel *github.RepositoryRelease
		err error
	)
	if tag == "" {
		rel, err = c.GetLatestRelease(ctx, org, repo)
	} else {
		rel, err = c.GetRelease(ctx, org, repo, tag)
	}
	if err != nil {
		return nil, err
	}
	if rel == nil {
		if tag == "" {
			tag = "latest"
		}
		return nil, errors.Errorf("%s/%s has no %s release", org, repo, tag)
	}
	return rel, nil
}

func makeDeleteAsset() *cobra.Command {
	var (
		gh  flagutil.GitHubOptions
		tag string
	)
	cmd := &cobra.Command{
		Use:   "delete-asset NAME...",
		Short: "Delete assets from a release by name.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := gh.Validate(); err != nil {
				return err
			}
			c, err := gh.GitHubClient()
			if err != nil {
				return err
			}
			rel, err := findRelease(cmd.Context(), c, gh.Org, gh.Repo, tag)
			if err != nil {
				return err
			}
			for _, name := range args {
				if err := c.DeleteReleaseAsset(cmd.Context(), gh.Org, gh.Repo, rel.GetID(), name); err != nil {
					return err
				}
			}
			return nil
		},
	}
	gh.AddFlags(cmd.Flags())
	cmd.Flags().StringVar(&tag, "tag", "", "Release tag.")
	cmd.MarkFlagRequired("tag")
	return cmd
}

func makeDownloadAsset() *cobra.Command {
	var (
		gh  flagutil.GitHubOptions
		tag string
		dir string
	)
	cmd := &cobra.Command{
		Use:   "download-asset NAME...",
		Short: "Download release assets by name.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := gh.Validate(); err != nil {
				return err
			}
			c, err := gh.GitHubClient()
			if err != nil {
				return err
			}
			rel, err := findRelease(cmd.Context(), c, gh.Org, gh.Repo, tag)
			if err != nil {
				return err
			}
			for _, name := range args {
				path, err := c.DownloadReleaseAsset(cmd.Context(), gh.Org, gh.Repo, rel.GetID(), name, dir)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			return nil
		},
	}
	gh.AddFlags(cmd.Flags())
	cmd.Flags().StringVar(&tag, "tag", "", "Release tag. Defaults to the latest release.")
	cmd.Flags().StringVar(&dir, "dir", ".", "Download directory.")
	return cmd
}

func makeListAssets() *cobra.Command {
	var (
		gh  flagutil.GitHubOptions
		tag string
	)
	cmd := &cobra.Command{
		Use:   "list-assets",
		Short: "List the assets of a release.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := gh.Validate(); err != nil {
				return err
			}
			c, err := gh.GitHubClient()
			if err != nil {
				return err
			}
			rel, err := findRelease(cmd.Context(), c, gh.Org, gh.Repo, tag)
			if err != nil {
				return err
			}
			assets, err := c.ListReleaseAssets(cmd.Context(), gh.Org, gh.Repo, rel.GetID())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatAssets(assets))
			return nil
		},
	}
	gh.AddFlags(cmd.Flags())
	cmd.Flags().StringVar(&tag, "tag", "", "Release tag. Defaults to the latest release.")
	return cmd
}

func formatAssets(assets []*github.ReleaseAsset) *uitable.Table {
	table := uitable.New()
	table.MaxColWidth = 80
	table.AddRow("NAME", "SIZE", "DOWNLOADS", "URL")
	for _, a := range assets {
		table.AddRow(a.GetName(), a.GetSize(), a.GetDownloadCount(), a.GetBrowserDownloadURL())
	}
	return table
}

func makeValidatePluginVersion() *cobra.Command {
	var (
		gh  flagutil.GitHubOptions
		dir string
	)
	cmd := &cobra.Command{
		Use:   "validate-plugin-version",
		Short: "Check that every declared plugin version agrees and is newer than the latest release.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := gh.Validate(); err != nil {
				return err
			}
			c, err := gh.GitHubClient()
			if err != nil {
				return err
			}
			r := &release.Releaser{GitHub: c, Org: gh.Org, Repo: gh.Repo}
			version, err := r.ValidateVersion(cmd.Context(), dir)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), version)
			return nil
		},
	}
	gh.AddFlags(cmd.Flags())
	cmd.Flags().StringVar(&dir, "plugin-dir", ".", "Plugin repository checkout.")
	return cmd
}

func makeValidateChangelog() *cobra.Command {
	var (
		gh flagutil.GitHubOptions
		ci flagutil.CIOptions
	)
	cmd := &cobra.Command{
		Use:   "validate-changelog",
		Short: "Fail when a pull request changes plugin sources without a changelog entry.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := gh.Validate(); err != nil {
				return err
			}
			if err := ci.Validate(); err != nil {
				return err
			}
			pr, err := ci.PullRequestNumber()
			if err != nil {
				return err
			}
			if pr == 0 {
				logrus.Info("Not a pull request build, skipping changelog validation.")
				return nil
			}
			c, err := gh.GitHubClient()
			if err != nil {
				return err
			}
			r := &release.Releaser{GitHub: c, Org: gh.Org, Repo: gh.Repo}
			return r.ValidateChangelog(cmd.Context(), pr)
		},
	}
	gh.AddFlags(cmd.Flags())
	ci.AddFlags(cmd.Flags())
	return cmd
}
