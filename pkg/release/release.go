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

// Package release publishes plugin releases to GitHub: it creates the
// release for the declared version, uploads wagons, manifests and their
// checksums, and keeps a rolling "latest" release in step.
package release

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/blang/semver"
	"github.com/google/go-github/github"
	"github.com/mattn/go-zglob"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/cloudify-cosmo/ecosystem-test/pkg/bundle"
	"github.com/cloudify-cosmo/ecosystem-test/pkg/ghclient"
	"github.com/cloudify-cosmo/ecosystem-test/pkg/plugin"
	"github.com/cloudify-cosmo/ecosystem-test/pkg/process"
)

// LatestTag names the release that mirrors the newest version.
const LatestTag = "latest"

// GitHub is the part of ghclient.Client used for releases.
type GitHub interface {
	GetRelease(ctx context.Context, org, repo, tag string) (*github.RepositoryRelease, error)
	ListReleases(ctx context.Context, org, repo string) ([]*github.RepositoryRelease, error)
	CreateRelease(ctx context.Context, org, repo string, req ghclient.ReleaseRequest) (*github.RepositoryRelease, error)
	EditRelease(ctx context.Context, org, repo string, id int64, req ghclient.ReleaseRequest) (*github.RepositoryRelease, error)
	ListReleaseAssets(ctx context.Context, org, repo string, id int64) ([]*github.ReleaseAsset, error)
	UploadReleaseAsset(ctx context.Context, org, repo string, id int64, path, name string) (*github.ReleaseAsset, error)
	ListPullRequestFiles(ctx context.Context, org, repo string, number int) ([]string, error)
}

// Releaser publishes releases of one repository.
type Releaser struct {
	GitHub GitHub
	Org    string
	Repo   string
	// Commitish is the commit new releases point at. When empty it is read
	// with git from the plugin directory.
	Commitish string
	Runner    process.Runner
}

// Options describe a plugin release.
type Options struct {
	// Dir is the plugin repository checkout.
	Dir string
	// WagonDir is searched for built wagons. Defaults to Dir.
	WagonDir string
	// Assets are additional glob patterns to upload.
	Assets []string
	// UpdateLatest refreshes the latest release with the same assets.
	UpdateLatest bool
	Prerelease   bool
}

func (r *Releaser) log() *logrus.Entry {
	return logrus.WithFields(logrus.Fields{"org": r.Org, "repo": r.Repo})
}

func (r *Releaser) commitish(ctx context.Context, dir string) (string, error) {
	if r.Commitish != "" {
		return r.Commitish, nil
	}
	runner := r.Runner
	if runner == nil {
		runner = process.Exec{}
	}
	res, err := runner.Run(ctx, process.Command{Name: "git", Args: []string{"rev-parse", "HEAD"}, Dir: dir, Quiet: true})
	if err != nil {
		return "", errors.Wrap(err, "resolving the release commit")
	}
	return strings.TrimSpace(res.Output), nil
}

// ValidateVersion checks the plugin in dir against the newest published
// version of the repository.
func (r *Releaser) ValidateVersion(ctx context.Context, dir string) (string, error) {
	releases, err := r.GitHub.ListReleases(ctx, r.Org, r.Repo)
	if err != nil {
		return "", err
	}
	return plugin.ValidateVersion(dir, newestVersion(releases))
}

// newestVersion returns the highest semantic tag of the published releases,
// ignoring the latest mirror, drafts and prereleases.
func newestVersion(releases []*github.RepositoryRelease) string {
	var (
		newest string
		best   semver.Version
	)
	for _, release := range releases {
		tag := release.GetTagName()
		if tag == LatestTag || release.GetDraft() || release.GetPrerelease() {
			continue
		}
		v, err := semver.ParseTolerant(tag)
		if err != nil {
			logrus.WithField("tag", tag).Debug("Ignoring release without a semantic version tag.")
			continue
		}
		if newest == "" || v.GT(best) {
			newest, best = tag, v
		}
	}
	return newest
}

// ensureRelease returns the release for tag, creating it when missing.
func (r *Releaser) ensureRelease(ctx context.Context, req ghclient.ReleaseRequest) (*github.RepositoryRelease, error) {
	release, err := r.GitHub.GetRelease(ctx, r.Org, r.Repo, req.Tag)
	if err != nil {
		return nil, err
	}
	if release != nil {
		r.log().WithField("tag", req.Tag).Info("Release exists.")
		return release, nil
	}
	return r.GitHub.CreateRelease(ctx, r.Org, r.Repo, req)
}

// PluginRelease creates the release for the version declared by the plugin
// in opts.Dir and uploads its assets. The release is returned.
func (r *Releaser) PluginRelease(ctx context.Context, opts Options) (*github.RepositoryRelease, error) {
	version, err := plugin.Version(opts.Dir)
	if err != nil {
		return nil, err
	}
	notes, err := plugin.ChangelogEntry(opts.Dir, version)
	if err != nil {
		return nil, err
	}
	commitish, err := r.commitish(ctx, opts.Dir)
	if err != nil {
		return nil, err
	}
	assets, cleanup, err := collectAssets(opts)
	defer cleanup()
	if err != nil {
		return nil, err
	}

	req := ghclient.ReleaseRequest{Tag: version, Commitish: commitish, Name: version, Body: notes, Prerelease: opts.Prerelease}
	release, err := r.ensureRelease(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := r.upload(ctx, release, assets); err != nil {
		return nil, err
	}
	if opts.UpdateLatest {
		if err := r.updateLatest(ctx, req, assets); err != nil {
			return nil, err
		}
	}
	return release, nil
}

// updateLatest points the latest release at req's commit and notes and
// replaces its assets.
func (r *Releaser) updateLatest(ctx context.Context, req ghclient.ReleaseRequest, assets []string) error {
	latestReq := req
	latestReq.Tag = LatestTag
	latestReq.Name = LatestTag
	latestReq.Prerelease = false
	latest, err := r.GitHub.GetRelease(ctx, r.Org, r.Repo, LatestTag)
	if err != nil {
		return err
	}
	if latest == nil {
		latest, err = r.GitHub.CreateRelease(ctx, r.Org, r.Repo, latestReq)
	} else {
		latest, err = r.GitHub.EditRelease(ctx, r.Org, r.Repo, latest.GetID(), latestReq)
	}
	if err != nil {
		return errors.Wrap(err, "updating the latest release")
	}
	return r.upload(ctx, latest, assets)
}

func (r *Releaser) upload(ctx context.Context, release *github.RepositoryRelease, paths []string) error {
	for _, path := range paths {
		if _, err := r.GitHub.UploadReleaseAsset(ctx, r.Org, r.Repo, release.GetID(), path, filepath.Base(path)); err != nil {
			return errors.Wrapf(err, "uploading %s to %s", path, release.GetTagName())
		}
	}
	return nil
}

// collectAssets lists the files of a plugin release: wagons with an md5
// checksum file each, manifests, and anything matching opts.Assets. The
// checksums are written to a temporary directory removed by cleanup.
func collectAssets(opts Options) ([]string, func(), error) {
	cleanup := func() {}
	wagonDir := opts.WagonDir
	if wagonDir == "" {
		wagonDir = opts.Dir
	}
	wagons, err := plugin.FindWagons(wagonDir)
	if err != nil {
		return nil, cleanup, err
	}
	manifests, err := plugin.FindManifests(opts.Dir)
	if err != nil {
		return nil, cleanup, err
	}
	extra, err := Expand(opts.Assets)
	if err != nil {
		return nil, cleanup, err
	}

	var assets []string
	if len(wagons) > 0 {
		tmp, err := ioutil.TempDir("", "release-checksums")
		if err != nil {
			return nil, cleanup, err
		}
		cleanup = func() { os.RemoveAll(tmp) }
		for _, w := range wagons {
			sum, err := bundle.MD5(w.File)
			if err != nil {
				return nil, cleanup, err
			}
			path := filepath.Join(tmp, filepath.Base(w.File)+".md5")
			if err := ioutil.WriteFile(path, []byte(sum+"  "+filepath.Base(w.File)+"\n"), 0644); err != nil {
				return nil, cleanup, err
			}
			assets = append(assets, w.File, path)
		}
	} else {
		logrus.WithField("dir", wagonDir).Warn("No wagons found to release.")
	}
	assets = append(assets, manifests...)
	assets = append(assets, extra...)
	return dedupeByName(assets), cleanup, nil
}

// dedupeByName keeps the first path of each asset name.
func dedupeByName(paths []string) []string {
	seen := sets.NewString()
	var out []string
	for _, p := range paths {
		name := filepath.Base(p)
		if seen.Has(name) {
			continue
		}
		seen.Insert(name)
		out = append(out, p)
	}
	return out
}

// Expand resolves glob patterns to files. A pattern matching nothing is an
// error.
func Expand(patterns []string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		matches, err := zglob.Glob(pattern)
		if err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "expanding %s", pattern)
		}
		var found []string
		for _, m := range matches {
			if info, err := os.Stat(m); err == nil && !info.IsDir() {
				found = append(found, m)
			}
		}
		if len(found) == 0 {
			return nil, errors.Errorf("no files match %s", pattern)
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	return files, nil
}

// UploadAssets uploads every file matching patterns to the release tag.
func (r *Releaser) UploadAssets(ctx context.Context, tag string, patterns []string) ([]string, error) {
	release, err := r.GitHub.GetRelease(ctx, r.Org, r.Repo, tag)
	if err != nil {
		return nil, err
	}
	if release == nil {
		return nil, errors.Errorf("release %s of %s/%s does not exist", tag, r.Org, r.Repo)
	}
	files, err := Expand(patterns)
	if err != nil {
		return nil, err
	}
	files = dedupeByName(files)
	if err := r.upload(ctx, release, files); err != nil {
		return nil, err
	}
	return files, nil
}

// ignoredDirs hold files that never need a changelog entry.
var ignoredDirs = []string{".circleci/", ".github/", "docs/", "examples/"}

// isSource reports whether a changed file affects the released plugin.
func isSource(file string) bool {
	for _, dir := range ignoredDirs {
		if strings.HasPrefix(file, dir) {
			return false
		}
	}
	base := filepath.Base(file)
	for _, m := range plugin.ManifestFiles {
		if base == m {
			return true
		}
	}
	if filepath.Ext(base) != ".py" {
		return base == "requirements.txt"
	}
	if strings.HasPrefix(base, "test_") || strings.HasSuffix(base, "_test.py") {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(filepath.Dir(file)), "/") {
		if part == "tests" || part == "test" {
			return false
		}
	}
	return true
}

// ValidateChangelog fails when pull request pr changes plugin sources without
// touching the changelog.
func (r *Releaser) ValidateChangelog(ctx context.Context, pr int) error {
	files, err := r.GitHub.ListPullRequestFiles(ctx, r.Org, r.Repo, pr)
	if err != nil {
		return err
	}
	var sources []string
	changelog := false
	for _, f := range files {
		if f == plugin.ChangelogFile {
			changelog = true
		}
		if isSource(f) {
			sources = append(sources, f)
		}
	}
	log := r.log().WithField("pr", pr)
	if len(sources) == 0 {
		log.Info("No plugin sources changed.")
		return nil
	}
	if !changelog {
		return errors.Errorf("pull request %d changes %s without updating %s", pr, strings.Join(sources, ", "), plugin.ChangelogFile)
	}
	log.WithField("sources", len(sources)).Info("Changelog updated.")
	return nil
}
