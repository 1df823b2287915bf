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

package ghclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/go-github/github"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// The following interfaces are used for dependency injection in testing. They match go-github.

type pullRequestService interface {
	ListFiles(ctx context.Context, owner, repo string, number int, opt *github.ListOptions) ([]*github.CommitFile, *github.Response, error)
}

type repositoryService interface {
	GetReleaseByTag(ctx context.Context, owner, repo, tag string) (*github.RepositoryRelease, *github.Response, error)
	GetLatestRelease(ctx context.Context, owner, repo string) (*github.RepositoryRelease, *github.Response, error)
	ListReleases(ctx context.Context, owner, repo string, opt *github.ListOptions) ([]*github.RepositoryRelease, *github.Response, error)
	CreateRelease(ctx context.Context, owner, repo string, release *github.RepositoryRelease) (*github.RepositoryRelease, *github.Response, error)
	EditRelease(ctx context.Context, owner, repo string, id int64, release *github.RepositoryRelease) (*github.RepositoryRelease, *github.Response, error)
	DeleteRelease(ctx context.Context, owner, repo string, id int64) (*github.Response, error)
	ListReleaseAssets(ctx context.Context, owner, repo string, id int64, opt *github.ListOptions) ([]*github.ReleaseAsset, *github.Response, error)
	UploadReleaseAsset(ctx context.Context, owner, repo string, id int64, opt *github.UploadOptions, file *os.File) (*github.ReleaseAsset, *github.Response, error)
	DeleteReleaseAsset(ctx context.Context, owner, repo string, id int64) (*github.Response, error)
	DownloadReleaseAsset(ctx context.Context, owner, repo string, id int64) (io.ReadCloser, string, error)
}

// GetRelease returns the release tagged with tag, or nil if there is none.
func (c *Client) GetRelease(ctx context.Context, org, repo, tag string) (*github.RepositoryRelease, error) {
	var result *github.RepositoryRelease
	_, err := c.retry(
		fmt.Sprintf("getting release %s for %s/%s", tag, org, repo),
		func() (*github.Response, error) {
			var resp *github.Response
			var err error
			result, resp, err = c.repoService.GetReleaseByTag(ctx, org, repo, tag)
			return resp, err
		},
	)
	if IsNotFound(err) {
		return nil, nil
	}
	return result, err
}

// GetLatestRelease returns the most recent published release, or nil if the repo has none.
func (c *Client) GetLatestRelease(ctx context.Context, org, repo string) (*github.RepositoryRelease, error) {
	var result *github.RepositoryRelease
	_, err := c.retry(
		fmt.Sprintf("getting latest release for %s/%s", org, repo),
		func() (*github.Response, error) {
			var resp *github.Response
			var err error
			result, resp, err = c.repoService.GetLatestRelease(ctx, org, repo)
			return resp, err
		},
	)
	if IsNotFound(err) {
		return nil, nil
	}
	return result, err
}

// ListReleases returns every release of the repo.
func (c *Client) ListReleases(ctx context.Context, org, repo string) ([]*github.RepositoryRelease, error) {
	opts := &github.ListOptions{}
	releases, err := c.depaginate(
		fmt.Sprintf("listing releases for %s/%s", org, repo),
		opts,
		func() ([]interface{}, *github.Response, error) {
			list, resp, err := c.repoService.ListReleases(ctx, org, repo, opts)
			var interfaceList []interface{}
			if err == nil {
				interfaceList = make([]interface{}, 0, len(list))
				for _, release := range list {
					interfaceList = append(interfaceList, interface{}(release))
				}
			}
			return interfaceList, resp, err
		},
	)

	result := make([]*github.RepositoryRelease, 0, len(releases))
	for _, release := range releases {
		result = append(result, release.(*github.RepositoryRelease))
	}
	return result, err
}

// ReleaseRequest describes a release to create or update.
type ReleaseRequest struct {
	Tag        string
	Commitish  string
	Name       string
	Body       string
	Draft      bool
	Prerelease bool
}

func (r ReleaseRequest) toGitHub() *github.RepositoryRelease {
	release := &github.RepositoryRelease{
		TagName:    github.String(r.Tag),
		Name:       github.String(r.Name),
		Body:       github.String(r.Body),
		Draft:      github.Bool(r.Draft),
		Prerelease: github.Bool(r.Prerelease),
	}
	if r.Commitish != "" {
		release.TargetCommitish = github.String(r.Commitish)
	}
	if r.Name == "" {
		release.Name = github.String(r.Tag)
	}
	return release
}

// CreateRelease creates a new release. In dry-run mode it returns a release
// built from the request without contacting GitHub.
func (c *Client) CreateRelease(ctx context.Context, org, repo string, req ReleaseRequest) (*github.RepositoryRelease, error) {
	logrus.WithFields(logrus.Fields{"repo": org + "/" + repo, "tag": req.Tag, "commitish": req.Commitish}).Infof("CreateRelease(dry=%t)", c.dryRun)
	if c.dryRun {
		return req.toGitHub(), nil
	}

	var result *github.RepositoryRelease
	_, err := c.retry(
		fmt.Sprintf("creating release %s for %s/%s", req.Tag, org, repo),
		func() (*github.Response, error) {
			var resp *github.Response
			var err error
			result, resp, err = c.repoService.CreateRelease(ctx, org, repo, req.toGitHub())
			return resp, err
		},
	)
	return result, err
}

// EditRelease updates the release with the given id.
func (c *Client) EditRelease(ctx context.Context, org, repo string, id int64, req ReleaseRequest) (*github.RepositoryRelease, error) {
	logrus.WithFields(logrus.Fields{"repo": org + "/" + repo, "id": id, "tag": req.Tag}).Infof("EditRelease(dry=%t)", c.dryRun)
	if c.dryRun {
		release := req.toGitHub()
		release.ID = github.Int64(id)
		return release, nil
	}

	var result *github.RepositoryRelease
	_, err := c.retry(
		fmt.Sprintf("editing release %d for %s/%s", id, org, repo),
		func() (*github.Response, error) {
			var resp *github.Response
			var err error
			result, resp, err = c.repoService.EditRelease(ctx, org, repo, id, req.toGitHub())
			return resp, err
		},
	)
	return result, err
}

// DeleteRelease removes the release with the given id.
func (c *Client) DeleteRelease(ctx context.Context, org, repo string, id int64) error {
	logrus.WithFields(logrus.Fields{"repo": org + "/" + repo, "id": id}).Infof("DeleteRelease(dry=%t)", c.dryRun)
	if c.dryRun {
		return nil
	}
	_, err := c.retry(
		fmt.Sprintf("deleting release %d for %s/%s", id, org, repo),
		func() (*github.Response, error) {
			return c.repoService.DeleteRelease(ctx, org, repo, id)
		},
	)
	return err
}

// ListReleaseAssets returns all assets attached to the release with the given id.
func (c *Client) ListReleaseAssets(ctx context.Context, org, repo string, id int64) ([]*github.ReleaseAsset, error) {
	opts := &github.ListOptions{}
	assets, err := c.depaginate(
		fmt.Sprintf("listing assets of release %d for %s/%s", id, org, repo),
		opts,
		func() ([]interface{}, *github.Response, error) {
			list, resp, err := c.repoService.ListReleaseAssets(ctx, org, repo, id, opts)
			var interfaceList []interface{}
			if err == nil {
				interfaceList = make([]interface{}, 0, len(list))
				for _, asset := range list {
					interfaceList = append(interfaceList, interface{}(asset))
				}
			}
			return interfaceList, resp, err
		},
	)

	result := make([]*github.ReleaseAsset, 0, len(assets))
	for _, asset := range assets {
		result = append(result, asset.(*github.ReleaseAsset))
	}
	return result, err
}

// FindReleaseAsset returns the asset called name on the release, or nil.
func (c *Client) FindReleaseAsset(ctx context.Context, org, repo string, id int64, name string) (*github.ReleaseAsset, error) {
	assets, err := c.ListReleaseAssets(ctx, org, repo, id)
	if err != nil {
		return nil, err
	}
	for _, asset := range assets {
		if asset.GetName() == name {
			return asset, nil
		}
	}
	return nil, nil
}

// UploadReleaseAsset attaches the file at path to the release. The asset is
// named after the file's base name unless name is set. When GitHub rejects the
// upload because an asset with that name exists, the old asset is deleted and
// the upload is attempted once more.
func (c *Client) UploadReleaseAsset(ctx context.Context, org, repo string, id int64, path, name string) (*github.ReleaseAsset, error) {
	if name == "" {
		name = filepath.Base(path)
	}
	logrus.WithFields(logrus.Fields{"repo": org + "/" + repo, "release": id, "asset": name}).Infof("UploadReleaseAsset(dry=%t)", c.dryRun)
	if c.dryRun {
		return &github.ReleaseAsset{Name: github.String(name)}, nil
	}

	upload := func() (*github.ReleaseAsset, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, &retryAbort{err}
		}
		defer f.Close()
		asset, _, err := c.repoService.UploadReleaseAsset(ctx, org, repo, id, &github.UploadOptions{Name: name}, f)
		return asset, err
	}

	var result *github.ReleaseAsset
	action := fmt.Sprintf("uploading asset %s to release %d for %s/%s", name, id, org, repo)
	call := func() (*github.Response, error) {
		var err error
		result, err = upload()
		return nil, err
	}
	_, err := c.retry(action, call)
	if IsUnprocessable(err) {
		logrus.WithField("asset", name).Warn("Asset already exists, replacing it.")
		if err := c.DeleteReleaseAsset(ctx, org, repo, id, name); err != nil {
			return nil, err
		}
		_, err = c.retry(action, call)
	}
	if err != nil {
		if abort, ok := err.(*retryAbort); ok {
			return nil, abort.error
		}
		return nil, err
	}
	return result, nil
}

// DeleteReleaseAsset removes the asset called name from the release. A missing
// asset is not an error.
func (c *Client) DeleteReleaseAsset(ctx context.Context, org, repo string, id int64, name string) error {
	asset, err := c.FindReleaseAsset(ctx, org, repo, id, name)
	if err != nil {
		return err
	}
	if asset == nil {
		logrus.WithField("asset", name).Info("Asset not found, nothing to delete.")
		return nil
	}
	logrus.WithFields(logrus.Fields{"repo": org + "/" + repo, "release": id, "asset": name}).Infof("DeleteReleaseAsset(dry=%t)", c.dryRun)
	if c.dryRun {
		return nil
	}
	_, err = c.retry(
		fmt.Sprintf("deleting asset %s for %s/%s", name, org, repo),
		func() (*github.Response, error) {
			return c.repoService.DeleteReleaseAsset(ctx, org, repo, asset.GetID())
		},
	)
	return err
}

// DownloadReleaseAsset writes the asset called name into dir and returns the
// path of the written file.
func (c *Client) DownloadReleaseAsset(ctx context.Context, org, repo string, id int64, name, dir string) (string, error) {
	asset, err := c.FindReleaseAsset(ctx, org, repo, id, name)
	if err != nil {
		return "", err
	}
	if asset == nil {
		return "", errors.Errorf("release %d of %s/%s has no asset %q", id, org, repo, name)
	}

	var body io.ReadCloser
	_, err = c.retry(
		fmt.Sprintf("downloading asset %s for %s/%s", name, org, repo),
		func() (*github.Response, error) {
			rc, redirect, err := c.repoService.DownloadReleaseAsset(ctx, org, repo, asset.GetID())
			if err != nil {
				return nil, err
			}
			if rc != nil {
				body = rc
				return nil, nil
			}
			req, err := http.NewRequest(http.MethodGet, redirect, nil)
			if err != nil {
				return nil, &retryAbort{err}
			}
			resp, err := c.httpClient.Do(req.WithContext(ctx))
			if err != nil {
				return nil, err
			}
			if resp.StatusCode != http.StatusOK {
				resp.Body.Close()
				return nil, fmt.Errorf("unexpected status %s fetching %s", resp.Status, redirect)
			}
			body = resp.Body
			return nil, nil
		},
	)
	if err != nil {
		return "", err
	}
	defer body.Close()

	target := filepath.Join(dir, name)
	out, err := os.Create(target)
	if err != nil {
		return "", errors.Wrap(err, "creating asset file")
	}
	if _, err := io.Copy(out, body); err != nil {
		out.Close()
		return "", errors.Wrapf(err, "writing %s", target)
	}
	return target, out.Close()
}

// ListPullRequestFiles returns the names of the files touched by the pull request.
func (c *Client) ListPullRequestFiles(ctx context.Context, org, repo string, number int) ([]string, error) {
	opts := &github.ListOptions{}
	files, err := c.depaginate(
		fmt.Sprintf("listing files of %s/%s#%d", org, repo, number),
		opts,
		func() ([]interface{}, *github.Response, error) {
			list, resp, err := c.prService.ListFiles(ctx, org, repo, number, opts)
			var interfaceList []interface{}
			if err == nil {
				interfaceList = make([]interface{}, 0, len(list))
				for _, file := range list {
					interfaceList = append(interfaceList, interface{}(file))
				}
			}
			return interfaceList, resp, err
		},
	)

	result := make([]string, 0, len(files))
	for _, file := range files {
		result = append(result, file.(*github.CommitFile).GetFilename())
	}
	return result, err
}
