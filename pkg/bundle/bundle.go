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

// Package bundle packages released plugins into a single tarball that can be
// uploaded to a manager without network access.
package bundle

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"io/ioutil"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"sigs.k8s.io/yaml"

	"github.com/cloudify-cosmo/ecosystem-test/pkg/archive"
	"github.com/cloudify-cosmo/ecosystem-test/pkg/catalog"
)

// MetadataFile indexes the bundle: wagon path to manifest path.
const MetadataFile = "METADATA"

// DefaultPlatform is the wagon platform used when none is requested.
const DefaultPlatform = "manylinux"

// Source is one plugin to include. Remote URLs are used unless the matching
// local path is set.
type Source struct {
	Name      string
	Version   string
	WagonURL  string
	WagonPath string
	MD5       string
	MD5URL    string
	YAMLURL   string
	YAMLPath  string
}

func (s Source) wagonFile() string {
	if s.WagonPath != "" {
		return filepath.Base(s.WagonPath)
	}
	return path.Base(s.WagonURL)
}

func (s Source) dir() string {
	return path.Join(s.Name, s.Version)
}

// Select picks, for each named plugin, the wagon built for platform. With no
// names every plugin of the catalog is selected.
func Select(c catalog.Catalog, names []string, platform string) ([]Source, error) {
	if platform == "" {
		platform = DefaultPlatform
	}
	if len(names) == 0 {
		for _, d := range c {
			names = append(names, d.Name)
		}
	}

	var sources []Source
	var missing []string
	for _, name := range names {
		d, ok := c.Find(name)
		if !ok {
			return nil, errors.Errorf("plugin %s is not in the catalog", name)
		}
		w, ok := d.Wagon(platform)
		if !ok {
			missing = append(missing, name)
			continue
		}
		sources = append(sources, Source{
			Name:     d.Name,
			Version:  d.Version,
			WagonURL: w.URL,
			MD5:      w.MD5,
			MD5URL:   w.MD5URL,
			YAMLURL:  d.Link,
		})
	}
	if len(missing) > 0 {
		return nil, errors.Errorf("no %s wagon for %s", platform, strings.Join(missing, ", "))
	}
	return sources, nil
}

// Metadata maps each wagon inside the bundle to its manifest.
type Metadata map[string]string

// Wagons returns the wagon paths in sorted order.
func (m Metadata) Wagons() []string {
	wagons := make([]string, 0, len(m))
	for w := range m {
		wagons = append(wagons, w)
	}
	sort.Strings(wagons)
	return wagons
}

// Builder creates bundles.
type Builder struct {
	Client      *retryablehttp.Client
	Concurrency int64
}

// Create fetches every source and writes the bundle to dest.
func (b *Builder) Create(ctx context.Context, dest string, sources []Source) (_ Metadata, reterr error) {
	if len(sources) == 0 {
		return nil, errors.New("no plugins to bundle")
	}
	workDir, err := ioutil.TempDir("", "bundle")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(workDir)

	if err := b.fetch(ctx, workDir, sources); err != nil {
		return nil, err
	}

	w, err := archive.Create(dest)
	if err != nil {
		return nil, err
	}
	defer func() {
		if reterr != nil {
			w.Abort()
			w.Close()
		}
	}()

	metadata := Metadata{}
	for _, s := range sources {
		wagonPath := path.Join(s.dir(), s.wagonFile())
		yamlPath := path.Join(s.dir(), "plugin.yaml")
		if err := w.AddFile(wagonPath, filepath.Join(workDir, filepath.FromSlash(wagonPath))); err != nil {
			return nil, err
		}
		if err := w.AddFile(yamlPath, filepath.Join(workDir, filepath.FromSlash(yamlPath))); err != nil {
			return nil, err
		}
		metadata[wagonPath] = yamlPath
	}
	data, err := yaml.Marshal(metadata)
	if err != nil {
		return nil, err
	}
	if err := w.AddBytes(MetadataFile, data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"bundle": dest, "plugins": len(sources)}).Info("Created bundle.")
	return metadata, nil
}

func (b *Builder) fetch(ctx context.Context, workDir string, sources []Source) error {
	concurrency := b.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	sem := semaphore.NewWeighted(concurrency)
	g, ctx := errgroup.WithContext(ctx)
	for _, s := range sources {
		s := s
		dir := filepath.Join(workDir, filepath.FromSlash(s.dir()))
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
		g.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			log := logrus.WithFields(logrus.Fields{"plugin": s.Name, "version": s.Version})

			wagon := filepath.Join(dir, s.wagonFile())
			if err := b.obtain(ctx, s.WagonURL, s.WagonPath, wagon); err != nil {
				return errors.Wrapf(err, "fetching wagon of %s", s.Name)
			}
			if err := b.verify(ctx, s, wagon); err != nil {
				return err
			}
			if err := b.obtain(ctx, s.YAMLURL, s.YAMLPath, filepath.Join(dir, "plugin.yaml")); err != nil {
				return errors.Wrapf(err, "fetching manifest of %s", s.Name)
			}
			log.Info("Fetched plugin.")
			return nil
		})
	}
	return g.Wait()
}

func (b *Builder) obtain(ctx context.Context, url, local, dest string) error {
	if local != "" {
		return copyFile(local, dest)
	}
	if url == "" {
		return errors.New("neither a url nor a local file is set")
	}
	body, err := b.get(ctx, url)
	if err != nil {
		return err
	}
	defer body.Close()
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return errors.Wrapf(err, "downloading %s", url)
	}
	return f.Close()
}

func (b *Builder) get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := retryablehttp.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.Client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, errors.Errorf("GET %s: %s", url, resp.Status)
	}
	return resp.Body, nil
}

// verify compares the wagon checksum with the one published for it.
func (b *Builder) verify(ctx context.Context, s Source, wagon string) error {
	expected := s.MD5
	if expected == "" && s.MD5URL != "" && s.WagonPath == "" {
		body, err := b.get(ctx, s.MD5URL)
		if err != nil {
			return errors.Wrapf(err, "fetching checksum of %s", s.Name)
		}
		defer body.Close()
		data, err := ioutil.ReadAll(body)
		if err != nil {
			return err
		}
		if fields := strings.Fields(string(data)); len(fields) > 0 {
			expected = fields[0]
		}
	}
	if expected == "" {
		return nil
	}
	actual, err := MD5(wagon)
	if err != nil {
		return err
	}
	if !strings.EqualFold(actual, expected) {
		return errors.Errorf("checksum mismatch for %s: expected %s, got %s", filepath.Base(wagon), expected, actual)
	}
	return nil
}

// MD5 returns the hex md5 digest of the file at path.
func MD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// ReadMetadata returns the index of an existing bundle.
func ReadMetadata(bundle string) (Metadata, error) {
	var metadata Metadata
	found := false
	err := archive.Walk(bundle, func(name string, size int64, r io.Reader) error {
		if name != MetadataFile {
			return nil
		}
		data, err := ioutil.ReadAll(r)
		if err != nil {
			return err
		}
		found = true
		return yaml.Unmarshal(data, &metadata)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", bundle)
	}
	if !found {
		return nil, errors.Errorf("%s has no %s", bundle, MetadataFile)
	}
	return metadata, nil
}
