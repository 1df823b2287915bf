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

// Package catalog maintains plugins.json, the index of released plugins
// consumed by managers and the bundle packager.
package catalog

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"sort"
	"strings"

	"github.com/google/go-github/github"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/xeipuuv/gojsonschema"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/cloudify-cosmo/ecosystem-test/pkg/plugin"
)

// File names of the catalogs for 1.x and v2 managers.
const (
	FileName   = "plugins.json"
	V2FileName = "v2_plugins.json"
)

//go:embed schema.json
var schemaJSON []byte

// Wagon locates a wagon built for one platform.
type Wagon struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	MD5    string `json:"md5,omitempty"`
	MD5URL string `json:"md5url,omitempty"`
}

// Manifest locates one of the plugin YAML files of a release.
type Manifest struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Descriptor is one plugin entry.
type Descriptor struct {
	Name        string     `json:"name"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	Releases    string     `json:"releases,omitempty"`
	Icon        string     `json:"icon,omitempty"`
	Version     string     `json:"version"`
	Link        string     `json:"link"`
	YAML        string     `json:"yaml,omitempty"`
	YAMLs       []Manifest `json:"yamls,omitempty"`
	Wagons      []Wagon    `json:"wagons"`
}

// Wagon returns the wagon for platform, compared without regard to case.
func (d *Descriptor) Wagon(platform string) (Wagon, bool) {
	for _, w := range d.Wagons {
		if strings.EqualFold(w.Name, strings.TrimSpace(platform)) {
			return w, true
		}
	}
	return Wagon{}, false
}

// Catalog is the ordered list of descriptors.
type Catalog []Descriptor

// Parse decodes and verifies catalog JSON.
func Parse(data []byte) (Catalog, error) {
	if err := Verify(data); err != nil {
		return nil, err
	}
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrap(err, "decoding catalog")
	}
	return c, nil
}

// Load reads and verifies the catalog at path.
func Load(path string) (Catalog, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := Parse(b)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", path)
	}
	return c, nil
}

// Marshal encodes the catalog with two space indentation.
func (c Catalog) Marshal() ([]byte, error) {
	if c == nil {
		c = Catalog{}
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// Fetch reads a catalog from a local path or an http(s) URL.
func Fetch(ctx context.Context, client *retryablehttp.Client, location string) (Catalog, error) {
	if !strings.HasPrefix(location, "http://") && !strings.HasPrefix(location, "https://") {
		return Load(location)
	}
	req, err := retryablehttp.NewRequest(http.MethodGet, location, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, errors.Wrapf(err, "fetching %s", location)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("fetching %s: %s", location, resp.Status)
	}
	data, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Save writes the catalog to path.
func (c Catalog) Save(path string) error {
	b, err := c.Marshal()
	if err != nil {
		return err
	}
	return ioutil.WriteFile(path, b, 0644)
}

// Find returns the descriptor called name.
func (c Catalog) Find(name string) (*Descriptor, bool) {
	for i := range c {
		if c[i].Name == name {
			return &c[i], true
		}
	}
	return nil, false
}

// Upsert replaces the descriptor with the same name or appends d. Fields d
// leaves empty keep their previous values.
func (c Catalog) Upsert(d Descriptor) Catalog {
	if d.Wagons == nil {
		d.Wagons = []Wagon{}
	}
	existing, ok := c.Find(d.Name)
	if !ok {
		logrus.WithFields(logrus.Fields{"plugin": d.Name, "version": d.Version}).Info("Adding plugin to catalog.")
		return append(c, d)
	}
	logrus.WithFields(logrus.Fields{"plugin": d.Name, "from": existing.Version, "to": d.Version}).Info("Updating plugin in catalog.")
	if d.Title == "" {
		d.Title = existing.Title
	}
	if d.Description == "" {
		d.Description = existing.Description
	}
	if d.Icon == "" {
		d.Icon = existing.Icon
	}
	if d.Releases == "" {
		d.Releases = existing.Releases
	}
	*existing = d
	return c
}

// Verify validates catalog JSON against the schema and checks that plugin
// names are unique and every wagon can be checksummed.
func Verify(data []byte) (reterr error) {
	defer func() {
		if r := recover(); r != nil {
			reterr = fmt.Errorf("unable to validate schema: %s", r)
		}
	}()

	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schemaJSON), gojsonschema.NewBytesLoader(data))
	if err != nil {
		return errors.Wrap(err, "validating catalog")
	}
	if !result.Valid() {
		var sb strings.Builder
		for _, desc := range result.Errors() {
			sb.WriteString(fmt.Sprintf("- %s\n", desc))
		}
		return errors.New(sb.String())
	}

	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return errors.Wrap(err, "decoding catalog")
	}
	var errs []error
	seen := sets.NewString()
	for _, d := range c {
		if seen.Has(d.Name) {
			errs = append(errs, errors.Errorf("plugin %s is listed more than once", d.Name))
		}
		seen.Insert(d.Name)
		platforms := sets.NewString()
		for _, w := range d.Wagons {
			if w.MD5 == "" && w.MD5URL == "" {
				errs = append(errs, errors.Errorf("plugin %s wagon %s has no md5", d.Name, w.Name))
			}
			if platforms.Has(strings.ToLower(w.Name)) {
				errs = append(errs, errors.Errorf("plugin %s lists platform %s more than once", d.Name, w.Name))
			}
			platforms.Insert(strings.ToLower(w.Name))
		}
	}
	return utilerrors.NewAggregate(errs)
}

// FromRelease builds a descriptor for the plugin called name from the assets
// of a GitHub release. Wagons are labelled by platform and checksummed by a
// sibling "<wagon>.md5" asset when one exists.
func FromRelease(name string, release *github.RepositoryRelease, assets []*github.ReleaseAsset) (Descriptor, error) {
	d := Descriptor{
		Name:     name,
		Version:  release.GetTagName(),
		Releases: release.GetHTMLURL(),
	}
	urls := map[string]string{}
	for _, asset := range assets {
		urls[asset.GetName()] = asset.GetBrowserDownloadURL()
	}

	var names []string
	for n := range urls {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		switch {
		case strings.HasSuffix(n, plugin.WagonExt):
			w, err := plugin.ParseWagonName(n)
			if err != nil {
				return d, err
			}
			d.Wagons = append(d.Wagons, Wagon{Name: w.Label(), URL: urls[n], MD5URL: urls[n+".md5"]})
		case strings.HasSuffix(n, ".yaml"):
			d.YAMLs = append(d.YAMLs, Manifest{Name: n, URL: urls[n]})
		}
	}
	if link, ok := urls[plugin.ManifestFiles[0]]; ok {
		d.Link = link
		d.YAML = link
	}
	if d.Link == "" {
		return d, errors.Errorf("release %s of %s has no %s asset", d.Version, name, plugin.ManifestFiles[0])
	}
	return d, nil
}

const v2Manifest = "v2_plugin.yaml"

// V2 returns d linked to the v2 manifest of the release, which v2 catalogs
// reference. d is returned unchanged when the release has none.
func (d Descriptor) V2() Descriptor {
	for _, m := range d.YAMLs {
		if m.Name == v2Manifest {
			d.Link = m.URL
			d.YAML = m.URL
		}
	}
	return d
}
