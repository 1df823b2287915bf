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

package plugin

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mattn/go-zglob"
	"github.com/pkg/errors"
)

// WagonExt is the file extension of a wagon archive.
const WagonExt = ".wgn"

// Wagon is the information carried by a wagon file name of the form
// <name>-<version>-<python>-none-<platform>[-<distribution>-<release>].wgn.
type Wagon struct {
	File         string
	Name         string
	Version      string
	Python       string
	Platform     string
	Distribution string
	Release      string
}

// ParseWagonName parses a wagon file name.
func ParseWagonName(file string) (Wagon, error) {
	base := filepath.Base(file)
	if !strings.HasSuffix(base, WagonExt) {
		return Wagon{}, errors.Errorf("%q is not a wagon", base)
	}
	parts := strings.SplitN(strings.TrimSuffix(base, WagonExt), "-none-", 2)
	if len(parts) != 2 {
		return Wagon{}, errors.Errorf("wagon name %q has no abi tag", base)
	}
	head := strings.Split(parts[0], "-")
	if len(head) < 3 {
		return Wagon{}, errors.Errorf("wagon name %q must carry name, version and python tag", base)
	}
	w := Wagon{
		File:    base,
		Name:    strings.Join(head[:len(head)-2], "-"),
		Version: head[len(head)-2],
		Python:  head[len(head)-1],
	}
	tail := strings.SplitN(parts[1], "-", 3)
	w.Platform = tail[0]
	if len(tail) > 1 {
		w.Distribution = tail[1]
	}
	if len(tail) > 2 {
		w.Release = tail[2]
	}
	if w.Platform == "" {
		return Wagon{}, errors.Errorf("wagon name %q has no platform", base)
	}
	return w, nil
}

// Label is the human readable platform name used in catalogs, such as
// "Centos Core" or "manylinux".
func (w Wagon) Label() string {
	if w.Distribution == "" {
		if strings.HasPrefix(w.Platform, "manylinux") || strings.HasPrefix(w.Platform, "linux") {
			return "manylinux"
		}
		return w.Platform
	}
	label := strings.Title(strings.ToLower(w.Distribution))
	if w.Release != "" {
		label += " " + strings.Title(strings.ToLower(w.Release))
	}
	return label
}

// Matches reports whether the wagon was built for platform, compared without
// regard to case.
func (w Wagon) Matches(platform string) bool {
	return strings.EqualFold(w.Label(), strings.TrimSpace(platform))
}

// FindWagons globs dir recursively for wagons.
func FindWagons(dir string) ([]Wagon, error) {
	files, err := zglob.Glob(filepath.Join(dir, "**", "*"+WagonExt))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "searching %s for wagons", dir)
	}
	sort.Strings(files)
	var wagons []Wagon
	for _, file := range files {
		w, err := ParseWagonName(file)
		if err != nil {
			return nil, err
		}
		w.File = file
		wagons = append(wagons, w)
	}
	return wagons, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
