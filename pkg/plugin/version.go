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
	"io/ioutil"
	"os"
	"path/filepath"
	"regexp"

	"github.com/blang/semver"
	"github.com/pkg/errors"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

var pythonVersion = regexp.MustCompile(`(?m)^\s*(?:__)?version(?:__)?\s*=\s*['"]([^'"]+)['"]`)

// ReadPythonVersion extracts the version assignment from a __version__.py file.
func ReadPythonVersion(path string) (string, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return "", err
	}
	m := pythonVersion.FindSubmatch(b)
	if m == nil {
		return "", errors.Errorf("%s has no version assignment", path)
	}
	return string(m[1]), nil
}

// DeclaredVersions maps each source of version information in the repository
// to the version it declares. Sources are manifest files, the top changelog
// entry and any <package>/__version__.py.
func DeclaredVersions(dir string) (map[string]string, error) {
	versions := map[string]string{}
	manifests, err := FindManifests(dir)
	if err != nil {
		return nil, err
	}
	for _, path := range manifests {
		m, err := LoadManifest(path)
		if err != nil {
			return nil, err
		}
		versions[filepath.Base(path)] = m.Version()
	}

	changelog, err := LoadChangelog(filepath.Join(dir, ChangelogFile))
	switch {
	case err == nil:
		versions[ChangelogFile] = changelog.Latest()
	case !os.IsNotExist(errors.Cause(err)):
		return nil, err
	}

	pyFiles, err := filepath.Glob(filepath.Join(dir, "*", "__version__.py"))
	if err != nil {
		return nil, err
	}
	for _, path := range pyFiles {
		v, err := ReadPythonVersion(path)
		if err != nil {
			return nil, err
		}
		rel, _ := filepath.Rel(dir, path)
		versions[filepath.ToSlash(rel)] = v
	}
	return versions, nil
}

// Version returns the version of the plugin in dir as declared by its first manifest.
func Version(dir string) (string, error) {
	manifests, err := FindManifests(dir)
	if err != nil {
		return "", err
	}
	m, err := LoadManifest(manifests[0])
	if err != nil {
		return "", err
	}
	if m.Version() == "" {
		return "", errors.Errorf("%s has no package_version", manifests[0])
	}
	return m.Version(), nil
}

// ValidateVersion checks that every declared version agrees, that the
// changelog documents it, and that it is newer than latestRelease when one is
// given. All failures are reported together.
func ValidateVersion(dir, latestRelease string) (string, error) {
	version, err := Version(dir)
	if err != nil {
		return "", err
	}
	declared, err := DeclaredVersions(dir)
	if err != nil {
		return "", err
	}

	var errs []error
	for _, source := range sortedKeys(declared) {
		if declared[source] != version {
			errs = append(errs, errors.Errorf("%s declares version %s, expected %s", source, declared[source], version))
		}
	}
	if changelog, err := LoadChangelog(filepath.Join(dir, ChangelogFile)); err != nil {
		errs = append(errs, errors.Wrap(err, "reading changelog"))
	} else if _, ok := changelog.Entry(version); !ok {
		errs = append(errs, errors.Errorf("%s has no entry for %s", ChangelogFile, version))
	}

	current, err := semver.ParseTolerant(version)
	if err != nil {
		errs = append(errs, errors.Wrapf(err, "version %q is not semantic", version))
	} else if latestRelease != "" {
		latest, err := semver.ParseTolerant(latestRelease)
		if err != nil {
			errs = append(errs, errors.Wrapf(err, "latest release %q is not semantic", latestRelease))
		} else if !current.GT(latest) {
			errs = append(errs, errors.Errorf("version %s is not greater than latest release %s", version, latestRelease))
		}
	}
	return version, utilerrors.NewAggregate(errs)
}
