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
	"bufio"
	"bytes"
	"io/ioutil"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// ChangelogFile is the release notes file at the root of a plugin repository.
const ChangelogFile = "CHANGELOG.txt"

var changelogHeading = regexp.MustCompile(`^([0-9][^\s:]*):\s*(.*)$`)

// Changelog holds release notes keyed by version, newest first.
type Changelog struct {
	Versions []string
	Notes    map[string]string
}

// ParseChangelog reads changelog text where each release starts at column
// zero with "<version>:" and its notes follow on the same or indented lines.
func ParseChangelog(data []byte) *Changelog {
	c := &Changelog{Notes: map[string]string{}}
	var current string
	var notes []string
	flush := func() {
		if current != "" {
			c.Notes[current] = strings.TrimSpace(strings.Join(notes, "\n"))
		}
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r")
		if m := changelogHeading.FindStringSubmatch(line); m != nil {
			flush()
			current = m[1]
			notes = nil
			if _, seen := c.Notes[current]; !seen {
				c.Versions = append(c.Versions, current)
			}
			if m[2] != "" {
				notes = append(notes, m[2])
			}
			continue
		}
		if current != "" {
			notes = append(notes, strings.TrimSpace(line))
		}
	}
	flush()
	return c
}

// LoadChangelog parses the changelog at path.
func LoadChangelog(path string) (*Changelog, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := ParseChangelog(b)
	if len(c.Versions) == 0 {
		return nil, errors.Errorf("%s has no version entries", path)
	}
	return c, nil
}

// Latest returns the top entry's version.
func (c *Changelog) Latest() string {
	if len(c.Versions) == 0 {
		return ""
	}
	return c.Versions[0]
}

// Entry returns the release notes for version.
func (c *Changelog) Entry(version string) (string, bool) {
	notes, ok := c.Notes[version]
	return notes, ok
}

// ChangelogEntry returns the release notes for version from the changelog in dir.
func ChangelogEntry(dir, version string) (string, error) {
	c, err := LoadChangelog(filepath.Join(dir, ChangelogFile))
	if err != nil {
		return "", err
	}
	notes, ok := c.Entry(version)
	if !ok {
		return "", errors.Errorf("%s has no entry for %s", ChangelogFile, version)
	}
	return notes, nil
}
