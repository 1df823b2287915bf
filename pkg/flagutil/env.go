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

// Package flagutil contains option groups shared by the ecosystem-test
// commands. Each group registers its flags, takes defaults from the CI
// environment and validates itself.
package flagutil

import (
	"os"

	"github.com/sirupsen/logrus"
)

// MigratedOption is a flag whose value may come from an environment variable.
type MigratedOption struct {
	Env    string  // variable consulted when the flag is unset
	Option *string // value of the flag
	Name   string  // flag name
}

// MigrateOptions fills every unset option from its environment variable.
func MigrateOptions(m []MigratedOption) {
	for _, s := range m {
		if *s.Option != "" {
			continue
		}
		if v := os.Getenv(s.Env); v != "" {
			logrus.WithFields(logrus.Fields{"flag": s.Name, "env": s.Env}).Debug("Using environment value for flag.")
			*s.Option = v
		}
	}
}
