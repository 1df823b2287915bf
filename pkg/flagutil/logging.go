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

package flagutil

import (
	"github.com/spf13/pflag"

	"github.com/cloudify-cosmo/ecosystem-test/pkg/logrusutil"
)

// LoggingOptions configure the process logger.
type LoggingOptions struct {
	Level string
	JSON  bool
}

// AddFlags injects logging options into the given FlagSet.
func (o *LoggingOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Level, "log-level", "info", "Log level: trace, debug, info, warn, error or fatal.")
	fs.BoolVar(&o.JSON, "log-json", false, "Log in JSON.")
}

// Init configures logrus for component.
func (o *LoggingOptions) Init(component string) error {
	return logrusutil.Init(logrusutil.Options{Level: o.Level, JSON: o.JSON, Component: component})
}
