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
	"encoding/base64"
	"errors"
	"fmt"
	"io/ioutil"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"github.com/cloudify-cosmo/ecosystem-test/pkg/logrusutil"
	"github.com/cloudify-cosmo/ecosystem-test/pkg/manager"
	"github.com/cloudify-cosmo/ecosystem-test/pkg/retryhttp"
)

// ManagerOptions locate a manager and the credentials to use with it.
type ManagerOptions struct {
	Host     string
	SSL      string
	Username string
	Password string
	Token    string
	Tenant   string
	Insecure bool
	Timeout  time.Duration

	ssl bool
}

// AddFlags injects manager options into the given FlagSet.
func (o *ManagerOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Host, "manager-host", "", "Manager address. Defaults to $CLOUDIFY_HOST.")
	fs.StringVar(&o.SSL, "manager-ssl", "", "Use https for a bare host, true or false. Defaults to $CLOUDIFY_SSL.")
	fs.StringVar(&o.Username, "manager-username", "", "Defaults to $CLOUDIFY_USERNAME.")
	fs.StringVar(&o.Password, "manager-password", "", "Defaults to $CLOUDIFY_PASSWORD.")
	fs.StringVar(&o.Token, "manager-token", "", "API token, used instead of username and password. Defaults to $CLOUDIFY_TOKEN.")
	fs.StringVar(&o.Tenant, "manager-tenant", "", "Defaults to $CLOUDIFY_TENANT or "+manager.DefaultTenant+".")
	fs.BoolVar(&o.Insecure, "manager-insecure", false, "Skip TLS certificate verification.")
	fs.DurationVar(&o.Timeout, "manager-request-timeout", retryhttp.DefaultOptions.Timeout, "Timeout of a single manager request.")
}

// Validate fills defaults from the environment and checks the options.
func (o *ManagerOptions) Validate() error {
	MigrateOptions([]MigratedOption{
		{Env: "CLOUDIFY_HOST", Option: &o.Host, Name: "--manager-host"},
		{Env: "CLOUDIFY_SSL", Option: &o.SSL, Name: "--manager-ssl"},
		{Env: "CLOUDIFY_USERNAME", Option: &o.Username, Name: "--manager-username"},
		{Env: "CLOUDIFY_PASSWORD", Option: &o.Password, Name: "--manager-password"},
		{Env: "CLOUDIFY_TOKEN", Option: &o.Token, Name: "--manager-token"},
		{Env: "CLOUDIFY_TENANT", Option: &o.Tenant, Name: "--manager-tenant"},
	})
	if o.Host == "" {
		return errors.New("--manager-host is required")
	}
	if o.SSL != "" {
		ssl, err := strconv.ParseBool(o.SSL)
		if err != nil {
			return fmt.Errorf("invalid --manager-ssl %q: %v", o.SSL, err)
		}
		o.ssl = ssl
	}
	if o.Token == "" && (o.Username == "" || o.Password == "") {
		return errors.New("either --manager-token or --manager-username and --manager-password are required")
	}
	return nil
}

// Auth returns the manager credentials.
func (o *ManagerOptions) Auth() manager.Auth {
	return manager.Auth{Username: o.Username, Password: o.Password, Token: o.Token, Tenant: o.Tenant}
}

// ManagerClient returns a client for the manager. Credentials are censored
// from the logs.
func (o *ManagerOptions) ManagerClient() *manager.Client {
	logrusutil.RegisterSecrets(o.Password, o.Token)
	httpOpts := retryhttp.DefaultOptions
	httpOpts.Insecure = o.Insecure
	if o.Timeout > 0 {
		httpOpts.Timeout = o.Timeout
	}
	return manager.NewClient(o.Host, o.ssl, o.Auth(), retryhttp.NewClient(httpOpts))
}

// LicenseOptions provide a manager license.
type LicenseOptions struct {
	File    string
	Encoded string
}

// AddFlags injects license options into the given FlagSet.
func (o *LicenseOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.File, "license-file", "", "License file.")
	fs.StringVar(&o.Encoded, "license", "", "Base64 encoded license. Defaults to $TEST_LICENSE.")
}

// Validate fills defaults from the environment and checks the options.
func (o *LicenseOptions) Validate() error {
	MigrateOptions([]MigratedOption{{Env: "TEST_LICENSE", Option: &o.Encoded, Name: "--license"}})
	if o.File == "" && o.Encoded == "" {
		return errors.New("--license-file or --license is required")
	}
	return nil
}

// License returns the license content.
func (o *LicenseOptions) License() ([]byte, error) {
	if o.File != "" {
		return ioutil.ReadFile(o.File)
	}
	logrusutil.RegisterSecrets(o.Encoded)
	b, err := base64.StdEncoding.DecodeString(o.Encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding license: %v", err)
	}
	return b, nil
}
