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

	"github.com/cloudify-cosmo/ecosystem-test/pkg/marketplace"
	"github.com/cloudify-cosmo/ecosystem-test/pkg/retryhttp"
)

// MarketplaceOptions locate the marketplace API.
type MarketplaceOptions struct {
	URL    string
	DryRun bool
}

// AddFlags injects marketplace options into the given FlagSet.
func (o *MarketplaceOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.URL, "marketplace-url", "", "Marketplace API address. Defaults to $MARKETPLACE_API_URL or "+marketplace.DefaultURL+".")
	fs.BoolVar(&o.DryRun, "marketplace-dry-run", false, "Do not notify the marketplace, only log.")
}

// Validate fills defaults from the environment.
func (o *MarketplaceOptions) Validate() error {
	MigrateOptions([]MigratedOption{{Env: "MARKETPLACE_API_URL", Option: &o.URL, Name: "--marketplace-url"}})
	if o.URL == "" {
		o.URL = marketplace.DefaultURL
	}
	return nil
}

// MarketplaceClient returns a client for the marketplace.
func (o *MarketplaceOptions) MarketplaceClient() *marketplace.Client {
	return marketplace.NewClient(o.URL, retryhttp.NewClient(retryhttp.DefaultOptions), o.DryRun)
}
