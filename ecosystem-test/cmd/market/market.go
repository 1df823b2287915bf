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

// Package market implements the marketplace commands.
package market

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cloudify-cosmo/ecosystem-test/pkg/flagutil"
)

// MakeCommands returns the marketplace commands.
func MakeCommands() []*cobra.Command {
	return []*cobra.Command{makeLatest(), makeNotify()}
}

func makeLatest() *cobra.Command {
	var o flagutil.MarketplaceOptions
	cmd := &cobra.Command{
		Use:   "marketplace-latest PLUGIN",
		Short: "Print the newest version of a plugin published on the marketplace.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Validate(); err != nil {
				return err
			}
			version, err := o.MarketplaceClient().LatestVersion(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), version)
			return nil
		},
	}
	o.AddFlags(cmd.Flags())
	return cmd
}

func makeNotify() *cobra.Command {
	var (
		o      flagutil.MarketplaceOptions
		assets []string
	)
	cmd := &cobra.Command{
		Use:   "marketplace-notify PLUGIN VERSION",
		Short: "Tell the marketplace about a new plugin release.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Validate(); err != nil {
				return err
			}
			return o.MarketplaceClient().NotifyRelease(cmd.Context(), args[0], args[1], assets)
		},
	}
	o.AddFlags(cmd.Flags())
	cmd.Flags().StringSliceVar(&assets, "asset", nil, "URL of a released asset. May be repeated.")
	return cmd
}
