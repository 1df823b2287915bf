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

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cloudify-cosmo/ecosystem-test/ecosystem-test/cmd/blueprints"
	"github.com/cloudify-cosmo/ecosystem-test/ecosystem-test/cmd/bundles"
	"github.com/cloudify-cosmo/ecosystem-test/ecosystem-test/cmd/downgrade"
	"github.com/cloudify-cosmo/ecosystem-test/ecosystem-test/cmd/managers"
	"github.com/cloudify-cosmo/ecosystem-test/ecosystem-test/cmd/market"
	"github.com/cloudify-cosmo/ecosystem-test/ecosystem-test/cmd/pluginsjson"
	"github.com/cloudify-cosmo/ecosystem-test/ecosystem-test/cmd/releases"
	"github.com/cloudify-cosmo/ecosystem-test/ecosystem-test/cmd/s3"
	"github.com/cloudify-cosmo/ecosystem-test/pkg/flagutil"
)

const component = "ecosystem-test"

// makeRootCommand assembles every subcommand under the ecosystem-test root.
func makeRootCommand() *cobra.Command {
	logging := &flagutil.LoggingOptions{}
	root := &cobra.Command{
		Use:           component,
		Short:         "ecosystem-test releases, packages and tests plugins and blueprints.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logging.Init(component)
		},
	}
	logging.AddFlags(root.PersistentFlags())

	root.AddCommand(releases.MakeCommands()...)
	root.AddCommand(bundles.MakeCommands()...)
	root.AddCommand(pluginsjson.MakeCommands()...)
	root.AddCommand(s3.MakeCommands()...)
	root.AddCommand(downgrade.MakeCommand())
	root.AddCommand(market.MakeCommands()...)
	root.AddCommand(managers.MakeCommands()...)
	root.AddCommand(blueprints.MakeCommands()...)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := makeRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		logrus.WithError(err).Fatal("Command failed.")
	}
}
