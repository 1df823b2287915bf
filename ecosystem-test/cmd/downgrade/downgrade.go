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

// Package downgrade implements the plugin manifest downgrade command.
package downgrade

import (
	"github.com/spf13/cobra"

	"github.com/cloudify-cosmo/ecosystem-test/pkg/dsl"
)

// Flags are the downgrade-plugin-yaml options.
type Flags struct {
	from      string
	to        string
	output    string
	overwrite bool
}

// MakeCommand returns a `downgrade-plugin-yaml` command.
func MakeCommand() *cobra.Command {
	flags := &Flags{}
	cmd := &cobra.Command{
		Use:   "downgrade-plugin-yaml SRC",
		Short: "Rewrite a plugin manifest for managers that only speak an older DSL.",
		Long: `Rewrites SRC, written for the --from DSL, so that managers understanding
only the --to DSL accept it. The result is written next to SRC under the
conventional name of the target version unless --output is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(flags, args[0])
		},
	}
	cmd.Flags().StringVar(&flags.from, "from", string(dsl.V1_4), "DSL version of SRC: 1.5, 1.4 or 1.3.")
	cmd.Flags().StringVar(&flags.to, "to", string(dsl.V1_3), "Target DSL version: 1.4, 1.3 or v2.")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Destination file.")
	cmd.Flags().BoolVar(&flags.overwrite, "overwrite", false, "Replace an existing destination.")
	return cmd
}

func run(flags *Flags, src string) error {
	from, err := dsl.ParseVersion(flags.from)
	if err != nil {
		return err
	}
	to, err := dsl.ParseVersion(flags.to)
	if err != nil {
		return err
	}
	return dsl.DowngradeFile(src, flags.output, from, to, flags.overwrite)
}
