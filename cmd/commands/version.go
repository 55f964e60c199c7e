/*
Copyright 2022 The Numaproj Authors.

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


package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/numaproj/numascale"
)

func NewVersionCommand() *cobra.Command {
	var (
		short  bool
		server bool
	)
	command := &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			v := numascale.GetVersion()
			out := cmd.OutOrStdout()
			if short {
				_, _ = fmt.Fprintln(out, v.Version)
			} else {
				_, _ = fmt.Fprintln(out, v.String())
			}
			if !server {
				return nil
			}
			info, err := newClient().SystemInfo(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "Server Version: %s\n", info.Version)
			if err := v.CheckCompatibility(info.Version); err != nil {
				_, _ = fmt.Fprintln(cmd.ErrOrStderr(), warnStyle.Render("WARNING: "+err.Error()))
			}
			return nil
		},
	}
	command.Flags().BoolVar(&short, "short", false, "Print the version number only.")
	command.Flags().BoolVar(&server, "server", false, "Also print the version of the controller.")
	return command
}
