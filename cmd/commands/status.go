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
	"github.com/spf13/cobra"
)

func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status NAMESPACE/NAME",
		Short: "Show the status and the work units of a service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient()
			svc, err := c.GetService(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			units, err := c.ListWorkUnits(cmd.Context(), svc.Key())
			if err != nil {
				return err
			}
			printService(cmd.OutOrStdout(), svc, units)
			return nil
		},
	}
}
