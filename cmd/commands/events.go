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

func NewEventsCommand() *cobra.Command {
	var limit int
	command := &cobra.Command{
		Use:   "events",
		Short: "Show the latest lifecycle events",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return newUsageError("--limit must not be negative")
			}
			events, err := newClient().ListEvents(cmd.Context(), limit)
			if err != nil {
				return err
			}
			printEvents(cmd.OutOrStdout(), events)
			return nil
		},
	}
	command.Flags().IntVar(&limit, "limit", 0, "Max number of events, 0 uses the server default.")
	return command
}
