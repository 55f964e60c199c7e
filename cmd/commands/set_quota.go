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

	dfv1 "github.com/numaproj/numascale/pkg/apis/numascale/v1alpha1"
)

func NewSetQuotaCommand() *cobra.Command {
	var resources []string
	command := &cobra.Command{
		Use:   "set-quota NAMESPACE",
		Short: "Set the resource quota of a namespace, no --resource removes it",
		Example: `  numascale set-quota ml --resource units=100 --resource memory=64Gi
  numascale set-quota ml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			quota, err := dfv1.ParseResourcePairs(resources)
			if err != nil {
				return newUsageError("%v", err)
			}
			if err := newClient().SetResourceQuota(cmd.Context(), args[0], quota); err != nil {
				return err
			}
			if len(quota) == 0 {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Quota of namespace %s removed\n", args[0])
				return nil
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Quota of namespace %s set to %s\n", args[0], quota)
			return nil
		},
	}
	command.Flags().StringArrayVarP(&resources, "resource", "r", nil, "Quota of a resource in name=quantity format, e.g. units=100.")
	return command
}
