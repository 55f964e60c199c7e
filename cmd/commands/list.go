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
	"io"
	"strconv"

	"github.com/spf13/cobra"

	dfv1 "github.com/numaproj/numascale/pkg/apis/numascale/v1alpha1"
)

func NewListCommand() *cobra.Command {
	var (
		namespace string
		service   string
	)
	command := &cobra.Command{
		Use:       "list [services|workunits|nodes|quotas]",
		Short:     "List services, work units, nodes or quotas",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"services", "workunits", "nodes", "quotas"},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := "services"
			if len(args) > 0 {
				kind = args[0]
			}
			c := newClient()
			out := cmd.OutOrStdout()
			switch kind {
			case "services", "service", "svc":
				services, err := c.ListServices(cmd.Context(), namespace)
				if err != nil {
					return err
				}
				printServices(out, services)
			case "workunits", "workunit", "wu":
				units, err := c.ListWorkUnits(cmd.Context(), service)
				if err != nil {
					return err
				}
				printWorkUnits(out, units)
			case "nodes", "node":
				nodes, err := c.ListNodes(cmd.Context())
				if err != nil {
					return err
				}
				printNodes(out, nodes)
			case "quotas", "quota":
				quotas, err := c.ListQuotas(cmd.Context())
				if err != nil {
					return err
				}
				printQuotas(out, quotas)
			default:
				return newUsageError("unknown resource %q, expected one of services, workunits, nodes or quotas", kind)
			}
			return nil
		},
	}
	command.Flags().StringVarP(&namespace, "namespace", "n", "", "Only list the services of this namespace.")
	command.Flags().StringVar(&service, "service", "", "Only list the work units of this service, in NAMESPACE/NAME format.")
	return command
}

func printNodes(w io.Writer, nodes []*dfv1.Node) {
	rows := make([][]string, 0, len(nodes))
	for _, n := range nodes {
		ready := "NotReady"
		if n.Ready {
			ready = "Ready"
		}
		var features []string
		if n.Capabilities != nil {
			features = n.Capabilities.Features
		}
		rows = append(rows, []string{n.Name, ready, n.Capacity.String(), n.Allocatable.String(),
			joinOrDash(features), strconv.Itoa(n.GetProcessors())})
	}
	printTable(w, []string{"NODE", "STATUS", "CAPACITY", "ALLOCATABLE", "FEATURES", "PROCESSORS"}, rows, -1)
	_, _ = fmt.Fprintf(w, "%d node(s)\n", len(nodes))
}
