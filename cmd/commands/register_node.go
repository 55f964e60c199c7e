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

func NewRegisterNodeCommand() *cobra.Command {
	var (
		capacity   []string
		labels     []string
		features   []string
		processors int
		notReady   bool
	)
	command := &cobra.Command{
		Use:     "register-node NAME",
		Short:   "Register or update a node",
		Example: `  numascale register-node node-a --capacity units=100 --capacity memory=64Gi --label numascale.io/tier=preferred --feature fp16`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rl, err := dfv1.ParseResourcePairs(capacity)
			if err != nil {
				return newUsageError("%v", err)
			}
			l, err := dfv1.ParseLabels(labels)
			if err != nil {
				return newUsageError("%v", err)
			}
			node := &dfv1.Node{
				Name:     args[0],
				Labels:   l,
				Capacity: rl,
				Ready:    !notReady,
			}
			if len(features) > 0 || processors > 0 {
				node.Capabilities = &dfv1.NodeCapabilities{Features: features, Processors: processors}
			}
			if err := newClient().RegisterNode(cmd.Context(), node); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Node %s registered with capacity %s\n", node.Name, node.Capacity)
			return nil
		},
	}
	command.Flags().StringArrayVarP(&capacity, "capacity", "c", nil, "Capacity of a resource in name=quantity format, e.g. units=100.")
	command.Flags().StringArrayVarP(&labels, "label", "l", nil, "Node label in key=value format.")
	command.Flags().StringSliceVar(&features, "feature", nil, "Hardware feature flags of the node, e.g. fp16,rdma.")
	command.Flags().IntVar(&processors, "processors", 0, "Number of processors of the node.")
	command.Flags().BoolVar(&notReady, "not-ready", false, "Register the node as not ready.")
	return command
}
