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

package v1alpha1

import (
	"fmt"
	"strings"
)

// Node is a host which offers capacity for work units.
type Node struct {
	Name   string            `json:"name"`
	Labels map[string]string `json:"labels,omitempty"`
	// Capacity is the total amount of each dimension on the node.
	Capacity ResourceList `json:"capacity"`
	// Allocatable is what is left after the tracked allocations, maintained by the ledger.
	Allocatable ResourceList `json:"allocatable,omitempty"`
	Ready       bool         `json:"ready"`
	// +optional
	Capabilities *NodeCapabilities `json:"capabilities,omitempty"`
}

// NodeCapabilities describes optional hardware features of a node.
type NodeCapabilities struct {
	// Features are capability flags such as "fp16" or "rdma".
	Features   []string `json:"features,omitempty"`
	Processors int      `json:"processors,omitempty"`
}

// HasFeature checks if the node advertises the feature flag.
func (n *Node) HasFeature(f string) bool {
	if n.Capabilities == nil {
		return false
	}
	for _, x := range n.Capabilities.Features {
		if x == f {
			return true
		}
	}
	return false
}

func (n *Node) GetProcessors() int {
	if n.Capabilities == nil {
		return 0
	}
	return n.Capabilities.Processors
}

func (n *Node) IsControlPlane() bool {
	return n.Labels[KeyRole] == RoleControlPlane
}

func (n *Node) IsPreferredTier() bool {
	return n.Labels[KeyTier] == TierPreferred
}

// Utilization returns the used percentage of every capacity dimension,
// computed as (capacity - allocatable) / capacity.
func (n *Node) Utilization() map[ResourceName]float64 {
	res := make(map[ResourceName]float64, len(n.Capacity))
	for k, c := range n.Capacity {
		if c <= 0 {
			res[k] = 0
			continue
		}
		res[k] = float64(c-n.Allocatable[k]) / float64(c) * 100
	}
	return res
}

func (n *Node) Validate() error {
	if strings.TrimSpace(n.Name) == "" {
		return fmt.Errorf("node name is required")
	}
	if len(n.Capacity) == 0 {
		return fmt.Errorf("node %q has no capacity", n.Name)
	}
	if k, neg := n.Capacity.HasNegative(); neg {
		return fmt.Errorf("node %q has negative capacity for %q", n.Name, k)
	}
	return nil
}

func (n *Node) DeepCopy() *Node {
	if n == nil {
		return nil
	}
	out := *n
	if n.Labels != nil {
		out.Labels = make(map[string]string, len(n.Labels))
		for k, v := range n.Labels {
			out.Labels[k] = v
		}
	}
	out.Capacity = n.Capacity.DeepCopy()
	out.Allocatable = n.Allocatable.DeepCopy()
	if n.Capabilities != nil {
		c := *n.Capabilities
		c.Features = append([]string(nil), n.Capabilities.Features...)
		out.Capabilities = &c
	}
	return &out
}

// ParseLabels parses "key=value" pairs.
func ParseLabels(pairs []string) (map[string]string, error) {
	labels := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid label %q, expected key=value", p)
		}
		labels[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return labels, nil
}
