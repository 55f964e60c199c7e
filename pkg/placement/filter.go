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

package placement

import (
	"fmt"
	"strings"

	dfv1 "github.com/numaproj/numascale/pkg/apis/numascale/v1alpha1"
)

// filterNodes returns the nodes able to host the unit, and why the others are not.
func (s *Scheduler) filterNodes(unit *dfv1.WorkUnit, nodes []*dfv1.Node) ([]*dfv1.Node, map[string]string) {
	candidates := make([]*dfv1.Node, 0, len(nodes))
	rejected := make(map[string]string)
	for _, node := range nodes {
		if reason, ok := checkNode(unit, node); !ok {
			rejected[node.Name] = reason
			continue
		}
		candidates = append(candidates, node)
	}
	return candidates, rejected
}

// checkNode is the predicate of the filter phase.
func checkNode(unit *dfv1.WorkUnit, node *dfv1.Node) (string, bool) {
	if !node.Ready {
		return "node is not ready", false
	}
	if short := node.Allocatable.Shortfall(unit.Requests); len(short) > 0 {
		return fmt.Sprintf("insufficient %s", strings.Join(short, ", ")), false
	}
	return "", true
}
