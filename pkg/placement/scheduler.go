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

// Package placement picks a node for a work unit in two phases, a filter phase
// dropping the nodes which can not host the unit, followed by a score phase
// selecting the best remaining node. Ties go to the node seen first.
package placement

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	dfv1 "github.com/numaproj/numascale/pkg/apis/numascale/v1alpha1"
)

// ErrNoFeasibleNode is returned when no node passes the filter phase.
var ErrNoFeasibleNode = errors.New("no feasible node")

// Result is the outcome of a successful placement.
type Result struct {
	NodeName string   `json:"nodeName"`
	Score    float64  `json:"score"`
	Reasons  []string `json:"reasons"`
}

type Scheduler struct {
	options *options
}

// NewScheduler returns a Scheduler instance.
func NewScheduler(opts ...Option) *Scheduler {
	schedulerOpts := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(schedulerOpts)
		}
	}
	return &Scheduler{options: schedulerOpts}
}

// Weights returns the weights in use.
func (s *Scheduler) Weights() Weights {
	if s.options.weightsFunc != nil {
		return s.options.weightsFunc()
	}
	return s.options.weights
}

// Schedule selects the best node for the unit. It does not mutate anything,
// allocating on the selected node is up to the caller.
func (s *Scheduler) Schedule(unit *dfv1.WorkUnit, nodes []*dfv1.Node) (*Result, error) {
	candidates, rejected := s.filterNodes(unit, nodes)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w for %s, %s", ErrNoFeasibleNode, unit.Requests, describeRejections(rejected))
	}
	w := s.Weights()
	var best *Result
	for _, node := range candidates {
		score, reasons := s.score(unit, node, w)
		// only a strictly higher score replaces, so ties keep the first seen node
		if best == nil || score > best.Score {
			best = &Result{NodeName: node.Name, Score: score, Reasons: reasons}
		}
	}
	return best, nil
}

func describeRejections(rejected map[string]string) string {
	if len(rejected) == 0 {
		return "no nodes registered"
	}
	names := make([]string, 0, len(rejected))
	for n := range rejected {
		names = append(names, n)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, n := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", n, rejected[n]))
	}
	return strings.Join(parts, "; ")
}
