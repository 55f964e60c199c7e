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
	"math"

	"github.com/montanaflynn/stats"

	dfv1 "github.com/numaproj/numascale/pkg/apis/numascale/v1alpha1"
)

// NodeUtilization is the mean utilization percentage over the capacity dimensions of the node.
func NodeUtilization(node *dfv1.Node) float64 {
	u := node.Utilization()
	data := make(stats.Float64Data, 0, len(u))
	for _, v := range u {
		data = append(data, v)
	}
	mean, err := stats.Mean(data)
	if err != nil {
		// no dimension at all
		return 0
	}
	return mean
}

// Score calculates the score (0-100) of a feasible node for the unit, along with the
// reasons making up the score.
//
// The utilization band dominates: a node between BandLow and BandHigh scores best,
// an idle node comes next and a busy node last. Capability matches, processors and
// the preferred tier add to it, the control-plane role takes away from it.
func (s *Scheduler) Score(unit *dfv1.WorkUnit, node *dfv1.Node) (float64, []string) {
	return s.score(unit, node, s.Weights())
}

func (s *Scheduler) score(unit *dfv1.WorkUnit, node *dfv1.Node, w Weights) (float64, []string) {
	var score float64
	var reasons []string

	util := NodeUtilization(node)
	switch {
	case util < w.BandLow:
		score += w.IdleScore
		reasons = append(reasons, fmt.Sprintf("utilization %.1f%% below %.0f%%: +%.0f", util, w.BandLow, w.IdleScore))
	case util > w.BandHigh:
		score += w.BusyScore
		reasons = append(reasons, fmt.Sprintf("utilization %.1f%% above %.0f%%: +%.0f", util, w.BandHigh, w.BusyScore))
	default:
		score += w.BalancedScore
		reasons = append(reasons, fmt.Sprintf("utilization %.1f%% within [%.0f%%, %.0f%%]: +%.0f", util, w.BandLow, w.BandHigh, w.BalancedScore))
	}

	for _, f := range unit.Features {
		if node.HasFeature(f) {
			score += w.CapabilityBonus
			reasons = append(reasons, fmt.Sprintf("feature %s: +%.0f", f, w.CapabilityBonus))
		}
	}

	if p := node.GetProcessors(); p > 0 && w.ProcessorBonus > 0 {
		bonus := math.Min(float64(p)*w.ProcessorBonus, w.MaxProcessorBonus)
		score += bonus
		reasons = append(reasons, fmt.Sprintf("%d processors: +%.1f", p, bonus))
	}

	if node.IsPreferredTier() {
		score += w.PreferredTierBonus
		reasons = append(reasons, fmt.Sprintf("preferred tier: +%.0f", w.PreferredTierBonus))
	}
	if node.IsControlPlane() {
		score -= w.ControlPlanePenalty
		reasons = append(reasons, fmt.Sprintf("control-plane node: -%.0f", w.ControlPlanePenalty))
	}

	return math.Max(MinScore, math.Min(MaxScore, score)), reasons
}
