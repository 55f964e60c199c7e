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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dfv1 "github.com/numaproj/numascale/pkg/apis/numascale/v1alpha1"
)

// node builds a ready node with 100 units where used units are already allocated.
func node(name string, used int64) *dfv1.Node {
	return &dfv1.Node{
		Name:        name,
		Ready:       true,
		Capacity:    dfv1.ResourceList{dfv1.ResourceUnits: 100},
		Allocatable: dfv1.ResourceList{dfv1.ResourceUnits: 100 - used},
	}
}

func unit(units int64) *dfv1.WorkUnit {
	return &dfv1.WorkUnit{ID: "u", Requests: dfv1.ResourceList{dfv1.ResourceUnits: units}}
}

func TestSchedule_Filter(t *testing.T) {
	s := NewScheduler()
	notReady := node("not-ready", 0)
	notReady.Ready = false
	full := node("full", 95)

	_, err := s.Schedule(unit(10), []*dfv1.Node{notReady, full})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoFeasibleNode))
	assert.Contains(t, err.Error(), "not-ready: node is not ready")
	assert.Contains(t, err.Error(), "full: insufficient units")

	_, err = s.Schedule(unit(10), nil)
	assert.ErrorIs(t, err, ErrNoFeasibleNode)
	assert.Contains(t, err.Error(), "no nodes registered")

	// exact fit passes
	r, err := s.Schedule(unit(5), []*dfv1.Node{full})
	require.NoError(t, err)
	assert.Equal(t, "full", r.NodeName)
}

func TestSchedule_UtilizationBand(t *testing.T) {
	s := NewScheduler()
	idle := node("idle", 10)
	busy := node("busy", 80)
	balanced := node("balanced", 50)

	r, err := s.Schedule(unit(5), []*dfv1.Node{idle, busy, balanced})
	require.NoError(t, err)
	assert.Equal(t, "balanced", r.NodeName)
	assert.Equal(t, float64(DefaultBalancedScore), r.Score)

	r, err = s.Schedule(unit(5), []*dfv1.Node{busy, idle})
	require.NoError(t, err)
	assert.Equal(t, "idle", r.NodeName)
	assert.Equal(t, float64(DefaultIdleScore), r.Score)
}

func TestSchedule_BandEdgesAreInclusive(t *testing.T) {
	s := NewScheduler()
	score, _ := s.Score(unit(1), node("a", 30))
	assert.Equal(t, float64(DefaultBalancedScore), score)
	score, _ = s.Score(unit(1), node("b", 70))
	assert.Equal(t, float64(DefaultBalancedScore), score)
	score, _ = s.Score(unit(1), node("c", 71))
	assert.Equal(t, float64(DefaultBusyScore), score)
}

func TestSchedule_TieKeepsFirstSeen(t *testing.T) {
	s := NewScheduler()
	nodes := []*dfv1.Node{node("first", 0), node("second", 0), node("third", 0)}
	r, err := s.Schedule(unit(1), nodes)
	require.NoError(t, err)
	assert.Equal(t, "first", r.NodeName)
}

func TestScore_Bonuses(t *testing.T) {
	s := NewScheduler()
	n := node("gpu", 50)
	n.Capabilities = &dfv1.NodeCapabilities{Features: []string{"fp16", "rdma"}, Processors: 8}
	n.Labels = map[string]string{dfv1.KeyTier: dfv1.TierPreferred}

	u := unit(1)
	u.Features = []string{"fp16", "int8"}
	score, reasons := s.Score(u, n)
	// 50 band + 10 fp16 + 4 processors + 15 tier
	assert.Equal(t, 79.0, score)
	assert.Len(t, reasons, 4)
	assert.Contains(t, reasons[1], "fp16")
}

func TestScore_ProcessorBonusIsCapped(t *testing.T) {
	s := NewScheduler()
	n := node("big", 50)
	n.Capabilities = &dfv1.NodeCapabilities{Processors: 128}
	score, _ := s.Score(unit(1), n)
	assert.Equal(t, float64(DefaultBalancedScore+DefaultMaxProcessorBonus), score)
}

func TestScore_ClampedToRange(t *testing.T) {
	s := NewScheduler()
	cp := node("cp", 90)
	cp.Labels = map[string]string{dfv1.KeyRole: dfv1.RoleControlPlane}
	score, reasons := s.Score(unit(1), cp)
	// 10 - 20 is clamped to 0
	assert.Equal(t, 0.0, score)
	assert.Contains(t, reasons[len(reasons)-1], "control-plane")

	rich := node("rich", 50)
	rich.Labels = map[string]string{dfv1.KeyTier: dfv1.TierPreferred}
	rich.Capabilities = &dfv1.NodeCapabilities{Features: []string{"a", "b", "c", "d"}, Processors: 64}
	u := unit(1)
	u.Features = []string{"a", "b", "c", "d"}
	score, _ = s.Score(u, rich)
	assert.Equal(t, 100.0, score)
}

func TestSchedule_ControlPlaneLosesToWorker(t *testing.T) {
	s := NewScheduler()
	cp := node("cp", 50)
	cp.Labels = map[string]string{dfv1.KeyRole: dfv1.RoleControlPlane}
	worker := node("worker", 50)
	r, err := s.Schedule(unit(1), []*dfv1.Node{cp, worker})
	require.NoError(t, err)
	assert.Equal(t, "worker", r.NodeName)
}

func TestWithWeights(t *testing.T) {
	w := DefaultWeights()
	w.IdleScore = 90
	s := NewScheduler(WithWeights(w), nil)
	assert.Equal(t, 90.0, s.Weights().IdleScore)
	r, err := s.Schedule(unit(1), []*dfv1.Node{node("balanced", 50), node("idle", 0)})
	require.NoError(t, err)
	assert.Equal(t, "idle", r.NodeName)
}

func TestWithWeightsFunc(t *testing.T) {
	w := DefaultWeights()
	s := NewScheduler(WithWeights(DefaultWeights()), WithWeightsFunc(func() Weights { return w }))
	nodes := []*dfv1.Node{node("balanced", 50), node("idle", 0)}
	r, err := s.Schedule(unit(1), nodes)
	require.NoError(t, err)
	assert.Equal(t, "balanced", r.NodeName)

	// no rebuild needed to pick up new weights
	w.IdleScore = 90
	assert.Equal(t, 90.0, s.Weights().IdleScore)
	r, err = s.Schedule(unit(1), nodes)
	require.NoError(t, err)
	assert.Equal(t, "idle", r.NodeName)
	score, _ := s.Score(unit(1), node("other", 0))
	assert.Equal(t, 90.0, score)
}

func TestNodeUtilization(t *testing.T) {
	n := &dfv1.Node{
		Capacity:    dfv1.ResourceList{dfv1.ResourceUnits: 100, dfv1.ResourceChannels: 10},
		Allocatable: dfv1.ResourceList{dfv1.ResourceUnits: 50, dfv1.ResourceChannels: 10},
	}
	assert.InDelta(t, 25.0, NodeUtilization(n), 0.0001)
	assert.Equal(t, 0.0, NodeUtilization(&dfv1.Node{}))
}
