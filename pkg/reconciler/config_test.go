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

package reconciler

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dfv1 "github.com/numaproj/numascale/pkg/apis/numascale/v1alpha1"
	"github.com/numaproj/numascale/pkg/placement"
)

const testConfig = `
controller:
  tickInterval: 5s
  eventBufferSize: 10
  replicaFootprint:
    units: "20"
    memory: 2Gi
scoring:
  preferredTierBonus: 25
policyDefaults:
  maxReplicas: 6
  scaleUpCooldown: 10s
nodes:
  - name: node-a
    labels:
      - numascale.io/tier=preferred
    capacity:
      units: "50"
      memory: 64Gi
    features:
      - fp16
    processors: 16
  - name: node-b
    notReady: true
    capacity:
      units: "100"
quotas:
  ml:
    units: "80"
`

func writeConfig(t *testing.T, content string) string {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "controller-config.yaml"), []byte(content), 0o600))
	return dir
}

func TestNewGlobalConfig(t *testing.T) {
	g := NewGlobalConfig()
	cc := g.GetControllerConfig()
	assert.Equal(t, dfv1.DefaultTickInterval, cc.TickInterval)
	assert.Equal(t, 1000, cc.EventBufferSize)
	assert.Equal(t, placement.DefaultWeights(), g.GetScoringWeights())
	p := g.GetPolicyDefaults()
	assert.False(t, p.Enabled)
	assert.Equal(t, int32(1), p.GetMinReplicas())
	assert.Equal(t, dfv1.DefaultScaleDownCooldown, p.Cooldown(dfv1.ScalingDirectionDown))
	nodes, err := g.GetNodes()
	require.NoError(t, err)
	assert.Empty(t, nodes)
	fp, err := cc.GetReplicaFootprint()
	require.NoError(t, err)
	assert.Nil(t, fp)
}

func TestLoadConfig(t *testing.T) {
	dir := writeConfig(t, testConfig)
	g, err := LoadConfig(func(err error) {}, dir)
	require.NoError(t, err)

	cc := g.GetControllerConfig()
	assert.Equal(t, 5*time.Second, cc.TickInterval)
	assert.Equal(t, 10, cc.EventBufferSize)
	// untouched fields keep their defaults
	assert.Equal(t, 100, cc.HistorySize)
	fp, err := cc.GetReplicaFootprint()
	require.NoError(t, err)
	assert.Equal(t, int64(20), fp[dfv1.ResourceUnits])
	assert.Equal(t, int64(2<<30), fp[dfv1.ResourceMemory])

	w := g.GetScoringWeights()
	assert.Equal(t, 25.0, w.PreferredTierBonus)
	assert.Equal(t, float64(placement.DefaultBalancedScore), w.BalancedScore)

	p := g.GetPolicyDefaults()
	assert.Equal(t, int32(6), p.MaxReplicas)
	assert.Equal(t, int32(1), p.GetMinReplicas())
	assert.Equal(t, 10*time.Second, p.Cooldown(dfv1.ScalingDirectionUp))

	nodes, err := g.GetNodes()
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "node-a", nodes[0].Name)
	assert.True(t, nodes[0].Ready)
	assert.True(t, nodes[0].IsPreferredTier())
	assert.True(t, nodes[0].HasFeature("fp16"))
	assert.Equal(t, 16, nodes[0].GetProcessors())
	assert.Equal(t, int64(64<<30), nodes[0].Capacity[dfv1.ResourceMemory])
	assert.False(t, nodes[1].Ready)
	assert.Nil(t, nodes[1].Capabilities)

	quotas, err := g.GetQuotas()
	require.NoError(t, err)
	assert.Equal(t, int64(80), quotas["ml"][dfv1.ResourceUnits])
}

func TestLoadConfig_ReloadsScoringWeights(t *testing.T) {
	dir := writeConfig(t, testConfig)
	g, err := LoadConfig(func(err error) {}, dir)
	require.NoError(t, err)
	require.Equal(t, 25.0, g.GetScoringWeights().PreferredTierBonus)

	s := placement.NewScheduler(placement.WithWeightsFunc(g.GetScoringWeights))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "controller-config.yaml"), []byte("scoring:\n  preferredTierBonus: 40\n"), 0o600))
	require.Eventually(t, func() bool {
		return s.Weights().PreferredTierBonus == 40
	}, 5*time.Second, 50*time.Millisecond)
	assert.Equal(t, float64(placement.DefaultIdleScore), s.Weights().IdleScore)
}

func TestLoadConfig_Missing(t *testing.T) {
	_, err := LoadConfig(func(err error) {}, t.TempDir())
	assert.Error(t, err)
}

func TestLoadConfig_InvalidNode(t *testing.T) {
	dir := writeConfig(t, "nodes:\n  - name: bad\n    capacity:\n      units: lots\n")
	g, err := LoadConfig(func(err error) {}, dir)
	require.NoError(t, err)
	_, err = g.GetNodes()
	assert.Error(t, err)
}
