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


package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	dfv1 "github.com/numaproj/numascale/pkg/apis/numascale/v1alpha1"
	"github.com/numaproj/numascale/pkg/reconciler"
	"github.com/numaproj/numascale/pkg/shared/logging"
)

const testConfig = `
controller:
  tickInterval: 1s
  replicaFootprint:
    units: "5"
nodes:
  - name: node-a
    capacity:
      units: "100"
      memory: 8Gi
  - name: node-b
    capacity:
      units: "50"
quotas:
  ml:
    units: "60"
`

func loadTestConfig(t *testing.T, content string) *reconciler.GlobalConfig {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "controller-config.yaml"), []byte(content), 0o600))
	config, err := reconciler.LoadConfig(func(err error) {}, dir)
	require.NoError(t, err)
	return config
}

func TestNewController(t *testing.T) {
	ctx := logging.WithLogger(context.Background(), zaptest.NewLogger(t).Sugar())
	c, err := NewController(ctx, loadTestConfig(t, testConfig))
	require.NoError(t, err)

	nodes := c.Nodes()
	require.Len(t, nodes, 2)
	assert.Equal(t, "node-a", nodes[0].Name)
	assert.Equal(t, int64(60), c.Quotas()["ml"][dfv1.ResourceUnits])

	id, err := c.CreateService(dfv1.ServiceSpec{
		Name:      "api",
		Namespace: "ml",
		Replicas:  2,
		Template:  dfv1.WorkUnitTemplate{Requests: dfv1.ResourceList{dfv1.ResourceUnits: 20}},
	})
	require.NoError(t, err)
	assert.True(t, c.Tick(ctx))
	svc, ok := c.GetService(id)
	require.True(t, ok)
	assert.Equal(t, int32(2), svc.Status.ReadyReplicas)
}

func TestNewController_InvalidNode(t *testing.T) {
	ctx := logging.WithLogger(context.Background(), zaptest.NewLogger(t).Sugar())
	_, err := NewController(ctx, loadTestConfig(t, "nodes:\n  - name: bad\n    capacity:\n      units: lots\n"))
	assert.Error(t, err)
}

func TestDrainEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(logging.WithLogger(context.Background(), zaptest.NewLogger(t).Sugar()))
	events := make(chan dfv1.Event)
	done := make(chan struct{})
	go func() {
		drainEvents(ctx, events)
		close(done)
	}()
	events <- dfv1.Event{Type: dfv1.EventServiceCreated, Service: "default/api"}
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("drainEvents did not return")
	}
}
