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

package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	dfv1 "github.com/numaproj/numascale/pkg/apis/numascale/v1alpha1"
	"github.com/numaproj/numascale/pkg/shared/logging"
)

func newTestLedger(t *testing.T) *Ledger {
	ctx := logging.WithLogger(context.Background(), zaptest.NewLogger(t).Sugar())
	return NewLedger(ctx)
}

func testNode(name string, capacity dfv1.ResourceList) *dfv1.Node {
	return &dfv1.Node{Name: name, Capacity: capacity, Ready: true}
}

func testUnit(id, node string, requests dfv1.ResourceList) *dfv1.WorkUnit {
	return &dfv1.WorkUnit{ID: id, NodeName: node, Requests: requests}
}

// assertConserved checks capacity == allocatable + allocations on every node.
func assertConserved(t *testing.T, l *Ledger) {
	t.Helper()
	l.lock.RLock()
	defer l.lock.RUnlock()
	for name, n := range l.nodes {
		used := l.allocatedOn(name)
		for k, c := range n.Capacity {
			assert.Equal(t, c, n.Allocatable[k]+used[k], "node %s dimension %s", name, k)
			assert.GreaterOrEqual(t, n.Allocatable[k], int64(0))
		}
	}
}

func TestRegisterOrUpdateNode(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.RegisterOrUpdateNode(testNode("n1", dfv1.ResourceList{dfv1.ResourceUnits: 50})))
	n, ok := l.GetNode("n1")
	require.True(t, ok)
	assert.Equal(t, int64(50), n.Allocatable[dfv1.ResourceUnits])

	assert.Error(t, l.RegisterOrUpdateNode(&dfv1.Node{Name: "", Capacity: dfv1.ResourceList{dfv1.ResourceUnits: 1}}))
	assert.Error(t, l.RegisterOrUpdateNode(&dfv1.Node{Name: "n2"}))
	assert.Error(t, l.RegisterOrUpdateNode(testNode("n2", dfv1.ResourceList{dfv1.ResourceUnits: -1})))

	// the caller's allocatable is ignored
	in := testNode("n3", dfv1.ResourceList{dfv1.ResourceUnits: 10})
	in.Allocatable = dfv1.ResourceList{dfv1.ResourceUnits: 999}
	require.NoError(t, l.RegisterOrUpdateNode(in))
	n, _ = l.GetNode("n3")
	assert.Equal(t, int64(10), n.Allocatable[dfv1.ResourceUnits])
}

func TestRegisterOrUpdateNode_KeepsAllocations(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.RegisterOrUpdateNode(testNode("n1", dfv1.ResourceList{dfv1.ResourceUnits: 50})))
	require.True(t, l.Allocate(testUnit("u1", "n1", dfv1.ResourceList{dfv1.ResourceUnits: 20})))

	update := testNode("n1", dfv1.ResourceList{dfv1.ResourceUnits: 60})
	update.Ready = false
	require.NoError(t, l.RegisterOrUpdateNode(update))
	n, _ := l.GetNode("n1")
	assert.False(t, n.Ready)
	assert.Equal(t, int64(40), n.Allocatable[dfv1.ResourceUnits])

	err := l.RegisterOrUpdateNode(testNode("n1", dfv1.ResourceList{dfv1.ResourceUnits: 10}))
	assert.ErrorIs(t, err, ErrCapacityBelowAllocated)
	assertConserved(t, l)
}

func TestNodes_RegistrationOrder(t *testing.T) {
	l := newTestLedger(t)
	for _, name := range []string{"c", "a", "b"} {
		require.NoError(t, l.RegisterOrUpdateNode(testNode(name, dfv1.ResourceList{dfv1.ResourceUnits: 1})))
	}
	require.NoError(t, l.RegisterOrUpdateNode(testNode("a", dfv1.ResourceList{dfv1.ResourceUnits: 2})))
	var names []string
	for _, n := range l.Nodes() {
		names = append(names, n.Name)
	}
	assert.Equal(t, []string{"c", "a", "b"}, names)
}

func TestAllocate(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.RegisterOrUpdateNode(testNode("n1", dfv1.ResourceList{dfv1.ResourceUnits: 50, dfv1.ResourceChannels: 4})))

	u1 := testUnit("u1", "n1", dfv1.ResourceList{dfv1.ResourceUnits: 20, dfv1.ResourceChannels: 1})
	assert.True(t, l.Allocate(u1))
	assert.Equal(t, u1.Requests, u1.Allocated)

	// same unit twice
	assert.False(t, l.Allocate(testUnit("u1", "n1", dfv1.ResourceList{dfv1.ResourceUnits: 1})))

	assert.True(t, l.Allocate(testUnit("u2", "n1", dfv1.ResourceList{dfv1.ResourceUnits: 20, dfv1.ResourceChannels: 1})))

	// units fit but channels do not, nothing is debited
	u3 := testUnit("u3", "n1", dfv1.ResourceList{dfv1.ResourceUnits: 5, dfv1.ResourceChannels: 3})
	assert.False(t, l.Allocate(u3))
	assert.Nil(t, u3.Allocated)
	n, _ := l.GetNode("n1")
	assert.Equal(t, int64(10), n.Allocatable[dfv1.ResourceUnits])
	assert.Equal(t, int64(2), n.Allocatable[dfv1.ResourceChannels])

	// unknown node and unknown dimension
	assert.False(t, l.Allocate(testUnit("u4", "nope", dfv1.ResourceList{dfv1.ResourceUnits: 1})))
	assert.False(t, l.Allocate(testUnit("u5", "n1", dfv1.ResourceList{dfv1.ResourceMemory: 1})))
	assertConserved(t, l)
}

func TestRelease(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.RegisterOrUpdateNode(testNode("n1", dfv1.ResourceList{dfv1.ResourceUnits: 50})))
	require.True(t, l.Allocate(testUnit("u1", "n1", dfv1.ResourceList{dfv1.ResourceUnits: 20})))

	node, amount, ok := l.Allocation("u1")
	require.True(t, ok)
	assert.Equal(t, "n1", node)
	assert.Equal(t, int64(20), amount[dfv1.ResourceUnits])

	assert.True(t, l.Release("u1"))
	assert.False(t, l.Release("u1"))
	assert.False(t, l.Release("never-allocated"))
	n, _ := l.GetNode("n1")
	assert.Equal(t, int64(50), n.Allocatable[dfv1.ResourceUnits])
	_, _, ok = l.Allocation("u1")
	assert.False(t, ok)
	assertConserved(t, l)
}

func TestRemoveNode(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.RegisterOrUpdateNode(testNode("n1", dfv1.ResourceList{dfv1.ResourceUnits: 50})))
	require.True(t, l.Allocate(testUnit("u1", "n1", dfv1.ResourceList{dfv1.ResourceUnits: 20})))
	assert.ErrorIs(t, l.RemoveNode("n1"), ErrNodeInUse)
	assert.ErrorIs(t, l.RemoveNode("n2"), ErrUnknownNode)
	l.Release("u1")
	assert.NoError(t, l.RemoveNode("n1"))
	assert.Empty(t, l.Nodes())
}

func TestUtilization(t *testing.T) {
	l := newTestLedger(t)
	_, ok := l.Utilization("n1")
	assert.False(t, ok)

	require.NoError(t, l.RegisterOrUpdateNode(testNode("n1", dfv1.ResourceList{dfv1.ResourceUnits: 50, dfv1.ResourceChannels: 0})))
	require.True(t, l.Allocate(testUnit("u1", "n1", dfv1.ResourceList{dfv1.ResourceUnits: 20})))
	u, ok := l.Utilization("n1")
	require.True(t, ok)
	assert.InDelta(t, 40.0, u[dfv1.ResourceUnits], 0.0001)
	assert.Equal(t, 0.0, u[dfv1.ResourceChannels])
}

func TestQuota(t *testing.T) {
	l := newTestLedger(t)
	assert.True(t, l.CheckQuota("ml", dfv1.ResourceList{dfv1.ResourceUnits: 1 << 40}))

	require.NoError(t, l.SetQuota("ml", dfv1.ResourceList{dfv1.ResourceUnits: 100}))
	assert.True(t, l.CheckQuota("ml", dfv1.ResourceList{dfv1.ResourceUnits: 100}))
	assert.False(t, l.CheckQuota("ml", dfv1.ResourceList{dfv1.ResourceUnits: 101}))
	// dimensions without quota are not limited
	assert.True(t, l.CheckQuota("ml", dfv1.ResourceList{dfv1.ResourceChannels: 1000}))
	// other namespaces are not affected
	assert.True(t, l.CheckQuota("web", dfv1.ResourceList{dfv1.ResourceUnits: 101}))

	q, ok := l.Quota("ml")
	require.True(t, ok)
	assert.Equal(t, int64(100), q[dfv1.ResourceUnits])
	assert.Len(t, l.Quotas(), 1)

	assert.Error(t, l.SetQuota("", dfv1.ResourceList{dfv1.ResourceUnits: 1}))
	assert.Error(t, l.SetQuota("ml", dfv1.ResourceList{dfv1.ResourceUnits: -1}))

	require.NoError(t, l.SetQuota("ml", nil))
	_, ok = l.Quota("ml")
	assert.False(t, ok)
}

func TestConcurrentAllocateRelease(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.RegisterOrUpdateNode(testNode("n1", dfv1.ResourceList{dfv1.ResourceUnits: 100})))
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("u%d", i)
			if l.Allocate(testUnit(id, "n1", dfv1.ResourceList{dfv1.ResourceUnits: 7})) && i%2 == 0 {
				l.Release(id)
			}
			_, _ = l.Utilization("n1")
		}(i)
	}
	wg.Wait()
	assertConserved(t, l)
}
