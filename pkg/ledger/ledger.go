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
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	dfv1 "github.com/numaproj/numascale/pkg/apis/numascale/v1alpha1"
	"github.com/numaproj/numascale/pkg/shared/logging"
)

var (
	ErrUnknownNode = errors.New("unknown node")
	// ErrNodeInUse is returned when removing a node which still hosts allocations.
	ErrNodeInUse = errors.New("node has allocations")
	// ErrCapacityBelowAllocated is returned when an update shrinks the capacity below what is allocated.
	ErrCapacityBelowAllocated = errors.New("capacity is below the allocated amount")
)

type allocation struct {
	nodeName string
	amount   dfv1.ResourceList
}

// Ledger keeps the capacity bookkeeping of all the nodes and the namespace quotas.
//
// For every node and every dimension it maintains
//
//	capacity == allocatable + sum(allocations on the node)
//
// All the mutations are atomic across dimensions.
type Ledger struct {
	lock  *sync.RWMutex
	nodes map[string]*dfv1.Node
	// node names in registration order
	order []string
	// allocations keyed by work unit ID
	allocations map[string]allocation
	quotas      map[string]dfv1.ResourceList
	log         *zap.SugaredLogger
}

// NewLedger returns an empty Ledger.
func NewLedger(ctx context.Context) *Ledger {
	return &Ledger{
		lock:        new(sync.RWMutex),
		nodes:       make(map[string]*dfv1.Node),
		allocations: make(map[string]allocation),
		quotas:      make(map[string]dfv1.ResourceList),
		log:         logging.FromContext(ctx).Named("ledger"),
	}
}

// RegisterOrUpdateNode inserts or replaces a node. The allocatable amount
// is recomputed as the capacity minus the allocations tracked on the node name.
func (l *Ledger) RegisterOrUpdateNode(node *dfv1.Node) error {
	if err := node.Validate(); err != nil {
		return err
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	n := node.DeepCopy()
	used := l.allocatedOn(n.Name)
	allocatable := n.Capacity.Sub(used)
	if k, neg := allocatable.HasNegative(); neg {
		return fmt.Errorf("%w, node %q dimension %q", ErrCapacityBelowAllocated, n.Name, k)
	}
	// dimensions only known from the allocations are not part of the node
	for k := range allocatable {
		if _, ok := n.Capacity[k]; !ok {
			delete(allocatable, k)
		}
	}
	n.Allocatable = allocatable
	if _, existing := l.nodes[n.Name]; !existing {
		l.order = append(l.order, n.Name)
		l.log.Infow("Registered node", zap.String("node", n.Name), zap.String("capacity", n.Capacity.String()))
	} else {
		l.log.Debugw("Updated node", zap.String("node", n.Name), zap.Bool("ready", n.Ready))
	}
	l.nodes[n.Name] = n
	return nil
}

// RemoveNode removes a node without allocations.
func (l *Ledger) RemoveNode(name string) error {
	l.lock.Lock()
	defer l.lock.Unlock()
	if _, ok := l.nodes[name]; !ok {
		return fmt.Errorf("%w %q", ErrUnknownNode, name)
	}
	if !l.allocatedOn(name).IsZero() {
		return fmt.Errorf("%w, node %q", ErrNodeInUse, name)
	}
	delete(l.nodes, name)
	for i, n := range l.order {
		if n == name {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	return nil
}

// GetNode returns a copy of the node.
func (l *Ledger) GetNode(name string) (*dfv1.Node, bool) {
	l.lock.RLock()
	defer l.lock.RUnlock()
	n, ok := l.nodes[name]
	if !ok {
		return nil, false
	}
	return n.DeepCopy(), true
}

// Nodes returns copies of all the nodes in registration order.
func (l *Ledger) Nodes() []*dfv1.Node {
	l.lock.RLock()
	defer l.lock.RUnlock()
	res := make([]*dfv1.Node, 0, len(l.order))
	for _, name := range l.order {
		res = append(res, l.nodes[name].DeepCopy())
	}
	return res
}

// Allocate debits the requests of the unit from the node named by unit.NodeName.
// It either succeeds on every dimension or changes nothing. On success unit.Allocated is set.
func (l *Ledger) Allocate(unit *dfv1.WorkUnit) bool {
	l.lock.Lock()
	defer l.lock.Unlock()
	if _, ok := l.allocations[unit.ID]; ok {
		l.log.Warnw("Work unit is already allocated", zap.String("unit", unit.ID))
		return false
	}
	n, ok := l.nodes[unit.NodeName]
	if !ok {
		return false
	}
	for k, v := range unit.Requests {
		if v < 0 {
			return false
		}
		if _, known := n.Capacity[k]; !known && v > 0 {
			return false
		}
	}
	if !n.Allocatable.Fits(unit.Requests) {
		return false
	}
	amount := unit.Requests.DeepCopy()
	for k, v := range amount {
		if _, known := n.Capacity[k]; known {
			n.Allocatable[k] -= v
		}
	}
	l.allocations[unit.ID] = allocation{nodeName: n.Name, amount: amount}
	unit.Allocated = amount.DeepCopy()
	return true
}

// Release credits back the allocation of the unit. Releasing an unknown unit is a no-op.
func (l *Ledger) Release(unitID string) bool {
	l.lock.Lock()
	defer l.lock.Unlock()
	a, ok := l.allocations[unitID]
	if !ok {
		return false
	}
	delete(l.allocations, unitID)
	if n, ok := l.nodes[a.nodeName]; ok {
		for k, v := range a.amount {
			if _, known := n.Capacity[k]; known {
				n.Allocatable[k] += v
			}
		}
	}
	return true
}

// Allocation returns the node and amount allocated to the unit.
func (l *Ledger) Allocation(unitID string) (string, dfv1.ResourceList, bool) {
	l.lock.RLock()
	defer l.lock.RUnlock()
	a, ok := l.allocations[unitID]
	if !ok {
		return "", nil, false
	}
	return a.nodeName, a.amount.DeepCopy(), true
}

// Utilization returns the used percentage per dimension of the node.
func (l *Ledger) Utilization(nodeName string) (map[dfv1.ResourceName]float64, bool) {
	l.lock.RLock()
	defer l.lock.RUnlock()
	n, ok := l.nodes[nodeName]
	if !ok {
		return nil, false
	}
	return n.Utilization(), true
}

// allocatedOn sums the allocations on a node, the caller holds the lock.
func (l *Ledger) allocatedOn(nodeName string) dfv1.ResourceList {
	sum := dfv1.ResourceList{}
	for _, a := range l.allocations {
		if a.nodeName == nodeName {
			sum = sum.Add(a.amount)
		}
	}
	return sum
}
