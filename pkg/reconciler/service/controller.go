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


package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/imdario/mergo"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/validation"

	dfv1 "github.com/numaproj/numascale/pkg/apis/numascale/v1alpha1"
	"github.com/numaproj/numascale/pkg/placement"
	"github.com/numaproj/numascale/pkg/reconciler"
	"github.com/numaproj/numascale/pkg/shared/logging"
	"github.com/numaproj/numascale/pkg/shared/queue"
)

// Ledger keeps the node inventory, the allocations and the namespace quotas.
type Ledger interface {
	RegisterOrUpdateNode(node *dfv1.Node) error
	Nodes() []*dfv1.Node
	Allocate(unit *dfv1.WorkUnit) bool
	Release(unitID string) bool
	Utilization(nodeName string) (map[dfv1.ResourceName]float64, bool)
	SetQuota(namespace string, quota dfv1.ResourceList) error
	Quota(namespace string) (dfv1.ResourceList, bool)
	Quotas() map[string]dfv1.ResourceList
	CheckQuota(namespace string, requested dfv1.ResourceList) bool
}

// Scorer picks the node for a work unit.
type Scorer interface {
	Schedule(unit *dfv1.WorkUnit, nodes []*dfv1.Node) (*placement.Result, error)
}

// Evaluator turns the metrics of a service into scaling decisions.
type Evaluator interface {
	SetPolicy(key string, policy *dfv1.ScalingPolicy) error
	RemovePolicy(key string)
	Evaluate(ctx context.Context, key string, current int32, metrics dfv1.ScalingMetrics) *dfv1.ScalingDecision
	History() []*dfv1.ScalingDecision
	PolicyCount() int
}

// number of decisions in the controller metrics
const recentDecisions = 10

// Controller owns the services and their work units. Every mutation, including a whole
// reconciliation tick, happens under one lock. Reads return copies.
type Controller struct {
	ledger    Ledger
	scorer    Scorer
	evaluator Evaluator

	lock     *sync.RWMutex
	services map[string]*dfv1.Service
	// service keys in creation order
	serviceKeys []string
	units       map[string]*dfv1.WorkUnit
	sequence    int64
	lastTick    time.Time

	// events waiting for room in the channel
	pendingEvents []dfv1.Event
	events        chan dfv1.Event
	recentEvents  *queue.OverflowQueue[dfv1.Event]
	droppedEvents *atomic.Int64

	// metrics reported by the services, keyed by service key
	reportedMetrics *lru.Cache[string, dfv1.ScalingMetrics]
	ticking         *atomic.Bool
	ticks           *atomic.Int64

	options *options
	log     *zap.SugaredLogger
}

// NewController returns a controller driving the given ledger, scorer and evaluator.
func NewController(ctx context.Context, ledger Ledger, scorer Scorer, evaluator Evaluator, opts ...Option) (*Controller, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if o.metricsCacheSize <= 0 {
		return nil, fmt.Errorf("invalid metrics cache size %d", o.metricsCacheSize)
	}
	if o.eventBufferSize < 0 {
		return nil, fmt.Errorf("invalid event buffer size %d", o.eventBufferSize)
	}
	cache, err := lru.New[string, dfv1.ScalingMetrics](o.metricsCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics cache, %w", err)
	}
	return &Controller{
		ledger:          ledger,
		scorer:          scorer,
		evaluator:       evaluator,
		lock:            new(sync.RWMutex),
		services:        make(map[string]*dfv1.Service),
		units:           make(map[string]*dfv1.WorkUnit),
		events:          make(chan dfv1.Event, o.eventBufferSize),
		recentEvents:    queue.New[dfv1.Event](o.recentEvents),
		droppedEvents:   atomic.NewInt64(0),
		reportedMetrics: cache,
		ticking:         atomic.NewBool(false),
		ticks:           atomic.NewInt64(0),
		options:         o,
		log:             logging.FromContext(ctx).Named("controller"),
	}, nil
}

func (c *Controller) now() time.Time {
	return c.options.clock.Now()
}

// CreateService registers a service and returns its "namespace/name" key.
// The work units are created by the following ticks.
func (c *Controller) CreateService(spec dfv1.ServiceSpec) (string, error) {
	svc := (&dfv1.Service{Spec: spec}).DeepCopy()
	if svc.Spec.Policy != nil {
		p, err := c.withPolicyDefaults(svc.Spec.Policy)
		if err != nil {
			return "", reconciler.NewValidationError("invalid scaling policy, %v", err)
		}
		svc.Spec.Policy = p
	}
	if err := svc.Spec.Validate(); err != nil {
		return "", &reconciler.ValidationError{Err: err}
	}
	svc.Name = svc.Spec.Name
	svc.Namespace = svc.Spec.Namespace
	key := svc.Key()

	c.lock.Lock()
	defer c.lock.Unlock()
	if _, existing := c.services[key]; existing {
		return "", &reconciler.ValidationError{Err: fmt.Errorf("service %q %w", key, reconciler.ErrAlreadyExists)}
	}
	desired := svc.GetDesiredReplicas()
	if err := c.checkQuotaLocked(svc.Namespace, key, svc.Spec.TotalRequests(desired)); err != nil {
		return "", err
	}
	if svc.Spec.Policy != nil {
		if err := c.evaluator.SetPolicy(key, svc.Spec.Policy); err != nil {
			return "", &reconciler.ValidationError{Err: err}
		}
	}
	now := c.now()
	svc.UID = uuid.NewString()
	svc.Status.InitConditions(now)
	svc.Status.MarkPhasePending("Waiting for work units", now)
	c.services[key] = svc
	c.serviceKeys = append(c.serviceKeys, key)
	c.updateServiceMetricsLocked(svc)
	c.emitLocked(dfv1.Event{
		Type:    dfv1.EventServiceCreated,
		Service: key,
		Reason:  dfv1.EventReasonCreated,
		Message: fmt.Sprintf("desired replicas %d, requests per replica %s", desired, svc.Spec.Template.Requests),
	})
	c.flushEventsLocked()
	c.log.Infow("Service created", zap.String("service", key), zap.Int32("replicas", desired))
	return key, nil
}

// DeleteService removes a service and releases everything its work units hold.
// It returns false if the service does not exist.
func (c *Controller) DeleteService(id string) bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	svc, ok := c.services[id]
	if !ok {
		return false
	}
	units := c.unitsOfLocked(id)
	for i := len(units) - 1; i >= 0; i-- {
		c.removeUnitLocked(units[i], dfv1.EventReasonServiceDeleted, "service deleted")
	}
	c.evaluator.RemovePolicy(id)
	c.reportedMetrics.Remove(id)
	delete(c.services, id)
	for i, k := range c.serviceKeys {
		if k == id {
			c.serviceKeys = append(c.serviceKeys[:i], c.serviceKeys[i+1:]...)
			break
		}
	}
	reconciler.DeleteServiceMetrics(svc.Namespace, svc.Name)
	c.emitLocked(dfv1.Event{Type: dfv1.EventServiceDeleted, Service: id, Reason: dfv1.EventReasonDeleted})
	c.flushEventsLocked()
	c.log.Infow("Service deleted", zap.String("service", id), zap.Int("workUnits", len(units)))
	return true
}

// GetService returns a copy of the service.
func (c *Controller) GetService(id string) (*dfv1.Service, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	svc, ok := c.services[id]
	if !ok {
		return nil, false
	}
	return svc.DeepCopy(), true
}

// ListServices returns copies of all the services in creation order.
func (c *Controller) ListServices() []*dfv1.Service {
	c.lock.RLock()
	defer c.lock.RUnlock()
	res := make([]*dfv1.Service, 0, len(c.serviceKeys))
	for _, k := range c.serviceKeys {
		res = append(res, c.services[k].DeepCopy())
	}
	return res
}

// ListWorkUnits returns copies of the work units of a service, or of all the services
// when serviceID is empty, in creation order.
func (c *Controller) ListWorkUnits(serviceID string) []*dfv1.WorkUnit {
	c.lock.RLock()
	defer c.lock.RUnlock()
	res := make([]*dfv1.WorkUnit, 0)
	for _, u := range c.units {
		if serviceID == "" || u.Service == serviceID {
			res = append(res, u.DeepCopy())
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Sequence < res[j].Sequence })
	return res
}

// SetResourceQuota sets the quota of a namespace, an empty list removes it.
// Existing work units are never evicted by a lower quota.
func (c *Controller) SetResourceQuota(namespace string, quota dfv1.ResourceList) error {
	if errs := validation.IsDNS1123Label(namespace); len(errs) > 0 {
		return reconciler.NewValidationError("invalid namespace %q, %v", namespace, errs)
	}
	if k, neg := quota.HasNegative(); neg {
		return reconciler.NewValidationError("negative quota for %q", k)
	}
	if err := c.ledger.SetQuota(namespace, quota); err != nil {
		return &reconciler.ValidationError{Err: err}
	}
	c.log.Infow("Resource quota updated", zap.String("namespace", namespace), zap.String("quota", quota.String()))
	return nil
}

// RegisterOrUpdateNode adds a node or replaces its capacity, labels and capabilities.
func (c *Controller) RegisterOrUpdateNode(node *dfv1.Node) error {
	if node == nil {
		return reconciler.NewValidationError("node is nil")
	}
	if err := node.Validate(); err != nil {
		return &reconciler.ValidationError{Err: err}
	}
	if err := c.ledger.RegisterOrUpdateNode(node); err != nil {
		return &reconciler.ValidationError{Err: err}
	}
	c.log.Infow("Node registered", zap.String("node", node.Name), zap.String("capacity", node.Capacity.String()), zap.Bool("ready", node.Ready))
	return nil
}

// SetScalingPolicy replaces the policy of a service, nil turns autoscaling off.
// Fields left out are filled with the configured defaults, and the desired
// replicas are clamped into the new bounds.
func (c *Controller) SetScalingPolicy(id string, policy *dfv1.ScalingPolicy) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	svc, ok := c.services[id]
	if !ok {
		return fmt.Errorf("service %q %w", id, reconciler.ErrNotFound)
	}
	if policy == nil {
		c.evaluator.RemovePolicy(id)
		svc.Spec.Policy = nil
		c.updateServiceMetricsLocked(svc)
		c.log.Infow("Scaling policy removed", zap.String("service", id))
		return nil
	}
	p, err := c.withPolicyDefaults(policy)
	if err != nil {
		return reconciler.NewValidationError("invalid scaling policy, %v", err)
	}
	if err := p.Validate(); err != nil {
		return reconciler.NewValidationError("invalid scaling policy, %w", err)
	}
	replicas := svc.Spec.Replicas
	if p.Enabled {
		replicas = p.ClampReplicas(replicas)
		if replicas > svc.GetDesiredReplicas() {
			if err := c.checkQuotaLocked(svc.Namespace, id, svc.Spec.TotalRequests(replicas)); err != nil {
				return err
			}
		}
	}
	if err := c.evaluator.SetPolicy(id, p); err != nil {
		return &reconciler.ValidationError{Err: err}
	}
	svc.Spec.Policy = p
	svc.Spec.Replicas = replicas
	c.updateServiceMetricsLocked(svc)
	c.log.Infow("Scaling policy updated", zap.String("service", id), zap.Bool("enabled", p.Enabled),
		zap.Int32("min", p.GetMinReplicas()), zap.Int32("max", p.MaxReplicas))
	return nil
}

// ReportServiceMetrics records a metrics snapshot used by the next autoscaling passes
// instead of the measured node utilization.
func (c *Controller) ReportServiceMetrics(id string, metrics dfv1.ScalingMetrics) error {
	for k, v := range metrics.Utilization {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return reconciler.NewValidationError("invalid utilization %v for %q", v, k)
		}
	}
	if metrics.ErrorRate < 0 || math.IsNaN(metrics.ErrorRate) {
		return reconciler.NewValidationError("invalid error rate %v", metrics.ErrorRate)
	}
	if metrics.ResponseTime.Duration < 0 {
		return reconciler.NewValidationError("negative response time %v", metrics.ResponseTime.Duration)
	}
	c.lock.RLock()
	_, ok := c.services[id]
	c.lock.RUnlock()
	if !ok {
		return fmt.Errorf("service %q %w", id, reconciler.ErrNotFound)
	}
	c.reportedMetrics.Add(id, metrics.DeepCopy())
	return nil
}

// UpdateWorkUnitStatus records a health report. An unhealthy running unit becomes Failed,
// and is released and replaced by the next tick.
func (c *Controller) UpdateWorkUnitStatus(id string, report dfv1.WorkUnitReport) error {
	if report.OperationRate < 0 || math.IsNaN(report.OperationRate) {
		return reconciler.NewValidationError("invalid operation rate %v", report.OperationRate)
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	u, ok := c.units[id]
	if !ok {
		return fmt.Errorf("work unit %q %w", id, reconciler.ErrNotFound)
	}
	u.Status.OperationRate = report.OperationRate
	u.Status.LastHealthCheck = metav1.NewTime(c.now())
	if !report.Healthy && u.Phase == dfv1.WorkUnitPhaseRunning {
		msg := report.Message
		if msg == "" {
			msg = "health check failed"
		}
		u.MarkFailed(dfv1.ReasonUnhealthy, msg)
		c.log.Infow("Work unit reported unhealthy", zap.String("service", u.Service), zap.String("workUnit", u.Name), zap.String("message", msg))
	}
	return nil
}

// GetControllerMetrics returns a summary of the controller state.
func (c *Controller) GetControllerMetrics() dfv1.ControllerMetrics {
	c.lock.RLock()
	defer c.lock.RUnlock()
	m := dfv1.ControllerMetrics{
		Services:        len(c.services),
		ServicesByPhase: make(map[dfv1.ServicePhase]int),
		WorkUnits:       len(c.units),
		NodeUtilization: make(map[string]map[dfv1.ResourceName]float64),
		Ticks:           c.ticks.Load(),
		PendingEvents:   len(c.pendingEvents),
		DroppedEvents:   c.droppedEvents.Load(),
		Policies:        c.evaluator.PolicyCount(),
	}
	if !c.lastTick.IsZero() {
		m.LastTick = metav1.NewTime(c.lastTick)
	}
	if history := c.evaluator.History(); len(history) > recentDecisions {
		m.RecentDecisions = history[len(history)-recentDecisions:]
	} else {
		m.RecentDecisions = history
	}
	for _, phase := range []dfv1.ServicePhase{dfv1.ServicePhasePending, dfv1.ServicePhaseRunning, dfv1.ServicePhaseScaling, dfv1.ServicePhaseFailed} {
		m.ServicesByPhase[phase] = 0
	}
	for _, svc := range c.services {
		m.ServicesByPhase[svc.Status.Phase]++
	}
	for _, u := range c.units {
		switch u.Phase {
		case dfv1.WorkUnitPhaseRunning:
			m.RunningWorkUnits++
		case dfv1.WorkUnitPhasePending:
			m.PendingWorkUnits++
		case dfv1.WorkUnitPhaseFailed:
			m.FailedWorkUnits++
		}
	}
	for _, n := range c.ledger.Nodes() {
		m.Nodes++
		if n.Ready {
			m.ReadyNodes++
		}
		if util, ok := c.ledger.Utilization(n.Name); ok {
			m.NodeUtilization[n.Name] = util
		}
	}
	return m
}

// ScalingHistory returns the recorded scaling decisions, oldest first.
func (c *Controller) ScalingHistory() []*dfv1.ScalingDecision {
	return c.evaluator.History()
}

// Nodes returns copies of the registered nodes.
func (c *Controller) Nodes() []*dfv1.Node {
	return c.ledger.Nodes()
}

// Quotas returns the namespace quotas.
func (c *Controller) Quotas() map[string]dfv1.ResourceList {
	return c.ledger.Quotas()
}

// withPolicyDefaults fills the fields the caller left out. A non nil pointer is kept
// even when it points to zero.
func (c *Controller) withPolicyDefaults(policy *dfv1.ScalingPolicy) (*dfv1.ScalingPolicy, error) {
	p := policy.DeepCopy()
	if err := mergo.Merge(p, c.options.config.GetPolicyDefaults(), mergo.WithoutDereference); err != nil {
		return nil, err
	}
	return p, nil
}

// checkQuotaLocked checks the demand of a service together with the rest of its namespace.
func (c *Controller) checkQuotaLocked(namespace, key string, demand dfv1.ResourceList) error {
	total := c.namespaceDemandLocked(namespace, key).Add(demand)
	if c.ledger.CheckQuota(namespace, total) {
		return nil
	}
	quota, _ := c.ledger.Quota(namespace)
	return &reconciler.QuotaExceededError{Namespace: namespace, Requested: total, Quota: quota}
}

// namespaceDemandLocked sums the requests of the desired replicas in a namespace, excluding one service.
func (c *Controller) namespaceDemandLocked(namespace, excludeKey string) dfv1.ResourceList {
	demand := dfv1.ResourceList{}
	for key, svc := range c.services {
		if svc.Namespace != namespace || key == excludeKey {
			continue
		}
		demand = demand.Add(svc.Spec.TotalRequests(svc.GetDesiredReplicas()))
	}
	return demand
}

func (c *Controller) unitsOfLocked(key string) []*dfv1.WorkUnit {
	var res []*dfv1.WorkUnit
	for _, u := range c.units {
		if u.Service == key {
			res = append(res, u)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Sequence < res[j].Sequence })
	return res
}
