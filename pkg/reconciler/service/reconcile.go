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
	"time"

	"github.com/google/uuid"
	"github.com/montanaflynn/stats"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"

	dfv1 "github.com/numaproj/numascale/pkg/apis/numascale/v1alpha1"
	"github.com/numaproj/numascale/pkg/reconciler"
	"github.com/numaproj/numascale/pkg/shared/logging"
)

type step struct {
	name string
	fn   func(ctx context.Context) error
}

// Run ticks every interval until the context is done. A slow tick delays the next one.
func (c *Controller) Run(ctx context.Context) {
	c.log.Infow("Starting reconciliation loop", zap.Duration("interval", c.options.tickInterval))
	wait.UntilWithContext(ctx, func(ctx context.Context) {
		c.Tick(ctx)
	}, c.options.tickInterval)
	c.log.Info("Exited reconciliation loop")
}

// Tick runs one reconciliation immediately. It returns false without doing anything
// if another tick is in progress.
func (c *Controller) Tick(ctx context.Context) bool {
	if !c.ticking.CompareAndSwap(false, true) {
		c.log.Debug("A tick is in progress, skip")
		return false
	}
	defer c.ticking.Store(false)
	start := time.Now()
	defer func() {
		reconciler.TickDuration.Observe(time.Since(start).Seconds())
	}()
	ctx = logging.WithFields(logging.WithLogger(ctx, c.log), "tick", c.ticks.Load()+1)

	c.lock.Lock()
	defer c.lock.Unlock()
	var errs error
	for _, s := range []step{
		{name: "refresh", fn: c.refreshStatusLocked},
		{name: "autoscale", fn: c.autoscaleLocked},
		{name: "reconcile", fn: c.reconcileLocked},
		{name: "refresh", fn: c.refreshStatusLocked},
	} {
		errs = multierr.Append(errs, c.runStep(ctx, s))
	}
	c.updateNodeMetricsLocked()
	c.lastTick = c.now()
	c.ticks.Inc()
	c.flushEventsLocked()
	if errs != nil {
		failures := multierr.Errors(errs)
		reconciler.TickErrors.Add(float64(len(failures)))
		c.log.Errorw("Tick finished with errors", zap.Int("failures", len(failures)), zap.Error(errs))
	}
	return true
}

func (c *Controller) runStep(ctx context.Context, s step) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Errorw("Recovered from a panic", zap.String("step", s.name), zap.Any("panic", r))
			err = fmt.Errorf("step %s panicked: %v", s.name, r)
		}
	}()
	if e := s.fn(ctx); e != nil {
		return fmt.Errorf("step %s failed, %w", s.name, e)
	}
	return nil
}

// autoscaleLocked evaluates every service with an enabled policy and applies the
// decisions which are neither in cooldown nor beyond the namespace quota.
func (c *Controller) autoscaleLocked(ctx context.Context) error {
	for _, key := range c.serviceKeys {
		svc := c.services[key]
		if p := svc.Spec.Policy; p == nil || !p.Enabled {
			continue
		}
		log := c.log.With("service", key)
		current := svc.GetDesiredReplicas()
		d := c.evaluator.Evaluate(ctx, key, current, c.serviceMetricsLocked(svc))
		if d == nil {
			continue
		}
		now := c.now()
		if last := svc.Status.LastScaled(d.Direction); !last.IsZero() {
			cooldown := svc.Spec.Policy.Cooldown(d.Direction)
			if elapsed := now.Sub(last.Time); elapsed < cooldown {
				log.Infow("Cooldown period, skip scaling", zap.String("direction", string(d.Direction)),
					zap.Duration("remaining", cooldown-elapsed))
				reconciler.ScalingSuppressed.WithLabelValues(svc.Namespace, svc.Name, "cooldown").Inc()
				continue
			}
		}
		if d.Direction == dfv1.ScalingDirectionUp {
			if err := c.checkQuotaLocked(svc.Namespace, key, svc.Spec.TotalRequests(d.DesiredReplicas)); err != nil {
				log.Infow("Skip scaling up", zap.Error(err))
				reconciler.ScalingSuppressed.WithLabelValues(svc.Namespace, svc.Name, reconciler.ReasonQuotaExceeded).Inc()
				continue
			}
		}
		svc.Spec.Replicas = d.DesiredReplicas
		svc.Status.MarkScaled(d.Direction, now)
		msg := fmt.Sprintf("Scaling from %d to %d replicas, %s", current, d.DesiredReplicas, d.Reason)
		svc.Status.MarkPhaseScaling(msg, now)
		reconciler.ScalingDecisions.WithLabelValues(svc.Namespace, svc.Name, string(d.Direction), string(d.Reason)).Inc()
		c.emitLocked(dfv1.Event{
			Type:    dfv1.EventServiceScaled,
			Service: key,
			Reason:  string(d.Reason),
			Message: msg,
		})
		log.Infow("Service scaled", zap.Int32("from", current), zap.Int32("to", d.DesiredReplicas),
			zap.String("reason", string(d.Reason)), zap.String("estimate", d.ResourceEstimate.String()))
	}
	return nil
}

// serviceMetricsLocked returns the reported metrics of the service if any, otherwise the
// mean utilization of the nodes hosting its running units, per requested dimension.
func (c *Controller) serviceMetricsLocked(svc *dfv1.Service) dfv1.ScalingMetrics {
	if m, ok := c.reportedMetrics.Get(svc.Key()); ok {
		return m.DeepCopy()
	}
	samples := make(map[dfv1.ResourceName][]float64)
	seen := make(map[string]bool)
	for _, u := range c.unitsOfLocked(svc.Key()) {
		if !reconciler.IsUnitReady(u) || seen[u.NodeName] {
			continue
		}
		seen[u.NodeName] = true
		util, ok := c.ledger.Utilization(u.NodeName)
		if !ok {
			continue
		}
		for name := range svc.Spec.Template.Requests {
			if v, ok := util[name]; ok {
				samples[name] = append(samples[name], v)
			}
		}
	}
	m := dfv1.ScalingMetrics{}
	if len(samples) == 0 {
		return m
	}
	m.Utilization = make(map[dfv1.ResourceName]float64, len(samples))
	for name, values := range samples {
		if mean, err := stats.Mean(values); err == nil {
			m.Utilization[name] = mean
		}
	}
	return m
}

func (c *Controller) reconcileLocked(ctx context.Context) error {
	var errs error
	for _, key := range c.serviceKeys {
		errs = multierr.Append(errs, c.reconcileServiceLocked(c.services[key]))
	}
	return errs
}

// reconcileServiceLocked replaces the failed units, deletes the newest units beyond the
// desired replicas, then places the pending and missing ones.
func (c *Controller) reconcileServiceLocked(svc *dfv1.Service) error {
	var errs error
	alive := make([]*dfv1.WorkUnit, 0)
	for _, u := range c.unitsOfLocked(svc.Key()) {
		if u.Phase == dfv1.WorkUnitPhaseFailed {
			c.removeUnitLocked(u, dfv1.EventReasonUnitFailed, fmt.Sprintf("replacing failed work unit, %s", u.Status.Message))
			continue
		}
		alive = append(alive, u)
	}
	desired := int(svc.GetDesiredReplicas())
	for len(alive) > desired {
		c.removeUnitLocked(alive[len(alive)-1], dfv1.EventReasonScaledDown, "scaled down")
		alive = alive[:len(alive)-1]
	}
	for _, u := range alive {
		if u.Phase == dfv1.WorkUnitPhasePending {
			errs = multierr.Append(errs, c.placeLocked(svc, u))
		}
	}
	for len(alive) < desired {
		u := c.newUnitLocked(svc)
		alive = append(alive, u)
		errs = multierr.Append(errs, c.placeLocked(svc, u))
	}
	return errs
}

func (c *Controller) newUnitLocked(svc *dfv1.Service) *dfv1.WorkUnit {
	c.sequence++
	id := uuid.NewString()
	u := &dfv1.WorkUnit{
		ID:        id,
		Name:      fmt.Sprintf("%s-%s", svc.Name, id[:8]),
		Namespace: svc.Namespace,
		Service:   svc.Key(),
		Phase:     dfv1.WorkUnitPhasePending,
		Requests:  svc.Spec.Template.Requests.DeepCopy(),
		Limits:    svc.Spec.Template.Requests.Scale(c.options.limitMultiplier),
		Features:  append([]string(nil), svc.Spec.Template.Features...),
		Sequence:  c.sequence,
		CreatedAt: metav1.NewTime(c.now()),
	}
	c.units[id] = u
	return u
}

// placeLocked schedules and allocates a unit. A unit which can not be placed stays Pending,
// only an allocation race is returned as an error.
func (c *Controller) placeLocked(svc *dfv1.Service, u *dfv1.WorkUnit) error {
	log := c.log.With("service", svc.Key(), "workUnit", u.Name)
	result, err := c.scorer.Schedule(u, c.ledger.Nodes())
	if err != nil {
		if u.Status.Reason != dfv1.ReasonSchedulingFailure {
			log.Infow("Work unit can not be scheduled", zap.Error(err))
		}
		u.MarkPending(dfv1.ReasonSchedulingFailure, err.Error())
		reconciler.SchedulingFailures.WithLabelValues(svc.Namespace, svc.Name, dfv1.ReasonSchedulingFailure).Inc()
		return nil
	}
	u.NodeName = result.NodeName
	if !c.ledger.Allocate(u) {
		err := fmt.Errorf("work unit %q on node %q, %w", u.Name, result.NodeName, reconciler.ErrAllocationRace)
		u.MarkPending(dfv1.ReasonAllocationRace, err.Error())
		reconciler.SchedulingFailures.WithLabelValues(svc.Namespace, svc.Name, dfv1.ReasonAllocationRace).Inc()
		return err
	}
	u.MarkRunning()
	c.emitLocked(dfv1.Event{
		Type:      dfv1.EventPodCreated,
		Service:   svc.Key(),
		WorkUnit:  u.Name,
		NodeName:  u.NodeName,
		Allocated: u.Allocated.DeepCopy(),
		Reason:    dfv1.EventReasonScheduled,
		Message:   fmt.Sprintf("placed with score %.1f", result.Score),
	})
	log.Infow("Work unit placed", zap.String("node", u.NodeName), zap.Float64("score", result.Score))
	return nil
}

// removeUnitLocked releases the allocation of a unit before forgetting it.
func (c *Controller) removeUnitLocked(u *dfv1.WorkUnit, reason, msg string) {
	placed := c.ledger.Release(u.ID) || u.NodeName != ""
	delete(c.units, u.ID)
	if placed {
		c.emitLocked(dfv1.Event{
			Type:      dfv1.EventPodDeleted,
			Service:   u.Service,
			WorkUnit:  u.Name,
			NodeName:  u.NodeName,
			Allocated: u.Allocated.DeepCopy(),
			Reason:    reason,
			Message:   msg,
		})
	}
	c.log.Infow("Work unit deleted", zap.String("service", u.Service), zap.String("workUnit", u.Name), zap.String("reason", reason), zap.String("message", msg))
}

// refreshStatusLocked recomputes replicas, conditions and phases of every service.
func (c *Controller) refreshStatusLocked(context.Context) error {
	nodes := c.ledger.Nodes()
	now := c.now()
	for _, key := range c.serviceKeys {
		svc := c.services[key]
		units := c.unitsOfLocked(key)
		desired := svc.GetDesiredReplicas()
		replicas, ready := int32(len(units)), int32(reconciler.NumOfReadyUnits(units))
		if svc.Status.Replicas != replicas || svc.Status.ReadyReplicas != ready {
			svc.Status.LastUpdated = metav1.NewTime(now)
		}
		svc.Status.Replicas = replicas
		svc.Status.ReadyReplicas = ready

		schedulable := desired == 0 || reconciler.FitsAnyNode(svc.Spec.Template.Requests, nodes)
		if schedulable {
			svc.Status.MarkTrue(dfv1.ServiceConditionSchedulable, now)
		} else {
			svc.Status.MarkFalse(dfv1.ServiceConditionSchedulable, "NoFittingNode",
				fmt.Sprintf("No ready node can host a replica requesting %s", svc.Spec.Template.Requests), now)
		}
		healthy, reason, msg := reconciler.CheckWorkUnitsStatus(units, desired)
		if healthy {
			svc.Status.MarkTrue(dfv1.ServiceConditionReady, now)
		} else {
			svc.Status.MarkFalse(dfv1.ServiceConditionReady, reason, msg, now)
		}

		switch reconciler.ServicePhaseOf(units, desired, svc.Status.Phase) {
		case dfv1.ServicePhaseFailed:
			if svc.Status.Phase != dfv1.ServicePhaseFailed {
				svc.Status.MarkPhaseFailed(msg, now)
			}
		case dfv1.ServicePhaseRunning:
			svc.Status.MarkPhaseRunning(now)
		case dfv1.ServicePhaseScaling:
			svc.Status.MarkPhaseScaling(msg, now)
		default:
			svc.Status.MarkPhasePending(msg, now)
		}
		c.updateServiceMetricsLocked(svc)
	}
	return nil
}

func (c *Controller) updateServiceMetricsLocked(svc *dfv1.Service) {
	ns, name := svc.Namespace, svc.Name
	reconciler.ServiceDesiredReplicas.WithLabelValues(ns, name).Set(float64(svc.GetDesiredReplicas()))
	reconciler.ServiceCurrentReplicas.WithLabelValues(ns, name).Set(float64(svc.Status.Replicas))
	reconciler.ServiceReadyReplicas.WithLabelValues(ns, name).Set(float64(svc.Status.ReadyReplicas))
	reconciler.ServiceCurrentPhase.WithLabelValues(ns, name).Set(reconciler.PhaseValue(svc.Status.Phase))
	if svc.Status.IsReady() {
		reconciler.ServiceHealth.WithLabelValues(ns, name).Set(1)
	} else {
		reconciler.ServiceHealth.WithLabelValues(ns, name).Set(0)
	}
	if p := svc.Spec.Policy; p != nil && p.Enabled {
		reconciler.ServiceMinReplicas.WithLabelValues(ns, name).Set(float64(p.GetMinReplicas()))
		reconciler.ServiceMaxReplicas.WithLabelValues(ns, name).Set(float64(p.MaxReplicas))
	} else {
		reconciler.ServiceMinReplicas.DeleteLabelValues(ns, name)
		reconciler.ServiceMaxReplicas.DeleteLabelValues(ns, name)
	}
}

func (c *Controller) updateNodeMetricsLocked() {
	for _, n := range c.ledger.Nodes() {
		if util, ok := c.ledger.Utilization(n.Name); ok {
			for dim, v := range util {
				reconciler.NodeUtilization.WithLabelValues(n.Name, string(dim)).Set(v)
			}
		}
	}
}
