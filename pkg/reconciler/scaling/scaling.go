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

package scaling

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	dfv1 "github.com/numaproj/numascale/pkg/apis/numascale/v1alpha1"
	"github.com/numaproj/numascale/pkg/shared/logging"
	"github.com/numaproj/numascale/pkg/shared/queue"
)

type Engine struct {
	// policies keyed by "namespace/name"
	policies map[string]*dfv1.ScalingPolicy
	lock     *sync.RWMutex
	options  *options
	// Most recent decisions, the oldest ones overflow
	history *queue.OverflowQueue[*dfv1.ScalingDecision]
}

// NewEngine returns an Engine instance.
func NewEngine(opts ...Option) *Engine {
	engineOpts := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(engineOpts)
		}
	}
	return &Engine{
		policies: make(map[string]*dfv1.ScalingPolicy),
		lock:     new(sync.RWMutex),
		options:  engineOpts,
		history:  queue.New[*dfv1.ScalingDecision](engineOpts.historySize),
	}
}

// SetPolicy registers or replaces the policy of a service key (namespace/name).
func (e *Engine) SetPolicy(key string, policy *dfv1.ScalingPolicy) error {
	if policy == nil {
		return fmt.Errorf("nil scaling policy for %q", key)
	}
	if err := policy.Validate(); err != nil {
		return err
	}
	e.lock.Lock()
	defer e.lock.Unlock()
	e.policies[key] = policy.DeepCopy()
	return nil
}

// RemovePolicy stops evaluating the key (namespace/name).
func (e *Engine) RemovePolicy(key string) {
	e.lock.Lock()
	defer e.lock.Unlock()
	delete(e.policies, key)
}

// Policy returns a copy of the policy of the key.
func (e *Engine) Policy(key string) (*dfv1.ScalingPolicy, bool) {
	e.lock.RLock()
	defer e.lock.RUnlock()
	p, ok := e.policies[key]
	if !ok {
		return nil, false
	}
	return p.DeepCopy(), true
}

// PolicyCount returns how many services have a policy.
func (e *Engine) PolicyCount() int {
	e.lock.RLock()
	defer e.lock.RUnlock()
	return len(e.policies)
}

// History returns the recorded decisions, oldest first.
func (e *Engine) History() []*dfv1.ScalingDecision {
	return e.history.Items()
}

// Evaluate decides whether the service should change its replica count.
// It returns nil when the policy is absent or disabled, or when nothing should change.
// Every returned decision is recorded in the history.
//
// Scale up is triggered by any of
//
//	averageUtilization > targetUtilization * scaleUpThreshold
//	responseTime > maxResponseTime
//	errorRate > maxErrorRate
//
// and yields min(max, ceil(current * scaleUpFactor)). The triggers do not add up.
// Otherwise scale down is triggered by
//
//	averageUtilization < targetUtilization * scaleDownThreshold
//
// and yields max(min, floor(current * scaleDownFactor)).
func (e *Engine) Evaluate(ctx context.Context, key string, current int32, metrics dfv1.ScalingMetrics) *dfv1.ScalingDecision {
	log := logging.FromContext(ctx).With("service", key)
	policy, ok := e.Policy(key)
	if !ok || !policy.Enabled {
		return nil
	}
	d := e.decide(policy, current, metrics)
	if d == nil {
		return nil
	}
	d.Service = key
	d.Timestamp = metav1.NewTime(e.options.clock.Now())
	e.history.Append(d)
	log.Infow("Scaling decision",
		zap.Int32("current", d.CurrentReplicas),
		zap.Int32("desired", d.DesiredReplicas),
		zap.String("reason", string(d.Reason)),
		zap.Float64("averageUtilization", d.AverageUtilization))
	// callers get their own copy
	out := *d
	out.ResourceEstimate = d.ResourceEstimate.DeepCopy()
	return &out
}

func (e *Engine) decide(p *dfv1.ScalingPolicy, current int32, m dfv1.ScalingMetrics) *dfv1.ScalingDecision {
	avg, hasUtilization := averageUtilization(m.Utilization)
	errorRateHigh := p.GetMaxErrorRate() > 0 && m.ErrorRate > p.GetMaxErrorRate()
	responseTimeHigh := p.GetMaxResponseTime() > 0 && m.ResponseTime.Duration > p.GetMaxResponseTime()
	utilizationHigh := hasUtilization && avg > p.TargetUtilization*e.options.scaleUpThreshold
	utilizationLow := hasUtilization && avg < p.TargetUtilization*e.options.scaleDownThreshold

	var desired int32
	var reason dfv1.ScalingReason
	switch {
	case errorRateHigh || responseTimeHigh || utilizationHigh:
		desired = int32(math.Ceil(float64(current) * e.options.scaleUpFactor))
		if desired <= current {
			// a service at zero replicas still moves up
			desired = current + 1
		}
		if desired > p.MaxReplicas {
			desired = p.MaxReplicas
		}
		switch {
		case errorRateHigh:
			reason = dfv1.ScalingReasonErrorRateHigh
		case responseTimeHigh:
			reason = dfv1.ScalingReasonResponseTimeHigh
		default:
			reason = dfv1.ScalingReasonUtilizationHigh
		}
	case utilizationLow:
		desired = int32(math.Floor(float64(current) * e.options.scaleDownFactor))
		if desired < p.GetMinReplicas() {
			desired = p.GetMinReplicas()
		}
		reason = dfv1.ScalingReasonUtilizationLow
	default:
		return nil
	}
	desired = p.ClampReplicas(desired)
	if desired == current {
		return nil
	}
	direction := dfv1.ScalingDirectionUp
	delta := int64(desired - current)
	if delta < 0 {
		direction = dfv1.ScalingDirectionDown
		delta = -delta
	}
	return &dfv1.ScalingDecision{
		CurrentReplicas:    current,
		DesiredReplicas:    desired,
		Direction:          direction,
		Reason:             reason,
		ResourceEstimate:   e.options.replicaFootprint.Scale(delta),
		AverageUtilization: avg,
	}
}

// averageUtilization returns the mean over the dimensions, false if there is none.
func averageUtilization(u map[dfv1.ResourceName]float64) (float64, bool) {
	if len(u) == 0 {
		return 0, false
	}
	data := make(stats.Float64Data, 0, len(u))
	for _, v := range u {
		data = append(data, v)
	}
	mean, err := stats.Mean(data)
	if err != nil {
		return 0, false
	}
	return mean, true
}
