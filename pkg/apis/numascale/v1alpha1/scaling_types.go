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

package v1alpha1

import (
	"fmt"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/utils/ptr"
)

const (
	DefaultTargetUtilization = 70
	DefaultScaleUpCooldown   = 60 * time.Second
	DefaultScaleDownCooldown = 300 * time.Second
)

// ScalingPolicy is the autoscaling configuration of a service. The pointer fields
// left nil, as well as a zero MaxReplicas or TargetUtilization, get the configured
// defaults, an explicit zero is kept.
type ScalingPolicy struct {
	Enabled bool `json:"enabled"`
	// +optional
	MinReplicas *int32 `json:"minReplicas,omitempty"`
	// +optional
	MaxReplicas int32 `json:"maxReplicas,omitempty"`
	// TargetUtilization is a percentage in (0, 100].
	// +optional
	TargetUtilization float64 `json:"targetUtilization,omitempty"`
	// Scale up when the observed response time exceeds it, zero disables the check.
	// +optional
	MaxResponseTime *metav1.Duration `json:"maxResponseTime,omitempty"`
	// Scale up when the observed error rate (percentage) exceeds it, zero disables the check.
	// +optional
	MaxErrorRate *float64 `json:"maxErrorRate,omitempty"`
	// +optional
	ScaleUpCooldown *metav1.Duration `json:"scaleUpCooldown,omitempty"`
	// +optional
	ScaleDownCooldown *metav1.Duration `json:"scaleDownCooldown,omitempty"`
}

func (p *ScalingPolicy) GetMinReplicas() int32 {
	if p.MinReplicas == nil {
		return 0
	}
	return *p.MinReplicas
}

func (p *ScalingPolicy) GetMaxResponseTime() time.Duration {
	if p.MaxResponseTime == nil {
		return 0
	}
	return p.MaxResponseTime.Duration
}

func (p *ScalingPolicy) GetMaxErrorRate() float64 {
	if p.MaxErrorRate == nil {
		return 0
	}
	return *p.MaxErrorRate
}

func (p *ScalingPolicy) Validate() error {
	if p.GetMinReplicas() < 0 {
		return fmt.Errorf("minReplicas must not be negative")
	}
	if p.MaxReplicas < p.GetMinReplicas() {
		return fmt.Errorf("maxReplicas %d must not be smaller than minReplicas %d", p.MaxReplicas, p.GetMinReplicas())
	}
	if p.TargetUtilization <= 0 || p.TargetUtilization > 100 {
		return fmt.Errorf("targetUtilization %v must be in (0, 100]", p.TargetUtilization)
	}
	if p.GetMaxErrorRate() < 0 || p.GetMaxErrorRate() > 100 {
		return fmt.Errorf("maxErrorRate %v must be in [0, 100]", p.GetMaxErrorRate())
	}
	if p.GetMaxResponseTime() < 0 || p.Cooldown(ScalingDirectionUp) < 0 || p.Cooldown(ScalingDirectionDown) < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	return nil
}

// ClampReplicas keeps n within [min, max].
func (p *ScalingPolicy) ClampReplicas(n int32) int32 {
	if n < p.GetMinReplicas() {
		return p.GetMinReplicas()
	}
	if n > p.MaxReplicas {
		return p.MaxReplicas
	}
	return n
}

// Cooldown returns the cooldown of the scaling direction.
func (p *ScalingPolicy) Cooldown(d ScalingDirection) time.Duration {
	c := p.ScaleDownCooldown
	if d == ScalingDirectionUp {
		c = p.ScaleUpCooldown
	}
	if c == nil {
		return 0
	}
	return c.Duration
}

func (p *ScalingPolicy) DeepCopy() *ScalingPolicy {
	if p == nil {
		return nil
	}
	out := *p
	if p.MinReplicas != nil {
		out.MinReplicas = ptr.To(*p.MinReplicas)
	}
	if p.MaxResponseTime != nil {
		out.MaxResponseTime = ptr.To(*p.MaxResponseTime)
	}
	if p.MaxErrorRate != nil {
		out.MaxErrorRate = ptr.To(*p.MaxErrorRate)
	}
	if p.ScaleUpCooldown != nil {
		out.ScaleUpCooldown = ptr.To(*p.ScaleUpCooldown)
	}
	if p.ScaleDownCooldown != nil {
		out.ScaleDownCooldown = ptr.To(*p.ScaleDownCooldown)
	}
	return &out
}

// ScalingMetrics is a snapshot of the observed load of a service.
type ScalingMetrics struct {
	// Utilization percentage per resource dimension.
	Utilization  map[ResourceName]float64 `json:"utilization,omitempty"`
	ResponseTime metav1.Duration          `json:"responseTime,omitempty"`
	// ErrorRate is a percentage.
	ErrorRate float64 `json:"errorRate,omitempty"`
}

func (m ScalingMetrics) DeepCopy() ScalingMetrics {
	out := m
	if m.Utilization != nil {
		out.Utilization = make(map[ResourceName]float64, len(m.Utilization))
		for k, v := range m.Utilization {
			out.Utilization[k] = v
		}
	}
	return out
}

type ScalingDirection string

const (
	ScalingDirectionUp   ScalingDirection = "up"
	ScalingDirectionDown ScalingDirection = "down"
)

type ScalingReason string

const (
	ScalingReasonErrorRateHigh    ScalingReason = "error_rate_high"
	ScalingReasonResponseTimeHigh ScalingReason = "response_time_high"
	ScalingReasonUtilizationHigh  ScalingReason = "utilization_high"
	ScalingReasonUtilizationLow   ScalingReason = "utilization_low"
)

// ScalingDecision is the outcome of a policy evaluation which changes the replica count.
type ScalingDecision struct {
	Service         string           `json:"service"`
	CurrentReplicas int32            `json:"currentReplicas"`
	DesiredReplicas int32            `json:"desiredReplicas"`
	Direction       ScalingDirection `json:"direction"`
	Reason          ScalingReason    `json:"reason"`
	// ResourceEstimate is the resources added or freed by the change.
	ResourceEstimate ResourceList `json:"resourceEstimate"`
	// AverageUtilization is the mean over the reported dimensions.
	AverageUtilization float64     `json:"averageUtilization"`
	Timestamp          metav1.Time `json:"timestamp"`
}

func (d *ScalingDecision) Delta() int32 {
	return d.DesiredReplicas - d.CurrentReplicas
}
