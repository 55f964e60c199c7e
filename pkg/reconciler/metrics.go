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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	dfv1 "github.com/numaproj/numascale/pkg/apis/numascale/v1alpha1"
)

const (
	LabelVersion   = "version"
	LabelPlatform  = "platform"
	LabelNamespace = "namespace"
	LabelService   = "service"
	LabelNode      = "node"
	LabelResource  = "resource"
	LabelDirection = "direction"
	LabelReason    = "reason"
	LabelEventType = "type"
)

var (
	// Registry holds the controller metrics, exposed at /metrics.
	Registry = prometheus.NewRegistry()

	// BuildInfo provides the controller binary build information including version and platform, etc.
	BuildInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "controller",
		Name:      "build_info",
		Help:      "A metric with a constant value '1', labeled with controller version and platform from which numascale was built",
	}, []string{LabelVersion, LabelPlatform})

	// ServiceHealth indicates whether all the desired replicas of a service are running.
	ServiceHealth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "controller",
		Name:      "service_health",
		Help:      "A metric to indicate whether the service is healthy. '1' means healthy, '0' means unhealthy",
	}, []string{LabelNamespace, LabelService})

	ServiceCurrentPhase = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "controller",
		Name:      "service_current_phase",
		Help:      "A metric to indicate the service phase. '0' means Unknown, '1' means Pending, '2' means Running, '3' means Scaling, '4' means Failed",
	}, []string{LabelNamespace, LabelService})

	// ServiceDesiredReplicas indicates the desired replicas of a service.
	ServiceDesiredReplicas = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "controller",
		Name:      "service_desired_replicas",
		Help:      "A metric indicates the desired replicas of a service",
	}, []string{LabelNamespace, LabelService})

	// ServiceCurrentReplicas indicates the current replicas of a service.
	ServiceCurrentReplicas = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "controller",
		Name:      "service_current_replicas",
		Help:      "A metric indicates the current replicas of a service",
	}, []string{LabelNamespace, LabelService})

	// ServiceReadyReplicas indicates the running replicas of a service.
	ServiceReadyReplicas = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "controller",
		Name:      "service_ready_replicas",
		Help:      "A metric indicates the ready replicas of a service",
	}, []string{LabelNamespace, LabelService})

	// ServiceMinReplicas indicates the min replicas of a service.
	ServiceMinReplicas = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "controller",
		Name:      "service_min_replicas",
		Help:      "A metric indicates the min replicas of a service",
	}, []string{LabelNamespace, LabelService})

	// ServiceMaxReplicas indicates the max replicas of a service.
	ServiceMaxReplicas = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "controller",
		Name:      "service_max_replicas",
		Help:      "A metric indicates the max replicas of a service",
	}, []string{LabelNamespace, LabelService})

	// NodeUtilization indicates the used percentage of a node per resource dimension.
	NodeUtilization = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "controller",
		Name:      "node_utilization",
		Help:      "A metric indicates the used percentage of a node resource",
	}, []string{LabelNode, LabelResource})

	ScalingDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "controller",
		Name:      "scaling_decisions_total",
		Help:      "Total number of applied scaling decisions",
	}, []string{LabelNamespace, LabelService, LabelDirection, LabelReason})

	// ScalingSuppressed counts the decisions not applied because of cooldown or quota.
	ScalingSuppressed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "controller",
		Name:      "scaling_suppressed_total",
		Help:      "Total number of scaling decisions suppressed by cooldown or quota",
	}, []string{LabelNamespace, LabelService, LabelReason})

	SchedulingFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "controller",
		Name:      "scheduling_failures_total",
		Help:      "Total number of work units which could not be placed",
	}, []string{LabelNamespace, LabelService, LabelReason})

	EventsEmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "controller",
		Name:      "events_total",
		Help:      "Total number of lifecycle events emitted",
	}, []string{LabelEventType})

	EventsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: "controller",
		Name:      "events_dropped_total",
		Help:      "Total number of lifecycle events dropped because nobody consumed them",
	})

	TickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Subsystem: "controller",
		Name:      "tick_duration_seconds",
		Help:      "Duration of a reconciliation tick",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
	})

	TickErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: "controller",
		Name:      "tick_errors_total",
		Help:      "Total number of failed reconciliation steps",
	})

	// APIRequestsThrottled counts the API requests rejected by the rate limiter.
	APIRequestsThrottled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "server",
		Name:      "requests_throttled_total",
		Help:      "Total number of API requests rejected by the rate limiter",
	}, []string{"method"})
)

func init() {
	Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	Registry.MustRegister(BuildInfo, ServiceHealth, ServiceCurrentPhase,
		ServiceDesiredReplicas, ServiceCurrentReplicas, ServiceReadyReplicas,
		ServiceMinReplicas, ServiceMaxReplicas, NodeUtilization,
		ScalingDecisions, ScalingSuppressed, SchedulingFailures,
		EventsEmitted, EventsDropped, TickDuration, TickErrors, APIRequestsThrottled)
}

// PhaseValue maps a phase to the value of ServiceCurrentPhase.
func PhaseValue(phase dfv1.ServicePhase) float64 {
	switch phase {
	case dfv1.ServicePhasePending:
		return 1
	case dfv1.ServicePhaseRunning:
		return 2
	case dfv1.ServicePhaseScaling:
		return 3
	case dfv1.ServicePhaseFailed:
		return 4
	default:
		return 0
	}
}

// DeleteServiceMetrics drops the series of a deleted service.
func DeleteServiceMetrics(namespace, service string) {
	labels := map[string]string{LabelNamespace: namespace, LabelService: service}
	for _, g := range []*prometheus.GaugeVec{ServiceHealth, ServiceCurrentPhase, ServiceDesiredReplicas,
		ServiceCurrentReplicas, ServiceReadyReplicas, ServiceMinReplicas, ServiceMaxReplicas} {
		g.Delete(labels)
	}
	ScalingDecisions.DeletePartialMatch(labels)
	ScalingSuppressed.DeletePartialMatch(labels)
	SchedulingFailures.DeletePartialMatch(labels)
}
