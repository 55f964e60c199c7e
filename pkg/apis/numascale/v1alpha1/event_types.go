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
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

type EventType string

const (
	EventServiceCreated EventType = "service_created"
	EventServiceDeleted EventType = "service_deleted"
	EventServiceScaled  EventType = "service_scaled"
	EventPodCreated     EventType = "pod_created"
	EventPodDeleted     EventType = "pod_deleted"
)

// Reasons of the events which are not scaling decisions.
const (
	EventReasonCreated        = "Created"
	EventReasonDeleted        = "Deleted"
	EventReasonScheduled      = "Scheduled"
	EventReasonScaledDown     = "ScaledDown"
	EventReasonUnitFailed     = "WorkUnitFailed"
	EventReasonServiceDeleted = "ServiceDeleted"
)

// Event is a lifecycle notification emitted by the controller.
type Event struct {
	Type     EventType `json:"type"`
	Service  string    `json:"service"`
	WorkUnit string    `json:"workUnit,omitempty"`
	NodeName string    `json:"nodeName,omitempty"`
	// Allocated is what the work unit holds, or held before its deletion, on the node.
	Allocated ResourceList `json:"allocated,omitempty"`
	// Reason is a machine readable cause, the scaling reason for service_scaled.
	Reason    string      `json:"reason,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp metav1.Time `json:"timestamp"`
}

// ControllerMetrics is a point-in-time summary of the controller state.
type ControllerMetrics struct {
	Services int `json:"services"`
	// ServicesByPhase counts the services of every phase, phases without services included.
	ServicesByPhase map[ServicePhase]int `json:"servicesByPhase"`
	WorkUnits        int `json:"workUnits"`
	RunningWorkUnits int `json:"runningWorkUnits"`
	PendingWorkUnits int `json:"pendingWorkUnits"`
	FailedWorkUnits  int `json:"failedWorkUnits"`
	Nodes            int `json:"nodes"`
	ReadyNodes       int `json:"readyNodes"`
	// NodeUtilization is the utilization percentage per node and dimension.
	NodeUtilization map[string]map[ResourceName]float64 `json:"nodeUtilization,omitempty"`
	Ticks           int64                               `json:"ticks"`
	LastTick        metav1.Time                         `json:"lastTick,omitempty"`
	PendingEvents   int                                 `json:"pendingEvents"`
	DroppedEvents   int64                               `json:"droppedEvents"`
	// Policies is the number of services the autoscaler evaluates.
	Policies int `json:"policies"`
	// RecentDecisions are the latest scaling decisions, oldest first.
	RecentDecisions []*ScalingDecision `json:"recentDecisions,omitempty"`
}
