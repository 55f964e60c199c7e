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

type WorkUnitPhase string

const (
	WorkUnitPhasePending WorkUnitPhase = "Pending"
	WorkUnitPhaseRunning WorkUnitPhase = "Running"
	WorkUnitPhaseFailed  WorkUnitPhase = "Failed"
)

// Reasons recorded on a work unit which could not be placed.
const (
	ReasonSchedulingFailure = "SchedulingFailure"
	ReasonAllocationRace    = "AllocationRace"
	ReasonUnhealthy         = "Unhealthy"
)

// WorkUnit is one replica of a service.
type WorkUnit struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
	// Service is the "namespace/name" key of the owning service.
	Service string `json:"service"`
	// NodeName is empty until the unit is scheduled.
	NodeName string        `json:"nodeName,omitempty"`
	Phase    WorkUnitPhase `json:"phase"`
	Requests ResourceList  `json:"requests"`
	Limits   ResourceList  `json:"limits,omitempty"`
	// Allocated is set only after a successful allocation.
	Allocated ResourceList `json:"allocated,omitempty"`
	// Features required by the unit, used for capability scoring.
	Features []string `json:"features,omitempty"`
	// Sequence orders units of a service by creation.
	Sequence  int64          `json:"sequence"`
	CreatedAt metav1.Time    `json:"createdAt"`
	Status    WorkUnitStatus `json:"status"`
}

type WorkUnitStatus struct {
	OperationRate   float64     `json:"operationRate"`
	LastHealthCheck metav1.Time `json:"lastHealthCheck,omitempty"`
	Reason          string      `json:"reason,omitempty"`
	Message         string      `json:"message,omitempty"`
}

// WorkUnitReport is a health report pushed by whatever runs the unit.
type WorkUnitReport struct {
	OperationRate float64 `json:"operationRate"`
	Healthy       bool    `json:"healthy"`
	Message       string  `json:"message,omitempty"`
}

func (w *WorkUnit) IsScheduled() bool {
	return w.NodeName != "" && w.Allocated != nil
}

// MarkPending resets the placement and records the reason.
func (w *WorkUnit) MarkPending(reason, message string) {
	w.Phase = WorkUnitPhasePending
	w.NodeName = ""
	w.Allocated = nil
	w.Status.Reason = reason
	w.Status.Message = message
}

func (w *WorkUnit) MarkRunning() {
	w.Phase = WorkUnitPhaseRunning
	w.Status.Reason = ""
	w.Status.Message = ""
}

func (w *WorkUnit) MarkFailed(reason, message string) {
	w.Phase = WorkUnitPhaseFailed
	w.Status.Reason = reason
	w.Status.Message = message
}

func (w *WorkUnit) DeepCopy() *WorkUnit {
	if w == nil {
		return nil
	}
	out := *w
	out.Requests = w.Requests.DeepCopy()
	out.Limits = w.Limits.DeepCopy()
	out.Allocated = w.Allocated.DeepCopy()
	out.Features = append([]string(nil), w.Features...)
	return &out
}
