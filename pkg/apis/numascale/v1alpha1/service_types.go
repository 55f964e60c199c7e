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
	"slices"
	"strings"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/validation"
)

type ServicePhase string

const (
	ServicePhaseUnknown ServicePhase = ""
	ServicePhasePending ServicePhase = "Pending"
	ServicePhaseRunning ServicePhase = "Running"
	ServicePhaseScaling ServicePhase = "Scaling"
	ServicePhaseFailed  ServicePhase = "Failed"
)

// ServiceSpec is what a caller submits to declare a service.
type ServiceSpec struct {
	Name      string `json:"name"`
	Namespace string `json:"namespace,omitempty"`
	// Template of every work unit of the service.
	Template WorkUnitTemplate `json:"template"`
	// Replicas is the desired replica count, the autoscaler updates it.
	Replicas int32 `json:"replicas"`
	// +optional
	Policy *ScalingPolicy `json:"policy,omitempty"`
}

type WorkUnitTemplate struct {
	Requests ResourceList `json:"requests"`
	// +optional
	Features []string `json:"features,omitempty"`
}

// Service is a declared service with its observed status.
type Service struct {
	UID       string        `json:"uid"`
	Name      string        `json:"name"`
	Namespace string        `json:"namespace"`
	Spec      ServiceSpec   `json:"spec"`
	Status    ServiceStatus `json:"status"`
}

type ServiceStatus struct {
	Status        `json:",inline"`
	Phase         ServicePhase `json:"phase"`
	Message       string       `json:"message,omitempty"`
	Replicas      int32        `json:"replicas"`
	ReadyReplicas int32        `json:"readyReplicas"`
	LastUpdated   metav1.Time  `json:"lastUpdated,omitempty"`
	// LastScaledAt is the time of the last scaling in either direction.
	// +optional
	LastScaledAt metav1.Time `json:"lastScaledAt,omitempty"`
	// +optional
	LastScaledUpAt metav1.Time `json:"lastScaledUpAt,omitempty"`
	// +optional
	LastScaledDownAt metav1.Time `json:"lastScaledDownAt,omitempty"`
}

// ServiceKey returns the "namespace/name" key.
func ServiceKey(namespace, name string) string {
	return namespace + "/" + name
}

// SplitServiceKey is the reverse of ServiceKey, a key without namespace gets the default one.
func SplitServiceKey(key string) (namespace, name string) {
	if ns, n, ok := strings.Cut(key, "/"); ok {
		return ns, n
	}
	return DefaultNamespace, key
}

func (s *Service) Key() string {
	return ServiceKey(s.Namespace, s.Name)
}

// GetDesiredReplicas returns the desired replicas, bounded by the policy when it is enabled.
func (s *Service) GetDesiredReplicas() int32 {
	if p := s.Spec.Policy; p != nil && p.Enabled {
		return p.ClampReplicas(s.Spec.Replicas)
	}
	return s.Spec.Replicas
}

// TotalRequests is the demand of all the desired replicas.
func (s *ServiceSpec) TotalRequests(replicas int32) ResourceList {
	return s.Template.Requests.Scale(int64(replicas))
}

// Validate checks the spec and fills in the default namespace.
func (s *ServiceSpec) Validate() error {
	if s.Namespace == "" {
		s.Namespace = DefaultNamespace
	}
	if errs := validation.IsDNS1123Label(s.Name); len(errs) > 0 {
		return fmt.Errorf("invalid service name %q, %s", s.Name, strings.Join(errs, ", "))
	}
	if errs := validation.IsDNS1123Label(s.Namespace); len(errs) > 0 {
		return fmt.Errorf("invalid namespace %q, %s", s.Namespace, strings.Join(errs, ", "))
	}
	if s.Replicas < 0 {
		return fmt.Errorf("replicas must not be negative")
	}
	if len(s.Template.Requests) == 0 || s.Template.Requests.IsZero() {
		return fmt.Errorf("template requests must not be empty")
	}
	if k, neg := s.Template.Requests.HasNegative(); neg {
		return fmt.Errorf("negative request for %q", k)
	}
	if s.Policy != nil {
		if err := s.Policy.Validate(); err != nil {
			return fmt.Errorf("invalid scaling policy, %w", err)
		}
	}
	return nil
}

func (s *ServiceStatus) MarkPhase(phase ServicePhase, msg string, now time.Time) {
	if s.Phase != phase || s.Message != msg {
		s.LastUpdated = metav1.NewTime(now)
	}
	s.Phase = phase
	s.Message = msg
}

func (s *ServiceStatus) MarkPhasePending(msg string, now time.Time) {
	s.MarkPhase(ServicePhasePending, msg, now)
}

func (s *ServiceStatus) MarkPhaseRunning(now time.Time) {
	s.MarkPhase(ServicePhaseRunning, "", now)
}

func (s *ServiceStatus) MarkPhaseScaling(msg string, now time.Time) {
	s.MarkPhase(ServicePhaseScaling, msg, now)
}

func (s *ServiceStatus) MarkPhaseFailed(msg string, now time.Time) {
	s.MarkPhase(ServicePhaseFailed, msg, now)
}

// LastScaled returns the time of the last scaling in the direction, zero if it never happened.
func (s *ServiceStatus) LastScaled(d ScalingDirection) metav1.Time {
	if d == ScalingDirectionUp {
		return s.LastScaledUpAt
	}
	return s.LastScaledDownAt
}

// MarkScaled records a scaling in the direction.
func (s *ServiceStatus) MarkScaled(d ScalingDirection, now time.Time) {
	t := metav1.NewTime(now)
	s.LastScaledAt = t
	if d == ScalingDirectionUp {
		s.LastScaledUpAt = t
	} else {
		s.LastScaledDownAt = t
	}
}

// InitConditions sets conditions to Unknown state.
func (s *ServiceStatus) InitConditions(now time.Time) {
	s.InitializeConditions(now, ServiceConditionReady, ServiceConditionSchedulable)
}

func (s *Service) DeepCopy() *Service {
	if s == nil {
		return nil
	}
	out := *s
	out.Spec.Template.Requests = s.Spec.Template.Requests.DeepCopy()
	out.Spec.Template.Features = append([]string(nil), s.Spec.Template.Features...)
	out.Spec.Policy = s.Spec.Policy.DeepCopy()
	out.Status.Conditions = slices.Clone(s.Status.Conditions)
	return &out
}
