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
	"slices"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// ConditionType is a valid value of Condition.Type
type ConditionType string

const (
	// ServiceConditionReady indicates all the desired replicas are running.
	ServiceConditionReady ConditionType = "Ready"
	// ServiceConditionSchedulable indicates at least one node is able to host a replica.
	ServiceConditionSchedulable ConditionType = "Schedulable"
)

// Status carries the conditions of a resource, sorted by type.
type Status struct {
	// +optional
	Conditions []metav1.Condition `json:"conditions,omitempty"`
}

// InitializeConditions sets the given conditions to Unknown.
func (s *Status) InitializeConditions(now time.Time, conditionTypes ...ConditionType) {
	for _, t := range conditionTypes {
		s.set(t, metav1.ConditionUnknown, "Unknown", "", now)
	}
}

// set updates a condition, LastTransitionTime only moves when the status flips.
func (s *Status) set(t ConditionType, status metav1.ConditionStatus, reason, message string, now time.Time) {
	meta.SetStatusCondition(&s.Conditions, metav1.Condition{
		Type:               string(t),
		Status:             status,
		Reason:             reason,
		Message:            message,
		LastTransitionTime: metav1.NewTime(now),
	})
	slices.SortFunc(s.Conditions, func(a, b metav1.Condition) int {
		return strings.Compare(a.Type, b.Type)
	})
}

func (s *Status) MarkTrue(t ConditionType, now time.Time) {
	s.set(t, metav1.ConditionTrue, "Successful", "Successful", now)
}

func (s *Status) MarkFalse(t ConditionType, reason, message string, now time.Time) {
	s.set(t, metav1.ConditionFalse, reason, message, now)
}

// GetCondition returns a copy of the condition, nil if it is not set.
func (s *Status) GetCondition(t ConditionType) *metav1.Condition {
	c := meta.FindStatusCondition(s.Conditions, string(t))
	if c == nil {
		return nil
	}
	cc := *c
	return &cc
}

// IsReady returns true when there are conditions and all of them are true.
func (s *Status) IsReady() bool {
	if len(s.Conditions) == 0 {
		return false
	}
	for _, c := range s.Conditions {
		if c.Status != metav1.ConditionTrue {
			return false
		}
	}
	return true
}
