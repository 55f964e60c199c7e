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
	"fmt"

	dfv1 "github.com/numaproj/numascale/pkg/apis/numascale/v1alpha1"
)

// CheckWorkUnitsStatus checks the status by iterating over the work units of a service.
func CheckWorkUnitsStatus(units []*dfv1.WorkUnit, desired int32) (healthy bool, reason string, message string) {
	if len(units) == 0 {
		if desired == 0 {
			return true, "NoReplicas", "No replicas desired"
		}
		return false, "NoWorkUnits", "No work units created yet"
	}
	for _, u := range units {
		switch u.Phase {
		case dfv1.WorkUnitPhaseFailed:
			return false, "WorkUnitFailed", fmt.Sprintf("Work unit %s failed: %s", u.Name, u.Status.Message)
		case dfv1.WorkUnitPhasePending:
			reason := u.Status.Reason
			if reason == "" {
				reason = "Pending"
			}
			return false, reason, fmt.Sprintf("Work unit %s is pending", u.Name)
		}
	}
	if ready := NumOfReadyUnits(units); int32(ready) != desired {
		return false, "Progressing", fmt.Sprintf("%d/%d replicas ready", ready, desired)
	}
	return true, "Running", "All work units are running"
}

// NumOfReadyUnits counts the running units.
func NumOfReadyUnits(units []*dfv1.WorkUnit) int {
	result := 0
	for _, u := range units {
		if IsUnitReady(u) {
			result++
		}
	}
	return result
}

func IsUnitReady(u *dfv1.WorkUnit) bool {
	return u.Phase == dfv1.WorkUnitPhaseRunning && u.NodeName != ""
}

// FitsAnyNode checks whether the requests fit in the capacity of at least one ready node,
// regardless of what is allocated there.
func FitsAnyNode(requests dfv1.ResourceList, nodes []*dfv1.Node) bool {
	for _, n := range nodes {
		if n.Ready && n.Capacity.Fits(requests) {
			return true
		}
	}
	return false
}

// ServicePhaseOf derives the phase of a service from its work units. A Failed service
// stays Failed until one of its replacement units is running.
func ServicePhaseOf(units []*dfv1.WorkUnit, desired int32, previous dfv1.ServicePhase) dfv1.ServicePhase {
	ready, failed := 0, 0
	for _, u := range units {
		if IsUnitReady(u) {
			ready++
		} else if u.Phase == dfv1.WorkUnitPhaseFailed {
			failed++
		}
	}
	switch {
	case len(units) > 0 && failed == len(units):
		return dfv1.ServicePhaseFailed
	case int32(ready) == desired:
		return dfv1.ServicePhaseRunning
	case ready == 0 && previous == dfv1.ServicePhaseFailed:
		return dfv1.ServicePhaseFailed
	case ready == 0:
		return dfv1.ServicePhasePending
	default:
		return dfv1.ServicePhaseScaling
	}
}
