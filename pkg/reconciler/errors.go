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
	"errors"
	"fmt"

	dfv1 "github.com/numaproj/numascale/pkg/apis/numascale/v1alpha1"
	"github.com/numaproj/numascale/pkg/placement"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	// ErrAllocationRace is recorded when the node picked by the scorer can no longer take the unit.
	ErrAllocationRace = errors.New("allocation race")
)

// Reasons reported across the API boundary.
const (
	ReasonValidation        = "ValidationError"
	ReasonQuotaExceeded     = "QuotaExceeded"
	ReasonNotFound          = "NotFound"
	ReasonAlreadyExists     = "AlreadyExists"
	ReasonSchedulingFailure = dfv1.ReasonSchedulingFailure
	ReasonAllocationRace    = dfv1.ReasonAllocationRace
	ReasonInternal          = "InternalError"
)

// ValidationError is returned for malformed input.
type ValidationError struct {
	Err error
}

func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Err: fmt.Errorf(format, args...)}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %v", e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// QuotaExceededError is returned when the aggregate demand of a namespace goes beyond its quota.
type QuotaExceededError struct {
	Namespace string
	Requested dfv1.ResourceList
	Quota     dfv1.ResourceList
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded in namespace %q, requested %s, quota %s", e.Namespace, e.Requested, e.Quota)
}

// ReasonOf maps an error to the reason reported by the API.
func ReasonOf(err error) string {
	var ve *ValidationError
	var qe *QuotaExceededError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &qe):
		return ReasonQuotaExceeded
	case errors.Is(err, ErrAlreadyExists):
		return ReasonAlreadyExists
	case errors.As(err, &ve):
		return ReasonValidation
	case errors.Is(err, ErrNotFound):
		return ReasonNotFound
	case errors.Is(err, placement.ErrNoFeasibleNode):
		return ReasonSchedulingFailure
	case errors.Is(err, ErrAllocationRace):
		return ReasonAllocationRace
	default:
		return ReasonInternal
	}
}
