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


package v1

import (
	"net/http"

	dfv1 "github.com/numaproj/numascale/pkg/apis/numascale/v1alpha1"
	"github.com/numaproj/numascale/pkg/reconciler"
)

type NumascaleAPIResponse struct {
	// ErrMessage provides more detailed error information. If API call succeeds, the ErrMessage is nil.
	ErrMessage *string `json:"errMessage,omitempty"`
	// Reason classifies the error, e.g. ValidationError or QuotaExceeded.
	Reason string `json:"reason,omitempty"`
	// Data is the response body.
	Data interface{} `json:"data"`
}

// NewNumascaleAPIResponse creates a new NumascaleAPIResponse.
func NewNumascaleAPIResponse(errMessage *string, data interface{}) NumascaleAPIResponse {
	return NumascaleAPIResponse{
		ErrMessage: errMessage,
		Data:       data,
	}
}

// NewErrorResponse returns the HTTP status and the response body of an error.
func NewErrorResponse(err error) (int, NumascaleAPIResponse) {
	errMsg := err.Error()
	reason := reconciler.ReasonOf(err)
	resp := NewNumascaleAPIResponse(&errMsg, nil)
	resp.Reason = reason
	return StatusOf(reason), resp
}

// StatusOf maps an error reason to an HTTP status.
func StatusOf(reason string) int {
	switch reason {
	case reconciler.ReasonValidation:
		return http.StatusBadRequest
	case reconciler.ReasonQuotaExceeded:
		return http.StatusForbidden
	case reconciler.ReasonNotFound:
		return http.StatusNotFound
	case reconciler.ReasonAlreadyExists:
		return http.StatusConflict
	case ReasonReadOnly:
		return http.StatusMethodNotAllowed
	case ReasonThrottled:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// ServiceCreated is returned by CreateService.
type ServiceCreated struct {
	ID      string        `json:"id"`
	Service *dfv1.Service `json:"service,omitempty"`
}

// ReconcileResult is returned by Reconcile.
type ReconcileResult struct {
	// Ticked is false when a tick was already in progress.
	Ticked bool `json:"ticked"`
}

// SystemInfo describes the running server.
type SystemInfo struct {
	Version  string `json:"version"`
	ReadOnly bool   `json:"readOnly"`
}
