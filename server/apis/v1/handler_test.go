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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dfv1 "github.com/numaproj/numascale/pkg/apis/numascale/v1alpha1"
	"github.com/numaproj/numascale/pkg/reconciler"
)

type fakeController struct {
	createErr   error
	quotaErr    error
	eventsLimit int
	ticked      bool
}

func (f *fakeController) CreateService(spec dfv1.ServiceSpec) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	return dfv1.ServiceKey(spec.Namespace, spec.Name), nil
}

func (f *fakeController) DeleteService(string) bool {
	return false
}

func (f *fakeController) GetService(id string) (*dfv1.Service, bool) {
	ns, name := dfv1.SplitServiceKey(id)
	return &dfv1.Service{Name: name, Namespace: ns}, true
}

func (f *fakeController) ListServices() []*dfv1.Service {
	return []*dfv1.Service{{Name: "a", Namespace: "x"}, {Name: "b", Namespace: "y"}}
}

func (f *fakeController) ListWorkUnits(string) []*dfv1.WorkUnit {
	return nil
}

func (f *fakeController) SetResourceQuota(string, dfv1.ResourceList) error {
	return f.quotaErr
}

func (f *fakeController) Quotas() map[string]dfv1.ResourceList {
	return nil
}

func (f *fakeController) RegisterOrUpdateNode(*dfv1.Node) error {
	return nil
}

func (f *fakeController) Nodes() []*dfv1.Node {
	return nil
}

func (f *fakeController) SetScalingPolicy(string, *dfv1.ScalingPolicy) error {
	return nil
}

func (f *fakeController) ReportServiceMetrics(string, dfv1.ScalingMetrics) error {
	return nil
}

func (f *fakeController) UpdateWorkUnitStatus(string, dfv1.WorkUnitReport) error {
	return nil
}

func (f *fakeController) GetControllerMetrics() dfv1.ControllerMetrics {
	return dfv1.ControllerMetrics{}
}

func (f *fakeController) RecentEvents(n int) []dfv1.Event {
	f.eventsLimit = n
	return nil
}

func (f *fakeController) ScalingHistory() []*dfv1.ScalingDecision {
	return nil
}

func (f *fakeController) Tick(context.Context) bool {
	return f.ticked
}

func serve(method, path string, fn gin.HandlerFunc, route, body string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Handle(method, route, fn)
	req, _ := http.NewRequest(method, path, bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) NumascaleAPIResponse {
	t.Helper()
	var resp NumascaleAPIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestNewErrorResponse(t *testing.T) {
	tests := []struct {
		err    error
		status int
		reason string
	}{
		{reconciler.NewValidationError("bad"), http.StatusBadRequest, reconciler.ReasonValidation},
		{&reconciler.QuotaExceededError{Namespace: "ml"}, http.StatusForbidden, reconciler.ReasonQuotaExceeded},
		{fmt.Errorf("service %q %w", "a/b", reconciler.ErrNotFound), http.StatusNotFound, reconciler.ReasonNotFound},
		{errors.New("boom"), http.StatusInternalServerError, reconciler.ReasonInternal},
	}
	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			status, resp := NewErrorResponse(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.reason, resp.Reason)
			require.NotNil(t, resp.ErrMessage)
			assert.Equal(t, tt.err.Error(), *resp.ErrMessage)
			assert.Nil(t, resp.Data)
		})
	}
	assert.Equal(t, http.StatusMethodNotAllowed, StatusOf(ReasonReadOnly))
	assert.Equal(t, http.StatusTooManyRequests, StatusOf(ReasonThrottled))
}

func TestHandler_CreateService(t *testing.T) {
	fc := &fakeController{}
	h := NewHandler(fc)

	w := serve(http.MethodPost, "/services", h.CreateService, "/services", `{"name":"web","namespace":"shop"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.Nil(t, resp.ErrMessage)
	assert.Equal(t, "shop/web", resp.Data.(map[string]interface{})["id"])

	w = serve(http.MethodPost, "/services", h.CreateService, "/services", `{"name":"web","color":"blue"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, reconciler.ReasonValidation, decodeResponse(t, w).Reason)

	fc.createErr = &reconciler.QuotaExceededError{Namespace: "shop"}
	w = serve(http.MethodPost, "/services", h.CreateService, "/services", `{"name":"web","namespace":"shop"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, reconciler.ReasonQuotaExceeded, decodeResponse(t, w).Reason)
}

func TestHandler_ListServices(t *testing.T) {
	h := NewHandler(&fakeController{})
	w := serve(http.MethodGet, "/services?namespace=y", h.ListServices, "/services", "")
	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeResponse(t, w).Data.([]interface{})
	require.Len(t, data, 1)
	assert.Equal(t, "b", data[0].(map[string]interface{})["name"])
}

func TestHandler_DeleteServiceNotFound(t *testing.T) {
	h := NewHandler(&fakeController{})
	w := serve(http.MethodDelete, "/services/x/a", h.DeleteService, "/services/:namespace/:name", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, reconciler.ReasonNotFound, decodeResponse(t, w).Reason)
}

func TestHandler_ListEvents(t *testing.T) {
	fc := &fakeController{}
	h := NewHandler(fc)

	w := serve(http.MethodGet, "/events", h.ListEvents, "/events", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, DefaultEventsLimit, fc.eventsLimit)

	w = serve(http.MethodGet, "/events?limit=5000", h.ListEvents, "/events", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, MaxEventsLimit, fc.eventsLimit)

	w = serve(http.MethodGet, "/events?limit=-1", h.ListEvents, "/events", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_ReadOnly(t *testing.T) {
	fc := &fakeController{ticked: true}
	h := NewHandler(fc, WithReadOnlyMode(), WithVersion("v0.1.0"))

	w := serve(http.MethodPut, "/quotas/ml", h.SetResourceQuota, "/quotas/:namespace", `{"units":10}`)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, ReasonReadOnly, decodeResponse(t, w).Reason)

	w = serve(http.MethodPost, "/reconcile", h.Reconcile, "/reconcile", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = serve(http.MethodGet, "/sysinfo", h.SystemInfo, "/sysinfo", "")
	assert.Equal(t, http.StatusOK, w.Code)
	info := decodeResponse(t, w).Data.(map[string]interface{})
	assert.Equal(t, "v0.1.0", info["version"])
	assert.Equal(t, true, info["readOnly"])
}

func TestHandler_SetResourceQuota(t *testing.T) {
	fc := &fakeController{}
	h := NewHandler(fc)
	w := serve(http.MethodPut, "/quotas/ml", h.SetResourceQuota, "/quotas/:namespace", `{"units":10}`)
	assert.Equal(t, http.StatusOK, w.Code)

	fc.quotaErr = reconciler.NewValidationError("negative quota")
	w = serve(http.MethodPut, "/quotas/ml", h.SetResourceQuota, "/quotas/:namespace", `{"units":-1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
