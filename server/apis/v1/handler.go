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
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	dfv1 "github.com/numaproj/numascale/pkg/apis/numascale/v1alpha1"
	"github.com/numaproj/numascale/pkg/reconciler"
)

// Controller is what the API exposes.
type Controller interface {
	CreateService(spec dfv1.ServiceSpec) (string, error)
	DeleteService(id string) bool
	GetService(id string) (*dfv1.Service, bool)
	ListServices() []*dfv1.Service
	ListWorkUnits(serviceID string) []*dfv1.WorkUnit
	SetResourceQuota(namespace string, quota dfv1.ResourceList) error
	Quotas() map[string]dfv1.ResourceList
	RegisterOrUpdateNode(node *dfv1.Node) error
	Nodes() []*dfv1.Node
	SetScalingPolicy(id string, policy *dfv1.ScalingPolicy) error
	ReportServiceMetrics(id string, metrics dfv1.ScalingMetrics) error
	UpdateWorkUnitStatus(id string, report dfv1.WorkUnitReport) error
	GetControllerMetrics() dfv1.ControllerMetrics
	RecentEvents(n int) []dfv1.Event
	ScalingHistory() []*dfv1.ScalingDecision
	Tick(ctx context.Context) bool
}

type handlerOptions struct {
	// readonly is used to indicate whether the server is in read-only mode
	readonly bool
	version  string
}

func defaultHandlerOptions() *handlerOptions {
	return &handlerOptions{
		readonly: false,
	}
}

type HandlerOption func(*handlerOptions)

// WithReadOnlyMode sets the server to read-only mode.
func WithReadOnlyMode() HandlerOption {
	return func(o *handlerOptions) {
		o.readonly = true
	}
}

// WithVersion sets the version reported by SystemInfo.
func WithVersion(version string) HandlerOption {
	return func(o *handlerOptions) {
		o.version = version
	}
}

type handler struct {
	controller Controller
	opts       *handlerOptions
}

// NewHandler is used to provide a new instance of the handler type
func NewHandler(controller Controller, opts ...HandlerOption) *handler {
	o := defaultHandlerOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return &handler{
		controller: controller,
		opts:       o,
	}
}

// SystemInfo returns the version and the mode of the server.
func (h *handler) SystemInfo(c *gin.Context) {
	c.JSON(http.StatusOK, NewNumascaleAPIResponse(nil, SystemInfo{Version: h.opts.version, ReadOnly: h.opts.readonly}))
}

// ListServices returns the services, optionally filtered by the "namespace" query.
func (h *handler) ListServices(c *gin.Context) {
	ns := c.Query("namespace")
	res := make([]*dfv1.Service, 0)
	for _, svc := range h.controller.ListServices() {
		if ns == "" || svc.Namespace == ns {
			res = append(res, svc)
		}
	}
	c.JSON(http.StatusOK, NewNumascaleAPIResponse(nil, res))
}

// CreateService is used to create a service from a ServiceSpec.
func (h *handler) CreateService(c *gin.Context) {
	if h.rejectReadOnly(c) {
		return
	}
	var spec dfv1.ServiceSpec
	if err := bindJson(c, &spec); err != nil {
		h.respondWithError(c, reconciler.NewValidationError("failed to decode JSON request body to service spec, %v", err))
		return
	}
	id, err := h.controller.CreateService(spec)
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	svc, _ := h.controller.GetService(id)
	c.JSON(http.StatusOK, NewNumascaleAPIResponse(nil, ServiceCreated{ID: id, Service: svc}))
}

// GetService returns a service with its work units.
func (h *handler) GetService(c *gin.Context) {
	id := serviceID(c)
	svc, ok := h.controller.GetService(id)
	if !ok {
		h.respondWithError(c, notFound("service", id))
		return
	}
	c.JSON(http.StatusOK, NewNumascaleAPIResponse(nil, svc))
}

// DeleteService is used to delete a service and all its work units.
func (h *handler) DeleteService(c *gin.Context) {
	if h.rejectReadOnly(c) {
		return
	}
	id := serviceID(c)
	if !h.controller.DeleteService(id) {
		h.respondWithError(c, notFound("service", id))
		return
	}
	c.JSON(http.StatusOK, NewNumascaleAPIResponse(nil, nil))
}

// SetScalingPolicy replaces the scaling policy of a service, a null body removes it.
func (h *handler) SetScalingPolicy(c *gin.Context) {
	if h.rejectReadOnly(c) {
		return
	}
	var policy *dfv1.ScalingPolicy
	if err := bindJson(c, &policy); err != nil {
		h.respondWithError(c, reconciler.NewValidationError("failed to decode JSON request body to scaling policy, %v", err))
		return
	}
	id := serviceID(c)
	if err := h.controller.SetScalingPolicy(id, policy); err != nil {
		h.respondWithError(c, err)
		return
	}
	svc, _ := h.controller.GetService(id)
	c.JSON(http.StatusOK, NewNumascaleAPIResponse(nil, svc))
}

// ReportServiceMetrics records the metrics of a service for the autoscaler.
func (h *handler) ReportServiceMetrics(c *gin.Context) {
	if h.rejectReadOnly(c) {
		return
	}
	var metrics dfv1.ScalingMetrics
	if err := bindJson(c, &metrics); err != nil {
		h.respondWithError(c, reconciler.NewValidationError("failed to decode JSON request body to metrics, %v", err))
		return
	}
	if err := h.controller.ReportServiceMetrics(serviceID(c), metrics); err != nil {
		h.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewNumascaleAPIResponse(nil, nil))
}

// ListWorkUnits returns the work units, optionally filtered by the "service" query.
func (h *handler) ListWorkUnits(c *gin.Context) {
	c.JSON(http.StatusOK, NewNumascaleAPIResponse(nil, h.controller.ListWorkUnits(c.Query("service"))))
}

// UpdateWorkUnitStatus records a health report of a work unit.
func (h *handler) UpdateWorkUnitStatus(c *gin.Context) {
	if h.rejectReadOnly(c) {
		return
	}
	var report dfv1.WorkUnitReport
	if err := bindJson(c, &report); err != nil {
		h.respondWithError(c, reconciler.NewValidationError("failed to decode JSON request body to work unit report, %v", err))
		return
	}
	if err := h.controller.UpdateWorkUnitStatus(c.Param("id"), report); err != nil {
		h.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewNumascaleAPIResponse(nil, nil))
}

// ListQuotas returns the quotas of all the namespaces.
func (h *handler) ListQuotas(c *gin.Context) {
	c.JSON(http.StatusOK, NewNumascaleAPIResponse(nil, h.controller.Quotas()))
}

// SetResourceQuota sets the quota of a namespace, an empty object removes it.
func (h *handler) SetResourceQuota(c *gin.Context) {
	if h.rejectReadOnly(c) {
		return
	}
	var quota dfv1.ResourceList
	if err := bindJson(c, &quota); err != nil {
		h.respondWithError(c, reconciler.NewValidationError("failed to decode JSON request body to resource list, %v", err))
		return
	}
	ns := c.Param("namespace")
	if err := h.controller.SetResourceQuota(ns, quota); err != nil {
		h.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewNumascaleAPIResponse(nil, quota))
}

// ListNodes returns the registered nodes.
func (h *handler) ListNodes(c *gin.Context) {
	c.JSON(http.StatusOK, NewNumascaleAPIResponse(nil, h.controller.Nodes()))
}

// RegisterNode adds or updates a node.
func (h *handler) RegisterNode(c *gin.Context) {
	if h.rejectReadOnly(c) {
		return
	}
	var node dfv1.Node
	if err := bindJson(c, &node); err != nil {
		h.respondWithError(c, reconciler.NewValidationError("failed to decode JSON request body to node, %v", err))
		return
	}
	if err := h.controller.RegisterOrUpdateNode(&node); err != nil {
		h.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewNumascaleAPIResponse(nil, nil))
}

// GetControllerMetrics returns a summary of the controller state.
func (h *handler) GetControllerMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, NewNumascaleAPIResponse(nil, h.controller.GetControllerMetrics()))
}

// ListEvents returns the latest events, the "limit" query defaults to 100.
func (h *handler) ListEvents(c *gin.Context) {
	limit := DefaultEventsLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			h.respondWithError(c, reconciler.NewValidationError("invalid limit %q", v))
			return
		}
		limit = n
	}
	if limit > MaxEventsLimit {
		limit = MaxEventsLimit
	}
	c.JSON(http.StatusOK, NewNumascaleAPIResponse(nil, h.controller.RecentEvents(limit)))
}

// ListScalingDecisions returns the scaling decision history.
func (h *handler) ListScalingDecisions(c *gin.Context) {
	c.JSON(http.StatusOK, NewNumascaleAPIResponse(nil, h.controller.ScalingHistory()))
}

// Reconcile runs a reconciliation tick right away.
func (h *handler) Reconcile(c *gin.Context) {
	if h.rejectReadOnly(c) {
		return
	}
	ticked := h.controller.Tick(c.Request.Context())
	c.JSON(http.StatusOK, NewNumascaleAPIResponse(nil, ReconcileResult{Ticked: ticked}))
}

func (h *handler) rejectReadOnly(c *gin.Context) bool {
	if !h.opts.readonly {
		return false
	}
	errMsg := "Failed to perform this operation in read only mode"
	resp := NewNumascaleAPIResponse(&errMsg, nil)
	resp.Reason = ReasonReadOnly
	c.JSON(StatusOf(ReasonReadOnly), resp)
	return true
}

func (h *handler) respondWithError(c *gin.Context, err error) {
	c.JSON(NewErrorResponse(err))
}

func serviceID(c *gin.Context) string {
	return dfv1.ServiceKey(c.Param("namespace"), c.Param("name"))
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %q %w", kind, id, reconciler.ErrNotFound)
}

func bindJson(c *gin.Context, obj interface{}) error {
	decoder := json.NewDecoder(c.Request.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(obj); err != nil {
		return err
	}
	return nil
}
