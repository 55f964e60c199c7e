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


package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	dfv1 "github.com/numaproj/numascale/pkg/apis/numascale/v1alpha1"
)

const DefaultServerAddr = "http://localhost:8443"

// APIError is a failed API call.
type APIError struct {
	StatusCode int
	// Reason classifies the error, e.g. ValidationError or NotFound.
	Reason  string
	Message string
}

func (e *APIError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

// httpClient is the subset of *http.Client used by Client.
type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the controller API server.
type Client struct {
	baseURL    string
	httpClient httpClient
}

type response struct {
	ErrMessage *string         `json:"errMessage,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// NewClient returns a client of the server at addr, e.g. http://localhost:8443.
func NewClient(addr string) *Client {
	if addr == "" {
		addr = DefaultServerAddr
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return &Client{
		baseURL:    strings.TrimRight(addr, "/") + "/api/v1",
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// ServiceCreated is the result of CreateService.
type ServiceCreated struct {
	ID      string        `json:"id"`
	Service *dfv1.Service `json:"service,omitempty"`
}

// SystemInfo describes the server.
type SystemInfo struct {
	Version  string `json:"version"`
	ReadOnly bool   `json:"readOnly"`
}

func (c *Client) SystemInfo(ctx context.Context) (*SystemInfo, error) {
	res := &SystemInfo{}
	return res, c.do(ctx, http.MethodGet, "/sysinfo", nil, res)
}

func (c *Client) CreateService(ctx context.Context, spec dfv1.ServiceSpec) (*ServiceCreated, error) {
	res := &ServiceCreated{}
	return res, c.do(ctx, http.MethodPost, "/services", spec, res)
}

func (c *Client) GetService(ctx context.Context, id string) (*dfv1.Service, error) {
	res := &dfv1.Service{}
	return res, c.do(ctx, http.MethodGet, servicePath(id), nil, res)
}

func (c *Client) DeleteService(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, servicePath(id), nil, nil)
}

// ListServices lists the services, of one namespace if namespace is not empty.
func (c *Client) ListServices(ctx context.Context, namespace string) ([]*dfv1.Service, error) {
	var res []*dfv1.Service
	p := "/services"
	if namespace != "" {
		p += "?namespace=" + url.QueryEscape(namespace)
	}
	return res, c.do(ctx, http.MethodGet, p, nil, &res)
}

// SetScalingPolicy replaces the policy of a service, nil removes it.
func (c *Client) SetScalingPolicy(ctx context.Context, id string, policy *dfv1.ScalingPolicy) error {
	// a nil policy is sent as null
	return c.do(ctx, http.MethodPut, servicePath(id)+"/policy", policy, nil)
}

func (c *Client) ReportServiceMetrics(ctx context.Context, id string, metrics dfv1.ScalingMetrics) error {
	return c.do(ctx, http.MethodPost, servicePath(id)+"/metrics", metrics, nil)
}

// ListWorkUnits lists the work units, of one service if serviceID is not empty.
func (c *Client) ListWorkUnits(ctx context.Context, serviceID string) ([]*dfv1.WorkUnit, error) {
	var res []*dfv1.WorkUnit
	p := "/workunits"
	if serviceID != "" {
		p += "?service=" + url.QueryEscape(serviceID)
	}
	return res, c.do(ctx, http.MethodGet, p, nil, &res)
}

func (c *Client) UpdateWorkUnitStatus(ctx context.Context, id string, report dfv1.WorkUnitReport) error {
	return c.do(ctx, http.MethodPut, "/workunits/"+url.PathEscape(id)+"/status", report, nil)
}

func (c *Client) ListQuotas(ctx context.Context) (map[string]dfv1.ResourceList, error) {
	res := map[string]dfv1.ResourceList{}
	return res, c.do(ctx, http.MethodGet, "/quotas", nil, &res)
}

// SetResourceQuota sets the quota of a namespace, an empty list removes it.
func (c *Client) SetResourceQuota(ctx context.Context, namespace string, quota dfv1.ResourceList) error {
	if quota == nil {
		quota = dfv1.ResourceList{}
	}
	return c.do(ctx, http.MethodPut, "/quotas/"+url.PathEscape(namespace), quota, nil)
}

func (c *Client) ListNodes(ctx context.Context) ([]*dfv1.Node, error) {
	var res []*dfv1.Node
	return res, c.do(ctx, http.MethodGet, "/nodes", nil, &res)
}

func (c *Client) RegisterNode(ctx context.Context, node *dfv1.Node) error {
	return c.do(ctx, http.MethodPost, "/nodes", node, nil)
}

func (c *Client) GetControllerMetrics(ctx context.Context) (*dfv1.ControllerMetrics, error) {
	res := &dfv1.ControllerMetrics{}
	return res, c.do(ctx, http.MethodGet, "/metrics", nil, res)
}

// ListEvents returns the latest events, limit <= 0 uses the server default.
func (c *Client) ListEvents(ctx context.Context, limit int) ([]dfv1.Event, error) {
	var res []dfv1.Event
	p := "/events"
	if limit > 0 {
		p += "?limit=" + strconv.Itoa(limit)
	}
	return res, c.do(ctx, http.MethodGet, p, nil, &res)
}

func (c *Client) ListScalingDecisions(ctx context.Context) ([]*dfv1.ScalingDecision, error) {
	var res []*dfv1.ScalingDecision
	return res, c.do(ctx, http.MethodGet, "/scaling-decisions", nil, &res)
}

// Reconcile asks for an immediate reconciliation tick, false means a tick was already running.
func (c *Client) Reconcile(ctx context.Context) (bool, error) {
	res := struct {
		Ticked bool `json:"ticked"`
	}{}
	err := c.do(ctx, http.MethodPost, "/reconcile", nil, &res)
	return res.Ticked, err
}

func servicePath(id string) string {
	ns, name := dfv1.SplitServiceKey(id)
	return "/services/" + url.PathEscape(ns) + "/" + url.PathEscape(name)
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body, %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s %s, %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body, %w", err)
	}
	r := response{}
	if err := json.Unmarshal(raw, &r); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		}
		return fmt.Errorf("failed to decode response body, %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest || r.ErrMessage != nil {
		e := &APIError{StatusCode: resp.StatusCode, Reason: r.Reason}
		if r.ErrMessage != nil {
			e.Message = *r.ErrMessage
		}
		return e
	}
	if out == nil || len(r.Data) == 0 || string(r.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(r.Data, out); err != nil {
		return fmt.Errorf("failed to decode response data, %w", err)
	}
	return nil
}
