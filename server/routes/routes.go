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


package routes

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/numaproj/numascale/pkg/reconciler"
	"github.com/numaproj/numascale/server/apis"
	v1 "github.com/numaproj/numascale/server/apis/v1"
)

type SystemInfo struct {
	IsReadOnly bool
	Version    string
}

// RateLimit bounds the mutating requests, a zero QPS disables it.
type RateLimit struct {
	QPS   float64
	Burst int
}

func Routes(ctx context.Context, r *gin.Engine, controller v1.Controller, sysInfo SystemInfo, limit RateLimit) {
	r.GET("/livez", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reconciler.Registry, promhttp.HandlerOpts{})))

	rGroup := r.Group("/api/v1")
	if limit.QPS > 0 {
		burst := limit.Burst
		if burst <= 0 {
			burst = 1
		}
		rGroup.Use(rateLimitMiddleware(ctx, rate.NewLimiter(rate.Limit(limit.QPS), burst)))
	}
	opts := []v1.HandlerOption{v1.WithVersion(sysInfo.Version)}
	if sysInfo.IsReadOnly {
		opts = append(opts, v1.WithReadOnlyMode())
	}
	v1Routes(rGroup, v1.NewHandler(controller, opts...))
}

func v1Routes(r gin.IRouter, handler apis.Handler) {
	r.GET("/sysinfo", handler.SystemInfo)
	r.GET("/services", handler.ListServices)
	r.POST("/services", handler.CreateService)
	r.GET("/services/:namespace/:name", handler.GetService)
	r.DELETE("/services/:namespace/:name", handler.DeleteService)
	r.PUT("/services/:namespace/:name/policy", handler.SetScalingPolicy)
	r.POST("/services/:namespace/:name/metrics", handler.ReportServiceMetrics)
	r.GET("/workunits", handler.ListWorkUnits)
	r.PUT("/workunits/:id/status", handler.UpdateWorkUnitStatus)
	r.GET("/quotas", handler.ListQuotas)
	r.PUT("/quotas/:namespace", handler.SetResourceQuota)
	r.GET("/nodes", handler.ListNodes)
	r.POST("/nodes", handler.RegisterNode)
	r.GET("/metrics", handler.GetControllerMetrics)
	r.GET("/events", handler.ListEvents)
	r.GET("/scaling-decisions", handler.ListScalingDecisions)
	r.POST("/reconcile", handler.Reconcile)
}
