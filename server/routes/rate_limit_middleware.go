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
	"golang.org/x/time/rate"

	"github.com/numaproj/numascale/pkg/reconciler"
	"github.com/numaproj/numascale/pkg/shared/logging"
	v1 "github.com/numaproj/numascale/server/apis/v1"
)

// rateLimitMiddleware rejects the mutating requests beyond the limiter rate.
// Reads are never throttled.
func rateLimitMiddleware(ctx context.Context, limiter *rate.Limiter) gin.HandlerFunc {
	log := logging.FromContext(ctx)
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}
		if !limiter.Allow() {
			reconciler.APIRequestsThrottled.WithLabelValues(c.Request.Method).Inc()
			log.Debugw("Request throttled", "method", c.Request.Method, "path", c.Request.URL.Path)
			errMsg := "Too many requests, try again later"
			resp := v1.NewNumascaleAPIResponse(&errMsg, nil)
			resp.Reason = v1.ReasonThrottled
			c.AbortWithStatusJSON(http.StatusTooManyRequests, resp)
			return
		}
		c.Next()
	}
}
