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


package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/numaproj/numascale"
	"github.com/numaproj/numascale/pkg/shared/logging"
	v1 "github.com/numaproj/numascale/server/apis/v1"
	"github.com/numaproj/numascale/server/routes"
)

const shutdownTimeout = 10 * time.Second

type ServerOptions struct {
	Port               int
	CorsAllowedOrigins string
	ReadOnly           bool
	// Mutating requests per second, 0 means no limit.
	RateLimitQPS   float64
	RateLimitBurst int
}

type server struct {
	options ServerOptions
}

func NewServer(opts ServerOptions) *server {
	return &server{
		options: opts,
	}
}

// Handler returns the router serving the API of the controller.
func (s *server) Handler(ctx context.Context, controller v1.Controller) http.Handler {
	router := gin.New()
	router.Use(requestLogger(logging.FromContext(ctx).Named("server")), gin.Recovery())
	if origins := splitOrigins(s.options.CorsAllowedOrigins); len(origins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "HEAD"},
			AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type"},
			AllowCredentials: true,
		}))
	}
	routes.Routes(ctx, router, controller,
		routes.SystemInfo{IsReadOnly: s.options.ReadOnly, Version: numascale.GetVersion().Version},
		routes.RateLimit{QPS: s.options.RateLimitQPS, Burst: s.options.RateLimitBurst})
	return router
}

// splitOrigins parses a comma separated list of origins, trailing slashes are ignored.
func splitOrigins(s string) []string {
	var origins []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// requestLogger logs the failed requests at info level, the others at debug level.
// Probes are not logged.
func requestLogger(log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.Request.URL.Path
		if path == "/livez" {
			return
		}
		status := c.Writer.Status()
		fields := []interface{}{"method", c.Request.Method, "path", path, "status", status, "latency", time.Since(start)}
		if status >= http.StatusBadRequest {
			log.Infow("Request failed", fields...)
			return
		}
		log.Debugw("Request served", fields...)
	}
}

// Start serves the API until the context is done.
func (s *server) Start(ctx context.Context, controller v1.Controller) error {
	log := logging.FromContext(ctx)
	server := http.Server{
		Addr:    fmt.Sprintf(":%d", s.options.Port),
		Handler: s.Handler(ctx, controller),
	}
	errCh := make(chan error, 1)
	go func() {
		log.Infow("Starting server on "+server.Addr,
			"version", numascale.GetVersion(),
			"read-only", s.options.ReadOnly,
			"rate-limit-qps", s.options.RateLimitQPS)
		errCh <- server.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return fmt.Errorf("server exited, %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server, %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info("Server stopped")
	return nil
}
