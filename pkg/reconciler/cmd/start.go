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
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/numaproj/numascale"
	dfv1 "github.com/numaproj/numascale/pkg/apis/numascale/v1alpha1"
	"github.com/numaproj/numascale/pkg/ledger"
	"github.com/numaproj/numascale/pkg/placement"
	"github.com/numaproj/numascale/pkg/reconciler"
	"github.com/numaproj/numascale/pkg/reconciler/scaling"
	"github.com/numaproj/numascale/pkg/reconciler/service"
	"github.com/numaproj/numascale/pkg/shared/logging"
	sharedutil "github.com/numaproj/numascale/pkg/shared/util"
	svrcmd "github.com/numaproj/numascale/server/cmd/server"
)

// Start runs the controller and its API server until SIGINT or SIGTERM.
func Start(configPath string, serverOpts svrcmd.ServerOptions) {
	logger := logging.NewLogger().Named("controller")
	if configPath == "" {
		configPath = sharedutil.LookupEnvStringOr(dfv1.EnvConfigPath, reconciler.DefaultConfigPath)
	}
	config, err := reconciler.LoadConfig(func(err error) {
		logger.Errorw("Failed to reload global configuration file", zap.Error(err))
	}, configPath)
	if err != nil {
		logger.Fatalw("Failed to load global configuration file", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(logging.WithLogger(context.Background(), logger), os.Interrupt, syscall.SIGTERM)
	defer stop()

	controller, err := NewController(ctx, config)
	if err != nil {
		logger.Fatalw("Unable to set up controller", zap.Error(err))
	}
	reconciler.BuildInfo.WithLabelValues(numascale.GetVersion().Version, runtime.GOOS+"/"+runtime.GOARCH).Set(1)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		controller.Run(logging.WithLogger(gCtx, logger.Named("reconciler")))
		return nil
	})
	g.Go(func() error {
		return svrcmd.NewServer(serverOpts).Start(logging.WithLogger(gCtx, logger.Named("server")), controller)
	})
	g.Go(func() error {
		drainEvents(gCtx, controller.Events())
		return nil
	})

	logger.Infow("Starting controller", "version", numascale.GetVersion())
	if err := g.Wait(); err != nil {
		logger.Fatalw("Controller exited", zap.Error(err))
	}
	logger.Info("Controller stopped")
}

// NewController builds a controller from the configuration, with the
// configured nodes and quotas registered.
func NewController(ctx context.Context, config *reconciler.GlobalConfig) (*service.Controller, error) {
	cc := config.GetControllerConfig()
	scalingOpts := []scaling.Option{scaling.WithHistorySize(cc.HistorySize)}
	footprint, err := cc.GetReplicaFootprint()
	if err != nil {
		return nil, err
	}
	if footprint != nil {
		scalingOpts = append(scalingOpts, scaling.WithReplicaFootprint(footprint))
	}

	l := ledger.NewLedger(ctx)
	controller, err := service.NewController(ctx, l,
		placement.NewScheduler(placement.WithWeightsFunc(config.GetScoringWeights)),
		scaling.NewEngine(scalingOpts...),
		service.WithConfig(config),
		service.WithTickInterval(sharedutil.LookupEnvDurationOr(dfv1.EnvTickInterval, cc.TickInterval)),
		service.WithEventBufferSize(cc.EventBufferSize),
		service.WithMaxPendingEvents(cc.MaxPendingEvents),
		service.WithRecentEvents(cc.RecentEvents),
		service.WithMetricsCacheSize(cc.MetricsCacheSize),
		service.WithLimitMultiplier(cc.LimitMultiplier),
	)
	if err != nil {
		return nil, err
	}

	nodes, err := config.GetNodes()
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		if err := controller.RegisterOrUpdateNode(n); err != nil {
			return nil, err
		}
	}
	quotas, err := config.GetQuotas()
	if err != nil {
		return nil, err
	}
	for ns, q := range quotas {
		if err := controller.SetResourceQuota(ns, q); err != nil {
			return nil, err
		}
	}
	return controller, nil
}

// drainEvents logs the lifecycle events, so that the channel never fills up.
func drainEvents(ctx context.Context, events <-chan dfv1.Event) {
	log := logging.FromContext(ctx).Named("events")
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-events:
			log.Infow("Lifecycle event", "type", e.Type, "service", e.Service, "workUnit", e.WorkUnit, "node", e.NodeName, "message", e.Message)
		}
	}
}
