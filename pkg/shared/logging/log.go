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


package logging

import (
	"context"
	"os"
	"strconv"

	zap "go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	dfv1 "github.com/numaproj/numascale/pkg/apis/numascale/v1alpha1"
)

// NewLogger returns the process logger. NUMASCALE_DEBUG=true switches to the
// development config, NUMASCALE_LOG_LEVEL overrides the level of either.
func NewLogger() *zap.SugaredLogger {
	config := zap.NewProductionConfig()
	if debug, _ := strconv.ParseBool(os.Getenv(dfv1.EnvDebug)); debug {
		config = zap.NewDevelopmentConfig()
	}
	config.OutputPaths = []string{"stdout"}
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if s := os.Getenv(dfv1.EnvLogLevel); s != "" {
		if lvl, err := zapcore.ParseLevel(s); err == nil {
			config.Level = zap.NewAtomicLevelAt(lvl)
		}
	}
	logger, err := config.Build()
	if err != nil {
		panic(err)
	}
	return logger.Named("numascale").Sugar()
}

type loggerKey struct{}

// WithLogger returns a copy of parent context carrying the logger.
func WithLogger(ctx context.Context, logger *zap.SugaredLogger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// WithFields returns a copy of parent context whose logger carries the extra fields.
func WithFields(ctx context.Context, keysAndValues ...interface{}) context.Context {
	return WithLogger(ctx, FromContext(ctx).With(keysAndValues...))
}

// FromContext returns the logger in the context, or a new one.
func FromContext(ctx context.Context) *zap.SugaredLogger {
	if logger, ok := ctx.Value(loggerKey{}).(*zap.SugaredLogger); ok {
		return logger
	}
	return NewLogger()
}
