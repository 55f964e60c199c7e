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

package service

import (
	"time"

	"k8s.io/utils/clock"

	dfv1 "github.com/numaproj/numascale/pkg/apis/numascale/v1alpha1"
	"github.com/numaproj/numascale/pkg/reconciler"
)

type options struct {
	// Interval between two reconciliation ticks.
	tickInterval time.Duration
	// Capacity of the event channel.
	eventBufferSize int
	// Max number of events waiting for room in the channel.
	maxPendingEvents int
	// Number of events kept for RecentEvents().
	recentEvents int
	// Size of the reported service metrics cache.
	metricsCacheSize int
	// Work unit limits are the requests times this.
	limitMultiplier int64
	// Source of the scaling policy defaults.
	config *reconciler.GlobalConfig
	clock  clock.PassiveClock
}

type Option func(*options)

func defaultOptions() *options {
	return &options{
		tickInterval:     dfv1.DefaultTickInterval,
		eventBufferSize:  1000,
		maxPendingEvents: 10000,
		recentEvents:     500,
		metricsCacheSize: 10000,
		limitMultiplier:  dfv1.LimitMultiplier,
		config:           reconciler.NewGlobalConfig(),
		clock:            clock.RealClock{},
	}
}

// WithTickInterval sets the interval between two reconciliation ticks.
func WithTickInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.tickInterval = d
		}
	}
}

// WithEventBufferSize sets the capacity of the event channel.
func WithEventBufferSize(n int) Option {
	return func(o *options) {
		o.eventBufferSize = n
	}
}

// WithMaxPendingEvents sets how many events can wait for room in the channel.
func WithMaxPendingEvents(n int) Option {
	return func(o *options) {
		o.maxPendingEvents = n
	}
}

// WithRecentEvents sets the number of events kept for the API.
func WithRecentEvents(n int) Option {
	return func(o *options) {
		o.recentEvents = n
	}
}

// WithMetricsCacheSize sets the size of the reported metrics cache.
func WithMetricsCacheSize(n int) Option {
	return func(o *options) {
		o.metricsCacheSize = n
	}
}

// WithLimitMultiplier sets the ratio between the limits and the requests of a work unit.
func WithLimitMultiplier(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.limitMultiplier = n
		}
	}
}

// WithConfig sets the global config, used for the scaling policy defaults.
func WithConfig(c *reconciler.GlobalConfig) Option {
	return func(o *options) {
		if c != nil {
			o.config = c
		}
	}
}

// WithClock sets the clock used for timestamps and cooldowns.
func WithClock(c clock.PassiveClock) Option {
	return func(o *options) {
		o.clock = c
	}
}
