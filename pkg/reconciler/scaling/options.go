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

package scaling

import (
	"k8s.io/utils/clock"

	dfv1 "github.com/numaproj/numascale/pkg/apis/numascale/v1alpha1"
)

const (
	DefaultHistorySize = 100
	// Scale up is triggered above target * DefaultScaleUpThreshold.
	DefaultScaleUpThreshold = 1.2
	// Scale down is triggered below target * DefaultScaleDownThreshold.
	DefaultScaleDownThreshold = 0.7
	DefaultScaleUpFactor      = 1.5
	DefaultScaleDownFactor    = 0.8
)

// DefaultReplicaFootprint is the estimated resource usage of one replica.
func DefaultReplicaFootprint() dfv1.ResourceList {
	return dfv1.ResourceList{
		dfv1.ResourceUnits:    10,
		dfv1.ResourceChannels: 1,
		dfv1.ResourceMemory:   1 << 30,
	}
}

type options struct {
	// Max number of decisions kept in the history.
	historySize int
	// Multipliers applied to the target utilization to trigger a scaling.
	scaleUpThreshold   float64
	scaleDownThreshold float64
	// Multipliers applied to the current replicas to get the desired ones.
	scaleUpFactor   float64
	scaleDownFactor float64
	// Resources of one replica, used for the resource estimate of a decision.
	replicaFootprint dfv1.ResourceList
	clock            clock.PassiveClock
}

type Option func(*options)

func defaultOptions() *options {
	return &options{
		historySize:        DefaultHistorySize,
		scaleUpThreshold:   DefaultScaleUpThreshold,
		scaleDownThreshold: DefaultScaleDownThreshold,
		scaleUpFactor:      DefaultScaleUpFactor,
		scaleDownFactor:    DefaultScaleDownFactor,
		replicaFootprint:   DefaultReplicaFootprint(),
		clock:              clock.RealClock{},
	}
}

// WithHistorySize sets the max number of decisions kept in the history.
func WithHistorySize(n int) Option {
	return func(o *options) {
		o.historySize = n
	}
}

// WithThresholds sets the utilization multipliers which trigger scaling up and down.
func WithThresholds(up, down float64) Option {
	return func(o *options) {
		o.scaleUpThreshold = up
		o.scaleDownThreshold = down
	}
}

// WithFactors sets the replica multipliers used when scaling up and down.
func WithFactors(up, down float64) Option {
	return func(o *options) {
		o.scaleUpFactor = up
		o.scaleDownFactor = down
	}
}

// WithReplicaFootprint sets the estimated resources of one replica.
func WithReplicaFootprint(rl dfv1.ResourceList) Option {
	return func(o *options) {
		if len(rl) > 0 {
			o.replicaFootprint = rl.DeepCopy()
		}
	}
}

// WithClock sets the clock used to timestamp decisions.
func WithClock(c clock.PassiveClock) Option {
	return func(o *options) {
		o.clock = c
	}
}
