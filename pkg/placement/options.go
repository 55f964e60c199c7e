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

package placement

// Weights are the tunables of the node scoring function.
type Weights struct {
	// BandLow and BandHigh delimit the preferred utilization band, in percentage.
	BandLow  float64 `json:"bandLow"`
	BandHigh float64 `json:"bandHigh"`
	// Scores of a node whose current utilization is within, below or above the band.
	BalancedScore float64 `json:"balancedScore"`
	IdleScore     float64 `json:"idleScore"`
	BusyScore     float64 `json:"busyScore"`
	// CapabilityBonus is added for every feature requested by the unit and advertised by the node.
	CapabilityBonus float64 `json:"capabilityBonus"`
	// ProcessorBonus is added per processor, up to MaxProcessorBonus.
	ProcessorBonus    float64 `json:"processorBonus"`
	MaxProcessorBonus float64 `json:"maxProcessorBonus"`
	// PreferredTierBonus is added to nodes labeled numascale.io/tier=preferred.
	PreferredTierBonus float64 `json:"preferredTierBonus"`
	// ControlPlanePenalty is subtracted from nodes labeled numascale.io/role=control-plane.
	ControlPlanePenalty float64 `json:"controlPlanePenalty"`
}

const (
	DefaultBandLow             = 30
	DefaultBandHigh            = 70
	DefaultBalancedScore       = 50
	DefaultIdleScore           = 30
	DefaultBusyScore           = 10
	DefaultCapabilityBonus     = 10
	DefaultProcessorBonus      = 0.5
	DefaultMaxProcessorBonus   = 10
	DefaultPreferredTierBonus  = 15
	DefaultControlPlanePenalty = 20

	MinScore = 0
	MaxScore = 100
)

// DefaultWeights returns the default scoring weights.
func DefaultWeights() Weights {
	return Weights{
		BandLow:             DefaultBandLow,
		BandHigh:            DefaultBandHigh,
		BalancedScore:       DefaultBalancedScore,
		IdleScore:           DefaultIdleScore,
		BusyScore:           DefaultBusyScore,
		CapabilityBonus:     DefaultCapabilityBonus,
		ProcessorBonus:      DefaultProcessorBonus,
		MaxProcessorBonus:   DefaultMaxProcessorBonus,
		PreferredTierBonus:  DefaultPreferredTierBonus,
		ControlPlanePenalty: DefaultControlPlanePenalty,
	}
}

type options struct {
	weights Weights
	// Consulted on every scheduling when set, takes precedence over weights.
	weightsFunc func() Weights
}

type Option func(*options)

func defaultOptions() *options {
	return &options{
		weights: DefaultWeights(),
	}
}

// WithWeights overrides the scoring weights.
func WithWeights(w Weights) Option {
	return func(o *options) {
		o.weights = w
	}
}

// WithWeightsFunc makes the scheduler read its weights from f on every
// scheduling, e.g. from a config which can be reloaded.
func WithWeightsFunc(f func() Weights) Option {
	return func(o *options) {
		o.weightsFunc = f
	}
}
