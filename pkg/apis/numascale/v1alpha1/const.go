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

package v1alpha1

import "time"

const (
	Project = "numascale"

	// Well known resource dimensions.
	ResourceUnits    ResourceName = "units"
	ResourceChannels ResourceName = "channels"
	ResourceMemory   ResourceName = "memory"

	// Node labels which influence placement.
	KeyTier          = "numascale.io/tier"
	KeyRole          = "numascale.io/role"
	TierPreferred    = "preferred"
	RoleControlPlane = "control-plane"

	DefaultNamespace = "default"

	// LimitMultiplier is applied to requests to derive the limits of a work unit.
	LimitMultiplier int64 = 2

	// DefaultTickInterval is the interval between two reconciliation ticks.
	DefaultTickInterval = 30 * time.Second

	// Environment variables.
	EnvDebug          = "NUMASCALE_DEBUG"
	EnvLogLevel       = "NUMASCALE_LOG_LEVEL"
	EnvConfigPath     = "NUMASCALE_CONFIG_PATH"
	EnvServerAddr     = "NUMASCALE_SERVER"
	EnvTickInterval   = "NUMASCALE_TICK_INTERVAL"
	EnvPort           = "NUMASCALE_PORT"
	EnvReadOnly       = "NUMASCALE_READ_ONLY"
	EnvRateLimitQPS   = "NUMASCALE_RATE_LIMIT_QPS"
	EnvRateLimitBurst = "NUMASCALE_RATE_LIMIT_BURST"
)
