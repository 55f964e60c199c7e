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


package reconciler

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dfv1 "github.com/numaproj/numascale/pkg/apis/numascale/v1alpha1"
)

func gaugeValue(t *testing.T, namespace, service string) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, ServiceDesiredReplicas.WithLabelValues(namespace, service).Write(m))
	return m.GetGauge().GetValue()
}

func TestPhaseValue(t *testing.T) {
	assert.Equal(t, 1.0, PhaseValue(dfv1.ServicePhasePending))
	assert.Equal(t, 2.0, PhaseValue(dfv1.ServicePhaseRunning))
	assert.Equal(t, 3.0, PhaseValue(dfv1.ServicePhaseScaling))
	assert.Equal(t, 4.0, PhaseValue(dfv1.ServicePhaseFailed))
	assert.Equal(t, 0.0, PhaseValue(""))
}

func TestDeleteServiceMetrics(t *testing.T) {
	ServiceDesiredReplicas.WithLabelValues("metrics-test", "web").Set(3)
	ScalingDecisions.WithLabelValues("metrics-test", "web", "up", "utilization_high").Inc()
	assert.Equal(t, 3.0, gaugeValue(t, "metrics-test", "web"))

	DeleteServiceMetrics("metrics-test", "web")

	families, err := Registry.Gather()
	require.NoError(t, err)
	for _, f := range families {
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				assert.False(t, l.GetName() == LabelNamespace && l.GetValue() == "metrics-test", "series of %s not deleted", f.GetName())
			}
		}
	}
	// a deleted series starts from scratch
	assert.Equal(t, 0.0, gaugeValue(t, "metrics-test", "web"))
	DeleteServiceMetrics("metrics-test", "web")
}
