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


package commands

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	dfv1 "github.com/numaproj/numascale/pkg/apis/numascale/v1alpha1"
)

func NewReportMetricsCommand() *cobra.Command {
	var (
		utilization  []string
		responseTime time.Duration
		errorRate    float64
	)
	command := &cobra.Command{
		Use:     "report-metrics NAMESPACE/NAME",
		Short:   "Report the observed metrics of a service to the autoscaler",
		Example: `  numascale report-metrics default/api --utilization units=90 --response-time 300ms --error-rate 0.5`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := parseUtilization(utilization)
			if err != nil {
				return newUsageError("%v", err)
			}
			m := dfv1.ScalingMetrics{
				Utilization:  u,
				ResponseTime: metav1.Duration{Duration: responseTime},
				ErrorRate:    errorRate,
			}
			if err := newClient().ReportServiceMetrics(cmd.Context(), args[0], m); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Metrics of service %s reported\n", args[0])
			return nil
		},
	}
	command.Flags().StringArrayVarP(&utilization, "utilization", "u", nil, "Utilization percentage of a resource in name=percentage format, e.g. units=85.")
	command.Flags().DurationVar(&responseTime, "response-time", 0, "Observed response time.")
	command.Flags().Float64Var(&errorRate, "error-rate", 0, "Observed error rate in percentage.")
	return command
}

func parseUtilization(pairs []string) (map[dfv1.ResourceName]float64, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	res := make(map[dfv1.ResourceName]float64, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid utilization %q, expected name=percentage", p)
		}
		f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(v), "%"), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid utilization %q, %w", p, err)
		}
		res[dfv1.ResourceName(strings.TrimSpace(k))] = f
	}
	return res, nil
}
