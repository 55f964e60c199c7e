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
	"github.com/spf13/cobra"

	dfv1 "github.com/numaproj/numascale/pkg/apis/numascale/v1alpha1"
	reconcilercmd "github.com/numaproj/numascale/pkg/reconciler/cmd"
	sharedutil "github.com/numaproj/numascale/pkg/shared/util"
	svrcmd "github.com/numaproj/numascale/server/cmd/server"
)

func NewControllerCommand() *cobra.Command {
	var (
		configPath         string
		port               int
		corsAllowedOrigins string
		readOnly           bool
		rateLimitQPS       float64
		rateLimitBurst     int
	)

	command := &cobra.Command{
		Use:   "controller",
		Short: "Start the controller and its API server",
		Run: func(cmd *cobra.Command, args []string) {
			reconcilercmd.Start(configPath, svrcmd.ServerOptions{
				Port:               port,
				CorsAllowedOrigins: corsAllowedOrigins,
				ReadOnly:           readOnly,
				RateLimitQPS:       rateLimitQPS,
				RateLimitBurst:     rateLimitBurst,
			})
		},
	}
	command.Flags().StringVar(&configPath, "config-path", "", "Directory of controller-config.yaml, defaults to $NUMASCALE_CONFIG_PATH or /etc/numascale.")
	command.Flags().IntVarP(&port, "port", "p", sharedutil.LookupEnvIntOr(dfv1.EnvPort, 8443), "Port of the API server.")
	command.Flags().StringVar(&corsAllowedOrigins, "cors-allowed-origins", "", "Comma separated list of origins allowed by CORS.")
	command.Flags().BoolVar(&readOnly, "read-only", sharedutil.LookupEnvBoolOr(dfv1.EnvReadOnly, false), "Whether to reject mutating API requests.")
	command.Flags().Float64Var(&rateLimitQPS, "rate-limit-qps", sharedutil.LookupEnvFloatOr(dfv1.EnvRateLimitQPS, 0), "Mutating API requests per second, 0 means no limit.")
	command.Flags().IntVar(&rateLimitBurst, "rate-limit-burst", sharedutil.LookupEnvIntOr(dfv1.EnvRateLimitBurst, 0), "Burst of mutating API requests, defaults to the QPS.")
	return command
}
