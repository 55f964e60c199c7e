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
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/numaproj/numascale/pkg/apiclient"
	"github.com/numaproj/numascale/pkg/reconciler"
)

const (
	CLIName = "numascale"

	// Exit codes by error kind.
	ExitGeneric    = 1
	ExitValidation = 2
	ExitQuota      = 3
	ExitNotFound   = 4
)

var rootCmd = &cobra.Command{
	Use:   CLIName,
	Short: "Numascale schedules and autoscales services on a pool of nodes",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.HelpFunc()(cmd, args)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI, and exits with a code matching the kind of the error if any.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(rootCmd.ErrOrStderr(), errorStyle.Render("Error: ")+err.Error())
		os.Exit(ExitCode(err))
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("server", apiclient.DefaultServerAddr, "Address of the numascale controller API server.")
	_ = viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))

	rootCmd.AddCommand(NewControllerCommand())
	rootCmd.AddCommand(NewCreateCommand())
	rootCmd.AddCommand(NewDeleteCommand())
	rootCmd.AddCommand(NewListCommand())
	rootCmd.AddCommand(NewStatusCommand())
	rootCmd.AddCommand(NewSetQuotaCommand())
	rootCmd.AddCommand(NewRegisterNodeCommand())
	rootCmd.AddCommand(NewReportMetricsCommand())
	rootCmd.AddCommand(NewEventsCommand())
	rootCmd.AddCommand(NewVersionCommand())
}

func initConfig() {
	// NUMASCALE_SERVER overrides the default of --server
	viper.SetEnvPrefix(strings.ToUpper(CLIName))
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func newClient() *apiclient.Client {
	return apiclient.NewClient(viper.GetString("server"))
}

// usageError is an invalid command line, reported like a validation error.
type usageError struct {
	err error
}

func (e *usageError) Error() string {
	return e.err.Error()
}

func (e *usageError) Unwrap() error {
	return e.err
}

func newUsageError(format string, args ...interface{}) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// ExitCode maps an error to the exit code of the CLI.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ue *usageError
	if errors.As(err, &ue) {
		return ExitValidation
	}
	var apiErr *apiclient.APIError
	if !errors.As(err, &apiErr) {
		return ExitGeneric
	}
	switch apiErr.Reason {
	case reconciler.ReasonValidation, reconciler.ReasonAlreadyExists:
		return ExitValidation
	case reconciler.ReasonQuotaExceeded:
		return ExitQuota
	case reconciler.ReasonNotFound:
		return ExitNotFound
	default:
		return ExitGeneric
	}
}
