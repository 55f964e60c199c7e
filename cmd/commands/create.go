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
	"os"
	"time"

	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/yaml"

	dfv1 "github.com/numaproj/numascale/pkg/apis/numascale/v1alpha1"
)

// serviceFile is the YAML or JSON form of a service spec, with the requests
// written as quantities such as "20" or "512Mi".
type serviceFile struct {
	Name      string `json:"name"`
	Namespace string `json:"namespace,omitempty"`
	Replicas  int32  `json:"replicas"`
	Template  struct {
		Requests map[string]resource.Quantity `json:"requests"`
		Features []string                     `json:"features,omitempty"`
	} `json:"template"`
	Policy *dfv1.ScalingPolicy `json:"policy,omitempty"`
}

func (f *serviceFile) toSpec() (dfv1.ServiceSpec, error) {
	requests := make(dfv1.ResourceList, len(f.Template.Requests))
	for k, q := range f.Template.Requests {
		if q.Sign() < 0 {
			return dfv1.ServiceSpec{}, fmt.Errorf("negative quantity %q for resource %q", q.String(), k)
		}
		requests[dfv1.ResourceName(k)] = q.Value()
	}
	return dfv1.ServiceSpec{
		Name:      f.Name,
		Namespace: f.Namespace,
		Replicas:  f.Replicas,
		Template:  dfv1.WorkUnitTemplate{Requests: requests, Features: f.Template.Features},
		Policy:    f.Policy,
	}, nil
}

func loadServiceFile(path string) (dfv1.ServiceSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return dfv1.ServiceSpec{}, err
	}
	f := &serviceFile{}
	if err := yaml.UnmarshalStrict(data, f); err != nil {
		return dfv1.ServiceSpec{}, fmt.Errorf("failed to parse %s, %w", path, err)
	}
	return f.toSpec()
}

func NewCreateCommand() *cobra.Command {
	var (
		file              string
		namespace         string
		replicas          int32
		requests          []string
		features          []string
		autoscale         bool
		minReplicas       int32
		maxReplicas       int32
		targetUtilization float64
		maxResponseTime   time.Duration
		maxErrorRate      float64
	)
	command := &cobra.Command{
		Use:   "create [NAME]",
		Short: "Create a service from flags or from a spec file",
		Example: `  numascale create api --namespace ml --replicas 2 --request units=20 --request memory=1Gi
  numascale create api --request units=10 --autoscale --min 1 --max 5
  numascale create -f service.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var spec dfv1.ServiceSpec
			if file != "" {
				if len(args) > 0 {
					return newUsageError("NAME can not be used together with --file")
				}
				s, err := loadServiceFile(file)
				if err != nil {
					return newUsageError("%v", err)
				}
				spec = s
			} else {
				if len(args) == 0 {
					return newUsageError("either NAME or --file is required")
				}
				rl, err := dfv1.ParseResourcePairs(requests)
				if err != nil {
					return newUsageError("%v", err)
				}
				spec = dfv1.ServiceSpec{
					Name:      args[0],
					Namespace: namespace,
					Replicas:  replicas,
					Template:  dfv1.WorkUnitTemplate{Requests: rl, Features: features},
				}
				if autoscale {
					// flags not given get the controller defaults
					p := &dfv1.ScalingPolicy{
						Enabled:           true,
						MaxReplicas:       maxReplicas,
						TargetUtilization: targetUtilization,
					}
					flags := cmd.Flags()
					if flags.Changed("min") {
						p.MinReplicas = ptr.To(minReplicas)
					}
					if flags.Changed("max-response-time") {
						p.MaxResponseTime = &metav1.Duration{Duration: maxResponseTime}
					}
					if flags.Changed("max-error-rate") {
						p.MaxErrorRate = ptr.To(maxErrorRate)
					}
					spec.Policy = p
				}
			}
			res, err := newClient().CreateService(cmd.Context(), spec)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Service %s created\n", res.ID)
			return nil
		},
	}
	command.Flags().StringVarP(&file, "file", "f", "", "YAML or JSON file of the service spec.")
	command.Flags().StringVarP(&namespace, "namespace", "n", "", "Namespace of the service, defaults to \"default\".")
	command.Flags().Int32Var(&replicas, "replicas", 1, "Desired replicas.")
	command.Flags().StringArrayVarP(&requests, "request", "r", nil, "Request of each replica in name=quantity format, e.g. units=20.")
	command.Flags().StringSliceVar(&features, "feature", nil, "Hardware features preferred by the work units.")
	command.Flags().BoolVar(&autoscale, "autoscale", false, "Enable autoscaling.")
	command.Flags().Int32Var(&minReplicas, "min", 0, "Min replicas when autoscaling.")
	command.Flags().Int32Var(&maxReplicas, "max", 0, "Max replicas when autoscaling.")
	command.Flags().Float64Var(&targetUtilization, "target-utilization", 0, "Target utilization percentage when autoscaling.")
	command.Flags().DurationVar(&maxResponseTime, "max-response-time", 0, "Scale up when the response time exceeds it.")
	command.Flags().Float64Var(&maxErrorRate, "max-error-rate", 0, "Scale up when the error rate percentage exceeds it.")
	return command
}
