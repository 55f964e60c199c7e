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
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/utils/ptr"

	dfv1 "github.com/numaproj/numascale/pkg/apis/numascale/v1alpha1"
	"github.com/numaproj/numascale/pkg/placement"
)

const DefaultConfigPath = "/etc/numascale"

// GlobalConfig is the configuration of the controller, it is
// supposed to be populated from the controller-config.yaml file.
type GlobalConfig struct {
	conf *config
	lock *sync.RWMutex
}

type config struct {
	Controller     *ControllerConfig            `json:"controller"`
	Scoring        *placement.Weights           `json:"scoring"`
	PolicyDefaults *PolicyDefaults              `json:"policyDefaults"`
	Nodes          []NodeConfig                 `json:"nodes"`
	Quotas         map[string]map[string]string `json:"quotas"`
}

type ControllerConfig struct {
	TickInterval time.Duration `json:"tickInterval"`
	// Capacity of the event channel handed out to the consumers.
	EventBufferSize int `json:"eventBufferSize"`
	// Events waiting for room in the channel, the oldest are dropped beyond it.
	MaxPendingEvents int `json:"maxPendingEvents"`
	// Number of events kept for the API.
	RecentEvents int `json:"recentEvents"`
	HistorySize  int `json:"historySize"`
	// Number of reported service metrics snapshots kept.
	MetricsCacheSize int `json:"metricsCacheSize"`
	// Estimated resources of one replica, e.g. {units: 10, memory: 1Gi}.
	ReplicaFootprint map[string]string `json:"replicaFootprint"`
	// Work unit limits are the requests times this.
	LimitMultiplier int64 `json:"limitMultiplier"`
}

// PolicyDefaults fill in the fields left empty by a submitted scaling policy.
type PolicyDefaults struct {
	MinReplicas       int32         `json:"minReplicas"`
	MaxReplicas       int32         `json:"maxReplicas"`
	TargetUtilization float64       `json:"targetUtilization"`
	MaxResponseTime   time.Duration `json:"maxResponseTime"`
	MaxErrorRate      float64       `json:"maxErrorRate"`
	ScaleUpCooldown   time.Duration `json:"scaleUpCooldown"`
	ScaleDownCooldown time.Duration `json:"scaleDownCooldown"`
}

// NodeConfig is a node known at start up.
type NodeConfig struct {
	Name string `json:"name"`
	// Labels in key=value format.
	Labels     []string          `json:"labels"`
	Capacity   map[string]string `json:"capacity"`
	Features   []string          `json:"features"`
	Processors int               `json:"processors"`
	// Nodes are ready unless said otherwise.
	NotReady bool `json:"notReady"`
}

func defaultConfig() *config {
	w := placement.DefaultWeights()
	return &config{
		Controller: &ControllerConfig{
			TickInterval:     dfv1.DefaultTickInterval,
			EventBufferSize:  1000,
			MaxPendingEvents: 10000,
			RecentEvents:     500,
			HistorySize:      100,
			MetricsCacheSize: 10000,
			LimitMultiplier:  dfv1.LimitMultiplier,
		},
		Scoring: &w,
		PolicyDefaults: &PolicyDefaults{
			MinReplicas:       1,
			MaxReplicas:       10,
			TargetUtilization: dfv1.DefaultTargetUtilization,
			ScaleUpCooldown:   dfv1.DefaultScaleUpCooldown,
			ScaleDownCooldown: dfv1.DefaultScaleDownCooldown,
		},
	}
}

// NewGlobalConfig returns the default configuration.
func NewGlobalConfig() *GlobalConfig {
	return &GlobalConfig{conf: defaultConfig(), lock: new(sync.RWMutex)}
}

func (g *GlobalConfig) GetControllerConfig() ControllerConfig {
	g.lock.RLock()
	defer g.lock.RUnlock()
	if g.conf.Controller != nil {
		return *g.conf.Controller
	}
	return *defaultConfig().Controller
}

func (g *GlobalConfig) GetScoringWeights() placement.Weights {
	g.lock.RLock()
	defer g.lock.RUnlock()
	if g.conf.Scoring != nil {
		return *g.conf.Scoring
	}
	return placement.DefaultWeights()
}

// GetPolicyDefaults returns the defaults as a policy, Enabled is left false.
func (g *GlobalConfig) GetPolicyDefaults() *dfv1.ScalingPolicy {
	g.lock.RLock()
	defer g.lock.RUnlock()
	d := g.conf.PolicyDefaults
	if d == nil {
		d = defaultConfig().PolicyDefaults
	}
	return &dfv1.ScalingPolicy{
		MinReplicas:       ptr.To(d.MinReplicas),
		MaxReplicas:       d.MaxReplicas,
		TargetUtilization: d.TargetUtilization,
		MaxResponseTime:   &metav1.Duration{Duration: d.MaxResponseTime},
		MaxErrorRate:      ptr.To(d.MaxErrorRate),
		ScaleUpCooldown:   &metav1.Duration{Duration: d.ScaleUpCooldown},
		ScaleDownCooldown: &metav1.Duration{Duration: d.ScaleDownCooldown},
	}
}

// GetNodes returns the nodes to register at start up.
func (g *GlobalConfig) GetNodes() ([]*dfv1.Node, error) {
	g.lock.RLock()
	defer g.lock.RUnlock()
	res := make([]*dfv1.Node, 0, len(g.conf.Nodes))
	for _, nc := range g.conf.Nodes {
		n, err := nc.toNode()
		if err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	return res, nil
}

// GetQuotas returns the namespace quotas to set at start up.
func (g *GlobalConfig) GetQuotas() (map[string]dfv1.ResourceList, error) {
	g.lock.RLock()
	defer g.lock.RUnlock()
	res := make(map[string]dfv1.ResourceList, len(g.conf.Quotas))
	for ns, q := range g.conf.Quotas {
		rl, err := dfv1.ParseResourceList(q)
		if err != nil {
			return nil, fmt.Errorf("invalid quota of namespace %q, %w", ns, err)
		}
		res[ns] = rl
	}
	return res, nil
}

// GetReplicaFootprint returns the configured footprint of one replica, nil if not configured.
func (cc ControllerConfig) GetReplicaFootprint() (dfv1.ResourceList, error) {
	if len(cc.ReplicaFootprint) == 0 {
		return nil, nil
	}
	return dfv1.ParseResourceList(cc.ReplicaFootprint)
}

func (nc NodeConfig) toNode() (*dfv1.Node, error) {
	capacity, err := dfv1.ParseResourceList(nc.Capacity)
	if err != nil {
		return nil, fmt.Errorf("invalid capacity of node %q, %w", nc.Name, err)
	}
	labels, err := dfv1.ParseLabels(nc.Labels)
	if err != nil {
		return nil, fmt.Errorf("invalid labels of node %q, %w", nc.Name, err)
	}
	n := &dfv1.Node{
		Name:     nc.Name,
		Labels:   labels,
		Capacity: capacity,
		Ready:    !nc.NotReady,
	}
	if len(nc.Features) > 0 || nc.Processors > 0 {
		n.Capabilities = &dfv1.NodeCapabilities{Features: nc.Features, Processors: nc.Processors}
	}
	return n, n.Validate()
}

// LoadConfig reads controller-config.yaml from the given paths, /etc/numascale by default,
// and keeps watching the file. A failed reload keeps the previous configuration.
func LoadConfig(onErrorReloading func(error), configPaths ...string) (*GlobalConfig, error) {
	v := viper.New()
	v.SetConfigName("controller-config")
	v.SetConfigType("yaml")
	if len(configPaths) == 0 {
		configPaths = []string{DefaultConfigPath}
	}
	for _, p := range configPaths {
		v.AddConfigPath(p)
	}
	err := v.ReadInConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration file. %w", err)
	}
	r := &GlobalConfig{
		lock: new(sync.RWMutex),
	}
	conf := defaultConfig()
	err = v.Unmarshal(conf)
	if err != nil {
		return nil, fmt.Errorf("failed unmarshal configuration file. %w", err)
	}
	r.conf = conf
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		cf := defaultConfig()
		err := v.Unmarshal(cf)
		if err != nil {
			onErrorReloading(err)
			return
		}
		r.lock.Lock()
		defer r.lock.Unlock()
		r.conf = cf
	})
	return r, nil
}
