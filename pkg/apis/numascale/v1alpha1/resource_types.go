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

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"k8s.io/apimachinery/pkg/api/resource"
)

// ResourceName is the name of a resource dimension, e.g. "units", "channels" or "memory".
type ResourceName string

// ResourceList maps resource dimensions to amounts in base units (bytes for memory).
type ResourceList map[ResourceName]int64

// ParseResourceList parses quantity strings such as "20", "2k" or "512Mi" into a ResourceList.
func ParseResourceList(in map[string]string) (ResourceList, error) {
	out := make(ResourceList, len(in))
	for k, v := range in {
		name := strings.TrimSpace(k)
		if name == "" {
			return nil, fmt.Errorf("empty resource name")
		}
		q, err := resource.ParseQuantity(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("invalid quantity %q for resource %q, %w", v, name, err)
		}
		if q.Sign() < 0 {
			return nil, fmt.Errorf("negative quantity %q for resource %q", v, name)
		}
		out[ResourceName(name)] = q.Value()
	}
	return out, nil
}

// ParseResourcePairs parses "name=quantity" pairs.
func ParseResourcePairs(pairs []string) (ResourceList, error) {
	m := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("invalid resource %q, expected name=quantity", p)
		}
		m[k] = v
	}
	return ParseResourceList(m)
}

// DeepCopy returns a copy of the list, nil stays nil.
func (rl ResourceList) DeepCopy() ResourceList {
	if rl == nil {
		return nil
	}
	out := make(ResourceList, len(rl))
	for k, v := range rl {
		out[k] = v
	}
	return out
}

// Names returns the dimensions in lexical order.
func (rl ResourceList) Names() []ResourceName {
	names := make([]ResourceName, 0, len(rl))
	for k := range rl {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Add returns rl + other.
func (rl ResourceList) Add(other ResourceList) ResourceList {
	out := rl.DeepCopy()
	if out == nil {
		out = ResourceList{}
	}
	for k, v := range other {
		out[k] = addSaturated(out[k], v)
	}
	return out
}

// Sub returns rl - other.
func (rl ResourceList) Sub(other ResourceList) ResourceList {
	out := rl.DeepCopy()
	if out == nil {
		out = ResourceList{}
	}
	for k, v := range other {
		out[k] = subSaturated(out[k], v)
	}
	return out
}

// Scale multiplies every dimension by n. Amounts beyond the int64 range are clamped
// to it, so a huge demand never wraps into a small one.
func (rl ResourceList) Scale(n int64) ResourceList {
	out := make(ResourceList, len(rl))
	for k, v := range rl {
		out[k] = mulSaturated(v, n)
	}
	return out
}

func mulSaturated(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	c := a * b
	if c/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		if (a > 0) == (b > 0) {
			return math.MaxInt64
		}
		return math.MinInt64
	}
	return c
}

func addSaturated(a, b int64) int64 {
	c := a + b
	switch {
	case a > 0 && b > 0 && c < 0:
		return math.MaxInt64
	case a < 0 && b < 0 && c >= 0:
		return math.MinInt64
	}
	return c
}

func subSaturated(a, b int64) int64 {
	c := a - b
	switch {
	case a >= 0 && b < 0 && c < 0:
		return math.MaxInt64
	case a < 0 && b > 0 && c >= 0:
		return math.MinInt64
	}
	return c
}

// Fits returns true if every dimension of request is available in rl.
// A dimension missing from rl has nothing available.
func (rl ResourceList) Fits(request ResourceList) bool {
	for k, v := range request {
		if v <= 0 {
			continue
		}
		if rl[k] < v {
			return false
		}
	}
	return true
}

// Shortfall lists the dimensions of request that do not fit in rl.
func (rl ResourceList) Shortfall(request ResourceList) []string {
	var res []string
	for _, k := range request.Names() {
		if v := request[k]; v > 0 && rl[k] < v {
			res = append(res, fmt.Sprintf("%s (requested %d, available %d)", k, v, rl[k]))
		}
	}
	return res
}

// IsZero returns true if no dimension holds a positive amount.
func (rl ResourceList) IsZero() bool {
	for _, v := range rl {
		if v != 0 {
			return false
		}
	}
	return true
}

// HasNegative returns the first dimension with a negative amount.
func (rl ResourceList) HasNegative() (ResourceName, bool) {
	for _, k := range rl.Names() {
		if rl[k] < 0 {
			return k, true
		}
	}
	return "", false
}

// Equal compares two lists treating missing dimensions as zero.
func (rl ResourceList) Equal(other ResourceList) bool {
	for k, v := range rl {
		if other[k] != v {
			return false
		}
	}
	for k, v := range other {
		if rl[k] != v {
			return false
		}
	}
	return true
}

func (rl ResourceList) String() string {
	parts := make([]string, 0, len(rl))
	for _, k := range rl.Names() {
		parts = append(parts, fmt.Sprintf("%s=%s", k, FormatQuantity(k, rl[k])))
	}
	return strings.Join(parts, ",")
}

// FormatQuantity renders memory in binary SI and everything else in decimal SI.
func FormatQuantity(name ResourceName, v int64) string {
	if name == ResourceMemory {
		return resource.NewQuantity(v, resource.BinarySI).String()
	}
	return resource.NewQuantity(v, resource.DecimalSI).String()
}
