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
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResourceList(t *testing.T) {
	tests := []struct {
		name    string
		input   map[string]string
		want    ResourceList
		wantErr bool
	}{
		{
			name:  "plain integers",
			input: map[string]string{"units": "20", "channels": "4"},
			want:  ResourceList{ResourceUnits: 20, ResourceChannels: 4},
		},
		{
			name:  "binary memory",
			input: map[string]string{"memory": "512Mi"},
			want:  ResourceList{ResourceMemory: 512 * 1024 * 1024},
		},
		{
			name:  "decimal suffix",
			input: map[string]string{"units": "2k"},
			want:  ResourceList{ResourceUnits: 2000},
		},
		{
			name:    "garbage",
			input:   map[string]string{"units": "lots"},
			wantErr: true,
		},
		{
			name:    "negative",
			input:   map[string]string{"units": "-1"},
			wantErr: true,
		},
		{
			name:    "empty name",
			input:   map[string]string{" ": "1"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResourceList(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseResourcePairs(t *testing.T) {
	rl, err := ParseResourcePairs([]string{"units=50", "memory=1Gi"})
	require.NoError(t, err)
	assert.Equal(t, int64(50), rl[ResourceUnits])
	assert.Equal(t, int64(1<<30), rl[ResourceMemory])

	_, err = ParseResourcePairs([]string{"units"})
	assert.Error(t, err)
}

func TestResourceList_Arithmetic(t *testing.T) {
	a := ResourceList{ResourceUnits: 50, ResourceChannels: 8}
	b := ResourceList{ResourceUnits: 20}

	assert.Equal(t, ResourceList{ResourceUnits: 70, ResourceChannels: 8}, a.Add(b))
	assert.Equal(t, ResourceList{ResourceUnits: 30, ResourceChannels: 8}, a.Sub(b))
	assert.Equal(t, ResourceList{ResourceUnits: 60}, b.Scale(3))
	// operands are untouched
	assert.Equal(t, int64(50), a[ResourceUnits])

	var empty ResourceList
	assert.Equal(t, ResourceList{ResourceUnits: 20}, empty.Add(b))
	assert.Nil(t, empty.DeepCopy())
}

func TestResourceList_Saturation(t *testing.T) {
	tib := ResourceList{ResourceMemory: 1 << 40}
	// 2^40 * 2^23 does not fit in an int64
	assert.Equal(t, int64(math.MaxInt64), tib.Scale(1 << 23)[ResourceMemory])
	assert.Equal(t, int64(1<<62), tib.Scale(1 << 22)[ResourceMemory])
	assert.Equal(t, int64(math.MinInt64), tib.Scale(-(1 << 23))[ResourceMemory])
	assert.Equal(t, int64(0), tib.Scale(0)[ResourceMemory])

	huge := ResourceList{ResourceMemory: math.MaxInt64 - 1}
	assert.Equal(t, int64(math.MaxInt64), huge.Add(tib)[ResourceMemory])
	assert.Equal(t, int64(math.MinInt64), ResourceList{ResourceMemory: math.MinInt64 + 1}.Sub(tib)[ResourceMemory])
	assert.Equal(t, int64(math.MaxInt64), huge.Sub(ResourceList{ResourceMemory: -(1 << 40)})[ResourceMemory])
	assert.Equal(t, int64(math.MaxInt64-1-(1<<40)), huge.Sub(tib)[ResourceMemory])
}

func TestResourceList_Fits(t *testing.T) {
	avail := ResourceList{ResourceUnits: 10, ResourceChannels: 2}
	assert.True(t, avail.Fits(ResourceList{ResourceUnits: 10}))
	assert.True(t, avail.Fits(ResourceList{ResourceUnits: 10, ResourceChannels: 2}))
	assert.False(t, avail.Fits(ResourceList{ResourceUnits: 11}))
	assert.False(t, avail.Fits(ResourceList{ResourceMemory: 1}))
	// zero requests of an unknown dimension are fine
	assert.True(t, avail.Fits(ResourceList{ResourceMemory: 0}))

	short := avail.Shortfall(ResourceList{ResourceUnits: 11, ResourceChannels: 1})
	require.Len(t, short, 1)
	assert.Contains(t, short[0], "units")
}

func TestResourceList_Equal(t *testing.T) {
	assert.True(t, ResourceList{ResourceUnits: 0}.Equal(ResourceList{}))
	assert.True(t, ResourceList{ResourceUnits: 1}.Equal(ResourceList{ResourceUnits: 1}))
	assert.False(t, ResourceList{ResourceUnits: 1}.Equal(ResourceList{ResourceChannels: 1}))
}

func TestResourceList_String(t *testing.T) {
	rl := ResourceList{ResourceUnits: 20, ResourceMemory: 512 * 1024 * 1024}
	assert.Equal(t, "memory=512Mi,units=20", rl.String())
}
