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


package numascale

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func setBuildInfo(t *testing.T, v, commit, tag, treeState string) {
	t.Helper()
	ov, oc, ot, ots := version, gitCommit, gitTag, gitTreeState
	t.Cleanup(func() {
		version, gitCommit, gitTag, gitTreeState = ov, oc, ot, ots
	})
	version, gitCommit, gitTag, gitTreeState = v, commit, tag, treeState
}

func TestGetVersion(t *testing.T) {
	tests := []struct {
		name      string
		commit    string
		tag       string
		treeState string
		expected  string
	}{
		{name: "tagged clean build", commit: "9f8e7d6c5b4a", tag: "v0.3.1", treeState: "clean", expected: "v0.3.1"},
		{name: "tagged dirty build", commit: "9f8e7d6c5b4a", tag: "v0.3.1", treeState: "dirty", expected: "v0.3.0+9f8e7d6.dirty"},
		{name: "untagged clean build", commit: "9f8e7d6c5b4a", treeState: "clean", expected: "v0.3.0+9f8e7d6"},
		{name: "no commit", expected: "v0.3.0+unknown"},
		{name: "short commit", commit: "9f8e", treeState: "clean", expected: "v0.3.0+unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBuildInfo(t, "v0.3.0", tt.commit, tt.tag, tt.treeState)
			v := GetVersion()
			assert.Equal(t, tt.expected, v.Version)
			assert.Equal(t, tt.commit, v.GitCommit)
			assert.Equal(t, runtime.Version(), v.GoVersion)
			assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, v.Platform)
		})
	}
}

func TestVersion_String(t *testing.T) {
	v := Version{Version: "v0.3.1", BuildDate: "2024-02-01T00:00:00Z", GitCommit: "9f8e7d6", GitTag: "v0.3.1", GitTreeState: "clean", GoVersion: "go1.22.0", Compiler: "gc", Platform: "linux/arm64"}
	assert.Equal(t, "Version: v0.3.1, BuildDate: 2024-02-01T00:00:00Z, GitCommit: 9f8e7d6, GitTag: v0.3.1, GitTreeState: clean, GoVersion: go1.22.0, Compiler: gc, Platform: linux/arm64", v.String())
}

func TestVersion_CheckCompatibility(t *testing.T) {
	v := Version{Version: "v1.2.0"}
	assert.NoError(t, v.CheckCompatibility("v1.2.7"))
	assert.NoError(t, v.CheckCompatibility("1.2.0+abc1234"))
	assert.Error(t, v.CheckCompatibility("v1.3.0"))
	assert.Error(t, v.CheckCompatibility("v2.2.0"))
	assert.NoError(t, v.CheckCompatibility("latest+unknown"))
	assert.NoError(t, Version{Version: "latest+unknown"}.CheckCompatibility("v1.3.0"))
}
