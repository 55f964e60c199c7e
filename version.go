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
	"fmt"
	"runtime"

	"github.com/Masterminds/semver/v3"
)

// Populated at build time through -ldflags.
var (
	version      = "latest"
	buildDate    = "1970-01-01T00:00:00Z"
	gitCommit    = ""
	gitTag       = ""
	gitTreeState = ""
)

// Version contains numascale version information
type Version struct {
	Version      string
	BuildDate    string
	GitCommit    string
	GitTag       string
	GitTreeState string
	GoVersion    string
	Compiler     string
	Platform     string
}

func (v Version) String() string {
	return fmt.Sprintf("Version: %s, BuildDate: %s, GitCommit: %s, GitTag: %s, GitTreeState: %s, GoVersion: %s, Compiler: %s, Platform: %s",
		v.Version, v.BuildDate, v.GitCommit, v.GitTag, v.GitTreeState, v.GoVersion, v.Compiler, v.Platform)
}

// GetVersion returns the version information
func GetVersion() Version {
	var versionStr string
	if gitCommit != "" && gitTag != "" && gitTreeState == "clean" {
		// a tagged, clean build reports the tag
		versionStr = gitTag
	} else {
		versionStr = version
		if len(gitCommit) >= 7 {
			versionStr += "+" + gitCommit[0:7]
			if gitTreeState != "clean" {
				versionStr += ".dirty"
			}
		} else {
			versionStr += "+unknown"
		}
	}
	return Version{
		Version:      versionStr,
		BuildDate:    buildDate,
		GitCommit:    gitCommit,
		GitTag:       gitTag,
		GitTreeState: gitTreeState,
		GoVersion:    runtime.Version(),
		Compiler:     runtime.Compiler,
		Platform:     fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// CheckCompatibility checks that the other version has the same major and minor
// version. Unreleased builds, e.g. latest+unknown, are always compatible.
func (v Version) CheckCompatibility(other string) error {
	mine, err := semver.NewVersion(v.Version)
	if err != nil {
		return nil
	}
	theirs, err := semver.NewVersion(other)
	if err != nil {
		return nil
	}
	constraint := fmt.Sprintf("~%d.%d", mine.Major(), mine.Minor())
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return fmt.Errorf("error parsing constraint: %w, constraint string: %s", err, constraint)
	}
	if ok, _ := c.Validate(theirs); !ok {
		return fmt.Errorf("version %s did not meet constraint requirement %s", other, constraint)
	}
	return nil
}
