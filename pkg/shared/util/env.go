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


package util

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// lookupEnvOr parses the env variable, an unset or empty variable gives the default.
// It panics on a value which can not be parsed, these are start up settings.
func lookupEnvOr[T any](key string, defaultValue T, parse func(string) (T, error)) T {
	s, existing := os.LookupEnv(key)
	if !existing || s == "" {
		return defaultValue
	}
	v, err := parse(s)
	if err != nil {
		panic(fmt.Errorf("invalid value for env variable %q, value %q, %w", key, s, err))
	}
	return v
}

func LookupEnvStringOr(key, defaultValue string) string {
	return lookupEnvOr(key, defaultValue, func(s string) (string, error) {
		return s, nil
	})
}

func LookupEnvIntOr(key string, defaultValue int) int {
	return lookupEnvOr(key, defaultValue, strconv.Atoi)
}

func LookupEnvBoolOr(key string, defaultValue bool) bool {
	return lookupEnvOr(key, defaultValue, strconv.ParseBool)
}

func LookupEnvFloatOr(key string, defaultValue float64) float64 {
	return lookupEnvOr(key, defaultValue, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

// LookupEnvDurationOr parses values like "15s" or "2m".
func LookupEnvDurationOr(key string, defaultValue time.Duration) time.Duration {
	return lookupEnvOr(key, defaultValue, time.ParseDuration)
}
