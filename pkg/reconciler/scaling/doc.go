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

// Package scaling provides the autoscaling decisions for numascale services.
//
// The Engine keeps the scaling policy of every watched service. Evaluate() looks at
// a metrics snapshot and tells whether the replica count should change. The engine
// does not apply anything and does not enforce the cooldowns, both are left to the
// service controller.
//
// Function SetPolicy() and RemovePolicy() are provided in the package, so that
// services can be added into and removed from the engine.
package scaling
