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

package ledger

import (
	"fmt"

	"go.uber.org/zap"

	dfv1 "github.com/numaproj/numascale/pkg/apis/numascale/v1alpha1"
)

// SetQuota sets the quota of a namespace, an empty list removes it.
func (l *Ledger) SetQuota(namespace string, quota dfv1.ResourceList) error {
	if namespace == "" {
		return fmt.Errorf("namespace is required")
	}
	if k, neg := quota.HasNegative(); neg {
		return fmt.Errorf("negative quota for %q", k)
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	if len(quota) == 0 {
		delete(l.quotas, namespace)
		l.log.Infow("Removed quota", zap.String("namespace", namespace))
		return nil
	}
	l.quotas[namespace] = quota.DeepCopy()
	l.log.Infow("Set quota", zap.String("namespace", namespace), zap.String("quota", quota.String()))
	return nil
}

// Quota returns the quota of the namespace.
func (l *Ledger) Quota(namespace string) (dfv1.ResourceList, bool) {
	l.lock.RLock()
	defer l.lock.RUnlock()
	q, ok := l.quotas[namespace]
	return q.DeepCopy(), ok
}

// Quotas returns a copy of all the quotas.
func (l *Ledger) Quotas() map[string]dfv1.ResourceList {
	l.lock.RLock()
	defer l.lock.RUnlock()
	res := make(map[string]dfv1.ResourceList, len(l.quotas))
	for k, v := range l.quotas {
		res[k] = v.DeepCopy()
	}
	return res
}

// CheckQuota checks whether the requested amount stays within the namespace quota.
// A namespace without quota has no limits, and so does a dimension missing from the quota.
func (l *Ledger) CheckQuota(namespace string, requested dfv1.ResourceList) bool {
	l.lock.RLock()
	defer l.lock.RUnlock()
	q, ok := l.quotas[namespace]
	if !ok {
		return true
	}
	for k, limit := range q {
		if requested[k] > limit {
			return false
		}
	}
	return true
}
