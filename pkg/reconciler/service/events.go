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


package service

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	dfv1 "github.com/numaproj/numascale/pkg/apis/numascale/v1alpha1"
	"github.com/numaproj/numascale/pkg/reconciler"
)

// Events returns the channel the lifecycle events are delivered to.
// Events which find the channel full wait in a pending queue until the next flush,
// the oldest of them are dropped once the queue is full.
func (c *Controller) Events() <-chan dfv1.Event {
	return c.events
}

// RecentEvents returns up to n of the latest events, oldest first. n <= 0 returns all of them.
func (c *Controller) RecentEvents(n int) []dfv1.Event {
	return c.recentEvents.Latest(n)
}

func (c *Controller) emitLocked(e dfv1.Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = metav1.NewTime(c.now())
	}
	c.recentEvents.Append(e)
	reconciler.EventsEmitted.WithLabelValues(string(e.Type)).Inc()
	c.pendingEvents = append(c.pendingEvents, e)
	if limit := c.options.maxPendingEvents; limit > 0 && len(c.pendingEvents) > limit {
		drop := len(c.pendingEvents) - limit
		c.pendingEvents = append([]dfv1.Event(nil), c.pendingEvents[drop:]...)
		c.droppedEvents.Add(int64(drop))
		reconciler.EventsDropped.Add(float64(drop))
	}
}

// flushEventsLocked moves the pending events into the channel without blocking.
func (c *Controller) flushEventsLocked() {
	sent := 0
flush:
	for sent < len(c.pendingEvents) {
		select {
		case c.events <- c.pendingEvents[sent]:
			sent++
		default:
			break flush
		}
	}
	if sent == len(c.pendingEvents) {
		c.pendingEvents = nil
		return
	}
	c.pendingEvents = c.pendingEvents[sent:]
}
