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


package queue

import "sync"

// OverflowQueue is a thread safe ring of bounded size, appending to a full queue
// overwrites the oldest element. It backs the scaling decision history and the
// recent event log.
type OverflowQueue[T any] struct {
	lock sync.RWMutex
	ring []T
	// index of the oldest element
	head  int
	count int
}

// New returns a queue holding at most size elements, a size below 1 is treated as 1.
func New[T any](size int) *OverflowQueue[T] {
	if size < 1 {
		size = 1
	}
	return &OverflowQueue[T]{ring: make([]T, size)}
}

// Append adds an element to the queue, overwriting the oldest one when full.
func (q *OverflowQueue[T]) Append(value T) {
	q.lock.Lock()
	defer q.lock.Unlock()
	if q.count < len(q.ring) {
		q.ring[(q.head+q.count)%len(q.ring)] = value
		q.count++
		return
	}
	q.ring[q.head] = value
	q.head = (q.head + 1) % len(q.ring)
}

// Items returns a copy of the elements in the queue, oldest first.
func (q *OverflowQueue[T]) Items() []T {
	return q.Latest(0)
}

// Latest returns up to n of the newest elements, oldest first. A non positive n returns all of them.
func (q *OverflowQueue[T]) Latest(n int) []T {
	q.lock.RLock()
	defer q.lock.RUnlock()
	if n <= 0 || n > q.count {
		n = q.count
	}
	r := make([]T, n)
	first := q.head + q.count - n
	for i := range r {
		r[i] = q.ring[(first+i)%len(q.ring)]
	}
	return r
}

// Length returns the current length of the queue.
func (q *OverflowQueue[T]) Length() int {
	q.lock.RLock()
	defer q.lock.RUnlock()
	return q.count
}
