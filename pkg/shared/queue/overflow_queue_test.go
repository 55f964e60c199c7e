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

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppend(t *testing.T) {
	q := New[int](3)
	assert.Empty(t, q.Items())
	q.Append(1)
	q.Append(2)
	assert.Equal(t, 2, q.Length())
	assert.Equal(t, []int{1, 2}, q.Items())

	t.Run("wraps around", func(t *testing.T) {
		for i := 3; i <= 7; i++ {
			q.Append(i)
		}
		assert.Equal(t, 3, q.Length())
		assert.Equal(t, []int{5, 6, 7}, q.Items())
	})
}

func TestLatest(t *testing.T) {
	q := New[string](4)
	assert.Empty(t, q.Latest(3))
	for _, s := range []string{"a", "b", "c", "d", "e"} {
		q.Append(s)
	}
	tests := []struct {
		n        int
		expected []string
	}{
		{n: 1, expected: []string{"e"}},
		{n: 2, expected: []string{"d", "e"}},
		{n: 0, expected: []string{"b", "c", "d", "e"}},
		{n: -1, expected: []string{"b", "c", "d", "e"}},
		{n: 10, expected: []string{"b", "c", "d", "e"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, q.Latest(tt.n), "latest %d", tt.n)
	}
}

func TestItemsAreCopies(t *testing.T) {
	q := New[int](2)
	q.Append(1)
	items := q.Items()
	items[0] = 100
	assert.Equal(t, []int{1}, q.Items())
}

func TestMinimumSize(t *testing.T) {
	q := New[int](0)
	q.Append(1)
	q.Append(2)
	assert.Equal(t, []int{2}, q.Items())
}

func TestConcurrentAppend(t *testing.T) {
	q := New[int](50)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				q.Append(i)
				_ = q.Latest(5)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, q.Length())
}
