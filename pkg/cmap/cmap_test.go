/*
 * Copyright 2025 The Zync Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package cmap_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zync-dev/zync/pkg/cmap"
)

func TestMap(t *testing.T) {
	t.Run("set and get test", func(t *testing.T) {
		m := cmap.New[int]()
		m.Set("a", 1)
		m.Set("b", 2)

		v, ok := m.Get("a")
		assert.True(t, ok)
		assert.Equal(t, 1, v)

		_, ok = m.Get("missing")
		assert.False(t, ok)
		assert.Equal(t, 2, m.Len())
	})

	t.Run("upsert test", func(t *testing.T) {
		m := cmap.New[int]()

		v := m.Upsert("counter", func(value int, exists bool) int {
			assert.False(t, exists)
			return 1
		})
		assert.Equal(t, 1, v)

		v = m.Upsert("counter", func(value int, exists bool) int {
			assert.True(t, exists)
			return value + 1
		})
		assert.Equal(t, 2, v)
	})

	t.Run("conditional delete test", func(t *testing.T) {
		m := cmap.New[int]()
		m.Set("a", 1)

		deleted := m.Delete("a", func(value int, exists bool) bool {
			return exists && value > 10
		})
		assert.False(t, deleted)
		assert.Equal(t, 1, m.Len())

		deleted = m.Delete("a", func(value int, exists bool) bool {
			return exists
		})
		assert.True(t, deleted)
		assert.Equal(t, 0, m.Len())
	})

	t.Run("keys and values test", func(t *testing.T) {
		m := cmap.New[string]()
		m.Set("a", "1")
		m.Set("b", "2")

		assert.ElementsMatch(t, []string{"a", "b"}, m.Keys())
		assert.ElementsMatch(t, []string{"1", "2"}, m.Values())
	})

	t.Run("concurrent access test", func(t *testing.T) {
		m := cmap.New[int]()

		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				key := fmt.Sprintf("key-%d", i%10)
				m.Upsert(key, func(value int, exists bool) int {
					return value + 1
				})
			}(i)
		}
		wg.Wait()

		assert.Equal(t, 10, m.Len())
		total := 0
		for _, v := range m.Values() {
			total += v
		}
		assert.Equal(t, 100, total)
	})
}
