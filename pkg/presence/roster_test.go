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

package presence_test

import (
	"strings"
	"testing"
	gotime "time"

	"github.com/stretchr/testify/assert"

	"github.com/zync-dev/zync/api/types"
	"github.com/zync-dev/zync/pkg/presence"
)

func activeUser(id string, lastActive gotime.Time) types.ActiveUser {
	return types.ActiveUser{
		ID:         id,
		Name:       "user " + id,
		Color:      presence.ColorFor(id),
		LastActive: lastActive.UnixMilli(),
	}
}

func TestRoster(t *testing.T) {
	now := gotime.Now()

	t.Run("snapshot excludes self test", func(t *testing.T) {
		roster := presence.NewRoster("me", 0)
		roster.ApplySnapshot([]types.ActiveUser{
			activeUser("me", now),
			activeUser("other", now),
		}, now)

		active := roster.Active(now)
		assert.Len(t, active, 1)
		assert.Equal(t, "other", active[0].ID)
	})

	t.Run("stale threshold test", func(t *testing.T) {
		roster := presence.NewRoster("me", 60*gotime.Second)
		roster.ApplySnapshot([]types.ActiveUser{
			activeUser("fresh", now.Add(-59*gotime.Second)),
			activeUser("stale", now.Add(-61*gotime.Second)),
		}, now)

		active := roster.Active(now)
		assert.Len(t, active, 1)
		assert.Equal(t, "fresh", active[0].ID)
	})

	t.Run("staleness is evaluated per read test", func(t *testing.T) {
		roster := presence.NewRoster("me", 60*gotime.Second)
		roster.ApplySnapshot([]types.ActiveUser{activeUser("other", now)}, now)

		assert.Len(t, roster.Active(now), 1)
		// The same entry ages out without any new snapshot arriving.
		assert.Empty(t, roster.Active(now.Add(2*gotime.Minute)))
	})

	t.Run("sorted by user id test", func(t *testing.T) {
		roster := presence.NewRoster("me", 0)
		roster.ApplySnapshot([]types.ActiveUser{
			activeUser("charlie", now),
			activeUser("alice", now),
			activeUser("bob", now),
		}, now)

		var ids []string
		for _, user := range roster.Active(now) {
			ids = append(ids, user.ID)
		}
		assert.Equal(t, []string{"alice", "bob", "charlie"}, ids)
	})

	t.Run("cursor patch test", func(t *testing.T) {
		roster := presence.NewRoster("me", 0)
		roster.ApplySnapshot([]types.ActiveUser{activeUser("other", now)}, now)

		roster.ApplyCursor("other", "block-7", now)
		index := roster.ByBlock(now)
		assert.Equal(t, "other", index["block-7"].ID)

		// Unknown users are ignored until a snapshot introduces them.
		roster.ApplyCursor("ghost", "block-9", now)
		_, ok := roster.ByBlock(now)["block-9"]
		assert.False(t, ok)

		// The local cursor never enters the roster.
		roster.ApplyCursor("me", "block-1", now)
		_, ok = roster.ByBlock(now)["block-1"]
		assert.False(t, ok)
	})

	t.Run("leave removes block association test", func(t *testing.T) {
		roster := presence.NewRoster("me", 0)
		roster.ApplySnapshot([]types.ActiveUser{activeUser("other", now)}, now)
		roster.ApplyCursor("other", "block-7", now)

		roster.ApplyLeave("other")
		assert.Empty(t, roster.Active(now))
		assert.Empty(t, roster.ByBlock(now))
	})

	t.Run("clear test", func(t *testing.T) {
		roster := presence.NewRoster("me", 0)
		roster.ApplySnapshot([]types.ActiveUser{activeUser("other", now)}, now)

		roster.Clear()
		assert.Empty(t, roster.Active(now))
	})
}

func TestColorFor(t *testing.T) {
	t.Run("deterministic test", func(t *testing.T) {
		assert.Equal(t, presence.ColorFor("user-1"), presence.ColorFor("user-1"))
	})

	t.Run("palette test", func(t *testing.T) {
		for _, id := range []string{"", "a", "user-1", "user-2", "a-long-user-identifier"} {
			color := presence.ColorFor(id)
			assert.True(t, strings.HasPrefix(color, "#"), color)
			assert.Len(t, color, 7)
		}
	})
}
