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

// Package presence provides the server-side roster of active users per note.
// Entries are keyed by stable user ID; multiple connections of the same user
// collapse into one refcounted entry, with last write winning for the block
// position and activity timestamp.
package presence

import (
	"sort"
	gosync "sync"
	"time"

	"github.com/zync-dev/zync/api/types"
	"github.com/zync-dev/zync/pkg/cmap"
)

// roster holds the active users of one note and the connection-to-user
// mapping used to refcount multi-connection users.
type roster struct {
	mu    gosync.Mutex
	users map[string]*types.ActiveUser
	conns map[string]string // connection ID -> user ID
}

func newRoster() *roster {
	return &roster{
		users: make(map[string]*types.ActiveUser),
		conns: make(map[string]string),
	}
}

// Manager tracks the rosters of every note served by this node.
type Manager struct {
	rosters        *cmap.Map[*roster]
	staleThreshold time.Duration
}

// NewManager creates an instance of Manager. Entries older than the stale
// threshold are pruned when snapshots are taken.
func NewManager(staleThreshold time.Duration) *Manager {
	return &Manager{
		rosters:        cmap.New[*roster](),
		staleThreshold: staleThreshold,
	}
}

// Join registers the user of the given connection in the note's roster and
// returns the resulting snapshot. Joining twice with the same connection is
// idempotent and never duplicates entries.
func (m *Manager) Join(
	noteKey, connID string,
	user types.ActiveUser,
	now time.Time,
) []types.ActiveUser {
	r := m.rosters.Upsert(noteKey, func(r *roster, exists bool) *roster {
		if !exists {
			return newRoster()
		}
		return r
	})

	r.mu.Lock()
	defer r.mu.Unlock()

	r.conns[connID] = user.ID

	user.LastActive = now.UnixMilli()
	if stored, ok := r.users[user.ID]; ok {
		// Keep the latest block position of an already-present user.
		if user.BlockID == "" {
			user.BlockID = stored.BlockID
		}
	}
	r.users[user.ID] = &user

	return m.snapshotLocked(r, now)
}

// Leave removes the connection from the note's roster. It returns the user
// ID and true when the last connection of that user left, together with the
// remaining snapshot. Leaving twice is idempotent.
func (m *Manager) Leave(
	noteKey, connID string,
	now time.Time,
) (string, bool, []types.ActiveUser) {
	r, ok := m.rosters.Get(noteKey)
	if !ok {
		return "", false, nil
	}

	r.mu.Lock()
	userID, ok := r.conns[connID]
	if !ok {
		snapshot := m.snapshotLocked(r, now)
		r.mu.Unlock()
		return "", false, snapshot
	}
	delete(r.conns, connID)

	left := true
	for _, remaining := range r.conns {
		if remaining == userID {
			left = false
			break
		}
	}
	if left {
		delete(r.users, userID)
	}
	snapshot := m.snapshotLocked(r, now)
	empty := len(r.conns) == 0
	r.mu.Unlock()

	if empty {
		m.rosters.Delete(noteKey, func(r *roster, exists bool) bool {
			if !exists {
				return false
			}
			r.mu.Lock()
			defer r.mu.Unlock()
			return len(r.conns) == 0
		})
	}

	if !left {
		return "", false, snapshot
	}
	return userID, true, snapshot
}

// Refresh bumps the activity timestamp of the user, keeping it out of the
// staleness window while it produces document or awareness updates.
func (m *Manager) Refresh(noteKey, userID string, now time.Time) {
	r, ok := m.rosters.Get(noteKey)
	if !ok {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if user, ok := r.users[userID]; ok {
		user.LastActive = now.UnixMilli()
	}
}

// Cursor records the block position of the user, last write wins. It
// reports whether the user is present in the roster.
func (m *Manager) Cursor(noteKey, userID, blockID string, now time.Time) bool {
	r, ok := m.rosters.Get(noteKey)
	if !ok {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[userID]
	if !ok {
		return false
	}

	user.BlockID = blockID
	user.LastActive = now.UnixMilli()
	return true
}

// Snapshot returns the roster of the note ordered by user ID.
func (m *Manager) Snapshot(noteKey string, now time.Time) []types.ActiveUser {
	r, ok := m.rosters.Get(noteKey)
	if !ok {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return m.snapshotLocked(r, now)
}

// snapshotLocked copies the non-stale entries of the roster. Stale entries
// are pruned in passing; their connections are gone or wedged and a live
// connection re-adds the user on its next join. The caller must hold r.mu.
func (m *Manager) snapshotLocked(r *roster, now time.Time) []types.ActiveUser {
	var users []types.ActiveUser
	for id, user := range r.users {
		if m.staleThreshold > 0 && user.Stale(now, m.staleThreshold) {
			delete(r.users, id)
			continue
		}
		users = append(users, *user)
	}

	sort.Slice(users, func(i, j int) bool {
		return users[i].ID < users[j].ID
	})
	return users
}
