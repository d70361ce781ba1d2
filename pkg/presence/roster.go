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

// Package presence provides the client-side roster of active users of a
// note. The roster is the UI-facing "who is here" list, distinct from the
// low-level awareness entries: it is keyed by stable user ID and expires by
// wall-clock staleness rather than by disconnect detection.
package presence

import (
	"sort"
	"sync"
	"time"

	"github.com/zync-dev/zync/api/types"
)

// DefaultStaleThreshold is the window after which an entry without activity
// is no longer rendered.
const DefaultStaleThreshold = 60 * time.Second

// Roster tracks the active users of one note from the perspective of one
// session. The owning user is never part of the roster.
type Roster struct {
	selfID         string
	staleThreshold time.Duration

	mu    sync.Mutex
	users map[string]types.ActiveUser
}

// NewRoster creates a roster for the given user. A non-positive threshold
// falls back to DefaultStaleThreshold.
func NewRoster(selfID string, staleThreshold time.Duration) *Roster {
	if staleThreshold <= 0 {
		staleThreshold = DefaultStaleThreshold
	}
	return &Roster{
		selfID:         selfID,
		staleThreshold: staleThreshold,
		users:          make(map[string]types.ActiveUser),
	}
}

// ApplySnapshot replaces the roster with a full presence_update snapshot.
// The local user and entries already stale at receive time are dropped.
func (r *Roster) ApplySnapshot(users []types.ActiveUser, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.users = make(map[string]types.ActiveUser, len(users))
	for _, user := range users {
		if user.ID == r.selfID || user.Stale(now, r.staleThreshold) {
			continue
		}
		r.users[user.ID] = user
	}
}

// ApplyCursor patches a single user's block position and refreshes its
// activity. Unknown users are ignored; a snapshot will follow.
func (r *Roster) ApplyCursor(userID, blockID string, now time.Time) {
	if userID == r.selfID {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[userID]
	if !ok {
		return
	}
	user.BlockID = blockID
	user.LastActive = now.UnixMilli()
	r.users[userID] = user
}

// ApplyLeave removes a user and, implicitly, any block association it held.
func (r *Roster) ApplyLeave(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, userID)
}

// Active returns the non-stale entries ordered by user ID. Staleness is
// evaluated against now on every call since LastActive is relative.
func (r *Roster) Active(now time.Time) []types.ActiveUser {
	r.mu.Lock()
	defer r.mu.Unlock()

	var users []types.ActiveUser
	for _, user := range r.users {
		if user.Stale(now, r.staleThreshold) {
			continue
		}
		users = append(users, user)
	}

	sort.Slice(users, func(i, j int) bool {
		return users[i].ID < users[j].ID
	})
	return users
}

// ByBlock returns a reverse index from block ID to the active user editing
// it, answering "who is on block B" in a single lookup.
func (r *Roster) ByBlock(now time.Time) map[string]types.ActiveUser {
	index := make(map[string]types.ActiveUser)
	for _, user := range r.Active(now) {
		if user.BlockID == "" {
			continue
		}
		index[user.BlockID] = user
	}
	return index
}

// Clear drops every entry. It is called on unmount so no stale collaborators
// linger after navigating away.
func (r *Roster) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = make(map[string]types.ActiveUser)
}
