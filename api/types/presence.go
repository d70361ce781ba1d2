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

package types

import "time"

// ActiveUser is a roster entry of a note. It is keyed by the stable user ID,
// not the connection ID, so multiple connections of the same user collapse
// into a single entry.
type ActiveUser struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	AvatarURL  string `json:"avatarUrl,omitempty"`
	Color      string `json:"color"`
	BlockID    string `json:"blockId,omitempty"`
	LastActive int64  `json:"lastActive"`
}

// LastActiveTime returns LastActive as a time.Time.
func (u *ActiveUser) LastActiveTime() time.Time {
	return time.UnixMilli(u.LastActive)
}

// Stale returns whether the entry is older than the given threshold relative
// to now. Staleness is a filtering condition, not an error: consumers must
// re-check it on every roster read since it is relative to the current time.
func (u *ActiveUser) Stale(now time.Time, threshold time.Duration) bool {
	return now.Sub(u.LastActiveTime()) > threshold
}
