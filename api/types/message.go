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

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidMessage is returned when a channel message is structurally
	// invalid for its event type.
	ErrInvalidMessage = errors.New("invalid message")
)

// Message is the envelope of the note sync channel. A single envelope carries
// every event type; fields that do not apply to the type are left empty.
// Document and awareness deltas ride opaque in Update and are never inspected
// by the relay.
type Message struct {
	Type   EventType `json:"type"`
	NoteID string    `json:"noteId"`

	// Update is an encoded document or awareness delta.
	Update []byte `json:"update,omitempty"`

	// Presence identity, set on join_note, leave_note, cursor events and
	// user_left.
	UserID     string `json:"userId,omitempty"`
	UserName   string `json:"userName,omitempty"`
	UserAvatar string `json:"userAvatar,omitempty"`
	UserColor  string `json:"userColor,omitempty"`
	BlockID    string `json:"blockId,omitempty"`

	// Users is the full roster snapshot of presence_update.
	Users []ActiveUser `json:"users,omitempty"`
}

// Validate checks that the required fields of the event type are present.
func (m *Message) Validate() error {
	if !m.Type.Valid() {
		return fmt.Errorf("event type %q: %w", m.Type, ErrInvalidMessage)
	}

	if m.NoteID == "" {
		return fmt.Errorf("%s: note id is empty: %w", m.Type, ErrInvalidMessage)
	}

	switch m.Type {
	case NoteUpdateEvent, AwarenessUpdateEvent:
		if len(m.Update) == 0 {
			return fmt.Errorf("%s: update is empty: %w", m.Type, ErrInvalidMessage)
		}
	case JoinNoteEvent, LeaveNoteEvent, CursorMoveEvent:
		if m.UserID == "" {
			return fmt.Errorf("%s: user id is empty: %w", m.Type, ErrInvalidMessage)
		}
	}

	return nil
}
