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

// Package types provides the types shared between the Zync server and client,
// including the wire messages of the note sync channel.
package types

// EventType represents the type of event that flows on the note sync channel.
type EventType string

const (
	// JoinNoteEvent is sent by a client to enter the room of a note. It
	// carries the presence identity of the joining user.
	JoinNoteEvent EventType = "join_note"

	// NoteUpdateEvent carries an encoded document delta. It flows in both
	// directions and is relayed to every other member of the room.
	NoteUpdateEvent EventType = "note_update"

	// AwarenessUpdateEvent carries an encoded awareness delta.
	AwarenessUpdateEvent EventType = "awareness_update"

	// PresenceUpdateEvent is a full roster snapshot sent by the server
	// whenever room membership or a member's state changes.
	PresenceUpdateEvent EventType = "presence_update"

	// UserLeftEvent is an incremental removal signal for a single user.
	UserLeftEvent EventType = "user_left"

	// CursorMoveEvent is sent by a client when its cursor moves to a block.
	CursorMoveEvent EventType = "cursor_move"

	// CursorUpdateEvent is the relayed form of CursorMoveEvent.
	CursorUpdateEvent EventType = "cursor_update"

	// LeaveNoteEvent is sent by a client to leave the room explicitly.
	LeaveNoteEvent EventType = "leave_note"
)

// Valid returns whether the event type is one of the known channel events.
func (t EventType) Valid() bool {
	switch t {
	case JoinNoteEvent, NoteUpdateEvent, AwarenessUpdateEvent,
		PresenceUpdateEvent, UserLeftEvent, CursorMoveEvent,
		CursorUpdateEvent, LeaveNoteEvent:
		return true
	}
	return false
}

// OriginTag distinguishes locally produced updates from updates applied on
// behalf of a remote peer. It is compared by value and passed explicitly
// through update emission, so subscribers can suppress echo without relying
// on reference identity.
type OriginTag int

const (
	// OriginLocal marks an update produced by the owning session.
	OriginLocal OriginTag = iota

	// OriginRemote marks an update received from the sync channel.
	OriginRemote
)

// String returns the name of the origin tag.
func (o OriginTag) String() string {
	if o == OriginLocal {
		return "local"
	}
	return "remote"
}
