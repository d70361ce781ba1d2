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

package sync_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zync-dev/zync/api/types"
	"github.com/zync-dev/zync/server/backend/sync"
)

func TestPubSub(t *testing.T) {
	ctx := context.Background()

	t.Run("publisher exclusion test", func(t *testing.T) {
		pubsub := sync.NewPubSub()

		subA, err := pubsub.Subscribe(ctx, "conn-a", "note-1")
		assert.NoError(t, err)
		subB, err := pubsub.Subscribe(ctx, "conn-b", "note-1")
		assert.NoError(t, err)

		pubsub.Publish(ctx, sync.RoomEvent{
			Publisher: "conn-a",
			Message:   types.Message{Type: types.NoteUpdateEvent, NoteID: "note-1", Update: []byte("delta")},
		})

		event := <-subB.Events()
		assert.Equal(t, types.NoteUpdateEvent, event.Message.Type)
		assert.Empty(t, subA.Events())
	})

	t.Run("server originated event reaches all test", func(t *testing.T) {
		pubsub := sync.NewPubSub()

		subA, err := pubsub.Subscribe(ctx, "conn-a", "note-1")
		assert.NoError(t, err)
		subB, err := pubsub.Subscribe(ctx, "conn-b", "note-1")
		assert.NoError(t, err)

		pubsub.Publish(ctx, sync.RoomEvent{
			Message: types.Message{Type: types.PresenceUpdateEvent, NoteID: "note-1"},
		})

		assert.Equal(t, types.PresenceUpdateEvent, (<-subA.Events()).Message.Type)
		assert.Equal(t, types.PresenceUpdateEvent, (<-subB.Events()).Message.Type)
	})

	t.Run("room isolation test", func(t *testing.T) {
		pubsub := sync.NewPubSub()

		_, err := pubsub.Subscribe(ctx, "conn-a", "note-1")
		assert.NoError(t, err)
		subOther, err := pubsub.Subscribe(ctx, "conn-b", "note-2")
		assert.NoError(t, err)

		pubsub.Publish(ctx, sync.RoomEvent{
			Message: types.Message{Type: types.PresenceUpdateEvent, NoteID: "note-1"},
		})

		assert.Empty(t, subOther.Events())
	})

	t.Run("empty room reclamation test", func(t *testing.T) {
		pubsub := sync.NewPubSub()

		subA, err := pubsub.Subscribe(ctx, "conn-a", "note-1")
		assert.NoError(t, err)
		subB, err := pubsub.Subscribe(ctx, "conn-b", "note-1")
		assert.NoError(t, err)
		assert.Equal(t, 1, pubsub.Rooms())
		assert.Equal(t, 2, pubsub.Members("note-1"))

		pubsub.Unsubscribe(ctx, "note-1", subA)
		assert.Equal(t, 1, pubsub.Rooms())
		assert.Equal(t, 1, pubsub.Members("note-1"))

		pubsub.Unsubscribe(ctx, "note-1", subB)
		assert.Equal(t, 0, pubsub.Rooms())
		assert.Equal(t, 0, pubsub.Members("note-1"))
	})

	t.Run("slow subscriber test", func(t *testing.T) {
		sub := sync.NewSubscription("conn-slow")
		event := sync.RoomEvent{
			Message: types.Message{Type: types.NoteUpdateEvent, NoteID: "note-1", Update: []byte("x")},
		}

		// Fill the buffer without draining it; the next publish times out
		// instead of wedging the room.
		for {
			if !sub.Publish(event) {
				break
			}
			if len(sub.Events()) == cap(sub.Events()) {
				break
			}
		}
		assert.False(t, sub.Publish(event))
	})

	t.Run("closed subscription publish test", func(t *testing.T) {
		pubsub := sync.NewPubSub()

		sub, err := pubsub.Subscribe(ctx, "conn-a", "note-1")
		assert.NoError(t, err)
		pubsub.Unsubscribe(ctx, "note-1", sub)

		assert.False(t, sub.Publish(sync.RoomEvent{
			Message: types.Message{Type: types.PresenceUpdateEvent, NoteID: "note-1"},
		}))

		_, open := <-sub.Events()
		assert.False(t, open)
	})
}
