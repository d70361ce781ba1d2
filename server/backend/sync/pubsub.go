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

// Package sync provides the room relay primitives of the Zync server. A room
// is a routing construct keyed by note key; the relay holds no document
// state and performs no merges, it only fans events out to room members.
package sync

import (
	"context"
	gotime "time"

	gosync "sync"

	"github.com/rs/xid"
	"go.uber.org/zap"

	"github.com/zync-dev/zync/api/types"
	"github.com/zync-dev/zync/pkg/cmap"
	"github.com/zync-dev/zync/server/logging"
)

const (
	// publishTimeout bounds how long a publish waits on a single slow
	// subscriber before dropping the event for that subscriber.
	publishTimeout = 100 * gotime.Millisecond

	// eventBufferSize is the capacity of a subscription's event channel.
	eventBufferSize = 64
)

// RoomEvent is an event routed through a room: a relayed delta or a
// presence notification wrapped in its wire message.
type RoomEvent struct {
	// Publisher is the connection ID of the originating connection. Events
	// are never delivered back to their publisher. Server-originated events
	// carry an empty publisher and reach every member.
	Publisher string

	// Message is the wire message delivered to room members.
	Message types.Message
}

// Subscription represents one connection's membership in a room.
type Subscription struct {
	id         string
	subscriber string

	mu     gosync.Mutex
	closed bool
	events chan RoomEvent
}

// NewSubscription creates a new instance of Subscription.
func NewSubscription(subscriber string) *Subscription {
	return &Subscription{
		id:         xid.New().String(),
		subscriber: subscriber,
		events:     make(chan RoomEvent, eventBufferSize),
	}
}

// ID returns the ID of this subscription.
func (s *Subscription) ID() string {
	return s.id
}

// Subscriber returns the connection ID that owns this subscription.
func (s *Subscription) Subscriber() string {
	return s.subscriber
}

// Events returns the event channel of this subscription. The channel is
// closed when the subscription is closed.
func (s *Subscription) Events() <-chan RoomEvent {
	return s.events
}

// Close closes this subscription.
func (s *Subscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.events)
	}
}

// Publish delivers the event to this subscription. It reports false if the
// subscription is closed or the subscriber is too slow to keep up.
func (s *Subscription) Publish(event RoomEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	select {
	case s.events <- event:
		return true
	case <-gotime.After(publishTimeout):
		return false
	}
}

// room is the set of subscriptions of one note.
type room struct {
	noteKey string
	subs    *cmap.Map[*Subscription]
}

func newRoom(noteKey string) *room {
	return &room{
		noteKey: noteKey,
		subs:    cmap.New[*Subscription](),
	}
}

func (r *room) publish(ctx context.Context, event RoomEvent) {
	for _, sub := range r.subs.Values() {
		if sub.Subscriber() == event.Publisher {
			continue
		}
		if !sub.Publish(event) {
			logging.From(ctx).Warnf(
				"room %s: dropped %s event for slow subscriber %s",
				r.noteKey, event.Message.Type, sub.Subscriber(),
			)
		}
	}
}

// PubSub routes room events between the connections of a single server
// process.
type PubSub struct {
	rooms *cmap.Map[*room]
}

// NewPubSub creates an instance of PubSub.
func NewPubSub() *PubSub {
	return &PubSub{
		rooms: cmap.New[*room](),
	}
}

// Subscribe adds the given connection to the room of the note, creating the
// room on first join.
func (m *PubSub) Subscribe(
	ctx context.Context,
	subscriber string,
	noteKey string,
) (*Subscription, error) {
	if logging.Enabled(zap.DebugLevel) {
		logging.From(ctx).Debugf("Subscribe(%s,%s)", noteKey, subscriber)
	}

	r := m.rooms.Upsert(noteKey, func(r *room, exists bool) *room {
		if !exists {
			return newRoom(noteKey)
		}
		return r
	})

	sub := NewSubscription(subscriber)
	r.subs.Set(sub.ID(), sub)
	return sub, nil
}

// Unsubscribe removes the subscription from the room of the note. Empty
// rooms are reclaimed so membership entries never leak.
func (m *PubSub) Unsubscribe(
	ctx context.Context,
	noteKey string,
	sub *Subscription,
) {
	if logging.Enabled(zap.DebugLevel) {
		logging.From(ctx).Debugf("Unsubscribe(%s,%s)", noteKey, sub.Subscriber())
	}

	sub.Close()

	if r, ok := m.rooms.Get(noteKey); ok {
		r.subs.Delete(sub.ID(), func(_ *Subscription, exists bool) bool {
			return exists
		})

		m.rooms.Delete(noteKey, func(r *room, exists bool) bool {
			return exists && r.subs.Len() == 0
		})
	}
}

// Publish fans the event out to every member of the room except the
// publisher.
func (m *PubSub) Publish(ctx context.Context, event RoomEvent) {
	if r, ok := m.rooms.Get(event.Message.NoteID); ok {
		r.publish(ctx, event)
	}
}

// Rooms returns the number of rooms currently routed.
func (m *PubSub) Rooms() int {
	return m.rooms.Len()
}

// Members returns the number of connections in the room of the note.
func (m *PubSub) Members(noteKey string) int {
	r, ok := m.rooms.Get(noteKey)
	if !ok {
		return 0
	}
	return r.subs.Len()
}
