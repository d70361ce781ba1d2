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

package relay

import (
	"context"
	gosync "sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/xid"

	"github.com/zync-dev/zync/api/types"
	"github.com/zync-dev/zync/pkg/presence"
	"github.com/zync-dev/zync/server/backend"
	"github.com/zync-dev/zync/server/backend/sync"
	"github.com/zync-dev/zync/server/logging"
)

const (
	// writeWait is the deadline of a single outbound write.
	writeWait = 10 * time.Second

	// sendBufferSize is the capacity of the outbound message queue.
	sendBufferSize = 256
)

// connection is one websocket connection of the relay. A connection serves
// at most one note room for its lifetime.
type connection struct {
	id           string
	be           *backend.Backend
	sock         *websocket.Conn
	conf         *Config
	pingInterval time.Duration
	logger       logging.Logger

	sendCh    chan types.Message
	done      chan struct{}
	closeOnce gosync.Once

	mu      gosync.Mutex
	noteKey string
	userID  string
	sub     *sync.Subscription
}

func newConnection(
	be *backend.Backend,
	sock *websocket.Conn,
	conf *Config,
	pingInterval time.Duration,
) *connection {
	id := xid.New().String()
	return &connection{
		id:           id,
		be:           be,
		sock:         sock,
		conf:         conf,
		pingInterval: pingInterval,
		logger:       logging.New("conn").With("conn_id", id),
		sendCh:       make(chan types.Message, sendBufferSize),
		done:         make(chan struct{}),
	}
}

// run pumps the connection until the peer goes away, then releases the room
// membership and presence entry.
func (c *connection) run(ctx context.Context) {
	go c.writePump()
	c.readPump(ctx)

	c.leave(ctx)
	c.close()
}

func (c *connection) readPump(ctx context.Context) {
	if c.conf.MaxMessageBytes > 0 {
		c.sock.SetReadLimit(c.conf.MaxMessageBytes)
	}

	pongWait := 2 * c.pingInterval
	_ = c.sock.SetReadDeadline(time.Now().Add(pongWait))
	c.sock.SetPongHandler(func(string) error {
		return c.sock.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msg := types.Message{}
		if err := c.sock.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
			) {
				c.logger.Warnf("read: %v", err)
			}
			return
		}

		if err := msg.Validate(); err != nil {
			// A malformed message is the peer's problem, not the room's.
			c.logger.Warnf("drop message: %v", err)
			continue
		}

		c.dispatch(ctx, msg)
	}
}

func (c *connection) dispatch(ctx context.Context, msg types.Message) {
	switch msg.Type {
	case types.JoinNoteEvent:
		c.handleJoin(ctx, msg)
	case types.NoteUpdateEvent, types.AwarenessUpdateEvent:
		c.handleUpdate(ctx, msg)
	case types.CursorMoveEvent:
		c.handleCursor(ctx, msg)
	case types.LeaveNoteEvent:
		c.leave(ctx)
	default:
		c.logger.Warnf("unexpected inbound event %s", msg.Type)
	}
}

// handleJoin adds the connection to the note's room and registers the
// user's presence. A repeated join of the same note refreshes presence
// without duplicating the membership.
func (c *connection) handleJoin(ctx context.Context, msg types.Message) {
	if err := validateNoteKey(msg.NoteID); err != nil {
		c.logger.Warnf("join %s: %v", msg.NoteID, err)
		return
	}

	c.mu.Lock()
	if c.sub != nil {
		joined := c.noteKey
		c.mu.Unlock()
		if joined != msg.NoteID {
			c.logger.Warnf(
				"join %s: connection already serves %s", msg.NoteID, joined,
			)
			return
		}
		// Duplicate join: refresh presence and rebroadcast the roster.
		c.registerPresence(ctx, msg)
		return
	}
	c.mu.Unlock()

	sub, err := c.be.Coordinator.Subscribe(ctx, c.id, msg.NoteID)
	if err != nil {
		c.logger.Errorf("subscribe %s: %v", msg.NoteID, err)
		return
	}

	c.mu.Lock()
	c.sub = sub
	c.noteKey = msg.NoteID
	c.userID = msg.UserID
	c.mu.Unlock()

	go c.forwardEvents(sub)

	c.registerPresence(ctx, msg)
	c.be.Metrics.SetRooms(c.be.Coordinator.Rooms())
}

func (c *connection) registerPresence(ctx context.Context, msg types.Message) {
	color := msg.UserColor
	if color == "" {
		color = presence.ColorFor(msg.UserID)
	}

	snapshot := c.be.Presence.Join(msg.NoteID, c.id, types.ActiveUser{
		ID:        msg.UserID,
		Name:      msg.UserName,
		AvatarURL: msg.UserAvatar,
		Color:     color,
	}, time.Now())

	c.be.Metrics.ObservePresenceEvent(string(types.JoinNoteEvent))
	c.be.Coordinator.Publish(ctx, sync.RoomEvent{
		Message: types.Message{
			Type:   types.PresenceUpdateEvent,
			NoteID: msg.NoteID,
			Users:  snapshot,
		},
	})
}

// handleUpdate relays a document or awareness delta to the other room
// members. The payload is opaque to the relay.
func (c *connection) handleUpdate(ctx context.Context, msg types.Message) {
	c.mu.Lock()
	joined := c.sub != nil && c.noteKey == msg.NoteID
	userID := c.userID
	c.mu.Unlock()

	if !joined {
		c.logger.Warnf("drop %s for %s: not joined", msg.Type, msg.NoteID)
		return
	}

	c.be.Coordinator.Publish(ctx, sync.RoomEvent{
		Publisher: c.id,
		Message:   msg,
	})
	c.be.Presence.Refresh(msg.NoteID, userID, time.Now())
	c.be.Metrics.ObserveRelayedEvent(string(msg.Type), len(msg.Update))
}

func (c *connection) handleCursor(ctx context.Context, msg types.Message) {
	c.mu.Lock()
	joined := c.sub != nil && c.noteKey == msg.NoteID
	c.mu.Unlock()

	if !joined {
		return
	}

	if !c.be.Presence.Cursor(msg.NoteID, msg.UserID, msg.BlockID, time.Now()) {
		return
	}

	c.be.Metrics.ObservePresenceEvent(string(types.CursorMoveEvent))
	c.be.Coordinator.Publish(ctx, sync.RoomEvent{
		Publisher: c.id,
		Message: types.Message{
			Type:    types.CursorUpdateEvent,
			NoteID:  msg.NoteID,
			UserID:  msg.UserID,
			BlockID: msg.BlockID,
		},
	})
}

// leave releases the room membership and the presence entry of this
// connection. It is idempotent: explicit leave_note and the disconnect path
// both land here.
func (c *connection) leave(ctx context.Context) {
	c.mu.Lock()
	sub := c.sub
	noteKey := c.noteKey
	c.sub = nil
	c.mu.Unlock()

	if sub == nil {
		return
	}

	if err := c.be.Coordinator.Unsubscribe(ctx, noteKey, sub); err != nil {
		c.logger.Warnf("unsubscribe %s: %v", noteKey, err)
	}

	userID, left, snapshot := c.be.Presence.Leave(noteKey, c.id, time.Now())
	c.be.Metrics.ObservePresenceEvent(string(types.LeaveNoteEvent))

	if left {
		c.be.Coordinator.Publish(ctx, sync.RoomEvent{
			Message: types.Message{
				Type:   types.UserLeftEvent,
				NoteID: noteKey,
				UserID: userID,
			},
		})
	}
	c.be.Coordinator.Publish(ctx, sync.RoomEvent{
		Message: types.Message{
			Type:   types.PresenceUpdateEvent,
			NoteID: noteKey,
			Users:  snapshot,
		},
	})

	c.be.Metrics.SetRooms(c.be.Coordinator.Rooms())
}

// forwardEvents moves room events of one subscription into the outbound
// queue. It returns when the subscription is closed.
func (c *connection) forwardEvents(sub *sync.Subscription) {
	for event := range sub.Events() {
		select {
		case c.sendCh <- event.Message:
		case <-c.done:
			return
		default:
			// The peer is not draining its socket; dropping keeps the room
			// healthy and the client recovers state on reconnect.
			c.logger.Warnf("drop %s event: send queue full", event.Message.Type)
		}
	}
}

func (c *connection) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.sendCh:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteJSON(msg); err != nil {
				c.logger.Debugf("write: %v", err)
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *connection) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if err := c.sock.Close(); err != nil {
			c.logger.Debugf("close: %v", err)
		}
	})
}
