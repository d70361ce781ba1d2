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

// Package client provides the note sync client: the provider that keeps a
// Document and its Awareness in sync with the relay server, and the binding
// that attaches an editor to them.
package client

import (
	"context"
	"errors"
	"strings"
	gosync "sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zync-dev/zync/api/types"
	"github.com/zync-dev/zync/pkg/awareness"
	"github.com/zync-dev/zync/pkg/document"
	"github.com/zync-dev/zync/pkg/presence"
	"github.com/zync-dev/zync/server/logging"
)

// dialTimeout bounds a single connection attempt.
const dialTimeout = 10 * time.Second

var (
	// ErrProviderDestroyed is returned when a destroyed provider is used.
	ErrProviderDestroyed = errors.New("provider destroyed")

	// ErrNotConnected is returned when a message cannot be sent because the
	// provider has no live connection.
	ErrNotConnected = errors.New("not connected")
)

// Status represents the connection status of a provider.
type Status int

const (
	// StatusDisconnected means the provider has no connection and is not
	// trying to get one.
	StatusDisconnected Status = iota

	// StatusConnecting means the provider is dialing or retrying.
	StatusConnecting

	// StatusConnected means the provider has a live connection and has joined
	// its note.
	StatusConnected

	// StatusDestroyed means the provider was torn down and cannot be reused.
	StatusDestroyed
)

// String returns the string representation of this status.
func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusDestroyed:
		return "destroyed"
	}
	return "unknown"
}

// Provider connects one Document and its Awareness to the relay server. It
// forwards local deltas out, applies remote deltas in, and maintains the
// presence roster of the note. A destroyed provider cannot be reused; open
// the note again with a fresh one.
type Provider struct {
	addr    string
	options Options
	logger  logging.Logger

	doc       *document.Document
	awareness *awareness.Awareness
	roster    *presence.Roster

	mu     gosync.Mutex
	status Status
	conn   *websocket.Conn

	// writeMu serializes socket writes; the socket allows one writer.
	writeMu gosync.Mutex

	closed      chan struct{}
	destroyOnce gosync.Once
	wg          gosync.WaitGroup

	unsubDoc       func()
	unsubAwareness func()
}

// NewProvider creates a provider for the given document. The relay address is
// a host:port or a http(s)/ws(s) base URL; the provider dials its websocket
// endpoint.
func NewProvider(addr string, doc *document.Document, opts ...Option) *Provider {
	options := buildOptions(opts...)

	p := &Provider{
		addr:      addr,
		options:   options,
		logger:    logging.New("provider").With("note", doc.Key()),
		doc:       doc,
		awareness: awareness.New(),
		roster:    presence.NewRoster(options.UserID, options.StaleThreshold),
		status:    StatusDisconnected,
		closed:    make(chan struct{}),
	}

	p.awareness.SetLocalState(awareness.State{
		User: awareness.UserInfo{Name: options.UserName, Color: options.UserColor},
	})

	// Local deltas ride out as soon as they are produced. Remote-origin
	// events are already shared and must not loop back to the wire.
	p.unsubDoc = doc.SubscribeUpdates(func(event document.UpdateEvent) {
		if event.Origin != types.OriginLocal {
			return
		}
		p.sendUpdate(types.NoteUpdateEvent, event.Delta)
	})
	p.unsubAwareness = p.awareness.Listen(func(event awareness.Event) {
		if event.Origin != types.OriginLocal {
			return
		}
		raw, err := p.awareness.EncodeUpdate(event.ClientIDs...)
		if err != nil {
			p.logger.Warnf("encode awareness update: %v", err)
			return
		}
		p.sendUpdate(types.AwarenessUpdateEvent, raw)
	})

	return p
}

// Document returns the document this provider syncs.
func (p *Provider) Document() *document.Document {
	return p.doc
}

// Awareness returns the awareness of this provider's session.
func (p *Provider) Awareness() *awareness.Awareness {
	return p.awareness
}

// Status returns the current connection status.
func (p *Provider) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Connect dials the relay and joins the note's room. Once connected, a lost
// connection is retried up to MaxReconnectAttempts times.
func (p *Provider) Connect(ctx context.Context) error {
	p.mu.Lock()
	switch p.status {
	case StatusDestroyed:
		p.mu.Unlock()
		return ErrProviderDestroyed
	case StatusConnecting, StatusConnected:
		p.mu.Unlock()
		return nil
	}
	p.status = StatusConnecting
	p.mu.Unlock()

	conn, err := p.dial(ctx)
	if err != nil {
		p.setStatus(StatusDisconnected)
		return err
	}
	return p.attach(conn)
}

// UpdateCursorPosition shares which block the user is editing. It is a no-op
// while disconnected; the position travels with the next join.
func (p *Provider) UpdateCursorPosition(blockID string) {
	p.awareness.SetLocalCursor(blockID)

	err := p.send(types.Message{
		Type:    types.CursorMoveEvent,
		NoteID:  p.doc.Key(),
		UserID:  p.options.UserID,
		BlockID: blockID,
	})
	if err != nil && !errors.Is(err, ErrNotConnected) {
		p.logger.Warnf("send cursor move: %v", err)
	}
}

// ActiveUsers returns the other users of the note, ordered by user ID.
func (p *Provider) ActiveUsers() []types.ActiveUser {
	return p.roster.Active(time.Now())
}

// UserForBlock returns the active user editing the given block, if any.
func (p *Provider) UserForBlock(blockID string) (types.ActiveUser, bool) {
	user, ok := p.roster.ByBlock(time.Now())[blockID]
	return user, ok
}

// Destroy leaves the note, closes the connection and releases every
// subscription. It is idempotent.
func (p *Provider) Destroy() {
	p.destroyOnce.Do(func() {
		err := p.send(types.Message{
			Type:   types.LeaveNoteEvent,
			NoteID: p.doc.Key(),
			UserID: p.options.UserID,
		})
		if err != nil && !errors.Is(err, ErrNotConnected) {
			p.logger.Debugf("send leave: %v", err)
		}

		p.mu.Lock()
		conn := p.conn
		p.conn = nil
		p.status = StatusDestroyed
		p.mu.Unlock()

		close(p.closed)
		p.unsubDoc()
		p.unsubAwareness()

		if conn != nil {
			_ = conn.Close()
		}
		p.wg.Wait()
		p.roster.Clear()
	})
}

func (p *Provider) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, socketURL(p.addr), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// attach installs a freshly dialed connection, performs the join handshake
// and starts the read loop.
func (p *Provider) attach(conn *websocket.Conn) error {
	p.mu.Lock()
	if p.status == StatusDestroyed {
		p.mu.Unlock()
		_ = conn.Close()
		return ErrProviderDestroyed
	}
	p.conn = conn
	p.status = StatusConnected
	p.mu.Unlock()

	if err := p.join(); err != nil {
		p.mu.Lock()
		if p.conn == conn {
			p.conn = nil
			p.status = StatusDisconnected
		}
		p.mu.Unlock()
		_ = conn.Close()
		return err
	}

	p.wg.Add(1)
	go p.readLoop(conn)
	return nil
}

// join announces the user to the room and broadcasts the full local state so
// peers catch up on anything produced while this session was offline.
func (p *Provider) join() error {
	err := p.send(types.Message{
		Type:       types.JoinNoteEvent,
		NoteID:     p.doc.Key(),
		UserID:     p.options.UserID,
		UserName:   p.options.UserName,
		UserAvatar: p.options.UserAvatar,
		UserColor:  p.options.UserColor,
	})
	if err != nil {
		return err
	}
	return p.broadcastState()
}

// broadcastState shares the full document and awareness state with the room.
// Merges are idempotent, so a redundant broadcast costs bytes but never
// correctness.
func (p *Provider) broadcastState() error {
	state, err := p.doc.EncodeStateAsUpdate()
	if err != nil {
		return err
	}
	if state != nil {
		if err := p.send(types.Message{
			Type:   types.NoteUpdateEvent,
			NoteID: p.doc.Key(),
			Update: state,
		}); err != nil {
			return err
		}
	}

	raw, err := p.awareness.EncodeUpdate()
	if err != nil {
		return err
	}
	if raw != nil {
		if err := p.send(types.Message{
			Type:   types.AwarenessUpdateEvent,
			NoteID: p.doc.Key(),
			Update: raw,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (p *Provider) readLoop(conn *websocket.Conn) {
	defer p.wg.Done()

	for {
		msg := types.Message{}
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		p.dispatch(msg)
	}

	p.mu.Lock()
	if p.status == StatusDestroyed || p.conn != conn {
		p.mu.Unlock()
		return
	}
	p.conn = nil
	p.status = StatusConnecting
	p.mu.Unlock()

	p.wg.Add(1)
	go p.reconnect()
}

func (p *Provider) dispatch(msg types.Message) {
	switch msg.Type {
	case types.NoteUpdateEvent:
		if err := p.doc.ApplyUpdate(msg.Update, types.OriginRemote); err != nil {
			p.logger.Warnf("apply note update: %v", err)
		}
	case types.AwarenessUpdateEvent:
		if err := p.awareness.ApplyUpdate(msg.Update, types.OriginRemote); err != nil {
			p.logger.Warnf("apply awareness update: %v", err)
		}
	case types.PresenceUpdateEvent:
		now := time.Now()
		grew := p.rosterGrew(msg.Users, now)
		p.roster.ApplySnapshot(msg.Users, now)
		if grew {
			// A newcomer has no state yet; every sitting member offers its
			// own, and the idempotent merge collapses the duplicates.
			if err := p.broadcastState(); err != nil && !errors.Is(err, ErrNotConnected) {
				p.logger.Warnf("broadcast state: %v", err)
			}
		}
	case types.CursorUpdateEvent:
		p.roster.ApplyCursor(msg.UserID, msg.BlockID, time.Now())
	case types.UserLeftEvent:
		p.roster.ApplyLeave(msg.UserID)
	default:
		p.logger.Debugf("ignore inbound event %s", msg.Type)
	}
}

// rosterGrew reports whether the snapshot introduces a user this session has
// not seen in the roster yet.
func (p *Provider) rosterGrew(users []types.ActiveUser, now time.Time) bool {
	known := make(map[string]struct{})
	for _, user := range p.roster.Active(now) {
		known[user.ID] = struct{}{}
	}

	for _, user := range users {
		if user.ID == p.options.UserID || user.Stale(now, p.options.StaleThreshold) {
			continue
		}
		if _, ok := known[user.ID]; !ok {
			return true
		}
	}
	return false
}

func (p *Provider) reconnect() {
	defer p.wg.Done()

	for attempt := 1; attempt <= p.options.MaxReconnectAttempts; attempt++ {
		select {
		case <-p.closed:
			return
		case <-time.After(p.options.ReconnectInterval):
		}

		ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		conn, err := p.dial(ctx)
		cancel()
		if err != nil {
			p.logger.Warnf(
				"reconnect %d/%d: %v", attempt, p.options.MaxReconnectAttempts, err,
			)
			continue
		}

		if err := p.attach(conn); err != nil {
			if errors.Is(err, ErrProviderDestroyed) {
				return
			}
			p.logger.Warnf("rejoin: %v", err)
			continue
		}
		return
	}

	p.logger.Warnf("giving up after %d attempts", p.options.MaxReconnectAttempts)
	p.setStatus(StatusDisconnected)
	p.roster.Clear()
}

func (p *Provider) sendUpdate(eventType types.EventType, update []byte) {
	err := p.send(types.Message{
		Type:   eventType,
		NoteID: p.doc.Key(),
		Update: update,
	})
	if err != nil && !errors.Is(err, ErrNotConnected) {
		p.logger.Warnf("send %s: %v", eventType, err)
	}
}

func (p *Provider) send(msg types.Message) error {
	p.mu.Lock()
	conn := p.conn
	connected := p.status == StatusConnected
	p.mu.Unlock()

	if !connected || conn == nil {
		return ErrNotConnected
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return conn.WriteJSON(msg)
}

func (p *Provider) setStatus(status Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status == StatusDestroyed {
		return
	}
	p.status = status
}

// socketURL derives the websocket endpoint from a relay address, which may be
// a bare host:port or a http(s) base URL such as a test server's.
func socketURL(addr string) string {
	switch {
	case strings.HasPrefix(addr, "ws://"), strings.HasPrefix(addr, "wss://"):
		return strings.TrimSuffix(addr, "/") + "/ws"
	case strings.HasPrefix(addr, "http://"):
		return "ws://" + strings.TrimPrefix(addr, "http://") + "/ws"
	case strings.HasPrefix(addr, "https://"):
		return "wss://" + strings.TrimPrefix(addr, "https://") + "/ws"
	}
	return "ws://" + addr + "/ws"
}
