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

// Package awareness provides the ephemeral per-connection state shared with
// peers watching the same note: user identity and cursor position. Awareness
// is never persisted; entries of disconnected clients are removed as soon as
// the disconnect is observed.
package awareness

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/xid"

	"github.com/zync-dev/zync/api/types"
)

var (
	// ErrMalformedUpdate is returned when awareness update bytes cannot be
	// decoded.
	ErrMalformedUpdate = errors.New("malformed awareness update")
)

// UserInfo is the identity rendered next to a remote cursor.
type UserInfo struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// State is the awareness state of one connection.
type State struct {
	User   UserInfo `json:"user"`
	Cursor string   `json:"cursor,omitempty"`
}

// Event is published to listeners whenever entries change.
type Event struct {
	ClientIDs []string
	Origin    types.OriginTag
}

type entry struct {
	clock uint64
	state *State // nil marks a removed client
}

type wireEntry struct {
	ClientID string `json:"clientId"`
	Clock    uint64 `json:"clock"`
	State    *State `json:"state"`
}

// Awareness holds the awareness entries of every connection watching a note,
// including the local one. Per client, updates merge last-write-wins by a
// per-client clock; there are no cross-client ordering requirements.
type Awareness struct {
	clientID string

	mu        sync.Mutex
	entries   map[string]*entry
	listeners map[int]func(Event)
	nextID    int
}

// New creates a new Awareness with a fresh ephemeral client ID.
func New() *Awareness {
	a := &Awareness{
		clientID:  xid.New().String(),
		entries:   make(map[string]*entry),
		listeners: make(map[int]func(Event)),
	}
	a.entries[a.clientID] = &entry{}
	return a
}

// ClientID returns the ephemeral client ID of this connection. It is
// regenerated for every session.
func (a *Awareness) ClientID() string {
	return a.clientID
}

// SetLocalState replaces the local state and notifies listeners with a
// local origin so the transport broadcasts the change.
func (a *Awareness) SetLocalState(state State) {
	a.mu.Lock()
	local := a.entries[a.clientID]
	local.clock++
	local.state = &state
	listeners := a.listenersLocked()
	a.mu.Unlock()

	a.emit(listeners, Event{ClientIDs: []string{a.clientID}, Origin: types.OriginLocal})
}

// SetLocalCursor updates only the cursor of the local state.
func (a *Awareness) SetLocalCursor(blockID string) {
	a.mu.Lock()
	local := a.entries[a.clientID]
	state := State{}
	if local.state != nil {
		state = *local.state
	}
	state.Cursor = blockID
	local.clock++
	local.state = &state
	listeners := a.listenersLocked()
	a.mu.Unlock()

	a.emit(listeners, Event{ClientIDs: []string{a.clientID}, Origin: types.OriginLocal})
}

// LocalState returns a copy of the local state, or nil if unset.
func (a *Awareness) LocalState() *State {
	a.mu.Lock()
	defer a.mu.Unlock()

	local := a.entries[a.clientID]
	if local.state == nil {
		return nil
	}
	state := *local.state
	return &state
}

// States returns a copy of all live states keyed by client ID.
func (a *Awareness) States() map[string]State {
	a.mu.Lock()
	defer a.mu.Unlock()

	states := make(map[string]State)
	for id, e := range a.entries {
		if e.state != nil {
			states[id] = *e.state
		}
	}
	return states
}

// EncodeUpdate encodes the entries of the given client IDs. Without
// arguments it encodes every entry, which is used for the initial exchange
// after a (re)connect.
func (a *Awareness) EncodeUpdate(clientIDs ...string) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(clientIDs) == 0 {
		for id := range a.entries {
			clientIDs = append(clientIDs, id)
		}
	}

	var entries []wireEntry
	for _, id := range clientIDs {
		e, ok := a.entries[id]
		if !ok {
			continue
		}
		entries = append(entries, wireEntry{ClientID: id, Clock: e.clock, State: e.state})
	}

	raw, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("marshal awareness update: %w", err)
	}
	return raw, nil
}

// ApplyUpdate merges encoded entries. An entry wins over the stored one only
// if its clock is newer, so replayed and reordered updates are absorbed.
func (a *Awareness) ApplyUpdate(raw []byte, origin types.OriginTag) error {
	var entries []wireEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return fmt.Errorf("unmarshal awareness update: %w", ErrMalformedUpdate)
	}

	a.mu.Lock()
	var changed []string
	for _, w := range entries {
		if w.ClientID == "" || w.ClientID == a.clientID {
			// The local entry is owned by this session; remote echoes of it
			// are ignored.
			continue
		}

		stored, ok := a.entries[w.ClientID]
		if !ok {
			a.entries[w.ClientID] = &entry{clock: w.Clock, state: w.State}
			changed = append(changed, w.ClientID)
			continue
		}
		if w.Clock <= stored.clock {
			continue
		}

		stored.clock = w.Clock
		stored.state = w.State
		changed = append(changed, w.ClientID)
	}
	listeners := a.listenersLocked()
	a.mu.Unlock()

	if len(changed) > 0 {
		a.emit(listeners, Event{ClientIDs: changed, Origin: origin})
	}
	return nil
}

// RemoveStates clears the entries of the given client IDs, typically after a
// disconnect notification.
func (a *Awareness) RemoveStates(clientIDs []string, origin types.OriginTag) {
	a.mu.Lock()
	var changed []string
	for _, id := range clientIDs {
		e, ok := a.entries[id]
		if !ok || e.state == nil {
			continue
		}
		e.clock++
		e.state = nil
		changed = append(changed, id)
	}
	listeners := a.listenersLocked()
	a.mu.Unlock()

	if len(changed) > 0 {
		a.emit(listeners, Event{ClientIDs: changed, Origin: origin})
	}
}

// Listen registers a listener for awareness events. The returned function
// removes the listener.
func (a *Awareness) Listen(listener func(Event)) func() {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.nextID
	a.nextID++
	a.listeners[id] = listener

	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.listeners, id)
	}
}

func (a *Awareness) listenersLocked() []func(Event) {
	listeners := make([]func(Event), 0, len(a.listeners))
	for _, l := range a.listeners {
		listeners = append(listeners, l)
	}
	return listeners
}

func (a *Awareness) emit(listeners []func(Event), event Event) {
	for _, l := range listeners {
		l(event)
	}
}
