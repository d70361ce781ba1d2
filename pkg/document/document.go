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

// Package document provides the client replica of a note. Each open editor
// owns exactly one Document; concurrent edits from other replicas are merged
// through deltas that are commutative and idempotent.
package document

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/xid"

	"github.com/zync-dev/zync/api/types"
	"github.com/zync-dev/zync/pkg/document/crdt"
	"github.com/zync-dev/zync/pkg/document/time"
)

// UpdateEvent is published to subscribers whenever a delta is applied to the
// replica. Origin tells subscribers whether the delta was produced by this
// session or received from a remote peer, so the transport can forward local
// updates without looping remote ones back out.
type UpdateEvent struct {
	Delta  []byte
	Origin types.OriginTag
}

// BlockSnapshot is an immutable view of a live block, used by editor
// bindings to render the document.
type BlockSnapshot struct {
	ID         time.Ticket       `json:"id"`
	Type       string            `json:"type"`
	Text       string            `json:"text"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Document is the replica of a single note. All methods are safe for
// concurrent use; subscribers are invoked outside the internal lock.
type Document struct {
	key     string
	actorID string
	lamport uint64
	blocks  *crdt.BlockSequence

	// pending holds remote operations whose causal predecessor has not
	// arrived yet. They are replayed after every successful apply.
	pending []Operation

	mu        sync.Mutex
	subs      map[int]func(UpdateEvent)
	nextSubID int
}

// New creates a new Document replica of the note with the given key.
func New(key string) *Document {
	return &Document{
		key:     key,
		actorID: xid.New().String(),
		blocks:  crdt.NewBlockSequence(),
		subs:    make(map[int]func(UpdateEvent)),
	}
}

// Key returns the key of the note this replica belongs to.
func (d *Document) Key() string {
	return d.key
}

// ActorID returns the actor ID of this replica.
func (d *Document) ActorID() string {
	return d.actorID
}

// SetActor overrides the actor ID. It must be called before the first local
// edit.
func (d *Document) SetActor(actorID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.actorID = actorID
}

// InsertBlockAfter creates a new block after prevID. The zero ticket inserts
// at the front of the note. It returns the ID of the new block.
func (d *Document) InsertBlockAfter(
	prevID time.Ticket,
	blockType, text string,
	attrs map[string]string,
) (time.Ticket, error) {
	d.mu.Lock()

	op := Operation{
		Type:       OpInsert,
		ExecutedAt: d.nextTicket(),
		PrevID:     prevID,
		BlockType:  blockType,
		Text:       text,
		Attributes: attrs,
	}
	if err := d.applyOperation(op); err != nil {
		d.mu.Unlock()
		return time.Ticket{}, err
	}

	raw, subs, err := d.sealLocked(op)
	d.mu.Unlock()
	if err != nil {
		return time.Ticket{}, err
	}

	d.notify(subs, UpdateEvent{Delta: raw, Origin: types.OriginLocal})
	return op.ExecutedAt, nil
}

// EditBlock overwrites the content of the block with the given ID.
func (d *Document) EditBlock(
	target time.Ticket,
	blockType, text string,
	attrs map[string]string,
) error {
	d.mu.Lock()

	op := Operation{
		Type:       OpEdit,
		ExecutedAt: d.nextTicket(),
		Target:     target,
		BlockType:  blockType,
		Text:       text,
		Attributes: attrs,
	}
	if err := d.applyOperation(op); err != nil {
		d.mu.Unlock()
		return err
	}

	raw, subs, err := d.sealLocked(op)
	d.mu.Unlock()
	if err != nil {
		return err
	}

	d.notify(subs, UpdateEvent{Delta: raw, Origin: types.OriginLocal})
	return nil
}

// DeleteBlock removes the block with the given ID.
func (d *Document) DeleteBlock(target time.Ticket) error {
	d.mu.Lock()

	op := Operation{
		Type:       OpDelete,
		ExecutedAt: d.nextTicket(),
		Target:     target,
	}
	if err := d.applyOperation(op); err != nil {
		d.mu.Unlock()
		return err
	}

	raw, subs, err := d.sealLocked(op)
	d.mu.Unlock()
	if err != nil {
		return err
	}

	d.notify(subs, UpdateEvent{Delta: raw, Origin: types.OriginLocal})
	return nil
}

// ApplyUpdate merges delta bytes into the replica. The merge is idempotent:
// operations already present are absorbed without effect. Malformed bytes
// are rejected before any mutation. An operation whose causal predecessor
// has not arrived yet is held back and replayed once the predecessor lands,
// so deltas converge regardless of delivery order.
func (d *Document) ApplyUpdate(raw []byte, origin types.OriginTag) error {
	delta, err := UnmarshalDelta(raw)
	if err != nil {
		return err
	}

	d.mu.Lock()

	var errs error
	applied := 0
	for _, op := range delta.Ops {
		d.syncLamport(op.ExecutedAt)

		if err := d.applyOperation(op); err != nil {
			if errors.Is(err, crdt.ErrDuplicatedID) {
				// Already applied; idempotent merge absorbs it.
				continue
			}
			if errors.Is(err, crdt.ErrBlockNotFound) {
				d.deferOperation(op)
				continue
			}
			errs = errors.Join(errs, err)
			continue
		}
		applied++
	}

	if applied > 0 {
		applied += d.flushPendingLocked()
	}

	subs := d.subscribersLocked()
	d.mu.Unlock()

	if applied > 0 {
		d.notify(subs, UpdateEvent{Delta: raw, Origin: origin})
	}
	return errs
}

// EncodeStateAsUpdate produces a delta capturing the full current state,
// including tombstones. Applying it to any replica, empty or not, converges
// that replica with this one.
func (d *Document) EncodeStateAsUpdate() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delta := &Delta{}
	prevID := time.InitialTicket
	for _, block := range d.blocks.All() {
		delta.Ops = append(delta.Ops, Operation{
			Type:       OpInsert,
			ExecutedAt: block.ID(),
			PrevID:     prevID,
			BlockType:  block.Type(),
			Text:       block.Text(),
			Attributes: block.Attributes(),
		})

		if block.UpdatedAt() != block.ID() {
			delta.Ops = append(delta.Ops, Operation{
				Type:       OpEdit,
				ExecutedAt: block.UpdatedAt(),
				Target:     block.ID(),
				BlockType:  block.Type(),
				Text:       block.Text(),
				Attributes: block.Attributes(),
			})
		}
		if block.Removed() {
			delta.Ops = append(delta.Ops, Operation{
				Type:       OpDelete,
				ExecutedAt: block.RemovedAt(),
				Target:     block.ID(),
			})
		}

		prevID = block.ID()
	}

	if len(delta.Ops) == 0 {
		return nil, nil
	}
	return delta.Marshal()
}

// SubscribeUpdates registers a handler for update events. The returned
// function removes the subscription.
func (d *Document) SubscribeUpdates(handler func(UpdateEvent)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.nextSubID
	d.nextSubID++
	d.subs[id] = handler

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.subs, id)
	}
}

// Blocks returns the live blocks of the note in document order.
func (d *Document) Blocks() []BlockSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	var snapshots []BlockSnapshot
	for _, block := range d.blocks.Blocks() {
		snapshots = append(snapshots, BlockSnapshot{
			ID:         block.ID(),
			Type:       block.Type(),
			Text:       block.Text(),
			Attributes: block.Attributes(),
		})
	}
	return snapshots
}

// Len returns the number of live blocks.
func (d *Document) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.blocks.Len()
}

// Marshal returns the JSON encoding of the live blocks. Two replicas that
// have exchanged the same deltas marshal to identical strings.
func (d *Document) Marshal() string {
	raw, err := json.Marshal(d.Blocks())
	if err != nil {
		return ""
	}
	return string(raw)
}

// nextTicket issues the ticket of the next local operation. The caller must
// hold d.mu.
func (d *Document) nextTicket() time.Ticket {
	d.lamport++
	return time.New(d.lamport, d.actorID)
}

// syncLamport advances the local lamport clock past a remote ticket. The
// caller must hold d.mu.
func (d *Document) syncLamport(t time.Ticket) {
	if t.Lamport > d.lamport {
		d.lamport = t.Lamport
	}
}

// applyOperation applies a single operation to the block sequence. The
// caller must hold d.mu.
func (d *Document) applyOperation(op Operation) error {
	switch op.Type {
	case OpInsert:
		return d.blocks.InsertAfter(
			op.PrevID, op.ExecutedAt, op.BlockType, op.Text, op.Attributes,
		)
	case OpEdit:
		return d.blocks.Edit(
			op.Target, op.ExecutedAt, op.BlockType, op.Text, op.Attributes,
		)
	case OpDelete:
		return d.blocks.Delete(op.Target, op.ExecutedAt)
	}
	return ErrMalformedDelta
}

// deferOperation parks an operation until its causal predecessor arrives.
// The caller must hold d.mu.
func (d *Document) deferOperation(op Operation) {
	for _, parked := range d.pending {
		if parked.Type == op.Type && parked.ExecutedAt == op.ExecutedAt {
			return
		}
	}
	d.pending = append(d.pending, op)
}

// flushPendingLocked retries the parked operations until a pass makes no
// progress, so a late-arriving block integrates the operations that depend
// on it, transitively. It returns the number of operations applied. The
// caller must hold d.mu.
func (d *Document) flushPendingLocked() int {
	applied := 0
	for {
		progressed := false
		remaining := d.pending[:0]
		for _, op := range d.pending {
			if err := d.applyOperation(op); err != nil {
				if errors.Is(err, crdt.ErrDuplicatedID) {
					progressed = true
					continue
				}
				remaining = append(remaining, op)
				continue
			}
			applied++
			progressed = true
		}
		d.pending = remaining

		if !progressed || len(d.pending) == 0 {
			return applied
		}
	}
}

// sealLocked marshals a locally produced operation and snapshots the
// subscriber list. The caller must hold d.mu.
func (d *Document) sealLocked(op Operation) ([]byte, []func(UpdateEvent), error) {
	delta := &Delta{Ops: []Operation{op}}
	raw, err := delta.Marshal()
	if err != nil {
		return nil, nil, err
	}
	return raw, d.subscribersLocked(), nil
}

func (d *Document) subscribersLocked() []func(UpdateEvent) {
	subs := make([]func(UpdateEvent), 0, len(d.subs))
	for _, handler := range d.subs {
		subs = append(subs, handler)
	}
	return subs
}

func (d *Document) notify(subs []func(UpdateEvent), event UpdateEvent) {
	for _, handler := range subs {
		handler(event)
	}
}
