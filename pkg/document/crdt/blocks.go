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

// Package crdt provides the conflict-free replicated data type of a note
// body: an RGA-ordered sequence of blocks with last-writer-wins content.
package crdt

import (
	"errors"
	"fmt"

	"github.com/zync-dev/zync/pkg/document/time"
)

var (
	// ErrBlockNotFound is returned when an operation references a block that
	// does not exist in the sequence.
	ErrBlockNotFound = errors.New("block not found")

	// ErrDuplicatedID is returned when an insertion reuses the ID of an
	// existing block. Callers treat it as a no-op signal for idempotence.
	ErrDuplicatedID = errors.New("duplicated block id")
)

// Block is an element of a BlockSequence. A removed block remains in the
// sequence as a tombstone so that concurrent insertions referencing it can
// still be placed.
type Block struct {
	id        time.Ticket
	blockType string
	text      string
	attrs     map[string]string
	updatedAt time.Ticket
	removedAt time.Ticket

	prev *Block
	next *Block
}

// ID returns the ID of this block.
func (b *Block) ID() time.Ticket {
	return b.id
}

// Type returns the block type, such as "paragraph" or "heading".
func (b *Block) Type() string {
	return b.blockType
}

// Text returns the text content of this block.
func (b *Block) Text() string {
	return b.text
}

// Attributes returns a copy of the inline attributes of this block.
func (b *Block) Attributes() map[string]string {
	if b.attrs == nil {
		return nil
	}

	attrs := make(map[string]string, len(b.attrs))
	for k, v := range b.attrs {
		attrs[k] = v
	}
	return attrs
}

// UpdatedAt returns the ticket of the last write applied to this block.
func (b *Block) UpdatedAt() time.Ticket {
	return b.updatedAt
}

// RemovedAt returns the ticket of the removal, or the zero ticket if the
// block is live.
func (b *Block) RemovedAt() time.Ticket {
	return b.removedAt
}

// Removed returns whether this block is a tombstone.
func (b *Block) Removed() bool {
	return !b.removedAt.IsZero()
}

// BlockSequence is a replicated sequence of blocks. Insertions are placed
// relative to their left neighbor at the time of writing (RGA), content
// writes merge last-writer-wins by ticket, and removals tombstone the block.
// Applying the same operation twice is a no-op, and applying a set of
// operations in any delivery order converges to the same sequence.
type BlockSequence struct {
	head *Block
	byID map[time.Ticket]*Block
	size int
}

// NewBlockSequence creates a new BlockSequence with a head sentinel.
func NewBlockSequence() *BlockSequence {
	head := &Block{id: time.InitialTicket}
	return &BlockSequence{
		head: head,
		byID: map[time.Ticket]*Block{time.InitialTicket: head},
	}
}

// InsertAfter places a new block after the block with prevID. Concurrent
// insertions after the same neighbor are ordered by descending ticket, which
// every replica resolves identically. Re-inserting an existing ID returns
// ErrDuplicatedID and leaves the sequence unchanged.
func (s *BlockSequence) InsertAfter(
	prevID, id time.Ticket,
	blockType, text string,
	attrs map[string]string,
) error {
	if _, ok := s.byID[id]; ok {
		return fmt.Errorf("%s: %w", id, ErrDuplicatedID)
	}

	prev, ok := s.byID[prevID]
	if !ok {
		return fmt.Errorf("previous block %s: %w", prevID, ErrBlockNotFound)
	}

	// RGA placement: skip over siblings inserted concurrently with a
	// greater ticket so that every replica picks the same position.
	pos := prev
	for pos.next != nil && pos.next.id.After(id) {
		pos = pos.next
	}

	block := &Block{
		id:        id,
		blockType: blockType,
		text:      text,
		attrs:     attrs,
		updatedAt: id,
		prev:      pos,
		next:      pos.next,
	}
	if pos.next != nil {
		pos.next.prev = block
	}
	pos.next = block

	s.byID[id] = block
	s.size++
	return nil
}

// Edit overwrites the content of the block with the given ID if executedAt
// is newer than the last write. Older or duplicate writes are absorbed
// silently (last-writer-wins).
func (s *BlockSequence) Edit(
	target, executedAt time.Ticket,
	blockType, text string,
	attrs map[string]string,
) error {
	block, ok := s.byID[target]
	if !ok || target.IsZero() {
		return fmt.Errorf("edit target %s: %w", target, ErrBlockNotFound)
	}

	if !executedAt.After(block.updatedAt) {
		return nil
	}

	block.blockType = blockType
	block.text = text
	block.attrs = attrs
	block.updatedAt = executedAt
	return nil
}

// Delete tombstones the block with the given ID. Deleting a tombstone again
// is a no-op beyond keeping the latest removal ticket.
func (s *BlockSequence) Delete(target, executedAt time.Ticket) error {
	block, ok := s.byID[target]
	if !ok || target.IsZero() {
		return fmt.Errorf("delete target %s: %w", target, ErrBlockNotFound)
	}

	if block.removedAt.IsZero() {
		block.removedAt = executedAt
		s.size--
	} else if executedAt.After(block.removedAt) {
		block.removedAt = executedAt
	}
	return nil
}

// Get returns the block with the given ID, including tombstones.
func (s *BlockSequence) Get(id time.Ticket) (*Block, bool) {
	if id.IsZero() {
		return nil, false
	}

	block, ok := s.byID[id]
	return block, ok
}

// Blocks returns the live blocks in document order.
func (s *BlockSequence) Blocks() []*Block {
	var blocks []*Block
	for block := s.head.next; block != nil; block = block.next {
		if !block.Removed() {
			blocks = append(blocks, block)
		}
	}
	return blocks
}

// All returns every block including tombstones, in document order. It is
// used to encode the full state of the sequence.
func (s *BlockSequence) All() []*Block {
	var blocks []*Block
	for block := s.head.next; block != nil; block = block.next {
		blocks = append(blocks, block)
	}
	return blocks
}

// Len returns the number of live blocks.
func (s *BlockSequence) Len() int {
	return s.size
}
