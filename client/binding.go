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

package client

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"

	"github.com/zync-dev/zync/pkg/document"
	"github.com/zync-dev/zync/pkg/document/time"
)

var (
	// ErrNoteAlreadyBound is returned when a note already has an open binding
	// in this process.
	ErrNoteAlreadyBound = errors.New("note already bound")
)

// Editor is the surface a binding renders into. Render is called with the
// current live blocks after every applied delta; implementations reconcile
// their own view against it.
type Editor interface {
	Render(blocks []document.BlockSnapshot)
}

// bindings guards the one-binding-per-note invariant. Two editors on the same
// note in one process would race each other's replica.
var (
	bindingsMu gosync.Mutex
	bindings   = make(map[string]*Binding)
)

// Binding wires an editor to a note: it owns the note's Document replica and
// the provider syncing it, and re-renders the editor after every change. Edits
// flow through the binding's mutation methods so local and remote changes
// take the same path into the replica.
type Binding struct {
	noteKey  string
	editor   Editor
	doc      *document.Document
	provider *Provider

	unsub     func()
	closeOnce gosync.Once
}

// Bind opens the note and attaches the editor to it. The connection to the
// relay is established before Bind returns; a note can be bound at most once
// per process until its binding is closed.
func Bind(
	ctx context.Context,
	addr, noteKey string,
	editor Editor,
	opts ...Option,
) (*Binding, error) {
	bindingsMu.Lock()
	if _, ok := bindings[noteKey]; ok {
		bindingsMu.Unlock()
		return nil, fmt.Errorf("%s: %w", noteKey, ErrNoteAlreadyBound)
	}

	doc := document.New(noteKey)
	b := &Binding{
		noteKey:  noteKey,
		editor:   editor,
		doc:      doc,
		provider: NewProvider(addr, doc, opts...),
	}
	bindings[noteKey] = b
	bindingsMu.Unlock()

	b.unsub = doc.SubscribeUpdates(func(document.UpdateEvent) {
		b.render()
	})

	if err := b.provider.Connect(ctx); err != nil {
		b.Close()
		return nil, err
	}

	b.render()
	return b, nil
}

// Document returns the note's replica.
func (b *Binding) Document() *document.Document {
	return b.doc
}

// Provider returns the provider syncing the note.
func (b *Binding) Provider() *Provider {
	return b.provider
}

// InsertBlockAfter inserts a block through the binding and returns its ID as
// a string, the form block IDs take at the editor surface.
func (b *Binding) InsertBlockAfter(
	prevID string,
	blockType, text string,
	attrs map[string]string,
) (string, error) {
	prev, err := parseBlockID(prevID)
	if err != nil {
		return "", err
	}

	id, err := b.doc.InsertBlockAfter(prev, blockType, text, attrs)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// EditBlock overwrites a block's content through the binding.
func (b *Binding) EditBlock(blockID, blockType, text string, attrs map[string]string) error {
	id, err := parseBlockID(blockID)
	if err != nil {
		return err
	}
	return b.doc.EditBlock(id, blockType, text, attrs)
}

// DeleteBlock removes a block through the binding.
func (b *Binding) DeleteBlock(blockID string) error {
	id, err := parseBlockID(blockID)
	if err != nil {
		return err
	}
	return b.doc.DeleteBlock(id)
}

// SetCursor shares which block the editor's cursor is in.
func (b *Binding) SetCursor(blockID string) {
	b.provider.UpdateCursorPosition(blockID)
}

// Close detaches the editor, destroys the provider and releases the note for
// a later binding. It is idempotent.
func (b *Binding) Close() {
	b.closeOnce.Do(func() {
		if b.unsub != nil {
			b.unsub()
		}
		b.provider.Destroy()

		bindingsMu.Lock()
		if bindings[b.noteKey] == b {
			delete(bindings, b.noteKey)
		}
		bindingsMu.Unlock()
	})
}

func parseBlockID(id string) (time.Ticket, error) {
	return time.Parse(id)
}

func (b *Binding) render() {
	if b.editor == nil {
		return
	}
	b.editor.Render(b.doc.Blocks())
}
