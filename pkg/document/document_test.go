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

package document_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zync-dev/zync/api/types"
	"github.com/zync-dev/zync/pkg/document"
	"github.com/zync-dev/zync/pkg/document/time"
)

// collectLocal records the local-origin deltas a replica produces, the way a
// transport provider would before relaying them.
func collectLocal(doc *document.Document) *[][]byte {
	deltas := &[][]byte{}
	doc.SubscribeUpdates(func(event document.UpdateEvent) {
		if event.Origin == types.OriginLocal {
			*deltas = append(*deltas, event.Delta)
		}
	})
	return deltas
}

func TestDocument(t *testing.T) {
	t.Run("constructor test", func(t *testing.T) {
		doc := document.New("note-1")
		assert.Equal(t, "note-1", doc.Key())
		assert.NotEmpty(t, doc.ActorID())
		assert.Equal(t, 0, doc.Len())
		assert.Equal(t, "null", doc.Marshal())
	})

	t.Run("local edit test", func(t *testing.T) {
		doc := document.New("note-1")

		id, err := doc.InsertBlockAfter(time.InitialTicket, "paragraph", "hello", nil)
		assert.NoError(t, err)
		assert.NoError(t, doc.EditBlock(id, "heading", "hello!", map[string]string{"level": "1"}))

		blocks := doc.Blocks()
		assert.Len(t, blocks, 1)
		assert.Equal(t, "heading", blocks[0].Type)
		assert.Equal(t, "hello!", blocks[0].Text)

		assert.NoError(t, doc.DeleteBlock(id))
		assert.Equal(t, 0, doc.Len())
	})

	t.Run("concurrent convergence test", func(t *testing.T) {
		d1 := document.New("note-1")
		d2 := document.New("note-1")
		d1Deltas := collectLocal(d1)
		d2Deltas := collectLocal(d2)

		_, err := d1.InsertBlockAfter(time.InitialTicket, "paragraph", "from d1", nil)
		assert.NoError(t, err)
		_, err = d2.InsertBlockAfter(time.InitialTicket, "paragraph", "from d2", nil)
		assert.NoError(t, err)

		// Deliver in opposite orders; both replicas resolve the concurrent
		// head insertions identically.
		for _, raw := range *d2Deltas {
			assert.NoError(t, d1.ApplyUpdate(raw, types.OriginRemote))
		}
		for _, raw := range *d1Deltas {
			assert.NoError(t, d2.ApplyUpdate(raw, types.OriginRemote))
		}

		assert.Equal(t, 2, d1.Len())
		assert.Equal(t, d1.Marshal(), d2.Marshal())
	})

	t.Run("out of order delivery test", func(t *testing.T) {
		source := document.New("note-1")
		deltas := collectLocal(source)

		first, err := source.InsertBlockAfter(time.InitialTicket, "paragraph", "first", nil)
		assert.NoError(t, err)
		_, err = source.InsertBlockAfter(first, "paragraph", "second", nil)
		assert.NoError(t, err)

		// The dependent insert arrives before the block it anchors on. It is
		// held back, not dropped, and lands once its predecessor does.
		reordered := document.New("note-1")
		assert.NoError(t, reordered.ApplyUpdate((*deltas)[1], types.OriginRemote))
		assert.Equal(t, 0, reordered.Len())

		assert.NoError(t, reordered.ApplyUpdate((*deltas)[0], types.OriginRemote))
		assert.Equal(t, 2, reordered.Len())
		assert.Equal(t, source.Marshal(), reordered.Marshal())
	})

	t.Run("concurrent edit last writer wins test", func(t *testing.T) {
		d1 := document.New("note-1")
		d2 := document.New("note-1")
		d1Deltas := collectLocal(d1)

		id, err := d1.InsertBlockAfter(time.InitialTicket, "paragraph", "base", nil)
		assert.NoError(t, err)
		for _, raw := range *d1Deltas {
			assert.NoError(t, d2.ApplyUpdate(raw, types.OriginRemote))
		}
		*d1Deltas = nil
		d2Deltas := collectLocal(d2)

		assert.NoError(t, d1.EditBlock(id, "paragraph", "edit of d1", nil))
		assert.NoError(t, d2.EditBlock(id, "paragraph", "edit of d2", nil))

		for _, raw := range *d2Deltas {
			assert.NoError(t, d1.ApplyUpdate(raw, types.OriginRemote))
		}
		for _, raw := range *d1Deltas {
			assert.NoError(t, d2.ApplyUpdate(raw, types.OriginRemote))
		}

		assert.Equal(t, d1.Marshal(), d2.Marshal())
	})

	t.Run("idempotent apply test", func(t *testing.T) {
		d1 := document.New("note-1")
		d2 := document.New("note-1")
		d1Deltas := collectLocal(d1)

		_, err := d1.InsertBlockAfter(time.InitialTicket, "paragraph", "once", nil)
		assert.NoError(t, err)

		notified := 0
		d2.SubscribeUpdates(func(document.UpdateEvent) { notified++ })

		raw := (*d1Deltas)[0]
		assert.NoError(t, d2.ApplyUpdate(raw, types.OriginRemote))
		before := d2.Marshal()

		// A replayed delta is absorbed without effect or notification.
		assert.NoError(t, d2.ApplyUpdate(raw, types.OriginRemote))
		assert.Equal(t, before, d2.Marshal())
		assert.Equal(t, 1, notified)
	})

	t.Run("malformed delta test", func(t *testing.T) {
		doc := document.New("note-1")

		assert.ErrorIs(t, doc.ApplyUpdate(nil, types.OriginRemote), document.ErrMalformedDelta)
		assert.ErrorIs(t, doc.ApplyUpdate([]byte("junk"), types.OriginRemote), document.ErrMalformedDelta)
		assert.ErrorIs(t, doc.ApplyUpdate([]byte(`{"ops":[]}`), types.OriginRemote), document.ErrMalformedDelta)
		assert.Equal(t, 0, doc.Len())
	})

	t.Run("deferred edit test", func(t *testing.T) {
		doc := document.New("note-1")

		edit := &document.Delta{Ops: []document.Operation{{
			Type:       document.OpEdit,
			ExecutedAt: time.New(7, "peer"),
			Target:     time.New(5, "peer"),
			BlockType:  "paragraph",
			Text:       "revised",
		}}}
		rawEdit, err := edit.Marshal()
		assert.NoError(t, err)

		// The edit targets a block that has not arrived; it waits.
		assert.NoError(t, doc.ApplyUpdate(rawEdit, types.OriginRemote))
		assert.Equal(t, 0, doc.Len())

		insert := &document.Delta{Ops: []document.Operation{{
			Type:       document.OpInsert,
			ExecutedAt: time.New(5, "peer"),
			PrevID:     time.InitialTicket,
			BlockType:  "paragraph",
			Text:       "draft",
		}}}
		rawInsert, err := insert.Marshal()
		assert.NoError(t, err)

		assert.NoError(t, doc.ApplyUpdate(rawInsert, types.OriginRemote))
		blocks := doc.Blocks()
		assert.Len(t, blocks, 1)
		assert.Equal(t, "revised", blocks[0].Text)
	})

	t.Run("origin tag test", func(t *testing.T) {
		d1 := document.New("note-1")
		d2 := document.New("note-1")
		d1Deltas := collectLocal(d1)

		var origins []types.OriginTag
		d2.SubscribeUpdates(func(event document.UpdateEvent) {
			origins = append(origins, event.Origin)
		})

		_, err := d1.InsertBlockAfter(time.InitialTicket, "paragraph", "x", nil)
		assert.NoError(t, err)
		assert.NoError(t, d2.ApplyUpdate((*d1Deltas)[0], types.OriginRemote))

		_, err = d2.InsertBlockAfter(time.InitialTicket, "paragraph", "y", nil)
		assert.NoError(t, err)

		assert.Equal(t, []types.OriginTag{types.OriginRemote, types.OriginLocal}, origins)
	})

	t.Run("encode state as update test", func(t *testing.T) {
		d1 := document.New("note-1")

		first, err := d1.InsertBlockAfter(time.InitialTicket, "heading", "title", map[string]string{"level": "1"})
		assert.NoError(t, err)
		second, err := d1.InsertBlockAfter(first, "paragraph", "body", nil)
		assert.NoError(t, err)
		assert.NoError(t, d1.EditBlock(first, "heading", "better title", map[string]string{"level": "2"}))
		assert.NoError(t, d1.DeleteBlock(second))

		state, err := d1.EncodeStateAsUpdate()
		assert.NoError(t, err)
		assert.NotNil(t, state)

		fresh := document.New("note-1")
		assert.NoError(t, fresh.ApplyUpdate(state, types.OriginRemote))
		assert.Equal(t, d1.Marshal(), fresh.Marshal())
		assert.Equal(t, d1.Len(), fresh.Len())

		// Bootstrapping an already caught-up replica changes nothing.
		assert.NoError(t, fresh.ApplyUpdate(state, types.OriginRemote))
		assert.Equal(t, d1.Marshal(), fresh.Marshal())
	})

	t.Run("encode empty state test", func(t *testing.T) {
		state, err := document.New("note-1").EncodeStateAsUpdate()
		assert.NoError(t, err)
		assert.Nil(t, state)
	})

	t.Run("unsubscribe test", func(t *testing.T) {
		doc := document.New("note-1")

		notified := 0
		unsub := doc.SubscribeUpdates(func(document.UpdateEvent) { notified++ })

		_, err := doc.InsertBlockAfter(time.InitialTicket, "paragraph", "a", nil)
		assert.NoError(t, err)
		unsub()
		_, err = doc.InsertBlockAfter(time.InitialTicket, "paragraph", "b", nil)
		assert.NoError(t, err)

		assert.Equal(t, 1, notified)
	})
}
