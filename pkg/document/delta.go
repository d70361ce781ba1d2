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

package document

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zync-dev/zync/pkg/document/time"
)

var (
	// ErrMalformedDelta is returned when delta bytes cannot be decoded or
	// fail structural validation. Malformed deltas never mutate a replica.
	ErrMalformedDelta = errors.New("malformed delta")
)

// OpType represents the type of a document operation.
type OpType string

const (
	// OpInsert places a new block after its left neighbor.
	OpInsert OpType = "insert"

	// OpEdit overwrites the content of a block.
	OpEdit OpType = "edit"

	// OpDelete tombstones a block.
	OpDelete OpType = "delete"
)

// Operation is a single replicated operation. ExecutedAt is the ticket of
// the operation itself; for insertions it doubles as the ID of the new block.
type Operation struct {
	Type       OpType            `json:"type"`
	ExecutedAt time.Ticket       `json:"executedAt"`
	PrevID     time.Ticket       `json:"prevId,omitempty"`
	Target     time.Ticket       `json:"target,omitempty"`
	BlockType  string            `json:"blockType,omitempty"`
	Text       string            `json:"text,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

func (op *Operation) validate() error {
	switch op.Type {
	case OpInsert:
		if op.ExecutedAt.IsZero() {
			return fmt.Errorf("insert without id: %w", ErrMalformedDelta)
		}
	case OpEdit, OpDelete:
		if op.ExecutedAt.IsZero() || op.Target.IsZero() {
			return fmt.Errorf("%s without ticket: %w", op.Type, ErrMalformedDelta)
		}
	default:
		return fmt.Errorf("operation type %q: %w", op.Type, ErrMalformedDelta)
	}
	return nil
}

// Delta is a set of operations exchanged between replicas. Deltas are
// opaque to the transport and the relay; only replicas decode them.
type Delta struct {
	Ops []Operation `json:"ops"`
}

// Marshal encodes the delta to bytes.
func (d *Delta) Marshal() ([]byte, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal delta: %w", err)
	}
	return raw, nil
}

// UnmarshalDelta decodes and validates delta bytes. The returned delta is
// structurally sound; causal soundness (whether referenced blocks exist) is
// checked at apply time.
func UnmarshalDelta(raw []byte) (*Delta, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty delta: %w", ErrMalformedDelta)
	}

	delta := &Delta{}
	if err := json.Unmarshal(raw, delta); err != nil {
		return nil, fmt.Errorf("unmarshal delta: %w", ErrMalformedDelta)
	}

	if len(delta.Ops) == 0 {
		return nil, fmt.Errorf("delta without operations: %w", ErrMalformedDelta)
	}

	for i := range delta.Ops {
		if err := delta.Ops[i].validate(); err != nil {
			return nil, err
		}
	}

	return delta, nil
}
