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

// Package time provides the logical clock of document operations.
package time

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidTicket is returned when a ticket string cannot be parsed.
var ErrInvalidTicket = errors.New("invalid ticket")

// Ticket is a logical timestamp of an operation. It is a pair of a lamport
// clock value and the ID of the actor that produced the operation. Tickets
// are totally ordered: by lamport first, then by actor ID lexicographically
// as a tie-breaker, so every replica resolves concurrent operations the same
// way.
type Ticket struct {
	Lamport uint64 `json:"lamport"`
	ActorID string `json:"actor"`
}

// InitialTicket is the zero value of Ticket. It is used as the ID of the
// head sentinel of block sequences.
var InitialTicket = Ticket{}

// New creates a new instance of Ticket.
func New(lamport uint64, actorID string) Ticket {
	return Ticket{Lamport: lamport, ActorID: actorID}
}

// Compare returns an integer comparing two tickets. The result is 0 if
// t == other, -1 if t < other, and +1 if t > other.
func (t Ticket) Compare(other Ticket) int {
	if t.Lamport != other.Lamport {
		if t.Lamport < other.Lamport {
			return -1
		}
		return 1
	}

	if t.ActorID != other.ActorID {
		if t.ActorID < other.ActorID {
			return -1
		}
		return 1
	}

	return 0
}

// After returns whether t is causally or arbitrarily ordered after other.
func (t Ticket) After(other Ticket) bool {
	return t.Compare(other) > 0
}

// IsZero returns whether the ticket is the zero value.
func (t Ticket) IsZero() bool {
	return t.Lamport == 0 && t.ActorID == ""
}

// String returns the string representation of this ticket.
func (t Ticket) String() string {
	return fmt.Sprintf("%d:%s", t.Lamport, t.ActorID)
}

// Parse is the inverse of String. The empty string parses to InitialTicket so
// surfaces that address blocks by string can name the head position.
func Parse(s string) (Ticket, error) {
	if s == "" {
		return InitialTicket, nil
	}

	lamport, actorID, ok := strings.Cut(s, ":")
	if !ok {
		return Ticket{}, fmt.Errorf("%q: %w", s, ErrInvalidTicket)
	}

	parsed, err := strconv.ParseUint(lamport, 10, 64)
	if err != nil {
		return Ticket{}, fmt.Errorf("%q: %w", s, ErrInvalidTicket)
	}

	return Ticket{Lamport: parsed, ActorID: actorID}, nil
}
