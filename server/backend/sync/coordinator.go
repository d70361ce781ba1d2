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

package sync

import "context"

// Coordinator provides room routing for the relay. The memory implementation
// routes within a single server; the redis implementation additionally fans
// events out to the rooms of other server nodes.
type Coordinator interface {
	// Subscribe adds the connection to the room of the note.
	Subscribe(ctx context.Context, subscriber string, noteKey string) (*Subscription, error)

	// Unsubscribe removes the subscription from the room of the note.
	Unsubscribe(ctx context.Context, noteKey string, sub *Subscription) error

	// Publish fans the event out to the room members, excluding the
	// publisher.
	Publish(ctx context.Context, event RoomEvent)

	// Rooms returns the number of rooms routed by this node.
	Rooms() int

	// Members returns the number of local connections in the room.
	Members(noteKey string) int

	// Close releases the resources of this coordinator.
	Close() error
}
