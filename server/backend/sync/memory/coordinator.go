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

// Package memory provides the single-node Coordinator.
package memory

import (
	"context"

	"github.com/zync-dev/zync/server/backend/sync"
)

// Coordinator routes room events within a single server process.
type Coordinator struct {
	pubSub *sync.PubSub
}

// NewCoordinator creates an instance of Coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{
		pubSub: sync.NewPubSub(),
	}
}

// Subscribe adds the connection to the room of the note.
func (c *Coordinator) Subscribe(
	ctx context.Context,
	subscriber string,
	noteKey string,
) (*sync.Subscription, error) {
	return c.pubSub.Subscribe(ctx, subscriber, noteKey)
}

// Unsubscribe removes the subscription from the room of the note.
func (c *Coordinator) Unsubscribe(
	ctx context.Context,
	noteKey string,
	sub *sync.Subscription,
) error {
	c.pubSub.Unsubscribe(ctx, noteKey, sub)
	return nil
}

// Publish fans the event out to the local room members.
func (c *Coordinator) Publish(ctx context.Context, event sync.RoomEvent) {
	c.pubSub.Publish(ctx, event)
}

// Rooms returns the number of rooms routed by this node.
func (c *Coordinator) Rooms() int {
	return c.pubSub.Rooms()
}

// Members returns the number of local connections in the room.
func (c *Coordinator) Members(noteKey string) int {
	return c.pubSub.Members(noteKey)
}

// Close releases the resources of this coordinator.
func (c *Coordinator) Close() error {
	return nil
}
