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

// Package redis provides the multi-node Coordinator backed by Redis pub/sub.
// Each note maps to one Redis channel; events published on one node are
// fanned into the matching local rooms of every other node. Node-ID tagging
// keeps a node from re-applying its own publications.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	gosync "sync"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/xid"

	"github.com/zync-dev/zync/server/backend/sync"
	"github.com/zync-dev/zync/server/logging"
)

const channelPrefix = "zync:notes:"

// envelope is the payload published on a note channel.
type envelope struct {
	NodeID string         `json:"nodeId"`
	Event  sync.RoomEvent `json:"event"`
}

type noteChannel struct {
	pubSub  *goredis.PubSub
	members int
}

// Coordinator routes room events across server nodes through Redis.
type Coordinator struct {
	nodeID string
	client *goredis.Client
	local  *sync.PubSub

	mu       gosync.Mutex
	channels map[string]*noteChannel
}

// NewCoordinator creates an instance of Coordinator and verifies the
// connection to Redis.
func NewCoordinator(ctx context.Context, conf *Config) (*Coordinator, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     conf.Addr,
		Password: conf.Password,
		DB:       conf.DB,
	})

	pingTimeout, err := conf.ParsePingTimeout()
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis %s: %w", conf.Addr, err)
	}

	return &Coordinator{
		nodeID:   xid.New().String(),
		client:   client,
		local:    sync.NewPubSub(),
		channels: make(map[string]*noteChannel),
	}, nil
}

// Subscribe adds the connection to the local room of the note and, for the
// first local member, subscribes this node to the note's Redis channel.
func (c *Coordinator) Subscribe(
	ctx context.Context,
	subscriber string,
	noteKey string,
) (*sync.Subscription, error) {
	sub, err := c.local.Subscribe(ctx, subscriber, noteKey)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ch, ok := c.channels[noteKey]
	if !ok {
		pubSub := c.client.Subscribe(ctx, channelPrefix+noteKey)
		ch = &noteChannel{pubSub: pubSub}
		c.channels[noteKey] = ch
		go c.fanIn(noteKey, pubSub)
	}
	ch.members++

	return sub, nil
}

// Unsubscribe removes the subscription and, when the last local member of
// the note leaves, unsubscribes this node from the note's Redis channel.
func (c *Coordinator) Unsubscribe(
	ctx context.Context,
	noteKey string,
	sub *sync.Subscription,
) error {
	c.local.Unsubscribe(ctx, noteKey, sub)

	c.mu.Lock()
	defer c.mu.Unlock()

	ch, ok := c.channels[noteKey]
	if !ok {
		return nil
	}

	ch.members--
	if ch.members > 0 {
		return nil
	}

	delete(c.channels, noteKey)
	if err := ch.pubSub.Close(); err != nil {
		return fmt.Errorf("close channel of %s: %w", noteKey, err)
	}
	return nil
}

// Publish fans the event out locally and to the other nodes.
func (c *Coordinator) Publish(ctx context.Context, event sync.RoomEvent) {
	c.local.Publish(ctx, event)

	raw, err := json.Marshal(envelope{NodeID: c.nodeID, Event: event})
	if err != nil {
		logging.From(ctx).Errorf("marshal envelope: %v", err)
		return
	}

	noteKey := event.Message.NoteID
	if err := c.client.Publish(ctx, channelPrefix+noteKey, raw).Err(); err != nil {
		// The local fan-out already happened; cross-node delivery degrades
		// until Redis recovers.
		logging.From(ctx).Warnf("publish %s to redis: %v", noteKey, err)
	}
}

// Rooms returns the number of rooms routed by this node.
func (c *Coordinator) Rooms() int {
	return c.local.Rooms()
}

// Members returns the number of local connections in the room.
func (c *Coordinator) Members(noteKey string) int {
	return c.local.Members(noteKey)
}

// Close releases the resources of this coordinator.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	for noteKey, ch := range c.channels {
		if err := ch.pubSub.Close(); err != nil {
			logging.DefaultLogger().Warnf("close channel of %s: %v", noteKey, err)
		}
	}
	c.channels = make(map[string]*noteChannel)
	c.mu.Unlock()

	if err := c.client.Close(); err != nil {
		return fmt.Errorf("close redis client: %w", err)
	}
	return nil
}

// fanIn applies publications of other nodes to the local room. It returns
// when the Redis channel subscription is closed.
func (c *Coordinator) fanIn(noteKey string, pubSub *goredis.PubSub) {
	logger := logging.New("redis")

	for msg := range pubSub.Channel() {
		env := envelope{}
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			logger.Warnf("room %s: malformed envelope: %v", noteKey, err)
			continue
		}
		if env.NodeID == c.nodeID {
			continue
		}

		c.local.Publish(context.Background(), env.Event)
	}
}
