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
	"time"

	"github.com/google/uuid"

	"github.com/zync-dev/zync/pkg/presence"
)

// Below are the default values of reconnection and presence options.
const (
	DefaultMaxReconnectAttempts = 5
	DefaultReconnectInterval    = 3 * time.Second
)

// Options configures how we set up the provider.
type Options struct {
	// UserID is the stable identifier of the user. Presence entries of the
	// same user on several connections collapse under this ID.
	UserID string

	// UserName is the display name rendered in the roster.
	UserName string

	// UserAvatar is the avatar URL rendered in the roster.
	UserAvatar string

	// UserColor is the cursor color of the user. When empty, a deterministic
	// color is derived from UserID.
	UserColor string

	// MaxReconnectAttempts is the number of consecutive failed dials after
	// which the provider gives up and stays disconnected.
	MaxReconnectAttempts int

	// ReconnectInterval is the delay between reconnection attempts.
	ReconnectInterval time.Duration

	// StaleThreshold is the window after which a silent roster entry is no
	// longer rendered.
	StaleThreshold time.Duration
}

// Option configures Options.
type Option func(*Options)

func buildOptions(opts ...Option) Options {
	options := Options{
		MaxReconnectAttempts: DefaultMaxReconnectAttempts,
		ReconnectInterval:    DefaultReconnectInterval,
		StaleThreshold:       presence.DefaultStaleThreshold,
	}
	for _, opt := range opts {
		opt(&options)
	}

	if options.UserID == "" {
		options.UserID = uuid.New().String()
	}
	if options.UserColor == "" {
		options.UserColor = presence.ColorFor(options.UserID)
	}
	return options
}

// WithUser configures the identity shared with other collaborators.
func WithUser(id, name, avatarURL string) Option {
	return func(o *Options) {
		o.UserID = id
		o.UserName = name
		o.UserAvatar = avatarURL
	}
}

// WithUserColor overrides the derived cursor color.
func WithUserColor(color string) Option {
	return func(o *Options) { o.UserColor = color }
}

// WithMaxReconnectAttempts configures how often the provider retries a lost
// connection before giving up.
func WithMaxReconnectAttempts(attempts int) Option {
	return func(o *Options) { o.MaxReconnectAttempts = attempts }
}

// WithReconnectInterval configures the delay between reconnection attempts.
func WithReconnectInterval(interval time.Duration) Option {
	return func(o *Options) { o.ReconnectInterval = interval }
}

// WithStaleThreshold configures the roster staleness window.
func WithStaleThreshold(threshold time.Duration) Option {
	return func(o *Options) { o.StaleThreshold = threshold }
}
