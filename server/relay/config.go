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

package relay

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidRelayPort occurs when the port in the config is invalid.
	ErrInvalidRelayPort = errors.New("invalid port number for relay server")
)

// Config is the configuration for creating a relay Server instance.
type Config struct {
	Port int `yaml:"Port"`

	// PingInterval is the interval of websocket keepalive pings. A
	// connection that misses two intervals is considered dead.
	PingInterval string `yaml:"PingInterval"`

	// MaxMessageBytes caps the size of a single inbound message.
	MaxMessageBytes int64 `yaml:"MaxMessageBytes"`
}

// Validate validates this config.
func (c *Config) Validate() error {
	if c.Port < 1 || 65535 < c.Port {
		return fmt.Errorf("must be between 1 and 65535, given %d: %w", c.Port, ErrInvalidRelayPort)
	}

	if _, err := c.ParsePingInterval(); err != nil {
		return err
	}
	return nil
}

// ParsePingInterval returns the ping interval as a time.Duration.
func (c *Config) ParsePingInterval() (time.Duration, error) {
	interval, err := time.ParseDuration(c.PingInterval)
	if err != nil {
		return 0, fmt.Errorf(`parse PingInterval "%s": %w`, c.PingInterval, err)
	}
	return interval, nil
}
