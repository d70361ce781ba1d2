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

package server

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zync-dev/zync/server/backend"
	"github.com/zync-dev/zync/server/backend/sync/redis"
	"github.com/zync-dev/zync/server/profiling"
	"github.com/zync-dev/zync/server/relay"
)

// Below are the default values of the Zync config.
const (
	DefaultRelayPort     = 8080
	DefaultProfilingPort = 8081

	DefaultRelayPingInterval    = 25 * time.Second
	DefaultRelayMaxMessageBytes = int64(1 << 20)

	DefaultPresenceStaleThreshold = 60 * time.Second

	DefaultRedisPingTimeout = 5 * time.Second

	DefaultHostname = ""
)

// Config is the configuration for creating a Zync server instance.
type Config struct {
	Relay     *relay.Config     `yaml:"Relay"`
	Profiling *profiling.Config `yaml:"Profiling"`
	Backend   *backend.Config   `yaml:"Backend"`
	Redis     *redis.Config     `yaml:"Redis"`
}

// NewConfig returns a Config struct that contains reasonable defaults for
// most of the configurations.
func NewConfig() *Config {
	conf := &Config{
		Relay:     &relay.Config{Port: DefaultRelayPort},
		Profiling: &profiling.Config{Port: DefaultProfilingPort},
		Backend:   &backend.Config{},
	}
	conf.ensureDefaultValue()
	return conf
}

// NewConfigFromFile returns a Config struct for the given config file.
func NewConfigFromFile(path string) (*Config, error) {
	conf := &Config{}
	bytes, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err = yaml.Unmarshal(bytes, conf); err != nil {
		return nil, fmt.Errorf("unmarshal config file: %w", err)
	}

	conf.ensureDefaultValue()
	return conf, nil
}

// RelayAddr returns the relay address.
func (c *Config) RelayAddr() string {
	return fmt.Sprintf("localhost:%d", c.Relay.Port)
}

// Validate returns an error if the provided Config is invalidated.
func (c *Config) Validate() error {
	if err := c.Relay.Validate(); err != nil {
		return err
	}

	if err := c.Profiling.Validate(); err != nil {
		return err
	}

	if err := c.Backend.Validate(); err != nil {
		return err
	}

	if c.Redis != nil {
		if err := c.Redis.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// ensureDefaultValue sets the value of options to which the default value
// should be applied when the user does not input it.
func (c *Config) ensureDefaultValue() {
	if c.Relay == nil {
		c.Relay = &relay.Config{}
	}
	if c.Relay.Port == 0 {
		c.Relay.Port = DefaultRelayPort
	}
	if c.Relay.PingInterval == "" {
		c.Relay.PingInterval = DefaultRelayPingInterval.String()
	}
	if c.Relay.MaxMessageBytes == 0 {
		c.Relay.MaxMessageBytes = DefaultRelayMaxMessageBytes
	}

	if c.Profiling == nil {
		c.Profiling = &profiling.Config{}
	}
	if c.Profiling.Port == 0 {
		c.Profiling.Port = DefaultProfilingPort
	}

	if c.Backend == nil {
		c.Backend = &backend.Config{}
	}
	if c.Backend.PresenceStaleThreshold == "" {
		c.Backend.PresenceStaleThreshold = DefaultPresenceStaleThreshold.String()
	}
	if c.Backend.Hostname == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = DefaultHostname
		}
		c.Backend.Hostname = hostname
	}

	if c.Redis != nil && c.Redis.PingTimeout == "" {
		c.Redis.PingTimeout = DefaultRedisPingTimeout.String()
	}
}
