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

package server_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zync-dev/zync/server"
	"github.com/zync-dev/zync/server/backend/sync/redis"
	"github.com/zync-dev/zync/server/relay"
)

func TestNewConfig(t *testing.T) {
	t.Run("default config test", func(t *testing.T) {
		conf := server.NewConfig()
		assert.NoError(t, conf.Validate())

		assert.Equal(t, server.DefaultRelayPort, conf.Relay.Port)
		assert.Equal(t, server.DefaultProfilingPort, conf.Profiling.Port)
		assert.Equal(t, server.DefaultRelayPingInterval.String(), conf.Relay.PingInterval)
		assert.Equal(t, server.DefaultRelayMaxMessageBytes, conf.Relay.MaxMessageBytes)
		assert.Equal(
			t,
			server.DefaultPresenceStaleThreshold.String(),
			conf.Backend.PresenceStaleThreshold,
		)
		assert.Nil(t, conf.Redis)
	})

	t.Run("invalid port test", func(t *testing.T) {
		conf := server.NewConfig()
		conf.Relay.Port = 0
		assert.ErrorIs(t, conf.Validate(), relay.ErrInvalidRelayPort)

		conf = server.NewConfig()
		conf.Relay.Port = 65536
		assert.ErrorIs(t, conf.Validate(), relay.ErrInvalidRelayPort)
	})

	t.Run("invalid duration test", func(t *testing.T) {
		conf := server.NewConfig()
		conf.Relay.PingInterval = "not-a-duration"
		assert.Error(t, conf.Validate())

		conf = server.NewConfig()
		conf.Backend.PresenceStaleThreshold = "not-a-duration"
		assert.Error(t, conf.Validate())
	})

	t.Run("redis config test", func(t *testing.T) {
		conf := server.NewConfig()
		conf.Redis = &redis.Config{PingTimeout: "5s"}
		assert.ErrorIs(t, conf.Validate(), redis.ErrEmptyAddr)

		conf.Redis.Addr = "localhost:6379"
		assert.NoError(t, conf.Validate())
	})

	t.Run("config from file test", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "zync.yml")
		raw := []byte(`
Relay:
  Port: 9090
Backend:
  PresenceStaleThreshold: "30s"
`)
		assert.NoError(t, os.WriteFile(path, raw, 0o600))

		conf, err := server.NewConfigFromFile(path)
		assert.NoError(t, err)
		assert.NoError(t, conf.Validate())

		// Explicit values survive, the rest is defaulted.
		assert.Equal(t, 9090, conf.Relay.Port)
		assert.Equal(t, "30s", conf.Backend.PresenceStaleThreshold)
		assert.Equal(t, server.DefaultProfilingPort, conf.Profiling.Port)
		assert.Equal(t, server.DefaultRelayPingInterval.String(), conf.Relay.PingInterval)
	})

	t.Run("missing config file test", func(t *testing.T) {
		_, err := server.NewConfigFromFile("nowhere.yml")
		assert.Error(t, err)
	})
}
