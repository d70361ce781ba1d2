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

// Package backend provides the shared runtime of the Zync server: the room
// coordinator, the presence manager and the metrics.
package backend

import (
	"context"

	"github.com/zync-dev/zync/server/backend/presence"
	"github.com/zync-dev/zync/server/backend/sync"
	"github.com/zync-dev/zync/server/backend/sync/memory"
	"github.com/zync-dev/zync/server/backend/sync/redis"
	"github.com/zync-dev/zync/server/logging"
	"github.com/zync-dev/zync/server/profiling/prometheus"
)

// Backend manages Zync's remaining, shared states.
type Backend struct {
	Config      *Config
	Coordinator sync.Coordinator
	Presence    *presence.Manager
	Metrics     *prometheus.Metrics
}

// New creates a new instance of Backend. If a Redis config is given the
// coordinator routes events across nodes; otherwise it routes within this
// process only.
func New(
	conf *Config,
	redisConf *redis.Config,
	metrics *prometheus.Metrics,
) (*Backend, error) {
	staleThreshold, err := conf.ParsePresenceStaleThreshold()
	if err != nil {
		return nil, err
	}

	var coordinator sync.Coordinator
	if redisConf != nil {
		coordinator, err = redis.NewCoordinator(context.Background(), redisConf)
		if err != nil {
			return nil, err
		}
		logging.DefaultLogger().Infof(
			"backend created: coordinator: redis(%s)", redisConf.Addr,
		)
	} else {
		coordinator = memory.NewCoordinator()
		logging.DefaultLogger().Info("backend created: coordinator: memory")
	}

	return &Backend{
		Config:      conf,
		Coordinator: coordinator,
		Presence:    presence.NewManager(staleThreshold),
		Metrics:     metrics,
	}, nil
}

// Shutdown releases the resources of this backend.
func (b *Backend) Shutdown() error {
	return b.Coordinator.Close()
}
