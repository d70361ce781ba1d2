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

// Package server provides the Zync server which is the main entry point of
// the Zync system. The server routes the real-time note sync channel: it
// relays document and awareness deltas between room members and tracks the
// presence roster of each note.
package server

import (
	gosync "sync"

	"github.com/zync-dev/zync/server/backend"
	"github.com/zync-dev/zync/server/logging"
	"github.com/zync-dev/zync/server/profiling"
	"github.com/zync-dev/zync/server/profiling/prometheus"
	"github.com/zync-dev/zync/server/relay"
)

// Zync is a server of Zync. The server relays changes and presence of notes
// between the clients watching them; it stores nothing and merges nothing.
type Zync struct {
	lock gosync.Mutex

	conf            *Config
	backend         *backend.Backend
	relayServer     *relay.Server
	profilingServer *profiling.Server

	shutdown   bool
	shutdownCh chan struct{}
}

// New creates a new instance of Zync.
func New(conf *Config) (*Zync, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	metrics, err := prometheus.NewMetrics(conf.Backend.Hostname)
	if err != nil {
		return nil, err
	}

	be, err := backend.New(conf.Backend, conf.Redis, metrics)
	if err != nil {
		return nil, err
	}

	relayServer, err := relay.NewServer(conf.Relay, be)
	if err != nil {
		return nil, err
	}

	var profilingServer *profiling.Server
	if conf.Profiling != nil {
		profilingServer = profiling.NewServer(conf.Profiling, metrics)
	}

	return &Zync{
		conf:            conf,
		backend:         be,
		relayServer:     relayServer,
		profilingServer: profilingServer,
		shutdownCh:      make(chan struct{}),
	}, nil
}

// Start starts the server by opening the relay port.
func (z *Zync) Start() error {
	z.lock.Lock()
	defer z.lock.Unlock()

	if z.profilingServer != nil {
		if err := z.profilingServer.Start(); err != nil {
			return err
		}
	}

	return z.relayServer.Start()
}

// Shutdown shuts down this Zync server.
func (z *Zync) Shutdown(graceful bool) error {
	z.lock.Lock()
	defer z.lock.Unlock()
	if z.shutdown {
		return nil
	}

	z.relayServer.Shutdown(graceful)
	if z.profilingServer != nil {
		z.profilingServer.Shutdown(graceful)
	}
	if err := z.backend.Shutdown(); err != nil {
		logging.DefaultLogger().Warnf("backend shutdown: %v", err)
	}

	z.shutdown = true
	close(z.shutdownCh)
	return nil
}

// ShutdownCh returns the shutdown channel.
func (z *Zync) ShutdownCh() <-chan struct{} {
	return z.shutdownCh
}

// RelayAddr returns the address of the relay.
func (z *Zync) RelayAddr() string {
	return z.conf.RelayAddr()
}
