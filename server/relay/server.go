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

// Package relay provides the websocket endpoint of the Zync server. Each
// connection serves one note; the server adds the connection to the note's
// room and fans document, awareness and presence events out to the room.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/zync-dev/zync/internal/validation"
	"github.com/zync-dev/zync/server/backend"
	"github.com/zync-dev/zync/server/logging"
)

// Server is the relay server that routes the note sync channel.
type Server struct {
	conf         *Config
	backend      *backend.Backend
	router       *mux.Router
	httpServer   *http.Server
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	logger       logging.Logger
}

// NewServer creates a new instance of Server.
func NewServer(conf *Config, be *backend.Backend) (*Server, error) {
	pingInterval, err := conf.ParsePingInterval()
	if err != nil {
		return nil, err
	}

	s := &Server{
		conf:    conf,
		backend: be,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The browser client is served from another origin; access
			// control is handled upstream of the relay.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		pingInterval: pingInterval,
		logger:       logging.New("relay"),
	}

	router := mux.NewRouter()
	router.HandleFunc("/ws", s.handleSocket).Methods(http.MethodGet)
	router.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	s.router = router
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", conf.Port),
		Handler: router,
	}

	return s, nil
}

// Handler returns the HTTP handler of this server. It is used to mount the
// relay into test servers.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the relay server.
func (s *Server) Start() error {
	go func() {
		s.logger.Infof("serving relay on %d", s.conf.Port)
		if err := s.httpServer.ListenAndServe(); err != nil {
			if errors.Is(err, http.ErrServerClosed) {
				s.logger.Info("relay server closed")
				return
			}
			s.logger.Errorf("relay server ListenAndServe: %v", err)
		}
	}()
	return nil
}

// Shutdown shuts down the relay server. Open connections are closed; clients
// recover through their reconnection policy.
func (s *Server) Shutdown(graceful bool) {
	if graceful {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Errorf("relay server Shutdown: %v", err)
		}
		return
	}

	if err := s.httpServer.Close(); err != nil {
		s.logger.Errorf("relay server Close: %v", err)
	}
}

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	sock, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnf("upgrade: %v", err)
		return
	}

	conn := newConnection(s.backend, sock, s.conf, s.pingInterval)

	s.backend.Metrics.AddConnection()
	defer s.backend.Metrics.RemoveConnection()

	ctx := logging.With(r.Context(), conn.logger)
	conn.run(ctx)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// validateNoteKey checks that a note key is a sane routing key before a room
// is created for it.
func validateNoteKey(key string) error {
	return validation.Verify(key, "required,min=1,max=120,case_sensitive_slug")
}
