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

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zync-dev/zync/server"
	"github.com/zync-dev/zync/server/backend/sync/redis"
	"github.com/zync-dev/zync/server/logging"
)

var (
	gracefulTimeout = 10 * time.Second
)

var (
	flagConfPath string
	flagLogLevel string

	relayPingInterval      time.Duration
	presenceStaleThreshold time.Duration

	redisAddr        string
	redisPassword    string
	redisDB          int
	redisPingTimeout time.Duration

	conf = server.NewConfig()
)

func newServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "server [options]",
		Short: "Start Zync server",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf.Relay.PingInterval = relayPingInterval.String()
			conf.Backend.PresenceStaleThreshold = presenceStaleThreshold.String()

			if redisAddr != "" {
				conf.Redis = &redis.Config{
					Addr:        redisAddr,
					Password:    redisPassword,
					DB:          redisDB,
					PingTimeout: redisPingTimeout.String(),
				}
			}

			// If config file is given, command-line arguments will be overwritten.
			if flagConfPath != "" {
				parsed, err := server.NewConfigFromFile(flagConfPath)
				if err != nil {
					return err
				}
				conf = parsed
			}

			if err := logging.SetLogLevel(flagLogLevel); err != nil {
				return err
			}

			z, err := server.New(conf)
			if err != nil {
				return err
			}

			if err := z.Start(); err != nil {
				return err
			}

			if code := handleSignal(z); code != 0 {
				return fmt.Errorf("exit code: %d", code)
			}

			return nil
		},
	}
}

func handleSignal(z *server.Zync) int {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	var sig os.Signal
	select {
	case s := <-sigCh:
		sig = s
	case <-z.ShutdownCh():
		// zync is already shutdown
		return 0
	}

	graceful := false
	if sig == syscall.SIGINT || sig == syscall.SIGTERM {
		graceful = true
	}

	gracefulCh := make(chan struct{})
	go func() {
		if err := z.Shutdown(graceful); err != nil {
			return
		}
		close(gracefulCh)
	}()

	select {
	case <-sigCh:
		return 1
	case <-time.After(gracefulTimeout):
		return 1
	case <-gracefulCh:
		return 0
	}
}

func init() {
	cmd := newServerCmd()
	cmd.Flags().StringVarP(
		&flagConfPath,
		"config",
		"c",
		"",
		"Config path",
	)
	cmd.Flags().StringVarP(
		&flagLogLevel,
		"log-level",
		"l",
		"info",
		"Log level: debug, info, warn, error, panic, fatal",
	)
	cmd.Flags().IntVar(
		&conf.Relay.Port,
		"relay-port",
		server.DefaultRelayPort,
		"Relay port",
	)
	cmd.Flags().DurationVar(
		&relayPingInterval,
		"relay-ping-interval",
		server.DefaultRelayPingInterval,
		"Interval of websocket keepalive pings sent to connected clients.",
	)
	cmd.Flags().Int64Var(
		&conf.Relay.MaxMessageBytes,
		"relay-max-message-bytes",
		server.DefaultRelayMaxMessageBytes,
		"Maximum inbound message size in bytes the relay will accept.",
	)
	cmd.Flags().IntVar(
		&conf.Profiling.Port,
		"profiling-port",
		server.DefaultProfilingPort,
		"Profiling port",
	)
	cmd.Flags().BoolVar(
		&conf.Profiling.EnablePprof,
		"enable-pprof",
		false,
		"Enable runtime profiling data via HTTP server.",
	)
	cmd.Flags().DurationVar(
		&presenceStaleThreshold,
		"presence-stale-threshold",
		server.DefaultPresenceStaleThreshold,
		"Window without activity after which a presence entry is dropped from roster snapshots.",
	)
	cmd.Flags().StringVar(
		&redisAddr,
		"redis-addr",
		"",
		"Redis address for cross-node room fan-out. Empty runs a single-node relay.",
	)
	cmd.Flags().StringVar(
		&redisPassword,
		"redis-password",
		"",
		"Redis password",
	)
	cmd.Flags().IntVar(
		&redisDB,
		"redis-db",
		0,
		"Redis database number",
	)
	cmd.Flags().DurationVar(
		&redisPingTimeout,
		"redis-ping-timeout",
		server.DefaultRedisPingTimeout,
		"Redis ping timeout",
	)
	cmd.Flags().StringVar(
		&conf.Backend.Hostname,
		"hostname",
		server.DefaultHostname,
		"Zync Server Hostname",
	)

	rootCmd.AddCommand(cmd)
}
