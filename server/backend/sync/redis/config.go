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

package redis

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEmptyAddr occurs when the redis address in the config is empty.
	ErrEmptyAddr = errors.New("redis address is empty")
)

// Config is the configuration for connecting the coordinator to Redis.
type Config struct {
	Addr        string `yaml:"Addr"`
	Password    string `yaml:"Password"`
	DB          int    `yaml:"DB"`
	PingTimeout string `yaml:"PingTimeout"`
}

// Validate validates this config.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return ErrEmptyAddr
	}

	if _, err := c.ParsePingTimeout(); err != nil {
		return err
	}
	return nil
}

// ParsePingTimeout returns the ping timeout as a time.Duration.
func (c *Config) ParsePingTimeout() (time.Duration, error) {
	timeout, err := time.ParseDuration(c.PingTimeout)
	if err != nil {
		return 0, fmt.Errorf(
			`parse PingTimeout "%s": %w`, c.PingTimeout, err,
		)
	}
	return timeout, nil
}
