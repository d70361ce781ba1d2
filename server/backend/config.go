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

package backend

import (
	"fmt"
	"time"
)

// Config is the configuration of the backend.
type Config struct {
	// PresenceStaleThreshold is the window after which a roster entry
	// without activity is pruned. It is a tuning knob, not an invariant:
	// clients apply the same window when rendering.
	PresenceStaleThreshold string `yaml:"PresenceStaleThreshold"`

	// Hostname is the name of this server node in metrics and logs.
	Hostname string `yaml:"Hostname"`
}

// Validate validates this config.
func (c *Config) Validate() error {
	if _, err := c.ParsePresenceStaleThreshold(); err != nil {
		return err
	}
	return nil
}

// ParsePresenceStaleThreshold returns the stale threshold as a
// time.Duration.
func (c *Config) ParsePresenceStaleThreshold() (time.Duration, error) {
	threshold, err := time.ParseDuration(c.PresenceStaleThreshold)
	if err != nil {
		return 0, fmt.Errorf(
			`parse PresenceStaleThreshold "%s": %w`,
			c.PresenceStaleThreshold, err,
		)
	}
	return threshold, nil
}
