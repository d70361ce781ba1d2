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

// Package prometheus provides a Prometheus metrics exporter.
package prometheus

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/zync-dev/zync/internal/version"
)

const (
	namespace      = "zync"
	eventTypeLabel = "event_type"
	hostnameLabel  = "hostname"
)

// Metrics manages the metric information that Zync measures.
type Metrics struct {
	registry *prometheus.Registry

	serverVersion *prometheus.GaugeVec

	connectionsTotal prometheus.Gauge
	roomsTotal       prometheus.Gauge

	relayedEventsTotal  *prometheus.CounterVec
	relayedBytesTotal   *prometheus.CounterVec
	presenceEventsTotal *prometheus.CounterVec
}

// NewMetrics creates a new instance of Metrics. The hostname identifies this
// server node on every relay and presence metric.
func NewMetrics(hostname string) (*Metrics, error) {
	reg := prometheus.NewRegistry()
	nodeLabels := prometheus.Labels{hostnameLabel: hostname}

	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("register process collector: %w", err)
	}
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("register go collector: %w", err)
	}

	metrics := &Metrics{
		registry: reg,
		serverVersion: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "version",
			Help:      "Which version is running. 1 for 'server_version' label with current version.",
		}, []string{"server_version"}),
		connectionsTotal: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "relay",
			Name:        "connections",
			Help:        "The number of websocket connections currently open.",
			ConstLabels: nodeLabels,
		}),
		roomsTotal: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "relay",
			Name:        "rooms",
			Help:        "The number of note rooms currently routed.",
			ConstLabels: nodeLabels,
		}),
		relayedEventsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "relay",
			Name:        "events_total",
			Help:        "The total count of events relayed to rooms.",
			ConstLabels: nodeLabels,
		}, []string{eventTypeLabel}),
		relayedBytesTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "relay",
			Name:        "payload_bytes_total",
			Help:        "The total payload bytes of relayed delta events.",
			ConstLabels: nodeLabels,
		}, []string{eventTypeLabel}),
		presenceEventsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "presence",
			Name:        "events_total",
			Help:        "The total count of presence events handled.",
			ConstLabels: nodeLabels,
		}, []string{eventTypeLabel}),
	}

	metrics.serverVersion.With(prometheus.Labels{
		"server_version": version.Version,
	}).Set(1)

	return metrics, nil
}

// AddConnection increments the open connection gauge.
func (m *Metrics) AddConnection() {
	m.connectionsTotal.Inc()
}

// RemoveConnection decrements the open connection gauge.
func (m *Metrics) RemoveConnection() {
	m.connectionsTotal.Dec()
}

// SetRooms sets the number of routed rooms.
func (m *Metrics) SetRooms(count int) {
	m.roomsTotal.Set(float64(count))
}

// ObserveRelayedEvent counts a relayed event and its payload size.
func (m *Metrics) ObserveRelayedEvent(eventType string, payloadBytes int) {
	m.relayedEventsTotal.With(prometheus.Labels{eventTypeLabel: eventType}).Inc()
	if payloadBytes > 0 {
		m.relayedBytesTotal.With(prometheus.Labels{
			eventTypeLabel: eventType,
		}).Add(float64(payloadBytes))
	}
}

// ObservePresenceEvent counts a handled presence event.
func (m *Metrics) ObservePresenceEvent(eventType string) {
	m.presenceEventsTotal.With(prometheus.Labels{eventTypeLabel: eventType}).Inc()
}

// Registry returns the registry of this metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
