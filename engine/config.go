// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package engine owns the connection map that sits between the sniffer's
// TCP segments and the schema-driven decoder: it dispatches each segment to
// the right connstream.Conn by 4-tuple, assigns SEND/RECV direction with the
// filter-port heuristic, and fans the resulting messages out to a log sink
// and the live /watch subscribers.
package engine

import "time"

// SinkConfig controls how decoded messages are rendered to a log.
type SinkConfig struct {
	// Console, when set, prints the abbreviated (Console) rendering of
	// every decoded message to stdout.
	Console bool `config:"console"`

	// Filename, when non-empty, appends the full (File) rendering of
	// every decoded message to a rotated log file.
	Filename   string `config:"filename"`
	MaxSize    int    `config:"maxSize"`
	MaxBackups int    `config:"maxBackups"`
	MaxAge     int    `config:"maxAge"`
}

// Config describes how the engine should track connections for a single
// schema-declared protocol.
type Config struct {
	// Port is the filter port used both to scope capture and to assign
	// message direction: a packet whose destination port is Port is SEND,
	// otherwise RECV.
	Port uint16 `config:"port"`

	// IdleTimeout is how long a connection may go without a packet before
	// the sweep (RemoveExpired) considers it abandoned.
	IdleTimeout time.Duration `config:"idleTimeout"`

	Sink SinkConfig `config:"sink"`

	Metrics MetricsConfig `config:"metrics"`
}

// MetricsConfig controls the optional per-tuple message counter. It is off
// by default: labeling every message by source/destination host and port
// is unbounded cardinality on a host that talks to many peers, so an
// operator opts in to exactly the label dimensions they need.
type MetricsConfig struct {
	Enabled bool `config:"enabled"`

	// RequiredLabels selects which tuple fields become counter labels.
	// Recognized values: source.host, source.port, destination.host,
	// destination.port.
	RequiredLabels []string `config:"requiredLabels"`
}
