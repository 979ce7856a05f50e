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

package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/packetd/schemawire/common"
)

var (
	messagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: common.App,
			Subsystem: "engine",
			Name:      "messages_total",
			Help:      "decoded messages, by direction and packet name",
		},
		[]string{"direction", "name"},
	)

	unknownMessagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: common.App,
			Subsystem: "engine",
			Name:      "unknown_messages_total",
			Help:      "decoded messages whose type code had no packet definition",
		},
	)

	activeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: common.App,
			Subsystem: "engine",
			Name:      "active_connections",
			Help:      "TCP connections currently tracked by the connection pool",
		},
	)

	tupleMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: common.App,
			Subsystem: "engine",
			Name:      "tuple_messages_total",
			Help:      "decoded messages labeled by connection tuple, populated only when metrics.enabled is set",
		},
		[]string{"src_host", "src_port", "dst_host", "dst_port"},
	)
)
