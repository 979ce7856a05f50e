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
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/packetd/schemawire/common/socket"
	"github.com/packetd/schemawire/connstream"
	"github.com/packetd/schemawire/decoder"
	"github.com/packetd/schemawire/internal/pubsub"
	"github.com/packetd/schemawire/internal/rescue"
	"github.com/packetd/schemawire/logformat"
	"github.com/packetd/schemawire/schema"
	"github.com/packetd/schemawire/transform"
)

// Pool is the connection map named in spec.md §3/§5: "created on first
// payload arrival for a 4-tuple; destroyed on explicit idle-expiry sweep".
// It is mutated only from the capture thread that calls OnL4Packet and
// RemoveExpired (the concurrency model calls for both to run on the same
// thread, or under one mutex guarding the map -- this Pool does the latter
// so a caller that runs the sweep on a ticker goroutine stays correct).
type Pool struct {
	mut    sync.RWMutex
	conns  map[socket.Tuple]*conn
	frozen *socket.TTLCache

	schema     *schema.Schema
	pipeline   *transform.Pipeline
	filterPort socket.Port

	sink   *Sink
	pubsub *pubsub.PubSub
	fmtr   *logformat.Formatter

	metricsEnabled bool
	tupleLabels    *tupleLabelCache
}

// NewPool builds a Pool bound to a loaded schema. filterPort is the
// capture filter port used by the Direction heuristic (glossary: "if
// dstPort is the filter port, direction is SEND; else RECV"). metrics
// controls the optional per-tuple message counter; its zero value leaves
// the counter disabled.
func NewPool(s *schema.Schema, filterPort uint16, sink *Sink, ps *pubsub.PubSub, metrics MetricsConfig) (*Pool, error) {
	pipeline, err := transform.Build(s.Transforms)
	if err != nil {
		return nil, errors.Wrap(err, "build transform pipeline")
	}

	return &Pool{
		conns:          make(map[socket.Tuple]*conn),
		frozen:         socket.NewTTLCache(socket.TCPMsl * 2),
		schema:         s,
		pipeline:       pipeline,
		filterPort:     socket.Port(filterPort),
		sink:           sink,
		pubsub:         ps,
		fmtr:           logformat.New(s),
		metricsEnabled: metrics.Enabled,
		tupleLabels:    newTupleLabelCache(metrics.RequiredLabels),
	}, nil
}

// direction applies the filter-port heuristic to a 4-tuple.
func (p *Pool) direction(st socket.Tuple) logformat.Direction {
	if st.DstPort == p.filterPort {
		return logformat.Send
	}
	return logformat.Recv
}

// OnL4Packet dispatches one TCP segment to its connection, creating the
// connection on first sight, and drains every complete frame the write
// makes available. It never panics: a panicking decode path is isolated by
// internal/rescue and simply drops that packet, per spec.md §7's "no error
// escapes the core as an exception".
func (p *Pool) OnL4Packet(seg *socket.TCPSegment) {
	defer rescue.HandleCrash()

	st := seg.Tuple
	if p.frozen.Has(st) {
		return
	}

	c := p.getOrCreate(st)
	dir := p.direction(st)

	err := c.onL4Packet(seg, func(msg *decoder.Message) {
		p.handleMessage(st, dir, msg)
	})
	if err != nil && errors.Is(err, connstream.ErrClosed) {
		p.remove(st)
		return
	}
	if c.isClosed() {
		p.remove(st)
	}
}

func (p *Pool) getOrCreate(st socket.Tuple) *conn {
	p.mut.RLock()
	c := p.lookupLocked(st)
	p.mut.RUnlock()
	if c != nil {
		return c
	}

	p.mut.Lock()
	defer p.mut.Unlock()
	if c := p.lookupLocked(st); c != nil {
		return c
	}

	dec := decoder.New(p.schema, p.pipeline, transform.NewContext())
	c = newConn(st, dec)
	p.conns[st] = c
	p.conns[st.Mirror()] = c
	activeConnections.Set(float64(len(p.conns) / 2))
	return c
}

func (p *Pool) lookupLocked(st socket.Tuple) *conn {
	if c, ok := p.conns[st]; ok {
		return c
	}
	if c, ok := p.conns[st.Mirror()]; ok {
		return c
	}
	return nil
}

// remove deletes a connection's both tuple entries and freezes the tuple
// against immediate recreation by a straggling ACK-only segment, matching
// the TTL rationale documented on socket.TTLCache / protocol.connPool in
// the teacher.
func (p *Pool) remove(st socket.Tuple) {
	p.mut.Lock()
	defer p.mut.Unlock()

	if _, ok := p.conns[st]; !ok {
		return
	}
	delete(p.conns, st)
	delete(p.conns, st.Mirror())
	p.frozen.Set(st)
	activeConnections.Set(float64(len(p.conns) / 2))
}

// RemoveExpired sweeps connections that have not seen a packet in ttl, per
// spec.md §3's "destroyed on explicit idle-expiry sweep".
func (p *Pool) RemoveExpired(ttl time.Duration) {
	p.mut.Lock()
	defer p.mut.Unlock()

	now := time.Now()
	seen := make(map[socket.Tuple]bool, len(p.conns))
	for st, c := range p.conns {
		if seen[st.Mirror()] {
			continue
		}
		seen[st] = true
		if c.lastActiveAt().Add(ttl).Before(now) {
			delete(p.conns, st)
			delete(p.conns, st.Mirror())
		}
	}
	activeConnections.Set(float64(len(p.conns) / 2))
}

// ActiveConns reports the number of tracked connections (both tuple
// entries count as one connection).
func (p *Pool) ActiveConns() int {
	p.mut.RLock()
	defer p.mut.RUnlock()
	return len(p.conns) / 2
}

// Close releases the pool's resources. Safe to call once at shutdown.
func (p *Pool) Close() {
	p.frozen.Close()
	if p.sink != nil {
		p.sink.Close()
	}
}

func (p *Pool) handleMessage(st socket.Tuple, dir logformat.Direction, msg *decoder.Message) {
	messagesTotal.WithLabelValues(string(dir), msg.Name).Inc()
	if strings.HasPrefix(msg.Name, "Unknown(") {
		unknownMessagesTotal.Inc()
	}
	if p.metricsEnabled {
		lbs := p.tupleLabels.resolve(st)
		tupleMessagesTotal.WithLabelValues(lbs[0], lbs[1], lbs[2], lbs[3]).Inc()
	}

	ts := time.Now()
	if p.sink != nil {
		p.sink.Write(msg, dir, ts, st.String())
	}
	if p.pubsub != nil {
		p.pubsub.Publish(p.fmtr.Console(msg, dir, ts, st.String()))
	}
}
