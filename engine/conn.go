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
	"sync"
	"time"

	"github.com/packetd/schemawire/common/socket"
	"github.com/packetd/schemawire/connstream"
	"github.com/packetd/schemawire/decoder"
	"github.com/packetd/schemawire/reassembly"
)

// conn tracks one TCP connection (both directions) and the single Decoder
// bound to it. A Decoder carries no buffer state of its own -- only the
// schema, the transform pipeline and the connection's shared
// transform.Context -- so one Decoder instance safely serves both
// directions' reassembly.Buffers, which connstream.Conn owns internally.
// This is the one place the Go port departs from spec.md's "decoder is
// stateful over one reassembly buffer" description: that line describes the
// abstract algorithm's one-call-at-a-time shape, not a hard 1:1 object
// relationship, and keeping a single Decoder lets the shared
// transform.Context (spec.md §3: "Lifetime is per-connection, not
// per-message") live in one obvious place instead of two.
type conn struct {
	mut      sync.Mutex
	stream   *connstream.Conn
	dec      *decoder.Decoder
	activeAt time.Time
}

func newConn(st socket.Tuple, dec *decoder.Decoder) *conn {
	return &conn{
		stream:   connstream.NewConn(st, connstream.NewTCPStream),
		dec:      dec,
		activeAt: time.Now(),
	}
}

// onL4Packet writes seg into the matching directional stream and runs the
// decode loop against whatever the write makes available, invoking handle
// once per fully framed message.
func (c *conn) onL4Packet(seg socket.L4Packet, handle func(*decoder.Message)) error {
	c.mut.Lock()
	defer c.mut.Unlock()

	c.activeAt = time.Now()
	return c.stream.Write(seg, func(buf *reassembly.Buffer) {
		for _, msg := range c.dec.DecodeAll(buf) {
			handle(msg)
		}
	})
}

func (c *conn) isClosed() bool {
	c.mut.Lock()
	defer c.mut.Unlock()
	return c.stream.IsClosed()
}

func (c *conn) lastActiveAt() time.Time {
	c.mut.Lock()
	defer c.mut.Unlock()
	return c.activeAt
}
