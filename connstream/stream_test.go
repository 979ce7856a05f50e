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

package connstream

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetd/schemawire/common/socket"
	"github.com/packetd/schemawire/reassembly"
)

func testTuple() socket.Tuple {
	return socket.Tuple{
		SrcIP:   socket.ToIPV4(net.ParseIP("10.0.0.1")),
		DstIP:   socket.ToIPV4(net.ParseIP("10.0.0.2")),
		SrcPort: 4000,
		DstPort: 7171,
	}
}

func drain(buf *reassembly.Buffer, out *[]byte) {
	n := buf.Available()
	view, ok := buf.Peek(n)
	if !ok {
		return
	}
	*out = append(*out, view...)
	buf.Consume(n)
}

func TestConnWriteRoutesToMatchingDirection(t *testing.T) {
	st := testTuple()
	conn := NewConn(st, NewTCPStream)

	var got []byte
	decode := func(buf *reassembly.Buffer) { drain(buf, &got) }

	seg := &socket.TCPSegment{Tuple: st, Seq: 0, Payload: []byte("hello")}
	require.NoError(t, conn.Write(seg, decode))
	assert.Equal(t, "hello", string(got))
}

func TestConnWriteRejectsUnrelatedTuple(t *testing.T) {
	st := testTuple()
	conn := NewConn(st, NewTCPStream)

	other := socket.Tuple{SrcPort: 1, DstPort: 2}
	seg := &socket.TCPSegment{Tuple: other, Payload: []byte("x")}
	err := conn.Write(seg, nil)
	assert.ErrorIs(t, err, ErrSocketNotMatch)
}

func TestConnIsClosedRequiresBothDirections(t *testing.T) {
	st := testTuple()
	conn := NewConn(st, NewTCPStream)

	// both directions must have been seen; a never-created stream does not
	// count as open.
	require.NoError(t, conn.Write(&socket.TCPSegment{Tuple: st.Mirror(), Payload: []byte("x")}, nil))
	require.NoError(t, conn.Write(&socket.TCPSegment{Tuple: st, FIN: true}, nil))
	assert.False(t, conn.IsClosed())

	require.NoError(t, conn.Write(&socket.TCPSegment{Tuple: st.Mirror(), FIN: true}, nil))
	assert.True(t, conn.IsClosed())
}

func TestConnIsClosedWithOnlyOneStreamEverSeen(t *testing.T) {
	st := testTuple()
	conn := NewConn(st, NewTCPStream)
	assert.True(t, conn.IsClosed(), "no streams created yet, nothing open")

	require.NoError(t, conn.Write(&socket.TCPSegment{Tuple: st, Payload: []byte("x")}, nil))
	assert.False(t, conn.IsClosed())
}

func TestTCPStreamWriteRejectsAfterClosed(t *testing.T) {
	st := testTuple()
	s := NewTCPStream(st)
	require.NoError(t, s.Write(&socket.TCPSegment{Tuple: st, FIN: true}, nil))
	err := s.Write(&socket.TCPSegment{Tuple: st, Payload: []byte("x")}, nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestTCPStreamDropsAlreadySeenBytes(t *testing.T) {
	st := testTuple()
	s := NewTCPStream(st)

	var all []byte
	decode := func(buf *reassembly.Buffer) { drain(buf, &all) }

	require.NoError(t, s.Write(&socket.TCPSegment{Tuple: st, Seq: 0, Payload: []byte("AAAA")}, decode))
	// retransmission of bytes already committed must be dropped entirely
	require.NoError(t, s.Write(&socket.TCPSegment{Tuple: st, Seq: 0, Payload: []byte("AAAA")}, decode))
	require.NoError(t, s.Write(&socket.TCPSegment{Tuple: st, Seq: 4, Payload: []byte("BBBB")}, decode))

	assert.Equal(t, "AAAABBBB", string(all))
}

func TestTCPStreamWritesOverlapTail(t *testing.T) {
	st := testTuple()
	s := NewTCPStream(st)

	var all []byte
	decode := func(buf *reassembly.Buffer) { drain(buf, &all) }

	require.NoError(t, s.Write(&socket.TCPSegment{Tuple: st, Seq: 0, Payload: []byte("AAAA")}, decode))
	// half-overlapping segment: first 2 bytes already seen, last 2 are new
	require.NoError(t, s.Write(&socket.TCPSegment{Tuple: st, Seq: 2, Payload: []byte("AACC")}, decode))

	assert.Equal(t, "AAAACC", string(all))
}

func TestTCPStreamStatsAccumulateThenReset(t *testing.T) {
	st := testTuple()
	s := NewTCPStream(st)

	require.NoError(t, s.Write(&socket.TCPSegment{Tuple: st, Seq: 0, Payload: []byte("AAAA")}, nil))
	require.NoError(t, s.Write(&socket.TCPSegment{Tuple: st, Seq: 4, Payload: []byte("BB")}, nil))

	stats := s.Stats()
	assert.Equal(t, uint64(2), stats.Packets)
	assert.Equal(t, uint64(6), stats.Bytes)

	// Stats() drains the counters
	assert.Equal(t, Stats{}, s.Stats())
}

func TestTCPStreamActiveAtAdvances(t *testing.T) {
	st := testTuple()
	s := NewTCPStream(st)
	before := s.ActiveAt()

	time.Sleep(time.Millisecond)
	require.NoError(t, s.Write(&socket.TCPSegment{Tuple: st, Payload: []byte("x")}, nil))
	assert.True(t, s.ActiveAt().After(before))
}
