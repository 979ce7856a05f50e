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
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetd/schemawire/common/socket"
	"github.com/packetd/schemawire/internal/pubsub"
	"github.com/packetd/schemawire/schema"
)

const fourByteHeaderSchema = `{
	"protocol": {"header": {"fields": [
		{"name":"size","type":"uint16","offset":0},
		{"name":"type","type":"uint16","offset":2}
	]}},
	"packets": [{"type": 257, "name": "PING", "fields": []}]
}`

func segment(srcPort, dstPort uint16, seq uint32, fin bool, payload []byte) *socket.TCPSegment {
	return &socket.TCPSegment{
		Time: time.Now(),
		Seq:  seq,
		FIN:  fin,
		Tuple: socket.Tuple{
			SrcPort: socket.Port(srcPort),
			DstPort: socket.Port(dstPort),
		},
		Payload: payload,
	}
}

func TestPoolDecodesScenario1AndPublishesToWatch(t *testing.T) {
	s, err := schema.LoadContent([]byte(fourByteHeaderSchema))
	require.NoError(t, err)

	ps := pubsub.New()
	queue := ps.Subscribe(4)
	defer ps.Unsubscribe(queue)

	p, err := NewPool(s, 7171, nil, ps, MetricsConfig{})
	require.NoError(t, err)

	seg := segment(5000, 7171, 0, false, []byte{0x04, 0x00, 0x01, 0x01})
	p.OnL4Packet(seg)

	assert.Equal(t, 1, p.ActiveConns())

	data, ok := queue.PopTimeout(time.Second)
	require.True(t, ok)
	line, ok := data.(string)
	require.True(t, ok)
	assert.Contains(t, line, "SEND")
	assert.Contains(t, line, "PING")
}

func TestPoolAssignsDirectionByFilterPort(t *testing.T) {
	s, err := schema.LoadContent([]byte(fourByteHeaderSchema))
	require.NoError(t, err)

	ps := pubsub.New()
	queue := ps.Subscribe(4)
	defer ps.Unsubscribe(queue)

	p, err := NewPool(s, 7171, nil, ps, MetricsConfig{})
	require.NoError(t, err)

	// server -> client: dst is the ephemeral client port, not the filter
	// port, so this is a RECV.
	seg := segment(7171, 5000, 0, false, []byte{0x04, 0x00, 0x01, 0x01})
	p.OnL4Packet(seg)

	data, ok := queue.PopTimeout(time.Second)
	require.True(t, ok)
	assert.Contains(t, data.(string), "RECV")
}

func TestPoolRemovesExpiredConnections(t *testing.T) {
	s, err := schema.LoadContent([]byte(fourByteHeaderSchema))
	require.NoError(t, err)

	p, err := NewPool(s, 7171, nil, nil, MetricsConfig{})
	require.NoError(t, err)

	seg := segment(5000, 7171, 0, false, []byte{0x04, 0x00, 0x01, 0x01})
	p.OnL4Packet(seg)
	require.Equal(t, 1, p.ActiveConns())

	p.RemoveExpired(0)
	assert.Equal(t, 0, p.ActiveConns())
}

func TestPoolClosesConnectionOnFIN(t *testing.T) {
	s, err := schema.LoadContent([]byte(fourByteHeaderSchema))
	require.NoError(t, err)

	p, err := NewPool(s, 7171, nil, nil, MetricsConfig{})
	require.NoError(t, err)

	// connstream.Conn is closed once every stream it has ever seen is
	// closed; a FIN on the only direction observed so far closes it.
	seg := segment(5000, 7171, 0, true, nil)
	p.OnL4Packet(seg)

	assert.Equal(t, 0, p.ActiveConns())
}

func TestPoolKeepsConnectionOpenUntilBothDirectionsFIN(t *testing.T) {
	s, err := schema.LoadContent([]byte(fourByteHeaderSchema))
	require.NoError(t, err)

	p, err := NewPool(s, 7171, nil, nil, MetricsConfig{})
	require.NoError(t, err)

	p.OnL4Packet(segment(5000, 7171, 0, false, []byte{0x04, 0x00, 0x01, 0x01}))
	p.OnL4Packet(segment(7171, 5000, 0, false, []byte{0x04, 0x00, 0x01, 0x01}))
	require.Equal(t, 1, p.ActiveConns())

	p.OnL4Packet(segment(5000, 7171, 4, true, nil))
	assert.Equal(t, 1, p.ActiveConns(), "other direction has not FIN'd yet")

	p.OnL4Packet(segment(7171, 5000, 4, true, nil))
	assert.Equal(t, 0, p.ActiveConns())
}

func TestPoolRecordsTupleLabelMetricsWhenEnabled(t *testing.T) {
	s, err := schema.LoadContent([]byte(fourByteHeaderSchema))
	require.NoError(t, err)

	metrics := MetricsConfig{Enabled: true, RequiredLabels: []string{"source.port", "destination.port"}}
	p, err := NewPool(s, 7171, nil, nil, metrics)
	require.NoError(t, err)
	require.NotNil(t, p.tupleLabels)

	before := testutil.ToFloat64(tupleMessagesTotal.WithLabelValues("", "5000", "", "7171"))
	p.OnL4Packet(segment(5000, 7171, 0, false, []byte{0x04, 0x00, 0x01, 0x01}))
	after := testutil.ToFloat64(tupleMessagesTotal.WithLabelValues("", "5000", "", "7171"))
	assert.Equal(t, before+1, after)
}

func TestTupleLabelCacheResolvesOnlyRequiredDimensions(t *testing.T) {
	c := newTupleLabelCache([]string{"source.port"})
	out := c.resolve(socket.Tuple{SrcPort: 5000, DstPort: 7171})
	assert.Equal(t, [4]string{"", "5000", "", ""}, out)

	// a second resolve of the same tuple hits the cache and returns the
	// same label values.
	out2 := c.resolve(socket.Tuple{SrcPort: 5000, DstPort: 7171})
	assert.Equal(t, out, out2)
}
