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

package decoder

import (
	"fmt"

	"github.com/packetd/schemawire/fieldvalue"
	"github.com/packetd/schemawire/reassembly"
	"github.com/packetd/schemawire/schema"
	"github.com/packetd/schemawire/transform"
)

// maxDeclaredSize is the desync guard from the data model: a declared size
// outside (0, maxDeclaredSize] is treated as a corrupt frame and the
// decoder silently refuses to advance, per the reference behavior
// documented as an open question rather than a mandated resync strategy.
const maxDeclaredSize = 65535

// Decoder holds no buffer of its own: each Next call works on the
// reassembly.Buffer passed in. Its only mutable state is the connection's
// transform.Context. It is not safe for concurrent use; the concurrency
// model calls for one decoding goroutine per connection.
type Decoder struct {
	schema   *schema.Schema
	pipeline *transform.Pipeline
	ctx      *transform.Context
}

// New builds a Decoder bound to a schema and its transform pipeline. ctx is
// the connection's shared transform context; pass the same ctx to every
// Decoder sharing a connection so a key extracted by one stage
// is visible to later messages.
func New(s *schema.Schema, pipeline *transform.Pipeline, ctx *transform.Context) *Decoder {
	return &Decoder{schema: s, pipeline: pipeline, ctx: ctx}
}

// Next runs one iteration of the decode loop against buf. It returns
// (nil, false) when there is not yet a complete frame buffered, in which
// case it has consumed nothing and the caller should wait for more bytes.
func (d *Decoder) Next(buf *reassembly.Buffer) (*Message, bool) {
	headerLen := d.schema.Header.Length
	if buf.Available() < headerLen {
		return nil, false
	}

	header, ok := buf.Peek(headerLen)
	if !ok {
		return nil, false
	}

	sizeField, ok := d.schema.Header.Size()
	if !ok {
		return nil, false
	}
	size, ok := readHeaderInt(header, sizeField, d.schema.Endian)
	if !ok || size <= 0 || size > maxDeclaredSize {
		return nil, false
	}

	if buf.Available() < size {
		return nil, false
	}

	frame, ok := buf.Peek(size)
	if !ok {
		return nil, false
	}
	message := make([]byte, size)
	copy(message, frame)
	buf.Consume(size)

	message = d.pipeline.Apply(message, d.ctx)

	typeField, ok := d.schema.Header.TypeFieldDef()
	if !ok {
		return &Message{Name: "Unknown(0)", Type: 0, Fields: fieldvalue.NewMap(), Raw: message}, true
	}
	typeCode, ok := readHeaderInt(message, typeField, d.schema.Endian)
	if !ok {
		typeCode = 0
	}

	packet, ok := d.schema.PacketByType(uint32(typeCode))
	if !ok {
		return &Message{
			Name:   fmt.Sprintf("Unknown(%d)", typeCode),
			Type:   uint32(typeCode),
			Fields: fieldvalue.NewMap(),
			Raw:    message,
		}, true
	}

	fields := decodeFields(d.schema, packet.Fields, message, 0)
	return &Message{Name: packet.Name, Type: uint32(typeCode), Fields: fields, Raw: message}, true
}

// DecodeAll drains every complete frame currently available in buf.
func (d *Decoder) DecodeAll(buf *reassembly.Buffer) []*Message {
	var out []*Message
	for {
		msg, ok := d.Next(buf)
		if !ok {
			return out
		}
		out = append(out, msg)
	}
}

func readHeaderInt(buf []byte, f schema.HeaderField, endian schema.Endian) (int, bool) {
	w, ok := schema.ScalarWidth(f.Type)
	if !ok || f.Offset < 0 || f.Offset+w > len(buf) {
		return 0, false
	}
	order := endian.ByteOrder()
	window := buf[f.Offset : f.Offset+w]
	switch w {
	case 1:
		return int(window[0]), true
	case 2:
		return int(order.Uint16(window)), true
	case 4:
		return int(order.Uint32(window)), true
	default:
		return 0, false
	}
}
