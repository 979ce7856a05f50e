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

// Package encoder mirrors the decoder's field-type table to produce the
// exact byte sequence the decoder would have consumed, back-patching the
// declared size field after the full message is written. It deliberately
// does not re-apply the schema's transform pipeline: the replay driver
// resends the plaintext bytes a prior capture already decoded (see
// DESIGN.md and spec §4.5/§9).
package encoder

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/packetd/schemawire/fieldvalue"
	"github.com/packetd/schemawire/schema"
)

// Encoder produces wire bytes for a named packet and field map against a
// fixed schema.
type Encoder struct {
	schema *schema.Schema
}

// New builds an Encoder bound to a schema.
func New(s *schema.Schema) *Encoder {
	return &Encoder{schema: s}
}

// Encode looks up the packet by name and writes fields in declaration
// order, then back-patches the size field.
func (e *Encoder) Encode(packetName string, fields fieldvalue.Value) ([]byte, error) {
	packet, ok := e.findPacket(packetName)
	if !ok {
		return nil, errors.Errorf("encoder: unknown packet %q", packetName)
	}

	order := e.schema.Endian.ByteOrder()
	buf := make([]byte, 0, 64)
	buf = encodeFields(e.schema, packet.Fields, fields, buf, order)

	sizeField, ok := e.schema.Header.Size()
	if !ok {
		return nil, errors.New("encoder: schema has no size field")
	}
	if err := patchSize(buf, sizeField, order, len(buf)); err != nil {
		return nil, err
	}

	return buf, nil
}

func (e *Encoder) findPacket(name string) (schema.PacketDef, bool) {
	for _, p := range e.schema.Packets {
		if p.Name == name {
			return p, true
		}
	}
	return schema.PacketDef{}, false
}

func patchSize(buf []byte, f schema.HeaderField, order binary.ByteOrder, size int) error {
	w, ok := schema.ScalarWidth(f.Type)
	if !ok || f.Offset+w > len(buf) {
		return errors.Errorf("encoder: size field %q does not fit in encoded message", f.Name)
	}
	window := buf[f.Offset : f.Offset+w]
	switch w {
	case 1:
		window[0] = byte(size)
	case 2:
		order.PutUint16(window, uint16(size))
	case 4:
		order.PutUint32(window, uint32(size))
	}
	return nil
}
