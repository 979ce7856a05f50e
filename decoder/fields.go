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
	"encoding/binary"
	"math"
	"strings"

	"github.com/packetd/schemawire/fieldvalue"
	"github.com/packetd/schemawire/schema"
)

// decodeFields walks fields sequentially starting at offset within buf,
// producing an ordered Map value. It never fails: truncated or malformed
// input yields best-effort empty values for the remaining fields, exactly
// as the decoder's tolerance contract requires.
func decodeFields(s *schema.Schema, fields []schema.FieldDef, buf []byte, offset int) fieldvalue.Value {
	order := s.Endian.ByteOrder()
	m := fieldvalue.NewMap()

	for _, f := range fields {
		var v fieldvalue.Value
		v, offset = decodeOne(s, f, fields, m, buf, offset, order)
		m.Set(f.Name, v)
	}
	return m
}

func decodeOne(s *schema.Schema, f schema.FieldDef, siblings []schema.FieldDef, m fieldvalue.Value, buf []byte, offset int, order binary.ByteOrder) (fieldvalue.Value, int) {
	if w, ok := schema.ScalarWidth(f.Type); ok && f.Type != "array" {
		return decodeScalar(f.Type, buf, offset, order, w)
	}

	switch f.Type {
	case "string":
		return decodeString(f, buf, offset)
	case "bytes":
		return decodeBytes(f, buf, offset)
	case "array":
		return decodeArray(s, f, m, buf, offset, order)
	default:
		return decodeUserType(s, f, buf, offset, order)
	}
}

func decodeScalar(typ string, buf []byte, offset int, order binary.ByteOrder, width int) (fieldvalue.Value, int) {
	if offset < 0 || offset+width > len(buf) {
		return fieldvalue.Value{}, offset
	}
	window := buf[offset : offset+width]
	next := offset + width

	switch typ {
	case "bool":
		return fieldvalue.Bool(window[0] != 0), next
	case "int8":
		return fieldvalue.I64(int64(int8(window[0]))), next
	case "uint8":
		return fieldvalue.U64(uint64(window[0])), next
	case "int16":
		return fieldvalue.I64(int64(int16(order.Uint16(window)))), next
	case "uint16":
		return fieldvalue.U64(uint64(order.Uint16(window))), next
	case "int32":
		return fieldvalue.I64(int64(int32(order.Uint32(window)))), next
	case "uint32":
		return fieldvalue.U64(uint64(order.Uint32(window))), next
	case "float":
		return fieldvalue.F64(float64(math.Float32frombits(order.Uint32(window)))), next
	case "int64":
		return fieldvalue.I64(int64(order.Uint64(window))), next
	case "uint64":
		return fieldvalue.U64(order.Uint64(window)), next
	case "double":
		return fieldvalue.F64(math.Float64frombits(order.Uint64(window))), next
	default:
		return fieldvalue.Value{}, offset
	}
}

// resolveWindow clamps a declared length against the remaining buffer,
// matching the decoder's "L=0/overflow -> use remainder" rule for string
// and bytes fields.
func resolveWindow(declared, offset, bufLen int) int {
	remaining := bufLen - offset
	if remaining < 0 {
		return 0
	}
	if declared <= 0 || declared > remaining {
		return remaining
	}
	return declared
}

func decodeString(f schema.FieldDef, buf []byte, offset int) (fieldvalue.Value, int) {
	if offset < 0 || offset > len(buf) {
		return fieldvalue.String(""), offset
	}
	l := resolveWindow(f.Length.GetLength(), offset, len(buf))
	window := buf[offset : offset+l]

	text := window
	if i := strings.IndexByte(string(window), 0); i >= 0 {
		text = window[:i]
	}
	return fieldvalue.String(string(text)), offset + l
}

func decodeBytes(f schema.FieldDef, buf []byte, offset int) (fieldvalue.Value, int) {
	if offset < 0 || offset > len(buf) {
		return fieldvalue.Bytes(nil), offset
	}
	l := resolveWindow(f.Length.GetLength(), offset, len(buf))
	window := make([]byte, l)
	copy(window, buf[offset:offset+l])
	return fieldvalue.Bytes(window), offset + l
}

func decodeArray(s *schema.Schema, f schema.FieldDef, siblingMap fieldvalue.Value, buf []byte, offset int, order binary.ByteOrder) (fieldvalue.Value, int) {
	count := 0
	if f.CountField != "" {
		if v, ok := siblingMap.Get(f.CountField); ok {
			if n, err := v.AsInt64(); err == nil && n > 0 {
				count = int(n)
			}
		}
	}

	elemWidth, isScalar := schema.ScalarWidth(f.Element)
	elems := make([]fieldvalue.Value, 0, count)

	for i := 0; i < count; i++ {
		if isScalar {
			if offset+elemWidth > len(buf) {
				break
			}
			var v fieldvalue.Value
			v, offset = decodeScalar(f.Element, buf, offset, order, elemWidth)
			elems = append(elems, v)
			continue
		}

		td, ok := s.ResolveType(f.Element)
		if !ok {
			break
		}
		var v fieldvalue.Value
		v, offset = decodeUserTypeDef(s, td, buf, offset, order)
		elems = append(elems, v)
	}

	return fieldvalue.List(elems), offset
}

func decodeUserType(s *schema.Schema, f schema.FieldDef, buf []byte, offset int, order binary.ByteOrder) (fieldvalue.Value, int) {
	td, ok := s.ResolveType(f.Type)
	if !ok {
		return fieldvalue.Value{}, offset
	}
	return decodeUserTypeDef(s, td, buf, offset, order)
}

func decodeUserTypeDef(s *schema.Schema, td schema.TypeDef, buf []byte, offset int, order binary.ByteOrder) (fieldvalue.Value, int) {
	if td.Kind == schema.TypeEnum {
		w, ok := schema.ScalarWidth(td.BaseScalar)
		if !ok {
			return fieldvalue.Value{}, offset
		}
		return decodeScalar(td.BaseScalar, buf, offset, order, w)
	}

	start := offset
	sub := fieldvalue.NewMap()
	next := offset
	for _, sf := range td.Fields {
		var v fieldvalue.Value
		v, next = decodeOne(s, sf, td.Fields, sub, buf, next, order)
		sub.Set(sf.Name, v)
	}
	if next == start {
		return sub, next
	}
	return sub, next
}
