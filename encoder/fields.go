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

package encoder

import (
	"encoding/binary"
	"math"

	"github.com/packetd/schemawire/fieldvalue"
	"github.com/packetd/schemawire/schema"
)

func encodeFields(s *schema.Schema, fields []schema.FieldDef, values fieldvalue.Value, buf []byte, order binary.ByteOrder) []byte {
	for _, f := range fields {
		v, _ := values.Get(f.Name)
		buf = encodeOne(s, f, v, buf, order)
	}
	return buf
}

func encodeOne(s *schema.Schema, f schema.FieldDef, v fieldvalue.Value, buf []byte, order binary.ByteOrder) []byte {
	if w, ok := schema.ScalarWidth(f.Type); ok && f.Type != "array" {
		return encodeScalar(f.Type, v, buf, order, w)
	}

	switch f.Type {
	case "string":
		return encodeString(f, v, buf)
	case "bytes":
		return encodeBytes(f, v, buf)
	case "array":
		return encodeArray(s, f, v, buf, order)
	default:
		return encodeUserType(s, f.Type, v, buf, order)
	}
}

func encodeScalar(typ string, v fieldvalue.Value, buf []byte, order binary.ByteOrder, width int) []byte {
	window := make([]byte, width)

	switch typ {
	case "bool":
		b, _ := v.AsInt64()
		if b != 0 {
			window[0] = 1
		}
	case "int8", "uint8":
		n, _ := v.AsInt64()
		window[0] = byte(n)
	case "int16", "uint16":
		n, _ := v.AsInt64()
		order.PutUint16(window, uint16(n))
	case "int32", "uint32":
		n, _ := v.AsInt64()
		order.PutUint32(window, uint32(n))
	case "float":
		f, _ := v.AsFloat64()
		order.PutUint32(window, math.Float32bits(float32(f)))
	case "int64", "uint64":
		n, _ := v.AsInt64()
		order.PutUint64(window, uint64(n))
	case "double":
		f, _ := v.AsFloat64()
		order.PutUint64(window, math.Float64bits(f))
	}
	return append(buf, window...)
}

func encodeString(f schema.FieldDef, v fieldvalue.Value, buf []byte) []byte {
	l := f.Length.GetLength()
	s := v.AsString()
	window := make([]byte, l)
	n := copy(window, s)
	if l > 0 && n >= l {
		// truncate to length-1 and NUL-terminate, per the encoder's mirror
		// of the decoder's NUL-terminated string contract
		copy(window, s[:l-1])
		window[l-1] = 0
	}
	return append(buf, window...)
}

func encodeBytes(f schema.FieldDef, v fieldvalue.Value, buf []byte) []byte {
	l := f.Length.GetLength()
	raw := v.RawBytes()
	window := make([]byte, l)
	copy(window, raw)
	return append(buf, window...)
}

func encodeArray(s *schema.Schema, f schema.FieldDef, v fieldvalue.Value, buf []byte, order binary.ByteOrder) []byte {
	elemWidth, isScalar := schema.ScalarWidth(f.Element)
	for _, elem := range v.List() {
		if isScalar {
			buf = encodeScalar(f.Element, elem, buf, order, elemWidth)
			continue
		}
		buf = encodeUserType(s, f.Element, elem, buf, order)
	}
	return buf
}

func encodeUserType(s *schema.Schema, typeName string, v fieldvalue.Value, buf []byte, order binary.ByteOrder) []byte {
	td, ok := s.ResolveType(typeName)
	if !ok {
		return buf
	}
	if td.Kind == schema.TypeEnum {
		w, ok := schema.ScalarWidth(td.BaseScalar)
		if !ok {
			return buf
		}
		return encodeScalar(td.BaseScalar, v, buf, order, w)
	}
	return encodeFields(s, td.Fields, v, buf, order)
}
