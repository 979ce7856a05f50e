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

// Package schema loads and models the externally supplied JSON protocol
// description that drives the decoder, encoder and formatter. The schema is
// treated as an immutable value once Load returns successfully.
package schema

import (
	"encoding/binary"
	"encoding/json"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Endian selects the byte order applied to every multi-byte scalar field.
type Endian string

const (
	LittleEndian Endian = "little"
	BigEndian    Endian = "big"
)

// ByteOrder returns the encoding/binary order matching the schema's endian.
func (e Endian) ByteOrder() binary.ByteOrder {
	if e == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// LengthKind distinguishes a field's declared length form.
type LengthKind uint8

const (
	LengthNone LengthKind = iota
	LengthFixed
	LengthRemaining
)

// Length is a field's declared length: an integer literal, the "remaining"
// sentinel, or absent (GetLength resolves absent/remaining to 0 at load time;
// the decoder fills "remaining" in from the message tail).
type Length struct {
	Kind  LengthKind
	Fixed int
}

// GetLength resolves the field's declared length the way the loader does:
// an integer literal passes through, "remaining" and absence both resolve to
// zero (the decoder recognizes zero as "use what's left in the message").
func (l Length) GetLength() int {
	if l.Kind == LengthFixed {
		return l.Fixed
	}
	return 0
}

// FieldDef is one field of a header, packet or user struct.
type FieldDef struct {
	Name       string
	Type       string
	Length     Length
	CountField string
	Element    string
}

type rawField struct {
	Name       string      `json:"name"`
	Type       string      `json:"type"`
	Length     interface{} `json:"length"`
	CountField string      `json:"count_field"`
	Element    string      `json:"element"`
}

func (f *FieldDef) UnmarshalJSON(data []byte) error {
	var raw rawField
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	f.Name = raw.Name
	f.Type = raw.Type
	f.CountField = raw.CountField
	f.Element = raw.Element
	switch v := raw.Length.(type) {
	case nil:
		f.Length = Length{Kind: LengthNone}
	case string:
		if v == "remaining" {
			f.Length = Length{Kind: LengthRemaining}
		} else {
			return errors.Errorf("field %q: unsupported length literal %q", raw.Name, v)
		}
	case float64:
		f.Length = Length{Kind: LengthFixed, Fixed: int(v)}
	default:
		return errors.Errorf("field %q: unsupported length value %T", raw.Name, raw.Length)
	}
	return nil
}

// TypeKind distinguishes a user-defined type.
type TypeKind uint8

const (
	TypeStruct TypeKind = iota
	TypeEnum
)

// TypeDef is a user-defined struct or enum referenced by name from field
// definitions.
type TypeDef struct {
	Name   string
	Kind   TypeKind
	Fields []FieldDef // struct

	BaseScalar string         // enum
	Values     map[string]int // enum symbol -> integer value
}

// PacketDef is one entry of the schema's packet table, keyed by numeric type
// code.
type PacketDef struct {
	Type   uint32
	Name   string
	Fields []FieldDef
}

// HeaderField is one named, offset-addressed header field.
type HeaderField struct {
	Name   string
	Type   string
	Offset int
}

// Header describes the fixed-position size/type fields every message
// starts with.
type Header struct {
	Fields    []HeaderField
	SizeField string
	TypeField string
	Length    int
}

func (h Header) find(name string) (HeaderField, bool) {
	for _, f := range h.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return HeaderField{}, false
}

// Size returns the header field carrying the message's declared size.
func (h Header) Size() (HeaderField, bool) { return h.find(h.SizeField) }

// TypeFieldDef returns the header field carrying the message's type code.
func (h Header) TypeFieldDef() (HeaderField, bool) { return h.find(h.TypeField) }

// TransformDef is one stage of the schema-declared transform pipeline.
type TransformDef struct {
	Kind    string
	Options map[string]any
}

// Schema is the immutable, fully resolved protocol description.
type Schema struct {
	Endian     Endian
	Pack       int
	Header     Header
	Types      map[string]TypeDef
	Packets    map[uint32]PacketDef
	Transforms []TransformDef
}

// PacketByType looks up a packet definition by its numeric type code.
func (s *Schema) PacketByType(t uint32) (PacketDef, bool) {
	p, ok := s.Packets[t]
	return p, ok
}

// ResolveType looks up a user-defined type by name.
func (s *Schema) ResolveType(name string) (TypeDef, bool) {
	t, ok := s.Types[name]
	return t, ok
}

// scalarWidth returns the on-wire width of a scalar type name, 0 if the name
// is not a fixed-width scalar.
func scalarWidth(t string) int {
	switch t {
	case "int8", "uint8", "bool":
		return 1
	case "int16", "uint16":
		return 2
	case "int32", "uint32", "float":
		return 4
	case "int64", "uint64", "double":
		return 8
	default:
		return 0
	}
}

// ScalarWidth exports scalarWidth for use by decoder/encoder packages.
func ScalarWidth(t string) (int, bool) {
	w := scalarWidth(t)
	return w, w > 0
}
