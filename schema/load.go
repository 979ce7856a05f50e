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

package schema

import (
	"encoding/json"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

type rawDoc struct {
	Protocol *rawProtocol `json:"protocol"`

	Transforms []rawTransform        `json:"transforms"`
	Types      map[string]rawType    `json:"types"`
	Packets    []rawPacket           `json:"packets"`
}

type rawProtocol struct {
	Endian string     `json:"endian"`
	Pack   int        `json:"pack"`
	Header *rawHeader `json:"header"`
}

type rawHeader struct {
	SizeField string          `json:"size_field"`
	TypeField string          `json:"type_field"`
	Fields    []rawHeaderItem `json:"fields"`
}

type rawHeaderItem struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Offset int    `json:"offset"`
}

type rawTransform struct {
	Kind    string         `json:"kind"`
	Options map[string]any `json:"options"`
}

type rawType struct {
	Kind       string         `json:"kind"`
	Fields     []FieldDef     `json:"fields"`
	BaseScalar string         `json:"base"`
	Values     map[string]int `json:"values"`
}

type rawPacket struct {
	Type   uint32     `json:"type"`
	Name   string     `json:"name"`
	Fields []FieldDef `json:"fields"`
}

// Load reads a protocol description from path and produces an immutable,
// validated Schema.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read schema file %q", path)
	}
	return LoadContent(data)
}

// LoadContent parses raw schema JSON bytes, as Load does for a file path.
func LoadContent(data []byte) (*Schema, error) {
	var doc rawDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "decode schema json")
	}
	if doc.Protocol == nil {
		return nil, errors.New("schema missing required \"protocol\" section")
	}

	s := &Schema{
		Endian:  LittleEndian,
		Pack:    1,
		Types:   make(map[string]TypeDef),
		Packets: make(map[uint32]PacketDef),
	}

	if doc.Protocol.Endian == string(BigEndian) {
		s.Endian = BigEndian
	}
	if doc.Protocol.Pack != 0 {
		s.Pack = doc.Protocol.Pack
	}

	s.Header = buildHeader(doc.Protocol.Header)

	for _, t := range doc.Transforms {
		s.Transforms = append(s.Transforms, TransformDef{Kind: t.Kind, Options: t.Options})
	}

	for name, rt := range doc.Types {
		td := TypeDef{Name: name}
		switch rt.Kind {
		case "enum":
			td.Kind = TypeEnum
			td.BaseScalar = rt.BaseScalar
			td.Values = rt.Values
		default:
			td.Kind = TypeStruct
			td.Fields = rt.Fields
		}
		s.Types[name] = td
	}

	for _, rp := range doc.Packets {
		s.Packets[rp.Type] = PacketDef{Type: rp.Type, Name: rp.Name, Fields: rp.Fields}
	}

	var errs error
	if err := validate(s); err != nil {
		errs = multierror.Append(errs, err)
	}
	if errs != nil {
		return nil, errs
	}
	return s, nil
}

func buildHeader(h *rawHeader) Header {
	sizeField := "size"
	typeField := "type"
	var fields []HeaderField

	if h != nil {
		if h.SizeField != "" {
			sizeField = h.SizeField
		}
		if h.TypeField != "" {
			typeField = h.TypeField
		}
		for _, f := range h.Fields {
			fields = append(fields, HeaderField{Name: f.Name, Type: f.Type, Offset: f.Offset})
		}
	}

	if len(fields) == 0 {
		fields = []HeaderField{
			{Name: sizeField, Type: "uint32", Offset: 0},
			{Name: typeField, Type: "uint32", Offset: 4},
		}
	}

	length := 0
	for _, f := range fields {
		if w, ok := ScalarWidth(f.Type); ok {
			if end := f.Offset + w; end > length {
				length = end
			}
		}
	}

	return Header{Fields: fields, SizeField: sizeField, TypeField: typeField, Length: length}
}

// validate checks the decoding-required invariants from the data model:
// every count_field precedes its user, every user-type name resolves, and
// the size field is an integer scalar of at most 32 bits. Failures
// accumulate into one reported error via go-multierror rather than failing
// on the first problem, so a schema author sees every mistake at once.
func validate(s *Schema) error {
	var errs error

	sizeField, ok := s.Header.Size()
	if !ok {
		errs = multierror.Append(errs, errors.Errorf("header: size field %q not declared", s.Header.SizeField))
	} else if w, ok := ScalarWidth(sizeField.Type); !ok || w > 4 {
		errs = multierror.Append(errs, errors.Errorf("header: size field %q must be an integer scalar of at most 32 bits, got %q", sizeField.Name, sizeField.Type))
	}

	if _, ok := s.Header.TypeFieldDef(); !ok {
		errs = multierror.Append(errs, errors.Errorf("header: type field %q not declared", s.Header.TypeField))
	}

	for name, t := range s.Types {
		if t.Kind == TypeStruct {
			if err := validateFields(s, t.Fields); err != nil {
				errs = multierror.Append(errs, errors.Wrapf(err, "type %q", name))
			}
		}
	}

	for _, p := range s.Packets {
		if err := validateFields(s, p.Fields); err != nil {
			errs = multierror.Append(errs, errors.Wrapf(err, "packet %q", p.Name))
		}
	}

	return errs
}

func validateFields(s *Schema, fields []FieldDef) error {
	var errs error
	seen := make(map[string]bool)
	for _, f := range fields {
		if f.Type == "array" {
			if f.CountField == "" {
				errs = multierror.Append(errs, errors.Errorf("field %q: array requires count_field", f.Name))
			} else if !seen[f.CountField] {
				errs = multierror.Append(errs, errors.Errorf("field %q: count_field %q must be declared before its user", f.Name, f.CountField))
			}
		}
		if !isBuiltinType(f.Type) {
			if _, ok := s.ResolveType(f.Type); !ok {
				errs = multierror.Append(errs, errors.Errorf("field %q: unresolved user type %q", f.Name, f.Type))
			}
		}
		seen[f.Name] = true
	}
	return errs
}

func isBuiltinType(t string) bool {
	switch t {
	case "int8", "uint8", "bool", "int16", "uint16", "int32", "uint32", "float",
		"int64", "uint64", "double", "string", "bytes", "array":
		return true
	default:
		return false
	}
}
