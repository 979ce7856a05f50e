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

// Package fieldvalue implements the tagged-variant value type used to hold
// decoded field values of heterogeneous schema-declared types without
// resorting to interface{} everywhere a field crosses a package boundary.
package fieldvalue

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Kind identifies which variant of Value is populated.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindI64
	KindU64
	KindF64
	KindBool
	KindString
	KindBytes
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindI64:
		return "i64"
	case KindU64:
		return "u64"
	case KindF64:
		return "f64"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "invalid"
	}
}

// Value is a tagged union over the field types a schema-driven decode can
// produce. Zero value is KindInvalid.
type Value struct {
	kind Kind

	i64 int64
	u64 uint64
	f64 float64
	b   bool
	str string
	raw []byte

	list []Value
	keys []string
	vals []Value
}

func I64(v int64) Value     { return Value{kind: KindI64, i64: v} }
func U64(v uint64) Value    { return Value{kind: KindU64, u64: v} }
func F64(v float64) Value   { return Value{kind: KindF64, f64: v} }
func Bool(v bool) Value     { return Value{kind: KindBool, b: v} }
func String(v string) Value { return Value{kind: KindString, str: v} }
func Bytes(v []byte) Value  { return Value{kind: KindBytes, raw: v} }
func List(v []Value) Value  { return Value{kind: KindList, list: v} }

// NewMap builds an ordered Map value. Field order is preserved on purpose:
// the formatter renders fields in schema declaration order.
func NewMap() Value {
	return Value{kind: KindMap}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsValid() bool { return v.kind != KindInvalid }

// Set inserts or replaces a key in a Map value. Panics if v is not a Map,
// mirroring the decoder's invariant that it only ever mutates freshly
// constructed maps.
func (v *Value) Set(key string, val Value) {
	if v.kind != KindMap {
		panic("fieldvalue: Set on non-map value")
	}
	for i, k := range v.keys {
		if k == key {
			v.vals[i] = val
			return
		}
	}
	v.keys = append(v.keys, key)
	v.vals = append(v.vals, val)
}

// Get looks up a key in a Map value.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindMap {
		return Value{}, false
	}
	for i, k := range v.keys {
		if k == key {
			return v.vals[i], true
		}
	}
	return Value{}, false
}

// Keys returns the Map's keys in insertion order.
func (v Value) Keys() []string {
	if v.kind != KindMap {
		return nil
	}
	return v.keys
}

// Items returns the Map's keys and values in insertion order.
func (v Value) Items() []struct {
	Key string
	Val Value
} {
	if v.kind != KindMap {
		return nil
	}
	out := make([]struct {
		Key string
		Val Value
	}, 0, len(v.keys))
	for i, k := range v.keys {
		out = append(out, struct {
			Key string
			Val Value
		}{Key: k, Val: v.vals[i]})
	}
	return out
}

// List returns the elements of a List value.
func (v Value) List() []Value {
	if v.kind != KindList {
		return nil
	}
	return v.list
}

// AsInt64 coerces the value to an int64, as far as the variant allows.
func (v Value) AsInt64() (int64, error) {
	switch v.kind {
	case KindI64:
		return v.i64, nil
	case KindU64:
		return int64(v.u64), nil
	case KindF64:
		return int64(v.f64), nil
	case KindBool:
		if v.b {
			return 1, nil
		}
		return 0, nil
	case KindString:
		n, err := strconv.ParseInt(strings.TrimSpace(v.str), 10, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "cannot coerce string %q to int64", v.str)
		}
		return n, nil
	default:
		return 0, errors.Errorf("cannot coerce %s to int64", v.kind)
	}
}

// AsUint64 coerces the value to a uint64.
func (v Value) AsUint64() (uint64, error) {
	switch v.kind {
	case KindU64:
		return v.u64, nil
	case KindI64:
		return uint64(v.i64), nil
	case KindF64:
		return uint64(v.f64), nil
	default:
		n, err := v.AsInt64()
		if err != nil {
			return 0, err
		}
		return uint64(n), nil
	}
}

// AsFloat64 coerces the value to a float64.
func (v Value) AsFloat64() (float64, error) {
	switch v.kind {
	case KindF64:
		return v.f64, nil
	case KindI64:
		return float64(v.i64), nil
	case KindU64:
		return float64(v.u64), nil
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.str), 64)
		if err != nil {
			return 0, errors.Wrapf(err, "cannot coerce string %q to float64", v.str)
		}
		return f, nil
	default:
		return 0, errors.Errorf("cannot coerce %s to float64", v.kind)
	}
}

// AsString renders the value as a human-readable string, used by the
// console/file formatters.
func (v Value) AsString() string {
	switch v.kind {
	case KindI64:
		return strconv.FormatInt(v.i64, 10)
	case KindU64:
		return strconv.FormatUint(v.u64, 10)
	case KindF64:
		return strconv.FormatFloat(v.f64, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindString:
		return v.str
	case KindBytes:
		return fmt.Sprintf("%x", v.raw)
	case KindList:
		parts := make([]string, 0, len(v.list))
		for _, e := range v.list {
			parts = append(parts, e.AsString())
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMap:
		parts := make([]string, 0, len(v.keys))
		for i, k := range v.keys {
			parts = append(parts, k+"="+v.vals[i].AsString())
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return "<invalid>"
	}
}

// RawBytes returns the raw byte slice of a Bytes value.
func (v Value) RawBytes() []byte {
	if v.kind != KindBytes {
		return nil
	}
	return v.raw
}
