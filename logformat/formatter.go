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

package logformat

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/packetd/schemawire/decoder"
	"github.com/packetd/schemawire/fieldvalue"
	"github.com/packetd/schemawire/schema"
)

const hexTruncateAt = 64

// Formatter renders decoded messages to text against a fixed schema, used
// both to know which fields are conventionally the size/type header fields
// and to resolve PacketType enum symbols.
type Formatter struct {
	schema *schema.Schema
}

// New builds a Formatter bound to a schema.
func New(s *schema.Schema) *Formatter {
	return &Formatter{schema: s}
}

// Console renders the abbreviated form: header line, address line, one line
// per field skipping the conventional size/type fields, and a truncated hex
// line.
func (f *Formatter) Console(msg *decoder.Message, dir Direction, ts time.Time, remote string) string {
	return f.render(msg, dir, ts, remote, false)
}

// File renders the full form: header line, address line, every field
// including size/type, and the full raw hex.
func (f *Formatter) File(msg *decoder.Message, dir Direction, ts time.Time, remote string) string {
	return f.render(msg, dir, ts, remote, true)
}

func (f *Formatter) render(msg *decoder.Message, dir Direction, ts time.Time, remote string, full bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s %s (%d bytes)\n", ts.Format("15:04:05.000"), dir, msg.Name, len(msg.Raw))
	fmt.Fprintf(&b, "  -> %s\n", remote)

	for _, item := range msg.Fields.Items() {
		if !full && f.isHeaderField(item.Key) {
			continue
		}
		fmt.Fprintf(&b, "  %s: %s\n", item.Key, f.renderValue(item.Key, item.Val))
	}

	hexStr := hex.EncodeToString(msg.Raw)
	if !full && len(hexStr) > hexTruncateAt {
		hexStr = hexStr[:hexTruncateAt] + "..."
	}
	fmt.Fprintf(&b, "  raw: %s\n", hexStr)

	return b.String()
}

func (f *Formatter) isHeaderField(name string) bool {
	return name == f.schema.Header.SizeField || name == f.schema.Header.TypeField
}

func (f *Formatter) renderValue(fieldName string, v fieldvalue.Value) string {
	if fieldName == f.schema.Header.TypeField {
		if sym, ok := f.resolveEnumSymbol(v); ok {
			n, _ := v.AsInt64()
			return fmt.Sprintf("%d (%s)", n, sym)
		}
	}
	if v.Kind() == fieldvalue.KindString {
		return fmt.Sprintf("%q", v.AsString())
	}
	return v.AsString()
}

func (f *Formatter) resolveEnumSymbol(v fieldvalue.Value) (string, bool) {
	td, ok := f.schema.ResolveType("PacketType")
	if !ok || td.Kind != schema.TypeEnum {
		return "", false
	}
	n, err := v.AsInt64()
	if err != nil {
		return "", false
	}
	for symbol, val := range td.Values {
		if int64(val) == n {
			return symbol, true
		}
	}
	return "", false
}
