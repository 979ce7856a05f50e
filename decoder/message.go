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

// Package decoder implements the schema-driven framing and field-decoding
// state machine: it consumes a reassembly.Buffer and produces parsed
// messages, tolerating truncated and malformed input without ever panicking
// across its own boundary.
package decoder

import "github.com/packetd/schemawire/fieldvalue"

// Message is one fully framed and field-decoded application message.
type Message struct {
	Name   string
	Type   uint32
	Fields fieldvalue.Value // a Map value, schema field order preserved
	Raw    []byte           // post-transform bytes, including header
}
