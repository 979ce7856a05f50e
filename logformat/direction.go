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

// Package logformat renders decoded messages to the canonical text form
// consumed by the log sink, and parses that same text form back into
// records for the replay driver. The two directions share one package
// because they are the two faces of one wire contract.
package logformat

// Direction tags a message as client-to-server (SEND) or server-to-client
// (RECV), assigned at capture time by the filter-port heuristic.
type Direction string

const (
	Send Direction = "SEND"
	Recv Direction = "RECV"
)
