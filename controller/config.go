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

package controller

// Config is the "controller" section of the capture config file: the
// bookkeeping that belongs to no single subsystem (sniffer, engine and
// server each unpack their own section).
type Config struct {
	// Schema is the path to the JSON protocol description driving the
	// engine's decoder, encoder and formatter.
	Schema string `config:"schema"`
}
