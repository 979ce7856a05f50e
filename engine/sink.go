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

package engine

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/packetd/schemawire/decoder"
	"github.com/packetd/schemawire/logformat"
	"github.com/packetd/schemawire/schema"
)

// Sink renders every decoded message through logformat.Formatter and writes
// it to the configured destinations: an abbreviated form to stdout (for an
// operator watching the terminal) and/or the full form to a rotated log
// file (the form the replay driver's log reader expects, since the console
// form deliberately omits the conventional size/type fields).
type Sink struct {
	mut     sync.Mutex
	console bool
	file    io.WriteCloser
	fmt     *logformat.Formatter
}

// NewSink builds a Sink bound to a schema. Returns nil if neither
// destination is configured, so callers can treat a nil *Sink as "no
// logging" without a type switch at every call site.
func NewSink(s *schema.Schema, cfg SinkConfig) *Sink {
	if !cfg.Console && cfg.Filename == "" {
		return nil
	}

	sink := &Sink{console: cfg.Console, fmt: logformat.New(s)}
	if cfg.Filename != "" {
		sink.file = &lumberjack.Logger{
			Filename:   cfg.Filename,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			LocalTime:  true,
		}
	}
	return sink
}

// Write renders and writes one decoded message.
func (s *Sink) Write(msg *decoder.Message, dir logformat.Direction, ts time.Time, remote string) {
	s.mut.Lock()
	defer s.mut.Unlock()

	if s.console {
		fmt.Fprint(os.Stdout, s.fmt.Console(msg, dir, ts, remote))
	}
	if s.file != nil {
		io.WriteString(s.file, s.fmt.File(msg, dir, ts, remote))
	}
}

// Close releases the file destination, if any.
func (s *Sink) Close() error {
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}
