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
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/packetd/schemawire/fieldvalue"
)

var (
	headerRe = regexp.MustCompile(`^\[(\d+):(\d+):(\d+)\.(\d+)\]\s+(SEND|RECV)\s+(\w+)\s+\(\d+\s+bytes\)`)
	fieldRe  = regexp.MustCompile(`^\s+(\w+):\s+(.+)$`)
	symbolRe = regexp.MustCompile(`^(-?\d+)\s+\(\w+\)$`)
)

// Record is one parsed log entry: a message's direction, name, logged time
// of day (as a duration since midnight), and its field map reconstructed
// from the formatter's text rendering.
type Record struct {
	Timestamp time.Duration
	Direction Direction
	Name      string
	Fields    fieldvalue.Value
}

// ReadLog parses every record out of r in file order. Address lines
// (containing "->") and "raw:" lines are recognized and skipped rather than
// misparsed as fields.
func ReadLog(r io.Reader) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var records []Record
	var current *Record

	flush := func() {
		if current != nil {
			records = append(records, *current)
			current = nil
		}
	}

	for scanner.Scan() {
		line := scanner.Text()

		if m := headerRe.FindStringSubmatch(line); m != nil {
			flush()
			current = &Record{
				Timestamp: parseTimestamp(m),
				Direction: Direction(m[5]),
				Name:      m[6],
				Fields:    fieldvalue.NewMap(),
			}
			continue
		}

		if current == nil {
			continue
		}
		if strings.Contains(line, "->") {
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if m := fieldRe.FindStringSubmatch(line); m != nil {
			key, raw := m[1], m[2]
			if key == "raw" {
				continue
			}
			current.Fields.Set(key, parseValue(raw))
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func parseTimestamp(m []string) time.Duration {
	h, _ := strconv.Atoi(m[1])
	mi, _ := strconv.Atoi(m[2])
	se, _ := strconv.Atoi(m[3])
	ms, _ := strconv.Atoi(m[4])
	return time.Duration(h)*time.Hour +
		time.Duration(mi)*time.Minute +
		time.Duration(se)*time.Second +
		time.Duration(ms)*time.Millisecond
}

// parseValue implements the value-parsing rule from the log file
// interface: quoted strings become strings; "N (Symbol)" forms become the
// integer N; otherwise integer if parseable, else float, else the raw
// string as a best-effort fallback.
func parseValue(raw string) fieldvalue.Value {
	raw = strings.TrimSpace(raw)

	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		unquoted, err := strconv.Unquote(raw)
		if err == nil {
			return fieldvalue.String(unquoted)
		}
		return fieldvalue.String(raw[1 : len(raw)-1])
	}

	if m := symbolRe.FindStringSubmatch(raw); m != nil {
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err == nil {
			return fieldvalue.I64(n)
		}
	}

	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return fieldvalue.I64(n)
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return fieldvalue.F64(f)
	}
	return fieldvalue.String(raw)
}
