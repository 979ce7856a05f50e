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

// Package replay implements the log-driven replay driver: it re-encodes a
// prior capture's SEND-direction messages and delivers them to a TCP
// endpoint under a time-based, response-driven, or hybrid pacing policy.
// The driver itself is core-testable: it takes a Conn interface rather than
// dialing a socket directly, so pacing and state-machine behavior can be
// exercised against an in-memory fake.
package replay

import (
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/packetd/schemawire/encoder"
	"github.com/packetd/schemawire/fieldvalue"
	"github.com/packetd/schemawire/logformat"
)

// Mode selects the pacing policy applied while replaying.
type Mode string

const (
	ModeTiming   Mode = "timing"
	ModeResponse Mode = "response"
	ModeHybrid   Mode = "hybrid"
)

// Conn is the subset of net.Conn the driver needs: write the encoded
// message, and opportunistically read a response under a deadline. Dialing
// the actual TCP socket is an external collaborator (see dial.go); the
// driver operates on this narrower interface so it can be tested without a
// socket.
type Conn interface {
	io.Reader
	io.Writer
	SetReadDeadline(t time.Time) error
}

// Summary is the running count the driver reports as it replays.
type Summary struct {
	Sent     int
	Received int
}

// Driver replays a parsed log of records against a Conn.
type Driver struct {
	encoder   *encoder.Encoder
	records   []logformat.Record
	mode      Mode
	timeout   time.Duration
	speed     float64
	overrides fieldvalue.Value
	onEvent   func(string)
}

// New builds a Driver. speed <= 0 is treated as 1.0. overrides, if its Kind
// is KindMap, supplies field values that take precedence over the logged
// ones for every SEND record (matching the CLI's optional field-override
// surface).
func New(enc *encoder.Encoder, records []logformat.Record, mode Mode, timeout time.Duration, speed float64, overrides fieldvalue.Value) *Driver {
	if speed <= 0 {
		speed = 1.0
	}
	return &Driver{
		encoder:   enc,
		records:   records,
		mode:      mode,
		timeout:   timeout,
		speed:     speed,
		overrides: overrides,
	}
}

// OnEvent installs an optional callback invoked with a short description of
// each state transition (used by the CLI to print a running log).
func (d *Driver) OnEvent(f func(string)) { d.onEvent = f }

func (d *Driver) emit(msg string) {
	if d.onEvent != nil {
		d.onEvent(msg)
	}
}

// Run drives the replay to completion, returning the final summary. It
// never returns an error for a response-timeout (that is a non-fatal
// warning per the error handling design); it returns an error only for a
// write/connect failure, which is fatal to the session.
func (d *Driver) Run(conn Conn) (Summary, error) {
	var summary Summary

	for i := 0; i < len(d.records); i++ {
		rec := d.records[i]
		if rec.Direction != logformat.Send {
			continue
		}

		d.pace(i)

		fields := mergeOverrides(rec.Fields, d.overrides)
		data, err := d.encoder.Encode(rec.Name, fields)
		if err != nil {
			d.emit("encode failed for " + rec.Name + ": " + err.Error())
			continue
		}

		if _, err := conn.Write(data); err != nil {
			return summary, errors.Wrapf(err, "write %s", rec.Name)
		}
		summary.Sent++
		d.emit("sent " + rec.Name)

		if d.mode == ModeTiming {
			continue
		}

		if j, ok := nextRecv(d.records, i); ok {
			if d.awaitResponse(conn) {
				summary.Received++
				i = j
			}
		}
	}

	return summary, nil
}

// pace implements the paced-wait state: sleep the inter-record delay
// scaled by speed, clamped to non-negative. Only timing/hybrid modes wait.
func (d *Driver) pace(i int) {
	if d.mode == ModeResponse {
		return
	}
	if i == 0 {
		return
	}
	delta := d.records[i].Timestamp - d.records[i-1].Timestamp
	if delta <= 0 {
		return
	}
	wait := time.Duration(float64(delta) / d.speed)
	if wait <= 0 {
		return
	}
	time.Sleep(wait)
}

// awaitResponse implements the awaiting-response state: read with the
// configured timeout. A timeout is logged and treated as "continue without
// advancing" by the caller (it simply does not count a Received message).
func (d *Driver) awaitResponse(conn Conn) bool {
	_ = conn.SetReadDeadline(time.Now().Add(d.timeout))
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil || n == 0 {
		d.emit("response timeout")
		return false
	}
	d.emit("received response")
	return true
}

// nextRecv finds the next RECV record after i, matching the "pending RECV
// exists" transition guard in the per-SEND state table.
func nextRecv(records []logformat.Record, i int) (int, bool) {
	for j := i + 1; j < len(records); j++ {
		if records[j].Direction == logformat.Recv {
			return j, true
		}
	}
	return 0, false
}

func mergeOverrides(base, overrides fieldvalue.Value) fieldvalue.Value {
	if overrides.Kind() != fieldvalue.KindMap {
		return base
	}
	merged := fieldvalue.NewMap()
	for _, item := range base.Items() {
		merged.Set(item.Key, item.Val)
	}
	for _, item := range overrides.Items() {
		merged.Set(item.Key, item.Val)
	}
	return merged
}
