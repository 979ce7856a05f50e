package replay

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetd/schemawire/encoder"
	"github.com/packetd/schemawire/fieldvalue"
	"github.com/packetd/schemawire/logformat"
	"github.com/packetd/schemawire/schema"
)

type fakeConn struct {
	written  bytes.Buffer
	toRead   []byte
	readErr  error
	deadline time.Time
}

func (f *fakeConn) Write(p []byte) (int, error) { return f.written.Write(p) }
func (f *fakeConn) Read(p []byte) (int, error) {
	if f.readErr != nil {
		return 0, f.readErr
	}
	if len(f.toRead) == 0 {
		return 0, errTimeout{}
	}
	n := copy(p, f.toRead)
	f.toRead = nil
	return n, nil
}
func (f *fakeConn) SetReadDeadline(t time.Time) error { f.deadline = t; return nil }

type errTimeout struct{}

func (errTimeout) Error() string   { return "i/o timeout" }
func (errTimeout) Timeout() bool   { return true }
func (errTimeout) Temporary() bool { return true }

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	doc := `{"protocol": {"header": {"fields": [{"name":"size","type":"uint16","offset":0},{"name":"type","type":"uint16","offset":2}]}},
	"packets": [
		{"type": 1, "name": "PING", "fields": [{"name":"size","type":"uint16"},{"name":"type","type":"uint16"}]},
		{"type": 2, "name": "PONG", "fields": [{"name":"size","type":"uint16"},{"name":"type","type":"uint16"}]}
	]}`
	s, err := schema.LoadContent([]byte(doc))
	require.NoError(t, err)
	return s
}

func pingRecord(ts time.Duration) logformat.Record {
	fields := fieldvalue.NewMap()
	fields.Set("size", fieldvalue.U64(0))
	fields.Set("type", fieldvalue.U64(1))
	return logformat.Record{Timestamp: ts, Direction: logformat.Send, Name: "PING", Fields: fields}
}

func pongRecord(ts time.Duration) logformat.Record {
	fields := fieldvalue.NewMap()
	fields.Set("size", fieldvalue.U64(0))
	fields.Set("type", fieldvalue.U64(2))
	return logformat.Record{Timestamp: ts, Direction: logformat.Recv, Name: "PONG", Fields: fields}
}

func TestTimingModeNeverWaitsForResponse(t *testing.T) {
	s := testSchema(t)
	enc := encoder.New(s)
	records := []logformat.Record{pingRecord(0), pongRecord(10 * time.Millisecond)}

	d := New(enc, records, ModeTiming, 50*time.Millisecond, 1.0, fieldvalue.Value{})
	conn := &fakeConn{}

	summary, err := d.Run(conn)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Sent)
	assert.Equal(t, 0, summary.Received)
}

func TestResponseModeAdvancesPastMatchedRecv(t *testing.T) {
	s := testSchema(t)
	enc := encoder.New(s)
	records := []logformat.Record{pingRecord(0), pongRecord(0), pingRecord(0)}

	d := New(enc, records, ModeResponse, 50*time.Millisecond, 1.0, fieldvalue.Value{})
	conn := &fakeConn{toRead: []byte{0x01}}

	summary, err := d.Run(conn)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Sent)
	assert.Equal(t, 1, summary.Received)
}

func TestPacingRespectsSpeedMultiplier(t *testing.T) {
	s := testSchema(t)
	enc := encoder.New(s)
	records := []logformat.Record{pingRecord(0), pingRecord(500 * time.Millisecond)}

	d := New(enc, records, ModeTiming, 10*time.Millisecond, 2.0, fieldvalue.Value{})
	conn := &fakeConn{}

	start := time.Now()
	_, err := d.Run(conn)
	elapsed := time.Since(start)
	require.NoError(t, err)

	assert.InDelta(t, 250*time.Millisecond, elapsed, float64(100*time.Millisecond))
}

func TestOverridesTakePrecedenceOverLoggedFields(t *testing.T) {
	s := testSchema(t)
	enc := encoder.New(s)
	records := []logformat.Record{pingRecord(0)}

	overrides := fieldvalue.NewMap()
	overrides.Set("type", fieldvalue.U64(99))

	d := New(enc, records, ModeTiming, 10*time.Millisecond, 1.0, overrides)
	conn := &fakeConn{}

	_, err := d.Run(conn)
	require.NoError(t, err)
	assert.Equal(t, byte(99), conn.written.Bytes()[2])
}
