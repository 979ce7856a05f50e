package logformat

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetd/schemawire/decoder"
	"github.com/packetd/schemawire/fieldvalue"
	"github.com/packetd/schemawire/schema"
)

func loadSchema(t *testing.T, doc string) *schema.Schema {
	t.Helper()
	s, err := schema.LoadContent([]byte(doc))
	require.NoError(t, err)
	return s
}

func TestConsoleSkipsHeaderFieldsAndTruncatesHex(t *testing.T) {
	doc := `{"protocol": {"header": {"fields": [{"name":"size","type":"uint16","offset":0},{"name":"type","type":"uint16","offset":2}]}},
	"packets": [{"type": 1, "name": "A", "fields": [{"name":"size","type":"uint16"},{"name":"type","type":"uint16"},{"name":"who","type":"string","length":3}]}]}`
	s := loadSchema(t, doc)
	f := New(s)

	fields := fieldvalue.NewMap()
	fields.Set("size", fieldvalue.U64(8))
	fields.Set("type", fieldvalue.U64(1))
	fields.Set("who", fieldvalue.String("bob"))

	msg := &decoder.Message{Name: "A", Type: 1, Fields: fields, Raw: make([]byte, 40)}
	out := f.Console(msg, Send, time.Date(0, 1, 1, 1, 2, 3, 0, time.UTC), "127.0.0.1:1234")

	assert.Contains(t, out, "SEND A (40 bytes)")
	assert.NotContains(t, out, "size:")
	assert.Contains(t, out, `who: "bob"`)
	assert.Contains(t, out, "...")
}

func TestFileIncludesHeaderFieldsAndFullHex(t *testing.T) {
	doc := `{"protocol": {"header": {"fields": [{"name":"size","type":"uint16","offset":0},{"name":"type","type":"uint16","offset":2}]}},
	"packets": [{"type": 1, "name": "A", "fields": [{"name":"size","type":"uint16"},{"name":"type","type":"uint16"}]}]}`
	s := loadSchema(t, doc)
	f := New(s)

	fields := fieldvalue.NewMap()
	fields.Set("size", fieldvalue.U64(4))
	fields.Set("type", fieldvalue.U64(1))

	msg := &decoder.Message{Name: "A", Type: 1, Fields: fields, Raw: []byte{0x04, 0x00, 0x01, 0x00}}
	out := f.File(msg, Recv, time.Now(), "10.0.0.1:9000")

	assert.Contains(t, out, "size: 4")
	assert.Contains(t, out, "type: 1")
	assert.Contains(t, out, "raw: 04000100")
}

func TestEnumSymbolDecoration(t *testing.T) {
	doc := `{"protocol": {"header": {"fields": [{"name":"size","type":"uint16","offset":0},{"name":"type","type":"uint16","offset":2}]}},
	"types": {"PacketType": {"kind":"enum","base":"uint16","values":{"PING":257}}},
	"packets": [{"type": 257, "name": "PING", "fields": [{"name":"size","type":"uint16"},{"name":"type","type":"uint16"}]}]}`
	s := loadSchema(t, doc)
	f := New(s)

	fields := fieldvalue.NewMap()
	fields.Set("size", fieldvalue.U64(4))
	fields.Set("type", fieldvalue.U64(257))

	msg := &decoder.Message{Name: "PING", Type: 257, Fields: fields, Raw: []byte{0x04, 0x00, 0x01, 0x01}}
	out := f.File(msg, Send, time.Now(), "x:1")

	assert.True(t, strings.Contains(out, "257 (PING)"))
}
