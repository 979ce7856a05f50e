package logformat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLog = `[00:00:00.000] SEND PING (4 bytes)
  -> 127.0.0.1:7171
  type: 257 (PING)
  raw: 04000101
[00:00:00.500] RECV PONG (12 bytes)
  -> 127.0.0.1:7171
  name: "hello"
  count: 3
  ratio: 1.5
  raw: 0c00020141420058595a0000
`

func TestReadLogParsesRecordsInOrder(t *testing.T) {
	records, err := ReadLog(strings.NewReader(sampleLog))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, Send, records[0].Direction)
	assert.Equal(t, "PING", records[0].Name)
	v, ok := records[0].Fields.Get("type")
	require.True(t, ok)
	n, _ := v.AsInt64()
	assert.EqualValues(t, 257, n)

	assert.Equal(t, Recv, records[1].Direction)
	assert.Equal(t, "PONG", records[1].Name)

	name, ok := records[1].Fields.Get("name")
	require.True(t, ok)
	assert.Equal(t, "hello", name.AsString())

	count, ok := records[1].Fields.Get("count")
	require.True(t, ok)
	cn, _ := count.AsInt64()
	assert.EqualValues(t, 3, cn)

	ratio, ok := records[1].Fields.Get("ratio")
	require.True(t, ok)
	rf, _ := ratio.AsFloat64()
	assert.InDelta(t, 1.5, rf, 0.0001)
}

func TestReadLogTimestampOffsets(t *testing.T) {
	records, err := ReadLog(strings.NewReader(sampleLog))
	require.NoError(t, err)
	delta := records[1].Timestamp - records[0].Timestamp
	assert.Equal(t, int64(500), delta.Milliseconds())
}

func TestReadLogSkipsAddressAndRawLines(t *testing.T) {
	records, err := ReadLog(strings.NewReader(sampleLog))
	require.NoError(t, err)
	_, ok := records[0].Fields.Get("raw")
	assert.False(t, ok)
}
