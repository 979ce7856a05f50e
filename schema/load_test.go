package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsHeaderWhenAbsent(t *testing.T) {
	doc := `{"protocol": {}, "packets": [{"type": 257, "name": "PING", "fields": []}]}`
	s, err := LoadContent([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, LittleEndian, s.Endian)
	assert.Equal(t, 1, s.Pack)
	assert.Equal(t, "size", s.Header.SizeField)
	assert.Equal(t, "type", s.Header.TypeField)
	assert.Equal(t, 8, s.Header.Length)

	p, ok := s.PacketByType(257)
	require.True(t, ok)
	assert.Equal(t, "PING", p.Name)
}

func TestLoadRejectsMissingProtocol(t *testing.T) {
	_, err := LoadContent([]byte(`{"packets": []}`))
	assert.Error(t, err)
}

func TestLoadRejectsCountFieldOutOfOrder(t *testing.T) {
	doc := `{
		"protocol": {},
		"packets": [{
			"type": 1,
			"name": "BAD",
			"fields": [
				{"name": "xs", "type": "array", "element": "uint16", "count_field": "n"},
				{"name": "n", "type": "uint8"}
			]
		}]
	}`
	_, err := LoadContent([]byte(doc))
	assert.Error(t, err)
}

func TestLoadRejectsUnresolvedUserType(t *testing.T) {
	doc := `{
		"protocol": {},
		"packets": [{"type": 1, "name": "BAD", "fields": [{"name": "f", "type": "Missing"}]}]
	}`
	_, err := LoadContent([]byte(doc))
	assert.Error(t, err)
}

func TestLoadResolvesEnumAndStructTypes(t *testing.T) {
	doc := `{
		"protocol": {"header": {"fields": [{"name":"size","type":"uint16","offset":0},{"name":"type","type":"uint16","offset":2}]}},
		"types": {
			"PacketType": {"kind": "enum", "base": "uint16", "values": {"PING": 257}},
			"Point": {"kind": "struct", "fields": [{"name":"x","type":"int32"},{"name":"y","type":"int32"}]}
		},
		"packets": [{"type": 257, "name": "PING", "fields": [{"name":"pos","type":"Point"}]}]
	}`
	s, err := LoadContent([]byte(doc))
	require.NoError(t, err)

	pt, ok := s.ResolveType("PacketType")
	require.True(t, ok)
	assert.Equal(t, TypeEnum, pt.Kind)
	assert.Equal(t, 257, pt.Values["PING"])

	pointType, ok := s.ResolveType("Point")
	require.True(t, ok)
	assert.Equal(t, TypeStruct, pointType.Kind)
	assert.Len(t, pointType.Fields, 2)
}

func TestFieldLengthLiteralAndRemaining(t *testing.T) {
	doc := `{
		"protocol": {},
		"packets": [{
			"type": 1, "name": "X",
			"fields": [
				{"name": "a", "type": "string", "length": 8},
				{"name": "b", "type": "bytes", "length": "remaining"}
			]
		}]
	}`
	s, err := LoadContent([]byte(doc))
	require.NoError(t, err)

	p, _ := s.PacketByType(1)
	assert.Equal(t, 8, p.Fields[0].Length.GetLength())
	assert.Equal(t, LengthRemaining, p.Fields[1].Length.Kind)
	assert.Equal(t, 0, p.Fields[1].Length.GetLength())
}
