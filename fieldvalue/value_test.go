package fieldvalue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapSetGetPreservesOrder(t *testing.T) {
	m := NewMap()
	m.Set("size", U64(12))
	m.Set("type", U64(1))
	m.Set("name", String("ping"))

	assert.Equal(t, []string{"size", "type", "name"}, m.Keys())

	v, ok := m.Get("type")
	assert.True(t, ok)
	assert.Equal(t, KindU64, v.Kind())
}

func TestMapSetReplacesExistingKey(t *testing.T) {
	m := NewMap()
	m.Set("x", I64(1))
	m.Set("x", I64(2))

	assert.Equal(t, []string{"x"}, m.Keys())
	v, ok := m.Get("x")
	assert.True(t, ok)
	n, err := v.AsInt64()
	assert.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestAsInt64Coercions(t *testing.T) {
	n, err := U64(42).AsInt64()
	assert.NoError(t, err)
	assert.EqualValues(t, 42, n)

	n, err = Bool(true).AsInt64()
	assert.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = String("7").AsInt64()
	assert.NoError(t, err)
	assert.EqualValues(t, 7, n)

	_, err = String("not-a-number").AsInt64()
	assert.Error(t, err)

	_, err = Bytes([]byte{1, 2}).AsInt64()
	assert.Error(t, err)
}

func TestAsStringRenderings(t *testing.T) {
	assert.Equal(t, "ping", String("ping").AsString())
	assert.Equal(t, "7", I64(7).AsString())
	assert.Equal(t, "0102", Bytes([]byte{0x01, 0x02}).AsString())

	list := List([]Value{I64(1), I64(2)})
	assert.Equal(t, "[1, 2]", list.AsString())

	m := NewMap()
	m.Set("a", I64(1))
	assert.Equal(t, "{a=1}", m.AsString())
}
