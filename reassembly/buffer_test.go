package reassembly

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppendPeekConsume(t *testing.T) {
	b := New()
	b.Append([]byte("hello"))
	assert.Equal(t, 5, b.Available())

	view, ok := b.Peek(5)
	assert.True(t, ok)
	assert.Equal(t, "hello", string(view))

	_, ok = b.Peek(6)
	assert.False(t, ok)

	assert.True(t, b.Consume(5))
	assert.Equal(t, 0, b.Available())
}

func TestConsumeFailsWithoutSideEffect(t *testing.T) {
	b := New()
	b.Append([]byte("ab"))
	assert.False(t, b.Consume(3))
	assert.Equal(t, 2, b.Available())
}

func TestCompactsOnOverflowWithoutLosingData(t *testing.T) {
	b := New()
	b.Append(make([]byte, defaultCapacity-2))
	assert.True(t, b.Consume(defaultCapacity-4))
	b.Append([]byte{1, 2, 3, 4, 5, 6})
	assert.Equal(t, 8, b.Available())

	view, ok := b.Peek(8)
	assert.True(t, ok)
	assert.Equal(t, []byte{0, 0, 1, 2, 3, 4, 5, 6}, view)
}

func TestGrowsBeyondInitialCapacity(t *testing.T) {
	b := New()
	big := make([]byte, defaultCapacity*3)
	for i := range big {
		big[i] = byte(i)
	}
	b.Append(big)
	assert.Equal(t, len(big), b.Available())

	view, ok := b.Peek(len(big))
	assert.True(t, ok)
	assert.Equal(t, big, view)
}

func TestResetDiscardsBufferedBytes(t *testing.T) {
	b := New()
	b.Append([]byte("abc"))
	b.Reset()
	assert.Equal(t, 0, b.Available())
	_, ok := b.Peek(1)
	assert.False(t, ok)
}
