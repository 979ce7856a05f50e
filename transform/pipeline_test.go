package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetd/schemawire/schema"
)

func TestEmptyPipelineIsIdentity(t *testing.T) {
	p := NewPipeline()
	in := []byte("hello world")
	out := p.Apply(in, NewContext())
	assert.Equal(t, in, out)
}

func TestBuildUnknownKindErrors(t *testing.T) {
	_, err := Build([]schema.TransformDef{{Kind: "not-a-real-transform"}})
	assert.Error(t, err)
}

func TestBuildXTEAFromOptionsMap(t *testing.T) {
	p, err := Build([]schema.TransformDef{
		{Kind: "xtea", Options: map[string]any{"key": "00112233445566778899aabbccddeeff"}},
	})
	require.NoError(t, err)
	require.NotNil(t, p)
}

func TestPipelineStageFailureFallsBackToOriginalBytes(t *testing.T) {
	p := NewPipeline(panickyStage{})
	in := []byte("unchanged")
	out := p.Apply(in, NewContext())
	assert.Equal(t, in, out)
}

type panickyStage struct{}

func (panickyStage) Name() string { return "panicky" }
func (panickyStage) Apply(in []byte, ctx *Context) []byte {
	panic("boom")
}
