package transform

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateTestKey(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)

	der := x509.MarshalPKCS1PrivateKey(key)
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: der}
	return key, string(pem.EncodeToMemory(block))
}

func TestRawRSADecryptsBlockAtOffset(t *testing.T) {
	key, pemStr := generateTestKey(t)

	plain := make([]byte, 128)
	copy(plain, []byte("sessionkey-material"))

	c := new(big.Int).Exp(new(big.Int).SetBytes(plain), big.NewInt(int64(key.E)), key.N)
	sealed := make([]byte, 128)
	cb := c.Bytes()
	copy(sealed[128-len(cb):], cb)

	msg := append([]byte{0xAA, 0xBB}, sealed...)

	tr := NewRawRSATransform(RawRSAOptions{PrivateKeyPEM: pemStr, Offset: 2, BlockLen: 128})
	out := tr.Apply(msg, NewContext())

	assert.Equal(t, plain, out[2:130])
	assert.Equal(t, []byte{0xAA, 0xBB}, out[:2])
}

func TestRawRSAExtractsXTEAKeyIntoContext(t *testing.T) {
	key, pemStr := generateTestKey(t)

	plain := make([]byte, 128)
	copy(plain, []byte("0123456789ABCDEF"))

	c := new(big.Int).Exp(new(big.Int).SetBytes(plain), big.NewInt(int64(key.E)), key.N)
	sealed := make([]byte, 128)
	cb := c.Bytes()
	copy(sealed[128-len(cb):], cb)

	ctx := NewContext()
	tr := NewRawRSATransform(RawRSAOptions{
		PrivateKeyPEM: pemStr,
		Offset:        0,
		BlockLen:      128,
		XTEAKeyOutput: "xtea_key",
	})
	tr.Apply(sealed, ctx)

	v, ok := ctx.Get("xtea_key")
	require.True(t, ok)
	assert.Len(t, v.RawBytes(), 16)
}

func TestRawRSAIdentityWhenTooShort(t *testing.T) {
	_, pemStr := generateTestKey(t)
	tr := NewRawRSATransform(RawRSAOptions{PrivateKeyPEM: pemStr, Offset: 0, BlockLen: 128})
	in := []byte("short")
	out := tr.Apply(in, NewContext())
	assert.Equal(t, in, out)
}

func TestRawRSAIdentityOnMalformedKey(t *testing.T) {
	tr := NewRawRSATransform(RawRSAOptions{PrivateKeyPEM: "not a pem", Offset: 0, BlockLen: 128})
	in := make([]byte, 128)
	out := tr.Apply(in, NewContext())
	assert.Equal(t, in, out)
}
