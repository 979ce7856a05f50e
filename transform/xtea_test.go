package transform

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/xtea"

	"github.com/packetd/schemawire/fieldvalue"
)

// xteaEncryptBlock encrypts plain with little-endian key and block words,
// the layout XTEATransform decrypts.
func xteaEncryptBlock(t *testing.T, key, plain []byte) []byte {
	t.Helper()
	swap := func(b []byte) []byte {
		out := make([]byte, len(b))
		for i := 0; i+4 <= len(b); i += 4 {
			out[i], out[i+1], out[i+2], out[i+3] = b[i+3], b[i+2], b[i+1], b[i]
		}
		return out
	}
	cipher, err := xtea.NewCipher(swap(key))
	require.NoError(t, err)
	out := make([]byte, len(plain))
	for off := 0; off < len(plain); off += 8 {
		block := swap(plain[off : off+8])
		cipher.Encrypt(block, block)
		copy(out[off:off+8], swap(block))
	}
	return out
}

func TestXTEAAllZeroKeyIsIdentity(t *testing.T) {
	tr := NewXTEATransform(XTEAOptions{KeyHex: strings.Repeat("00", 16)})
	in := []byte("abcdefgh")
	out := tr.Apply(in, NewContext())
	assert.Equal(t, in, out)
}

func TestXTEARoundTrip(t *testing.T) {
	key := []byte("0011223344556677")[:16]
	plain := []byte("ABCDEFGH")
	cipherText := xteaEncryptBlock(t, key, plain)

	tr := NewXTEATransform(XTEAOptions{KeyHex: hexEncode(key)})
	out := tr.Apply(cipherText, NewContext())
	assert.Equal(t, plain, out)
}

func TestXTEAPassesThroughTrailingShortBlock(t *testing.T) {
	key := []byte("0011223344556677")[:16]
	in := append(xteaEncryptBlock(t, key, []byte("ABCDEFGH")), []byte("xy")...)

	tr := NewXTEATransform(XTEAOptions{KeyHex: hexEncode(key)})
	out := tr.Apply(in, NewContext())
	assert.Equal(t, []byte("ABCDEFGHxy"), out)
}

func TestXTEAReadsKeyFromContext(t *testing.T) {
	key := []byte("0011223344556677")[:16]
	plain := []byte("ABCDEFGH")
	cipherText := xteaEncryptBlock(t, key, plain)

	ctx := NewContext()
	ctx.Set("session_key", fieldvalue.Bytes(key))

	tr := NewXTEATransform(XTEAOptions{ContextKey: "session_key"})
	out := tr.Apply(cipherText, ctx)
	assert.Equal(t, plain, out)
}

func hexEncode(b []byte) string {
	const hexdigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hexdigits[c>>4]
		out[i*2+1] = hexdigits[c&0xf]
	}
	return string(out)
}

func TestXTEAKeyWidthSanity(t *testing.T) {
	// documents the expected word layout the raw-RSA stage must produce
	key := make([]byte, 16)
	for i := 0; i < 4; i++ {
		binary.LittleEndian.PutUint32(key[i*4:i*4+4], uint32(i))
	}
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(key[0:4]))
	assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(key[12:16]))
}
