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

package transform

import (
	"encoding/hex"

	"golang.org/x/crypto/xtea"

	"github.com/packetd/schemawire/fieldvalue"
)

// XTEAOptions configures the XTEA transform stage, decoded from the
// schema's transform options map via mapstructure.
type XTEAOptions struct {
	// KeyHex is a 32-character hex string for the 16-byte key. All-zero (or
	// absent with no ContextKey present) means identity.
	KeyHex string `mapstructure:"key"`
	// ContextKey, if set, names a transform.Context entry holding the key
	// instead of (or in addition to) KeyHex; a later stage such as RawRSA
	// may have populated it from the wire.
	ContextKey string `mapstructure:"context_key"`
}

// XTEATransform decrypts 8-byte blocks in place using the standard XTEA
// round function (32 rounds, delta 0x9E3779B9, little-endian 32-bit words).
// Trailing bytes shorter than one block pass through unchanged. A key of
// all zeros, with no context override, makes the stage an identity
// transform.
type XTEATransform struct {
	opts XTEAOptions
}

// NewXTEATransform builds an XTEA stage from decoded options.
func NewXTEATransform(opts XTEAOptions) *XTEATransform {
	return &XTEATransform{opts: opts}
}

func (t *XTEATransform) Name() string { return "xtea" }

func (t *XTEATransform) Apply(in []byte, ctx *Context) []byte {
	key := t.resolveKey(ctx)
	if key == nil || isAllZero(key) {
		return in
	}

	// x/crypto/xtea reads key and block words big-endian; reversing the
	// bytes of every 32-bit word around it gives the little-endian layout.
	swap := func(b []byte) {
		for i := 0; i+4 <= len(b); i += 4 {
			b[i], b[i+1], b[i+2], b[i+3] = b[i+3], b[i+2], b[i+1], b[i]
		}
	}
	leKey := make([]byte, len(key))
	copy(leKey, key)
	swap(leKey)

	cipher, err := xtea.NewCipher(leKey)
	if err != nil {
		return in
	}

	out := make([]byte, len(in))
	copy(out, in)

	n := len(out) - len(out)%8
	for off := 0; off < n; off += 8 {
		block := out[off : off+8]
		swap(block)
		cipher.Decrypt(block, block)
		swap(block)
	}
	return out
}

func (t *XTEATransform) resolveKey(ctx *Context) []byte {
	if t.opts.ContextKey != "" && ctx != nil {
		if v, ok := ctx.Get(t.opts.ContextKey); ok && v.Kind() == fieldvalue.KindBytes {
			if b := v.RawBytes(); len(b) == 16 {
				return b
			}
		}
	}
	if t.opts.KeyHex == "" {
		return nil
	}
	key, err := hex.DecodeString(t.opts.KeyHex)
	if err != nil || len(key) != 16 {
		return nil
	}
	return key
}

func isAllZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
