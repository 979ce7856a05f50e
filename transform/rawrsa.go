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
	"crypto/rsa"
	"crypto/x509"
	"encoding/binary"
	"encoding/pem"
	"math/big"

	"github.com/pkg/errors"

	"github.com/packetd/schemawire/fieldvalue"
)

// RawRSAOptions configures the raw-RSA transform stage, decoded from the
// schema's transform options map via mapstructure.
type RawRSAOptions struct {
	// PrivateKeyPEM is a PKCS#1 or PKCS#8 RSA private key in PEM form.
	PrivateKeyPEM string `mapstructure:"private_key"`
	// Offset is the byte offset of the RSA-sealed block within the message.
	Offset int `mapstructure:"offset"`
	// BlockLen is the fixed block length; default 128 (1024-bit modulus).
	BlockLen int `mapstructure:"block_len"`
	// XTEAKeyOutput, if set, names the context entry the first 16 bytes of
	// the decrypted block are written to as a raw key for a later XTEA
	// stage.
	XTEAKeyOutput string `mapstructure:"xtea_key_output"`
}

// RawRSATransform performs unpadded RSA decryption (m = c^d mod n) over a
// fixed-length block at a fixed offset. This is not PKCS#1/OAEP padded RSA:
// the wire format carries the raw modular-exponentiation result, as used by
// the Tibia/Forgotten-Server login handshake this pipeline models. No
// library in the retrieval pack exposes unpadded RSA primitive decryption,
// so this stage is built directly on math/big (see DESIGN.md).
type RawRSATransform struct {
	opts RawRSAOptions
	d    *big.Int
	n    *big.Int
	ok   bool
}

// NewRawRSATransform parses the PEM private key and returns a ready stage.
// A malformed key yields a stage that behaves as identity (ok=false),
// matching the "any exception -> identity" contract.
func NewRawRSATransform(opts RawRSAOptions) *RawRSATransform {
	t := &RawRSATransform{opts: opts}
	if opts.BlockLen == 0 {
		t.opts.BlockLen = 128
	}

	d, n, err := parsePrivateKey(opts.PrivateKeyPEM)
	if err != nil {
		return t
	}
	t.d, t.n, t.ok = d, n, true
	return t
}

func parsePrivateKey(pemStr string) (d, n *big.Int, err error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, nil, errors.New("no PEM block found")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key.D, key.N, nil
	}
	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		if rsaKey, ok := key.(*rsa.PrivateKey); ok {
			return rsaKey.D, rsaKey.N, nil
		}
	}
	return nil, nil, errors.New("unsupported private key format")
}

func (t *RawRSATransform) Name() string { return "raw_rsa" }

func (t *RawRSATransform) Apply(in []byte, ctx *Context) []byte {
	if !t.ok {
		return in
	}
	o, l := t.opts.Offset, t.opts.BlockLen
	if len(in) < o+l {
		return in
	}

	c := new(big.Int).SetBytes(in[o : o+l])
	m := new(big.Int).Exp(c, t.d, t.n)

	decrypted := make([]byte, l)
	mBytes := m.Bytes()
	copy(decrypted[l-len(mBytes):], mBytes)

	out := make([]byte, len(in))
	copy(out, in)
	copy(out[o:o+l], decrypted)

	if t.opts.XTEAKeyOutput != "" && len(decrypted) >= 16 && ctx != nil {
		key := make([]byte, 16)
		for i := 0; i < 4; i++ {
			w := binary.LittleEndian.Uint32(decrypted[i*4 : i*4+4])
			binary.LittleEndian.PutUint32(key[i*4:i*4+4], w)
		}
		ctx.Set(t.opts.XTEAKeyOutput, fieldvalue.Bytes(key))
	}

	return out
}
