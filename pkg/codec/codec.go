// Copyright 2024 Rational Boxes
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package codec implements C2: the compress/encrypt pipeline applied by
// the local store around a blob's bytes. It is deliberately built on
// crypto/aes, crypto/cipher and compress/zlib — the standard library is
// the idiomatic home for raw AEAD and DEFLATE framing in Go, and no
// third-party library in the example pack wraps either concern at a
// lower level than these do (see DESIGN.md).
package codec

import (
	"bytes"
	"compress/zlib"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"io"

	"github.com/pkg/errors"

	"github.com/Rational-Boxes/file-engine-core-sub001/pkg/errtypes"
)

const (
	ivSize  = 12
	tagSize = 16
	keyLen  = 32
)

// Options configures a Codec. Compress and Encrypt can be combined or
// used independently; when both are set, compression always runs before
// encryption (compressed ciphertext is never useful to compress).
type Options struct {
	Compress bool
	Encrypt  bool
	// Key is the resolved 32-byte AES-256 key. Required when Encrypt is true.
	Key []byte
}

// ParseKey resolves key material supplied as either a 64-character hex
// string or a base64 string into a 32-byte AES-256 key. Any other
// length is rejected at tenant-open time per spec.
func ParseKey(s string) ([]byte, error) {
	if len(s) == 64 {
		if b, err := hex.DecodeString(s); err == nil && len(b) == keyLen {
			return b, nil
		}
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errtypes.InvalidArgument("key material is neither 64-char hex nor base64 of 32 bytes")
	}
	if len(b) != keyLen {
		return nil, errtypes.InvalidArgument("decoded key material is not 32 bytes")
	}
	return b, nil
}

// Codec applies the configured compress/encrypt pipeline to blob bytes.
type Codec struct {
	opts Options
}

// New builds a Codec. It validates that a key of the right length is
// present whenever encryption is requested.
func New(opts Options) (*Codec, error) {
	if opts.Encrypt && len(opts.Key) != keyLen {
		return nil, errtypes.InvalidArgument("encrypt requires a 32-byte key")
	}
	return &Codec{opts: opts}, nil
}

// Encode transforms plaintext bytes into the on-disk representation:
// compress (if enabled), then encrypt (if enabled) as
// IV(12) || ciphertext || tag(16).
func (c *Codec) Encode(plain []byte) ([]byte, error) {
	data := plain
	if c.opts.Compress {
		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			return nil, errors.Wrap(err, "codec: deflate write failed")
		}
		if err := zw.Close(); err != nil {
			return nil, errors.Wrap(err, "codec: deflate close failed")
		}
		data = buf.Bytes()
	}
	if c.opts.Encrypt {
		block, err := aes.NewCipher(c.opts.Key)
		if err != nil {
			return nil, errors.Wrap(err, "codec: aes cipher init failed")
		}
		gcm, err := cipher.NewGCMWithNonceSize(block, ivSize)
		if err != nil {
			return nil, errors.Wrap(err, "codec: gcm init failed")
		}
		iv := make([]byte, ivSize)
		if _, err := io.ReadFull(rand.Reader, iv); err != nil {
			return nil, errors.Wrap(err, "codec: iv generation failed")
		}
		sealed := gcm.Seal(nil, iv, data, nil)
		out := make([]byte, 0, ivSize+len(sealed))
		out = append(out, iv...)
		out = append(out, sealed...)
		data = out
	}
	return data, nil
}

// Decode reverses Encode: decrypt (if enabled), then inflate (if
// enabled). A GCM tag mismatch is always a fatal CryptoFailure — there
// is no fallback path for an integrity violation.
func (c *Codec) Decode(stored []byte) ([]byte, error) {
	data := stored
	if c.opts.Encrypt {
		if len(data) < ivSize+tagSize {
			return nil, errtypes.CryptoFailure("ciphertext shorter than iv+tag")
		}
		block, err := aes.NewCipher(c.opts.Key)
		if err != nil {
			return nil, errors.Wrap(err, "codec: aes cipher init failed")
		}
		gcm, err := cipher.NewGCMWithNonceSize(block, ivSize)
		if err != nil {
			return nil, errors.Wrap(err, "codec: gcm init failed")
		}
		iv := data[:ivSize]
		ciphertext := data[ivSize:]
		plain, err := gcm.Open(nil, iv, ciphertext, nil)
		if err != nil {
			return nil, errtypes.CryptoFailure("gcm tag verification failed")
		}
		data = plain
	}
	if c.opts.Compress {
		zr, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, errors.Wrap(err, "codec: inflate init failed")
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, errors.Wrap(err, "codec: inflate read failed")
		}
		data = out
	}
	return data, nil
}
