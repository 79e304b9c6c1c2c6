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

package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rational-Boxes/file-engine-core-sub001/pkg/errtypes"
)

func TestParseKey_HexAndBase64(t *testing.T) {
	raw := bytes.Repeat([]byte{0x42}, 32)
	hexKey := hex.EncodeToString(raw)
	b64Key := base64.StdEncoding.EncodeToString(raw)

	got, err := ParseKey(hexKey)
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	got, err = ParseKey(b64Key)
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestParseKey_RejectsBadLength(t *testing.T) {
	_, err := ParseKey("not-a-valid-key")
	require.Error(t, err)
	_, ok := err.(errtypes.InvalidArgument)
	assert.True(t, ok)
}

func TestCodec_RoundTrip_NoOp(t *testing.T) {
	c, err := New(Options{})
	require.NoError(t, err)
	plain := []byte("hello world")
	encoded, err := c.Encode(plain)
	require.NoError(t, err)
	assert.Equal(t, plain, encoded)
	decoded, err := c.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, plain, decoded)
}

func TestCodec_RoundTrip_CompressOnly(t *testing.T) {
	c, err := New(Options{Compress: true})
	require.NoError(t, err)
	plain := []byte(strings.Repeat("abcdefgh", 256))
	encoded, err := c.Encode(plain)
	require.NoError(t, err)
	assert.Less(t, len(encoded), len(plain))
	decoded, err := c.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, plain, decoded)
}

func TestCodec_RoundTrip_EncryptOnly(t *testing.T) {
	key, err := ParseKey(hex.EncodeToString(bytes.Repeat([]byte{0x01}, 32)))
	require.NoError(t, err)
	c, err := New(Options{Encrypt: true, Key: key})
	require.NoError(t, err)
	plain := []byte("top secret bytes")
	encoded, err := c.Encode(plain)
	require.NoError(t, err)
	assert.NotEqual(t, plain, encoded[ivSize:])
	assert.Len(t, encoded, ivSize+len(plain)+tagSize)
	decoded, err := c.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, plain, decoded)
}

func TestCodec_RoundTrip_CompressThenEncrypt(t *testing.T) {
	key, err := ParseKey(hex.EncodeToString(bytes.Repeat([]byte{0x02}, 32)))
	require.NoError(t, err)
	c, err := New(Options{Compress: true, Encrypt: true, Key: key})
	require.NoError(t, err)
	plain := []byte(strings.Repeat("compress-then-encrypt", 128))
	encoded, err := c.Encode(plain)
	require.NoError(t, err)
	decoded, err := c.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, plain, decoded)
}

func TestCodec_TamperedCiphertext_FailsWithCryptoFailure(t *testing.T) {
	key, err := ParseKey(hex.EncodeToString(bytes.Repeat([]byte{0x03}, 32)))
	require.NoError(t, err)
	c, err := New(Options{Encrypt: true, Key: key})
	require.NoError(t, err)
	encoded, err := c.Encode([]byte("sensitive"))
	require.NoError(t, err)

	tampered := make([]byte, len(encoded))
	copy(tampered, encoded)
	tampered[len(tampered)-1] ^= 0xFF

	_, err = c.Decode(tampered)
	require.Error(t, err)
	_, ok := err.(errtypes.CryptoFailure)
	assert.True(t, ok)
}

func TestNew_RejectsEncryptWithoutKey(t *testing.T) {
	_, err := New(Options{Encrypt: true})
	require.Error(t, err)
	_, ok := err.(errtypes.InvalidArgument)
	assert.True(t, ok)
}
