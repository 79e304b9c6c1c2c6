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

package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONMode_EmitsStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "json")
	l.Info("tenant initialized", "tenant", "acme")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "tenant initialized", decoded["message"])
	assert.Equal(t, "acme", decoded["tenant"])
}

func TestWith_ChildLoggerCarriesField(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "json").With("component", "fsengine")
	l.Warn("slow request")

	require.Contains(t, buf.String(), `"component":"fsengine"`)
}

func TestError_AttachesErrorField(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "json")
	l.Error(errors.New("boom"), "write failed", "uid", "u1")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "boom", decoded["error"])
	assert.Equal(t, "u1", decoded["uid"])
}

func TestNop_NeverWritesAnything(t *testing.T) {
	l := Nop()
	l.Info("should not appear")
	l.Error(errors.New("x"), "neither should this")
}

func TestNew_ConsoleMode_DoesNotProduceRawJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "console")
	l.Info("hello")
	assert.False(t, strings.HasPrefix(strings.TrimSpace(buf.String()), "{"))
}
