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

package cache

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_AddThenGet_RoundTrips(t *testing.T) {
	c := New(1000, 0.8)
	c.Add("p1", []byte("hello"))
	got, ok := c.Get("p1")
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), got)
}

func TestCache_EvictionScenario_SpecExample(t *testing.T) {
	// Capacity 1000, threshold 0.8. Three 400B blobs added in order.
	c := New(1000, 0.8)
	blob := bytes.Repeat([]byte{1}, 400)
	c.Add("P1", blob)
	c.Add("P2", blob)
	c.Add("P3", blob)

	assert.False(t, c.Contains("P1"))
	assert.True(t, c.Contains("P2"))
	assert.True(t, c.Contains("P3"))
}

func TestCache_AdmissionRefused_OverHalfCapacity(t *testing.T) {
	c := New(1000, 0.8)
	big := bytes.Repeat([]byte{1}, 600) // > capacity/2
	c.Add("big", big)
	assert.False(t, c.Contains("big"))
}

func TestCache_GetUpdatesRecency(t *testing.T) {
	c := New(900, 1.0)
	blob := bytes.Repeat([]byte{1}, 300)
	c.Add("a", blob)
	c.Add("b", blob)
	c.Add("c", blob)
	// touch "a" so it becomes most-recently-used
	c.Get("a")
	c.Add("d", blob) // forces an eviction; "b" is now least-recently-used
	assert.False(t, c.Contains("b"))
	assert.True(t, c.Contains("a"))
	assert.True(t, c.Contains("c"))
	assert.True(t, c.Contains("d"))
}

func TestCache_Remove(t *testing.T) {
	c := New(1000, 0.8)
	c.Add("p", []byte("x"))
	c.Remove("p")
	assert.False(t, c.Contains("p"))
	_, ok := c.Get("p")
	assert.False(t, ok)
}

func TestCache_UsageFractionAndCleanup(t *testing.T) {
	c := New(1000, 0.8)
	blob := bytes.Repeat([]byte{1}, 400)
	c.Add("a", blob)
	c.Add("b", blob)
	assert.InDelta(t, 0.8, c.UsageFraction(), 0.01)
	c.SetThreshold(0.3)
	c.Cleanup()
	assert.LessOrEqual(t, c.SizeBytes(), int64(300))
}

func TestCache_OverHalfCapacity_NeverAdmitted(t *testing.T) {
	c := New(100, 0.5)
	c.Add("only", bytes.Repeat([]byte{1}, 60)) // > capacity/2 == 50
	assert.False(t, c.Contains("only"))
	assert.Equal(t, int64(0), c.SizeBytes())
}

func TestCache_UnderHalfCapacityButOverThreshold_RefusedAfterEvictingEverything(t *testing.T) {
	c := New(100, 0.3) // budget = 30 bytes
	c.Add("only", bytes.Repeat([]byte{1}, 40)) // <= capacity/2, > budget even when empty
	assert.False(t, c.Contains("only"))
	assert.Equal(t, int64(0), c.SizeBytes())
}
