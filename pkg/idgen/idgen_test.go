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

package idgen

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUID_IsUnique(t *testing.T) {
	a := NewUID()
	b := NewUID()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 36)
}

func TestService_NextVersion_MonotonicUnderStalledClock(t *testing.T) {
	s := NewService()
	frozen := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return frozen }

	first := s.NextVersion("u1")
	second := s.NextVersion("u1")
	third := s.NextVersion("u1")

	require.Less(t, first, second)
	require.Less(t, second, third)
}

func TestService_NextVersion_IndependentPerUID(t *testing.T) {
	s := NewService()
	frozen := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return frozen }

	a1 := s.NextVersion("a")
	b1 := s.NextVersion("b")
	assert.Equal(t, a1, b1) // same clock tick, different uids don't interfere
}

func TestService_NextVersion_AdvancingClock(t *testing.T) {
	s := NewService()
	tick := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		t := tick
		tick = tick.Add(time.Second)
		return t
	}
	first := s.NextVersion("u1")
	second := s.NextVersion("u1")
	assert.Less(t, first, second)
}
