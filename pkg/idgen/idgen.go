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

// Package idgen implements C1: UID generation and monotonic version
// timestamp allocation.
package idgen

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// versionLayout is the on-disk/wire format of a version timestamp:
// millisecond-resolution, lexicographically sortable.
const versionLayout = "20060102_150405.000"

// NewUID returns a new 128-bit identifier in canonical hyphenated hex form.
func NewUID() string {
	return uuid.NewString()
}

// NowMillis returns the current wall-clock time as unix milliseconds,
// the resolution Entry.CreatedAt/ModifiedAt are stored at.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// Service allocates version timestamps that are strictly monotonic per
// uid, even under a stalled wall clock or concurrent callers racing on
// the same uid.
type Service struct {
	mu   sync.Mutex
	last map[string]time.Time
	now  func() time.Time
}

// NewService constructs a version timestamp allocator.
func NewService() *Service {
	return &Service{
		last: make(map[string]time.Time),
		now:  time.Now,
	}
}

// NextVersion returns a version_ts for uid that is strictly greater,
// lexicographically, than every version_ts previously returned for the
// same uid by this Service. If the wall clock has not advanced past the
// last issued stamp, the millisecond component is bumped by hand so
// monotonicity never depends on the caller retrying.
func (s *Service) NextVersion(uid string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.now().UTC().Truncate(time.Millisecond)
	if prev, ok := s.last[uid]; ok && !t.After(prev) {
		t = prev.Add(time.Millisecond)
	}
	s.last[uid] = t
	return t.Format(versionLayout)
}
