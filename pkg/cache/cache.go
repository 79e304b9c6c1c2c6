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

// Package cache implements C5: a single process-wide, size-bounded LRU
// over storage_path -> blob bytes. It is built on container/list rather
// than a ready-made cache library because the eviction rule is a strict
// byte-budget threshold, not an entry count or a probabilistic policy
// (see DESIGN.md for why github.com/bluele/gcache and
// github.com/dgraph-io/ristretto, both present in the teacher's
// dependency set, don't fit this specific invariant — gcache is wired in
// pkg/acl instead, and ristretto is not used by this module).
package cache

import (
	"container/list"
	"sync"
)

type entry struct {
	path string
	data []byte
}

// Cache is a bounded, thread-safe LRU keyed by storage path.
type Cache struct {
	mu        sync.Mutex
	capacity  int64
	threshold float64
	size      int64
	ll        *list.List
	items     map[string]*list.Element
}

// New builds a Cache with the given byte capacity and high-water
// utilization threshold in [0,1].
func New(capacityBytes int64, threshold float64) *Cache {
	if threshold <= 0 || threshold > 1 {
		threshold = 1
	}
	return &Cache{
		capacity:  capacityBytes,
		threshold: threshold,
		ll:        list.New(),
		items:     make(map[string]*list.Element),
	}
}

// SetThreshold updates the high-water utilization threshold.
func (c *Cache) SetThreshold(f float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f > 0 && f <= 1 {
		c.threshold = f
	}
}

// Contains reports whether path is currently cached, without affecting
// recency order.
func (c *Cache) Contains(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[path]
	return ok
}

// Get returns the cached bytes for path and marks it most-recently-used.
func (c *Cache) Get(path string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[path]
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(el)
	e := el.Value.(*entry)
	out := make([]byte, len(e.data))
	copy(out, e.data)
	return out, true
}

// Add inserts or replaces path with b and marks it most-recently-used.
// A blob whose size exceeds half the capacity is never admitted. If
// there is not enough room even after evicting everything, admission is
// silently refused (no error) and any prior entry for path is removed.
func (c *Cache) Add(path string, b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	size := int64(len(b))
	if c.capacity > 0 && size > c.capacity/2 {
		c.removeLocked(path)
		return
	}

	c.removeLocked(path)

	budget := int64(float64(c.capacity) * c.threshold)
	for c.size+size > budget && c.ll.Len() > 0 {
		back := c.ll.Back()
		c.evictLocked(back)
	}
	if c.size+size > budget {
		// Cache is empty and the single entry still doesn't fit under
		// budget (threshold < 1 on a tight capacity): refuse silently.
		return
	}

	cp := make([]byte, size)
	copy(cp, b)
	el := c.ll.PushFront(&entry{path: path, data: cp})
	c.items[path] = el
	c.size += size
}

// Remove evicts path if present; it is a no-op otherwise.
func (c *Cache) Remove(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(path)
}

// SizeBytes returns the total bytes currently resident.
func (c *Cache) SizeBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// UsageFraction returns size/capacity, or 0 if capacity is 0.
func (c *Cache) UsageFraction() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.capacity == 0 {
		return 0
	}
	return float64(c.size) / float64(c.capacity)
}

// Cleanup evicts entries in LRU order until usage is back under the
// threshold. Evictions are silent: the blob still lives in the
// lower tiers, only the hot copy is dropped.
func (c *Cache) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	budget := int64(float64(c.capacity) * c.threshold)
	for c.size > budget && c.ll.Len() > 0 {
		c.evictLocked(c.ll.Back())
	}
}

func (c *Cache) removeLocked(path string) {
	if el, ok := c.items[path]; ok {
		c.evictLocked(el)
	}
}

func (c *Cache) evictLocked(el *list.Element) {
	e := el.Value.(*entry)
	delete(c.items, e.path)
	c.ll.Remove(el)
	c.size -= int64(len(e.data))
}
