// SPDX-License-Identifier: MPL-2.0

package catalog

import (
	"slices"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultCacheSize bounds the number of cached release listings.
const DefaultCacheSize = 16

type (
	// Cache stores release listings between calls. Implementations must be
	// safe for concurrent use.
	Cache interface {
		Get(key string) ([]Release, bool)
		Set(key string, releases []Release)
		TTL() time.Duration
	}

	// NoopCache never stores anything.
	NoopCache struct{}

	// MemoryCache is an in-process cache with per-entry expiry.
	MemoryCache struct {
		lru *expirable.LRU[string, []Release]
		ttl time.Duration
	}
)

// Get implements Cache.
func (NoopCache) Get(string) ([]Release, bool) { return nil, false }

// Set implements Cache.
func (NoopCache) Set(string, []Release) {}

// TTL implements Cache.
func (NoopCache) TTL() time.Duration { return 0 }

// NewMemoryCache creates a MemoryCache holding up to size listings for ttl each.
func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &MemoryCache{
		lru: expirable.NewLRU[string, []Release](size, nil, ttl),
		ttl: ttl,
	}
}

// Get implements Cache. The returned slice is a copy.
func (m *MemoryCache) Get(key string) ([]Release, bool) {
	v, ok := m.lru.Get(key)
	if !ok {
		return nil, false
	}
	return slices.Clone(v), true
}

// Set implements Cache.
func (m *MemoryCache) Set(key string, releases []Release) {
	m.lru.Add(key, slices.Clone(releases))
}

// TTL implements Cache.
func (m *MemoryCache) TTL() time.Duration { return m.ttl }
