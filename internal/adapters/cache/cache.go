// Package cache provides a bounded memoization cache for assessment results.
package cache

import (
	"context"
	"fmt"

	"github.com/hashicorp/golang-lru/v2"
	"github.com/okian/airrisk/pkg/metrics"
)

// DefaultCapacity is used when no capacity is configured.
const DefaultCapacity = 1000

// Memo maps reading keys ("<sensorId>_<timestamp>") to computed values and
// evicts the least recently used entry once full. It is safe for concurrent use.
type Memo[V any] struct {
	lru     *lru.Cache[string, V]
	metrics bool
}

// New creates a memo cache.
func New[V any](opts ...Option) (*Memo[V], error) {
	cfg := config{capacity: DefaultCapacity, metrics: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	c, err := lru.New[string, V](cfg.capacity)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &Memo[V]{lru: c, metrics: cfg.metrics}, nil
}

// Get returns the cached value for key.
func (m *Memo[V]) Get(_ context.Context, key string) (V, bool) {
	v, ok := m.lru.Get(key)
	if m.metrics {
		if ok {
			metrics.RecordCacheHit()
		} else {
			metrics.RecordCacheMiss()
		}
	}
	return v, ok
}

// Add stores v under key and reports whether an entry was evicted.
func (m *Memo[V]) Add(_ context.Context, key string, v V) bool {
	evicted := m.lru.Add(key, v)
	if m.metrics {
		metrics.UpdateCacheSize(m.lru.Len())
	}
	return evicted
}

// Len returns the number of cached entries.
func (m *Memo[V]) Len() int { return m.lru.Len() }

// Purge drops every entry.
func (m *Memo[V]) Purge() {
	m.lru.Purge()
	if m.metrics {
		metrics.UpdateCacheSize(0)
	}
}
