// Package cache provides a single-value TTL cache for read paths that can
// tolerate slightly stale data. The value and its insertion time are held
// together explicitly; there is no ambient package state.
package cache

import (
	"sync"
	"time"
)

type Value[T any] struct {
	mu         sync.Mutex
	data       T
	insertedAt time.Time
	ttl        time.Duration
	has        bool
}

func New[T any](ttl time.Duration) *Value[T] {
	return &Value[T]{ttl: ttl}
}

// Get returns the cached data if it is still fresh.
func (v *Value[T]) Get(now time.Time) (T, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.has || now.Sub(v.insertedAt) > v.ttl {
		var zero T
		return zero, false
	}
	return v.data, true
}

func (v *Value[T]) Set(data T, now time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.data = data
	v.insertedAt = now
	v.has = true
}

// Invalidate drops the cached value. Mutating operations that change the
// underlying data call this so the next read refills from the store.
func (v *Value[T]) Invalidate() {
	v.mu.Lock()
	defer v.mu.Unlock()
	var zero T
	v.data = zero
	v.has = false
}
