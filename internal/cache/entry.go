// Package cache memoizes derived data for a bounded time window.
package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Loader computes a fresh value for an Entry.
type Loader[T any] func(ctx context.Context) (T, error)

// Entry holds at most one cached value with its creation time. A value is
// served verbatim while younger than the TTL; Invalidate forces the next Get
// to reload. Concurrent reloads of the same generation share one Loader call.
type Entry[T any] struct {
	mu        sync.Mutex
	ttl       time.Duration
	now       func() time.Time
	load      Loader[T]
	value     T
	createdAt time.Time
	valid     bool
	gen       uint64 // bumped by Invalidate
	flight    singleflight.Group
	hits      int64
	misses    int64
}

// Stats reports cache effectiveness.
type Stats struct {
	Hits   int64
	Misses int64
}

// NewEntry creates an entry that reloads through load after ttl.
func NewEntry[T any](ttl time.Duration, load Loader[T]) *Entry[T] {
	return &Entry[T]{
		ttl:  ttl,
		now:  time.Now,
		load: load,
	}
}

// WithClock replaces the clock. Used by tests.
func (e *Entry[T]) WithClock(now func() time.Time) *Entry[T] {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = now
	return e
}

// Get returns the cached value, reloading it when absent, expired or invalidated.
func (e *Entry[T]) Get(ctx context.Context) (T, error) {
	e.mu.Lock()
	if e.valid && e.now().Sub(e.createdAt) < e.ttl {
		v := e.value
		e.hits++
		e.mu.Unlock()
		return v, nil
	}
	gen := e.gen
	e.misses++
	e.mu.Unlock()

	v, err, _ := e.flight.Do(strconv.FormatUint(gen, 10), func() (any, error) {
		start := e.clock()
		v, err := e.load(ctx)
		if err != nil {
			return v, err
		}

		e.mu.Lock()
		// A load that raced with Invalidate must not repopulate the entry
		if e.gen == gen {
			e.value = v
			e.createdAt = start
			e.valid = true
		}
		e.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Invalidate drops the cached value regardless of its age.
func (e *Entry[T]) Invalidate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.drop()
	e.gen++
}

// CleanExpired releases an expired value and reports whether it did.
func (e *Entry[T]) CleanExpired() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.valid && e.now().Sub(e.createdAt) >= e.ttl {
		e.drop()
		return 1
	}
	return 0
}

// Stats returns hit and miss counters.
func (e *Entry[T]) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{Hits: e.hits, Misses: e.misses}
}

func (e *Entry[T]) clock() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now()
}

// drop clears the value. Callers hold e.mu.
func (e *Entry[T]) drop() {
	var zero T
	e.value = zero
	e.createdAt = time.Time{}
	e.valid = false
}
