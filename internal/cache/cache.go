// Package cache provides the time-boxed keyed stores shared across requests
// (weather snapshots, POI results). Freshness is judged against an injected
// clock so tests can move time without sleeping.
package cache

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Clock abstracts time.Now.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ManualClock is a Clock that only moves when told to.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// TTL is a concurrency-safe store whose entries are fresh for a fixed duration.
// Entries are replaced whole on Set and never mutated in place.
type TTL[V any] struct {
	store *gocache.Cache
	ttl   time.Duration
	clock Clock
}

// New creates a TTL store. The underlying go-cache janitor evicts entries on
// wall-clock time; freshness checks use clock.
func New[V any](ttl time.Duration, clock Clock) *TTL[V] {
	if clock == nil {
		clock = SystemClock{}
	}
	return &TTL[V]{
		store: gocache.New(ttl, 2*ttl),
		ttl:   ttl,
		clock: clock,
	}
}

// Get returns the cached value when it is younger than the TTL.
func (c *TTL[V]) Get(key string) (V, bool) {
	var zero V
	raw, ok := c.store.Get(key)
	if !ok {
		return zero, false
	}
	e, ok := raw.(entry[V])
	if !ok {
		return zero, false
	}
	if c.clock.Now().Sub(e.storedAt) >= c.ttl {
		c.store.Delete(key)
		return zero, false
	}
	return e.value, true
}

// Set stores value under key, replacing any previous entry.
func (c *TTL[V]) Set(key string, value V) {
	c.store.Set(key, entry[V]{value: value, storedAt: c.clock.Now()}, gocache.DefaultExpiration)
}

// Delete removes key.
func (c *TTL[V]) Delete(key string) {
	c.store.Delete(key)
}

// Len reports the number of stored entries, including ones that are stale
// but not yet evicted.
func (c *TTL[V]) Len() int {
	return c.store.ItemCount()
}

// TTL returns the freshness window.
func (c *TTL[V]) TTL() time.Duration {
	return c.ttl
}

// Clock returns the clock used for freshness checks.
func (c *TTL[V]) Clock() Clock {
	return c.clock
}
