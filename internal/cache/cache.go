// Package cache memoizes worksheet reads for a bounded time.
//
// Entries are keyed by worksheet name. A failed fetch is never stored, and
// any write to the store is expected to call InvalidateAll.
package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL is how long a read stays fresh.
const DefaultTTL = 60 * time.Second

// Clock returns the current wall time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the real wall clock.
var SystemClock Clock = systemClock{}

// Fetch loads the value for a key on a miss.
type Fetch[T any] func(ctx context.Context) (T, error)

type entry[T any] struct {
	value     T
	fetchedAt time.Time
}

// Cache is a TTL cache of worksheet reads.
type Cache[T any] struct {
	data  map[string]entry[T]
	ttl   time.Duration
	clock Clock
	mx    sync.Mutex

	hits   int
	misses int
}

// New returns a Cache. A non-positive ttl means DefaultTTL and a nil clock
// means SystemClock.
func New[T any](ttl time.Duration, clock Clock) *Cache[T] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = SystemClock
	}
	return &Cache[T]{
		data:  make(map[string]entry[T]),
		ttl:   ttl,
		clock: clock,
	}
}

// TTL returns the effective time-to-live.
func (c *Cache[T]) TTL() time.Duration {
	return c.ttl
}

// GetOrFetch returns the cached value for key if it is younger than the TTL,
// otherwise calls fetch and stores its result. The lock is held across the
// fetch so concurrent misses on one cache fetch once.
func (c *Cache[T]) GetOrFetch(ctx context.Context, key string, fetch Fetch[T]) (T, error) {
	c.mx.Lock()
	defer c.mx.Unlock()

	now := c.clock.Now()
	if e, ok := c.data[key]; ok && now.Sub(e.fetchedAt) < c.ttl {
		c.hits++
		return e.value, nil
	}
	c.misses++

	v, err := fetch(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	c.data[key] = entry[T]{value: v, fetchedAt: now}
	return v, nil
}

// Invalidate removes key.
func (c *Cache[T]) Invalidate(key string) {
	c.mx.Lock()
	defer c.mx.Unlock()

	delete(c.data, key)
}

// InvalidateAll removes every entry.
func (c *Cache[T]) InvalidateAll() {
	c.mx.Lock()
	defer c.mx.Unlock()

	c.data = make(map[string]entry[T])
}

// Stats returns hit and miss counts since creation.
func (c *Cache[T]) Stats() (hits, misses int) {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.hits, c.misses
}
