// Package cache хранит значения с ограниченным временем жизни: в памяти процесса или в Redis
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

const minSweepInterval = time.Minute

// TTL потокобезопасный кэш в памяти. Часы передаются снаружи, чтобы тесты могли их двигать.
// Истёкшие записи удаляются при чтении и периодической чисткой на записи.
type TTL[V any] struct {
	mu         sync.Mutex
	items      map[string]entry[V]
	ttl        time.Duration
	now        func() time.Time
	sweepEvery time.Duration
	nextSweep  time.Time
}

func NewTTL[V any](ttl time.Duration, now func() time.Time) *TTL[V] {
	if now == nil {
		now = time.Now
	}
	sweepEvery := ttl
	if sweepEvery < minSweepInterval {
		sweepEvery = minSweepInterval
	}
	return &TTL[V]{
		items:      make(map[string]entry[V]),
		ttl:        ttl,
		now:        now,
		sweepEvery: sweepEvery,
		nextSweep:  now().Add(sweepEvery),
	}
}

func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.items, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set кладёт значение с TTL кэша
func (c *TTL[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.ttl)
}

func (c *TTL[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if !now.Before(c.nextSweep) {
		c.sweep(now)
	}
	c.items[key] = entry[V]{value: value, expiresAt: now.Add(ttl)}
}

// sweep вызывается под c.mu
func (c *TTL[V]) sweep(now time.Time) {
	for k, e := range c.items {
		if !now.Before(e.expiresAt) {
			delete(c.items, k)
		}
	}
	c.nextSweep = now.Add(c.sweepEvery)
}

// Len число записей, включая ещё не вычищенные истёкшие
func (c *TTL[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *TTL[V]) Delete(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.items, k)
	}
}
