package cache

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Options configures a Cache
type Options struct {
	TTL         time.Duration
	PurgeWindow time.Duration
	MaxItems    int
	Clock       clockwork.Clock
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

func (e entry[V]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Cache is a thread-safe in-memory cache with expiration.
// When MaxItems is reached the entry closest to expiry is evicted.
type Cache[K comparable, V any] struct {
	mu       sync.RWMutex
	items    map[K]entry[V]
	ttl      time.Duration
	maxItems int
	clock    clockwork.Clock

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a cache and starts its purge loop when PurgeWindow > 0
func New[K comparable, V any](opts Options) *Cache[K, V] {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	c := &Cache[K, V]{
		items:    make(map[K]entry[V]),
		ttl:      opts.TTL,
		maxItems: opts.MaxItems,
		clock:    opts.Clock,
		stop:     make(chan struct{}),
	}
	if opts.PurgeWindow > 0 {
		go c.purgeLoop(opts.PurgeWindow)
	}
	return c
}

// Set stores value under key with the default TTL
func (c *Cache[K, V]) Set(key K, value V) {
	var exp time.Time
	if c.ttl > 0 {
		exp = c.clock.Now().Add(c.ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; !exists && c.maxItems > 0 && len(c.items) >= c.maxItems {
		c.evictOldest()
	}
	c.items[key] = entry[V]{value: value, expiresAt: exp}
}

// Get returns the live value stored under key
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.items[key]
	if !ok || e.expired(c.clock.Now()) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Delete removes key
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
}

// Len returns the number of entries, expired ones included
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}

// Close stops the purge loop
func (c *Cache[K, V]) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Cache[K, V]) purgeLoop(every time.Duration) {
	ticker := c.clock.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.Chan():
			c.purge()
		}
	}
}

func (c *Cache[K, V]) purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	for k, e := range c.items {
		if e.expired(now) {
			delete(c.items, k)
		}
	}
}

// evictOldest must be called with the mutex held
func (c *Cache[K, V]) evictOldest() {
	var (
		oldest K
		at     time.Time
		found  bool
	)
	for k, e := range c.items {
		if !found || e.expiresAt.Before(at) {
			oldest, at, found = k, e.expiresAt, true
		}
	}
	if found {
		delete(c.items, oldest)
	}
}
