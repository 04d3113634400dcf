// Package cache is a small thread-safe in-memory cache with per-item expiration.
package cache

import (
	"sync"
	"time"
)

// Item is a cached value with its expiration in unix nanoseconds, zero meaning never
type Item[V any] struct {
	Value      V
	Expiration int64
}

func (item Item[V]) expired(now int64) bool {
	return item.Expiration > 0 && now > item.Expiration
}

// Option configures a Cache
type Option func(*options)

type options struct {
	maxItems int
	now      func() time.Time
}

// WithMaxItems bounds the cache; the item closest to expiry is evicted first
func WithMaxItems(n int) Option {
	return func(o *options) { o.maxItems = n }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Cache holds values of type V under string keys
type Cache[V any] struct {
	mu                sync.RWMutex
	items             map[string]Item[V]
	defaultExpiration time.Duration
	maxItems          int
	now               func() time.Time
	onEvicted         func(string, V)
}

// New creates a cache whose Set uses defaultExpiration
func New[V any](defaultExpiration time.Duration, opts ...Option) *Cache[V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[V]{
		items:             make(map[string]Item[V]),
		defaultExpiration: defaultExpiration,
		maxItems:          o.maxItems,
		now:               o.now,
	}
}

// Set adds an item with the default expiration
func (c *Cache[V]) Set(key string, value V) {
	c.SetWithExpiration(key, value, c.defaultExpiration)
}

// SetWithExpiration adds an item that expires after d; d <= 0 never expires
func (c *Cache[V]) SetWithExpiration(key string, value V, d time.Duration) {
	var exp int64
	if d > 0 {
		exp = c.now().Add(d).UnixNano()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; !exists && c.maxItems > 0 && len(c.items) >= c.maxItems {
		c.evictOldest()
	}
	c.items[key] = Item[V]{Value: value, Expiration: exp}
}

// Get returns the value for key unless it is missing or expired
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, found := c.items[key]
	if !found || item.expired(c.now().UnixNano()) {
		var zero V
		return zero, false
	}
	return item.Value, true
}

// Delete removes an item
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if item, found := c.items[key]; found && c.onEvicted != nil {
		c.onEvicted(key, item.Value)
	}
	delete(c.items, key)
}

// Flush removes all items
func (c *Cache[V]) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.onEvicted != nil {
		for k, v := range c.items {
			c.onEvicted(k, v.Value)
		}
	}
	c.items = make(map[string]Item[V])
}

// Count returns the number of items, expired ones included
func (c *Cache[V]) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// SetOnEvicted sets the callback run when an item is removed
func (c *Cache[V]) SetOnEvicted(f func(string, V)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvicted = f
}

// DeleteExpired drops every expired item
func (c *Cache[V]) DeleteExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now().UnixNano()
	for k, v := range c.items {
		if v.expired(now) {
			if c.onEvicted != nil {
				c.onEvicted(k, v.Value)
			}
			delete(c.items, k)
		}
	}
}

// evictOldest removes the item closest to expiry, preferring expiring items
// over permanent ones
func (c *Cache[V]) evictOldest() {
	var (
		oldestKey  string
		oldestTime int64
		found      bool
	)
	for k, v := range c.items {
		if !found || (v.Expiration != 0 && (oldestTime == 0 || v.Expiration < oldestTime)) {
			oldestKey = k
			oldestTime = v.Expiration
			found = true
		}
	}
	if !found {
		return
	}
	if c.onEvicted != nil {
		c.onEvicted(oldestKey, c.items[oldestKey].Value)
	}
	delete(c.items, oldestKey)
}
