// Package cache provides a small generic TTL cache with LRU eviction.
//
// A Cache is an explicit object: it is constructed by its owner, expires
// entries after a fixed TTL, and runs one janitor goroutine until Close.
package cache

import (
	"container/list"
	"sync"
	"time"
)

type entry[K comparable, V any] struct {
	key     K
	value   V
	expires time.Time
}

// Cache maps K to V. The zero value is not usable; call New.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	max     int
	items   map[K]*list.Element
	order   *list.List // front = most recently used
	now     func() time.Time
	done    chan struct{}
	stopped sync.Once
}

// New returns a cache whose entries live for ttl. maxEntries <= 0 means
// unbounded. The janitor sweeps expired entries every ttl; call Close to
// stop it.
func New[K comparable, V any](ttl time.Duration, maxEntries int) *Cache[K, V] {
	c := newCache[K, V](ttl, maxEntries, time.Now)
	if ttl > 0 {
		go c.janitor(ttl)
	}
	return c
}

func newCache[K comparable, V any](ttl time.Duration, maxEntries int, now func() time.Time) *Cache[K, V] {
	return &Cache[K, V]{
		ttl:   ttl,
		max:   maxEntries,
		items: make(map[K]*list.Element),
		order: list.New(),
		now:   now,
		done:  make(chan struct{}),
	}
}

// Get returns the live value for key.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		return zero, false
	}
	e := el.Value.(*entry[K, V])
	if c.expired(e) {
		c.remove(el)
		return zero, false
	}
	c.order.MoveToFront(el)
	return e.value, true
}

// Set stores value under key, evicting the least recently used entry when
// the cache is full.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	exp := c.now().Add(c.ttl)
	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[K, V])
		e.value, e.expires = value, exp
		c.order.MoveToFront(el)
		return
	}
	if c.max > 0 && c.order.Len() >= c.max {
		c.remove(c.order.Back())
	}
	c.items[key] = c.order.PushFront(&entry[K, V]{key: key, value: value, expires: exp})
}

// Delete removes key.
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.remove(el)
	}
}

// Purge removes every entry.
func (c *Cache[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]*list.Element)
	c.order.Init()
}

// Len returns the number of stored entries, including expired ones not yet
// swept.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Close stops the janitor. The cache stays usable.
func (c *Cache[K, V]) Close() {
	c.stopped.Do(func() { close(c.done) })
}

func (c *Cache[K, V]) expired(e *entry[K, V]) bool {
	return c.ttl > 0 && !c.now().Before(e.expires)
}

// remove must be called with mu held.
func (c *Cache[K, V]) remove(el *list.Element) {
	e := c.order.Remove(el).(*entry[K, V])
	delete(c.items, e.key)
}

func (c *Cache[K, V]) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if c.expired(el.Value.(*entry[K, V])) {
			c.remove(el)
		}
		el = prev
	}
}

func (c *Cache[K, V]) janitor(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			c.sweep()
		case <-c.done:
			return
		}
	}
}
