// Package unread owns the two unread counters (chat and notifications).
// Only the synchronizers in this package mutate a counter; the rest of the
// program sees them through Reader.
package unread

import "sync"

// Reader is the read-only view badge components consume.
type Reader interface {
	Count() int
	// Subscribe calls fn synchronously with every new value.
	Subscribe(fn func(count int)) (unsubscribe func())
}

type Counter struct {
	// writeMu orders mutations together with their publish, so subscribers
	// see values in the order they were set.
	writeMu sync.Mutex

	mu    sync.Mutex
	count int

	subMu   sync.Mutex
	subs    map[uint64]func(int)
	nextSub uint64
}

func newCounter() *Counter {
	return &Counter{subs: make(map[uint64]func(int))}
}

func (c *Counter) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

func (c *Counter) Subscribe(fn func(int)) func() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.nextSub++
	id := c.nextSub
	c.subs[id] = fn
	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

func (c *Counter) add(n int) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.mu.Lock()
	c.count += n
	v := c.count
	c.mu.Unlock()
	c.publish(v)
}

func (c *Counter) set(n int) {
	if n < 0 {
		n = 0
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.mu.Lock()
	changed := c.count != n
	c.count = n
	c.mu.Unlock()
	if changed {
		c.publish(n)
	}
}

func (c *Counter) publish(v int) {
	c.subMu.Lock()
	subs := make([]func(int), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.subMu.Unlock()
	for _, fn := range subs {
		fn(v)
	}
}

// Store is the shared state the badges read from.
type Store struct {
	Chat          Reader
	Notifications Reader
}
