// Package presence caches which participants the channel last reported as
// online. The server is the source of truth; this set drifts if a leave event
// is lost.
package presence

import (
	"sort"
	"sync"
)

type Tracker struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

func NewTracker() *Tracker {
	return &Tracker{ids: make(map[string]struct{})}
}

// Join marks id online. It reports whether id was previously unknown.
func (t *Tracker) Join(id string) bool {
	if id == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.ids[id]; ok {
		return false
	}
	t.ids[id] = struct{}{}
	return true
}

// Leave marks id offline. Removing an absent id is a no-op.
func (t *Tracker) Leave(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.ids[id]; !ok {
		return false
	}
	delete(t.ids, id)
	return true
}

func (t *Tracker) Online(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.ids[id]
	return ok
}

// IDs returns the online ids in sorted order.
func (t *Tracker) IDs() []string {
	t.mu.RLock()
	ids := make([]string, 0, len(t.ids))
	for id := range t.ids {
		ids = append(ids, id)
	}
	t.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.ids)
}

func (t *Tracker) Reset() {
	t.mu.Lock()
	t.ids = make(map[string]struct{})
	t.mu.Unlock()
}
