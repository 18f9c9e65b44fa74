package reconcile

import (
	"sync"
	"time"

	"momentify/internal/clock"
)

// TrackingExpiry is how long a self-upload id stays tracked.
const TrackingExpiry = 5 * time.Second

// TrackingSet holds ids of media this client produced recently. Entries
// expire on their own.
type TrackingSet struct {
	clock  clock.Clock
	expiry time.Duration

	mu      sync.Mutex
	entries map[string]clock.Timer
}

// NewTrackingSet creates a set whose entries expire after expiry. A zero
// expiry means TrackingExpiry.
func NewTrackingSet(c clock.Clock, expiry time.Duration) *TrackingSet {
	if c == nil {
		c = clock.Real{}
	}
	if expiry <= 0 {
		expiry = TrackingExpiry
	}
	return &TrackingSet{clock: c, expiry: expiry, entries: make(map[string]clock.Timer)}
}

// Add tracks id, restarting its expiry if already present.
func (t *TrackingSet) Add(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if old, ok := t.entries[id]; ok {
		old.Stop()
	}
	var timer clock.Timer
	timer = t.clock.AfterFunc(t.expiry, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.entries[id] == timer {
			delete(t.entries, id)
		}
	})
	t.entries[id] = timer
}

func (t *TrackingSet) Contains(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[id]
	return ok
}

// Consume removes id and reports whether it was tracked.
func (t *TrackingSet) Consume(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	timer, ok := t.entries[id]
	if ok {
		timer.Stop()
		delete(t.entries, id)
	}
	return ok
}

func (t *TrackingSet) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Clear drops every entry and stops their timers.
func (t *TrackingSet) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, timer := range t.entries {
		timer.Stop()
		delete(t.entries, id)
	}
}
