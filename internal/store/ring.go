package store

import (
	"sync"

	"github.com/luiza-sangalli/segment/internal/models"
)

// DefaultCapacity is how many recent events are kept in memory.
const DefaultCapacity = 50

// EventStore holds recently received events in arrival order.
type EventStore interface {
	// Append adds e as the newest entry, evicting the oldest when full.
	Append(e models.Entry)
	// Snapshot returns a copy of the current contents, oldest first.
	Snapshot() []models.Entry
	Len() int
	Capacity() int
}

// Ring is a fixed-capacity EventStore that overwrites its oldest entry.
type Ring struct {
	mu      sync.RWMutex
	entries []models.Entry
	head    int // index of the oldest entry
	size    int
}

var _ EventStore = (*Ring)(nil)

// NewRing returns a Ring holding at most capacity entries.
// A non-positive capacity falls back to DefaultCapacity.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{entries: make([]models.Entry, capacity)}
}

// Append stores e, evicting the oldest entry when the ring is full.
func (r *Ring) Append(e models.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tail := (r.head + r.size) % len(r.entries)
	r.entries[tail] = e
	if r.size < len(r.entries) {
		r.size++
		return
	}
	r.head = (r.head + 1) % len(r.entries)
}

// Snapshot returns a copy of the buffered entries, oldest first.
func (r *Ring) Snapshot() []models.Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Entry, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.entries[(r.head+i)%len(r.entries)]
	}
	return out
}

// Len returns the number of buffered entries.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Capacity returns the maximum number of entries the ring holds.
func (r *Ring) Capacity() int {
	return len(r.entries)
}
