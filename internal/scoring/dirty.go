package scoring

import (
	"sync"
	"time"
)

// DirtyTracker tracks which people have pending changes that require
// score recomputation. Thread-safe via RWMutex.
type DirtyTracker struct {
	mu         sync.RWMutex
	dirtyFlags map[string]time.Time // personID -> time marked dirty
}

// NewDirtyTracker creates a new DirtyTracker instance.
func NewDirtyTracker() *DirtyTracker {
	return &DirtyTracker{
		dirtyFlags: make(map[string]time.Time),
	}
}

// MarkDirty marks a person as needing score recomputation.
func (t *DirtyTracker) MarkDirty(personID string) {
	t.mu.Lock()
	t.dirtyFlags[personID] = time.Now()
	t.mu.Unlock()
}

// ClearDirty removes the dirty flag for a person after recomputation.
func (t *DirtyTracker) ClearDirty(personID string) {
	t.mu.Lock()
	delete(t.dirtyFlags, personID)
	t.mu.Unlock()
}

// GetDirtyPeople returns a list of person IDs that are marked dirty.
// Returns a copy to avoid external modification.
func (t *DirtyTracker) GetDirtyPeople() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	people := make([]string, 0, len(t.dirtyFlags))
	for personID := range t.dirtyFlags {
		people = append(people, personID)
	}
	return people
}

// IsDirty checks if a specific person is marked as dirty.
func (t *DirtyTracker) IsDirty(personID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, exists := t.dirtyFlags[personID]
	return exists
}

// DirtyCount returns the number of people marked as dirty.
func (t *DirtyTracker) DirtyCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.dirtyFlags)
}
