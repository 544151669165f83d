package registry

import (
	"sync"

	"github.com/draftline/draftline/internal/unit"
)

// DirtySet tracks which unit ids currently have unsaved edits.
//
// It holds ids only, never unit data, and is the single source of truth for
// "needs saving". Membership can outlive the unit's registration.
//
// Thread-safety: all methods are safe for concurrent use. The save engine
// only mutates the set at phase boundaries (before fan-out, after fan-in).
type DirtySet struct {
	mu  sync.Mutex
	ids map[unit.ID]struct{}
}

// NewDirtySet creates an empty dirty set.
func NewDirtySet() *DirtySet {
	return &DirtySet{ids: make(map[unit.ID]struct{})}
}

// MarkDirty records that a unit has unsaved edits.
// Idempotent: marking an already-dirty id has no observable effect.
func (d *DirtySet) MarkDirty(id unit.ID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ids[id] = struct{}{}
}

// MarkClean records that a unit's edits have been saved.
// Absent ids are a no-op, not an error.
func (d *DirtySet) MarkClean(id unit.ID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.ids, id)
}

// ResetAll empties the set.
func (d *DirtySet) ResetAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ids = make(map[unit.ID]struct{})
}

// IsDirty reports whether any unit has unsaved edits.
func (d *DirtySet) IsDirty() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.ids) > 0
}

// Contains reports whether the given id is marked dirty.
func (d *DirtySet) Contains(id unit.ID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.ids[id]
	return ok
}

// IDs returns a snapshot of the dirty ids in no particular order.
// Callers must not depend on ordering for correctness.
func (d *DirtySet) IDs() []unit.ID {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]unit.ID, 0, len(d.ids))
	for id := range d.ids {
		out = append(out, id)
	}
	return out
}

// Len returns the number of dirty ids.
func (d *DirtySet) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.ids)
}
