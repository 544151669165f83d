// Package registry tracks which units exist (Registry) and which units have
// unsaved edits (DirtySet).
//
// The two structures are deliberately decoupled: unregistering a unit does
// NOT remove its id from the dirty set. Dirty membership is advisory - the
// phase runners always resolve ids through the registry and silently skip
// ids that no longer resolve, so a dangling dirty id is harmless.
package registry

import (
	"sync"

	"golang.org/x/text/unicode/norm"

	"github.com/draftline/draftline/internal/unit"
)

// Registry is a live directory mapping a unit id to its capabilities and
// display name. Units register on creation and unregister on destruction.
//
// Thread-safety: all methods are safe for concurrent use. Reads during a
// phase fan-out see either the old or the new registration for an id, never
// a partially-overwritten one.
type Registry struct {
	mu      sync.RWMutex
	entries map[unit.ID]unit.Registration
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[unit.ID]unit.Registration)}
}

// Register adds or replaces a unit's registration. A duplicate id replaces
// the existing entry atomically (last writer wins).
//
// The display name is normalized to Unicode NFC so that lookups and error
// reports compare equal regardless of the caller's composition form.
func (r *Registry) Register(reg unit.Registration) {
	reg.DisplayName = norm.NFC.String(reg.DisplayName)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[reg.ID] = reg
}

// Unregister removes a unit's registration. Absent ids are a no-op.
//
// Unregister does not touch the dirty set; that is the unit lifecycle's
// responsibility.
func (r *Registry) Unregister(id unit.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// Resolve returns the registration for id, if present.
func (r *Registry) Resolve(id unit.ID) (unit.Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.entries[id]
	return reg, ok
}

// DisplayName resolves a unit id to its display name, falling back to the
// raw id when the unit is not (or no longer) registered.
func (r *Registry) DisplayName(id unit.ID) string {
	if reg, ok := r.Resolve(id); ok && reg.DisplayName != "" {
		return reg.DisplayName
	}
	return string(id)
}

// Len returns the number of registered units.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
