package registry

import (
	"sync"

	"github.com/loykin/sigsift/internal/metrics"
	"github.com/loykin/sigsift/internal/sink"
)

// Registry maps live node ids to their configuration and sink handles, and
// resolves draft refs against their inline payloads, so callers get one
// accessor surface regardless of phase.
//
// Absence is a normal state everywhere in this type: a just-destroyed node
// queried one tick later gets defaults or a no-op, never an error.
type Registry struct {
	mu      sync.RWMutex
	entries map[NodeID]*entry

	// onModeChanged lets an external display reflect a restored mode.
	// Fire-and-forget; the registry owns no rendering logic.
	onModeChanged func(NodeID, Mode)
}

type entry struct {
	cfg   Config
	red   *sink.Handle
	green *sink.Handle
}

// Removed pairs a swept node with its sink handles. The caller owns teardown.
type Removed struct {
	ID    NodeID
	Red   *sink.Handle
	Green *sink.Handle
}

func New() *Registry {
	return &Registry{entries: make(map[NodeID]*entry)}
}

// SetModeChangedHook installs the display-sync callback fired on restores.
func (r *Registry) SetModeChangedHook(fn func(NodeID, Mode)) {
	r.mu.Lock()
	r.onModeChanged = fn
	r.mu.Unlock()
}

// RegisterLive creates an entry with the default configuration. It reports
// false without registering when the id is already present or either sink
// handle is absent; no half-registered node can exist.
func (r *Registry) RegisterLive(id NodeID, red, green *sink.Handle) (Config, bool) {
	if red == nil || green == nil {
		return Config{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[id]; exists {
		return Config{}, false
	}
	cfg := DefaultConfig()
	r.entries[id] = &entry{cfg: cfg, red: red, green: green}
	metrics.SetLiveNodes(len(r.entries))
	return cfg, true
}

// UnregisterLive removes the entry and returns its sink handles for
// caller-driven teardown. Removal does not destroy the sinks; ownership of
// teardown is explicit. Absent ids return nil handles.
func (r *Registry) UnregisterLive(id NodeID) (red, green *sink.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, nil
	}
	delete(r.entries, id)
	metrics.SetLiveNodes(len(r.entries))
	return e.red, e.green
}

// GetConfig resolves a ref to its configuration in either phase, returning
// defaults when the draft payload or the live entry is missing.
func (r *Registry) GetConfig(ref Ref) Config {
	if ref.IsDraft() {
		p, ok := ref.draft.Payload()
		if !ok {
			return DefaultConfig()
		}
		return p.Materialized()
	}
	id, ok := ref.ID()
	if !ok {
		return DefaultConfig()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, found := r.entries[id]; found {
		return e.cfg
	}
	return DefaultConfig()
}

// SetConfig merge-updates the configuration behind ref; nil patch fields
// retain their prior value. Draft refs get a replacement payload container,
// live refs are updated in place. Unknown refs are a no-op.
func (r *Registry) SetConfig(ref Ref, p Patch) {
	if ref.IsDraft() {
		prior, _ := ref.draft.Payload()
		merged := p.apply(prior.Materialized())
		ref.draft.SetPayload(merged.AsPatch())
		return
	}
	id, ok := ref.ID()
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, found := r.entries[id]; found {
		e.cfg = p.apply(e.cfg)
	}
}

// Serialize returns a default-filled copy of the configuration behind ref,
// suitable for template capture and cloning. The copy never references live
// registry state.
func (r *Registry) Serialize(ref Ref) Config {
	return r.GetConfig(ref)
}

// Restore applies a possibly partial or foreign configuration to either
// phase, default-filling missing fields. For a live node it additionally
// fires the display-sync hook.
func (r *Registry) Restore(ref Ref, p Patch) {
	cfg := p.Materialized()
	if ref.IsDraft() {
		ref.draft.SetPayload(cfg.AsPatch())
		return
	}
	id, ok := ref.ID()
	if !ok {
		return
	}
	r.mu.Lock()
	e, found := r.entries[id]
	if found {
		e.cfg = cfg
	}
	hook := r.onModeChanged
	r.mu.Unlock()
	if found && hook != nil {
		hook(id, cfg.Mode)
	}
}

// SyncDisplay re-fires the display-sync hook with a live node's current mode.
// Used by reconciliation passes to re-assert state after schema migrations.
func (r *Registry) SyncDisplay(id NodeID) {
	r.mu.RLock()
	e, found := r.entries[id]
	var mode Mode
	if found {
		mode = e.cfg.Mode
	}
	hook := r.onModeChanged
	r.mu.RUnlock()
	if found && hook != nil {
		hook(id, mode)
	}
}

// SweepInvalid removes every live entry for which isValid returns false and
// returns the removed nodes with their sink handles for teardown. Safe on an
// empty registry.
func (r *Registry) SweepInvalid(isValid func(NodeID) bool) []Removed {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed []Removed
	for id, e := range r.entries {
		if isValid != nil && isValid(id) {
			continue
		}
		removed = append(removed, Removed{ID: id, Red: e.red, Green: e.green})
		delete(r.entries, id)
	}
	metrics.IncSweep()
	metrics.AddSwept(len(removed))
	metrics.SetLiveNodes(len(r.entries))
	return removed
}

// Sinks returns a live node's sink handles.
func (r *Registry) Sinks(id NodeID) (red, green *sink.Handle, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, found := r.entries[id]
	if !found {
		return nil, nil, false
	}
	return e.red, e.green, true
}

// IsLive reports whether id has a registry entry.
func (r *Registry) IsLive(id NodeID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, found := r.entries[id]
	return found
}

// IDs returns a snapshot of all live node ids.
func (r *Registry) IDs() []NodeID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]NodeID, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of live entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
