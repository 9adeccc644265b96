package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/loykin/sigsift/internal/history"
	"github.com/loykin/sigsift/internal/metrics"
	"github.com/loykin/sigsift/internal/registry"
	"github.com/loykin/sigsift/internal/sink"
	"github.com/loykin/sigsift/internal/store"
	"github.com/loykin/sigsift/pkg/template"
)

// ErrAlreadyLive is returned when materializing an id that is registered.
var ErrAlreadyLive = errors.New("node already materialized")

// Orchestrator reacts to node lifecycle events: materialization, destruction,
// cloning, settings paste, and template capture/apply. It owns sink
// creation/teardown around the registry; it never touches the set algebra.
//
// Per node the states are Draft -> Live -> Gone. Draft-phase configuration
// lives inline on the placeholder and is reached through registry refs, so
// the orchestrator never branches on phase for config work.
type Orchestrator struct {
	mu    sync.Mutex
	reg   *registry.Registry
	sinks sink.Factory

	st        store.Store
	histSinks []history.Sink

	// defaults is merged onto fresh nodes that materialize with neither a
	// template payload nor a persisted snapshot.
	defaults registry.Patch

	// releaseView tells an external observer to drop its detail view of a
	// node that is going away. Fire-and-forget.
	releaseView func(registry.NodeID)
}

func New(reg *registry.Registry, sinks sink.Factory) *Orchestrator {
	return &Orchestrator{reg: reg, sinks: sinks}
}

// SetStore configures a persistence store for config snapshots. It ensures
// the schema and stores the instance for subsequent writes.
func (o *Orchestrator) SetStore(s store.Store) error {
	o.mu.Lock()
	o.st = s
	o.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.EnsureSchema(context.Background())
}

// SetHistorySinks configures external history sinks (PostgreSQL, ClickHouse, etc.).
// Passing nil or no sinks clears the list.
func (o *Orchestrator) SetHistorySinks(sinks ...history.Sink) {
	o.mu.Lock()
	o.histSinks = append([]history.Sink(nil), sinks...)
	o.mu.Unlock()
}

// SetViewReleaseHook installs the observer-release callback fired on destroy.
func (o *Orchestrator) SetViewReleaseHook(fn func(registry.NodeID)) {
	o.mu.Lock()
	o.releaseView = fn
	o.mu.Unlock()
}

// SetDefaultConfig installs a partial configuration merged onto every node
// that materializes without a template payload or persisted snapshot.
// Template payloads and snapshots always win over these defaults.
func (o *Orchestrator) SetDefaultConfig(p registry.Patch) {
	o.mu.Lock()
	o.defaults = p
	o.mu.Unlock()
}

// Materialize moves a node Draft -> Live: creates both sinks, registers the
// node, and restores a template payload if one accompanies materialization.
// When no payload is given, a persisted config snapshot (if any) is restored,
// otherwise the node starts with defaults. If a sink fails to create, nothing
// is registered and the already-created sink is destroyed.
func (o *Orchestrator) Materialize(id registry.NodeID, tmpl *template.Payload) error {
	red, err := o.sinks.Create(uint64(id), sink.Red)
	if err != nil {
		metrics.IncMaterializeFailure()
		return fmt.Errorf("create red sink for node %d: %w", id, err)
	}
	green, err := o.sinks.Create(uint64(id), sink.Green)
	if err != nil {
		o.sinks.Destroy(red)
		metrics.IncMaterializeFailure()
		return fmt.Errorf("create green sink for node %d: %w", id, err)
	}
	if _, ok := o.reg.RegisterLive(id, red, green); !ok {
		o.sinks.Destroy(red)
		o.sinks.Destroy(green)
		return fmt.Errorf("node %d: %w", id, ErrAlreadyLive)
	}

	switch {
	case tmpl != nil:
		o.reg.Restore(registry.Live(id), tmpl.Patch())
	default:
		if rec, ok := o.savedConfig(id); ok {
			o.reg.Restore(registry.Live(id), rec.Config().AsPatch())
			break
		}
		o.mu.Lock()
		defaults := o.defaults
		o.mu.Unlock()
		o.reg.SetConfig(registry.Live(id), defaults)
	}

	o.persist(id)
	o.emit(history.EventMaterialized, id)
	slog.Debug("node materialized", "node", id, "templated", tmpl != nil)
	return nil
}

// Destroy moves a node Live -> Gone by any removal trigger: unregisters it,
// destroys both sinks, releases the external detail view, and drops the
// persisted snapshot. Destroying an absent node is a no-op.
func (o *Orchestrator) Destroy(id registry.NodeID) {
	cfg := o.reg.GetConfig(registry.Live(id))
	red, green := o.reg.UnregisterLive(id)
	if red == nil && green == nil {
		return
	}
	o.sinks.Destroy(red)
	o.sinks.Destroy(green)

	o.mu.Lock()
	release := o.releaseView
	st := o.st
	o.mu.Unlock()
	if release != nil {
		release(id)
	}
	if st != nil {
		_ = st.Delete(context.Background(), id)
	}
	o.emitConfig(history.EventDestroyed, id, cfg)
	slog.Debug("node destroyed", "node", id)
}

// Capture serializes a node's configuration into a portable template payload.
// Read-only; works for either phase.
func (o *Orchestrator) Capture(ref registry.Ref) template.Payload {
	return template.FromConfig(o.reg.Serialize(ref))
}

// ApplyTemplate restores a template payload onto a node in either phase:
// Draft -> Draft before materialization, Live -> Live afterwards.
func (o *Orchestrator) ApplyTemplate(ref registry.Ref, p template.Payload) {
	o.reg.Restore(ref, p.Patch())
	o.afterRestore(ref)
}

// PasteSettings copies configuration between two nodes in any phase
// combination via serialize + restore.
func (o *Orchestrator) PasteSettings(src, dst registry.Ref) {
	cfg := o.reg.Serialize(src)
	o.reg.Restore(dst, cfg.AsPatch())
	o.afterRestore(dst)
}

// Clone reproduces src's configuration on dstID. A destination that is not
// yet live is materialized first with the serialized config as its template
// payload; a live destination is restored in place.
func (o *Orchestrator) Clone(src registry.Ref, dstID registry.NodeID) error {
	p := template.FromConfig(o.reg.Serialize(src))
	if !o.reg.IsLive(dstID) {
		return o.Materialize(dstID, &p)
	}
	o.ApplyTemplate(registry.Live(dstID), p)
	return nil
}

// UpdateConfig merge-updates a node's configuration and persists the result
// for live nodes.
func (o *Orchestrator) UpdateConfig(ref registry.Ref, p registry.Patch) {
	o.reg.SetConfig(ref, p)
	if id, live := ref.ID(); live {
		o.persist(id)
	}
}

// ReconcileOnce sweeps invalid nodes (destroying their sinks) and re-asserts
// the display-sync hook for everything still valid. Run after configuration
// or version migrations, when persisted state may predate a schema change.
func (o *Orchestrator) ReconcileOnce(isValid func(registry.NodeID) bool) {
	removed := o.reg.SweepInvalid(isValid)
	for _, rm := range removed {
		o.sinks.Destroy(rm.Red)
		o.sinks.Destroy(rm.Green)
		o.mu.Lock()
		release := o.releaseView
		st := o.st
		o.mu.Unlock()
		if release != nil {
			release(rm.ID)
		}
		if st != nil {
			_ = st.Delete(context.Background(), rm.ID)
		}
		o.emit(history.EventSwept, rm.ID)
	}
	if len(removed) > 0 {
		slog.Info("swept invalid nodes", "count", len(removed))
	}
	for _, id := range o.reg.IDs() {
		o.reg.SyncDisplay(id)
	}
}

func (o *Orchestrator) afterRestore(ref registry.Ref) {
	if id, live := ref.ID(); live {
		o.persist(id)
		o.emit(history.EventRestored, id)
	}
}

// savedConfig looks up a persisted snapshot for id.
func (o *Orchestrator) savedConfig(id registry.NodeID) (store.Record, bool) {
	o.mu.Lock()
	st := o.st
	o.mu.Unlock()
	if st == nil {
		return store.Record{}, false
	}
	rec, err := st.Get(context.Background(), id)
	if err != nil {
		return store.Record{}, false
	}
	return rec, true
}

// persist snapshots a live node's current configuration.
func (o *Orchestrator) persist(id registry.NodeID) {
	o.mu.Lock()
	st := o.st
	o.mu.Unlock()
	if st == nil || !o.reg.IsLive(id) {
		return
	}
	cfg := o.reg.GetConfig(registry.Live(id))
	rec := store.Record{
		NodeID:           id,
		Mode:             cfg.Mode,
		QualitySensitive: cfg.QualitySensitive,
		UpdatedAt:        time.Now().UTC(),
	}
	if err := st.Save(context.Background(), rec); err != nil {
		slog.Warn("persist node config failed", "node", id, "err", err)
	}
}

func (o *Orchestrator) emit(t history.EventType, id registry.NodeID) {
	o.emitConfig(t, id, o.reg.GetConfig(registry.Live(id)))
}

func (o *Orchestrator) emitConfig(t history.EventType, id registry.NodeID, cfg registry.Config) {
	o.mu.Lock()
	sinks := append([]history.Sink(nil), o.histSinks...)
	o.mu.Unlock()
	if len(sinks) == 0 {
		return
	}
	evt := history.Event{
		Type:             t,
		OccurredAt:       time.Now().UTC(),
		NodeID:           id,
		Mode:             cfg.Mode,
		QualitySensitive: cfg.QualitySensitive,
	}
	for _, s := range sinks {
		_ = s.Send(context.Background(), evt)
	}
}
