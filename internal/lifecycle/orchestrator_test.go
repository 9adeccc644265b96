package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/loykin/sigsift/internal/history"
	"github.com/loykin/sigsift/internal/registry"
	"github.com/loykin/sigsift/internal/sink"
	"github.com/loykin/sigsift/internal/store"
	"github.com/loykin/sigsift/pkg/template"
)

type memorySink struct {
	mu     sync.Mutex
	events []history.Event
}

func (m *memorySink) Send(_ context.Context, e history.Event) error {
	m.mu.Lock()
	m.events = append(m.events, e)
	m.mu.Unlock()
	return nil
}

func (m *memorySink) byType(t history.EventType) []history.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []history.Event
	for _, e := range m.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func newOrchestrator(t *testing.T) (*Orchestrator, *registry.Registry, *sink.MemoryFactory) {
	t.Helper()
	reg := registry.New()
	f := sink.NewMemoryFactory()
	return New(reg, f), reg, f
}

func TestMaterializeDefaults(t *testing.T) {
	o, reg, f := newOrchestrator(t)
	if err := o.Materialize(1, nil); err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if !reg.IsLive(1) {
		t.Fatalf("node not live after materialize")
	}
	if f.Live() != 2 {
		t.Fatalf("expected 2 live sinks, got %d", f.Live())
	}
	if cfg := reg.GetConfig(registry.Live(1)); cfg != registry.DefaultConfig() {
		t.Fatalf("config = %+v, want defaults", cfg)
	}
	if err := o.Materialize(1, nil); !errors.Is(err, ErrAlreadyLive) {
		t.Fatalf("second materialize err = %v", err)
	}
	if f.Live() != 2 {
		t.Fatalf("failed re-materialize leaked sinks: %d live", f.Live())
	}
}

func TestMaterializeWithTemplate(t *testing.T) {
	o, reg, _ := newOrchestrator(t)
	mode := template.ModeIntersection
	qs := false
	p := template.Payload{Mode: &mode, QualitySensitive: &qs}
	if err := o.Materialize(2, &p); err != nil {
		t.Fatalf("materialize: %v", err)
	}
	cfg := reg.GetConfig(registry.Live(2))
	if cfg.Mode != registry.ModeIntersection || cfg.QualitySensitive {
		t.Fatalf("template not restored: %+v", cfg)
	}
}

func TestMaterializeAppliesConfiguredDefaults(t *testing.T) {
	o, reg, _ := newOrchestrator(t)
	mode := registry.ModeIntersection
	qs := false
	o.SetDefaultConfig(registry.Patch{Mode: &mode, QualitySensitive: &qs})

	if err := o.Materialize(20, nil); err != nil {
		t.Fatalf("materialize: %v", err)
	}
	cfg := reg.GetConfig(registry.Live(20))
	if cfg.Mode != registry.ModeIntersection || cfg.QualitySensitive {
		t.Fatalf("configured defaults not applied: %+v", cfg)
	}

	// A template payload wins over the configured defaults.
	diff := template.ModeDifference
	p := template.Payload{Mode: &diff}
	if err := o.Materialize(21, &p); err != nil {
		t.Fatalf("materialize with template: %v", err)
	}
	if cfg := reg.GetConfig(registry.Live(21)); cfg.Mode != registry.ModeDifference {
		t.Fatalf("template lost to configured defaults: %+v", cfg)
	}
}

func TestMaterializeSnapshotWinsOverDefaults(t *testing.T) {
	o, reg, _ := newOrchestrator(t)
	st, err := store.NewSQLiteStore("")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer func() { _ = st.Close() }()
	if err := o.SetStore(st); err != nil {
		t.Fatalf("set store: %v", err)
	}

	if err := o.Materialize(22, nil); err != nil {
		t.Fatalf("materialize: %v", err)
	}
	qs := false
	o.UpdateConfig(registry.Live(22), registry.Patch{QualitySensitive: &qs})
	red, green := reg.UnregisterLive(22)
	red.Clear()
	green.Clear()

	mode := registry.ModeIntersection
	o.SetDefaultConfig(registry.Patch{Mode: &mode})
	if err := o.Materialize(22, nil); err != nil {
		t.Fatalf("re-materialize: %v", err)
	}
	cfg := reg.GetConfig(registry.Live(22))
	if cfg.Mode != registry.ModeDifference || cfg.QualitySensitive {
		t.Fatalf("snapshot lost to configured defaults: %+v", cfg)
	}
}

func TestMaterializePartialSinkFailure(t *testing.T) {
	o, reg, f := newOrchestrator(t)
	f.FailOn = sink.Green
	if err := o.Materialize(3, nil); err == nil {
		t.Fatalf("expected materialize failure")
	}
	if reg.IsLive(3) {
		t.Fatalf("half-registered node exists")
	}
	if f.Live() != 0 {
		t.Fatalf("leaked %d sinks after partial failure", f.Live())
	}
}

func TestDestroyTearsDownAndReleasesView(t *testing.T) {
	o, reg, f := newOrchestrator(t)
	var released []registry.NodeID
	o.SetViewReleaseHook(func(id registry.NodeID) { released = append(released, id) })

	if err := o.Materialize(4, nil); err != nil {
		t.Fatalf("materialize: %v", err)
	}
	o.Destroy(4)
	if reg.IsLive(4) {
		t.Fatalf("node still live")
	}
	if f.Live() != 0 {
		t.Fatalf("sinks not destroyed: %d live", f.Live())
	}
	if len(released) != 1 || released[0] != 4 {
		t.Fatalf("view release hook: %v", released)
	}
	// Destroying again is a quiet no-op.
	o.Destroy(4)
	if len(released) != 1 {
		t.Fatalf("destroy of gone node released a view")
	}
}

func TestCaptureApplyBothPhases(t *testing.T) {
	o, reg, _ := newOrchestrator(t)
	if err := o.Materialize(5, nil); err != nil {
		t.Fatalf("materialize: %v", err)
	}
	mode := registry.ModeIntersection
	o.UpdateConfig(registry.Live(5), registry.Patch{Mode: &mode})

	p := o.Capture(registry.Live(5))

	// Live -> Live apply.
	if err := o.Materialize(6, nil); err != nil {
		t.Fatalf("materialize 6: %v", err)
	}
	o.ApplyTemplate(registry.Live(6), p)
	if cfg := reg.GetConfig(registry.Live(6)); cfg.Mode != registry.ModeIntersection {
		t.Fatalf("live apply: %+v", cfg)
	}

	// Draft -> Draft apply.
	carrier := &registry.InlineCarrier{}
	o.ApplyTemplate(registry.Draft(carrier), p)
	if cfg := reg.GetConfig(registry.Draft(carrier)); cfg.Mode != registry.ModeIntersection {
		t.Fatalf("draft apply: %+v", cfg)
	}
}

func TestCloneFreshAndLive(t *testing.T) {
	o, reg, _ := newOrchestrator(t)
	if err := o.Materialize(7, nil); err != nil {
		t.Fatalf("materialize: %v", err)
	}
	mode := registry.ModeIntersection
	qs := false
	o.UpdateConfig(registry.Live(7), registry.Patch{Mode: &mode, QualitySensitive: &qs})

	// Fresh clone goes through materialization.
	if err := o.Clone(registry.Live(7), 8); err != nil {
		t.Fatalf("clone fresh: %v", err)
	}
	if !reg.IsLive(8) {
		t.Fatalf("clone did not materialize destination")
	}
	if cfg := reg.GetConfig(registry.Live(8)); cfg.Mode != registry.ModeIntersection || cfg.QualitySensitive {
		t.Fatalf("fresh clone config: %+v", cfg)
	}

	// Clone onto an already-live destination restores in place.
	if err := o.Materialize(9, nil); err != nil {
		t.Fatalf("materialize 9: %v", err)
	}
	if err := o.Clone(registry.Live(7), 9); err != nil {
		t.Fatalf("clone live: %v", err)
	}
	if cfg := reg.GetConfig(registry.Live(9)); cfg.Mode != registry.ModeIntersection {
		t.Fatalf("live clone config: %+v", cfg)
	}
}

func TestPasteSettingsBetweenDrafts(t *testing.T) {
	o, reg, _ := newOrchestrator(t)
	src := &registry.InlineCarrier{}
	mode := registry.ModeIntersection
	reg.SetConfig(registry.Draft(src), registry.Patch{Mode: &mode})

	dst := &registry.InlineCarrier{}
	o.PasteSettings(registry.Draft(src), registry.Draft(dst))
	if cfg := reg.GetConfig(registry.Draft(dst)); cfg.Mode != registry.ModeIntersection {
		t.Fatalf("paste between drafts: %+v", cfg)
	}
}

func TestReconcileOnceSweeps(t *testing.T) {
	o, reg, f := newOrchestrator(t)
	hist := &memorySink{}
	o.SetHistorySinks(hist)

	if err := o.Materialize(10, nil); err != nil {
		t.Fatalf("materialize 10: %v", err)
	}
	if err := o.Materialize(11, nil); err != nil {
		t.Fatalf("materialize 11: %v", err)
	}

	syncs := 0
	reg.SetModeChangedHook(func(registry.NodeID, registry.Mode) { syncs++ })

	o.ReconcileOnce(func(id registry.NodeID) bool { return id == 11 })
	if reg.IsLive(10) || !reg.IsLive(11) {
		t.Fatalf("sweep removed wrong nodes")
	}
	if f.Live() != 2 {
		t.Fatalf("swept node's sinks not destroyed: %d live", f.Live())
	}
	if got := hist.byType(history.EventSwept); len(got) != 1 || got[0].NodeID != 10 {
		t.Fatalf("swept events: %+v", got)
	}
	if syncs != 1 {
		t.Fatalf("display re-assertion ran %d times, want 1 (for node 11)", syncs)
	}
}

func TestStoreRestoreOnRematerialize(t *testing.T) {
	o, reg, _ := newOrchestrator(t)
	st, err := store.NewSQLiteStore("")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer func() { _ = st.Close() }()
	if err := o.SetStore(st); err != nil {
		t.Fatalf("set store: %v", err)
	}

	if err := o.Materialize(12, nil); err != nil {
		t.Fatalf("materialize: %v", err)
	}
	mode := registry.ModeIntersection
	o.UpdateConfig(registry.Live(12), registry.Patch{Mode: &mode})

	// Simulate a restart: drop live state without destroying the snapshot.
	red, green := reg.UnregisterLive(12)
	red.Clear()
	green.Clear()

	if err := o.Materialize(12, nil); err != nil {
		t.Fatalf("re-materialize: %v", err)
	}
	if cfg := reg.GetConfig(registry.Live(12)); cfg.Mode != registry.ModeIntersection {
		t.Fatalf("persisted config not restored: %+v", cfg)
	}

	// Destroy removes the snapshot for good.
	o.Destroy(12)
	if _, err := st.Get(context.Background(), 12); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("snapshot survived destroy: %v", err)
	}
}

func TestHistoryEvents(t *testing.T) {
	o, _, _ := newOrchestrator(t)
	hist := &memorySink{}
	o.SetHistorySinks(hist)

	if err := o.Materialize(13, nil); err != nil {
		t.Fatalf("materialize: %v", err)
	}
	mode := template.ModeIntersection
	o.ApplyTemplate(registry.Live(13), template.Payload{Mode: &mode})
	o.Destroy(13)

	if n := len(hist.byType(history.EventMaterialized)); n != 1 {
		t.Fatalf("materialized events = %d", n)
	}
	if got := hist.byType(history.EventRestored); len(got) != 1 || got[0].Mode != registry.ModeIntersection {
		t.Fatalf("restored events: %+v", got)
	}
	if got := hist.byType(history.EventDestroyed); len(got) != 1 || got[0].Mode != registry.ModeIntersection {
		t.Fatalf("destroyed events: %+v", got)
	}
}
