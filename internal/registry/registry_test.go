package registry

import (
	"testing"

	"github.com/loykin/sigsift/internal/sink"
)

func handles() (*sink.Handle, *sink.Handle) {
	return sink.NewHandle(sink.NewMemoryWriter(), sink.Red),
		sink.NewHandle(sink.NewMemoryWriter(), sink.Green)
}

func TestRegisterLiveDefaults(t *testing.T) {
	r := New()
	red, green := handles()
	cfg, ok := r.RegisterLive(1, red, green)
	if !ok {
		t.Fatalf("register failed")
	}
	if cfg != DefaultConfig() {
		t.Fatalf("fresh entry config = %+v, want defaults", cfg)
	}
	if _, ok := r.RegisterLive(1, red, green); ok {
		t.Fatalf("duplicate register must fail")
	}
	if _, ok := r.RegisterLive(2, nil, green); ok {
		t.Fatalf("register with absent sink must fail")
	}
	if r.IsLive(2) {
		t.Fatalf("failed register left an entry behind")
	}
}

func TestUnregisterReturnsHandles(t *testing.T) {
	r := New()
	red, green := handles()
	r.RegisterLive(7, red, green)
	gotRed, gotGreen := r.UnregisterLive(7)
	if gotRed != red || gotGreen != green {
		t.Fatalf("unregister returned wrong handles")
	}
	if r.IsLive(7) {
		t.Fatalf("entry survived unregister")
	}
	// Absent id: nil handles, no error.
	if gr, gg := r.UnregisterLive(7); gr != nil || gg != nil {
		t.Fatalf("unregister of absent id returned handles")
	}
}

func TestGetConfigAfterUnregisterIsDefault(t *testing.T) {
	r := New()
	red, green := handles()
	r.RegisterLive(3, red, green)
	mode := ModeIntersection
	r.SetConfig(Live(3), Patch{Mode: &mode})
	r.UnregisterLive(3)
	if got := r.GetConfig(Live(3)); got != DefaultConfig() {
		t.Fatalf("config after unregister = %+v, want defaults", got)
	}
}

func TestSetConfigMerges(t *testing.T) {
	r := New()
	red, green := handles()
	r.RegisterLive(4, red, green)

	mode := ModeIntersection
	r.SetConfig(Live(4), Patch{Mode: &mode})
	got := r.GetConfig(Live(4))
	if got.Mode != ModeIntersection || !got.QualitySensitive {
		t.Fatalf("partial set clobbered other fields: %+v", got)
	}

	qs := false
	r.SetConfig(Live(4), Patch{QualitySensitive: &qs})
	got = r.GetConfig(Live(4))
	if got.Mode != ModeIntersection || got.QualitySensitive {
		t.Fatalf("second partial set lost prior mode: %+v", got)
	}

	// Unknown mode values are ignored rather than stored.
	bad := Mode("both")
	r.SetConfig(Live(4), Patch{Mode: &bad})
	if got := r.GetConfig(Live(4)); got.Mode != ModeIntersection {
		t.Fatalf("unknown mode was stored: %+v", got)
	}
}

func TestDraftAccessors(t *testing.T) {
	r := New()
	carrier := &InlineCarrier{}
	ref := Draft(carrier)

	if got := r.GetConfig(ref); got != DefaultConfig() {
		t.Fatalf("empty draft config = %+v, want defaults", got)
	}

	qs := false
	r.SetConfig(ref, Patch{QualitySensitive: &qs})
	got := r.GetConfig(ref)
	if got.QualitySensitive || got.Mode != ModeDifference {
		t.Fatalf("draft merge result = %+v", got)
	}

	// The write must have replaced the container, not aliased the input.
	p, ok := carrier.Payload()
	if !ok || p.QualitySensitive == nil {
		t.Fatalf("draft payload missing after set")
	}
	qs = true // mutating the caller's cell must not leak into the carrier
	if *p.QualitySensitive {
		t.Fatalf("draft payload aliases caller memory")
	}
}

func TestRestoreDefaultFillsAndFiresHook(t *testing.T) {
	r := New()
	red, green := handles()
	r.RegisterLive(9, red, green)

	var hookID NodeID
	var hookMode Mode
	calls := 0
	r.SetModeChangedHook(func(id NodeID, m Mode) {
		hookID, hookMode = id, m
		calls++
	})

	mode := ModeIntersection
	r.Restore(Live(9), Patch{Mode: &mode}) // quality_sensitive missing -> default true
	got := r.GetConfig(Live(9))
	if got.Mode != ModeIntersection || !got.QualitySensitive {
		t.Fatalf("restore result = %+v", got)
	}
	if calls != 1 || hookID != 9 || hookMode != ModeIntersection {
		t.Fatalf("display hook: calls=%d id=%d mode=%s", calls, hookID, hookMode)
	}

	// Restore onto a draft fires no hook.
	r.Restore(Draft(&InlineCarrier{}), Patch{Mode: &mode})
	if calls != 1 {
		t.Fatalf("draft restore fired display hook")
	}

	// Restore onto an absent live id is a quiet no-op.
	r.Restore(Live(1234), Patch{Mode: &mode})
	if calls != 1 {
		t.Fatalf("absent-node restore fired display hook")
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	r := New()
	red, green := handles()
	r.RegisterLive(5, red, green)
	mode := ModeIntersection
	qs := false
	r.SetConfig(Live(5), Patch{Mode: &mode, QualitySensitive: &qs})

	before := r.GetConfig(Live(5))
	cfg := r.Serialize(Live(5))
	r.Restore(Live(5), cfg.AsPatch())
	if after := r.GetConfig(Live(5)); after != before {
		t.Fatalf("restore(serialize(n)) changed config: %+v -> %+v", before, after)
	}
}

func TestSweepInvalid(t *testing.T) {
	r := New()
	if got := r.SweepInvalid(func(NodeID) bool { return false }); len(got) != 0 {
		t.Fatalf("sweep of empty registry returned %v", got)
	}

	redA, greenA := handles()
	redB, greenB := handles()
	r.RegisterLive(1, redA, greenA)
	r.RegisterLive(2, redB, greenB)

	removed := r.SweepInvalid(func(id NodeID) bool { return id == 2 })
	if len(removed) != 1 {
		t.Fatalf("swept %d nodes, want 1", len(removed))
	}
	if removed[0].ID != 1 || removed[0].Red != redA || removed[0].Green != greenA {
		t.Fatalf("wrong node swept: %+v", removed[0])
	}
	if !r.IsLive(2) || r.IsLive(1) {
		t.Fatalf("sweep removed the wrong entries")
	}
}

func TestSyncDisplay(t *testing.T) {
	r := New()
	red, green := handles()
	r.RegisterLive(6, red, green)
	calls := 0
	r.SetModeChangedHook(func(id NodeID, m Mode) {
		if id != 6 || m != ModeDifference {
			t.Fatalf("unexpected sync: id=%d mode=%s", id, m)
		}
		calls++
	})
	r.SyncDisplay(6)
	r.SyncDisplay(999) // absent: no call
	if calls != 1 {
		t.Fatalf("sync calls = %d, want 1", calls)
	}
}
