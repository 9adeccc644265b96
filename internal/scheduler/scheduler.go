package scheduler

import (
	"errors"
	"log/slog"
	"time"

	"github.com/loykin/sigsift/internal/metrics"
	"github.com/loykin/sigsift/internal/registry"
	"github.com/loykin/sigsift/internal/signal"
)

// DefaultEveryTicks is the pass cadence: one pass every N discrete ticks.
const DefaultEveryTicks = 2

// Circuit is the external collaborator the scheduler reads the world through.
type Circuit interface {
	// HasPower reports whether the node is powered this tick. An unpowered
	// node pushes empty outputs; that is normal operation, not an error.
	HasPower(id registry.NodeID) bool
	// ReadInputs returns the two input readings for this cycle.
	ReadInputs(id registry.NodeID) (red, green signal.List)
	// IsValid reports whether the node still exists.
	IsValid(id registry.NodeID) bool
}

// Teardown destroys a node's sinks and registry entry. The lifecycle
// orchestrator satisfies this.
type Teardown interface {
	Destroy(id registry.NodeID)
}

// Scheduler runs the per-node compute-and-push cycle on a fixed cadence.
// Drive it either externally via Tick (one call per discrete time step) or
// with the built-in ticker via Start/Stop.
type Scheduler struct {
	reg      *registry.Registry
	circuit  Circuit
	teardown Teardown
	every    int

	ticks uint64
	quit  chan struct{}
}

func New(reg *registry.Registry, circuit Circuit, teardown Teardown, everyTicks int) *Scheduler {
	if everyTicks <= 0 {
		everyTicks = DefaultEveryTicks
	}
	return &Scheduler{reg: reg, circuit: circuit, teardown: teardown, every: everyTicks}
}

// Tick advances the discrete clock by one step and runs a pass every
// configured number of ticks.
func (s *Scheduler) Tick() {
	s.ticks++
	if s.ticks%uint64(s.every) == 0 {
		s.RunPass()
	}
}

// RunPass executes one compute-and-push pass over all live nodes. Each node's
// two-sink update is sequential (red then green); nodes are independent of
// each other and carry no ordering guarantee between them.
func (s *Scheduler) RunPass() {
	start := time.Now()
	for _, id := range s.reg.IDs() {
		// A node can go invalid between tick start and its turn; clean it up
		// now instead of waiting for the next sweep.
		if !s.circuit.IsValid(id) {
			s.teardown.Destroy(id)
			continue
		}
		red, green, ok := s.reg.Sinks(id)
		if !ok {
			continue
		}
		if !s.circuit.HasPower(id) {
			red.Reconcile(nil)
			green.Reconcile(nil)
			continue
		}
		cfg := s.reg.GetConfig(registry.Live(id))
		redIn, greenIn := s.circuit.ReadInputs(id)
		redOut, greenOut := apply(cfg, redIn, greenIn)
		red.Reconcile(redOut)
		green.Reconcile(greenOut)
	}
	metrics.IncPass()
	metrics.ObservePassDuration(time.Since(start).Seconds())
	metrics.SetLiveNodes(s.reg.Len())
}

// apply computes both channel outputs for one node under cfg.
func apply(cfg registry.Config, redIn, greenIn signal.List) (signal.List, signal.List) {
	switch cfg.Mode {
	case registry.ModeIntersection:
		return signal.Intersection(redIn, greenIn, cfg.QualitySensitive)
	default:
		return signal.Difference(redIn, greenIn, cfg.QualitySensitive),
			signal.Difference(greenIn, redIn, cfg.QualitySensitive)
	}
}

// Start launches the built-in ticker loop. Call Stop to cancel.
func (s *Scheduler) Start(interval time.Duration) error {
	if s.quit != nil {
		return errors.New("scheduler already started")
	}
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	s.quit = make(chan struct{})
	go s.run(interval)
	slog.Info("scheduler started", "interval", interval, "every_ticks", s.every)
	return nil
}

func (s *Scheduler) run(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-s.quit:
			return
		case <-t.C:
			s.Tick()
		}
	}
}

// Stop cancels the ticker loop if running.
func (s *Scheduler) Stop() {
	if s.quit == nil {
		return
	}
	select {
	case <-s.quit:
		// already closed
	default:
		close(s.quit)
	}
}
