package sigsift

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	cfg "github.com/loykin/sigsift/internal/config"
	"github.com/loykin/sigsift/internal/history"
	chsink "github.com/loykin/sigsift/internal/history/clickhouse"
	pgsink "github.com/loykin/sigsift/internal/history/postgres"
	"github.com/loykin/sigsift/internal/lifecycle"
	"github.com/loykin/sigsift/internal/metrics"
	"github.com/loykin/sigsift/internal/registry"
	"github.com/loykin/sigsift/internal/scheduler"
	iapi "github.com/loykin/sigsift/internal/server"
	"github.com/loykin/sigsift/internal/signal"
	"github.com/loykin/sigsift/internal/sink"
	"github.com/loykin/sigsift/internal/store"
	"github.com/loykin/sigsift/pkg/template"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Signal = signal.Signal

type List = signal.List

type Kind = signal.Kind

const (
	KindItem    = signal.KindItem
	KindFluid   = signal.KindFluid
	KindVirtual = signal.KindVirtual
)

type NodeID = registry.NodeID

type Mode = registry.Mode

const (
	ModeDifference   = registry.ModeDifference
	ModeIntersection = registry.ModeIntersection
)

type Config = registry.Config

type Patch = registry.Patch

type Ref = registry.Ref

type DraftCarrier = registry.DraftCarrier

type InlineCarrier = registry.InlineCarrier

type Payload = template.Payload

type Circuit = scheduler.Circuit

type SinkFactory = sink.Factory

type SinkChannel = sink.Channel

const (
	Red   = sink.Red
	Green = sink.Green
)

type HistorySink = history.Sink

type HistoryEvent = history.Event

type Store = store.Store

// Live and Draft build registry refs for the two node phases.
func Live(id NodeID) Ref { return registry.Live(id) }

func Draft(c DraftCarrier) Ref { return registry.Draft(c) }

// NewMemorySinkFactory returns an in-process sink factory, useful for tests
// and embedded simulations.
func NewMemorySinkFactory() *sink.MemoryFactory { return sink.NewMemoryFactory() }

// Engine is a thin facade bundling the registry, lifecycle orchestrator and
// scheduler into a stable public API for embedding.

type Engine struct {
	reg     *registry.Registry
	orc     *lifecycle.Orchestrator
	sch     *scheduler.Scheduler
	circuit Circuit
}

// New builds an engine over the given sink factory and circuit.
// everyTicks <= 0 selects the default pass cadence.
func New(factory SinkFactory, circuit Circuit, everyTicks int) *Engine {
	reg := registry.New()
	orc := lifecycle.New(reg, factory)
	return &Engine{
		reg:     reg,
		orc:     orc,
		sch:     scheduler.New(reg, circuit, orc, everyTicks),
		circuit: circuit,
	}
}

func (e *Engine) Materialize(id NodeID, tmpl *Payload) error { return e.orc.Materialize(id, tmpl) }
func (e *Engine) Destroy(id NodeID)                          { e.orc.Destroy(id) }
func (e *Engine) Capture(ref Ref) Payload                    { return e.orc.Capture(ref) }
func (e *Engine) ApplyTemplate(ref Ref, p Payload)           { e.orc.ApplyTemplate(ref, p) }
func (e *Engine) PasteSettings(src, dst Ref)                 { e.orc.PasteSettings(src, dst) }
func (e *Engine) Clone(src Ref, dst NodeID) error            { return e.orc.Clone(src, dst) }
func (e *Engine) UpdateConfig(ref Ref, p Patch)              { e.orc.UpdateConfig(ref, p) }
func (e *Engine) GetConfig(ref Ref) Config                   { return e.reg.GetConfig(ref) }
func (e *Engine) IsLive(id NodeID) bool                      { return e.reg.IsLive(id) }
func (e *Engine) IDs() []NodeID                              { return e.reg.IDs() }
func (e *Engine) Len() int                                   { return e.reg.Len() }

// Tick advances the discrete clock; RunPass forces a pass immediately.
func (e *Engine) Tick()    { e.sch.Tick() }
func (e *Engine) RunPass() { e.sch.RunPass() }

// Start runs the built-in wall-clock ticker; Stop cancels it.
func (e *Engine) Start(interval time.Duration) error { return e.sch.Start(interval) }
func (e *Engine) Stop()                              { e.sch.Stop() }

// Sweep destroys every node the circuit no longer considers valid and
// returns how many were removed.
func (e *Engine) Sweep() int {
	before := e.reg.Len()
	e.orc.ReconcileOnce(e.circuit.IsValid)
	return before - e.reg.Len()
}

// SetStore attaches a config snapshot store (see NewSQLiteStore).
func (e *Engine) SetStore(s Store) error { return e.orc.SetStore(s) }

// SetHistorySinks attaches lifecycle event sinks.
func (e *Engine) SetHistorySinks(sinks ...HistorySink) { e.orc.SetHistorySinks(sinks...) }

// SetDefaultConfig installs a partial configuration merged onto every node
// that materializes without a template payload or persisted snapshot.
func (e *Engine) SetDefaultConfig(p Patch) { e.orc.SetDefaultConfig(p) }

// SetViewReleaseHook installs the observer-release callback fired on destroy.
func (e *Engine) SetViewReleaseHook(fn func(NodeID)) { e.orc.SetViewReleaseHook(fn) }

// SetModeChangedHook installs the display-sync callback fired when a restore
// changes a live node's mode.
func (e *Engine) SetModeChangedHook(fn func(NodeID, Mode)) { e.reg.SetModeChangedHook(fn) }

// NewSQLiteStore opens (or creates) a SQLite-backed config snapshot store.
// An empty path selects an in-memory database.
func NewSQLiteStore(path string) (Store, error) { return store.NewSQLiteStore(path) }

// NewPostgresHistorySink connects a PostgreSQL lifecycle event sink.
func NewPostgresHistorySink(dsn string) (HistorySink, error) { return pgsink.New(dsn) }

// NewClickHouseHistorySink connects a ClickHouse lifecycle event sink.
func NewClickHouseHistorySink(dsn, table string) (HistorySink, error) {
	return chsink.New(dsn, table)
}

type FileConfig = cfg.FileConfig

func LoadConfig(path string) (*FileConfig, error) {
	return cfg.LoadConfig(path)
}

// NewHTTPServer starts an HTTP server exposing the admin API over the engine.
func NewHTTPServer(addr, basePath string, e *Engine) (*http.Server, error) {
	return iapi.NewServer(addr, basePath, e.reg, e.orc, e.RunPass, e.Sweep)
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// ServeMetrics starts an HTTP server on addr exposing /metrics using the default registry.
// It returns any immediate listen error; otherwise it runs the server in the caller goroutine.
func ServeMetrics(addr string) error {
	http.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           nil,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv.ListenAndServe()
}
