package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	schedulerPasses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sigsift",
			Subsystem: "scheduler",
			Name:      "passes_total",
			Help:      "Number of completed scheduler passes.",
		},
	)
	passDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "sigsift",
			Subsystem: "scheduler",
			Name:      "pass_duration_seconds",
			Help:      "Duration of one compute-and-push pass over all live nodes.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	liveNodes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sigsift",
			Subsystem: "node",
			Name:      "live_total",
			Help:      "Current number of live (materialized) nodes.",
		},
	)
	slotsWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sigsift",
			Subsystem: "sink",
			Name:      "slots_written_total",
			Help:      "Sink slots written by reconciliation.",
		}, []string{"channel"},
	)
	slotsCleared = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sigsift",
			Subsystem: "sink",
			Name:      "slots_cleared_total",
			Help:      "Stale sink slots cleared by reconciliation.",
		}, []string{"channel"},
	)
	sweeps = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sigsift",
			Subsystem: "node",
			Name:      "sweeps_total",
			Help:      "Number of invalid-node sweeps run.",
		},
	)
	sweptNodes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sigsift",
			Subsystem: "node",
			Name:      "swept_total",
			Help:      "Nodes removed by invalid-node sweeps.",
		},
	)
	materializeFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sigsift",
			Subsystem: "node",
			Name:      "materialize_failures_total",
			Help:      "Materializations aborted because a sink could not be created.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{schedulerPasses, passDuration, liveNodes, slotsWritten, slotsCleared, sweeps, sweptNodes, materializeFailures}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
// The caller is responsible for starting an HTTP server and wiring the route.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncPass() {
	if regOK.Load() {
		schedulerPasses.Inc()
	}
}

func ObservePassDuration(seconds float64) {
	if regOK.Load() {
		passDuration.Observe(seconds)
	}
}

func SetLiveNodes(n int) {
	if regOK.Load() {
		liveNodes.Set(float64(n))
	}
}

func AddSlotsWritten(channel string, n int) {
	if regOK.Load() && n > 0 {
		slotsWritten.WithLabelValues(channel).Add(float64(n))
	}
}

func AddSlotsCleared(channel string, n int) {
	if regOK.Load() && n > 0 {
		slotsCleared.WithLabelValues(channel).Add(float64(n))
	}
}

func IncSweep() {
	if regOK.Load() {
		sweeps.Inc()
	}
}

func AddSwept(n int) {
	if regOK.Load() && n > 0 {
		sweptNodes.Add(float64(n))
	}
}

func IncMaterializeFailure() {
	if regOK.Load() {
		materializeFailures.Inc()
	}
}
