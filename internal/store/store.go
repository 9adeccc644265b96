package store

import (
	"context"
	"errors"
	"time"

	"github.com/loykin/sigsift/internal/registry"
)

// ErrNotFound is returned when no record exists for a node id.
var ErrNotFound = errors.New("store: record not found")

// Record is the durable snapshot of one node's filter configuration.
// NodeID is unique across all persisted nodes. UpdatedAt should be in UTC.
// It is intentionally minimal: just enough to re-restore a configuration
// onto a node materialized again after a restart.
type Record struct {
	NodeID           registry.NodeID
	Mode             registry.Mode
	QualitySensitive bool
	UpdatedAt        time.Time
}

// Config converts the record into a full filter configuration,
// default-filling an unknown persisted mode.
func (r Record) Config() registry.Config {
	cfg := registry.DefaultConfig()
	if r.Mode.Known() {
		cfg.Mode = r.Mode
	}
	cfg.QualitySensitive = r.QualitySensitive
	return cfg
}

// Store persists per-node configuration snapshots keyed by node id.
type Store interface {
	EnsureSchema(ctx context.Context) error
	Save(ctx context.Context, rec Record) error
	Get(ctx context.Context, id registry.NodeID) (Record, error)
	All(ctx context.Context) ([]Record, error)
	Delete(ctx context.Context, id registry.NodeID) error
	Close() error
}
