package history

import (
	"context"
	"time"

	"github.com/loykin/sigsift/internal/registry"
)

// EventType defines the kind of node lifecycle event.
type EventType string

const (
	EventMaterialized EventType = "materialized"
	EventDestroyed    EventType = "destroyed"
	EventSwept        EventType = "swept"
	EventRestored     EventType = "restored"
)

// Event represents a node lifecycle event to be exported to external systems.
type Event struct {
	Type             EventType       `json:"type"`
	OccurredAt       time.Time       `json:"occurred_at"`
	NodeID           registry.NodeID `json:"node_id"`
	Mode             registry.Mode   `json:"mode"`
	QualitySensitive bool            `json:"quality_sensitive"`
}

// Sink is a destination for history events (analytics/statistics systems).
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}
