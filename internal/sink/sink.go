package sink

import (
	"github.com/loykin/sigsift/internal/metrics"
	"github.com/loykin/sigsift/internal/signal"
)

// Channel names one of the two independent input/output circuits of a node.
type Channel string

const (
	Red   Channel = "red"
	Green Channel = "green"
)

// Writer is the external write-slot capability behind a sink. Slot indices
// are 1-based. Implementations decide what a slot physically is; this package
// only reconciles desired contents against previously written slots.
type Writer interface {
	WriteSlot(index int, s signal.Signal)
	ClearSlot(index int)
	Valid() bool
}

// Handle wraps a Writer together with the highest slot index written by a
// previous reconcile, so shrinking output clears exactly the now-stale tail.
// A live node owns one Handle per channel.
type Handle struct {
	w         Writer
	ch        Channel
	highWater int
}

// NewHandle wraps w as a sink handle for the given channel.
func NewHandle(w Writer, ch Channel) *Handle {
	return &Handle{w: w, ch: ch}
}

// Channel returns the channel this handle writes for.
func (h *Handle) Channel() Channel {
	if h == nil {
		return ""
	}
	return h.ch
}

// Reconcile writes desired[0..n) into slots 1..n in order, then clears every
// slot beyond n up to the previously-known highest used slot. Equal desired
// lists land in the same slots across calls, so stable output causes no
// external churn. Passing an empty list clears everything. Reconcile is a
// no-op on a nil or invalid handle.
func (h *Handle) Reconcile(desired signal.List) {
	if h == nil || h.w == nil || !h.w.Valid() {
		return
	}
	for i, s := range desired {
		h.w.WriteSlot(i+1, s)
	}
	cleared := 0
	for i := len(desired) + 1; i <= h.highWater; i++ {
		h.w.ClearSlot(i)
		cleared++
	}
	h.highWater = len(desired)
	metrics.AddSlotsWritten(string(h.ch), len(desired))
	metrics.AddSlotsCleared(string(h.ch), cleared)
}

// Clear empties every occupied slot.
func (h *Handle) Clear() {
	h.Reconcile(nil)
}

// Factory creates and destroys sinks for nodes. Create returns a handle
// already wired to the node's output channel; the wiring mechanics belong to
// the implementation, not to this package. node is the numeric node id.
type Factory interface {
	Create(node uint64, ch Channel) (*Handle, error)
	Destroy(h *Handle)
}
