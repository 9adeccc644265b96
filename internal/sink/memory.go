package sink

import (
	"errors"
	"sync"

	"github.com/loykin/sigsift/internal/signal"
)

// MemoryWriter is an in-memory Writer used by the bundled daemon, the
// embedding examples, and tests. It grows its slot table on demand.
type MemoryWriter struct {
	mu      sync.Mutex
	slots   map[int]signal.Signal
	invalid bool
}

func NewMemoryWriter() *MemoryWriter {
	return &MemoryWriter{slots: make(map[int]signal.Signal)}
}

func (m *MemoryWriter) WriteSlot(index int, s signal.Signal) {
	m.mu.Lock()
	m.slots[index] = s
	m.mu.Unlock()
}

func (m *MemoryWriter) ClearSlot(index int) {
	m.mu.Lock()
	delete(m.slots, index)
	m.mu.Unlock()
}

func (m *MemoryWriter) Valid() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.invalid
}

// Invalidate marks the writer dead; subsequent reconciles become no-ops.
func (m *MemoryWriter) Invalidate() {
	m.mu.Lock()
	m.invalid = true
	m.mu.Unlock()
}

// Slots returns a copy of the occupied slot table.
func (m *MemoryWriter) Slots() map[int]signal.Signal {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int]signal.Signal, len(m.slots))
	for i, s := range m.slots {
		out[i] = s
	}
	return out
}

// Contents returns the occupied slots in slot order as a list.
func (m *MemoryWriter) Contents() signal.List {
	m.mu.Lock()
	defer m.mu.Unlock()
	max := 0
	for i := range m.slots {
		if i > max {
			max = i
		}
	}
	var out signal.List
	for i := 1; i <= max; i++ {
		if s, ok := m.slots[i]; ok {
			out = append(out, s)
		}
	}
	return out
}

// MemoryFactory creates handles backed by MemoryWriter. Destroy invalidates
// the writer, which makes leaked handles observable in tests.
type MemoryFactory struct {
	mu      sync.Mutex
	writers map[*Handle]*memEntry

	// FailOn, when non-empty, makes Create fail for the given channel.
	// Used to exercise partial materialization failure.
	FailOn Channel

	created   int
	destroyed int
}

type memEntry struct {
	w    *MemoryWriter
	node uint64
	ch   Channel
}

func NewMemoryFactory() *MemoryFactory {
	return &MemoryFactory{writers: make(map[*Handle]*memEntry)}
}

func (f *MemoryFactory) Create(node uint64, ch Channel) (*Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailOn != "" && f.FailOn == ch {
		return nil, errors.New("sink creation refused for channel " + string(ch))
	}
	w := NewMemoryWriter()
	h := NewHandle(w, ch)
	f.writers[h] = &memEntry{w: w, node: node, ch: ch}
	f.created++
	return h, nil
}

func (f *MemoryFactory) Destroy(h *Handle) {
	if h == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.writers[h]; ok {
		e.w.Invalidate()
		delete(f.writers, h)
		f.destroyed++
	}
}

// Writer returns the memory writer behind a handle created by this factory.
func (f *MemoryFactory) Writer(h *Handle) *MemoryWriter {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.writers[h]; ok {
		return e.w
	}
	return nil
}

// Contents returns the current slot contents of a node's sink for one
// channel, in slot order. Unknown node/channel pairs yield nil.
func (f *MemoryFactory) Contents(node uint64, ch Channel) signal.List {
	f.mu.Lock()
	var w *MemoryWriter
	for _, e := range f.writers {
		if e.node == node && e.ch == ch {
			w = e.w
			break
		}
	}
	f.mu.Unlock()
	if w == nil {
		return nil
	}
	return w.Contents()
}

// Live returns how many created sinks have not been destroyed.
func (f *MemoryFactory) Live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created - f.destroyed
}
