package registry

// DraftCarrier is the placeholder object that holds configuration inline
// while a node has not been materialized yet. The carrier belongs to an
// external collaborator; this package only reads and replaces its payload.
//
// SetPayload must replace the whole payload container rather than mutate it
// in place, so readers holding the previous payload never see later writes.
type DraftCarrier interface {
	Payload() (Patch, bool)
	SetPayload(Patch)
}

// Ref denotes a node in either lifecycle phase. Callers use the same
// registry accessors for both phases and never branch on the phase
// themselves. The zero Ref denotes nothing and degrades to defaults.
type Ref struct {
	id    NodeID
	live  bool
	draft DraftCarrier
}

// Live refers to a materialized node by its registry key.
func Live(id NodeID) Ref {
	return Ref{id: id, live: true}
}

// Draft refers to a placeholder carrying its configuration inline.
func Draft(c DraftCarrier) Ref {
	return Ref{draft: c}
}

// IsDraft reports whether the ref denotes a draft placeholder.
func (f Ref) IsDraft() bool { return f.draft != nil }

// ID returns the node id and whether the ref denotes a live node.
func (f Ref) ID() (NodeID, bool) { return f.id, f.live }

// InlineCarrier is an in-memory DraftCarrier for embedders that have no
// external placeholder object of their own.
type InlineCarrier struct {
	payload *Patch
}

func (c *InlineCarrier) Payload() (Patch, bool) {
	if c == nil || c.payload == nil {
		return Patch{}, false
	}
	return *c.payload, true
}

func (c *InlineCarrier) SetPayload(p Patch) {
	// Fresh container per write; previous readers keep what they read.
	cp := p.clone()
	c.payload = &cp
}
