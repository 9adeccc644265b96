package registry

// NodeID is the opaque stable identity of a node. It is only meaningful while
// the node is materialized (live phase).
type NodeID uint64

// Mode selects which filter policy a node applies to its two input readings.
type Mode string

const (
	// ModeDifference keeps, per channel, the signals whose identity does not
	// occur on the opposite channel.
	ModeDifference Mode = "diff"
	// ModeIntersection keeps, per channel, the signals whose identity occurs
	// on both channels, each channel emitting its own magnitude.
	ModeIntersection Mode = "inter"
)

// Known reports whether m is one of the defined modes.
func (m Mode) Known() bool {
	return m == ModeDifference || m == ModeIntersection
}

// Config is the full per-node filter configuration. It is a value type and is
// the unit that gets serialized, restored, and cloned.
type Config struct {
	Mode             Mode
	QualitySensitive bool
}

// DefaultConfig returns the configuration a fresh node starts with.
func DefaultConfig() Config {
	return Config{Mode: ModeDifference, QualitySensitive: true}
}

// Patch is a partial configuration. Nil fields mean "leave unchanged" for
// merge updates and "use the default" for restores. An unknown Mode value is
// treated as absent.
type Patch struct {
	Mode             *Mode
	QualitySensitive *bool
}

// apply merges p onto base, leaving nil fields untouched.
func (p Patch) apply(base Config) Config {
	if p.Mode != nil && p.Mode.Known() {
		base.Mode = *p.Mode
	}
	if p.QualitySensitive != nil {
		base.QualitySensitive = *p.QualitySensitive
	}
	return base
}

// Materialized default-fills p into a full Config.
func (p Patch) Materialized() Config {
	return p.apply(DefaultConfig())
}

// AsPatch converts a full config into a patch with every field set.
func (c Config) AsPatch() Patch {
	m := c.Mode
	qs := c.QualitySensitive
	return Patch{Mode: &m, QualitySensitive: &qs}
}

// clone returns a patch whose pointer cells are fresh, so draft payload
// writes never alias the caller's values.
func (p Patch) clone() Patch {
	var out Patch
	if p.Mode != nil {
		m := *p.Mode
		out.Mode = &m
	}
	if p.QualitySensitive != nil {
		qs := *p.QualitySensitive
		out.QualitySensitive = &qs
	}
	return out
}
