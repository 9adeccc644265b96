package signal

// Kind classifies a signal by the namespace its name lives in.
type Kind string

const (
	KindItem    Kind = "item"
	KindFluid   Kind = "fluid"
	KindVirtual Kind = "virtual"
)

// Signal is one typed quantity read from a channel during a cycle.
// It is treated as immutable once read.
type Signal struct {
	Kind    Kind
	Name    string
	Quality string
	Count   int64
}

// List is an ordered sequence of signals. Order reflects reading order and
// is preserved through every operation in this package.
type List []Signal

// Key identifies a signal for filtering purposes. When built quality-agnostic
// the Quality field is left empty so two qualities of the same name collide.
type Key struct {
	Kind    Kind
	Name    string
	Quality string
}

// Key derives the identity key for s under the given sensitivity.
func (s Signal) Key(qualitySensitive bool) Key {
	k := Key{Kind: s.Kind, Name: s.Name}
	if qualitySensitive {
		k.Quality = s.Quality
	}
	return k
}

// keySet builds the key membership set over l exactly once.
func keySet(l List, qualitySensitive bool) map[Key]struct{} {
	set := make(map[Key]struct{}, len(l))
	for _, s := range l {
		set[s.Key(qualitySensitive)] = struct{}{}
	}
	return set
}
