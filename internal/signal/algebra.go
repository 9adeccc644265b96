package signal

// Difference returns the sub-sequence of src whose key does not occur in
// other. Order and magnitudes of src are preserved. An empty other returns
// src unchanged (same backing array; callers treat lists as immutable).
func Difference(src, other List, qualitySensitive bool) List {
	if len(src) == 0 {
		return nil
	}
	if len(other) == 0 {
		return src
	}
	exclude := keySet(other, qualitySensitive)
	out := make(List, 0, len(src))
	for _, s := range src {
		if _, ok := exclude[s.Key(qualitySensitive)]; !ok {
			out = append(out, s)
		}
	}
	return out
}

// Intersection returns, for each side, the sub-sequence whose key also occurs
// on the other side. Each output keeps its own side's magnitudes, so the two
// outputs for a shared key generally carry different counts. Each side's key
// set is built once; the whole operation is O(len(red)+len(green)).
//
// Outputs are deduplicated by key, keeping the first occurrence. A sensitivity
// change between the reading and this call can make two entries collide on one
// key; the dedupe key always matches the active sensitivity.
func Intersection(red, green List, qualitySensitive bool) (List, List) {
	redKeys := keySet(red, qualitySensitive)
	greenKeys := keySet(green, qualitySensitive)
	return matched(red, greenKeys, qualitySensitive), matched(green, redKeys, qualitySensitive)
}

// matched filters side down to entries whose key occurs in other, first
// occurrence per key only.
func matched(side List, other map[Key]struct{}, qualitySensitive bool) List {
	if len(side) == 0 || len(other) == 0 {
		return nil
	}
	var out List
	seen := make(map[Key]struct{}, len(side))
	for _, s := range side {
		k := s.Key(qualitySensitive)
		if _, ok := other[k]; !ok {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, s)
	}
	return out
}
