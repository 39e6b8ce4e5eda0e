// Package correlate joins stage results back to the records that produced
// them, keyed on artifact path.
package correlate

// Pair holds two records that share an identity.
type Pair[L, R any] struct {
	Left  L
	Right R
}

// Join performs an equality join of right-side records against left-side
// records. Every emitted pair satisfies leftKey(Left) == rightKey(Right);
// right-side entries with no left match are dropped and logged, never
// fabricated. Pairs are emitted in right-side order.
//
// Duplicate left keys keep the first occurrence: an artifact identity is
// unique within a run, so a duplicate indicates an upstream bug and the
// extra entry is ignored rather than multiplying matches.
func Join[L, R any](left []L, right []R, leftKey func(L) string, rightKey func(R) string, logf func(format string, args ...any)) []Pair[L, R] {
	index := make(map[string]L, len(left))
	for _, l := range left {
		key := leftKey(l)
		if _, ok := index[key]; ok {
			continue
		}
		index[key] = l
	}

	pairs := make([]Pair[L, R], 0, len(right))
	for _, r := range right {
		key := rightKey(r)
		l, ok := index[key]
		if !ok {
			if logf != nil {
				logf("correlate: no left-side match for %s, dropping", key)
			}
			continue
		}
		pairs = append(pairs, Pair[L, R]{Left: l, Right: r})
	}
	return pairs
}
