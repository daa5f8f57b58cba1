// Package ledger owns the position and order records and their indexes.
// It enforces structural consistency only; business rules live in the engine.
package ledger

// swapRemove deletes v from s by moving the last element into its slot.
// Order is not preserved.
func swapRemove[T comparable](s []T, v T) ([]T, bool) {
	for i := range s {
		if s[i] == v {
			last := len(s) - 1
			s[i] = s[last]
			return s[:last], true
		}
	}
	return s, false
}

func cloneIndex[K comparable, V any](m map[K][]V) map[K][]V {
	out := make(map[K][]V, len(m))
	for k, v := range m {
		if len(v) == 0 {
			continue
		}
		out[k] = append([]V(nil), v...)
	}
	return out
}
