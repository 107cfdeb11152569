// Package merge combines plain JSON values (map[string]any, []any, scalars)
// the way row materialization needs: objects merge key by key, arrays merge
// element by element and extend, scalars from the right side win.
package merge

// Values merges b into a and returns the result. Either side may be nil.
func Values(a, b any) any {
	if a == nil && b == nil {
		return nil
	}
	if a != nil && b == nil {
		return a
	}
	if a == nil && b != nil {
		return b
	}

	if ao, ok := a.(map[string]any); ok {
		if bo, ok := b.(map[string]any); ok {
			return Objects(ao, bo)
		}
	}

	if aa, ok := a.([]any); ok {
		if ba, ok := b.([]any); ok {
			return Arrays(aa, ba)
		}
	}

	// different kinds, or plain scalars
	return b
}

// Objects merges b into a in place and returns a.
func Objects(a, b map[string]any) map[string]any {
	for k, bv := range b {
		if av, in := a[k]; in {
			a[k] = Values(av, bv)
		} else {
			a[k] = bv
		}
	}
	return a
}

// Arrays merges b into a element by element, overwriting placeholder slots
// and extending a when b is longer. The result reuses a's backing store.
func Arrays(a, b []any) []any {
	for i, bv := range b {
		if i < len(a) {
			a[i] = Values(a[i], bv)
		} else {
			a = append(a, bv)
		}
	}
	return a
}
