package graph

// CloneValue returns a deep copy of v for the JSON-shaped values carried in
// node inputs, debug responses and variables: maps, slices and scalars.
// Values of any other type are returned as is.
//
// Usage:
//
//	vars := graph.CloneMap(session.Variables)
//	vars["answer"] = 42 // session.Variables is untouched
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneMap(t)
	case []any:
		if t == nil {
			return t
		}
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CloneValue(e)
		}
		return out
	case []string:
		if t == nil {
			return t
		}
		return append([]string(nil), t...)
	default:
		return v
	}
}

// CloneMap deep-copies m. A nil map stays nil.
func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = CloneValue(v)
	}
	return out
}
