package tabular

// Redact returns a copy of value with every object key equal to the
// reserved field (in any case) removed, at any depth. The input is not
// modified. Redacting twice gives the same result as redacting once.
//
// Redaction is for display only. Tables are always built from the
// unredacted payload.
func Redact(value any) any {
	return redact(Canonicalize(value), 0)
}

func redact(v any, depth int) any {
	if depth > maxDepth {
		return nil
	}
	switch x := v.(type) {
	case []any:
		out := make([]any, len(x))
		for i, el := range x {
			out[i] = redact(el, depth+1)
		}
		return out
	case *Object:
		out := NewObject()
		for _, k := range x.Keys() {
			if IsReserved(k) {
				continue
			}
			child, _ := x.Get(k)
			out.Set(k, redact(child, depth+1))
		}
		return out
	default:
		return x
	}
}
