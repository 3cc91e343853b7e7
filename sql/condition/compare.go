package condition

import "strings"

// Compare orders two row values of possibly-differing dynamic types.
// It reports ok=false when the pair cannot be meaningfully ordered (e.g.
// nil on either side), letting callers decide the fallback behavior.
func Compare(a, b any) (cmp int, ok bool) {
	if a == nil || b == nil {
		return 0, false
	}
	switch av := a.(type) {
	case int:
		return compareFloat(float64(av), b)
	case int64:
		return compareFloat(float64(av), b)
	case float64:
		return compareFloat(av, b)
	case string:
		bs, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bs), true
	case bool:
		bb, ok := b.(bool)
		if !ok {
			return 0, false
		}
		if av == bb {
			return 0, true
		}
		if av {
			return 1, true
		}
		return -1, true
	default:
		return 0, false
	}
}

func compareFloat(av float64, b any) (int, bool) {
	var bv float64
	switch bt := b.(type) {
	case int:
		bv = float64(bt)
	case int64:
		bv = float64(bt)
	case float64:
		bv = bt
	default:
		return 0, false
	}
	switch {
	case av < bv:
		return -1, true
	case av > bv:
		return 1, true
	default:
		return 0, true
	}
}
