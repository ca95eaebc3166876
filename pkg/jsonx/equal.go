package jsonx

import "reflect"

// DeepEqual compares two jsonx values structurally. Object key order is
// ignored, array order is not. Numbers compare by value regardless of their
// Go numeric type.
func DeepEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}

	switch av := a.(type) {
	case nil:
		return b == nil
	case undefined:
		return IsUndefined(b)
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !DeepEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case *Object:
		switch bv := b.(type) {
		case *Object:
			return objectsEqual(av, bv)
		case map[string]any:
			return objectEqualsMap(av, bv)
		}
		return false
	case map[string]any:
		switch bv := b.(type) {
		case *Object:
			return objectEqualsMap(bv, av)
		case map[string]any:
			if len(av) != len(bv) {
				return false
			}
			for k, v := range av {
				other, ok := bv[k]
				if !ok || !DeepEqual(v, other) {
					return false
				}
			}
			return true
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func objectsEqual(a, b *Object) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Len() != b.Len() {
		return false
	}
	equal := true
	Range(a, func(key string, value any) bool {
		other, ok := b.Get(key)
		equal = ok && DeepEqual(value, other)
		return equal
	})
	return equal
}

func objectEqualsMap(a *Object, b map[string]any) bool {
	if a == nil {
		return b == nil
	}
	if a.Len() != len(b) {
		return false
	}
	equal := true
	Range(a, func(key string, value any) bool {
		other, ok := b[key]
		equal = ok && DeepEqual(value, other)
		return equal
	})
	return equal
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
