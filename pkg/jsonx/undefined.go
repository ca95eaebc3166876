package jsonx

type undefined struct{}

func (undefined) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

func (undefined) String() string {
	return "undefined"
}

// Undefined marks a key that is explicitly cleared, as opposed to set to null.
// It never survives encoding: Marshal and Prune drop it.
var Undefined any = undefined{}

// IsUndefined reports whether v is the Undefined marker.
func IsUndefined(v any) bool {
	_, ok := v.(undefined)
	return ok
}

// Prune returns v with every Undefined object entry removed, recursively.
// Objects and arrays that contain no Undefined entries are returned as is.
func Prune(v any) any {
	switch val := v.(type) {
	case *Object:
		if val == nil || !containsUndefined(val) {
			return val
		}
		result := NewObject()
		Range(val, func(key string, value any) bool {
			if !IsUndefined(value) {
				result.Set(key, Prune(value))
			}
			return true
		})
		return result
	case []any:
		if !containsUndefined(val) {
			return val
		}
		result := make([]any, 0, len(val))
		for _, e := range val {
			if IsUndefined(e) {
				result = append(result, nil)
				continue
			}
			result = append(result, Prune(e))
		}
		return result
	default:
		return v
	}
}

func containsUndefined(v any) bool {
	switch val := v.(type) {
	case undefined:
		return true
	case *Object:
		found := false
		Range(val, func(_ string, value any) bool {
			found = containsUndefined(value)
			return !found
		})
		return found
	case []any:
		for _, e := range val {
			if containsUndefined(e) {
				return true
			}
		}
	}
	return false
}
