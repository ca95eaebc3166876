package jsonx

import "maps"

// Clone returns a deep copy of a jsonx value.
func Clone(v any) any {
	switch val := v.(type) {
	case *Object:
		return CloneObject(val)
	case []any:
		if val == nil {
			return val
		}
		result := make([]any, len(val))
		for i, e := range val {
			result[i] = Clone(e)
		}
		return result
	case map[string]any:
		result := maps.Clone(val)
		for k, e := range result {
			result[k] = Clone(e)
		}
		return result
	default:
		return v
	}
}

// CloneObject returns a deep copy of o. A nil object clones to nil.
func CloneObject(o *Object) *Object {
	if o == nil {
		return nil
	}
	result := NewObject()
	Range(o, func(key string, value any) bool {
		result.Set(key, Clone(value))
		return true
	})
	return result
}
