package jsonx

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

// Parse decodes JSON into the jsonx sum type, keeping object key order.
func Parse(data []byte) (any, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid json: %s", data)
	}
	return FromResult(gjson.ParseBytes(data)), nil
}

// ParseObject decodes a JSON object. Anything else is an error.
func ParseObject(data []byte) (*Object, error) {
	v, err := Parse(data)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(*Object)
	if !ok {
		return nil, fmt.Errorf("expected a json object, got %T", v)
	}
	return obj, nil
}

// FromResult converts an already parsed gjson value.
func FromResult(r gjson.Result) any {
	switch r.Type {
	case gjson.False:
		return false
	case gjson.True:
		return true
	case gjson.Number:
		return r.Num
	case gjson.String:
		return r.Str
	case gjson.JSON:
		if r.IsArray() {
			arr := make([]any, 0)
			r.ForEach(func(_, value gjson.Result) bool {
				arr = append(arr, FromResult(value))
				return true
			})
			return arr
		}
		obj := NewObject()
		r.ForEach(func(key, value gjson.Result) bool {
			obj.Set(key.String(), FromResult(value))
			return true
		})
		return obj
	default:
		return nil
	}
}

// Normalize converts an arbitrary Go value (structs, maps, integer types,
// typed slices) into the jsonx sum type by round-tripping it through JSON.
// Values that are already normalized are returned as is.
func Normalize(val any) (any, error) {
	switch val.(type) {
	case nil, bool, float64, string:
		return val, nil
	}
	if isNormalized(val) {
		return val, nil
	}
	b, err := json.Marshal(Prune(val))
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// NormalizeObject is Normalize for values that must encode as an object.
func NormalizeObject(val any) (*Object, error) {
	if val == nil {
		return NewObject(), nil
	}
	v, err := Normalize(val)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(*Object)
	if !ok {
		return nil, fmt.Errorf("expected a json object, got %T", v)
	}
	return obj, nil
}

// Marshal encodes a jsonx value. Undefined entries are dropped.
func Marshal(val any) ([]byte, error) {
	return json.Marshal(Prune(val))
}

func isNormalized(val any) bool {
	switch v := val.(type) {
	case nil, bool, float64, string:
		return true
	case []any:
		for _, e := range v {
			if !isNormalized(e) {
				return false
			}
		}
		return true
	case *Object:
		if v == nil {
			return false
		}
		ok := true
		Range(v, func(_ string, value any) bool {
			ok = isNormalized(value)
			return ok
		})
		return ok
	default:
		return false
	}
}
