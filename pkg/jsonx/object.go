package jsonx

import (
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Object is an insertion-ordered JSON object.
type Object = orderedmap.OrderedMap[string, any]

// NewObject creates an empty Object.
func NewObject() *Object {
	return orderedmap.New[string, any]()
}

// FromPairs builds an Object from alternating keys and values.
// It panics when a key is not a string or a value is missing.
//
// Example:
//
//	obj := jsonx.FromPairs("model", "gpt-4", "temperature", 0.2)
func FromPairs(kv ...any) *Object {
	if len(kv)%2 != 0 {
		panic(fmt.Sprintf("jsonx: odd number of arguments to FromPairs: %d", len(kv)))
	}
	obj := NewObject()
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("jsonx: key at %d is %T, not a string", i, kv[i]))
		}
		obj.Set(key, kv[i+1])
	}
	return obj
}

// Range calls fn for every pair in insertion order until fn returns false.
// A nil object is treated as empty.
func Range(o *Object, fn func(key string, value any) bool) {
	if o == nil {
		return
	}
	for pair := o.Oldest(); pair != nil; pair = pair.Next() {
		if !fn(pair.Key, pair.Value) {
			return
		}
	}
}

// Keys returns the keys of o in insertion order.
func Keys(o *Object) []string {
	if o == nil {
		return nil
	}
	keys := make([]string, 0, o.Len())
	Range(o, func(key string, _ any) bool {
		keys = append(keys, key)
		return true
	})
	return keys
}

// Len returns the number of pairs in o, zero for nil.
func Len(o *Object) int {
	if o == nil {
		return 0
	}
	return o.Len()
}

// Get returns the value stored under key, tolerating a nil object.
func Get(o *Object, key string) (any, bool) {
	if o == nil {
		return nil, false
	}
	return o.Get(key)
}

// GetString returns the string stored under key.
func GetString(o *Object, key string) (string, bool) {
	v, ok := Get(o, key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetBool returns the bool stored under key.
func GetBool(o *Object, key string) (bool, bool) {
	v, ok := Get(o, key)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// GetFloat returns the number stored under key.
func GetFloat(o *Object, key string) (float64, bool) {
	v, ok := Get(o, key)
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

// GetObject returns the nested object stored under key.
func GetObject(o *Object, key string) (*Object, bool) {
	v, ok := Get(o, key)
	if !ok {
		return nil, false
	}
	obj, ok := v.(*Object)
	return obj, ok && obj != nil
}

// GetArray returns the array stored under key.
func GetArray(o *Object, key string) ([]any, bool) {
	v, ok := Get(o, key)
	if !ok {
		return nil, false
	}
	arr, ok := v.([]any)
	return arr, ok
}

// Without returns a shallow copy of o that omits the given keys.
func Without(o *Object, keys ...string) *Object {
	result := NewObject()
	Range(o, func(key string, value any) bool {
		for _, k := range keys {
			if k == key {
				return true
			}
		}
		result.Set(key, value)
		return true
	})
	return result
}
