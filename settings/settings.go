// Package settings reconciles a model's global default settings with the
// settings requested for a single prompt.
//
// Diff produces the minimal override block a prompt needs on top of the
// document-level defaults; Merge layers such a block back on top of the
// defaults. For every key present on either side,
//
//	Merge(global, Diff(global, requested))
//
// yields the same value requested does.
package settings

import "github.com/casualjim/quill/pkg/jsonx"

// Diff returns the keys whose values differ between global and requested.
// A key missing from requested is reported as jsonx.Undefined, meaning the
// global value is explicitly cleared. Keys that are deeply equal on both sides
// are omitted. Key order follows global first, then keys only in requested.
func Diff(global, requested *jsonx.Object) *jsonx.Object {
	result := jsonx.NewObject()

	jsonx.Range(global, func(key string, gv any) bool {
		rv, ok := jsonx.Get(requested, key)
		if !ok {
			result.Set(key, jsonx.Undefined)
			return true
		}
		if !jsonx.DeepEqual(gv, rv) {
			result.Set(key, jsonx.Clone(rv))
		}
		return true
	})

	jsonx.Range(requested, func(key string, rv any) bool {
		if _, ok := jsonx.Get(global, key); !ok {
			result.Set(key, jsonx.Clone(rv))
		}
		return true
	})

	return result
}

// Merge applies override on top of a copy of global. Keys whose override
// value is jsonx.Undefined are removed from the result. Neither argument is
// modified.
func Merge(global, override *jsonx.Object) *jsonx.Object {
	result := jsonx.CloneObject(global)
	if result == nil {
		result = jsonx.NewObject()
	}

	jsonx.Range(override, func(key string, value any) bool {
		if jsonx.IsUndefined(value) {
			result.Delete(key)
			return true
		}
		result.Set(key, jsonx.Clone(value))
		return true
	})
	return result
}

// IsEmpty reports whether an override block carries no changes.
func IsEmpty(override *jsonx.Object) bool {
	return jsonx.Len(override) == 0
}
