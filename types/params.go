// Package types provides small value types shared across quill packages.
package types

import (
	"maps"

	"github.com/casualjim/quill/pkg/jsonx"
	json "github.com/goccy/go-json"
)

// Params holds call-time template variables. They are layered on top of the
// document-level and prompt-level parameters when a prompt template is
// resolved, so a key in Params wins over the same key anywhere else.
//
// Example:
//
//	params := types.Params{"city": "Lisbon", "days": 3}
//	outputs, err := rt.Run(ctx, "plan", params)
//
// Params is a plain map and is not safe for concurrent modification.
type Params map[string]any

// String returns the JSON encoding of the params, or "" when they cannot
// be encoded.
func (p Params) String() string {
	b, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	return string(b)
}

// Clone returns a shallow copy; a nil Params clones to an empty one.
func (p Params) Clone() Params {
	if p == nil {
		return Params{}
	}
	return maps.Clone(p)
}

// With returns a copy of p with every entry of other layered on top.
func (p Params) With(other Params) Params {
	result := p.Clone()
	maps.Copy(result, other)
	return result
}

// FromObject converts an ordered parameters block into Params.
func FromObject(o *jsonx.Object) Params {
	result := make(Params, jsonx.Len(o))
	jsonx.Range(o, func(key string, value any) bool {
		result[key] = value
		return true
	})
	return result
}
