// Package stream folds incrementally delivered provider responses into one
// partial message per choice.
//
// A provider adapter turns each streamed chunk into a Fragment and folds it
// into an Accumulator:
//
//	var acc stream.Accumulator
//	for chunk := range chunks {
//		frag, err := stream.ParseFragment(chunk)
//		if err != nil {
//			return err
//		}
//		if acc, err = stream.Fold(acc, frag); err != nil {
//			return err
//		}
//	}
//
// Fields merge by type: a missing field adopts the incoming value, two
// strings concatenate, two objects merge recursively, an incoming null is
// ignored and any other combination is overwritten by the incoming value.
package stream

import (
	"fmt"
	"slices"

	"github.com/casualjim/quill/errdefs"
	"github.com/casualjim/quill/pkg/jsonx"
	"github.com/tidwall/gjson"
)

// ProtocolError is returned when the fragments of a stream cannot be folded
// together.
type ProtocolError = errdefs.ProtocolError

// Choice is the delta for one parallel choice.
type Choice struct {
	Index int
	Delta *jsonx.Object
}

// Fragment is one incremental piece of a streamed response.
type Fragment struct {
	Choices []Choice
}

// Accumulator holds the partial message per choice index. It is owned by a
// single run and discarded when the run returns.
type Accumulator map[int]*jsonx.Object

// Indexes returns the choice indexes in ascending order.
func (a Accumulator) Indexes() []int {
	indexes := make([]int, 0, len(a))
	for i := range a {
		indexes = append(indexes, i)
	}
	slices.Sort(indexes)
	return indexes
}

// String returns the accumulated string field of a choice, or "".
func (a Accumulator) String(index int, field string) string {
	s, _ := jsonx.GetString(a[index], field)
	return s
}

// ParseFragment decodes {"choices":[{"index":0,"delta":{...}}]}. A choice
// without an index takes its position in the array.
func ParseFragment(data []byte) (Fragment, error) {
	if !gjson.ValidBytes(data) {
		return Fragment{}, fmt.Errorf("invalid json: %s", data)
	}
	root := gjson.ParseBytes(data)
	choices := root.Get("choices")
	if choices.Exists() && !choices.IsArray() {
		return Fragment{}, fmt.Errorf("%w: choices is %s, not an array", errdefs.ErrUnexpectedSchema, choices.Type)
	}

	var frag Fragment
	var ferr error
	position := 0
	choices.ForEach(func(_, value gjson.Result) bool {
		c := Choice{Index: position}
		if idx := value.Get("index"); idx.Exists() {
			c.Index = int(idx.Int())
		}
		if delta := value.Get("delta"); delta.IsObject() {
			c.Delta = jsonx.FromResult(delta).(*jsonx.Object)
		} else if delta.Exists() && delta.Type != gjson.Null {
			ferr = fmt.Errorf("%w: delta of choice %d is %s, not an object", errdefs.ErrUnexpectedSchema, c.Index, delta.Type)
			return false
		}
		frag.Choices = append(frag.Choices, c)
		position++
		return true
	})
	if ferr != nil {
		return Fragment{}, ferr
	}
	return frag, nil
}

// Fold merges f into acc and returns the result. A nil acc starts empty. acc
// is updated in place; values adopted from f are copied so the fragment can
// be reused.
//
// Once acc holds any choice, f must carry exactly as many choices, otherwise
// Fold returns a *ProtocolError wrapping errdefs.ErrChoiceCountMismatch.
func Fold(acc Accumulator, f Fragment) (Accumulator, error) {
	if acc == nil {
		acc = make(Accumulator, len(f.Choices))
	}
	if len(acc) > 0 && len(f.Choices) != len(acc) {
		return acc, &ProtocolError{
			Err: fmt.Errorf("%w: expected %d choices, got %d", errdefs.ErrChoiceCountMismatch, len(acc), len(f.Choices)),
		}
	}

	for _, c := range f.Choices {
		partial, ok := acc[c.Index]
		if !ok {
			partial = jsonx.NewObject()
			acc[c.Index] = partial
		}
		MergeObject(partial, c.Delta)
	}
	return acc, nil
}

// MergeObject merges src into dst field by field.
func MergeObject(dst, src *jsonx.Object) {
	jsonx.Range(src, func(key string, incoming any) bool {
		existing, _ := dst.Get(key)
		if merged, ok := Merge(existing, incoming); ok {
			dst.Set(key, merged)
		}
		return true
	})
}

// Merge combines an existing field value with an incoming one. It reports
// false when the incoming value leaves the field unchanged.
func Merge(existing, incoming any) (any, bool) {
	if incoming == nil {
		return nil, false
	}
	if existing == nil {
		return jsonx.Clone(incoming), true
	}

	switch in := incoming.(type) {
	case string:
		if ex, ok := existing.(string); ok {
			return ex + in, true
		}
	case *jsonx.Object:
		if ex, ok := existing.(*jsonx.Object); ok {
			MergeObject(ex, in)
			return ex, true
		}
	}
	return jsonx.Clone(incoming), true
}
