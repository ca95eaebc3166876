package openai

import (
	"slices"
	"strconv"

	"github.com/casualjim/quill/document"
	"github.com/casualjim/quill/history"
	"github.com/casualjim/quill/pkg/jsonx"
	"github.com/casualjim/quill/stream"
)

// outputFromMessage converts an assistant message into an output. Tool calls
// and function calls become structured values, anything else the message
// content.
func outputFromMessage(msg *jsonx.Object, index int, raw any) *document.ExecuteResult {
	role, _ := jsonx.GetString(msg, "role")
	if role == "" {
		role = history.RoleAssistant
	}

	var data document.Data
	if calls, ok := jsonx.GetArray(msg, "tool_calls"); ok && len(calls) > 0 {
		data = document.Value{Kind: document.KindToolCalls, Value: calls}
	} else if fc, ok := jsonx.GetObject(msg, "function_call"); ok {
		data = document.Value{Kind: document.KindFunctionCall, Value: fc}
	} else {
		content, _ := jsonx.GetString(msg, "content")
		data = document.Text(content)
	}

	return &document.ExecuteResult{
		ExecutionCount: index,
		Data:           data,
		Metadata: jsonx.FromPairs(
			document.MetadataRawResponse, raw,
			document.MetadataRole, role,
		),
	}
}

// keyToolCalls replaces the tool_calls array of a chunk delta with an object
// keyed by each call's index, so fragments of the same call merge.
func keyToolCalls(delta *jsonx.Object) {
	calls, ok := jsonx.GetArray(delta, "tool_calls")
	if !ok {
		return
	}
	keyed := jsonx.NewObject()
	for i, c := range calls {
		call, ok := c.(*jsonx.Object)
		if !ok {
			continue
		}
		idx := i
		if f, ok := jsonx.GetFloat(call, "index"); ok {
			idx = int(f)
		}
		keyed.Set(strconv.Itoa(idx), jsonx.Without(call, "index"))
	}
	delta.Set("tool_calls", keyed)
}

// unkeyToolCalls turns keyed tool calls back into an array ordered by index.
func unkeyToolCalls(msg *jsonx.Object) {
	keyed, ok := jsonx.GetObject(msg, "tool_calls")
	if !ok {
		return
	}
	type entry struct {
		index int
		call  any
	}
	var entries []entry
	jsonx.Range(keyed, func(key string, value any) bool {
		idx, err := strconv.Atoi(key)
		if err != nil {
			idx = len(entries)
		}
		entries = append(entries, entry{index: idx, call: value})
		return true
	})
	slices.SortStableFunc(entries, func(a, b entry) int { return a.index - b.index })

	calls := make([]any, len(entries))
	for i, e := range entries {
		calls[i] = e.call
	}
	msg.Set("tool_calls", calls)
}

// foldFragment adds frag to acc. Fragments without choices, such as usage
// trailers, carry nothing to fold and are skipped.
func foldFragment(acc stream.Accumulator, frag stream.Fragment) (stream.Accumulator, error) {
	if len(frag.Choices) == 0 {
		return acc, nil
	}
	return stream.Fold(acc, frag)
}

// notifyChoices calls callback once per choice of frag with the text the
// fragment added under field and the text accumulated so far.
func notifyChoices(callback func(delta, accumulated string, index int), acc stream.Accumulator, frag stream.Fragment, field string) {
	if callback == nil {
		return
	}
	for _, c := range frag.Choices {
		delta, _ := jsonx.GetString(c.Delta, field)
		callback(delta, acc.String(c.Index, field), c.Index)
	}
}
