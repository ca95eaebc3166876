package document

import (
	"strings"

	"github.com/casualjim/quill/pkg/jsonx"
	json "github.com/goccy/go-json"
)

// OutputText projects an output to display text. It tries, in order: plain
// text, the textual form of a structured value, and the content or function
// call of a legacy raw chat message. Anything else, including error outputs
// and unknown payloads, yields the empty string.
func OutputText(o Output) string {
	r, ok := o.(*ExecuteResult)
	if !ok || r == nil {
		return ""
	}

	switch d := r.Data.(type) {
	case Text:
		return string(d)
	case Value:
		if s, ok := d.Value.(string); ok {
			return s
		}
		if d.Value == nil {
			return ""
		}
		return indentJSON(d.Value)
	case LegacyMessage:
		if content, ok := jsonx.Get(d.Message, "content"); ok {
			if s, ok := content.(string); ok {
				return s
			}
			if parts, ok := content.([]any); ok {
				return partsText(parts)
			}
		}
		if fc, ok := jsonx.Get(d.Message, "function_call"); ok && fc != nil {
			return indentJSON(fc)
		}
		if tc, ok := jsonx.GetArray(d.Message, "tool_calls"); ok && len(tc) > 0 {
			return indentJSON(tc)
		}
	}
	return ""
}

// OutputText returns the text of out, or of the latest output of p when out
// is nil. It never fails: a missing output has no text.
func (d *Document) OutputText(p *Prompt, out Output) string {
	if out == nil {
		out = d.LatestOutput(p)
	}
	if out == nil {
		return ""
	}
	return OutputText(out)
}

func indentJSON(v any) string {
	b, err := json.MarshalIndent(jsonx.Prune(v), "", "  ")
	if err != nil {
		return ""
	}
	return string(b)
}

func partsText(parts []any) string {
	var sb strings.Builder
	for _, part := range parts {
		obj, ok := part.(*jsonx.Object)
		if !ok {
			continue
		}
		if text, ok := jsonx.GetString(obj, "text"); ok {
			sb.WriteString(text)
		}
	}
	return sb.String()
}
