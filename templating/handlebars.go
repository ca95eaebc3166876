package templating

import (
	"fmt"
	"strings"

	"github.com/aymerick/raymond"
	"github.com/casualjim/quill/document"
	"github.com/casualjim/quill/pkg/jsonx"
	"github.com/casualjim/quill/types"
	"github.com/fogfish/opts"
)

// Handlebars resolves templates with handlebars syntax. Values are inserted
// without HTML escaping.
type Handlebars struct {
	helpers map[string]any
}

// WithHelper registers a handlebars helper on the resolver only, leaving the
// raymond global helper table untouched.
func WithHelper(name string, helper any) opts.Option[Handlebars] {
	return opts.Type[Handlebars](func(h *Handlebars) error {
		if name == "" {
			return fmt.Errorf("helper name is required")
		}
		if h.helpers == nil {
			h.helpers = make(map[string]any)
		}
		h.helpers[name] = helper
		return nil
	})
}

// NewHandlebars creates a handlebars resolver.
func NewHandlebars(options ...opts.Option[Handlebars]) (*Handlebars, error) {
	h := &Handlebars{}
	if err := opts.Apply(h, options); err != nil {
		return nil, err
	}
	return h, nil
}

// Resolve renders template against the parameters visible to prompt.
func (h *Handlebars) Resolve(template string, prompt *document.Prompt, doc *document.Document, params types.Params) (string, error) {
	if !strings.Contains(template, "{{") {
		return template, nil
	}

	tpl, err := raymond.Parse(template)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}
	if len(h.helpers) > 0 {
		tpl.RegisterHelpers(h.helpers)
	}

	result, err := tpl.Exec(Context(prompt, doc, params))
	if err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}
	return result, nil
}

// Context builds the rendering context for prompt. Strings are wrapped as
// raymond.SafeString so they are emitted verbatim.
func Context(prompt *document.Prompt, doc *document.Document, params types.Params) map[string]any {
	ctx := make(map[string]any)

	if doc != nil {
		for _, p := range doc.Prompts {
			if prompt != nil && p.Name == prompt.Name {
				break
			}
			ctx[p.Name] = map[string]any{
				"input":  raymond.SafeString(p.Input.Template()),
				"output": raymond.SafeString(doc.OutputText(p, nil)),
			}
		}
		mergeObject(ctx, doc.Metadata.Parameters)
	}
	if prompt != nil {
		mergeObject(ctx, prompt.Parameters())
	}
	for k, v := range params {
		ctx[k] = safeValue(v)
	}
	return ctx
}

func mergeObject(ctx map[string]any, o *jsonx.Object) {
	jsonx.Range(o, func(key string, value any) bool {
		ctx[key] = safeValue(value)
		return true
	})
}

func safeValue(v any) any {
	switch v := v.(type) {
	case string:
		return raymond.SafeString(v)
	case *jsonx.Object:
		m := make(map[string]any, jsonx.Len(v))
		mergeObject(m, v)
		return m
	case map[string]any:
		m := make(map[string]any, len(v))
		for k, e := range v {
			m[k] = safeValue(e)
		}
		return m
	case []any:
		s := make([]any, len(v))
		for i, e := range v {
			s[i] = safeValue(e)
		}
		return s
	default:
		return v
	}
}
