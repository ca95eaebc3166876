package quill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/casualjim/quill/document"
	"github.com/casualjim/quill/notify"
	"github.com/casualjim/quill/parser"
	"github.com/casualjim/quill/pkg/jsonx"
	"github.com/casualjim/quill/pkg/slogx"
	"github.com/casualjim/quill/types"
	"github.com/fogfish/opts"
)

// Runtime binds a document to the parsers that run its prompts and the hub
// their lifecycle events go to.
type Runtime struct {
	doc      *document.Document
	registry *parser.Registry
	hub      *notify.Hub
	parsers  []binding
}

type binding struct {
	parser parser.ModelParser
	models []string
}

// hubAware is implemented by parsers that embed parser.Base.
type hubAware interface {
	SetHub(*notify.Hub)
}

// WithRegistry uses an existing registry instead of a new one.
func WithRegistry(registry *parser.Registry) opts.Option[Runtime] {
	return opts.Type[Runtime](func(r *Runtime) error {
		if registry == nil {
			return errors.New("registry is required")
		}
		r.registry = registry
		return nil
	})
}

// WithHub sends lifecycle events of every registered parser to hub.
var WithHub = opts.ForName[Runtime, *notify.Hub]("hub")

// WithParsers registers p and binds models to it.
func WithParsers(p parser.ModelParser, models ...string) opts.Option[Runtime] {
	return opts.Type[Runtime](func(r *Runtime) error {
		if p == nil {
			return errors.New("parser is required")
		}
		r.parsers = append(r.parsers, binding{parser: p, models: models})
		return nil
	})
}

// New creates a runtime for doc.
func New(doc *document.Document, options ...opts.Option[Runtime]) (*Runtime, error) {
	if doc == nil {
		return nil, errors.New("document is required")
	}
	rt := &Runtime{doc: doc}
	if err := opts.Apply(rt, options); err != nil {
		return nil, err
	}
	if rt.registry == nil {
		rt.registry = parser.NewRegistry()
	}
	for _, b := range rt.parsers {
		if err := rt.registry.Register(b.parser, b.models...); err != nil {
			return nil, err
		}
	}
	if rt.hub != nil {
		for _, id := range rt.registry.IDs() {
			p, _ := rt.registry.Get(id)
			if aware, ok := p.(hubAware); ok {
				aware.SetHub(rt.hub)
			}
		}
	}
	return rt, nil
}

// Document returns the bound document.
func (r *Runtime) Document() *document.Document { return r.doc }

// Registry returns the parser registry.
func (r *Runtime) Registry() *parser.Registry { return r.registry }

func (r *Runtime) prompt(name string) (*document.Prompt, parser.ModelParser, error) {
	prompt, ok := r.doc.Prompt(name)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", document.ErrPromptNotFound, name)
	}
	p, err := r.registry.ForPrompt(r.doc, prompt)
	if err != nil {
		return nil, nil, err
	}
	return prompt, p, nil
}

// Run executes the named prompt and returns its new outputs.
func (r *Runtime) Run(ctx context.Context, promptName string, params types.Params, options *parser.RunOptions) ([]document.Output, error) {
	prompt, p, err := r.prompt(promptName)
	if err != nil {
		return nil, err
	}
	slog.DebugContext(ctx, "running prompt", slogx.Prompt(promptName), slogx.Parser(p.ID()))
	return p.Run(ctx, prompt, r.doc, options, params)
}

// RunText executes the named prompt and returns the text of its latest output.
func (r *Runtime) RunText(ctx context.Context, promptName string, params types.Params, options *parser.RunOptions) (string, error) {
	if _, err := r.Run(ctx, promptName, params, options); err != nil {
		return "", err
	}
	return r.OutputText(promptName), nil
}

// Resolve returns the provider request the named prompt would be sent as.
func (r *Runtime) Resolve(ctx context.Context, promptName string, params types.Params) (*jsonx.Object, error) {
	prompt, p, err := r.prompt(promptName)
	if err != nil {
		return nil, err
	}
	return p.Deserialize(ctx, prompt, r.doc, params)
}

// Serialize converts a provider request for model into prompts and appends
// them to the document. When the request names no model, model is used. No
// prompt is added when any of their names is already taken.
func (r *Runtime) Serialize(ctx context.Context, model, promptName string, request *jsonx.Object, params types.Params) ([]*document.Prompt, error) {
	p, err := r.registry.ForModel(r.doc, model)
	if err != nil {
		return nil, err
	}

	request = jsonx.CloneObject(request)
	if request == nil {
		request = jsonx.NewObject()
	}
	if name, ok := jsonx.GetString(request, "model"); !ok || name == "" {
		request.Set("model", model)
	}

	prompts, err := p.Serialize(ctx, promptName, request, r.doc, params)
	if err != nil {
		return nil, err
	}
	for _, prompt := range prompts {
		if _, exists := r.doc.Prompt(prompt.Name); exists {
			return nil, fmt.Errorf("%w: %q", document.ErrDuplicatePrompt, prompt.Name)
		}
	}
	for _, prompt := range prompts {
		if err := r.doc.AddPrompt(prompt); err != nil {
			return nil, err
		}
	}
	return prompts, nil
}

// OutputText returns the text of the latest output of the named prompt, or
// "" when the prompt or its output is missing.
func (r *Runtime) OutputText(promptName string) string {
	prompt, ok := r.doc.Prompt(promptName)
	if !ok {
		return ""
	}
	p, err := r.registry.ForPrompt(r.doc, prompt)
	if err != nil {
		return r.doc.OutputText(prompt, nil)
	}
	return p.OutputText(r.doc, prompt, nil)
}
