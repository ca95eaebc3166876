package parser

import (
	"errors"
	"fmt"

	"github.com/casualjim/quill/document"
	"github.com/casualjim/quill/internal/registry"
)

var ErrParserNotFound = errors.New("no parser registered")

// Registry is the static association between model names and parsers. It is
// safe for concurrent use.
type Registry struct {
	parsers registry.Registry[ModelParser]
	models  registry.Registry[string]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		parsers: registry.New[ModelParser](),
		models:  registry.New[string](),
	}
}

// Register adds p under its id and binds each of models to it. A parser
// registered under an existing id replaces it.
func (r *Registry) Register(p ModelParser, models ...string) error {
	if p == nil {
		return errors.New("parser is required")
	}
	if p.ID() == "" {
		return errors.New("parser id is required")
	}
	r.parsers.Add(p.ID(), p)
	for _, m := range models {
		r.models.Add(m, p.ID())
	}
	return nil
}

// Bind associates model with the parser registered as parserID.
func (r *Registry) Bind(model, parserID string) {
	r.models.Add(model, parserID)
}

// Get returns the parser registered as id.
func (r *Registry) Get(id string) (ModelParser, bool) {
	return r.parsers.Get(id)
}

// Remove unregisters the parser with the given id.
func (r *Registry) Remove(id string) {
	r.parsers.Del(id)
}

// IDs returns the registered parser ids in sorted order.
func (r *Registry) IDs() []string {
	return r.parsers.Names()
}

// ForModel returns the parser for model. A binding in the document's
// model_parsers wins over the registry bindings; a model without binding is
// looked up as a parser id.
func (r *Registry) ForModel(doc *document.Document, model string) (ModelParser, error) {
	id := model
	if bound, ok := r.models.Get(model); ok {
		id = bound
	}
	if doc != nil {
		if override := doc.ParserFor(model); override != model {
			id = override
		}
	}
	p, ok := r.parsers.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w for model %q (parser %q)", ErrParserNotFound, model, id)
	}
	return p, nil
}

// ForPrompt returns the parser for the model prompt runs against.
func (r *Registry) ForPrompt(doc *document.Document, prompt *document.Prompt) (ModelParser, error) {
	model, err := doc.ModelName(prompt)
	if err != nil {
		return nil, err
	}
	return r.ForModel(doc, model)
}
