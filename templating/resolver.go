// Package templating resolves {{var}} placeholders in prompt text.
//
// The default implementation is handlebars (github.com/aymerick/raymond).
// A template is rendered against a context built from, in increasing order of
// precedence, references to earlier prompts, the document parameters, the
// prompt parameters and the call-time parameters.
//
// Earlier prompts are addressable by name:
//
//	{{translate.output}}  latest output text of the prompt named "translate"
//	{{translate.input}}   raw input template of that prompt
//
// Only prompts declared before the one being resolved are visible, so a
// prompt can never see its own output or that of a later prompt.
package templating

import (
	"github.com/casualjim/quill/document"
	"github.com/casualjim/quill/types"
)

// Resolver turns template text into its final form. Implementations must be
// pure given their inputs and must not mutate the document.
type Resolver interface {
	Resolve(template string, prompt *document.Prompt, doc *document.Document, params types.Params) (string, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(template string, prompt *document.Prompt, doc *document.Document, params types.Params) (string, error)

func (f ResolverFunc) Resolve(template string, prompt *document.Prompt, doc *document.Document, params types.Params) (string, error) {
	return f(template, prompt, doc, params)
}

// Verbatim returns every template unchanged.
var Verbatim Resolver = ResolverFunc(func(template string, _ *document.Prompt, _ *document.Document, _ types.Params) (string, error) {
	return template, nil
})
