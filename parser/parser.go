// Package parser defines the contract every provider adapter implements.
//
// A ModelParser converts between provider-native request objects and
// document prompts, and runs prompts against its provider:
//
//	Serialize    provider request  -> prompts
//	Deserialize  prompt            -> provider request
//	Run          prompt            -> outputs, recorded on the prompt
//
// Parsers hold no reference to a document between calls. The same parser can
// serve any number of documents.
package parser

import (
	"context"

	"github.com/casualjim/quill/document"
	"github.com/casualjim/quill/errdefs"
	"github.com/casualjim/quill/pkg/jsonx"
	"github.com/casualjim/quill/types"
)

// ConfigurationError is returned for missing credentials and unusable model
// references.
type ConfigurationError = errdefs.ConfigurationError

// Kind is the closed set of parser variants.
type Kind int

const (
	TextCompletion Kind = iota + 1
	ChatCompletion
	TextGeneration
)

func (k Kind) String() string {
	switch k {
	case TextCompletion:
		return "text_completion"
	case ChatCompletion:
		return "chat_completion"
	case TextGeneration:
		return "text_generation"
	default:
		return "unknown"
	}
}

// StreamsByDefault reports whether runs of this kind stream when neither the
// caller nor the request decide.
func (k Kind) StreamsByDefault() bool {
	return k == TextCompletion || k == ChatCompletion
}

// StreamCallback receives every streamed fragment: the text the fragment
// added, the text accumulated so far and the choice it belongs to.
type StreamCallback func(delta, accumulated string, index int)

// RunOptions tune a single run.
type RunOptions struct {
	// Stream forces streaming on or off. Nil defers to the request's
	// "stream" setting, then to the parser kind.
	Stream         *bool
	StreamCallback StreamCallback
}

// ModelParser is implemented by every provider adapter.
type ModelParser interface {
	ID() string
	Kind() Kind
	// Serialize converts a provider request into prompts. The prompts are
	// returned, not added to doc.
	Serialize(ctx context.Context, promptName string, request *jsonx.Object, doc *document.Document, params types.Params) ([]*document.Prompt, error)
	// Deserialize builds the provider request for prompt.
	Deserialize(ctx context.Context, prompt *document.Prompt, doc *document.Document, params types.Params) (*jsonx.Object, error)
	// Run executes prompt, replaces its outputs with the result and returns them.
	Run(ctx context.Context, prompt *document.Prompt, doc *document.Document, opts *RunOptions, params types.Params) ([]document.Output, error)
	// OutputText projects an output to display text. A nil output means the
	// latest output of prompt.
	OutputText(doc *document.Document, prompt *document.Prompt, output document.Output) string
}
