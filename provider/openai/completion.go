package openai

import (
	"context"
	"fmt"

	"github.com/casualjim/quill/document"
	"github.com/casualjim/quill/errdefs"
	"github.com/casualjim/quill/internal/transport"
	"github.com/casualjim/quill/notify"
	"github.com/casualjim/quill/parser"
	"github.com/casualjim/quill/pkg/jsonx"
	"github.com/casualjim/quill/stream"
	"github.com/casualjim/quill/templating"
	"github.com/casualjim/quill/types"
	"github.com/fogfish/opts"
	"github.com/tidwall/gjson"
)

const completionsPath = "completions"

var _ parser.ModelParser = (*CompletionParser)(nil)

// CompletionParser runs prompts against a text completions endpoint. It
// sends only the resolved input of the prompt, without history.
type CompletionParser struct {
	parser.Base
	client   *transport.Client
	resolver templating.Resolver
}

// NewCompletionParser creates a text completion parser.
func NewCompletionParser(options ...opts.Option[Config]) (*CompletionParser, error) {
	cfg, err := newConfig(CompletionParserID, options)
	if err != nil {
		return nil, err
	}
	return &CompletionParser{
		Base:     parser.NewBase(cfg.id, parser.TextCompletion),
		client:   cfg.client(),
		resolver: cfg.resolver,
	}, nil
}

// Serialize converts a completion request into a single prompt named
// promptName.
func (p *CompletionParser) Serialize(ctx context.Context, promptName string, request *jsonx.Object, doc *document.Document, params types.Params) ([]*document.Prompt, error) {
	span := p.Begin(ctx, notify.SerializeStart, jsonx.FromPairs("prompt", promptName, "request", request))

	model, ok := jsonx.GetString(request, "model")
	if !ok || model == "" {
		err := errdefs.Configuration(p.ID(), fmt.Errorf("%w: request has no model", errdefs.ErrInvalidModelRef))
		span.End(ctx, notify.SerializeEnd, jsonx.FromPairs("prompt", promptName, "error", err.Error()))
		return nil, err
	}
	text, _ := jsonx.GetString(request, "prompt")
	parameters, err := paramsObject(params)
	if err != nil {
		span.End(ctx, notify.SerializeEnd, jsonx.FromPairs("prompt", promptName, "error", err.Error()))
		return nil, err
	}

	prompts := []*document.Prompt{{
		Name:  promptName,
		Input: document.TextInput(text),
		Metadata: &document.PromptMetadata{
			Model:      doc.ModelRefFor(model, jsonx.Without(request, "model", "prompt")),
			Parameters: parameters,
		},
	}}

	span.End(ctx, notify.SerializeEnd, jsonx.FromPairs("prompt", promptName, "prompts", prompts))
	return prompts, nil
}

// Deserialize builds the completion request for prompt.
func (p *CompletionParser) Deserialize(ctx context.Context, prompt *document.Prompt, doc *document.Document, params types.Params) (*jsonx.Object, error) {
	span := p.Begin(ctx, notify.DeserializeStart, jsonx.FromPairs("prompt", prompt.Name, "params", params))

	request, err := baseRequest(prompt, doc)
	if err == nil {
		var text string
		text, err = p.resolver.Resolve(prompt.Input.Template(), prompt, doc, params)
		if err == nil {
			request.Set("prompt", text)
		}
	}
	if err != nil {
		span.End(ctx, notify.DeserializeEnd, jsonx.FromPairs("prompt", prompt.Name, "error", err.Error()))
		return nil, err
	}

	span.End(ctx, notify.DeserializeEnd, jsonx.FromPairs("prompt", prompt.Name, "request", request))
	return request, nil
}

// Run sends prompt to the completions endpoint and records one text output
// per choice.
func (p *CompletionParser) Run(ctx context.Context, prompt *document.Prompt, doc *document.Document, options *parser.RunOptions, params types.Params) ([]document.Output, error) {
	return p.Execute(ctx, p, prompt, doc, options, params, p.dispatch)
}

func (p *CompletionParser) dispatch(ctx context.Context, request *jsonx.Object, streaming bool, callback parser.StreamCallback) ([]document.Output, error) {
	if !streaming {
		response, err := p.client.Do(ctx, completionsPath, request)
		if err != nil {
			return nil, err
		}
		obj, ok := response.(*jsonx.Object)
		if !ok {
			return nil, errdefs.Protocol(p.ID(), fmt.Errorf("%w: response is not an object", errdefs.ErrUnexpectedSchema))
		}
		choices, _ := jsonx.GetArray(obj, "choices")
		outputs := make([]document.Output, 0, len(choices))
		for i, c := range choices {
			choice, ok := c.(*jsonx.Object)
			if !ok {
				return nil, errdefs.Protocol(p.ID(), fmt.Errorf("%w: choice %d is not an object", errdefs.ErrUnexpectedSchema, i))
			}
			idx := i
			if f, ok := jsonx.GetFloat(choice, "index"); ok {
				idx = int(f)
			}
			outputs = append(outputs, textOutput(choice, idx))
		}
		return outputs, nil
	}

	var acc stream.Accumulator
	err := p.client.Stream(ctx, completionsPath, request, func(data []byte) error {
		frag, err := completionFragment(data)
		if err != nil {
			return errdefs.Protocol(p.ID(), err)
		}
		if acc, err = foldFragment(acc, frag); err != nil {
			return err
		}
		notifyChoices(callback, acc, frag, "text")
		return nil
	})
	if err != nil {
		return nil, err
	}

	outputs := make([]document.Output, 0, len(acc))
	for _, idx := range acc.Indexes() {
		outputs = append(outputs, textOutput(jsonx.CloneObject(acc[idx]), idx))
	}
	return outputs, nil
}

// completionFragment reads a completion chunk, whose choices carry their text
// directly instead of in a delta.
func completionFragment(data []byte) (stream.Fragment, error) {
	if !gjson.ValidBytes(data) {
		return stream.Fragment{}, fmt.Errorf("invalid json: %s", data)
	}
	var frag stream.Fragment
	position := 0
	gjson.GetBytes(data, "choices").ForEach(func(_, value gjson.Result) bool {
		c := stream.Choice{Index: position}
		if idx := value.Get("index"); idx.Exists() {
			c.Index = int(idx.Int())
		}
		if choice, ok := jsonx.FromResult(value).(*jsonx.Object); ok {
			c.Delta = jsonx.Without(choice, "index")
		}
		frag.Choices = append(frag.Choices, c)
		position++
		return true
	})
	return frag, nil
}

func textOutput(choice *jsonx.Object, index int) *document.ExecuteResult {
	text, _ := jsonx.GetString(choice, "text")
	return &document.ExecuteResult{
		ExecutionCount: index,
		Data:           document.Text(text),
		Metadata:       jsonx.FromPairs(document.MetadataRawResponse, choice),
	}
}
