// Package huggingface implements a single-turn text-generation parser for
// the Hugging Face inference API and text-generation-inference servers.
//
// A prompt becomes
//
//	POST models/<model>
//	{"inputs": "<resolved input>", "parameters": {...settings}, "stream": false}
//
// and the response [{"generated_text": "..."}] becomes one text output per
// generation. Streams deliver {"token": {"text": "...", "special": false}}
// events whose text is accumulated; special tokens are dropped.
//
// The api token is optional. It is read from WithToken or the
// HUGGING_FACE_API_TOKEN environment variable.
package huggingface

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
	"github.com/openai/openai-go/option"
	"github.com/tidwall/gjson"
)

const (
	ParserID = "huggingface.text_generation"

	// TokenEnv is read when no token option is given.
	TokenEnv = "HUGGING_FACE_API_TOKEN"

	// DefaultBaseURL is the hosted inference API.
	DefaultBaseURL = "https://api-inference.huggingface.co/"

	generatedText = "generated_text"
)

// Config configures the parser.
type Config struct {
	id             string
	token          string
	baseURL        string
	resolver       templating.Resolver
	requestOptions []option.RequestOption
}

var (
	WithID      = opts.ForName[Config, string]("id")
	WithToken   = opts.ForName[Config, string]("token")
	WithBaseURL = opts.ForName[Config, string]("baseURL")
)

// WithResolver replaces the handlebars template resolver.
func WithResolver(resolver templating.Resolver) opts.Option[Config] {
	return opts.Type[Config](func(c *Config) error {
		c.resolver = resolver
		return nil
	})
}

// WithRequestOptions passes options through to the HTTP client.
func WithRequestOptions(options ...option.RequestOption) opts.Option[Config] {
	return opts.Type[Config](func(c *Config) error {
		c.requestOptions = append(c.requestOptions, options...)
		return nil
	})
}

var _ parser.ModelParser = (*TextGenerationParser)(nil)

// TextGenerationParser runs prompts as single-turn text generations.
type TextGenerationParser struct {
	parser.Base
	client   *transport.Client
	resolver templating.Resolver
}

// NewTextGenerationParser creates the parser.
func NewTextGenerationParser(options ...opts.Option[Config]) (*TextGenerationParser, error) {
	cfg := &Config{id: ParserID, baseURL: DefaultBaseURL}
	if err := opts.Apply(cfg, options); err != nil {
		return nil, err
	}
	if cfg.resolver == nil {
		h, err := templating.NewHandlebars()
		if err != nil {
			return nil, err
		}
		cfg.resolver = h
	}

	return &TextGenerationParser{
		Base: parser.NewBase(cfg.id, parser.TextGeneration),
		client: transport.New(transport.Config{
			Component: cfg.id,
			APIKey:    cfg.token,
			APIKeyEnv: TokenEnv,
			BaseURL:   cfg.baseURL,
			Options:   cfg.requestOptions,
		}),
		resolver: cfg.resolver,
	}, nil
}

// Serialize converts {"model", "inputs", "parameters", "stream"} into one
// prompt named promptName.
func (p *TextGenerationParser) Serialize(ctx context.Context, promptName string, request *jsonx.Object, doc *document.Document, params types.Params) ([]*document.Prompt, error) {
	span := p.Begin(ctx, notify.SerializeStart, jsonx.FromPairs("prompt", promptName, "request", request))

	model, ok := jsonx.GetString(request, "model")
	if !ok || model == "" {
		err := errdefs.Configuration(p.ID(), fmt.Errorf("%w: request has no model", errdefs.ErrInvalidModelRef))
		span.End(ctx, notify.SerializeEnd, jsonx.FromPairs("prompt", promptName, "error", err.Error()))
		return nil, err
	}

	settings := jsonx.NewObject()
	if parameters, ok := jsonx.GetObject(request, "parameters"); ok {
		settings = jsonx.CloneObject(parameters)
	}
	if stream, ok := jsonx.GetBool(request, "stream"); ok {
		settings.Set("stream", stream)
	}
	inputs, _ := jsonx.GetString(request, "inputs")

	prompt := &document.Prompt{
		Name:  promptName,
		Input: document.TextInput(inputs),
		Metadata: &document.PromptMetadata{
			Model: doc.ModelRefFor(model, settings),
		},
	}
	if len(params) > 0 {
		parameters, err := jsonx.NormalizeObject(map[string]any(params))
		if err != nil {
			span.End(ctx, notify.SerializeEnd, jsonx.FromPairs("prompt", promptName, "error", err.Error()))
			return nil, err
		}
		prompt.Metadata.Parameters = parameters
	}

	prompts := []*document.Prompt{prompt}
	span.End(ctx, notify.SerializeEnd, jsonx.FromPairs("prompt", promptName, "prompts", prompts))
	return prompts, nil
}

// Deserialize builds the generation request for prompt. The model name is
// kept in the request to address the endpoint and is not sent.
func (p *TextGenerationParser) Deserialize(ctx context.Context, prompt *document.Prompt, doc *document.Document, params types.Params) (*jsonx.Object, error) {
	span := p.Begin(ctx, notify.DeserializeStart, jsonx.FromPairs("prompt", prompt.Name, "params", params))

	request, err := p.deserialize(prompt, doc, params)
	if err != nil {
		span.End(ctx, notify.DeserializeEnd, jsonx.FromPairs("prompt", prompt.Name, "error", err.Error()))
		return nil, err
	}

	span.End(ctx, notify.DeserializeEnd, jsonx.FromPairs("prompt", prompt.Name, "request", request))
	return request, nil
}

func (p *TextGenerationParser) deserialize(prompt *document.Prompt, doc *document.Document, params types.Params) (*jsonx.Object, error) {
	model, err := doc.ModelName(prompt)
	if err != nil {
		return nil, err
	}
	settings, err := doc.ResolvedSettings(prompt)
	if err != nil {
		return nil, err
	}
	inputs, err := p.resolver.Resolve(prompt.Input.Template(), prompt, doc, params)
	if err != nil {
		return nil, err
	}

	request := jsonx.FromPairs(
		"model", model,
		"inputs", inputs,
		"parameters", jsonx.Without(settings, "stream", "model", "system_prompt"),
	)
	if stream, ok := jsonx.GetBool(settings, "stream"); ok {
		request.Set("stream", stream)
	}
	return request, nil
}

// Run generates text for prompt.
func (p *TextGenerationParser) Run(ctx context.Context, prompt *document.Prompt, doc *document.Document, options *parser.RunOptions, params types.Params) ([]document.Output, error) {
	return p.Execute(ctx, p, prompt, doc, options, params, p.dispatch)
}

func (p *TextGenerationParser) dispatch(ctx context.Context, request *jsonx.Object, streaming bool, callback parser.StreamCallback) ([]document.Output, error) {
	model, _ := jsonx.GetString(request, "model")
	path := "models/" + model
	body := jsonx.Without(request, "model")

	if !streaming {
		response, err := p.client.Do(ctx, path, body)
		if err != nil {
			return nil, err
		}
		return p.outputsFromResponse(response)
	}

	var acc stream.Accumulator
	err := p.client.Stream(ctx, path, body, func(data []byte) error {
		frag, err := tokenFragment(data)
		if err != nil {
			return errdefs.Protocol(p.ID(), err)
		}
		if acc, err = stream.Fold(acc, frag); err != nil {
			return err
		}
		if callback != nil {
			delta, _ := jsonx.GetString(frag.Choices[0].Delta, generatedText)
			callback(delta, acc.String(0, generatedText), 0)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(acc) == 0 {
		return nil, nil
	}
	return []document.Output{textOutput(jsonx.CloneObject(acc[0]), 0)}, nil
}

// tokenFragment reads one streamed token event as a single-choice fragment.
func tokenFragment(data []byte) (stream.Fragment, error) {
	if !gjson.ValidBytes(data) {
		return stream.Fragment{}, fmt.Errorf("invalid json: %s", data)
	}
	token := gjson.GetBytes(data, "token")
	if !token.IsObject() {
		return stream.Fragment{}, fmt.Errorf("%w: event has no token", errdefs.ErrUnexpectedSchema)
	}
	delta := jsonx.NewObject()
	if !token.Get("special").Bool() {
		delta.Set(generatedText, token.Get("text").String())
	}
	if details := gjson.GetBytes(data, "details"); details.IsObject() {
		delta.Set("details", jsonx.FromResult(details))
	}
	return stream.Fragment{Choices: []stream.Choice{{Index: 0, Delta: delta}}}, nil
}

func (p *TextGenerationParser) outputsFromResponse(response any) ([]document.Output, error) {
	var generations []any
	switch r := response.(type) {
	case []any:
		generations = r
	case *jsonx.Object:
		generations = []any{r}
	default:
		return nil, errdefs.Protocol(p.ID(), fmt.Errorf("%w: response is %T", errdefs.ErrUnexpectedSchema, response))
	}

	outputs := make([]document.Output, 0, len(generations))
	for i, g := range generations {
		generation, ok := g.(*jsonx.Object)
		if !ok {
			return nil, errdefs.Protocol(p.ID(), fmt.Errorf("%w: generation %d is not an object", errdefs.ErrUnexpectedSchema, i))
		}
		outputs = append(outputs, textOutput(generation, i))
	}
	return outputs, nil
}

func textOutput(raw *jsonx.Object, index int) *document.ExecuteResult {
	text, _ := jsonx.GetString(raw, generatedText)
	return &document.ExecuteResult{
		ExecutionCount: index,
		Data:           document.Text(text),
		Metadata:       jsonx.FromPairs(document.MetadataRawResponse, raw),
	}
}
