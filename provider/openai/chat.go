package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/casualjim/quill/document"
	"github.com/casualjim/quill/errdefs"
	"github.com/casualjim/quill/history"
	"github.com/casualjim/quill/internal/transport"
	"github.com/casualjim/quill/notify"
	"github.com/casualjim/quill/parser"
	"github.com/casualjim/quill/pkg/jsonx"
	"github.com/casualjim/quill/pkg/slogx"
	"github.com/casualjim/quill/stream"
	"github.com/casualjim/quill/templating"
	"github.com/casualjim/quill/types"
	"github.com/fogfish/opts"
)

const chatCompletionsPath = "chat/completions"

var _ parser.ModelParser = (*ChatParser)(nil)

// ChatParser runs prompts against a chat completions endpoint.
type ChatParser struct {
	parser.Base
	client   *transport.Client
	resolver templating.Resolver
}

// NewChatParser creates a chat parser. The client is not created until the
// first run.
func NewChatParser(options ...opts.Option[Config]) (*ChatParser, error) {
	cfg, err := newConfig(ChatParserID, options)
	if err != nil {
		return nil, err
	}
	return &ChatParser{
		Base:     parser.NewBase(cfg.id, parser.ChatCompletion),
		client:   cfg.client(),
		resolver: cfg.resolver,
	}, nil
}

// Serialize converts a chat request into prompts: one per user, tool or
// function message, each paired with the assistant reply that follows it.
// The last prompt is named promptName, earlier ones promptName_1, _2 and so on.
func (p *ChatParser) Serialize(ctx context.Context, promptName string, request *jsonx.Object, doc *document.Document, params types.Params) ([]*document.Prompt, error) {
	span := p.Begin(ctx, notify.SerializeStart, jsonx.FromPairs("prompt", promptName, "request", request))

	prompts, err := p.serialize(promptName, request, doc, params)
	if err != nil {
		span.End(ctx, notify.SerializeEnd, jsonx.FromPairs("prompt", promptName, "error", err.Error()))
		return nil, err
	}

	span.End(ctx, notify.SerializeEnd, jsonx.FromPairs("prompt", promptName, "prompts", prompts))
	return prompts, nil
}

func (p *ChatParser) serialize(promptName string, request *jsonx.Object, doc *document.Document, params types.Params) ([]*document.Prompt, error) {
	model, ok := jsonx.GetString(request, "model")
	if !ok || model == "" {
		return nil, errdefs.Configuration(p.ID(), fmt.Errorf("%w: request has no model", errdefs.ErrInvalidModelRef))
	}
	messages, _ := jsonx.GetArray(request, "messages")

	settings := jsonx.Without(request, "model", "messages")
	var conversation []*jsonx.Object
	for i, m := range messages {
		msg, ok := m.(*jsonx.Object)
		if !ok {
			return nil, fmt.Errorf("message %d is not an object", i)
		}
		role, _ := jsonx.GetString(msg, "role")
		if role == history.RoleSystem {
			if _, seen := settings.Get(history.SystemPromptKey); !seen {
				content, _ := jsonx.GetString(msg, "content")
				settings.Set(history.SystemPromptKey, content)
			}
			continue
		}
		conversation = append(conversation, msg)
	}

	ref := doc.ModelRefFor(model, settings)
	parameters, err := paramsObject(params)
	if err != nil {
		return nil, err
	}

	var prompts []*document.Prompt
	for _, msg := range conversation {
		role, _ := jsonx.GetString(msg, "role")
		if role == history.RoleAssistant {
			if len(prompts) == 0 {
				slog.Debug("skipping assistant message without a preceding prompt", slogx.Prompt(promptName))
				continue
			}
			last := prompts[len(prompts)-1]
			last.Outputs = append(last.Outputs, outputFromMessage(msg, 0, jsonx.CloneObject(msg)))
			continue
		}

		prompts = append(prompts, &document.Prompt{
			Name:  fmt.Sprintf("%s_%d", promptName, len(prompts)+1),
			Input: inputFromMessage(msg),
			Metadata: &document.PromptMetadata{
				Model:      cloneRef(ref),
				Parameters: jsonx.CloneObject(parameters),
			},
		})
	}
	if len(prompts) == 0 {
		return nil, errors.New("request has no user, tool or function message")
	}
	prompts[len(prompts)-1].Name = promptName
	return prompts, nil
}

// inputFromMessage keeps plain user text as a text input and everything else
// as the message object.
func inputFromMessage(msg *jsonx.Object) document.Input {
	role, _ := jsonx.GetString(msg, "role")
	content, isText := jsonx.GetString(msg, "content")
	if role == history.RoleUser && isText && msg.Len() == 2 {
		return document.TextInput(content)
	}
	return document.ObjectInput(jsonx.CloneObject(msg))
}

func cloneRef(ref *document.ModelRef) *document.ModelRef {
	if ref.Settings == nil {
		return document.ModelName(ref.Name)
	}
	return document.ModelWithSettings(ref.Name, jsonx.CloneObject(ref.Settings))
}

func paramsObject(params types.Params) (*jsonx.Object, error) {
	if len(params) == 0 {
		return nil, nil
	}
	obj, err := jsonx.NormalizeObject(map[string]any(params))
	if err != nil {
		return nil, fmt.Errorf("failed to encode params: %w", err)
	}
	return obj, nil
}

// Deserialize builds the chat request for prompt: the model, its effective
// settings and the message history up to prompt.
func (p *ChatParser) Deserialize(ctx context.Context, prompt *document.Prompt, doc *document.Document, params types.Params) (*jsonx.Object, error) {
	span := p.Begin(ctx, notify.DeserializeStart, jsonx.FromPairs("prompt", prompt.Name, "params", params))

	request, err := p.deserialize(ctx, prompt, doc, params)
	if err != nil {
		span.End(ctx, notify.DeserializeEnd, jsonx.FromPairs("prompt", prompt.Name, "error", err.Error()))
		return nil, err
	}

	span.End(ctx, notify.DeserializeEnd, jsonx.FromPairs("prompt", prompt.Name, "request", request))
	return request, nil
}

func (p *ChatParser) deserialize(ctx context.Context, prompt *document.Prompt, doc *document.Document, params types.Params) (*jsonx.Object, error) {
	request, err := baseRequest(prompt, doc)
	if err != nil {
		return nil, err
	}

	messages, err := history.Build(ctx, prompt, doc, p.resolver, params)
	if err != nil {
		return nil, err
	}
	list := make([]any, len(messages))
	for i, m := range messages {
		list[i] = m
	}
	request.Set("messages", list)
	return request, nil
}

// baseRequest starts a request with the model and the effective settings of
// prompt. The system prompt setting is not a request field.
func baseRequest(prompt *document.Prompt, doc *document.Document) (*jsonx.Object, error) {
	model, err := doc.ModelName(prompt)
	if err != nil {
		return nil, err
	}
	settings, err := doc.ResolvedSettings(prompt)
	if err != nil {
		return nil, err
	}

	if name, ok := jsonx.GetString(settings, "model"); ok && name != "" {
		model = name
	}
	request := jsonx.FromPairs("model", model)
	jsonx.Range(jsonx.Without(settings, "model", history.SystemPromptKey), func(key string, value any) bool {
		request.Set(key, jsonx.Clone(value))
		return true
	})
	return request, nil
}

// Run sends prompt to the chat completions endpoint and records one output
// per choice.
func (p *ChatParser) Run(ctx context.Context, prompt *document.Prompt, doc *document.Document, options *parser.RunOptions, params types.Params) ([]document.Output, error) {
	return p.Execute(ctx, p, prompt, doc, options, params, p.dispatch)
}

func (p *ChatParser) dispatch(ctx context.Context, request *jsonx.Object, streaming bool, callback parser.StreamCallback) ([]document.Output, error) {
	if !streaming {
		response, err := p.client.Do(ctx, chatCompletionsPath, request)
		if err != nil {
			return nil, err
		}
		return p.outputsFromResponse(response)
	}

	var acc stream.Accumulator
	err := p.client.Stream(ctx, chatCompletionsPath, request, func(data []byte) error {
		frag, err := stream.ParseFragment(data)
		if err != nil {
			return errdefs.Protocol(p.ID(), err)
		}
		for _, c := range frag.Choices {
			keyToolCalls(c.Delta)
		}
		if acc, err = foldFragment(acc, frag); err != nil {
			return err
		}
		notifyChoices(callback, acc, frag, "content")
		return nil
	})
	if err != nil {
		return nil, err
	}

	outputs := make([]document.Output, 0, len(acc))
	for _, idx := range acc.Indexes() {
		msg := acc[idx]
		unkeyToolCalls(msg)
		outputs = append(outputs, outputFromMessage(msg, idx, jsonx.CloneObject(msg)))
	}
	return outputs, nil
}

func (p *ChatParser) outputsFromResponse(response any) ([]document.Output, error) {
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
		msg, _ := jsonx.GetObject(choice, "message")
		outputs = append(outputs, outputFromMessage(msg, idx, choice))
	}
	return outputs, nil
}
