package quill

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/casualjim/quill/document"
	"github.com/casualjim/quill/notify"
	"github.com/casualjim/quill/parser"
	"github.com/casualjim/quill/pkg/jsonx"
	"github.com/casualjim/quill/templating"
	"github.com/casualjim/quill/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shoutParser answers every prompt with its resolved input in upper case.
type shoutParser struct {
	parser.Base
	resolver templating.Resolver
}

func newShoutParser(t *testing.T) *shoutParser {
	t.Helper()
	hb, err := templating.NewHandlebars()
	require.NoError(t, err)
	return &shoutParser{Base: parser.NewBase("shout", parser.TextGeneration), resolver: hb}
}

func (s *shoutParser) Serialize(_ context.Context, promptName string, request *jsonx.Object, doc *document.Document, _ types.Params) ([]*document.Prompt, error) {
	model, _ := jsonx.GetString(request, "model")
	text, _ := jsonx.GetString(request, "prompt")
	return []*document.Prompt{{
		Name:     promptName,
		Input:    document.TextInput(text),
		Metadata: &document.PromptMetadata{Model: doc.ModelRefFor(model, jsonx.Without(request, "model", "prompt"))},
	}}, nil
}

func (s *shoutParser) Deserialize(_ context.Context, prompt *document.Prompt, doc *document.Document, params types.Params) (*jsonx.Object, error) {
	model, err := doc.ModelName(prompt)
	if err != nil {
		return nil, err
	}
	text, err := s.resolver.Resolve(prompt.Input.Template(), prompt, doc, params)
	if err != nil {
		return nil, err
	}
	return jsonx.FromPairs("model", model, "prompt", text), nil
}

func (s *shoutParser) Run(ctx context.Context, prompt *document.Prompt, doc *document.Document, opts *parser.RunOptions, params types.Params) ([]document.Output, error) {
	return s.Execute(ctx, s, prompt, doc, opts, params, func(_ context.Context, request *jsonx.Object, _ bool, _ parser.StreamCallback) ([]document.Output, error) {
		text, _ := jsonx.GetString(request, "prompt")
		return []document.Output{&document.ExecuteResult{
			Data:     document.Text(strings.ToUpper(text)),
			Metadata: jsonx.FromPairs(document.MetadataRawResponse, request, document.MetadataRole, "assistant"),
		}}, nil
	})
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)

	_, err = New(document.New("d"), WithRegistry(nil))
	require.Error(t, err)

	_, err = New(document.New("d"), WithParsers(nil))
	require.Error(t, err)
}

func TestRuntime_SerializeAndRun(t *testing.T) {
	doc := document.New("greeter")
	rt, err := New(doc, WithParsers(newShoutParser(t), "loud-1"))
	require.NoError(t, err)
	assert.Same(t, doc, rt.Document())

	prompts, err := rt.Serialize(context.Background(), "loud-1", "greet", jsonx.FromPairs("prompt", "hello {{name}}"), nil)
	require.NoError(t, err)
	require.Len(t, prompts, 1)
	require.Len(t, doc.Prompts, 1)
	assert.Equal(t, "loud-1", doc.Prompts[0].Metadata.Model.Name)

	request, err := rt.Resolve(context.Background(), "greet", types.Params{"name": "ada"})
	require.NoError(t, err)
	prompt, _ := jsonx.GetString(request, "prompt")
	assert.Equal(t, "hello ada", prompt)

	text, err := rt.RunText(context.Background(), "greet", types.Params{"name": "ada"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "HELLO ADA", text)
	assert.Equal(t, "HELLO ADA", rt.OutputText("greet"))
	assert.Empty(t, rt.OutputText("missing"))
}

func TestRuntime_SerializeKeepsRequestModel(t *testing.T) {
	doc := document.New("d")
	rt, err := New(doc, WithParsers(newShoutParser(t), "loud-1", "loud-2"))
	require.NoError(t, err)

	request := jsonx.FromPairs("model", "loud-2", "prompt", "x")
	_, err = rt.Serialize(context.Background(), "loud-1", "p", request, nil)
	require.NoError(t, err)
	assert.Equal(t, "loud-2", doc.Prompts[0].Metadata.Model.Name)
	assert.Equal(t, 2, jsonx.Len(request), "request is not modified")
}

func TestRuntime_SerializeRejectsDuplicates(t *testing.T) {
	doc := document.New("d")
	rt, err := New(doc, WithParsers(newShoutParser(t), "loud-1"))
	require.NoError(t, err)

	_, err = rt.Serialize(context.Background(), "loud-1", "p", jsonx.FromPairs("prompt", "a"), nil)
	require.NoError(t, err)
	_, err = rt.Serialize(context.Background(), "loud-1", "p", jsonx.FromPairs("prompt", "b"), nil)
	require.ErrorIs(t, err, document.ErrDuplicatePrompt)
	require.Len(t, doc.Prompts, 1)
	assert.Equal(t, "a", doc.Prompts[0].Input.Template())
}

func TestRuntime_Errors(t *testing.T) {
	doc := document.New("d")
	require.NoError(t, doc.AddPrompt(&document.Prompt{
		Name:     "orphan",
		Input:    document.TextInput("hi"),
		Metadata: &document.PromptMetadata{Model: document.ModelName("nobody")},
	}))
	rt, err := New(doc)
	require.NoError(t, err)

	_, err = rt.Run(context.Background(), "missing", nil, nil)
	require.ErrorIs(t, err, document.ErrPromptNotFound)

	_, err = rt.Run(context.Background(), "orphan", nil, nil)
	require.ErrorIs(t, err, parser.ErrParserNotFound)

	_, err = rt.Serialize(context.Background(), "nobody", "p", nil, nil)
	require.ErrorIs(t, err, parser.ErrParserNotFound)

	_, err = rt.Resolve(context.Background(), "missing", nil)
	require.ErrorIs(t, err, document.ErrPromptNotFound)
}

func TestRuntime_DocumentParserBinding(t *testing.T) {
	doc := document.New("d")
	doc.Metadata.ModelParsers = map[string]string{"custom-model": "shout"}
	require.NoError(t, doc.AddPrompt(&document.Prompt{
		Name:     "p",
		Input:    document.TextInput("quiet"),
		Metadata: &document.PromptMetadata{Model: document.ModelName("custom-model")},
	}))
	rt, err := New(doc, WithParsers(newShoutParser(t)))
	require.NoError(t, err)

	text, err := rt.RunText(context.Background(), "p", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "QUIET", text)
}

func TestRuntime_HubReceivesRunEvents(t *testing.T) {
	var mu sync.Mutex
	var names []string
	hub, err := notify.NewHub(notify.WithListener(notify.ListenerFunc(func(_ context.Context, e notify.Event) error {
		mu.Lock()
		defer mu.Unlock()
		names = append(names, e.Name)
		return nil
	})))
	require.NoError(t, err)

	doc := document.New("d")
	doc.Metadata.DefaultModel = "loud-1"
	require.NoError(t, doc.AddPrompt(&document.Prompt{Name: "p", Input: document.TextInput("hi")}))

	rt, err := New(doc, WithHub(hub), WithParsers(newShoutParser(t), "loud-1"))
	require.NoError(t, err)

	_, err = rt.Run(context.Background(), "p", nil, nil)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{notify.RunStart, notify.RunEnd}, names)
}
