package parser

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/casualjim/quill/document"
	"github.com/casualjim/quill/errdefs"
	"github.com/casualjim/quill/notify"
	"github.com/casualjim/quill/pkg/jsonx"
	"github.com/casualjim/quill/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubParser struct {
	Base
}

func newStub(id string, kind Kind) *stubParser {
	return &stubParser{Base: NewBase(id, kind)}
}

func (s *stubParser) Serialize(context.Context, string, *jsonx.Object, *document.Document, types.Params) ([]*document.Prompt, error) {
	return nil, nil
}

func (s *stubParser) Deserialize(context.Context, *document.Prompt, *document.Document, types.Params) (*jsonx.Object, error) {
	return jsonx.NewObject(), nil
}

func (s *stubParser) Run(context.Context, *document.Prompt, *document.Document, *RunOptions, types.Params) ([]document.Output, error) {
	return nil, nil
}

var _ ModelParser = (*stubParser)(nil)

func boolPtr(b bool) *bool { return &b }

func TestBase_ShouldStream(t *testing.T) {
	tests := []struct {
		name    string
		kind    Kind
		opts    *RunOptions
		request *jsonx.Object
		want    bool
	}{
		{"chat defaults on", ChatCompletion, nil, nil, true},
		{"text completion defaults on", TextCompletion, &RunOptions{}, jsonx.NewObject(), true},
		{"text generation defaults off", TextGeneration, nil, nil, false},
		{"request flag wins over default", ChatCompletion, nil, jsonx.FromPairs("stream", false), false},
		{"non boolean request flag is ignored", TextGeneration, nil, jsonx.FromPairs("stream", "yes"), false},
		{"option wins over request", ChatCompletion, &RunOptions{Stream: boolPtr(true)}, jsonx.FromPairs("stream", false), true},
		{"option can disable", TextCompletion, &RunOptions{Stream: boolPtr(false)}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBase("x", tt.kind)
			assert.Equal(t, tt.want, b.ShouldStream(tt.opts, tt.request))
		})
	}
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "chat_completion", ChatCompletion.String())
	assert.Equal(t, "text_completion", TextCompletion.String())
	assert.Equal(t, "text_generation", TextGeneration.String())
	assert.Equal(t, "unknown", Kind(0).String())
}

func TestBase_Span(t *testing.T) {
	var mu sync.Mutex
	var events []notify.Event
	hub, err := notify.NewHub(notify.WithListener(notify.ListenerFunc(func(_ context.Context, e notify.Event) error {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
		return nil
	})))
	require.NoError(t, err)

	p := newStub("stub", ChatCompletion)
	span := p.Begin(context.Background(), notify.RunStart, "start")
	span.End(context.Background(), notify.RunEnd, "end")
	assert.Empty(t, events, "no hub attached")

	p.SetHub(hub)
	assert.Same(t, hub, p.Hub())
	span = p.Begin(context.Background(), notify.RunStart, "start")
	span.End(context.Background(), notify.RunEnd, "end")

	require.Len(t, events, 2)
	assert.Equal(t, notify.RunStart, events[0].Name)
	assert.Equal(t, notify.RunEnd, events[1].Name)
	assert.Equal(t, span.RunID(), events[0].RunID)
	assert.Equal(t, events[0].RunID, events[1].RunID)
	assert.Equal(t, "end", events[1].Data)
}

func TestBase_OutputText(t *testing.T) {
	p := newStub("stub", ChatCompletion)
	prompt := &document.Prompt{
		Name: "p1",
		Outputs: []document.Output{
			&document.ExecuteResult{Data: document.Text("first")},
			&document.ExecuteResult{Data: document.Text("second")},
		},
	}
	doc := document.New("d")
	require.NoError(t, doc.AddPrompt(prompt))

	assert.Equal(t, "second", p.OutputText(doc, prompt, nil))
	assert.Equal(t, "first", p.OutputText(doc, prompt, prompt.Outputs[0]))
	assert.Equal(t, "x", p.OutputText(nil, nil, &document.ExecuteResult{Data: document.Text("x")}))
	assert.Equal(t, "", p.OutputText(doc, &document.Prompt{Name: "empty"}, nil))
	assert.Equal(t, "", p.OutputText(doc, prompt, &document.ErrorOutput{Name: "e"}))
}

func TestRunOptions_Callback(t *testing.T) {
	var nilOpts *RunOptions
	assert.Nil(t, nilOpts.Callback())

	called := false
	opts := &RunOptions{StreamCallback: func(string, string, int) { called = true }}
	opts.Callback()("a", "a", 0)
	assert.True(t, called)
}

func TestRegistry(t *testing.T) {
	chat := newStub("openai.chat", ChatCompletion)
	completion := newStub("openai.completion", TextCompletion)

	r := NewRegistry()
	require.NoError(t, r.Register(chat, "gpt-4o", "gpt-4o-mini"))
	require.NoError(t, r.Register(completion))
	r.Bind("gpt-3.5-turbo-instruct", "openai.completion")
	require.Error(t, r.Register(nil))
	require.Error(t, r.Register(newStub("", ChatCompletion)))

	assert.Equal(t, []string{"openai.chat", "openai.completion"}, r.IDs())

	doc := document.New("d")
	doc.Metadata.DefaultModel = "gpt-4o"
	doc.Metadata.ModelParsers = map[string]string{"my-finetune": "openai.chat"}

	tests := []struct {
		model string
		want  ModelParser
	}{
		{"gpt-4o", chat},
		{"gpt-4o-mini", chat},
		{"gpt-3.5-turbo-instruct", completion},
		{"openai.completion", completion},
		{"my-finetune", chat},
	}
	for _, tt := range tests {
		p, err := r.ForModel(doc, tt.model)
		require.NoError(t, err, tt.model)
		assert.Same(t, tt.want, p, tt.model)
	}

	_, err := r.ForModel(doc, "unknown")
	require.ErrorIs(t, err, ErrParserNotFound)

	prompt := &document.Prompt{Name: "p1", Input: document.TextInput("hi")}
	p, err := r.ForPrompt(doc, prompt)
	require.NoError(t, err)
	assert.Same(t, chat, p)

	prompt.Metadata = &document.PromptMetadata{Model: document.ModelName("")}
	_, err = r.ForPrompt(doc, prompt)
	assert.True(t, errdefs.IsConfiguration(err))

	r.Remove("openai.completion")
	_, ok := r.Get("openai.completion")
	assert.False(t, ok)
}

func TestRegistry_DocumentOverrideWins(t *testing.T) {
	chat := newStub("chat", ChatCompletion)
	gen := newStub("generation", TextGeneration)
	r := NewRegistry()
	require.NoError(t, r.Register(chat, "shared-model"))
	require.NoError(t, r.Register(gen))

	doc := document.New("d")
	doc.Metadata.ModelParsers = map[string]string{"shared-model": "generation"}

	p, err := r.ForModel(doc, "shared-model")
	require.NoError(t, err)
	assert.Same(t, gen, p)

	p, err = r.ForModel(nil, "shared-model")
	require.NoError(t, err)
	assert.Same(t, chat, p)
}

func TestBase_Execute(t *testing.T) {
	prompt := &document.Prompt{
		Name:    "p1",
		Input:   document.TextInput("hi"),
		Outputs: []document.Output{&document.ExecuteResult{Data: document.Text("old")}},
	}
	doc := document.New("d")
	require.NoError(t, doc.AddPrompt(prompt))
	p := newStub("stub", TextGeneration)

	t.Run("dispatch sees stream decision", func(t *testing.T) {
		var gotStream bool
		var gotRequest *jsonx.Object
		outputs, err := p.Execute(context.Background(), p, prompt, doc, &RunOptions{Stream: boolPtr(true)}, nil,
			func(_ context.Context, request *jsonx.Object, stream bool, _ StreamCallback) ([]document.Output, error) {
				gotStream, gotRequest = stream, request
				return []document.Output{&document.ExecuteResult{Data: document.Text("new")}}, nil
			})
		require.NoError(t, err)
		assert.True(t, gotStream)
		streamSetting, _ := jsonx.GetBool(gotRequest, "stream")
		assert.True(t, streamSetting)
		require.Len(t, outputs, 1)
		assert.Equal(t, outputs, prompt.Outputs)
	})

	t.Run("nil outputs become empty", func(t *testing.T) {
		outputs, err := p.Execute(context.Background(), p, prompt, doc, nil, nil,
			func(context.Context, *jsonx.Object, bool, StreamCallback) ([]document.Output, error) {
				return nil, nil
			})
		require.NoError(t, err)
		assert.NotNil(t, outputs)
		assert.Empty(t, prompt.Outputs)
	})

	t.Run("failure keeps outputs", func(t *testing.T) {
		kept := []document.Output{&document.ExecuteResult{Data: document.Text("kept")}}
		prompt.Outputs = kept
		boom := errors.New("boom")
		_, err := p.Execute(context.Background(), p, prompt, doc, nil, nil,
			func(context.Context, *jsonx.Object, bool, StreamCallback) ([]document.Output, error) {
				return nil, boom
			})
		require.ErrorIs(t, err, boom)
		assert.Equal(t, kept, prompt.Outputs)
	})
}

// tracedStub reports its deserialized request the way providers do.
type tracedStub struct {
	*stubParser
}

func (s tracedStub) Deserialize(ctx context.Context, prompt *document.Prompt, _ *document.Document, _ types.Params) (*jsonx.Object, error) {
	span := s.Begin(ctx, notify.DeserializeStart, jsonx.FromPairs("prompt", prompt.Name))
	request := jsonx.FromPairs("model", "m", "messages", []any{jsonx.FromPairs("role", "user", "content", "Hi")})
	span.End(ctx, notify.DeserializeEnd, jsonx.FromPairs("prompt", prompt.Name, "request", request))
	return request, nil
}

func TestBase_SlowListenerSeesEventDataAsSent(t *testing.T) {
	seen := make(chan any, 1)
	hub, err := notify.NewHub(
		notify.WithTimeout(5*time.Millisecond),
		notify.WithListener(notify.ListenerFunc(func(_ context.Context, e notify.Event) error {
			if e.Name != notify.DeserializeEnd {
				return nil
			}
			time.Sleep(30 * time.Millisecond)
			seen <- e.Data
			return nil
		})),
	)
	require.NoError(t, err)

	p := tracedStub{newStub("traced", ChatCompletion)}
	p.SetHub(hub)
	prompt := &document.Prompt{Name: "p1", Input: document.TextInput("Hi")}
	doc := document.New("d")
	require.NoError(t, doc.AddPrompt(prompt))

	_, err = p.Execute(context.Background(), p, prompt, doc, nil, nil,
		func(_ context.Context, request *jsonx.Object, _ bool, _ StreamCallback) ([]document.Output, error) {
			request.Set("extra", "added after the event")
			return nil, nil
		})
	require.NoError(t, err)

	var data any
	select {
	case data = <-seen:
	case <-time.After(time.Second):
		t.Fatal("listener never finished")
	}

	payload, ok := data.(*jsonx.Object)
	require.True(t, ok, "payload is %T", data)
	request, ok := jsonx.GetObject(payload, "request")
	require.True(t, ok)

	body, err := jsonx.Marshal(request)
	require.NoError(t, err)
	assert.JSONEq(t, `{"model":"m","messages":[{"role":"user","content":"Hi"}]}`, string(body))
}

func TestSnapshot(t *testing.T) {
	original := jsonx.FromPairs("a", jsonx.FromPairs("b", 1.0))
	copied, ok := snapshot(context.Background(), original).(*jsonx.Object)
	require.True(t, ok)

	inner, _ := jsonx.GetObject(original, "a")
	inner.Set("b", 2.0)
	original.Set("c", true)

	copiedInner, _ := jsonx.GetObject(copied, "a")
	b, _ := jsonx.GetFloat(copiedInner, "b")
	assert.Equal(t, 1.0, b)
	assert.Equal(t, 1, jsonx.Len(copied))

	prompts := []*document.Prompt{{Name: "p1", Input: document.TextInput("Hi")}}
	encoded, ok := snapshot(context.Background(), prompts).([]any)
	require.True(t, ok)
	require.Len(t, encoded, 1)
	prompts[0].Name = "renamed"
	first, _ := encoded[0].(*jsonx.Object)
	name, _ := jsonx.GetString(first, "name")
	assert.Equal(t, "p1", name)

	failed, ok := snapshot(context.Background(), make(chan int)).(*jsonx.Object)
	require.True(t, ok)
	_, hasError := jsonx.GetString(failed, "error")
	assert.True(t, hasError)
}
