package parser

import (
	"context"
	"log/slog"

	"github.com/casualjim/quill/document"
	"github.com/casualjim/quill/notify"
	"github.com/casualjim/quill/pkg/jsonx"
	"github.com/casualjim/quill/pkg/slogx"
	"github.com/casualjim/quill/types"
	"github.com/google/uuid"
)

// Base carries what every parser shares: its identity, the notification hub
// and the streaming decision. Providers embed it.
type Base struct {
	id   string
	kind Kind
	hub  *notify.Hub
}

// NewBase creates the shared part of a parser.
func NewBase(id string, kind Kind) Base {
	return Base{id: id, kind: kind}
}

func (b *Base) ID() string { return b.id }

func (b *Base) Kind() Kind { return b.kind }

// SetHub attaches the hub lifecycle events are sent to. A nil hub disables
// notifications.
func (b *Base) SetHub(hub *notify.Hub) { b.hub = hub }

// Hub returns the attached hub, if any.
func (b *Base) Hub() *notify.Hub { return b.hub }

// Span pairs the start and end notifications of one operation.
type Span struct {
	hub    *notify.Hub
	runID  uuid.UUID
	parser string
}

// Begin sends the start event and returns the span to end the operation with.
func (b *Base) Begin(ctx context.Context, event string, data any) Span {
	s := Span{hub: b.hub, runID: notify.NewRunID(), parser: b.id}
	s.notify(ctx, event, data)
	return s
}

// End sends the end event of the span.
func (s Span) End(ctx context.Context, event string, data any) {
	s.notify(ctx, event, data)
}

// RunID returns the id shared by the start and end events.
func (s Span) RunID() uuid.UUID { return s.runID }

func (s Span) notify(ctx context.Context, event string, data any) {
	if s.hub == nil {
		return
	}
	slog.DebugContext(ctx, "notify", slog.String("event", event), slogx.Parser(s.parser))
	s.hub.Notify(ctx, notify.NewEvent(event, s.runID, snapshot(ctx, data)))
}

// snapshot detaches data from the caller's objects. Listeners may still be
// reading it after Notify returned and the run went on changing the original.
func snapshot(ctx context.Context, data any) any {
	value, err := jsonx.Normalize(data)
	if err != nil {
		slog.WarnContext(ctx, "event data is not encodable", slogx.Error(err))
		return jsonx.FromPairs("error", err.Error())
	}
	return jsonx.Clone(value)
}

// ShouldStream decides whether a run streams: an explicit option wins, then
// the request's boolean "stream" setting, then the kind's default.
func (b *Base) ShouldStream(opts *RunOptions, request *jsonx.Object) bool {
	if opts != nil && opts.Stream != nil {
		return *opts.Stream
	}
	if stream, ok := jsonx.GetBool(request, "stream"); ok {
		return stream
	}
	return b.kind.StreamsByDefault()
}

// OutputText returns the display text of output, or of the latest output of
// prompt when output is nil.
func (b *Base) OutputText(doc *document.Document, prompt *document.Prompt, output document.Output) string {
	if doc == nil {
		return document.OutputText(output)
	}
	return doc.OutputText(prompt, output)
}

// Callback returns the stream callback of opts, or nil.
func (opts *RunOptions) Callback() StreamCallback {
	if opts == nil {
		return nil
	}
	return opts.StreamCallback
}

// Dispatcher sends a request to the provider and converts the response into
// outputs, calling callback for every streamed fragment when stream is set.
type Dispatcher func(ctx context.Context, request *jsonx.Object, stream bool, callback StreamCallback) ([]document.Output, error)

// Execute is the run sequence every parser shares: deserialize prompt with
// self, decide whether to stream, dispatch, then replace the outputs of
// prompt. On failure the outputs of prompt are left untouched.
func (b *Base) Execute(ctx context.Context, self ModelParser, prompt *document.Prompt, doc *document.Document, opts *RunOptions, params types.Params, dispatch Dispatcher) ([]document.Output, error) {
	span := b.Begin(ctx, notify.RunStart, jsonx.FromPairs("prompt", prompt.Name, "params", params))

	request, err := self.Deserialize(ctx, prompt, doc, params)
	if err != nil {
		span.End(ctx, notify.RunEnd, jsonx.FromPairs("prompt", prompt.Name, "error", err.Error()))
		return nil, err
	}

	stream := b.ShouldStream(opts, request)
	request.Set("stream", stream)

	outputs, err := dispatch(ctx, request, stream, opts.Callback())
	if err != nil {
		slog.ErrorContext(ctx, "run failed", slogx.Prompt(prompt.Name), slogx.Parser(b.id), slogx.Error(err))
		span.End(ctx, notify.RunEnd, jsonx.FromPairs("prompt", prompt.Name, "error", err.Error()))
		return nil, err
	}
	if outputs == nil {
		outputs = []document.Output{}
	}

	prompt.Outputs = outputs
	span.End(ctx, notify.RunEnd, jsonx.FromPairs("prompt", prompt.Name, "outputs", outputs))
	return outputs, nil
}
