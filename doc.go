/*
Package quill runs portable prompt documents against interchangeable
inference providers.

A document is a named, ordered list of prompts. Each prompt has an input (a
template or a structured chat message), a model reference and the outputs of
its latest run. Settings are stored once per model on the document and each
prompt only records what it overrides.

# Basic Usage

	chat, err := openai.NewChatParser()
	if err != nil {
		return err
	}

	doc := document.New("assistant")
	doc.SetGlobalSettings("gpt-4o-mini", jsonx.FromPairs(
		"system_prompt", "You are a terse assistant.",
		"temperature", 0.2,
	))

	rt, err := quill.New(doc, quill.WithParsers(chat, "gpt-4o-mini"))
	if err != nil {
		return err
	}

	if _, err := rt.Serialize(ctx, "gpt-4o-mini", "greet", jsonx.FromPairs(
		"messages", []any{jsonx.FromPairs("role", "user", "content", "Hi {{name}}")},
	), nil); err != nil {
		return err
	}

	text, err := rt.RunText(ctx, "greet", types.Params{"name": "Ada"}, nil)

# Architecture

  - document: the data model and its JSON form
  - settings: global settings versus per-prompt overrides
  - templating: {{var}} resolution against document, prompt and call parameters
  - history: the chat messages a prompt is sent with
  - stream: folding streamed fragments per choice
  - parser: the provider contract, the registry and shared run plumbing
  - provider/openai, provider/huggingface: the providers
  - notify: lifecycle events for logging, metrics and NATS
*/
package quill
