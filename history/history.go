// Package history rebuilds the linear message sequence a conversational
// provider expects from a document's ordered prompt list.
package history

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/casualjim/quill/document"
	"github.com/casualjim/quill/pkg/jsonx"
	"github.com/casualjim/quill/templating"
	"github.com/casualjim/quill/types"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"

	// SystemPromptKey is the settings key holding the system instruction.
	SystemPromptKey = "system_prompt"
)

// Build returns the messages to send for target: the resolved system
// instruction, then every prompt up to and including target as user (or
// role-qualified) turns, each followed by the assistant turn recorded on it.
//
// When target does not remember chat context only the system instruction and
// target itself are emitted. The outputs of target are never replayed, and
// prompts declared after target are never visited.
func Build(ctx context.Context, target *document.Prompt, doc *document.Document, resolver templating.Resolver, params types.Params) ([]*jsonx.Object, error) {
	if doc.PromptIndex(target.Name) < 0 {
		return nil, fmt.Errorf("%w: %q", document.ErrPromptNotFound, target.Name)
	}
	if resolver == nil {
		resolver = templating.Verbatim
	}

	effective, err := doc.ResolvedSettings(target)
	if err != nil {
		return nil, err
	}

	var messages []*jsonx.Object
	if system, ok := jsonx.GetString(effective, SystemPromptKey); ok && system != "" {
		content, err := resolver.Resolve(system, target, doc, params)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve system prompt: %w", err)
		}
		messages = append(messages, jsonx.FromPairs("role", RoleSystem, "content", content))
	}

	if !target.RememberChatContext() {
		msg, err := UserMessage(target, doc, resolver, params)
		if err != nil {
			return nil, err
		}
		return append(messages, msg), nil
	}

	for _, p := range doc.Prompts {
		msg, err := UserMessage(p, doc, resolver, params)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)

		if p.Name == target.Name {
			break
		}
		if assistant, ok := AssistantMessage(doc.LatestOutput(p)); ok {
			messages = append(messages, assistant)
		}
	}

	slog.DebugContext(ctx, "built chat history", slog.String("prompt", target.Name), slog.Int("messages", len(messages)))
	return messages, nil
}

// UserMessage builds the turn for the input of p. A plain input becomes a
// user message. A role-qualified input is passed through with its content
// resolved.
func UserMessage(p *document.Prompt, doc *document.Document, resolver templating.Resolver, params types.Params) (*jsonx.Object, error) {
	content, err := resolver.Resolve(p.Input.Template(), p, doc, params)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve input of prompt %q: %w", p.Name, err)
	}

	if !p.Input.IsStructured() {
		return jsonx.FromPairs("role", RoleUser, "content", content), nil
	}

	if p.Input.Role() != "" {
		msg := jsonx.CloneObject(p.Input.Data)
		if _, ok := jsonx.GetString(msg, "content"); ok {
			msg.Set("content", content)
		}
		return msg, nil
	}

	if _, ok := jsonx.GetString(p.Input.Data, "data"); !ok {
		if data, ok := jsonx.Get(p.Input.Data, "data"); ok {
			b, err := jsonx.Marshal(data)
			if err != nil {
				return nil, fmt.Errorf("failed to encode input data of prompt %q: %w", p.Name, err)
			}
			content = string(b)
		}
	}
	return jsonx.FromPairs("role", RoleUser, "content", content), nil
}

// AssistantMessage converts a recorded output into an assistant turn. It
// reports false for error outputs, for outputs recorded under another role
// and for payloads that have no chat representation.
func AssistantMessage(out document.Output) (*jsonx.Object, bool) {
	r, ok := out.(*document.ExecuteResult)
	if !ok || r == nil {
		return nil, false
	}
	if role := r.Role(); role != "" && role != RoleAssistant {
		return nil, false
	}

	switch d := r.Data.(type) {
	case document.Text:
		return jsonx.FromPairs("role", RoleAssistant, "content", string(d)), true
	case document.Value:
		switch d.Kind {
		case document.KindToolCalls:
			return jsonx.FromPairs("role", RoleAssistant, "content", nil, "tool_calls", jsonx.Clone(d.Value)), true
		case document.KindFunctionCall:
			return jsonx.FromPairs("role", RoleAssistant, "content", nil, "function_call", jsonx.Clone(d.Value)), true
		}
		if s, ok := d.Value.(string); ok {
			return jsonx.FromPairs("role", RoleAssistant, "content", s), true
		}
	case document.LegacyMessage:
		if d.Message == nil {
			return nil, false
		}
		return jsonx.CloneObject(d.Message), true
	}
	return nil, false
}
