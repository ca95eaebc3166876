package document

import (
	"errors"
	"fmt"

	"github.com/casualjim/quill/pkg/jsonx"
	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Prompt is one named turn within a document.
type Prompt struct {
	Name     string          `json:"name"`
	Input    Input           `json:"input"`
	Metadata *PromptMetadata `json:"metadata,omitempty"`
	Outputs  []Output        `json:"outputs,omitempty"`
}

// PromptMetadata binds a prompt to a model and carries its parameters.
type PromptMetadata struct {
	Model *ModelRef `json:"model,omitempty"`
	// Parameters are template variables scoped to this prompt.
	Parameters *jsonx.Object `json:"parameters,omitempty"`
	// RememberChatContext controls whether conversational providers replay
	// earlier prompts as history. Absent means true.
	RememberChatContext *bool    `json:"remember_chat_context,omitempty"`
	Tags                []string `json:"tags,omitempty"`
}

// RememberChatContext reports whether history should be replayed for p.
func (p *Prompt) RememberChatContext() bool {
	if p.Metadata == nil || p.Metadata.RememberChatContext == nil {
		return true
	}
	return *p.Metadata.RememberChatContext
}

// Parameters returns the prompt-scoped template variables, or nil.
func (p *Prompt) Parameters() *jsonx.Object {
	if p.Metadata == nil {
		return nil
	}
	return p.Metadata.Parameters
}

// UnmarshalJSON decodes a prompt, including its tagged outputs.
func (p *Prompt) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}
	root := gjson.ParseBytes(data)

	name := root.Get("name")
	if !name.Exists() || name.String() == "" {
		return errors.New("missing required field 'name'")
	}
	*p = Prompt{Name: name.String()}

	input := root.Get("input")
	if !input.Exists() {
		return errors.New("missing required field 'input'")
	}
	if err := p.Input.UnmarshalJSON([]byte(input.Raw)); err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}

	if md := root.Get("metadata"); md.IsObject() {
		p.Metadata = &PromptMetadata{}
		if err := p.Metadata.UnmarshalJSON([]byte(md.Raw)); err != nil {
			return fmt.Errorf("invalid metadata: %w", err)
		}
	}

	if outputs := root.Get("outputs"); outputs.IsArray() {
		var oerr error
		outputs.ForEach(func(_, value gjson.Result) bool {
			out, err := UnmarshalOutput([]byte(value.Raw))
			if err != nil {
				oerr = fmt.Errorf("invalid output at %d: %w", len(p.Outputs), err)
				return false
			}
			p.Outputs = append(p.Outputs, out)
			return true
		})
		if oerr != nil {
			return oerr
		}
	}
	return nil
}

// UnmarshalJSON decodes prompt metadata.
func (m *PromptMetadata) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}
	root := gjson.ParseBytes(data)
	*m = PromptMetadata{}

	if model := root.Get("model"); model.Exists() && model.Type != gjson.Null {
		m.Model = &ModelRef{}
		if err := m.Model.UnmarshalJSON([]byte(model.Raw)); err != nil {
			return fmt.Errorf("invalid model: %w", err)
		}
	}
	if params := root.Get("parameters"); params.IsObject() {
		m.Parameters = jsonx.FromResult(params).(*jsonx.Object)
	}
	if rcc := root.Get("remember_chat_context"); rcc.IsBool() {
		v := rcc.Bool()
		m.RememberChatContext = &v
	}
	root.Get("tags").ForEach(func(_, value gjson.Result) bool {
		m.Tags = append(m.Tags, value.String())
		return true
	})
	return nil
}

// ModelRef is either a bare model name, which uses the global settings
// verbatim, or a name with settings layered on top of the global ones.
type ModelRef struct {
	Name     string
	Settings *jsonx.Object
	_        struct{} // require keyed usage
}

// ModelName creates a bare model reference.
func ModelName(name string) *ModelRef {
	return &ModelRef{Name: name}
}

// ModelWithSettings creates a model reference with an override block.
func ModelWithSettings(name string, s *jsonx.Object) *ModelRef {
	return &ModelRef{Name: name, Settings: s}
}

// MarshalJSON encodes a bare reference as a string and an overriding
// reference as {"name":..., "settings":...}.
func (m ModelRef) MarshalJSON() ([]byte, error) {
	pruned, _ := jsonx.Prune(m.Settings).(*jsonx.Object)
	if jsonx.Len(pruned) == 0 {
		return json.Marshal(m.Name)
	}
	result, err := sjson.SetBytes([]byte(`{}`), "name", m.Name)
	if err != nil {
		return nil, err
	}
	sb, err := jsonx.Marshal(pruned)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal settings: %w", err)
	}
	return sjson.SetRawBytes(result, "settings", sb)
}

// UnmarshalJSON accepts both the bare-name and the object form.
func (m *ModelRef) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}
	jv := gjson.ParseBytes(data)
	switch {
	case jv.Type == gjson.String:
		*m = ModelRef{Name: jv.String()}
		return nil
	case jv.IsObject():
		name := jv.Get("name")
		if !name.Exists() || name.Type != gjson.String {
			return errors.New("missing required field 'name'")
		}
		*m = ModelRef{Name: name.String()}
		if s := jv.Get("settings"); s.IsObject() {
			m.Settings = jsonx.FromResult(s).(*jsonx.Object)
		}
		return nil
	default:
		return fmt.Errorf("model must be a string or an object, got %s", jv.Type)
	}
}

// Input is a prompt input: plain template text, or a structured object such
// as a role-qualified chat message ({"role":"tool", "content":...}) or a
// {"data":...} payload. Exactly one of Text and Data is meaningful; Data wins
// when both are set.
type Input struct {
	Text string
	Data *jsonx.Object
	_    struct{} // require keyed usage
}

// TextInput creates a plain text input.
func TextInput(text string) Input {
	return Input{Text: text}
}

// ObjectInput creates a structured input.
func ObjectInput(data *jsonx.Object) Input {
	return Input{Data: data}
}

// IsStructured reports whether the input is an object.
func (i Input) IsStructured() bool {
	return i.Data != nil
}

// Role returns the chat role a structured input declares, if any.
func (i Input) Role() string {
	role, _ := jsonx.GetString(i.Data, "role")
	return role
}

// Template returns the text of the input that is subject to template
// resolution: the plain text, or the string "content" or "data" field of a
// structured input.
func (i Input) Template() string {
	if i.Data == nil {
		return i.Text
	}
	if s, ok := jsonx.GetString(i.Data, "content"); ok {
		return s
	}
	if s, ok := jsonx.GetString(i.Data, "data"); ok {
		return s
	}
	return ""
}

// MarshalJSON encodes the input as a string or an object.
func (i Input) MarshalJSON() ([]byte, error) {
	if i.Data != nil {
		return jsonx.Marshal(i.Data)
	}
	return json.Marshal(i.Text)
}

// UnmarshalJSON accepts a string or an object.
func (i *Input) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}
	jv := gjson.ParseBytes(data)
	switch {
	case jv.Type == gjson.String:
		*i = Input{Text: jv.String()}
	case jv.IsObject():
		*i = Input{Data: jsonx.FromResult(jv).(*jsonx.Object)}
	default:
		return fmt.Errorf("input must be a string or an object, got %s", jv.Type)
	}
	return nil
}
