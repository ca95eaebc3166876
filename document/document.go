package document

import (
	"errors"
	"fmt"
	"slices"

	"github.com/casualjim/quill/errdefs"
	"github.com/casualjim/quill/pkg/jsonx"
	"github.com/casualjim/quill/settings"
	"github.com/tidwall/gjson"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// SchemaVersion is written into new documents.
const SchemaVersion = "latest"

var (
	ErrPromptNotFound  = errors.New("prompt not found")
	ErrDuplicatePrompt = errors.New("duplicate prompt name")
)

// ModelSettings maps a model name to its global default settings.
type ModelSettings = orderedmap.OrderedMap[string, *jsonx.Object]

// Document is the portable prompt-chain object.
type Document struct {
	Name          string    `json:"name"`
	SchemaVersion string    `json:"schema_version,omitempty"`
	Description   string    `json:"description,omitempty"`
	Metadata      Metadata  `json:"metadata"`
	Prompts       []*Prompt `json:"prompts"`
}

// Metadata holds the document-wide defaults.
type Metadata struct {
	// Parameters are template variables visible to every prompt.
	Parameters *jsonx.Object `json:"parameters,omitempty"`
	// Models holds the global settings per model name.
	Models *ModelSettings `json:"models,omitempty"`
	// DefaultModel is used by prompts that do not name a model.
	DefaultModel string `json:"default_model,omitempty"`
	// ModelParsers binds a model name to a parser id when they differ.
	ModelParsers map[string]string `json:"model_parsers,omitempty"`
}

// New creates an empty document.
func New(name string) *Document {
	return &Document{
		Name:          name,
		SchemaVersion: SchemaVersion,
		Prompts:       []*Prompt{},
	}
}

// Prompt returns the prompt with the given name.
func (d *Document) Prompt(name string) (*Prompt, bool) {
	for _, p := range d.Prompts {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// PromptIndex returns the position of the named prompt, or -1.
func (d *Document) PromptIndex(name string) int {
	return slices.IndexFunc(d.Prompts, func(p *Prompt) bool { return p.Name == name })
}

// AddPrompt appends p. Prompt names must be unique within a document.
func (d *Document) AddPrompt(p *Prompt) error {
	if p == nil {
		return errors.New("prompt is required")
	}
	if p.Name == "" {
		return errors.New("prompt name is required")
	}
	if _, exists := d.Prompt(p.Name); exists {
		return fmt.Errorf("%w: %q", ErrDuplicatePrompt, p.Name)
	}
	d.Prompts = append(d.Prompts, p)
	return nil
}

// DeletePrompt removes the named prompt from the document.
func (d *Document) DeletePrompt(name string) error {
	idx := d.PromptIndex(name)
	if idx < 0 {
		return fmt.Errorf("%w: %q", ErrPromptNotFound, name)
	}
	d.Prompts = slices.Delete(d.Prompts, idx, idx+1)
	return nil
}

// GlobalSettings returns the document-level settings for model, or nil.
func (d *Document) GlobalSettings(model string) *jsonx.Object {
	if d.Metadata.Models == nil {
		return nil
	}
	s, _ := d.Metadata.Models.Get(model)
	return s
}

// SetGlobalSettings replaces the document-level settings for model.
func (d *Document) SetGlobalSettings(model string, s *jsonx.Object) {
	if d.Metadata.Models == nil {
		d.Metadata.Models = orderedmap.New[string, *jsonx.Object]()
	}
	d.Metadata.Models.Set(model, s)
}

// ModelName resolves the model a prompt runs against: its own model
// reference, or the document's default model.
func (d *Document) ModelName(p *Prompt) (string, error) {
	if p != nil && p.Metadata != nil && p.Metadata.Model != nil {
		if p.Metadata.Model.Name == "" {
			return "", errdefs.Configuration("prompt "+p.Name, fmt.Errorf("%w: empty model name", errdefs.ErrInvalidModelRef))
		}
		return p.Metadata.Model.Name, nil
	}
	if d.Metadata.DefaultModel != "" {
		return d.Metadata.DefaultModel, nil
	}
	name := ""
	if p != nil {
		name = p.Name
	}
	return "", errdefs.Configuration("prompt "+name, fmt.Errorf("%w: no model and no default model", errdefs.ErrInvalidModelRef))
}

// ResolvedSettings returns the effective settings for p: the global settings
// of its model with the prompt's own overrides layered on top.
func (d *Document) ResolvedSettings(p *Prompt) (*jsonx.Object, error) {
	model, err := d.ModelName(p)
	if err != nil {
		return nil, err
	}
	var override *jsonx.Object
	if p.Metadata != nil && p.Metadata.Model != nil {
		override = p.Metadata.Model.Settings
	}
	return settings.Merge(d.GlobalSettings(model), override), nil
}

// ModelRefFor builds the model reference a prompt needs to end up with
// requested as its effective settings: a bare name when the global settings
// already match, or the name plus the minimal override block.
func (d *Document) ModelRefFor(model string, requested *jsonx.Object) *ModelRef {
	override := settings.Diff(d.GlobalSettings(model), requested)
	if settings.IsEmpty(override) {
		return ModelName(model)
	}
	return &ModelRef{Name: model, Settings: override}
}

// ParserFor returns the parser id bound to model, falling back to the model name.
func (d *Document) ParserFor(model string) string {
	if id, ok := d.Metadata.ModelParsers[model]; ok && id != "" {
		return id
	}
	return model
}

// LatestOutput returns the most recent output recorded on p, or nil.
func (d *Document) LatestOutput(p *Prompt) Output {
	if p == nil || len(p.Outputs) == 0 {
		return nil
	}
	return p.Outputs[len(p.Outputs)-1]
}

// UnmarshalJSON decodes a document, keeping the key order of every settings
// and parameters block.
func (d *Document) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return errors.New("document must be a json object")
	}

	*d = Document{
		Name:          root.Get("name").String(),
		SchemaVersion: root.Get("schema_version").String(),
		Description:   root.Get("description").String(),
		Prompts:       []*Prompt{},
	}

	md := root.Get("metadata")
	if params := md.Get("parameters"); params.IsObject() {
		d.Metadata.Parameters = jsonx.FromResult(params).(*jsonx.Object)
	}
	if models := md.Get("models"); models.Exists() {
		if !models.IsObject() {
			return errors.New("metadata.models must be an object")
		}
		var merr error
		models.ForEach(func(key, value gjson.Result) bool {
			switch {
			case value.IsObject():
				d.SetGlobalSettings(key.String(), jsonx.FromResult(value).(*jsonx.Object))
			case value.Type == gjson.Null:
				d.SetGlobalSettings(key.String(), jsonx.NewObject())
			default:
				merr = fmt.Errorf("settings for model %q must be an object", key.String())
				return false
			}
			return true
		})
		if merr != nil {
			return merr
		}
	}
	d.Metadata.DefaultModel = md.Get("default_model").String()
	if parsers := md.Get("model_parsers"); parsers.IsObject() {
		d.Metadata.ModelParsers = make(map[string]string)
		parsers.ForEach(func(key, value gjson.Result) bool {
			d.Metadata.ModelParsers[key.String()] = value.String()
			return true
		})
	}

	var perr error
	root.Get("prompts").ForEach(func(_, value gjson.Result) bool {
		var p Prompt
		if err := p.UnmarshalJSON([]byte(value.Raw)); err != nil {
			perr = fmt.Errorf("invalid prompt at %d: %w", len(d.Prompts), err)
			return false
		}
		if err := d.AddPrompt(&p); err != nil {
			perr = err
			return false
		}
		return true
	})
	return perr
}
