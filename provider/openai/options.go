package openai

import (
	"github.com/casualjim/quill/internal/transport"
	"github.com/casualjim/quill/templating"
	"github.com/fogfish/opts"
	"github.com/openai/openai-go/option"
)

const (
	ChatParserID       = "openai.chat"
	CompletionParserID = "openai.completion"

	// APIKeyEnv is read when no api key option is given.
	APIKeyEnv = "OPENAI_API_KEY"
)

// Config is shared by both parsers.
type Config struct {
	id             string
	apiKey         string
	baseURL        string
	resolver       templating.Resolver
	requestOptions []option.RequestOption
}

var (
	// WithID overrides the parser id used in registries.
	WithID      = opts.ForName[Config, string]("id")
	WithAPIKey  = opts.ForName[Config, string]("apiKey")
	WithBaseURL = opts.ForName[Config, string]("baseURL")
)

// WithResolver replaces the handlebars template resolver.
func WithResolver(resolver templating.Resolver) opts.Option[Config] {
	return opts.Type[Config](func(c *Config) error {
		c.resolver = resolver
		return nil
	})
}

// WithRequestOptions passes options through to the openai-go client.
func WithRequestOptions(options ...option.RequestOption) opts.Option[Config] {
	return opts.Type[Config](func(c *Config) error {
		c.requestOptions = append(c.requestOptions, options...)
		return nil
	})
}

func newConfig(id string, options []opts.Option[Config]) (*Config, error) {
	c := &Config{id: id}
	if err := opts.Apply(c, options); err != nil {
		return nil, err
	}
	if c.resolver == nil {
		h, err := templating.NewHandlebars()
		if err != nil {
			return nil, err
		}
		c.resolver = h
	}
	return c, nil
}

func (c *Config) client() *transport.Client {
	return transport.New(transport.Config{
		Component:   c.id,
		APIKey:      c.apiKey,
		APIKeyEnv:   APIKeyEnv,
		KeyRequired: true,
		BaseURL:     c.baseURL,
		Options:     c.requestOptions,
	})
}
