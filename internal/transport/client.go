// Package transport posts provider requests through the openai-go HTTP
// client and decodes plain JSON and server-sent event responses.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/casualjim/quill/errdefs"
	"github.com/casualjim/quill/pkg/jsonx"
	"github.com/casualjim/quill/pkg/slogx"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
)

// Config describes how to build a client.
type Config struct {
	// Component names the client in configuration errors.
	Component string
	APIKey    string
	// APIKeyEnv is consulted when APIKey is empty.
	APIKeyEnv string
	// KeyRequired makes a missing key a configuration error. Without it
	// requests are sent unauthenticated.
	KeyRequired bool
	BaseURL     string
	Options     []option.RequestOption
}

// Client is built on first use and shared by every call afterwards.
type Client struct {
	cfg Config

	once   sync.Once
	client *openai.Client
	err    error
}

// New creates a lazily initialized client.
func New(cfg Config) *Client {
	return &Client{cfg: cfg}
}

// Get returns the underlying client, building it on the first call. A
// missing required key is a *errdefs.ConfigurationError.
func (c *Client) Get() (*openai.Client, error) {
	c.once.Do(func() {
		c.client, c.err = c.build()
	})
	return c.client, c.err
}

func (c *Client) build() (*openai.Client, error) {
	key := c.cfg.APIKey
	if key == "" && c.cfg.APIKeyEnv != "" {
		key = os.Getenv(c.cfg.APIKeyEnv)
	}

	var opts []option.RequestOption
	switch {
	case key != "":
		opts = append(opts, option.WithAPIKey(key))
	case c.cfg.KeyRequired:
		return nil, errdefs.Configuration(c.cfg.Component, fmt.Errorf("%w: set %s or pass an api key", errdefs.ErrMissingCredential, c.cfg.APIKeyEnv))
	default:
		opts = append(opts, option.WithHeaderDel("Authorization"))
	}
	if c.cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(c.cfg.BaseURL))
	}
	opts = append(opts, c.cfg.Options...)
	return openai.NewClient(opts...), nil
}

func (c *Client) post(ctx context.Context, path string, request any) (*http.Response, error) {
	client, err := c.Get()
	if err != nil {
		return nil, err
	}
	body, err := jsonx.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	var res *http.Response
	if err := client.Post(ctx, path, json.RawMessage(body), &res); err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	if res == nil || res.Body == nil {
		return nil, errdefs.Protocol(c.cfg.Component, fmt.Errorf("%w: empty response from %s", errdefs.ErrUnexpectedSchema, path))
	}
	return res, nil
}

// Do posts request to path and decodes the JSON response.
func (c *Client) Do(ctx context.Context, path string, request any) (any, error) {
	res, err := c.post(ctx, path, request)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	value, err := jsonx.Parse(body)
	if err != nil {
		return nil, errdefs.Protocol(c.cfg.Component, fmt.Errorf("%w: %w", errdefs.ErrUnexpectedSchema, err))
	}
	return value, nil
}

// Stream posts request to path and calls fn with the data of every event,
// in arrival order, until the stream ends or fn fails.
func (c *Client) Stream(ctx context.Context, path string, request any, fn func(data []byte) error) error {
	res, err := c.post(ctx, path, request)
	if err != nil {
		return err
	}

	stream := ssestream.NewStream[json.RawMessage](ssestream.NewDecoder(res), nil)
	defer func() {
		if err := stream.Close(); err != nil {
			slog.DebugContext(ctx, "failed to close stream", slogx.Error(err))
		}
	}()

	for stream.Next() {
		if err := fn(stream.Current()); err != nil {
			return err
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("stream from %s failed: %w", path, err)
	}
	return ctx.Err()
}
