package ollama_provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mohammad-safakhou/itturia/config"
	"github.com/mohammad-safakhou/itturia/internal/helpers"
	"github.com/mohammad-safakhou/itturia/provider/message"
)

const defaultBaseURL = "http://localhost:11434"

type chatRequest struct {
	Model    string            `json:"model"`
	Messages []message.Message `json:"messages"`
	Stream   bool              `json:"stream"`
	Options  *options          `json:"options,omitempty"`
}

type options struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type chatResponse struct {
	Model   string          `json:"model"`
	Message message.Message `json:"message"`
	Done    bool            `json:"done"`
	Error   string          `json:"error,omitempty"`
}

type tagsResponse struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

// Client talks to a local Ollama server over its HTTP API.
type Client struct {
	name    string
	model   string
	baseURL string
	opts    *options
	http    *helpers.HTTPClient
}

func New(name string, cfg config.LLMProvider) (*Client, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("ollama: model not set")
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	var opts *options
	if cfg.Temperature > 0 || cfg.MaxTokens > 0 {
		opts = &options{Temperature: cfg.Temperature, NumPredict: cfg.MaxTokens}
	}
	return &Client{
		name:    name,
		model:   cfg.Model,
		baseURL: base,
		opts:    opts,
		http:    helpers.NewHTTPClient(cfg.Timeout, cfg.MaxRetries, 0),
	}, nil
}

func (c *Client) Name() string  { return c.name }
func (c *Client) Model() string { return c.model }

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.Chat(ctx, []message.Message{message.User(prompt)})
}

// Chat posts a non-streaming /api/chat request.
func (c *Client) Chat(ctx context.Context, msgs []message.Message) (string, error) {
	var resp chatResponse
	req := chatRequest{Model: c.model, Messages: msgs, Stream: false, Options: c.opts}
	if err := c.http.DoJSON(ctx, http.MethodPost, c.baseURL+"/api/chat", nil, req, &resp); err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("ollama chat: %s", resp.Error)
	}
	return resp.Message.Content, nil
}

// ListModels returns the models installed on the server at baseURL.
func ListModels(ctx context.Context, baseURL string) ([]string, error) {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	var tags tagsResponse
	if err := helpers.NewHTTPClient(0, 0, 0).DoJSON(ctx, http.MethodGet, base+"/api/tags", nil, nil, &tags); err != nil {
		return nil, fmt.Errorf("ollama tags: %w", err)
	}
	out := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		name := m.Model
		if name == "" {
			name = m.Name
		}
		out = append(out, name)
	}
	return out, nil
}
