package openai_provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"

	"github.com/mohammad-safakhou/itturia/config"
	"github.com/mohammad-safakhou/itturia/provider/message"
)

const defaultModel = "gpt-4o-2024-11-20"

// Client talks to the OpenAI chat completions API.
type Client struct {
	name        string
	model       string
	temperature float64
	maxTokens   int64
	sdk         openai.Client
}

// New creates an OpenAI client from a provider entry.
func New(name string, cfg config.LLMProvider) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai: api key not set")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return &Client{
		name:        name,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   int64(cfg.MaxTokens),
		sdk:         openai.NewClient(opts...),
	}, nil
}

func (c *Client) Name() string  { return c.name }
func (c *Client) Model() string { return c.model }

// Generate sends prompt as a single user turn.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.Chat(ctx, []message.Message{message.User(prompt)})
}

// Chat sends a full conversation and returns the first choice.
func (c *Client) Chat(ctx context.Context, msgs []message.Message) (string, error) {
	converted := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case message.RoleSystem:
			converted = append(converted, openai.SystemMessage(m.Content))
		case message.RoleAssistant:
			converted = append(converted, openai.AssistantMessage(m.Content))
		default:
			converted = append(converted, openai.UserMessage(m.Content))
		}
	}
	params := openai.ChatCompletionNewParams{
		Messages: converted,
		Model:    openai.ChatModel(c.model),
	}
	if c.temperature > 0 {
		params.Temperature = param.NewOpt(c.temperature)
	}
	if c.maxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(c.maxTokens)
	}
	completion, err := c.sdk.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai chat: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("openai chat: no choices returned")
	}
	return completion.Choices[0].Message.Content, nil
}
