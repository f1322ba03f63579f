package anthropic_provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"

	"github.com/mohammad-safakhou/itturia/config"
	"github.com/mohammad-safakhou/itturia/provider/message"
)

const defaultModel = "claude-3-5-sonnet-20241022"

// Client talks to the Anthropic messages API.
type Client struct {
	name        string
	model       string
	temperature float64
	maxTokens   int64
	sdk         anthropic.Client
}

func New(name string, cfg config.LLMProvider) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("anthropic: api key not set")
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
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Client{
		name:        name,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
		sdk:         anthropic.NewClient(opts...),
	}, nil
}

func (c *Client) Name() string  { return c.name }
func (c *Client) Model() string { return c.model }

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.Chat(ctx, []message.Message{message.User(prompt)})
}

// Chat joins system messages into the system block and sends the remaining turns.
func (c *Client) Chat(ctx context.Context, msgs []message.Message) (string, error) {
	system, turns := message.SplitSystem(msgs)
	converted := make([]anthropic.MessageParam, 0, len(turns))
	for _, m := range turns {
		if m.Role == message.RoleAssistant {
			converted = append(converted, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
			continue
		}
		converted = append(converted, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		Messages:  converted,
		MaxTokens: c.maxTokens,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if c.temperature > 0 {
		params.Temperature = param.NewOpt(c.temperature)
	}
	resp, err := c.sdk.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}
	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("anthropic messages: no text content")
	}
	return sb.String(), nil
}
