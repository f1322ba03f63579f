package gemini_provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/mohammad-safakhou/itturia/config"
	"github.com/mohammad-safakhou/itturia/provider/message"
)

const defaultModel = "gemini-1.5-flash"

// Client talks to the Gemini generateContent API.
type Client struct {
	name        string
	model       string
	temperature float32
	maxTokens   int32
	sdk         *genai.Client
}

func New(ctx context.Context, name string, cfg config.LLMProvider) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gemini: api key not set")
	}
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.BaseURL))
	}
	sdk, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	temp := float32(cfg.Temperature)
	if temp <= 0 {
		temp = 0.7
	}
	maxTokens := int32(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &Client{name: name, model: model, temperature: temp, maxTokens: maxTokens, sdk: sdk}, nil
}

func (c *Client) Name() string  { return c.name }
func (c *Client) Model() string { return c.model }

// Close releases the underlying connection.
func (c *Client) Close() error { return c.sdk.Close() }

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.Chat(ctx, []message.Message{message.User(prompt)})
}

// Chat replays every turn but the last as history and sends the last one.
func (c *Client) Chat(ctx context.Context, msgs []message.Message) (string, error) {
	system, turns := message.SplitSystem(msgs)
	if len(turns) == 0 {
		return "", errors.New("gemini chat: no user turn")
	}
	model := c.sdk.GenerativeModel(c.model)
	model.SetTemperature(c.temperature)
	model.SetTopP(0.8)
	model.SetTopK(40)
	model.SetMaxOutputTokens(c.maxTokens)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	session := model.StartChat()
	session.History = toHistory(turns[:len(turns)-1])
	resp, err := session.SendMessage(ctx, genai.Text(turns[len(turns)-1].Content))
	if err != nil {
		return "", fmt.Errorf("gemini chat: %w", err)
	}
	text := responseText(resp)
	if text == "" {
		return "", errors.New("gemini chat: no response generated")
	}
	return text, nil
}

func toHistory(turns []message.Message) []*genai.Content {
	history := make([]*genai.Content, 0, len(turns))
	for _, m := range turns {
		role := "user"
		if m.Role == message.RoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}
	return history
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return sb.String()
}
