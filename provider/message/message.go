// Package message holds the role/content pairs exchanged with language models.
package message

import (
	"errors"
	"fmt"
	"strings"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

var ErrEmptyContent = errors.New("message content is empty")

// Message is one turn of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// New validates role and content.
func New(role Role, content string) (Message, error) {
	switch role {
	case RoleSystem, RoleUser, RoleAssistant:
	default:
		return Message{}, fmt.Errorf("unknown role %q", role)
	}
	if strings.TrimSpace(content) == "" {
		return Message{}, ErrEmptyContent
	}
	return Message{Role: role, Content: content}, nil
}

func System(content string) Message    { return Message{Role: RoleSystem, Content: content} }
func User(content string) Message      { return Message{Role: RoleUser, Content: content} }
func Assistant(content string) Message { return Message{Role: RoleAssistant, Content: content} }

// SplitSystem separates system messages (joined by newlines) from the conversation turns.
func SplitSystem(msgs []Message) (string, []Message) {
	var system []string
	turns := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		turns = append(turns, m)
	}
	return strings.Join(system, "\n"), turns
}
