package message

import (
	"errors"
	"testing"
)

func TestNewValidates(t *testing.T) {
	if _, err := New("tool", "x"); err == nil {
		t.Fatalf("expected error for unknown role")
	}
	if _, err := New(RoleUser, "  "); !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("expected ErrEmptyContent, got %v", err)
	}
	m, err := New(RoleAssistant, "שלום")
	if err != nil || m.Role != RoleAssistant || m.Content != "שלום" {
		t.Fatalf("unexpected message %+v err=%v", m, err)
	}
}

func TestSplitSystem(t *testing.T) {
	sys, turns := SplitSystem([]Message{System("a"), User("q"), System("b"), Assistant("r")})
	if sys != "a\nb" {
		t.Fatalf("unexpected system prompt %q", sys)
	}
	if len(turns) != 2 || turns[0].Role != RoleUser || turns[1].Role != RoleAssistant {
		t.Fatalf("unexpected turns %+v", turns)
	}
}
