package provider

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter estimates prompt sizes with a tiktoken encoding. When the
// encoding cannot be loaded it falls back to one token per four runes.
type TokenCounter struct {
	name string
	once sync.Once
	enc  *tiktoken.Tiktoken
}

func NewTokenCounter(name string) *TokenCounter {
	if name == "" {
		name = "cl100k_base"
	}
	return &TokenCounter{name: name}
}

func (t *TokenCounter) load() {
	enc, err := tiktoken.EncodingForModel(t.name)
	if err != nil {
		enc, err = tiktoken.GetEncoding(t.name)
	}
	if err == nil {
		t.enc = enc
	}
}

// Count is safe on a nil receiver.
func (t *TokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	if t != nil {
		t.once.Do(t.load)
		if t.enc != nil {
			return len(t.enc.Encode(text, nil, nil))
		}
	}
	return (utf8.RuneCountInString(text) + 3) / 4
}
