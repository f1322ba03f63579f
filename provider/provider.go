package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/itturia/config"
	anthropic_provider "github.com/mohammad-safakhou/itturia/provider/anthropic"
	gemini_provider "github.com/mohammad-safakhou/itturia/provider/gemini"
	ollama_provider "github.com/mohammad-safakhou/itturia/provider/ollama"
	openai_provider "github.com/mohammad-safakhou/itturia/provider/openai"
)

// Client represents different LLM backends
type Client string

const (
	OpenAI    Client = "openai"
	Anthropic Client = "anthropic"
	Gemini    Client = "gemini"
	Ollama    Client = "ollama"
)

var (
	ErrUnknownProvider = errors.New("unknown llm provider")
	ErrNoProviders     = errors.New("no llm provider enabled")
	ErrEmptyResponse   = errors.New("llm returned an empty response")
)

// LanguageModel is a text-in, text-out model backend.
type LanguageModel interface {
	Name() string
	Model() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// Observer receives one call per model invocation.
type Observer interface {
	ObserveLLM(provider, model string, elapsed time.Duration, promptTokens, completionTokens int, err error)
}

type Option func(*Registry)

func WithObserver(o Observer) Option { return func(r *Registry) { r.observer = o } }

func WithTokenCounter(tc *TokenCounter) Option { return func(r *Registry) { r.tokens = tc } }

func WithLogger(l *zap.Logger) Option { return func(r *Registry) { r.logger = l } }

// Registry holds the enabled backends, built once at start-up.
type Registry struct {
	models   map[string]LanguageModel
	def      string
	closers  []io.Closer
	observer Observer
	tokens   *TokenCounter
	logger   *zap.Logger
}

// NewRegistry instantiates every enabled provider in cfg.
func NewRegistry(ctx context.Context, cfg config.LLMConfig, opts ...Option) (*Registry, error) {
	r := newRegistry(opts...)
	for _, name := range cfg.EnabledNames() {
		p := cfg.Providers[name]
		lm, err := build(ctx, name, p)
		if err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("provider %s: %w", name, err)
		}
		if c, ok := lm.(io.Closer); ok {
			r.closers = append(r.closers, c)
		}
		r.add(lm)
	}
	if len(r.models) == 0 {
		return nil, ErrNoProviders
	}
	r.def = cfg.Default
	if _, ok := r.models[r.def]; !ok {
		r.def = r.Names()[0]
	}
	return r, nil
}

// NewStaticRegistry wraps already-built models; the first one is the default.
func NewStaticRegistry(models []LanguageModel, opts ...Option) *Registry {
	r := newRegistry(opts...)
	for _, lm := range models {
		r.add(lm)
	}
	if len(models) > 0 {
		r.def = models[0].Name()
	}
	return r
}

func newRegistry(opts ...Option) *Registry {
	r := &Registry{models: map[string]LanguageModel{}}
	for _, o := range opts {
		o(r)
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	return r
}

func (r *Registry) add(lm LanguageModel) {
	r.models[lm.Name()] = &instrumented{inner: lm, observer: r.observer, tokens: r.tokens, logger: r.logger.Named("llm")}
}

func build(ctx context.Context, name string, p config.LLMProvider) (LanguageModel, error) {
	switch Client(p.Type) {
	case OpenAI:
		return openai_provider.New(name, p)
	case Anthropic:
		return anthropic_provider.New(name, p)
	case Gemini:
		return gemini_provider.New(ctx, name, p)
	case Ollama:
		return ollama_provider.New(name, p)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, p.Type)
	}
}

// Get returns the named model; an empty name selects the default.
func (r *Registry) Get(name string) (LanguageModel, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = r.def
	}
	lm, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return lm, nil
}

// Names lists the registered providers in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.models))
	for n := range r.models {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Default() string { return r.def }

// Close releases clients holding connections.
func (r *Registry) Close() error {
	var errs []error
	for _, c := range r.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type instrumented struct {
	inner    LanguageModel
	observer Observer
	tokens   *TokenCounter
	logger   *zap.Logger
}

func (m *instrumented) Name() string  { return m.inner.Name() }
func (m *instrumented) Model() string { return m.inner.Model() }

func (m *instrumented) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	out, err := m.inner.Generate(ctx, prompt)
	if err == nil && strings.TrimSpace(out) == "" {
		err = ErrEmptyResponse
	}
	elapsed := time.Since(start)
	if m.observer != nil {
		m.observer.ObserveLLM(m.inner.Name(), m.inner.Model(), elapsed, m.tokens.Count(prompt), m.tokens.Count(out), err)
	}
	if err != nil {
		m.logger.Warn("generate failed", zap.String("provider", m.inner.Name()), zap.Duration("elapsed", elapsed), zap.Error(err))
		return "", err
	}
	m.logger.Debug("generate", zap.String("provider", m.inner.Name()), zap.Duration("elapsed", elapsed), zap.Int("chars", len(out)))
	return out, nil
}
