package core

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// scriptedModel answers by prompt kind, consuming one scripted reply per call.
type scriptedModel struct {
	mu        sync.Mutex
	compose   []reply
	evaluate  []reply
	answer    []reply
	calls     map[string]int
	lastInput map[string]string
}

type reply struct {
	text string
	err  error
}

func ok(s string) reply { return reply{text: s} }

func fail(msg string) reply { return reply{err: errors.New(msg)} }

func (m *scriptedModel) Generate(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = map[string]int{}
		m.lastInput = map[string]string{}
	}
	kind, queue := "answer", &m.answer
	switch {
	case strings.HasPrefix(prompt, "Create a search query"):
		kind, queue = "compose", &m.compose
	case strings.HasPrefix(prompt, "Evaluate the search results"):
		kind, queue = "evaluate", &m.evaluate
	}
	m.calls[kind]++
	m.lastInput[kind] = prompt
	if len(*queue) == 0 {
		return "", errors.New("no scripted reply for " + kind)
	}
	r := (*queue)[0]
	*queue = (*queue)[1:]
	return r.text, r.err
}

func (m *scriptedModel) count(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[kind]
}

// scriptedSearcher returns one scripted result per call and records queries.
type scriptedSearcher struct {
	results [][]Hit
	errs    []error
	queries []string
	limits  []int
}

func (s *scriptedSearcher) Search(_ context.Context, query string, limit int) ([]Hit, error) {
	i := len(s.queries)
	s.queries = append(s.queries, query)
	s.limits = append(s.limits, limit)
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i < len(s.results) {
		return s.results[i], nil
	}
	return nil, nil
}

func (s *scriptedSearcher) Validate(context.Context) bool { return true }

type stepCollector struct {
	steps  []Step
	result *Result
}

func (c *stepCollector) EmitStep(s Step)     { c.steps = append(c.steps, s) }
func (c *stepCollector) EmitResult(r Result) { c.result = &r }
