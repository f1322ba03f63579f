package server

import (
	"time"

	"github.com/mohammad-safakhou/itturia/internal/agent/core"
)

// HTTPError is a generic error envelope returned by the server.
type HTTPError struct {
	Error string `json:"error"`
}

// SearchRequest is the question payload. Zero or negative limits fall back to
// the configured loop defaults.
type SearchRequest struct {
	Query         string `json:"query" validate:"required"`
	NumResults    int    `json:"numResults" validate:"gte=0,lte=100"`
	MaxIterations int    `json:"maxIterations" validate:"gte=0,lte=10"`
	Provider      string `json:"provider"`
}

// SearchResults carries the step log and the final result.
type SearchResults struct {
	Steps       []core.Step `json:"steps"`
	FinalResult core.Result `json:"finalResult"`
}

// SearchResponse wraps a finished session.
type SearchResponse struct {
	Success bool           `json:"success"`
	RunID   string         `json:"runId,omitempty"`
	Results *SearchResults `json:"results,omitempty"`
	Message string         `json:"message,omitempty"`
}

// StreamResult is the payload of the final "result" event of a stream.
type StreamResult struct {
	RunID       string      `json:"runId"`
	FinalResult core.Result `json:"finalResult"`
}

// TokenRequest exchanges the admin password for a bearer token.
type TokenRequest struct {
	Password string `json:"password" validate:"required"`
}

// TokenResponse carries a bearer token.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type ProvidersResponse struct {
	Providers []string `json:"providers"`
	Default   string   `json:"default"`
}

type CommentariesResponse struct {
	Reference    string   `json:"reference"`
	Commentaries []string `json:"commentaries"`
}
