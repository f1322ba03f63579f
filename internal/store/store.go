// Package store keeps finished question-answering runs for later retrieval.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mohammad-safakhou/itturia/config"
	"github.com/mohammad-safakhou/itturia/internal/agent/core"
)

var ErrNotFound = errors.New("run not found")

// Run is one finished session together with its request.
type Run struct {
	ID        string       `json:"id"`
	Question  string       `json:"question"`
	Provider  string       `json:"provider,omitempty"`
	Outcome   core.Outcome `json:"outcome"`
	Rounds    int          `json:"rounds"`
	Result    core.Result  `json:"result"`
	CreatedAt time.Time    `json:"createdAt"`
}

// RunStore persists runs. ListRuns returns the newest runs first.
type RunStore interface {
	SaveRun(ctx context.Context, run Run) error
	GetRun(ctx context.Context, id string) (Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	Close() error
}

const defaultListLimit = 20

func normalizeLimit(limit int) int {
	if limit < 1 || limit > 200 {
		return defaultListLimit
	}
	return limit
}

// Open builds the backend selected by cfg.Backend.
func Open(ctx context.Context, cfg config.StorageConfig) (RunStore, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemory(cfg.RunTTL), nil
	case "redis":
		return NewRedis(ctx, cfg.Redis, cfg.RunTTL)
	case "postgres":
		return NewPostgres(ctx, cfg.Postgres.DSN(), cfg.RunTTL)
	}
	return nil, fmt.Errorf("storage backend %q is not supported", cfg.Backend)
}
