package store

import (
	"context"
	"sort"
	"time"

	"github.com/patrickmn/go-cache"
)

// Memory keeps runs in process; they disappear after ttl or on restart.
type Memory struct {
	c *cache.Cache
}

func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &Memory{c: cache.New(ttl, 10*time.Minute)}
}

func (m *Memory) SaveRun(_ context.Context, run Run) error {
	m.c.SetDefault(run.ID, run)
	return nil
}

func (m *Memory) GetRun(_ context.Context, id string) (Run, error) {
	v, ok := m.c.Get(id)
	if !ok {
		return Run{}, ErrNotFound
	}
	return v.(Run), nil
}

func (m *Memory) ListRuns(_ context.Context, limit int) ([]Run, error) {
	limit = normalizeLimit(limit)
	items := m.c.Items()
	out := make([]Run, 0, len(items))
	for _, it := range items {
		out = append(out, it.Object.(Run))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) Close() error {
	m.c.Flush()
	return nil
}
