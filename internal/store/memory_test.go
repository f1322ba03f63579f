package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mohammad-safakhou/itturia/config"
	"github.com/mohammad-safakhou/itturia/internal/agent/core"
)

func sampleRun(id string, at time.Time) Run {
	return Run{
		ID:        id,
		Question:  "מה קרה בקריעת ים סוף?",
		Provider:  "local",
		Outcome:   core.OutcomeAccepted,
		Rounds:    1,
		Result:    core.Result{Answer: "תשובה", Outcome: core.OutcomeAccepted, Rounds: 1},
		CreatedAt: at,
	}
}

func TestMemorySaveGetList(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Hour)
	now := time.Now()
	for i, id := range []string{"a", "b", "c"} {
		if err := m.SaveRun(ctx, sampleRun(id, now.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("SaveRun: %v", err)
		}
	}
	got, err := m.GetRun(ctx, "b")
	if err != nil || got.Result.Answer != "תשובה" {
		t.Fatalf("GetRun: %+v %v", got, err)
	}
	if _, err := m.GetRun(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	list, _ := m.ListRuns(ctx, 2)
	if len(list) != 2 || list[0].ID != "c" || list[1].ID != "b" {
		t.Fatalf("expected newest first, got %+v", list)
	}
}

func TestMemoryExpires(t *testing.T) {
	m := NewMemory(20 * time.Millisecond)
	_ = m.SaveRun(context.Background(), sampleRun("x", time.Now()))
	time.Sleep(50 * time.Millisecond)
	if _, err := m.GetRun(context.Background(), "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired run to be gone, got %v", err)
	}
}

func TestOpenSelectsBackend(t *testing.T) {
	s, err := Open(context.Background(), config.StorageConfig{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, ok := s.(*Memory); !ok {
		t.Fatalf("expected memory backend, got %T", s)
	}
	if _, err := Open(context.Background(), config.StorageConfig{Backend: "sqlite"}); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}
