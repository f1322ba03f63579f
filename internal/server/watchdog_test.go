package server

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestIsDue(t *testing.T) {
	last := time.Date(2024, 3, 1, 10, 2, 0, 0, time.UTC)
	cases := []struct {
		spec string
		now  time.Time
		want bool
	}{
		{"*/5 * * * *", last.Add(2 * time.Minute), false},
		{"*/5 * * * *", last.Add(3 * time.Minute), true},
		{"@hourly", last.Add(59 * time.Minute), false},
		{"@hourly", last.Add(time.Hour), true},
		{"@daily", last.Add(23 * time.Hour), false},
		{"not a cron", last.Add(2 * time.Hour), true},
	}
	for _, tc := range cases {
		if got := isDue(tc.spec, last, tc.now); got != tc.want {
			t.Fatalf("isDue(%q, +%v) = %v, want %v", tc.spec, tc.now.Sub(last), got, tc.want)
		}
	}
}

type countingIndex struct {
	fakeIndex
	calls atomic.Int32
}

func (c *countingIndex) Validate(context.Context) bool {
	c.calls.Add(1)
	return false
}

func TestWatchdogTickReportsResult(t *testing.T) {
	idx := &countingIndex{}
	var got atomic.Value
	now := time.Now()
	w := &Watchdog{Spec: "* * * * *", Index: idx, OnResult: func(ok bool) { got.Store(ok) }}
	w.last = now.Add(-2 * time.Minute)

	w.tick(now)
	if idx.calls.Load() != 1 {
		t.Fatalf("expected one validation, got %d", idx.calls.Load())
	}
	if v, ok := got.Load().(bool); !ok || v {
		t.Fatalf("expected unhealthy result to be reported")
	}
	w.tick(now)
	if idx.calls.Load() != 1 {
		t.Fatalf("expected no validation before the next slot")
	}
}

func TestWatchdogStops(t *testing.T) {
	w := &Watchdog{Spec: "@hourly", Index: &countingIndex{}, Stop: make(chan struct{}), Interval: time.Millisecond}
	w.Start()
	close(w.Stop)
}
