package server

import (
	"context"
	"time"

	"github.com/gorhill/cronexpr"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/itturia/internal/agent/core"
	"github.com/mohammad-safakhou/itturia/internal/logging"
)

// Watchdog re-validates the corpus index on a cron schedule.
type Watchdog struct {
	Spec     string
	Index    core.Searcher
	OnResult func(bool)
	Stop     chan struct{}
	Logger   *zap.Logger
	// Interval is how often the schedule is checked; defaults to 30s.
	Interval time.Duration

	last time.Time
}

func (w *Watchdog) Start() {
	interval := w.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	w.last = time.Now()
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-w.Stop:
				ticker.Stop()
				return
			case now := <-ticker.C:
				w.tick(now)
			}
		}
	}()
}

func (w *Watchdog) tick(now time.Time) {
	if !isDue(w.Spec, w.last, now) {
		return
	}
	w.last = now
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	ok := w.Index.Validate(ctx)
	logging.OrNop(w.Logger).Debug("index validated", zap.Bool("healthy", ok))
	if w.OnResult != nil {
		w.OnResult(ok)
	}
}

// isDue reports whether a check scheduled by cronSpec fell between last and now.
// Supports "@hourly", "@daily" and standard 5-field cron expressions; an
// invalid expression is treated as "@hourly".
func isDue(cronSpec string, last, now time.Time) bool {
	switch cronSpec {
	case "@daily":
		return now.Sub(last) >= 24*time.Hour
	case "@hourly":
		return now.Sub(last) >= time.Hour
	}
	expr, err := cronexpr.Parse(cronSpec)
	if err != nil {
		return now.Sub(last) >= time.Hour
	}
	next := expr.Next(last)
	return !next.IsZero() && !next.After(now)
}
