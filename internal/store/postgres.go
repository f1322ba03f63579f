package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/mohammad-safakhou/itturia/internal/agent/core"
)

// Postgres stores runs in the runs table created by the migrations.
type Postgres struct {
	DB  *sql.DB
	ttl time.Duration
}

func NewPostgres(ctx context.Context, dsn string, ttl time.Duration) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Postgres{DB: db, ttl: ttl}, nil
}

func (p *Postgres) SaveRun(ctx context.Context, run Run) error {
	result, err := json.Marshal(run.Result)
	if err != nil {
		return err
	}
	var expires *time.Time
	if p.ttl > 0 {
		t := run.CreatedAt.Add(p.ttl)
		expires = &t
	}
	_, err = p.DB.ExecContext(ctx, `
INSERT INTO runs (id, question, provider, outcome, rounds, result, created_at, expires_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
  outcome = EXCLUDED.outcome,
  rounds = EXCLUDED.rounds,
  result = EXCLUDED.result;
`, run.ID, run.Question, run.Provider, string(run.Outcome), run.Rounds, result, run.CreatedAt, expires)
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

const runColumns = `id, question, provider, outcome, rounds, result, created_at`

func (p *Postgres) GetRun(ctx context.Context, id string) (Run, error) {
	row := p.DB.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id=$1 AND (expires_at IS NULL OR expires_at > NOW())`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	return run, err
}

func (p *Postgres) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := p.DB.QueryContext(ctx, `SELECT `+runColumns+` FROM runs WHERE expires_at IS NULL OR expires_at > NOW() ORDER BY created_at DESC LIMIT $1`, normalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// PruneExpired deletes runs past their expiry and returns how many went.
func (p *Postgres) PruneExpired(ctx context.Context) (int64, error) {
	res, err := p.DB.ExecContext(ctx, `DELETE FROM runs WHERE expires_at IS NOT NULL AND expires_at <= NOW()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (p *Postgres) Close() error { return p.DB.Close() }

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		run     Run
		outcome string
		result  []byte
	)
	if err := s.Scan(&run.ID, &run.Question, &run.Provider, &outcome, &run.Rounds, &result, &run.CreatedAt); err != nil {
		return Run{}, err
	}
	run.Outcome = core.Outcome(outcome)
	if err := json.Unmarshal(result, &run.Result); err != nil {
		return Run{}, fmt.Errorf("decode run %s: %w", run.ID, err)
	}
	return run, nil
}
