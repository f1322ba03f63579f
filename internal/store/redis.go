package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/itturia/config"
)

const runIndexKey = "itturia:runs"

func runKey(id string) string { return "itturia:run:" + id }

// Redis stores each run as a JSON string with a TTL and keeps a sorted set of
// ids by creation time for listing.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(ctx context.Context, cfg config.RedisConfig, ttl time.Duration) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr(),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.Timeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr(), err)
	}
	return NewRedisWithClient(client, ttl), nil
}

func NewRedisWithClient(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) SaveRun(ctx context.Context, run Run) error {
	b, err := json.Marshal(run)
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, runKey(run.ID), b, r.ttl)
		p.ZAdd(ctx, runIndexKey, redis.Z{Score: float64(run.CreatedAt.UnixNano()), Member: run.ID})
		return nil
	})
	return err
}

func (r *Redis) GetRun(ctx context.Context, id string) (Run, error) {
	b, err := r.client.Get(ctx, runKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Run{}, ErrNotFound
	}
	if err != nil {
		return Run{}, err
	}
	var run Run
	if err := json.Unmarshal(b, &run); err != nil {
		return Run{}, fmt.Errorf("decode run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns also prunes index entries whose run has expired.
func (r *Redis) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	limit = normalizeLimit(limit)
	ids, err := r.client.ZRevRange(ctx, runIndexKey, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []Run{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = runKey(id)
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Run, 0, len(vals))
	var stale []interface{}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var run Run
		if err := json.Unmarshal([]byte(s), &run); err != nil {
			return nil, fmt.Errorf("decode run %s: %w", ids[i], err)
		}
		out = append(out, run)
	}
	if len(stale) > 0 {
		_ = r.client.ZRem(ctx, runIndexKey, stale...).Err()
	}
	return out, nil
}

func (r *Redis) Close() error { return r.client.Close() }
