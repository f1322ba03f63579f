package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestRedisStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	redisC, err := tcRedis.RunContainer(ctx, testcontainers.WithWaitStrategy(wait.ForListeningPort("6379/tcp")))
	if err != nil {
		t.Fatalf("redis container: %v", err)
	}
	defer func() { _ = redisC.Terminate(ctx) }()

	host, err := redisC.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := redisC.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	st := NewRedisWithClient(client, time.Hour)
	defer st.Close()

	now := time.Now()
	for i, id := range []string{"a", "b", "c"} {
		if err := st.SaveRun(ctx, sampleRun(id, now.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("SaveRun: %v", err)
		}
	}
	run, err := st.GetRun(ctx, "a")
	if err != nil || run.Question != sampleRun("a", now).Question {
		t.Fatalf("GetRun: %+v %v", run, err)
	}
	if _, err := st.GetRun(ctx, "zzz"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// an expired run drops out of the listing
	if err := client.Del(ctx, runKey("b")).Err(); err != nil {
		t.Fatalf("del: %v", err)
	}
	list, err := st.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(list) != 2 || list[0].ID != "c" || list[1].ID != "a" {
		t.Fatalf("unexpected listing %+v", list)
	}
	if n, _ := client.ZCard(ctx, runIndexKey).Result(); n != 2 {
		t.Fatalf("expected stale id to be pruned, index has %d", n)
	}
}

func TestPostgresStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	pgC, err := tcPostgres.RunContainer(ctx,
		tcPostgres.WithDatabase("itturia"),
		tcPostgres.WithUsername("itturia"),
		tcPostgres.WithPassword("itturia"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("5432/tcp")),
	)
	if err != nil {
		t.Fatalf("postgres container: %v", err)
	}
	defer func() { _ = pgC.Terminate(ctx) }()

	dsn, err := pgC.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("dsn: %v", err)
	}
	// the port can accept before the server finishes starting
	var migErr error
	for i := 0; i < 10; i++ {
		if migErr = Migrate("", dsn, "up", 0); migErr == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	if migErr != nil {
		t.Fatalf("migrate: %v", migErr)
	}

	st, err := NewPostgres(ctx, dsn, time.Hour)
	if err != nil {
		t.Fatalf("NewPostgres: %v", err)
	}
	defer st.Close()

	id := "0b8e6f4a-4f7c-4d6e-9c55-2c3f1e9a7b10"
	run := sampleRun(id, time.Now().UTC().Truncate(time.Millisecond))
	if err := st.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	got, err := st.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Result.Answer != run.Result.Answer || !got.CreatedAt.Equal(run.CreatedAt) {
		t.Fatalf("unexpected run %+v", got)
	}
	list, err := st.ListRuns(ctx, 5)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListRuns: %+v %v", list, err)
	}
	if n, err := st.PruneExpired(ctx); err != nil || n != 0 {
		t.Fatalf("PruneExpired: %d %v", n, err)
	}
	if err := Migrate("", dsn, "down", 0); err != nil {
		t.Fatalf("migrate down: %v", err)
	}
}
