package redis_test

import (
	"context"
	"os"
	"testing"

	"telegram-musicbot/internal/adapters/cachestore/redis"
	"telegram-musicbot/internal/domain/media"
)

// Нужен живой Redis: REDIS_TEST_ADDR=localhost:6379
func TestStore(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR is not set")
	}

	ctx := context.Background()
	s, err := redis.Open(ctx, redis.Options{Addr: addr, DB: 15})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = s.Close() }()

	const id = "redistest01"
	t.Cleanup(func() { _ = s.Forget(context.Background(), id) })

	if err := s.Save(ctx, id, media.KindVideo, "v1"); err != nil {
		t.Fatal(err)
	}
	if link, ok, err := s.Lookup(ctx, id, media.KindVideo); err != nil || !ok || link != "v1" {
		t.Fatalf("Lookup = %q, %v, %v", link, ok, err)
	}
	if _, ok, _ := s.Lookup(ctx, id, media.KindAudio); ok {
		t.Fatal("audio must be absent")
	}
	if n, err := s.Len(ctx); err != nil || n < 1 {
		t.Fatalf("Len = %d, %v", n, err)
	}
}
