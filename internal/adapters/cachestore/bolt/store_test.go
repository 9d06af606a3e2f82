package bolt_test

import (
	"context"
	"path/filepath"
	"testing"

	"telegram-musicbot/internal/adapters/cachestore/bolt"
	"telegram-musicbot/internal/domain/media"
)

func TestStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.bbolt")
	s, err := bolt.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := s.Save(ctx, "abc123", media.KindAudio, "a1"); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, "abc123", media.KindVideo, "v1"); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, "abc123", media.KindAudio, "a2"); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = bolt.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = s.Close() }()

	if link, ok, _ := s.Lookup(ctx, "abc123", media.KindAudio); !ok || link != "a2" {
		t.Fatalf("audio = %q, %v", link, ok)
	}
	if link, ok, _ := s.Lookup(ctx, "abc123", media.KindVideo); !ok || link != "v1" {
		t.Fatalf("video = %q, %v", link, ok)
	}
	if n, _ := s.Len(ctx); n != 1 {
		t.Fatalf("Len = %d", n)
	}
	if err := s.Forget(ctx, "abc123"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Lookup(ctx, "abc123", media.KindAudio); ok {
		t.Fatal("entry must be gone")
	}
}
