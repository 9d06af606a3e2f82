package cachestore_test

import (
	"context"
	"path/filepath"
	"testing"

	"telegram-musicbot/internal/adapters/cachestore"
	"telegram-musicbot/internal/domain/media"
	"telegram-musicbot/internal/infra/config"
)

func TestOpen_LocalBackends(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, backend := range []string{config.CacheBackendJSON, config.CacheBackendBolt} {
		t.Run(backend, func(t *testing.T) {
			t.Parallel()
			env := config.EnvConfig{
				CacheBackend:  backend,
				CacheFile:     filepath.Join(dir, "cache.json"),
				BoltCacheFile: filepath.Join(dir, "cache.bbolt"),
			}
			store, err := cachestore.Open(context.Background(), env)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer func() { _ = store.Close() }()

			if err := store.Save(context.Background(), "abc123", media.KindAudio, "link"); err != nil {
				t.Fatalf("Save: %v", err)
			}
		})
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	t.Parallel()

	if _, err := cachestore.Open(context.Background(), config.EnvConfig{CacheBackend: "mongo"}); err == nil {
		t.Fatal("expected error")
	}
}
