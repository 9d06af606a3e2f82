// Package cachestore выбирает бэкенд кеша ссылок по CACHE_BACKEND.
package cachestore

import (
	"context"

	"github.com/go-faster/errors"

	"telegram-musicbot/internal/adapters/cachestore/bolt"
	"telegram-musicbot/internal/adapters/cachestore/jsonfile"
	"telegram-musicbot/internal/adapters/cachestore/postgres"
	"telegram-musicbot/internal/adapters/cachestore/redis"
	"telegram-musicbot/internal/domain/media"
	"telegram-musicbot/internal/infra/config"
)

// Open открывает хранилище выбранного бэкенда.
func Open(ctx context.Context, env config.EnvConfig) (media.CacheStore, error) {
	switch env.CacheBackend {
	case config.CacheBackendJSON, "":
		return jsonfile.Open(env.CacheFile)
	case config.CacheBackendBolt:
		return bolt.Open(env.BoltCacheFile)
	case config.CacheBackendPostgres:
		return postgres.Open(ctx, env.PostgresDSN)
	case config.CacheBackendRedis:
		return redis.Open(ctx, redis.Options{Addr: env.RedisAddr, Password: env.RedisPassword, DB: env.RedisDB})
	default:
		return nil, errors.Errorf("cachestore: unknown backend %q", env.CacheBackend)
	}
}
