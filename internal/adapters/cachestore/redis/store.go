// Package redis - кеш ссылок в Redis: хэш musicbot:cache:<id> с полями audio/video.
package redis

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	goredis "github.com/redis/go-redis/v9"

	"telegram-musicbot/internal/domain/media"
)

const (
	keyPrefix   = "musicbot:cache:"
	pingTimeout = 5 * time.Second
)

// Options - параметры подключения.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Store - media.CacheStore поверх Redis.
type Store struct {
	rdb *goredis.Client
}

// Open подключается и проверяет соединение.
func Open(ctx context.Context, opts Options) (*Store, error) {
	rdb := goredis.NewClient(&goredis.Options{Addr: opts.Addr, Password: opts.Password, DB: opts.DB})
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "redis cache: ping")
	}
	return &Store{rdb: rdb}, nil
}

// NewFromClient оборачивает готовый клиент (общий с кешем поиска).
func NewFromClient(rdb *goredis.Client) *Store {
	return &Store{rdb: rdb}
}

// Client - нижележащий клиент Redis.
func (s *Store) Client() *goredis.Client { return s.rdb }

func (s *Store) Lookup(ctx context.Context, id string, kind media.Kind) (string, bool, error) {
	link, err := s.rdb.HGet(ctx, keyPrefix+id, kind.String()).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "redis cache: lookup %s", id)
	}
	return link, link != "", nil
}

func (s *Store) Save(ctx context.Context, id string, kind media.Kind, link string) error {
	if err := s.rdb.HSet(ctx, keyPrefix+id, kind.String(), link).Err(); err != nil {
		return errors.Wrapf(err, "redis cache: save %s", id)
	}
	return nil
}

func (s *Store) Forget(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, keyPrefix+id).Err(); err != nil {
		return errors.Wrapf(err, "redis cache: forget %s", id)
	}
	return nil
}

// Len обходит ключи через SCAN, KEYS на живом инстансе не используем.
func (s *Store) Len(ctx context.Context) (int, error) {
	var (
		n      int
		cursor uint64
	)
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, keyPrefix+"*", 500).Result()
		if err != nil {
			return 0, errors.Wrap(err, "redis cache: scan")
		}
		n += len(keys)
		if next == 0 {
			return n, nil
		}
		cursor = next
	}
}

func (s *Store) Close() error { return s.rdb.Close() }
