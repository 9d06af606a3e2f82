// Package postgres - кеш ссылок в PostgreSQL (lib/pq), схема накатывается goose
// из встроенных миграций.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"time"

	"github.com/go-faster/errors"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"telegram-musicbot/internal/domain/media"
)

//go:embed migrations/*.sql
var migrations embed.FS

const pingTimeout = 10 * time.Second

// Store - media.CacheStore поверх таблицы media_cache(id, kind, link, updated_at).
type Store struct {
	db *sql.DB
}

// Open подключается по dsn и применяет миграции.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "postgres cache: open")
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "postgres cache: ping")
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Migrate применяет встроенные миграции.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "postgres cache: goose dialect")
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return errors.Wrap(err, "postgres cache: migrate")
	}
	return nil
}

func (s *Store) Lookup(ctx context.Context, id string, kind media.Kind) (string, bool, error) {
	var link string
	err := s.db.QueryRowContext(ctx,
		`SELECT link FROM media_cache WHERE id = $1 AND kind = $2`, id, kind.String()).Scan(&link)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "postgres cache: lookup %s", id)
	}
	return link, true, nil
}

func (s *Store) Save(ctx context.Context, id string, kind media.Kind, link string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO media_cache (id, kind, link) VALUES ($1, $2, $3)
		 ON CONFLICT (id, kind) DO UPDATE SET link = EXCLUDED.link, updated_at = NOW()`,
		id, kind.String(), link)
	if err != nil {
		return errors.Wrapf(err, "postgres cache: save %s", id)
	}
	return nil
}

func (s *Store) Forget(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM media_cache WHERE id = $1`, id); err != nil {
		return errors.Wrapf(err, "postgres cache: forget %s", id)
	}
	return nil
}

// Len считает треки, а не строки: у одного id может быть audio и video.
func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT id) FROM media_cache`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "postgres cache: count")
	}
	return n, nil
}

func (s *Store) Close() error { return s.db.Close() }
