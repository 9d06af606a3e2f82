// Package bolt - кеш ссылок в bbolt: бакет media_cache, значение - JSON media.Entry.
package bolt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"go.etcd.io/bbolt"

	"telegram-musicbot/internal/domain/media"
	"telegram-musicbot/internal/infra/storage"
)

const openTimeout = time.Second

var bucket = []byte("media_cache")

// Store - media.CacheStore поверх bbolt. Транзакции bbolt сериализуют запись сами.
type Store struct {
	db *bbolt.DB
}

// Open открывает (или создаёт) базу по path.
func Open(path string) (*Store, error) {
	if err := storage.EnsureDir(path); err != nil {
		return nil, errors.Wrap(err, "bolt cache")
	}
	db, err := bbolt.Open(path, storage.PrivatePerm, &bbolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, errors.Wrap(err, "bolt cache: open")
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "bolt cache: create bucket")
	}
	return &Store{db: db}, nil
}

func (s *Store) Lookup(_ context.Context, id string, kind media.Kind) (string, bool, error) {
	var entry media.Entry
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucket).Get([]byte(id))
		if raw == nil {
			return nil
		}
		return json.Unmarshal(raw, &entry)
	})
	if err != nil {
		return "", false, errors.Wrapf(err, "bolt cache: lookup %s", id)
	}
	link := entry.Get(kind)
	return link, link != "", nil
}

func (s *Store) Save(_ context.Context, id string, kind media.Kind, link string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		var entry media.Entry
		if raw := b.Get([]byte(id)); raw != nil {
			// Битую запись просто перезаписываем.
			_ = json.Unmarshal(raw, &entry)
		}
		data, err := json.Marshal(entry.With(kind, link))
		if err != nil {
			return errors.Wrap(err, "bolt cache: marshal")
		}
		return b.Put([]byte(id), data)
	})
}

func (s *Store) Forget(_ context.Context, id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).Delete([]byte(id))
	})
}

func (s *Store) Len(context.Context) (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucket).Stats().KeyN
		return nil
	})
	return n, err
}

func (s *Store) Close() error { return s.db.Close() }
