// Package jsonfile - кеш ссылок в одном JSON-документе на диске.
// Файл перезаписывается целиком при каждом изменении, атомарно (temp + rename).
// Ключи сортируются encoding/json, поэтому одинаковое содержимое даёт одинаковые байты.
package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"telegram-musicbot/internal/domain/media"
	"telegram-musicbot/internal/infra/logger"
	"telegram-musicbot/internal/infra/storage"
)

// Store - media.CacheStore поверх JSON-файла. Записи держатся в памяти,
// запись на диск сериализована мьютексом.
type Store struct {
	path string

	mu      sync.Mutex
	entries map[string]media.Entry
}

// Open читает файл path. Отсутствующий или битый файл - пустой кеш с предупреждением.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("jsonfile: empty path")
	}
	s := &Store{path: path, entries: make(map[string]media.Entry)}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s, nil
	case err != nil:
		logger.Warn("jsonfile: failed reading cache, starting empty", zap.String("path", path), zap.Error(err))
		return s, nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.entries); err != nil {
		logger.Warn("jsonfile: corrupt cache, starting empty", zap.String("path", path), zap.Error(err))
		s.entries = make(map[string]media.Entry)
	}
	return s, nil
}

func (s *Store) Lookup(_ context.Context, id string, kind media.Kind) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	link := s.entries[id].Get(kind)
	return link, link != "", nil
}

func (s *Store) Save(_ context.Context, id string, kind media.Kind, link string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = s.entries[id].With(kind, link)
	return s.flushLocked()
}

func (s *Store) Forget(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return nil
	}
	delete(s.entries, id)
	return s.flushLocked()
}

func (s *Store) Len(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries), nil
}

// Close ничего не держит открытым: каждое изменение уже на диске.
func (s *Store) Close() error { return nil }

func (s *Store) flushLocked() error {
	for id, e := range s.entries {
		if e.Empty() {
			delete(s.entries, id)
		}
	}
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return errors.Wrap(err, "jsonfile: marshal")
	}
	if err := storage.AtomicWriteFileMode(s.path, data, storage.SharedPerm); err != nil {
		return errors.Wrap(err, "jsonfile: write")
	}
	return nil
}
