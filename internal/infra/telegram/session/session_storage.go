// Package session хранит MTProto-сессию бота в файле.
// Запись атомарная (temp + rename), поэтому падение процесса посреди StoreSession
// не оставляет битую сессию и не заставляет заново логиниться по токену.
package session

import (
	"context"
	"os"
	"sync"

	"github.com/go-faster/errors"
	tdsession "github.com/gotd/td/session"

	"telegram-musicbot/internal/infra/logger"
	"telegram-musicbot/internal/infra/storage"
)

// FileStorage реализует tdsession.Storage поверх файла Path. Потокобезопасен.
type FileStorage struct {
	Path string
	mux  sync.Mutex
}

var _ tdsession.Storage = (*FileStorage)(nil)

// LoadSession читает сессию; отсутствие файла - tdsession.ErrNotFound (первый запуск).
func (f *FileStorage) LoadSession(_ context.Context) ([]byte, error) {
	if f == nil {
		return nil, errors.New("nil session storage is invalid")
	}
	f.mux.Lock()
	defer f.mux.Unlock()

	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Debugf("session: %s not found, fresh bot login", f.Path)
		return nil, tdsession.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "read session")
	}
	return data, nil
}

// StoreSession атомарно сохраняет сессию с правами 0600.
func (f *FileStorage) StoreSession(_ context.Context, data []byte) error {
	if f == nil {
		return errors.New("nil session storage is invalid")
	}
	f.mux.Lock()
	defer f.mux.Unlock()

	if err := storage.AtomicWriteFile(f.Path, data); err != nil {
		return errors.Wrap(err, "atomic write session")
	}
	return nil
}
