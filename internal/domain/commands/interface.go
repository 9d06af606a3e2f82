// Package commands - обработчики команд и callback-кнопок бота, а также
// административные команды, общие для чата (/stats) и консоли (CLI).
package commands

import (
	"context"
	"time"

	"telegram-musicbot/internal/domain/media"
	"telegram-musicbot/internal/infra/concurrency"
)

// Executor - административные команды.
type Executor interface {
	// Stats - счётчики резолвера, кеша, загрузок и активных чатов
	Stats(ctx context.Context) (*StatsResult, error)

	// Lookup - что известно о треке: ссылки в канале и локальные файлы
	Lookup(ctx context.Context, id string) (*LookupResult, error)

	// Forget удаляет запись кеша трека
	Forget(ctx context.Context, id string) error

	// Version - версия сборки
	Version(ctx context.Context) (*VersionResult, error)
}

// StatsResult - результат Stats
type StatsResult struct {
	Resolver     media.Stats
	Uploads      concurrency.BackgroundStats
	CachedTracks int
	ActiveChats  int
	Uptime       time.Duration
}

// LookupResult - результат Lookup
type LookupResult struct {
	ID         string
	Audio      string // ссылка на копию в канале
	Video      string
	AudioLocal bool // файл уже лежит в DOWNLOAD_DIR
	VideoLocal bool
}

// VersionResult - результат Version
type VersionResult struct {
	Name    string
	Version string
}
