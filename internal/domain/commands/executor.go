package commands

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"telegram-musicbot/internal/domain/media"
	"telegram-musicbot/internal/infra/concurrency"
	"telegram-musicbot/internal/infra/storage"
	versioninfo "telegram-musicbot/internal/support/version"
)

// CacheResolver - часть media.Resolver, нужная командам.
type CacheResolver interface {
	Stats() media.Stats
	Lookup(ctx context.Context, id string, kind media.Kind) (string, bool, error)
	Forget(ctx context.Context, id string) error
	LocalPath(id string, kind media.Kind) string
}

// Counter - размер хранилища кеша.
type Counter interface {
	Len(ctx context.Context) (int, error)
}

type activeCounter interface {
	Active() int
}

type uploadStats interface {
	Stats() concurrency.BackgroundStats
}

// CommandExecutor - реализация Executor
type CommandExecutor struct {
	resolver  CacheResolver
	cache     Counter
	streams   activeCounter
	uploads   uploadStats
	startedAt time.Time
}

// NewExecutor создаёт исполнитель. streams и uploads могут быть nil.
func NewExecutor(resolver CacheResolver, cache Counter, streams activeCounter, uploads uploadStats) *CommandExecutor {
	return &CommandExecutor{
		resolver:  resolver,
		cache:     cache,
		streams:   streams,
		uploads:   uploads,
		startedAt: time.Now(),
	}
}

// Stats собирает счётчики
func (e *CommandExecutor) Stats(ctx context.Context) (*StatsResult, error) {
	if e.resolver == nil {
		return nil, errors.New("resolver is not available")
	}
	res := &StatsResult{
		Resolver: e.resolver.Stats(),
		Uptime:   time.Since(e.startedAt).Truncate(time.Second),
	}
	if e.cache != nil {
		n, err := e.cache.Len(ctx)
		if err != nil {
			return nil, err
		}
		res.CachedTracks = n
	}
	if e.streams != nil {
		res.ActiveChats = e.streams.Active()
	}
	if e.uploads != nil {
		res.Uploads = e.uploads.Stats()
	}
	return res, nil
}

// Lookup показывает запись кеша и локальные файлы трека
func (e *CommandExecutor) Lookup(ctx context.Context, id string) (*LookupResult, error) {
	if e.resolver == nil {
		return nil, errors.New("resolver is not available")
	}
	if err := media.ValidateID(id); err != nil {
		return nil, err
	}
	res := &LookupResult{ID: id}
	for _, kind := range []media.Kind{media.KindAudio, media.KindVideo} {
		link, _, err := e.resolver.Lookup(ctx, id, kind)
		if err != nil {
			return nil, err
		}
		local := storage.FileReady(e.resolver.LocalPath(id, kind))
		if kind == media.KindAudio {
			res.Audio, res.AudioLocal = link, local
		} else {
			res.Video, res.VideoLocal = link, local
		}
	}
	return res, nil
}

// Forget удаляет запись кеша
func (e *CommandExecutor) Forget(ctx context.Context, id string) error {
	if e.resolver == nil {
		return errors.New("resolver is not available")
	}
	if err := media.ValidateID(id); err != nil {
		return err
	}
	return e.resolver.Forget(ctx, id)
}

// Version возвращает версию сборки
func (e *CommandExecutor) Version(context.Context) (*VersionResult, error) {
	return &VersionResult{Name: versioninfo.Name, Version: versioninfo.Version}, nil
}
