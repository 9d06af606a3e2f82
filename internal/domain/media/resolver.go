// Package media - получение треков по трём уровням: локальный диск, копия в
// канале-хранилище Telegram, внешний API загрузки. Кеш ссылок (CacheStore) связывает
// id трека с сообщением в канале; после загрузки через API файл в фоне
// перезаливается в канал, и новая ссылка попадает в кеш. Попадание в кеш не
// перезаливается: файл уже лежит в канале.
package media

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"telegram-musicbot/internal/infra/logger"
	"telegram-musicbot/internal/infra/storage"
)

// Source - уровень, с которого получен файл.
type Source string

const (
	SourceLocal      Source = "local"
	SourceChannel    Source = "channel"
	SourceAPIPointer Source = "api-pointer"
	SourceAPIStream  Source = "api-stream"
)

// Result - путь к готовому локальному файлу и его источник.
type Result struct {
	Path   string
	Source Source
}

// ChatClient читает медиа из сообщения канала.
type ChatClient interface {
	FetchMedia(ctx context.Context, p RemotePointer, dest string) error
}

// Uploader заливает файл в канал-хранилище и возвращает ссылку на сообщение.
type Uploader interface {
	Upload(ctx context.Context, path, id string, kind Kind) (RemotePointer, error)
}

// Spawner запускает фоновую задачу под ключом; false - задача не принята.
type Spawner interface {
	Go(key string, fn func(ctx context.Context) error) bool
}

// Stats - счётчики резолвера.
type Stats struct {
	LocalHits   int64
	ChannelHits int64
	APIPointer  int64
	APIStream   int64
	StaleLinks  int64
	Failures    int64
	Coalesced   int64
	Uploads     int64
	InFlight    int64
}

// Deps - зависимости резолвера. Uploader и Spawner опциональны: без них перезаливки нет.
type Deps struct {
	Store    CacheStore
	Chat     ChatClient
	API      DownloadAPI
	Uploader Uploader
	Spawner  Spawner
}

// Resolver выдаёт локальный путь трека. Одновременные запросы одного (id, kind)
// ждут одну и ту же загрузку.
type Resolver struct {
	dir  string
	deps Deps

	group singleflight.Group

	localHits   atomic.Int64
	channelHits atomic.Int64
	apiPointer  atomic.Int64
	apiStream   atomic.Int64
	staleLinks  atomic.Int64
	failures    atomic.Int64
	coalesced   atomic.Int64
	uploads     atomic.Int64
	inFlight    atomic.Int64
}

// NewResolver создаёт резолвер с каталогом загрузок dir.
func NewResolver(dir string, deps Deps) *Resolver {
	return &Resolver{dir: dir, deps: deps}
}

// Dir - каталог загрузок.
func (r *Resolver) Dir() string { return r.dir }

// LocalPath - путь, по которому будет лежать трек.
func (r *Resolver) LocalPath(id string, kind Kind) string {
	return LocalPath(r.dir, id, kind)
}

// Resolve возвращает локальный файл трека, при необходимости скачав его.
// Ошибки источников логируются и сводятся к ErrUnavailable, ретраев нет.
func (r *Resolver) Resolve(ctx context.Context, id string, kind Kind) (Result, error) {
	if err := ValidateID(id); err != nil {
		return Result{}, err
	}
	if !kind.Valid() {
		return Result{}, errors.Wrapf(ErrUnknownKind, "%q", kind)
	}

	path := r.LocalPath(id, kind)
	if storage.FileReady(path) {
		r.localHits.Add(1)
		logger.Debug("media: local hit", zap.String("id", id), zap.Stringer("kind", kind))
		return Result{Path: path, Source: SourceLocal}, nil
	}

	key := kind.String() + ":" + id
	// Общая загрузка не должна обрываться, если первый из ждущих ушёл.
	work := context.WithoutCancel(ctx)
	ch := r.group.DoChan(key, func() (any, error) {
		r.inFlight.Add(1)
		defer r.inFlight.Add(-1)
		return r.resolve(work, id, kind, path)
	})

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case res := <-ch:
		if res.Shared {
			r.coalesced.Add(1)
		}
		if res.Err != nil {
			return Result{}, res.Err
		}
		return res.Val.(Result), nil
	}
}

func (r *Resolver) resolve(ctx context.Context, id string, kind Kind, path string) (Result, error) {
	log := logger.Logger().With(zap.String("id", id), zap.Stringer("kind", kind))

	// Пока ждали слот в singleflight, файл мог появиться.
	if storage.FileReady(path) {
		r.localHits.Add(1)
		return Result{Path: path, Source: SourceLocal}, nil
	}

	if res, ok := r.fromCache(ctx, log, id, kind, path); ok {
		return res, nil
	}

	if r.deps.API == nil {
		r.failures.Add(1)
		return Result{}, errors.Wrap(ErrUnavailable, "download api is not configured")
	}
	resp, err := r.deps.API.Download(ctx, id, kind)
	if err != nil {
		r.failures.Add(1)
		log.Error("media: api request failed", zap.Error(err))
		return Result{}, unavailable(err)
	}

	if resp.TelegramLink() {
		log.Info("media: api returned telegram link", zap.String("link", resp.Link))
		if err := r.fetchLink(ctx, resp.Link, path); err != nil {
			log.Warn("media: api telegram link failed", zap.String("link", resp.Link), zap.Error(err))
		} else {
			if r.deps.Store != nil {
				if err := r.deps.Store.Save(ctx, id, kind, resp.Link); err != nil {
					log.Warn("media: cache save failed", zap.Error(err))
				}
			}
			r.apiPointer.Add(1)
			r.scheduleUpload(id, kind, path)
			return Result{Path: path, Source: SourceAPIPointer}, nil
		}
	}

	if resp.Streamable() {
		n, err := r.deps.API.Stream(ctx, resp.StreamURL, path, kind)
		if err != nil {
			r.failures.Add(1)
			log.Error("media: stream download failed", zap.Error(err))
			return Result{}, unavailable(err)
		}
		log.Info("media: downloaded from stream", zap.String("path", path), zap.Int64("bytes", n))
		r.apiStream.Add(1)
		r.scheduleUpload(id, kind, path)
		return Result{Path: path, Source: SourceAPIStream}, nil
	}

	r.failures.Add(1)
	log.Error("media: invalid api response",
		zap.String("status", resp.Status), zap.String("link", resp.Link), zap.Bool("stream", resp.StreamURL != ""))
	return Result{}, errors.Wrap(ErrUnavailable, "invalid api response")
}

// unavailable сохраняет в цепочке и ErrUnavailable, и исходную причину.
func unavailable(cause error) error {
	return fmt.Errorf("%w: %w", ErrUnavailable, cause)
}

// fromCache пробует ссылку из кеша; ошибка любого шага - промах, а не отказ.
func (r *Resolver) fromCache(ctx context.Context, log *zap.Logger, id string, kind Kind, path string) (Result, bool) {
	if r.deps.Store == nil {
		return Result{}, false
	}
	link, ok, err := r.deps.Store.Lookup(ctx, id, kind)
	if err != nil {
		log.Warn("media: cache lookup failed", zap.Error(err))
		return Result{}, false
	}
	if !ok || link == "" {
		return Result{}, false
	}
	log.Info("media: cache hit", zap.String("link", link))

	if err := r.fetchLink(ctx, link, path); err != nil {
		r.staleLinks.Add(1)
		log.Warn("media: cached link failed, will redownload", zap.String("link", link), zap.Error(err))
		return Result{}, false
	}
	r.channelHits.Add(1)
	return Result{Path: path, Source: SourceChannel}, true
}

func (r *Resolver) fetchLink(ctx context.Context, link, path string) error {
	if r.deps.Chat == nil {
		return errors.New("chat client is not configured")
	}
	p, err := ParsePointer(link)
	if err != nil {
		return err
	}
	if err := r.deps.Chat.FetchMedia(ctx, p, path); err != nil {
		return err
	}
	if !storage.FileReady(path) {
		return errors.New("downloaded file is empty")
	}
	return nil
}

// scheduleUpload ставит фоновую перезаливку; результат вызывающий не ждёт.
func (r *Resolver) scheduleUpload(id string, kind Kind, path string) {
	if r.deps.Uploader == nil || r.deps.Spawner == nil {
		return
	}
	accepted := r.deps.Spawner.Go("upload:"+kind.String()+":"+id, func(ctx context.Context) error {
		p, err := r.deps.Uploader.Upload(ctx, path, id, kind)
		if err != nil {
			return errors.Wrapf(err, "upload %s %s", kind, id)
		}
		link := p.String()
		if r.deps.Store != nil {
			if err := r.deps.Store.Save(ctx, id, kind, link); err != nil {
				return errors.Wrap(err, "save uploaded link")
			}
		}
		logger.Info("media: uploaded to channel", zap.String("id", id), zap.Stringer("kind", kind), zap.String("link", link))
		return nil
	})
	if accepted {
		r.uploads.Add(1)
	}
}

// Forget удаляет запись кеша для id.
func (r *Resolver) Forget(ctx context.Context, id string) error {
	if r.deps.Store == nil {
		return nil
	}
	return r.deps.Store.Forget(ctx, id)
}

// Lookup возвращает ссылку из кеша для (id, kind).
func (r *Resolver) Lookup(ctx context.Context, id string, kind Kind) (string, bool, error) {
	if r.deps.Store == nil {
		return "", false, nil
	}
	return r.deps.Store.Lookup(ctx, id, kind)
}

// Stats возвращает снимок счётчиков.
func (r *Resolver) Stats() Stats {
	return Stats{
		LocalHits:   r.localHits.Load(),
		ChannelHits: r.channelHits.Load(),
		APIPointer:  r.apiPointer.Load(),
		APIStream:   r.apiStream.Load(),
		StaleLinks:  r.staleLinks.Load(),
		Failures:    r.failures.Load(),
		Coalesced:   r.coalesced.Load(),
		Uploads:     r.uploads.Load(),
		InFlight:    r.inFlight.Load(),
	}
}
