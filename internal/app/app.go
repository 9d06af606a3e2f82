// Package app - верхний уровень сборки музыкального бота.
// Здесь связываются конфигурация, сетевой слой (gotd/telegram), диспетчер апдейтов,
// медиа-конвейер (кеш ссылок, канал-хранилище, API загрузки) и очереди воспроизведения.
// Отсюда стартует Runner, который ведёт жизненный цикл и graceful shutdown.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	boltstor "github.com/gotd/contrib/bbolt"
	"github.com/gotd/contrib/middleware/floodwait"
	"github.com/gotd/contrib/middleware/ratelimit"
	contribstorage "github.com/gotd/contrib/storage"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/dcs"
	tgupdates "github.com/gotd/td/telegram/updates"
	"github.com/gotd/td/tg"
	goredis "github.com/redis/go-redis/v9"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"telegram-musicbot/internal/adapters/cachestore"
	"telegram-musicbot/internal/adapters/telegram/channel"
	"telegram-musicbot/internal/adapters/telegram/messenger"
	"telegram-musicbot/internal/domain/i18n"
	"telegram-musicbot/internal/domain/media"
	"telegram-musicbot/internal/domain/playlogs"
	"telegram-musicbot/internal/domain/stream"
	"telegram-musicbot/internal/domain/thumbnails"
	"telegram-musicbot/internal/domain/youtube"
	"telegram-musicbot/internal/infra/concurrency"
	"telegram-musicbot/internal/infra/config"
	"telegram-musicbot/internal/infra/logger"
	"telegram-musicbot/internal/infra/storage"
	"telegram-musicbot/internal/infra/telegram/peersmgr"
	"telegram-musicbot/internal/infra/telegram/session"
	"telegram-musicbot/internal/infra/throttle"
	"telegram-musicbot/internal/support/version"
)

const (
	clientRPS          = 30
	uploadMaxRetries   = 5
	searchCacheTTL     = 6 * time.Hour
	stateDBOpenTimeout = time.Second
)

// lazyUpdateHandler откладывает установку реального обработчика апдейтов:
// клиент создаётся раньше менеджера апдейтов, которому нужен его API.
type lazyUpdateHandler struct {
	mu      sync.RWMutex
	handler telegram.UpdateHandler
}

func (h *lazyUpdateHandler) Handle(ctx context.Context, u tg.UpdatesClass) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.handler != nil {
		return h.handler.Handle(ctx, u)
	}
	return nil
}

func (h *lazyUpdateHandler) set(realHandler telegram.UpdateHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handler = realHandler
}

// App агрегирует зависимости бота до авторизации. Всё, что требует имени бота
// (маршрутизатор команд и обработчики апдейтов), собирает Runner после логина.
type App struct {
	env        config.EnvConfig
	mainCtx    context.Context
	mainCancel context.CancelFunc
}

// NewApp создаёт каркас приложения. Фактическая сборка выполняется в Run().
func NewApp(mainCtx context.Context, mainCancel context.CancelFunc, env config.EnvConfig) *App {
	return &App{env: env, mainCtx: mainCtx, mainCancel: mainCancel}
}

// Run собирает клиента и доменные сервисы и передаёт управление Runner.
// Блокируется до остановки приложения.
func (a *App) Run() error {
	logger.Info("Music bot initializing...", zap.String("version", version.String()))
	env := a.env

	dispatcher := tg.NewUpdateDispatcher()
	lazyHandler := &lazyUpdateHandler{}
	waiter := floodwait.NewWaiter()

	options := telegram.Options{
		SessionStorage: &session.FileStorage{Path: env.SessionFile},
		UpdateHandler:  lazyHandler,
		Middlewares: []telegram.Middleware{
			waiter,
			ratelimit.New(rate.Limit(clientRPS), clientRPS*2), //nolint:mnd // burst = 2*rate
		},
		Device: telegram.DeviceConfig{
			DeviceModel:   version.Name,
			SystemVersion: "linux",
			AppVersion:    version.Version,
		},
	}
	if logger.IsDebugEnabled() {
		options.Logger = logger.Named("mtproto")
	}
	if env.TestDC {
		options.DCList = dcs.Test()
	}
	client := telegram.NewClient(env.APIID, env.APIHash, options)
	api := client.API()

	peersSvc, err := peersmgr.New(api, env.PeersFile)
	if err != nil {
		return errors.Wrap(err, "init peers manager")
	}
	if err := peersSvc.LoadFromStorage(a.mainCtx); err != nil {
		logger.Warnf("load peers storage: %v", err)
	}

	if err := storage.EnsureDir(env.StateFile); err != nil {
		_ = peersSvc.Close()
		return errors.Wrap(err, "ensure state file dir")
	}
	stateDB, err := bbolt.Open(env.StateFile, storage.PrivatePerm, &bbolt.Options{Timeout: stateDBOpenTimeout})
	if err != nil {
		_ = peersSvc.Close()
		return errors.Wrap(err, "open state storage")
	}

	updMgr := tgupdates.New(tgupdates.Config{
		Handler:      dispatcher,
		Storage:      boltstor.NewStateStorage(stateDB),
		AccessHasher: peersSvc.Mgr,
	})
	lazyHandler.set(contribstorage.UpdateHook(peersSvc.Mgr.UpdateHook(updMgr), peersSvc.Store()))

	cache, err := cachestore.Open(a.mainCtx, env)
	if err != nil {
		_ = stateDB.Close()
		_ = peersSvc.Close()
		return errors.Wrap(err, "open media cache")
	}
	logger.Infof("media cache backend: %s", env.CacheBackend)

	texts, err := i18n.Load(env.Language)
	if err != nil {
		_ = cache.Close()
		_ = stateDB.Close()
		_ = peersSvc.Close()
		return errors.Wrap(err, "load language")
	}

	// Канал-хранилище: загрузка копий и скачивание по ссылкам из кеша.
	uploadThrottle := throttle.New(env.UploadRPS,
		throttle.WithMaxRetries(uploadMaxRetries),
		throttle.WithWaitExtractors(channel.FloodWaitExtractor()),
	)
	store := channel.New(api, peersSvc, uploadThrottle, env.UploadChannel)
	uploads := concurrency.NewBackground("channel_upload", env.UploadConcurrency)

	deps := media.Deps{
		Store: cache,
		Chat:  store,
		API: media.NewAPIClient(media.APIConfig{
			BaseURL:   env.MediaAPIURL,
			SourceURL: env.MediaAPIURLSource,
			Fallback:  env.MediaAPIURLFallback,
		}, nil),
	}
	if store.Enabled() {
		deps.Uploader = store
		deps.Spawner = uploads
	} else {
		logger.Warn("UPLOAD_CHANNEL is empty: downloaded tracks are not re-uploaded")
	}
	resolver := media.NewResolver(env.DownloadDir, deps)

	// Кеш поисковой выдачи живёт в Redis, если он настроен.
	var rdb *goredis.Client
	var searcher youtube.Searcher = youtube.YTSearch{}
	if env.RedisAddr != "" {
		rdb = goredis.NewClient(&goredis.Options{Addr: env.RedisAddr, Password: env.RedisPassword, DB: env.RedisDB})
		searcher = youtube.NewCachedSearcher(searcher, rdb, searchCacheTTL)
	}
	yt := youtube.New(youtube.Deps{Search: searcher, Resolver: resolver, CookiesDir: env.CookiesDir})

	msgr := messenger.New(api, peersSvc)

	svc := &services{
		client:   client,
		waiter:   waiter,
		updMgr:   updMgr,
		dispatch: dispatcher,
		peers:    peersSvc,
		stateDB:  stateDB,
		cache:    cache,
		rdb:      rdb,
		throttle: uploadThrottle,
		uploads:  uploads,
		dedup:    concurrency.NewDeduplicator(env.DedupWindowSec),
		resolver: resolver,
		youtube:  yt,
		thumbs:   thumbnails.New(env.CacheDir, env.YoutubeImgURL, yt, nil),
		player:   stream.NewManager(stream.LogTransport{}),
		msgr:     msgr,
		logs:     playlogs.New(msgr, env.LogGroupID, env.PlayLogs),
		texts:    texts,
	}

	return NewRunner(a.mainCtx, a.mainCancel, env, svc).Run()
}
