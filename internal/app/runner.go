package app

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/gotd/contrib/middleware/floodwait"
	"github.com/gotd/td/telegram"
	tgupdates "github.com/gotd/td/telegram/updates"
	"github.com/gotd/td/tg"
	goredis "github.com/redis/go-redis/v9"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"telegram-musicbot/internal/adapters/cli"
	"telegram-musicbot/internal/adapters/telegram/messenger"
	"telegram-musicbot/internal/domain/commands"
	"telegram-musicbot/internal/domain/i18n"
	"telegram-musicbot/internal/domain/media"
	"telegram-musicbot/internal/domain/playlogs"
	"telegram-musicbot/internal/domain/stream"
	"telegram-musicbot/internal/domain/thumbnails"
	domainupdates "telegram-musicbot/internal/domain/updates"
	"telegram-musicbot/internal/domain/youtube"
	"telegram-musicbot/internal/infra/concurrency"
	"telegram-musicbot/internal/infra/config"
	"telegram-musicbot/internal/infra/logger"
	"telegram-musicbot/internal/infra/telegram/peersmgr"
	"telegram-musicbot/internal/infra/throttle"
)

// services - всё, что собрано в App.Run до авторизации.
type services struct {
	client   *telegram.Client
	waiter   *floodwait.Waiter
	updMgr   *tgupdates.Manager
	dispatch tg.UpdateDispatcher
	peers    *peersmgr.Service
	stateDB  *bbolt.DB
	cache    media.CacheStore
	rdb      *goredis.Client // nil без REDIS_ADDR
	throttle *throttle.Throttler
	uploads  *concurrency.Background
	dedup    *concurrency.Deduplicator
	resolver *media.Resolver
	youtube  *youtube.Platform
	thumbs   *thumbnails.Generator
	player   *stream.Manager
	msgr     *messenger.Messenger
	logs     *playlogs.Reporter
	texts    *i18n.Catalog
}

// Runner ведёт сценарий запуска и остановки:
//   - авторизация бота и получение self,
//   - сборка маршрутизатора команд (ему нужно имя бота),
//   - линейный запуск сервисов и менеджера апдейтов,
//   - остановка в обратном порядке, пока MTProto-движок ещё жив.
type Runner struct {
	env        config.EnvConfig
	svc        *services
	mainCtx    context.Context
	mainCancel context.CancelFunc

	mu            sync.Mutex // handlers, cliService, updatesCancel, stopped
	handlers      *domainupdates.Handlers
	cliService    *cli.Service
	updatesCancel context.CancelFunc
	stopped       bool
	updatesWG     sync.WaitGroup
	stopOnce      sync.Once
}

// NewRunner подготавливает Runner.
func NewRunner(mainCtx context.Context, mainCancel context.CancelFunc, env config.EnvConfig, svc *services) *Runner {
	return &Runner{env: env, svc: svc, mainCtx: mainCtx, mainCancel: mainCancel}
}

// Run - главный цикл бота. Для MTProto-движка используется отдельный контекст,
// чтобы сервисы успели остановиться до гашения сетевого уровня.
func (r *Runner) Run() error {
	clientCtx, clientCancel := context.WithCancel(context.Background())
	defer clientCancel()

	var shutdownWG sync.WaitGroup
	shutdownWG.Go(func() {
		<-r.mainCtx.Done()
		logger.Debug("Shutdown signal received, stopping runner...")
		r.stopAllServices()
		clientCancel()
	})

	err := r.svc.waiter.Run(clientCtx, func(ctx context.Context) error {
		return r.svc.client.Run(ctx, func(ctx context.Context) error {
			self, err := r.login(ctx)
			if err != nil {
				return err
			}
			if err := r.startAllServices(ctx, self); err != nil {
				return err
			}
			logger.Info("Music bot running...")

			<-ctx.Done()
			return ctx.Err()
		})
	})

	// Клиент мог упасть сам: сервисы всё равно останавливаем и закрываем хранилища.
	r.mainCancel()
	shutdownWG.Wait()
	r.closeStorages()

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (r *Runner) login(ctx context.Context) (*tg.User, error) {
	status, err := r.svc.client.Auth().Status(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "auth status")
	}
	if !status.Authorized {
		if _, err := r.svc.client.Auth().Bot(ctx, r.env.BotToken); err != nil {
			return nil, errors.Wrap(err, "bot auth")
		}
	}

	self, err := r.svc.client.Self(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "get self")
	}
	logger.Info("Logged in as:",
		zap.String("FirstName", self.FirstName),
		zap.String("Username", self.Username),
		zap.Int64("ID", self.ID),
	)
	return self, nil
}

// commandsConfig переносит настройки окружения в настройки команд.
func commandsConfig(env config.EnvConfig, botName string) commands.Config {
	return commands.Config{
		BotName:            botName,
		DurationLimitMin:   env.DurationLimitMin,
		AudioFileSizeLimit: env.AudioFileSizeLimit,
		VideoFileSizeLimit: env.VideoFileSizeLimit,
		PlaylistLimit:      env.PlaylistFetchLimit,
		PlayMode:           env.PlayMode,
		DownloadDir:        env.DownloadDir,
		SupportURL:         env.SupportGroup,
		StartImgURL:        env.StartImgURL,
		PlaylistImgURL:     env.PlaylistImgURL,
		YoutubeImgURL:      env.YoutubeImgURL,
		OwnerID:            env.OwnerID,
	}
}

func probeLink(ctx context.Context, link string) error {
	info, err := stream.ProbeIndex(ctx, nil, link)
	if err != nil {
		return err
	}
	logger.Debug("index link probed",
		zap.Bool("playlist", info.Playlist),
		zap.Int("variants", info.Variants),
		zap.Bool("live", info.Live),
	)
	return nil
}

func (r *Runner) startAllServices(ctx context.Context, self *tg.User) error {
	s := r.svc
	if err := s.peers.Mgr.Init(ctx); err != nil {
		logger.Warnf("peers manager init: %v", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return context.Canceled
	}

	logger.Debug("starting service throttle")
	s.throttle.Start(ctx)

	logger.Debug("starting service channel_upload")
	s.uploads.Start(ctx)

	logger.Debug("starting service deduplicator")
	s.dedup.Start(ctx)

	executor := commands.NewExecutor(s.resolver, s.cache, s.player, s.uploads)
	router := commands.NewRouter(commandsConfig(r.env, self.Username), commands.Deps{
		Messenger: s.msgr,
		YouTube:   s.youtube,
		Player:    s.player,
		Thumbs:    s.thumbs,
		Probe:     probeLink,
		Texts:     s.texts,
		Logs:      s.logs,
		Admin:     executor,
	})

	logger.Debug("starting service domain_handlers")
	r.handlers = domainupdates.NewHandlers(router, s.msgr, s.dedup)
	s.dispatch.OnNewMessage(r.handlers.OnNewMessage)
	s.dispatch.OnNewChannelMessage(r.handlers.OnNewChannelMessage)
	s.dispatch.OnBotCallbackQuery(r.handlers.OnBotCallbackQuery)
	r.handlers.Start(ctx)

	if r.env.CLI && cli.Interactive() {
		logger.Debug("starting service cli")
		r.cliService = cli.NewService(executor, r.mainCancel)
		r.cliService.Start(ctx)
	}

	logger.Debug("starting service updates_manager")
	updatesCtx, updatesCancel := context.WithCancel(ctx)
	r.updatesCancel = updatesCancel
	r.updatesWG.Go(func() {
		mgrErr := s.updMgr.Run(updatesCtx, s.client.API(), self.ID, tgupdates.AuthOptions{
			IsBot: true,
			OnStart: func(context.Context) {
				logger.Debug("Updates manager started")
			},
		})
		if mgrErr != nil && !errors.Is(mgrErr, context.Canceled) {
			logger.Errorf("updates manager: %v", mgrErr)
			r.mainCancel()
		}
	})
	return nil
}

// stopAllServices останавливает сервисы в обратном порядке. Повторный вызов безопасен.
func (r *Runner) stopAllServices() {
	r.stopOnce.Do(func() {
		s := r.svc
		r.mu.Lock()
		r.stopped = true
		updatesCancel, cliService, handlers := r.updatesCancel, r.cliService, r.handlers
		r.mu.Unlock()

		logger.Debug("stopping service updates_manager")
		if updatesCancel != nil {
			updatesCancel()
		}
		r.updatesWG.Wait()

		if cliService != nil {
			logger.Debug("stopping service cli")
			cliService.Stop()
		}

		if handlers != nil {
			logger.Debug("stopping service domain_handlers")
			handlers.Stop()
		}

		logger.Debug("stopping service deduplicator")
		s.dedup.Stop()

		logger.Debug("stopping service channel_upload")
		s.uploads.Stop()

		logger.Debug("stopping service throttle")
		s.throttle.Stop()
	})
}

func (r *Runner) closeStorages() {
	s := r.svc
	if err := s.cache.Close(); err != nil {
		logger.Errorf("close media cache: %v", err)
	}
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			logger.Errorf("close redis: %v", err)
		}
	}
	if err := s.stateDB.Close(); err != nil {
		logger.Errorf("close state storage: %v", err)
	}
	if err := s.peers.Close(); err != nil {
		logger.Errorf("close peers storage: %v", err)
	}
}
