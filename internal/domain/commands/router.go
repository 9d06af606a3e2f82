package commands

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"telegram-musicbot/internal/domain/keyboards"
	"telegram-musicbot/internal/domain/playlogs"
	"telegram-musicbot/internal/infra/logger"
	"telegram-musicbot/internal/tgutil"
)

// Режимы ответа на /play.
const (
	PlayModeDirect = "Direct"
	PlayModeInline = "Inline"
)

// Config - настройки команд.
type Config struct {
	BotName            string
	DurationLimitMin   int
	AudioFileSizeLimit int64
	VideoFileSizeLimit int64
	PlaylistLimit      int
	PlayMode           string
	DownloadDir        string
	SupportURL         string
	StartImgURL        string
	PlaylistImgURL     string
	YoutubeImgURL      string
	OwnerID            int64
}

// DurationLimit - лимит длительности в секундах.
func (c Config) DurationLimit() int { return c.DurationLimitMin * 60 } //nolint:mnd // минуты в секунды

// Deps - зависимости Router. Logs и Admin опциональны.
type Deps struct {
	Messenger Messenger
	YouTube   YouTube
	Player    Player
	Thumbs    Thumbnailer
	Probe     Prober
	Texts     Texts
	Logs      PlayLogger
	Admin     Executor
}

// Router разбирает команды и нажатия кнопок.
type Router struct {
	cfg  Config
	msgr Messenger
	yt   YouTube
	play Player
	thm  Thumbnailer
	prb  Prober
	t    Texts
	logs PlayLogger
	adm  Executor

	mu      sync.Mutex
	lyrical map[string]string // ключ кнопки -> id плейлиста
}

// NewRouter собирает Router.
func NewRouter(cfg Config, deps Deps) *Router {
	return &Router{
		cfg:     cfg,
		msgr:    deps.Messenger,
		yt:      deps.YouTube,
		play:    deps.Player,
		thm:     deps.Thumbs,
		prb:     deps.Probe,
		t:       deps.Texts,
		logs:    deps.Logs,
		adm:     deps.Admin,
		lyrical: make(map[string]string),
	}
}

// HandleMessage выполняет команду из сообщения. Не команды игнорируются.
func (r *Router) HandleMessage(ctx context.Context, m Message) error {
	cmd, mention, args, ok := tgutil.SplitCommand(m.Text)
	if !ok {
		return nil
	}
	if mention != "" && r.cfg.BotName != "" && !strings.EqualFold(mention, r.cfg.BotName) {
		return nil
	}

	switch cmd {
	case "play", "vplay", "cplay", "cvplay", "playforce", "vplayforce", "cplayforce", "cvplayforce":
		if m.Chat.Private {
			return nil
		}
		return r.playCommand(ctx, m, cmd, args)
	case "help":
		return r.helpCommand(ctx, m)
	case "start":
		if m.Chat.Private {
			return r.helpCommand(ctx, m)
		}
		return nil
	case "queue", "playing":
		return r.queueCommand(ctx, m)
	case "pause", "resume", "skip", "next", "stop", "end", "replay", "seek", "seekback":
		if m.Chat.Private {
			return nil
		}
		return r.controlCommand(ctx, m, cmd, args)
	case "stats":
		return r.statsCommand(ctx, m)
	default:
		return nil
	}
}

// HandleCallback обрабатывает нажатие кнопки.
func (r *Router) HandleCallback(ctx context.Context, q CallbackQuery) error {
	cb := keyboards.ParseCallback(q.Data)
	switch cb.Command {
	case "MusicStream":
		return r.onMusicStream(ctx, q, cb)
	case "LiveStream":
		return r.onLiveStream(ctx, q, cb)
	case "AlonePlaylists":
		return r.onPlaylist(ctx, q, cb)
	case "slider":
		return r.onSlider(ctx, q, cb)
	case "forceclose":
		return r.onForceClose(ctx, q, cb)
	case "close":
		_ = r.msgr.Delete(ctx, q.Chat.ID, q.MsgID)
		return r.msgr.Answer(ctx, q.QueryID, "", false)
	case "GetTimer":
		return r.onTimer(ctx, q)
	case "GetQueued":
		return r.onQueued(ctx, q, cb)
	case "queue_back_timer":
		return r.onQueueBack(ctx, q, cb)
	case "ADMIN":
		return r.onAdmin(ctx, q, cb)
	case "help_callback":
		return r.onHelpSection(ctx, q, cb)
	case "help_main_menu":
		return r.onHelpMenu(ctx, q)
	default:
		return r.msgr.Answer(ctx, q.QueryID, "", false)
	}
}

// ownButton проверяет, что кнопку нажал тот, кто запросил трек.
func (r *Router) ownButton(ctx context.Context, q CallbackQuery, uid string) bool {
	if uid == fmt.Sprint(q.From.ID) {
		return true
	}
	_ = r.msgr.Answer(ctx, q.QueryID, r.t.T("playcb_1"), true)
	return false
}

// canControl - управлять потоком могут админы чата и владелец бота.
func (r *Router) canControl(ctx context.Context, chatID int64, u User) bool {
	if r.cfg.OwnerID != 0 && u.ID == r.cfg.OwnerID {
		return true
	}
	ok, err := r.msgr.IsAdmin(ctx, chatID, u.ID)
	if err != nil {
		logger.Debug("admin check failed", zap.Int64("chat", chatID), zap.Int64("user", u.ID), zap.Error(err))
		return false
	}
	return ok
}

func (r *Router) report(ctx context.Context, chat Chat, u User, query, streamType string) {
	if r.logs == nil {
		return
	}
	r.logs.Report(ctx, playlogs.Event{
		BotMention:   r.cfg.BotName,
		ChatID:       chat.ID,
		ChatTitle:    chat.Title,
		ChatUsername: chat.Username,
		UserID:       u.ID,
		UserName:     u.Name(),
		UserUsername: u.Username,
		Query:        query,
		StreamType:   streamType,
	})
}

// exceptionName - короткое имя ошибки для general_2.
func exceptionName(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			break
		}
		err = next
	}
	name := fmt.Sprintf("%T", err)
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}
