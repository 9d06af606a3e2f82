// Package updates связывает апдейты gotd с командами бота: переводит tg.Message и
// нажатия кнопок в commands.Message / commands.CallbackQuery, отсекает повторы
// (Deduplicator) и выполняет команды в отдельных горутинах, чтобы долгая загрузка
// трека не задерживала диспетчер. Stop дожидается всех запущенных команд.
package updates

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/gotd/td/tg"
	"go.uber.org/zap"

	"telegram-musicbot/internal/domain/commands"
	"telegram-musicbot/internal/infra/concurrency"
	"telegram-musicbot/internal/infra/logger"
	"telegram-musicbot/internal/support/debug"
	"telegram-musicbot/internal/tgutil"
)

// Router - получатель разобранных событий.
type Router interface {
	HandleMessage(ctx context.Context, m commands.Message) error
	HandleCallback(ctx context.Context, q commands.CallbackQuery) error
}

// ReplyFetcher подгружает сообщение, на которое ответили.
type ReplyFetcher interface {
	FetchReply(ctx context.Context, msg *tg.Message) (*tg.Message, error)
}

// Handlers реализует реакции на апдейты.
type Handlers struct {
	router  Router
	replies ReplyFetcher
	dup     *concurrency.Deduplicator

	mu      sync.Mutex
	runCtx  context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stopped bool
}

// NewHandlers собирает обработчики. replies может быть nil: тогда ответы не подгружаются.
func NewHandlers(router Router, replies ReplyFetcher, dup *concurrency.Deduplicator) *Handlers {
	return &Handlers{router: router, replies: replies, dup: dup}
}

// Start задаёт контекст, в котором выполняются команды. Повторный вызов игнорируется.
func (h *Handlers) Start(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.runCtx != nil || h.stopped {
		return
	}
	h.runCtx, h.cancel = context.WithCancel(ctx)
}

// Stop отменяет выполняющиеся команды и ждёт их завершения.
func (h *Handlers) Stop() {
	h.mu.Lock()
	h.stopped = true
	cancel := h.cancel
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	h.wg.Wait()
}

// spawn запускает fn в контексте Start; до Start и после Stop событие отбрасывается.
func (h *Handlers) spawn(name string, fn func(ctx context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.runCtx == nil || h.stopped {
		logger.Debug("update dropped: handlers are not running", zap.String("kind", name))
		return
	}
	ctx := h.runCtx
	h.wg.Go(func() {
		if err := fn(ctx); err != nil {
			logger.Warn("update handler failed", zap.String("kind", name), zap.Error(err))
		}
	})
}

// OnNewMessage - сообщения из лички и обычных групп.
func (h *Handlers) OnNewMessage(_ context.Context, e tg.Entities, u *tg.UpdateNewMessage) error {
	h.onMessage("message", e, u.Message)
	return nil
}

// OnNewChannelMessage - сообщения супергрупп и каналов.
func (h *Handlers) OnNewChannelMessage(_ context.Context, e tg.Entities, u *tg.UpdateNewChannelMessage) error {
	h.onMessage("channel message", e, u.Message)
	return nil
}

func (h *Handlers) onMessage(kind string, e tg.Entities, m tg.MessageClass) {
	msg, ok := m.(*tg.Message)
	if !ok || msg.Out {
		return
	}
	if _, _, _, isCmd := tgutil.SplitCommand(msg.Message); !isCmd {
		return
	}
	chatID := tgutil.BotAPIID(msg.PeerID)
	if h.dup != nil && h.dup.SeenMessage(chatID, msg.ID) {
		return
	}
	debug.PrintUpdate(kind, msg, e)

	cm := ToMessage(msg, e)
	h.spawn(kind, func(ctx context.Context) error {
		if h.replies != nil {
			reply, err := h.replies.FetchReply(ctx, msg)
			if err != nil {
				logger.Debug("reply not loaded", zap.Int64("chat", chatID), zap.Int("msg", msg.ID), zap.Error(err))
			}
			cm.Reply = reply
		}
		return h.router.HandleMessage(ctx, cm)
	})
}

// OnBotCallbackQuery - нажатия inline-кнопок.
func (h *Handlers) OnBotCallbackQuery(_ context.Context, e tg.Entities, u *tg.UpdateBotCallbackQuery) error {
	if h.dup != nil && h.dup.Seen("cb:"+strconv.FormatInt(u.QueryID, 10)) {
		return nil
	}
	debug.PrintCallback(u.Peer, u.UserID, string(u.Data), e)
	q := ToCallback(u, e)
	h.spawn("callback", func(ctx context.Context) error {
		return h.router.HandleCallback(ctx, q)
	})
	return nil
}

// ToMessage переводит сообщение gotd в commands.Message. Reply не заполняется.
func ToMessage(msg *tg.Message, e tg.Entities) commands.Message {
	return commands.Message{
		Chat: chatOf(msg.PeerID, e),
		From: userOf(tgutil.SenderID(msg), e),
		ID:   msg.ID,
		Text: msg.Message,
		Raw:  msg,
	}
}

// ToCallback переводит нажатие кнопки в commands.CallbackQuery.
func ToCallback(u *tg.UpdateBotCallbackQuery, e tg.Entities) commands.CallbackQuery {
	return commands.CallbackQuery{
		QueryID: u.QueryID,
		Chat:    chatOf(u.Peer, e),
		From:    userOf(u.UserID, e),
		MsgID:   u.MsgID,
		Data:    string(u.Data),
	}
}

func chatOf(peer tg.PeerClass, e tg.Entities) commands.Chat {
	c := commands.Chat{ID: tgutil.BotAPIID(peer)}
	switch p := peer.(type) {
	case *tg.PeerUser:
		c.Private = true
		if u, ok := e.Users[p.UserID]; ok {
			c.Title = strings.TrimSpace(u.FirstName + " " + u.LastName)
			c.Username = u.Username
		}
	case *tg.PeerChat:
		if ch, ok := e.Chats[p.ChatID]; ok {
			c.Title = ch.Title
		}
	case *tg.PeerChannel:
		if ch, ok := e.Channels[p.ChannelID]; ok {
			c.Title = ch.Title
			c.Username = ch.Username
		}
	}
	return c
}

func userOf(id int64, e tg.Entities) commands.User {
	u := commands.User{ID: id}
	if user, ok := e.Users[id]; ok {
		u.FirstName = user.FirstName
		u.LastName = user.LastName
		u.Username = user.Username
	}
	return u
}
