// Package stream - очередь воспроизведения по чатам и граница с транспортом голосового чата.
//
// Manager хранит для каждого чата FIFO-очередь, где первый элемент играет сейчас,
// и учитывает прошедшее время для таймера и перемотки. Сам звук отдаёт Transport;
// штатная реализация LogTransport только пишет в лог.
package stream

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"telegram-musicbot/internal/domain/media"
	"telegram-musicbot/internal/infra/logger"
)

// Type - источник потока.
type Type string

const (
	TypeAudio Type = "audio"
	TypeVideo Type = "video"
	TypeIndex Type = "index"
	TypeLive  Type = "live"
)

// SeekStep - шаг перемотки кнопками.
const SeekStep = 20 * time.Second

// seekTail - ближе к концу трека перематывать нельзя.
const seekTail = 10 * time.Second

var (
	ErrNotStreaming   = errors.New("stream: nothing is playing")
	ErrAlreadyPaused  = errors.New("stream: already paused")
	ErrNotPaused      = errors.New("stream: not paused")
	ErrNotSeekable    = errors.New("stream: live stream cannot be seeked")
	ErrSeekOutOfRange = errors.New("stream: seek out of range")
)

// Item - элемент очереди.
type Item struct {
	Title      string
	VideoID    string
	Path       string // локальный файл или ссылка для index/live
	Link       string
	Duration   time.Duration // 0 - прямой эфир
	Kind       media.Kind
	StreamType Type
	UserID     int64
	UserName   string
}

// Live - у элемента нет длительности.
func (i Item) Live() bool { return i.Duration == 0 }

// Transport - подключение к голосовому чату.
type Transport interface {
	Join(ctx context.Context, chatID int64) error
	Play(ctx context.Context, chatID int64, item Item) error
	Pause(ctx context.Context, chatID int64) error
	Resume(ctx context.Context, chatID int64) error
	Seek(ctx context.Context, chatID int64, item Item, offset time.Duration) error
	Stop(ctx context.Context, chatID int64) error
}

// Playing - снимок текущего трека.
type Playing struct {
	Item   Item
	Played time.Duration
	Paused bool
}

type chat struct {
	mu      sync.Mutex
	queue   []Item
	joined  bool
	paused  bool
	started time.Time     // момент последнего запуска или возобновления
	offset  time.Duration // сыграно до started
}

func (c *chat) played(now time.Time) time.Duration {
	if c.paused || c.started.IsZero() {
		return c.offset
	}
	return c.offset + now.Sub(c.started)
}

// Option настраивает Manager.
type Option func(*Manager)

// WithNow подменяет часы (для тестов).
func WithNow(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// Manager - очереди всех чатов.
type Manager struct {
	transport Transport
	now       func() time.Time

	mu    sync.Mutex
	chats map[int64]*chat
}

// NewManager создаёт менеджер поверх transport.
func NewManager(transport Transport, opts ...Option) *Manager {
	m := &Manager{transport: transport, now: time.Now, chats: make(map[int64]*chat)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) chat(chatID int64) *chat {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chats[chatID]
	if !ok {
		c = &chat{}
		m.chats[chatID] = c
	}
	return c
}

func (m *Manager) start(ctx context.Context, chatID int64, c *chat, item Item) error {
	if !c.joined {
		if err := m.transport.Join(ctx, chatID); err != nil {
			return errors.Wrap(err, "join voice chat")
		}
		c.joined = true
	}
	if err := m.transport.Play(ctx, chatID, item); err != nil {
		return errors.Wrap(err, "play")
	}
	c.paused = false
	c.offset = 0
	c.started = m.now()
	return nil
}

// Play ставит item в очередь и возвращает позицию (0 - играет сразу).
// force заменяет текущий трек, остальная очередь сохраняется.
func (m *Manager) Play(ctx context.Context, chatID int64, item Item, force bool) (int, error) {
	c := m.chat(chatID)
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.queue) > 0 && !force {
		c.queue = append(c.queue, item)
		return len(c.queue) - 1, nil
	}
	if err := m.start(ctx, chatID, c, item); err != nil {
		return 0, err
	}
	if len(c.queue) == 0 {
		c.queue = []Item{item}
	} else {
		c.queue[0] = item
	}
	logger.Debug("stream: playing", zap.Int64("chat", chatID), zap.String("title", item.Title), zap.Bool("force", force))
	return 0, nil
}

// Pause ставит воспроизведение на паузу.
func (m *Manager) Pause(ctx context.Context, chatID int64) error {
	c := m.chat(chatID)
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return ErrNotStreaming
	}
	if c.paused {
		return ErrAlreadyPaused
	}
	if err := m.transport.Pause(ctx, chatID); err != nil {
		return errors.Wrap(err, "pause")
	}
	c.offset = c.played(m.now())
	c.paused = true
	return nil
}

// Resume снимает паузу.
func (m *Manager) Resume(ctx context.Context, chatID int64) error {
	c := m.chat(chatID)
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return ErrNotStreaming
	}
	if !c.paused {
		return ErrNotPaused
	}
	if err := m.transport.Resume(ctx, chatID); err != nil {
		return errors.Wrap(err, "resume")
	}
	c.paused = false
	c.started = m.now()
	return nil
}

// PauseResume переключает паузу и возвращает новое состояние.
func (m *Manager) PauseResume(ctx context.Context, chatID int64) (bool, error) {
	now, ok := m.Now(chatID)
	if !ok {
		return false, ErrNotStreaming
	}
	if now.Paused {
		return false, m.Resume(ctx, chatID)
	}
	return true, m.Pause(ctx, chatID)
}

// Skip запускает следующий трек. ok=false - очередь кончилась, транспорт остановлен.
func (m *Manager) Skip(ctx context.Context, chatID int64) (Item, bool, error) {
	c := m.chat(chatID)
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return Item{}, false, ErrNotStreaming
	}
	c.queue = c.queue[1:]
	if len(c.queue) == 0 {
		return Item{}, false, m.stopLocked(ctx, chatID, c)
	}
	next := c.queue[0]
	if err := m.start(ctx, chatID, c, next); err != nil {
		return Item{}, false, err
	}
	return next, true, nil
}

// Stop очищает очередь и выходит из голосового чата.
func (m *Manager) Stop(ctx context.Context, chatID int64) error {
	c := m.chat(chatID)
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 && !c.joined {
		return ErrNotStreaming
	}
	return m.stopLocked(ctx, chatID, c)
}

func (m *Manager) stopLocked(ctx context.Context, chatID int64, c *chat) error {
	c.queue = nil
	c.paused = false
	c.offset = 0
	c.started = time.Time{}
	if !c.joined {
		return nil
	}
	c.joined = false
	if err := m.transport.Stop(ctx, chatID); err != nil {
		return errors.Wrap(err, "stop")
	}
	return nil
}

// Replay запускает текущий трек сначала.
func (m *Manager) Replay(ctx context.Context, chatID int64) (Item, error) {
	c := m.chat(chatID)
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return Item{}, ErrNotStreaming
	}
	cur := c.queue[0]
	if err := m.start(ctx, chatID, c, cur); err != nil {
		return Item{}, err
	}
	return cur, nil
}

// Seek сдвигает позицию на delta (отрицательный - назад) и возвращает новую позицию.
func (m *Manager) Seek(ctx context.Context, chatID int64, delta time.Duration) (time.Duration, error) {
	c := m.chat(chatID)
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return 0, ErrNotStreaming
	}
	cur := c.queue[0]
	if cur.Live() {
		return 0, ErrNotSeekable
	}
	now := m.now()
	target := max(c.played(now)+delta, 0)
	if target > cur.Duration-seekTail {
		return 0, ErrSeekOutOfRange
	}
	if err := m.transport.Seek(ctx, chatID, cur, target); err != nil {
		return 0, errors.Wrap(err, "seek")
	}
	c.offset = target
	c.started = now
	return target, nil
}

// Queue - копия очереди, первый элемент играет сейчас.
func (m *Manager) Queue(chatID int64) []Item {
	c := m.chat(chatID)
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Item(nil), c.queue...)
}

// Now - текущий трек и сколько из него сыграно.
func (m *Manager) Now(chatID int64) (Playing, bool) {
	c := m.chat(chatID)
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return Playing{}, false
	}
	return Playing{Item: c.queue[0], Played: c.played(m.now()), Paused: c.paused}, true
}

// Active - число чатов с непустой очередью.
func (m *Manager) Active() int {
	m.mu.Lock()
	chats := make([]*chat, 0, len(m.chats))
	for _, c := range m.chats {
		chats = append(chats, c)
	}
	m.mu.Unlock()

	n := 0
	for _, c := range chats {
		c.mu.Lock()
		if len(c.queue) > 0 {
			n++
		}
		c.mu.Unlock()
	}
	return n
}

// LogTransport пишет действия в лог и ничего не воспроизводит.
type LogTransport struct{}

func (LogTransport) Join(_ context.Context, chatID int64) error {
	logger.Info("voice chat: join", zap.Int64("chat", chatID))
	return nil
}

func (LogTransport) Play(_ context.Context, chatID int64, item Item) error {
	logger.Info("voice chat: play",
		zap.Int64("chat", chatID),
		zap.String("title", item.Title),
		zap.String("path", item.Path),
		zap.String("type", string(item.StreamType)),
	)
	return nil
}

func (LogTransport) Pause(_ context.Context, chatID int64) error {
	logger.Info("voice chat: pause", zap.Int64("chat", chatID))
	return nil
}

func (LogTransport) Resume(_ context.Context, chatID int64) error {
	logger.Info("voice chat: resume", zap.Int64("chat", chatID))
	return nil
}

func (LogTransport) Seek(_ context.Context, chatID int64, item Item, offset time.Duration) error {
	logger.Info("voice chat: seek", zap.Int64("chat", chatID), zap.String("title", item.Title), zap.Duration("offset", offset))
	return nil
}

func (LogTransport) Stop(_ context.Context, chatID int64) error {
	logger.Info("voice chat: leave", zap.Int64("chat", chatID))
	return nil
}
