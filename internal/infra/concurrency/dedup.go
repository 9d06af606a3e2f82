// Package concurrency - вспомогательная инфраструктура конкурентного исполнения.
// Deduplicator - потокобезопасный кэш «недавно видели»: подавляет повторную обработку
// одного и того же апдейта (gotd может доставить сообщение дважды после переподключения,
// пользователь может дважды нажать кнопку). Background - группа фоновых задач
// с ограничением параллельности.
package concurrency

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"telegram-musicbot/internal/infra/logger"
)

// Deduplicator хранит ключи недавно обработанных событий со сроком годности.
type Deduplicator struct {
	mu     sync.Mutex
	seen   map[string]time.Time // key -> expireAt
	window time.Duration
	now    func() time.Time

	runMu  sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDeduplicator создаёт кэш с окном windowSec секунд.
func NewDeduplicator(windowSec int) *Deduplicator {
	return &Deduplicator{
		seen:   make(map[string]time.Time),
		window: time.Duration(windowSec) * time.Second,
		now:    time.Now,
	}
}

// Start поднимает фоновую очистку просроченных ключей. Повторный вызов игнорируется.
func (d *Deduplicator) Start(ctx context.Context) {
	if ctx == nil {
		return
	}
	d.runMu.Lock()
	defer d.runMu.Unlock()
	if d.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.wg.Go(func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				d.Cleanup()
			}
		}
	})
}

// Stop завершает фоновую очистку и дожидается её.
func (d *Deduplicator) Stop() {
	d.runMu.Lock()
	cancel := d.cancel
	d.cancel = nil
	d.runMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	d.wg.Wait()
}

// Seen возвращает true, если key уже встречался в пределах окна; иначе регистрирует его.
func (d *Deduplicator) Seen(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if exp, ok := d.seen[key]; ok && now.Before(exp) {
		logger.Debug("dedup: repeated event", zap.String("key", key))
		return true
	}
	d.seen[key] = now.Add(d.window)
	return false
}

// SeenMessage - Seen для сообщения: ключ "<chatID>:<msgID>".
func (d *Deduplicator) SeenMessage(chatID int64, msgID int) bool {
	return d.Seen(strconv.FormatInt(chatID, 10) + ":" + strconv.Itoa(msgID))
}

// Cleanup удаляет просроченные ключи.
func (d *Deduplicator) Cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	for k, exp := range d.seen {
		if now.After(exp) {
			delete(d.seen, k)
		}
	}
}

// Len - число живых ключей (для статистики CLI).
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
