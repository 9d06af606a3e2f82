package concurrency

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"telegram-musicbot/internal/infra/logger"
)

// BackgroundStats - счётчики группы фоновых задач.
type BackgroundStats struct {
	Running   int
	Started   int64
	Succeeded int64
	Failed    int64
	Skipped   int64 // отклонены: ключ уже в работе или группа остановлена
}

// Background запускает именованные фоновые задачи, результат которых вызывающий не ждёт.
// Параллельность ограничена семафором, одновременно живёт не больше одной задачи на ключ,
// Stop отменяет контекст задач и дожидается их завершения.
type Background struct {
	name string
	sem  *semaphore.Weighted

	mu      sync.Mutex
	running map[string]string // key -> task id
	ctx     context.Context
	cancel  context.CancelFunc
	stopped bool
	wg      sync.WaitGroup

	started   atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	skipped   atomic.Int64
}

// NewBackground создаёт группу с лимитом limit одновременно выполняемых задач.
func NewBackground(name string, limit int) *Background {
	if limit <= 0 {
		limit = 1
	}
	return &Background{
		name:    name,
		sem:     semaphore.NewWeighted(int64(limit)),
		running: make(map[string]string),
	}
}

// Start задаёт родительский контекст задач. До Start задачи не принимаются.
func (b *Background) Start(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctx != nil || b.stopped {
		return
	}
	b.ctx, b.cancel = context.WithCancel(ctx)
}

// Go ставит задачу fn под ключом key. Возвращает false, если задача с таким ключом
// уже выполняется или группа не запущена.
func (b *Background) Go(key string, fn func(ctx context.Context) error) bool {
	b.mu.Lock()
	if b.ctx == nil || b.stopped {
		b.mu.Unlock()
		b.skipped.Add(1)
		return false
	}
	if _, busy := b.running[key]; busy {
		b.mu.Unlock()
		b.skipped.Add(1)
		logger.Debug("background: task already running", zap.String("group", b.name), zap.String("key", key))
		return false
	}
	taskID := uuid.NewString()
	b.running[key] = taskID
	ctx := b.ctx
	b.wg.Add(1)
	b.mu.Unlock()

	b.started.Add(1)
	go func() {
		defer b.wg.Done()
		defer b.release(key)

		if err := b.sem.Acquire(ctx, 1); err != nil {
			b.failed.Add(1)
			logger.Debug("background: task cancelled before start",
				zap.String("group", b.name), zap.String("key", key), zap.String("task", taskID))
			return
		}
		defer b.sem.Release(1)

		if err := b.run(ctx, fn); err != nil {
			b.failed.Add(1)
			logger.Warn("background: task failed",
				zap.String("group", b.name), zap.String("key", key), zap.String("task", taskID), zap.Error(err))
			return
		}
		b.succeeded.Add(1)
		logger.Debug("background: task done",
			zap.String("group", b.name), zap.String("key", key), zap.String("task", taskID))
	}()
	return true
}

// run изолирует панику задачи: фоновая загрузка не должна ронять бота.
func (b *Background) run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}

func (b *Background) release(key string) {
	b.mu.Lock()
	delete(b.running, key)
	b.mu.Unlock()
}

// Wait дожидается завершения всех принятых задач, не отменяя их.
func (b *Background) Wait() {
	b.wg.Wait()
}

// Stop отменяет задачи и ждёт их выхода. Повторный вызов безопасен.
func (b *Background) Stop() {
	b.mu.Lock()
	b.stopped = true
	cancel := b.cancel
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	b.wg.Wait()
}

// Stats возвращает снимок счётчиков.
func (b *Background) Stats() BackgroundStats {
	b.mu.Lock()
	running := len(b.running)
	b.mu.Unlock()
	return BackgroundStats{
		Running:   running,
		Started:   b.started.Load(),
		Succeeded: b.succeeded.Load(),
		Failed:    b.failed.Load(),
		Skipped:   b.skipped.Load(),
	}
}
