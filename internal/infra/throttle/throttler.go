// Package throttle - ограничение скорости и повторные попытки для исходящих вызовов Telegram.
// Скорость держит rate.Limiter (RPS + burst), повторы идут с экспоненциальным backoff
// и джиттером. Серверные требования подождать (FLOOD_WAIT) распознают WaitExtractor'ы,
// StopRetryer обрывает ретраи сразу. Do потокобезопасен, Start/Stop идемпотентны.
package throttle

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"golang.org/x/time/rate"
)

const burstMultiplier = 2

// WaitExtractor достаёт из ошибки паузу, которую просит сервер. ok=false - формат не распознан.
type WaitExtractor func(err error) (time.Duration, bool)

// StopRetryer - ошибка, после которой повторять бессмысленно.
type StopRetryer interface {
	StopRetry() bool
}

// Option настраивает Throttler при создании.
type Option func(*Throttler)

// WithMaxRetries ограничивает число повторов. <=0 - без ограничения.
func WithMaxRetries(maxRetries int) Option {
	return func(t *Throttler) { t.maxRetries = maxRetries }
}

// WithBurst задаёт ёмкость бакета. <=0 - 2*rate.
func WithBurst(burst int) Option {
	return func(t *Throttler) { t.burst = burst }
}

// WithBaseDelay задаёт первую паузу backoff (по умолчанию 1 с).
func WithBaseDelay(d time.Duration) Option {
	return func(t *Throttler) {
		if d > 0 {
			t.baseDelay = d
		}
	}
}

// WithWaitExtractors регистрирует экстракторы; первый совпавший определяет паузу.
func WithWaitExtractors(extractors ...WaitExtractor) Option {
	return func(t *Throttler) {
		t.waitExtractors = append(t.waitExtractors, extractors...)
	}
}

// WithRandom подменяет источник случайности джиттера (для тестов).
func WithRandom(fn func() float64) Option {
	return func(t *Throttler) {
		if fn != nil {
			t.randomFn = fn
		}
	}
}

// ErrNotStarted возвращается, если Do вызван до Start.
var ErrNotStarted = errors.New("throttle: Start must be called before Do")

// Throttler объединяет лимитер и стратегию повторов.
type Throttler struct {
	limiter *rate.Limiter
	burst   int

	waitExtractors []WaitExtractor
	maxRetries     int
	baseDelay      time.Duration
	randomFn       func() float64

	mu      sync.Mutex
	rootCtx context.Context
	cancel  context.CancelFunc
}

// New создаёт троттлер на rps операций в секунду.
func New(rps int, opts ...Option) *Throttler {
	if rps <= 0 {
		rps = 1
	}
	t := &Throttler{
		burst:      rps * burstMultiplier,
		maxRetries: -1,
		baseDelay:  time.Second,
		randomFn:   rand.Float64,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.burst <= 0 {
		t.burst = rps * burstMultiplier
	}
	t.limiter = rate.NewLimiter(rate.Limit(rps), t.burst)
	return t
}

// Start привязывает троттлер к жизненному циклу ctx. Повторный вызов игнорируется.
func (t *Throttler) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.rootCtx != nil {
		return
	}
	t.rootCtx, t.cancel = context.WithCancel(ctx)
}

// Stop прерывает все ожидающие Do. Повторный вызов безопасен.
func (t *Throttler) Stop() {
	t.mu.Lock()
	cancel := t.cancel
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Do выполняет fn с учётом лимита и стратегии повторов:
//   - StopRetryer или отмена контекста - ошибка возвращается сразу;
//   - экстрактор распознал паузу - ждём её и повторяем, attempt не растёт;
//   - иначе backoff 2^attempt * baseDelay (не более 60 с) с джиттером ±15%.
func (t *Throttler) Do(ctx context.Context, fn func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	root := t.root()
	if root == nil {
		return ErrNotStarted
	}
	ctx, cancel := mergeCancel(ctx, root)
	defer cancel()

	attempt := 0
	for {
		if err := t.limiter.Wait(ctx); err != nil {
			return errors.Wrap(err, "throttle wait")
		}

		callErr := fn()
		if callErr == nil {
			return nil
		}

		var stopper StopRetryer
		waitDur, hasWait := t.extractWait(callErr)

		switch {
		case errors.As(callErr, &stopper) && stopper.StopRetry():
			return callErr
		case errors.Is(callErr, context.Canceled) || errors.Is(callErr, context.DeadlineExceeded):
			return callErr
		case hasWait:
			if err := sleep(ctx, waitDur); err != nil {
				return err
			}
			continue
		}

		if t.maxRetries > 0 && attempt >= t.maxRetries {
			return errors.Wrapf(callErr, "throttle: max retries reached (%d)", t.maxRetries)
		}
		delay := t.backoff(attempt)
		attempt++
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
}

func (t *Throttler) root() context.Context {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rootCtx
}

func (t *Throttler) extractWait(err error) (time.Duration, bool) {
	for _, extractor := range t.waitExtractors {
		if extractor == nil {
			continue
		}
		if wait, ok := extractor(err); ok {
			return wait, true
		}
	}
	return 0, false
}

func (t *Throttler) backoff(attempt int) time.Duration {
	const (
		jitterRange = 0.3
		jitterMin   = 0.85
		maxDelay    = 60 * time.Second
	)
	d := time.Duration(float64(t.baseDelay) * math.Pow(2, float64(attempt))) //nolint:mnd // основание степени
	if d > maxDelay || d <= 0 {
		d = maxDelay
	}
	return time.Duration(float64(d) * (t.randomFn()*jitterRange + jitterMin))
}

// mergeCancel возвращает ctx, который отменяется и вместе с root.
func mergeCancel(ctx, root context.Context) (context.Context, context.CancelFunc) {
	merged, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(root, cancel)
	return merged, func() {
		stop()
		cancel()
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
