package throttle_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"telegram-musicbot/internal/infra/throttle"
)

type stopErr struct{}

func (stopErr) Error() string   { return "stop" }
func (stopErr) StopRetry() bool { return true }

var errFlood = errors.New("flood")

func newStarted(t *testing.T, opts ...throttle.Option) *throttle.Throttler {
	t.Helper()
	opts = append([]throttle.Option{
		throttle.WithBaseDelay(time.Millisecond),
		throttle.WithRandom(func() float64 { return 0.5 }),
	}, opts...)
	th := throttle.New(1000, opts...)
	th.Start(context.Background())
	t.Cleanup(th.Stop)
	return th
}

func TestDo_NotStarted(t *testing.T) {
	t.Parallel()

	th := throttle.New(1)
	err := th.Do(context.Background(), func() error { return nil })
	if !errors.Is(err, throttle.ErrNotStarted) {
		t.Fatalf("err = %v, want ErrNotStarted", err)
	}
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	t.Parallel()

	th := newStarted(t)
	calls := 0
	err := th.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestDo_StopRetryer(t *testing.T) {
	t.Parallel()

	th := newStarted(t)
	calls := 0
	err := th.Do(context.Background(), func() error {
		calls++
		return stopErr{}
	})
	if !errors.As(err, new(stopErr)) {
		t.Fatalf("err = %v, want stopErr", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestDo_MaxRetries(t *testing.T) {
	t.Parallel()

	th := newStarted(t, throttle.WithMaxRetries(2))
	calls := 0
	boom := errors.New("boom")
	err := th.Do(context.Background(), func() error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped boom", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3 (1 + 2 retries)", calls)
	}
}

func TestDo_WaitExtractorDoesNotCountAttempts(t *testing.T) {
	t.Parallel()

	extractor := func(err error) (time.Duration, bool) {
		if errors.Is(err, errFlood) {
			return time.Millisecond, true
		}
		return 0, false
	}
	th := newStarted(t, throttle.WithMaxRetries(1), throttle.WithWaitExtractors(extractor))

	calls := 0
	err := th.Do(context.Background(), func() error {
		calls++
		if calls <= 4 {
			return errFlood
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 5 {
		t.Fatalf("calls = %d, want 5", calls)
	}
}

func TestDo_StopInterruptsWaiting(t *testing.T) {
	t.Parallel()

	th := throttle.New(1000, throttle.WithBaseDelay(time.Hour))
	th.Start(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- th.Do(context.Background(), func() error { return errors.New("always") })
	}()

	time.Sleep(20 * time.Millisecond)
	th.Stop()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after Stop")
	}
}
