package media_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"telegram-musicbot/internal/domain/media"
	"telegram-musicbot/internal/infra/storage"
)

type memStore struct {
	mu      sync.Mutex
	entries map[string]media.Entry
}

func newMemStore() *memStore { return &memStore{entries: map[string]media.Entry{}} }

func (s *memStore) Lookup(_ context.Context, id string, kind media.Kind) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	link := s.entries[id].Get(kind)
	return link, link != "", nil
}

func (s *memStore) Save(_ context.Context, id string, kind media.Kind, link string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = s.entries[id].With(kind, link)
	return nil
}

func (s *memStore) Forget(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

func (s *memStore) Len(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries), nil
}

func (s *memStore) Close() error { return nil }

type fakeChat struct {
	calls atomic.Int32
	fail  bool
}

func (c *fakeChat) FetchMedia(_ context.Context, _ media.RemotePointer, dest string) error {
	c.calls.Add(1)
	if c.fail {
		return errors.New("MESSAGE_ID_INVALID")
	}
	return storage.AtomicWriteFile(dest, []byte("from-telegram"))
}

type fakeAPI struct {
	calls   atomic.Int32
	resp    media.APIResponse
	err     error
	release chan struct{}
}

func (a *fakeAPI) Download(context.Context, string, media.Kind) (media.APIResponse, error) {
	a.calls.Add(1)
	if a.release != nil {
		<-a.release
	}
	return a.resp, a.err
}

func (a *fakeAPI) Stream(_ context.Context, _, dest string, _ media.Kind) (int64, error) {
	return storage.CopyAtomic(dest, strings.NewReader("from-stream"))
}

type fakeUploader struct {
	calls atomic.Int32
}

func (u *fakeUploader) Upload(context.Context, string, string, media.Kind) (media.RemotePointer, error) {
	u.calls.Add(1)
	return media.RemotePointer{Username: "MusicStore", MessageID: 100}, nil
}

// syncSpawner выполняет задачу сразу, чтобы тесты видели её результат.
type syncSpawner struct{}

func (syncSpawner) Go(_ string, fn func(ctx context.Context) error) bool {
	_ = fn(context.Background())
	return true
}

func TestResolve_MissCallsAPIOnce(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{err: errors.New("connection refused")}
	r := media.NewResolver(t.TempDir(), media.Deps{Store: newMemStore(), Chat: &fakeChat{}, API: api})

	_, err := r.Resolve(context.Background(), "abc123", media.KindAudio)
	if !errors.Is(err, media.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if api.calls.Load() != 1 {
		t.Fatalf("api calls = %d, want 1", api.calls.Load())
	}
}

func TestResolve_InvalidResponseIsFailure(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{resp: media.APIResponse{Status: "error"}}
	r := media.NewResolver(t.TempDir(), media.Deps{API: api})

	if _, err := r.Resolve(context.Background(), "abc123", media.KindVideo); !errors.Is(err, media.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if api.calls.Load() != 1 {
		t.Fatalf("api calls = %d", api.calls.Load())
	}
}

func TestResolve_LocalFileNoNetwork(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "abc123.webm"), []byte("song"), 0o644); err != nil {
		t.Fatal(err)
	}
	api := &fakeAPI{}
	chat := &fakeChat{}
	store := newMemStore()
	_ = store.Save(context.Background(), "abc123", media.KindAudio, "https://t.me/MusicStore/1")
	r := media.NewResolver(dir, media.Deps{Store: store, Chat: chat, API: api})

	res, err := r.Resolve(context.Background(), "abc123", media.KindAudio)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Source != media.SourceLocal {
		t.Fatalf("source = %s", res.Source)
	}
	if api.calls.Load() != 0 || chat.calls.Load() != 0 {
		t.Fatalf("network calls: api=%d chat=%d", api.calls.Load(), chat.calls.Load())
	}
}

func TestResolve_CacheHit(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	_ = store.Save(context.Background(), "abc123", media.KindVideo, "https://t.me/c/1234/5")
	api := &fakeAPI{}
	r := media.NewResolver(t.TempDir(), media.Deps{Store: store, Chat: &fakeChat{}, API: api})

	res, err := r.Resolve(context.Background(), "abc123", media.KindVideo)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Source != media.SourceChannel || !strings.HasSuffix(res.Path, "abc123.mkv") {
		t.Fatalf("res = %+v", res)
	}
	if api.calls.Load() != 0 {
		t.Fatal("api must not be called on cache hit")
	}
}

func TestResolve_CacheHitIsNotReuploaded(t *testing.T) {
	t.Parallel()

	const cached = "https://t.me/MusicStore/7"
	store := newMemStore()
	_ = store.Save(context.Background(), "abc123", media.KindAudio, cached)
	uploader := &fakeUploader{}
	r := media.NewResolver(t.TempDir(), media.Deps{
		Store: store, Chat: &fakeChat{}, API: &fakeAPI{}, Uploader: uploader, Spawner: syncSpawner{},
	})

	res, err := r.Resolve(context.Background(), "abc123", media.KindAudio)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Source != media.SourceChannel {
		t.Fatalf("source = %s", res.Source)
	}
	if uploader.calls.Load() != 0 {
		t.Fatalf("uploads = %d, want 0", uploader.calls.Load())
	}
	if link, _, _ := store.Lookup(context.Background(), "abc123", media.KindAudio); link != cached {
		t.Fatalf("cached link = %q, want %q", link, cached)
	}
}

func TestResolve_StaleLinkFallsThroughToAPI(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	_ = store.Save(context.Background(), "abc123", media.KindAudio, "https://t.me/MusicStore/404")
	chat := &fakeChat{fail: true}
	api := &fakeAPI{resp: media.APIResponse{Status: "success", StreamURL: "http://cdn/file"}}
	uploader := &fakeUploader{}
	r := media.NewResolver(t.TempDir(), media.Deps{
		Store: store, Chat: chat, API: api, Uploader: uploader, Spawner: syncSpawner{},
	})

	res, err := r.Resolve(context.Background(), "abc123", media.KindAudio)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Source != media.SourceAPIStream {
		t.Fatalf("source = %s", res.Source)
	}
	if api.calls.Load() != 1 {
		t.Fatalf("api calls = %d", api.calls.Load())
	}
	if got, _ := os.ReadFile(res.Path); string(got) != "from-stream" {
		t.Fatalf("content = %q", got)
	}
	if uploader.calls.Load() != 1 {
		t.Fatalf("uploads = %d, want 1", uploader.calls.Load())
	}
	link, _, _ := store.Lookup(context.Background(), "abc123", media.KindAudio)
	if link != "https://t.me/MusicStore/100" {
		t.Fatalf("cached link = %q, want uploaded link", link)
	}
	if st := r.Stats(); st.StaleLinks != 1 || st.APIStream != 1 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestResolve_APITelegramLinkIsCached(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	api := &fakeAPI{resp: media.APIResponse{Link: "https://t.me/ApiStore/77"}}
	r := media.NewResolver(t.TempDir(), media.Deps{Store: store, Chat: &fakeChat{}, API: api})

	res, err := r.Resolve(context.Background(), "abc123", media.KindAudio)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Source != media.SourceAPIPointer {
		t.Fatalf("source = %s", res.Source)
	}
	link, ok, _ := store.Lookup(context.Background(), "abc123", media.KindAudio)
	if !ok || link != "https://t.me/ApiStore/77" {
		t.Fatalf("cached link = %q", link)
	}
}

func TestResolve_ConcurrentRequestsShareOneDownload(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		resp:    media.APIResponse{Status: "success", StreamURL: "http://cdn/file"},
		release: make(chan struct{}),
	}
	r := media.NewResolver(t.TempDir(), media.Deps{Store: newMemStore(), API: api})

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for range workers {
		wg.Go(func() {
			_, err := r.Resolve(context.Background(), "abc123", media.KindAudio)
			errs <- err
		})
	}
	time.Sleep(50 * time.Millisecond)
	close(api.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
	}
	if api.calls.Load() != 1 {
		t.Fatalf("api calls = %d, want 1", api.calls.Load())
	}
}

func TestResolve_InvalidID(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	r := media.NewResolver(t.TempDir(), media.Deps{API: api})
	if _, err := r.Resolve(context.Background(), "x", media.KindAudio); !errors.Is(err, media.ErrInvalidID) {
		t.Fatalf("err = %v", err)
	}
	if api.calls.Load() != 0 {
		t.Fatal("api must not be called for invalid id")
	}
}

func TestResolve_CallerCancelDoesNotBreakSharedFlight(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		resp:    media.APIResponse{Status: "success", StreamURL: "http://cdn/file"},
		release: make(chan struct{}),
	}
	r := media.NewResolver(t.TempDir(), media.Deps{API: api})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := r.Resolve(ctx, "abc123", media.KindAudio)
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	close(api.release)
	res, err := r.Resolve(context.Background(), "abc123", media.KindAudio)
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if res.Path == "" {
		t.Fatal("empty path")
	}
	if api.calls.Load() != 1 {
		t.Fatalf("api calls = %d, want 1", api.calls.Load())
	}
}
