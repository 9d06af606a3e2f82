package stream_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"telegram-musicbot/internal/domain/stream"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
}

func (r *recorder) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Join(r.calls, ",")
}

func (r *recorder) Join(context.Context, int64) error { r.add("join"); return nil }
func (r *recorder) Play(_ context.Context, _ int64, it stream.Item) error {
	r.add("play:" + it.Title)
	return nil
}
func (r *recorder) Pause(context.Context, int64) error { r.add("pause"); return nil }
func (r *recorder) Resume(context.Context, int64) error { r.add("resume"); return nil }
func (r *recorder) Seek(_ context.Context, _ int64, _ stream.Item, d time.Duration) error {
	r.add("seek:" + d.String())
	return nil
}
func (r *recorder) Stop(context.Context, int64) error { r.add("stop"); return nil }

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func item(title string, d time.Duration) stream.Item {
	return stream.Item{Title: title, Duration: d, StreamType: stream.TypeAudio}
}

const chat = int64(-1001)

func newManager() (*stream.Manager, *recorder, *clock) {
	rec := &recorder{}
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	return stream.NewManager(rec, stream.WithNow(clk.now)), rec, clk
}

func TestPlay_QueueAndSkip(t *testing.T) {
	t.Parallel()

	m, rec, _ := newManager()
	ctx := context.Background()

	if pos, err := m.Play(ctx, chat, item("a", time.Minute), false); err != nil || pos != 0 {
		t.Fatalf("first Play = %d, %v", pos, err)
	}
	if pos, _ := m.Play(ctx, chat, item("b", time.Minute), false); pos != 1 {
		t.Fatalf("second Play pos = %d, want 1", pos)
	}
	if pos, _ := m.Play(ctx, chat, item("c", time.Minute), false); pos != 2 {
		t.Fatalf("third Play pos = %d, want 2", pos)
	}
	if got := len(m.Queue(chat)); got != 3 {
		t.Fatalf("queue len = %d", got)
	}

	next, ok, err := m.Skip(ctx, chat)
	if err != nil || !ok || next.Title != "b" {
		t.Fatalf("Skip = %v, %v, %v", next.Title, ok, err)
	}
	_, _, _ = m.Skip(ctx, chat)
	if _, ok, err := m.Skip(ctx, chat); ok || err != nil {
		t.Fatalf("last Skip = %v, %v", ok, err)
	}
	if _, ok := m.Now(chat); ok {
		t.Fatal("queue must be empty")
	}
	if got, want := rec.String(), "join,play:a,play:b,play:c,stop"; got != want {
		t.Fatalf("transport calls = %s, want %s", got, want)
	}
}

func TestPlay_ForceReplacesCurrent(t *testing.T) {
	t.Parallel()

	m, _, _ := newManager()
	ctx := context.Background()
	_, _ = m.Play(ctx, chat, item("a", time.Minute), false)
	_, _ = m.Play(ctx, chat, item("b", time.Minute), false)

	if pos, err := m.Play(ctx, chat, item("x", time.Minute), true); err != nil || pos != 0 {
		t.Fatalf("force Play = %d, %v", pos, err)
	}
	q := m.Queue(chat)
	if len(q) != 2 || q[0].Title != "x" || q[1].Title != "b" {
		t.Fatalf("queue = %+v", q)
	}
}

func TestPauseResumeTracksTime(t *testing.T) {
	t.Parallel()

	m, _, clk := newManager()
	ctx := context.Background()
	_, _ = m.Play(ctx, chat, item("a", 5*time.Minute), false)

	clk.advance(30 * time.Second)
	if paused, err := m.PauseResume(ctx, chat); err != nil || !paused {
		t.Fatalf("PauseResume = %v, %v", paused, err)
	}
	if err := m.Pause(ctx, chat); !errors.Is(err, stream.ErrAlreadyPaused) {
		t.Fatalf("second Pause err = %v", err)
	}
	clk.advance(time.Hour)
	now, _ := m.Now(chat)
	if now.Played != 30*time.Second || !now.Paused {
		t.Fatalf("paused Now = %+v", now)
	}

	if err := m.Resume(ctx, chat); err != nil {
		t.Fatal(err)
	}
	clk.advance(10 * time.Second)
	now, _ = m.Now(chat)
	if now.Played != 40*time.Second {
		t.Fatalf("Played = %v, want 40s", now.Played)
	}
	if err := m.Resume(ctx, chat); !errors.Is(err, stream.ErrNotPaused) {
		t.Fatalf("Resume err = %v", err)
	}
}

func TestSeek(t *testing.T) {
	t.Parallel()

	m, rec, clk := newManager()
	ctx := context.Background()
	_, _ = m.Play(ctx, chat, item("a", time.Minute), false)
	clk.advance(5 * time.Second)

	if pos, err := m.Seek(ctx, chat, -stream.SeekStep); err != nil || pos != 0 {
		t.Fatalf("Seek back = %v, %v", pos, err)
	}
	if pos, err := m.Seek(ctx, chat, stream.SeekStep); err != nil || pos != 20*time.Second {
		t.Fatalf("Seek forward = %v, %v", pos, err)
	}
	if _, err := m.Seek(ctx, chat, 40*time.Second); !errors.Is(err, stream.ErrSeekOutOfRange) {
		t.Fatalf("Seek past end err = %v", err)
	}
	if !strings.Contains(rec.String(), "seek:20s") {
		t.Fatalf("calls = %s", rec)
	}

	_, _ = m.Play(ctx, 7, item("live", 0), false)
	if _, err := m.Seek(ctx, 7, stream.SeekStep); !errors.Is(err, stream.ErrNotSeekable) {
		t.Fatalf("live Seek err = %v", err)
	}
}

func TestControlsWithoutStream(t *testing.T) {
	t.Parallel()

	m, _, _ := newManager()
	ctx := context.Background()
	checks := map[string]error{
		"pause":  m.Pause(ctx, chat),
		"resume": m.Resume(ctx, chat),
		"stop":   m.Stop(ctx, chat),
	}
	_, checks["replay"] = m.Replay(ctx, chat)
	_, _, checks["skip"] = m.Skip(ctx, chat)
	for name, err := range checks {
		if !errors.Is(err, stream.ErrNotStreaming) {
			t.Errorf("%s: err = %v, want ErrNotStreaming", name, err)
		}
	}
}

func TestReplayAndStop(t *testing.T) {
	t.Parallel()

	m, rec, clk := newManager()
	ctx := context.Background()
	_, _ = m.Play(ctx, chat, item("a", time.Minute), false)
	clk.advance(25 * time.Second)

	if cur, err := m.Replay(ctx, chat); err != nil || cur.Title != "a" {
		t.Fatalf("Replay = %v, %v", cur.Title, err)
	}
	if now, _ := m.Now(chat); now.Played != 0 {
		t.Fatalf("Played after replay = %v", now.Played)
	}
	if m.Active() != 1 {
		t.Fatalf("Active = %d", m.Active())
	}
	if err := m.Stop(ctx, chat); err != nil {
		t.Fatal(err)
	}
	if m.Active() != 0 {
		t.Fatal("Active after Stop must be 0")
	}
	if got, want := rec.String(), "join,play:a,play:a,stop"; got != want {
		t.Fatalf("calls = %s, want %s", got, want)
	}
}

func TestProbeIndex(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/master.m3u8":
			w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
			_, _ = w.Write([]byte("#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=1280000\nlow.m3u8\n"))
		case "/vod.m3u8":
			_, _ = w.Write([]byte("#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:10\n#EXTINF:9.0,\na.ts\n#EXTINF:9.0,\nb.ts\n#EXT-X-ENDLIST\n"))
		case "/song.mp3":
			w.Header().Set("Content-Type", "audio/mpeg")
			_, _ = w.Write([]byte("ID3"))
		case "/page":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	ctx := context.Background()
	info, err := stream.ProbeIndex(ctx, srv.Client(), srv.URL+"/master.m3u8")
	if err != nil || !info.Master || info.Variants != 1 {
		t.Fatalf("master = %+v, %v", info, err)
	}
	info, err = stream.ProbeIndex(ctx, srv.Client(), srv.URL+"/vod.m3u8?token=1")
	if err != nil || info.Master || info.Segments != 2 || info.Live {
		t.Fatalf("vod = %+v, %v", info, err)
	}
	if _, err := stream.ProbeIndex(ctx, srv.Client(), srv.URL+"/song.mp3"); err != nil {
		t.Fatalf("direct audio: %v", err)
	}
	for _, path := range []string{"/page", "/missing"} {
		if _, err := stream.ProbeIndex(ctx, srv.Client(), srv.URL+path); !errors.Is(err, stream.ErrNotStreamable) {
			t.Errorf("%s: err = %v, want ErrNotStreamable", path, err)
		}
	}
}
