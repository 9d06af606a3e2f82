package commands_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"telegram-musicbot/internal/domain/commands"
	"telegram-musicbot/internal/domain/media"
	"telegram-musicbot/internal/infra/concurrency"
)

type fakeResolver struct {
	dir     string
	links   map[string]string
	stats   media.Stats
	forgets []string
}

func (f *fakeResolver) Stats() media.Stats { return f.stats }

func (f *fakeResolver) Lookup(_ context.Context, id string, kind media.Kind) (string, bool, error) {
	link, ok := f.links[id+kind.Ext()]
	return link, ok, nil
}

func (f *fakeResolver) Forget(_ context.Context, id string) error {
	f.forgets = append(f.forgets, id)
	return nil
}

func (f *fakeResolver) LocalPath(id string, kind media.Kind) string {
	return filepath.Join(f.dir, id+kind.Ext())
}

type counter int

func (c counter) Len(context.Context) (int, error) { return int(c), nil }

type active int

func (a active) Active() int { return int(a) }

type uploads concurrency.BackgroundStats

func (u uploads) Stats() concurrency.BackgroundStats { return concurrency.BackgroundStats(u) }

func TestExecutor_Stats(t *testing.T) {
	t.Parallel()

	res := &fakeResolver{stats: media.Stats{LocalHits: 3, APIStream: 2}}
	ex := commands.NewExecutor(res, counter(5), active(1), uploads{Succeeded: 4})
	st, err := ex.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.CachedTracks != 5 || st.ActiveChats != 1 || st.Uploads.Succeeded != 4 || st.Resolver.LocalHits != 3 {
		t.Fatalf("stats = %+v", st)
	}

	if _, err := commands.NewExecutor(nil, nil, nil, nil).Stats(context.Background()); err == nil {
		t.Fatal("stats without resolver must fail")
	}
}

func TestExecutor_LookupAndForget(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "dQw4w9WgXcQ"+media.KindAudio.Ext()), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	res := &fakeResolver{dir: dir, links: map[string]string{
		"dQw4w9WgXcQ" + media.KindVideo.Ext(): "https://t.me/store/12",
	}}
	ex := commands.NewExecutor(res, nil, nil, nil)
	ctx := context.Background()

	got, err := ex.Lookup(ctx, "dQw4w9WgXcQ")
	if err != nil {
		t.Fatal(err)
	}
	if !got.AudioLocal || got.VideoLocal || got.Audio != "" || got.Video != "https://t.me/store/12" {
		t.Fatalf("lookup = %+v", got)
	}

	for _, bad := range []string{"", "ab", "../etc", "a/b/c"} {
		if _, err := ex.Lookup(ctx, bad); !errors.Is(err, media.ErrInvalidID) {
			t.Errorf("Lookup(%q) err = %v", bad, err)
		}
		if err := ex.Forget(ctx, bad); !errors.Is(err, media.ErrInvalidID) {
			t.Errorf("Forget(%q) err = %v", bad, err)
		}
	}
	if err := ex.Forget(ctx, "dQw4w9WgXcQ"); err != nil {
		t.Fatal(err)
	}
	if len(res.forgets) != 1 {
		t.Fatalf("forgets = %v", res.forgets)
	}

	v, _ := ex.Version(ctx)
	if v.Name == "" || v.Version == "" {
		t.Fatalf("version = %+v", v)
	}
}
