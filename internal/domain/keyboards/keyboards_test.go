package keyboards_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/gotd/td/tg"

	"telegram-musicbot/internal/domain/keyboards"
)

type texts struct{}

func (texts) T(key string, _ ...any) string { return key }

func data(t *testing.T, m *tg.ReplyInlineMarkup, r, c int) string {
	t.Helper()
	if r >= len(m.Rows) || c >= len(m.Rows[r].Buttons) {
		t.Fatalf("no button at %d:%d", r, c)
	}
	btn, ok := m.Rows[r].Buttons[c].(*tg.KeyboardButtonCallback)
	if !ok {
		t.Fatalf("button %d:%d is %T", r, c, m.Rows[r].Buttons[c])
	}
	return string(btn.Data)
}

func TestTrack(t *testing.T) {
	t.Parallel()

	m := keyboards.Track(texts{}, "dQw4w9WgXcQ", 42, keyboards.Flags{Channel: true, Force: true})
	if got := data(t, m, 0, 0); got != "MusicStream dQw4w9WgXcQ|42|a|c|f" {
		t.Errorf("audio = %q", got)
	}
	if got := data(t, m, 0, 1); got != "MusicStream dQw4w9WgXcQ|42|v|c|f" {
		t.Errorf("video = %q", got)
	}
	if got := data(t, m, 1, 0); got != "forceclose dQw4w9WgXcQ|42" {
		t.Errorf("close = %q", got)
	}
}

func TestShipTimeline(t *testing.T) {
	t.Parallel()

	cases := []struct {
		played, dur int
		shipAt      int
	}{
		{played: 0, dur: 0, shipAt: 0},
		{played: 30, dur: 60, shipAt: 6},
		{played: 60, dur: 60, shipAt: 11},
		{played: 90, dur: 60, shipAt: 11},
	}
	for _, tc := range cases {
		bar := keyboards.ShipTimeline(tc.played, tc.dur)
		cells := []rune(bar)
		if len(cells) != 12 {
			t.Fatalf("len(%q) = %d", bar, len(cells))
		}
		if string(cells[tc.shipAt]) != "𓊝" {
			t.Errorf("ShipTimeline(%d, %d) = %q, ship expected at %d", tc.played, tc.dur, bar, tc.shipAt)
		}
	}
}

func TestStreamTimer(t *testing.T) {
	t.Parallel()

	m := keyboards.StreamTimer(texts{}, -1001, "0:30", "1:00", 30, 60)
	if got := data(t, m, 0, 1); got != "ADMIN Pause|-1001" {
		t.Errorf("pause = %q", got)
	}
	if got := data(t, m, 1, 0); got != "GetTimer" {
		t.Errorf("timer = %q", got)
	}
	label := m.Rows[1].Buttons[0].(*tg.KeyboardButtonCallback).Text
	if !strings.HasPrefix(label, "0:30  ") || !strings.HasSuffix(label, "  1:00") {
		t.Errorf("timer label = %q", label)
	}
	if got := data(t, m, 2, 2); got != "ADMIN Forward|-1001" {
		t.Errorf("forward = %q", got)
	}
}

func TestSlider_CallbackFitsLimit(t *testing.T) {
	t.Parallel()

	query := strings.Repeat("песня|", 10)
	m := keyboards.Slider(texts{}, "dQw4w9WgXcQ", 1234567890, query, 3, keyboards.Flags{})
	for _, c := range []int{0, 2} {
		d := data(t, m, 1, c)
		if len(d) > keyboards.MaxCallbackData {
			t.Errorf("callback %q is %d bytes", d, len(d))
		}
		if !utf8.ValidString(d) {
			t.Errorf("callback %q is not valid utf-8", d)
		}
		parsed := keyboards.ParseCallback(d)
		if parsed.Command != "slider" || len(parsed.Args) != 6 || parsed.Arg(1) != "3" {
			t.Errorf("parsed = %+v", parsed)
		}
	}
}

func TestPlaylistAndLivestream(t *testing.T) {
	t.Parallel()

	p := keyboards.Playlist(texts{}, "ABCDE12345", 7, "yt", keyboards.Flags{})
	if got := data(t, p, 0, 1); got != "AlonePlaylists ABCDE12345|7|yt|v|g|d" {
		t.Errorf("playlist = %q", got)
	}
	l := keyboards.Livestream(texts{}, "live1234567", 7, keyboards.Flags{Video: true})
	if got := data(t, l, 0, 0); got != "LiveStream live1234567|7|v|g|d" {
		t.Errorf("livestream = %q", got)
	}
}

func TestHelpPanels(t *testing.T) {
	t.Parallel()

	if m := keyboards.HelpPanel(texts{}, true); len(m.Rows) != 3 || data(t, m, 2, 0) != "help_main_menu" {
		t.Errorf("help panel rows = %d", len(m.Rows))
	}
	if m := keyboards.HelpPanel(texts{}, false); len(m.Rows) != 2 {
		t.Errorf("help panel without back rows = %d", len(m.Rows))
	}
	if m := keyboards.PrivateHelpPanel(); len(m.Rows) != 4 || data(t, m, 3, 0) != "help_callback game" {
		t.Errorf("private panel = %+v", m)
	}
}

func TestQueueAndAQ(t *testing.T) {
	t.Parallel()

	if got := data(t, keyboards.Queue("c", "vid12345678"), 0, 0); got != "GetQueued c|vid12345678" {
		t.Errorf("queue = %q", got)
	}
	if got := data(t, keyboards.QueueBack("g"), 0, 0); got != "queue_back_timer g" {
		t.Errorf("queue back = %q", got)
	}
	aq := keyboards.AQ(5)
	if len(aq.Rows) != 3 || data(t, aq, 2, 1) != "ADMIN Stop|5" {
		t.Errorf("aq = %+v", aq)
	}
}

func TestParseCallback(t *testing.T) {
	t.Parallel()

	c := keyboards.ParseCallback("ADMIN Skip|-100123")
	if c.Command != "ADMIN" || c.Arg(0) != "Skip" || c.Arg(1) != "-100123" || c.Arg(5) != "" {
		t.Fatalf("parsed = %+v", c)
	}
	if c := keyboards.ParseCallback("close"); c.Command != "close" || len(c.Args) != 0 {
		t.Fatalf("close = %+v", c)
	}
}
