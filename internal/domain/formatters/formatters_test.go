package formatters_test

import (
	"testing"

	"telegram-musicbot/internal/domain/formatters"
)

func TestTimeToSeconds(t *testing.T) {
	t.Parallel()

	cases := map[string]int{
		"":         0,
		"45":       45,
		"3:25":     205,
		"01:02:03": 3723,
		"x:10":     10,
	}
	for in, want := range cases {
		if got := formatters.TimeToSeconds(in); got != want {
			t.Errorf("TimeToSeconds(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestSecondsToMin(t *testing.T) {
	t.Parallel()

	cases := map[int]string{
		0:     "-",
		7:     "00:07",
		205:   "03:25",
		3723:  "01:02:03",
		86405: "01:00:00:05",
	}
	for in, want := range cases {
		if got := formatters.SecondsToMin(in); got != want {
			t.Errorf("SecondsToMin(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestHumanBytes(t *testing.T) {
	t.Parallel()

	cases := map[int64]string{
		512:       "512 B",
		1536:      "1.5 KiB",
		104857600: "100.0 MiB",
	}
	for in, want := range cases {
		if got := formatters.HumanBytes(in); got != want {
			t.Errorf("HumanBytes(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestIsVideoFormat(t *testing.T) {
	t.Parallel()

	if !formatters.IsVideoFormat(".MP4") || formatters.IsVideoFormat("mp3") {
		t.Fatal("IsVideoFormat mismatch")
	}
}
