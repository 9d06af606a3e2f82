package shared_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"telegram-musicbot/internal/shared"
)

func TestGetAt(t *testing.T) {
	t.Parallel()

	s := []string{"a", "b"}
	if v, ok := shared.GetAt(s, 1); !ok || v != "b" {
		t.Fatalf("GetAt(1) = %q, %v", v, ok)
	}
	if _, ok := shared.GetAt(s, 2); ok {
		t.Fatal("GetAt out of range returned ok")
	}
	if _, ok := shared.GetAt(s, -1); ok {
		t.Fatal("GetAt negative returned ok")
	}
}

func TestRandomToken(t *testing.T) {
	t.Parallel()

	const alphabet = "ABC123"
	tok := shared.RandomToken(10, alphabet)
	if len(tok) != 10 {
		t.Fatalf("len = %d", len(tok))
	}
	for _, r := range tok {
		if !strings.ContainsRune(alphabet, r) {
			t.Fatalf("unexpected rune %q", r)
		}
	}
	if shared.RandomToken(0, alphabet) != "" {
		t.Fatal("zero length must give empty token")
	}
}

func TestTruncateRunes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		max  int
		want string
	}{
		{in: "привет мир", max: 6, want: "привет"},
		{in: "short", max: 20, want: "short"},
		{in: "abc", max: 0, want: ""},
	}
	for _, tc := range cases {
		got := shared.TruncateRunes(tc.in, tc.max)
		if got != tc.want || !utf8.ValidString(got) {
			t.Errorf("TruncateRunes(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
		}
	}
}

func TestChoice(t *testing.T) {
	t.Parallel()

	if _, ok := shared.Choice([]int(nil)); ok {
		t.Fatal("Choice on empty slice returned ok")
	}
	v, ok := shared.Choice([]int{42})
	if !ok || v != 42 {
		t.Fatalf("Choice = %d, %v", v, ok)
	}
}
