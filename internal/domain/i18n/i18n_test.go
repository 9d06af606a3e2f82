package i18n_test

import (
	"strings"
	"testing"

	"telegram-musicbot/internal/domain/i18n"
)

func TestCatalog(t *testing.T) {
	t.Parallel()

	c, err := i18n.Load("xx")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Language() != i18n.DefaultLanguage {
		t.Fatalf("Language = %q, want fallback", c.Language())
	}
	if got := c.T("play_6", 60, "@bot"); !strings.Contains(got, "60 minutes") || !strings.Contains(got, "@bot") {
		t.Errorf("play_6 = %q", got)
	}
	if got := c.T("no_such_key"); got != "no_such_key" {
		t.Errorf("unknown key = %q", got)
	}
	if got := c.Help("adm"); !strings.Contains(got, "/pause") {
		t.Errorf("HELP_ADM = %q", got)
	}
	if got := c.Help("nope"); got != i18n.NotFound {
		t.Errorf("unknown help = %q", got)
	}
}
