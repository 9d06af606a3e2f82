package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("API_ID", "12345")
	t.Setenv("API_HASH", "hash")
	t.Setenv("BOT_TOKEN", "1:token")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	env := cfg.Env
	if env.CacheBackend != CacheBackendJSON {
		t.Errorf("CacheBackend = %q, want %q", env.CacheBackend, CacheBackendJSON)
	}
	if env.DownloadDir != defaultDownloadDir {
		t.Errorf("DownloadDir = %q", env.DownloadDir)
	}
	if env.MediaAPIURLFallback != defaultMediaAPIURLFallback {
		t.Errorf("MediaAPIURLFallback = %q", env.MediaAPIURLFallback)
	}
	if env.AudioFileSizeLimit != defaultAudioFileSizeLimit {
		t.Errorf("AudioFileSizeLimit = %d", env.AudioFileSizeLimit)
	}
	if env.PlayMode != PlayModeDirect {
		t.Errorf("PlayMode = %q", env.PlayMode)
	}
	if env.DurationLimit() != defaultDurationLimitMin*60 {
		t.Errorf("DurationLimit = %d", env.DurationLimit())
	}
	if env.UploadChannel != "" {
		t.Errorf("UploadChannel = %q, want empty", env.UploadChannel)
	}
	if len(cfg.warnings) == 0 {
		t.Error("expected warnings about defaults")
	}
}

func TestLoadConfig_RequiredVariables(t *testing.T) {
	cases := []struct {
		name    string
		unset   string
		wantErr string
	}{
		{name: "без API_ID", unset: "API_ID", wantErr: "API_ID"},
		{name: "без API_HASH", unset: "API_HASH", wantErr: "API_HASH"},
		{name: "без BOT_TOKEN", unset: "BOT_TOKEN", wantErr: "BOT_TOKEN"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tc.unset, "")

			_, err := loadConfig("")
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("err = %v, want mention of %s", err, tc.wantErr)
			}
		})
	}
}

func TestLoadConfig_EnvFile(t *testing.T) {
	setRequired(t)
	// godotenv не перезаписывает уже заданные переменные, поэтому очищаем их через Setenv и Unsetenv.
	for _, key := range []string{"UPLOAD_CHANNEL", "CACHE_BACKEND", "PLAY_MODE", "YOUR_API_URL", "LOG_LEVEL"} {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}

	path := filepath.Join(t.TempDir(), ".env")
	content := strings.Join([]string{
		"UPLOAD_CHANNEL=MusicStore",
		"CACHE_BACKEND=redis",
		"PLAY_MODE=inline",
		"YOUR_API_URL=https://api.example",
		"LOG_LEVEL=verbose",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	env := cfg.Env
	if env.UploadChannel != "@MusicStore" {
		t.Errorf("UploadChannel = %q, want @MusicStore", env.UploadChannel)
	}
	if env.CacheBackend != CacheBackendJSON {
		t.Errorf("redis without REDIS_ADDR must fall back to json, got %q", env.CacheBackend)
	}
	if env.PlayMode != PlayModeInline {
		t.Errorf("PlayMode = %q", env.PlayMode)
	}
	if env.MediaAPIURL != "https://api.example" {
		t.Errorf("MediaAPIURL = %q", env.MediaAPIURL)
	}
	if env.LogLevel != defaultLogLevel {
		t.Errorf("LogLevel = %q", env.LogLevel)
	}
}

func TestSanitizeChannel(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"":              "",
		"  ":            "",
		"@store":        "@store",
		"store":         "@store",
		"-1001234567":   "-1001234567",
		" 1234567890  ": "1234567890",
	}
	for in, want := range cases {
		var warnings []string
		if got := sanitizeChannel(in, &warnings); got != want {
			t.Errorf("sanitizeChannel(%q) = %q, want %q", in, got, want)
		}
	}
}
