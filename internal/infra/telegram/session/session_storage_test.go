package session_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	tdsession "github.com/gotd/td/session"

	"telegram-musicbot/internal/infra/telegram/session"
)

func TestFileStorage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fs := &session.FileStorage{Path: filepath.Join(t.TempDir(), "data", "session.json")}

	if _, err := fs.LoadSession(ctx); !errors.Is(err, tdsession.ErrNotFound) {
		t.Fatalf("LoadSession on empty storage: %v, want ErrNotFound", err)
	}
	if err := fs.StoreSession(ctx, []byte(`{"Version":1}`)); err != nil {
		t.Fatalf("StoreSession: %v", err)
	}
	data, err := fs.LoadSession(ctx)
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if string(data) != `{"Version":1}` {
		t.Fatalf("data = %q", data)
	}
}

func TestFileStorage_Nil(t *testing.T) {
	t.Parallel()

	var fs *session.FileStorage
	if _, err := fs.LoadSession(context.Background()); err == nil {
		t.Fatal("nil storage must fail")
	}
}
