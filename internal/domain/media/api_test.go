package media_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"telegram-musicbot/internal/domain/media"
)

func TestAPIClient_Download(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/download" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("url") != "abc123" || r.URL.Query().Get("type") != "video" {
			http.Error(w, "bad query", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"status":"success","stream_url":"http://x/y","extra":1}`))
	}))
	defer srv.Close()

	client := media.NewAPIClient(media.APIConfig{BaseURL: srv.URL + "/"}, srv.Client())
	resp, err := client.Download(context.Background(), "abc123", media.KindVideo)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if !resp.Streamable() || resp.TelegramLink() {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestAPIClient_DownloadNon200(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := media.NewAPIClient(media.APIConfig{BaseURL: srv.URL}, srv.Client())
	if _, err := client.Download(context.Background(), "abc123", media.KindAudio); err == nil {
		t.Fatal("expected error on 502")
	}
}

func TestAPIClient_BaseURLFromSourceOnce(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/raw" {
			hits.Add(1)
			_, _ = w.Write([]byte("  https://api.example  \n"))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := media.NewAPIClient(media.APIConfig{SourceURL: srv.URL + "/raw", Fallback: "https://fallback"}, srv.Client())
	for range 3 {
		base, err := client.BaseURL(context.Background())
		if err != nil {
			t.Fatalf("BaseURL: %v", err)
		}
		if base != "https://api.example" {
			t.Fatalf("base = %q", base)
		}
	}
	if hits.Load() != 1 {
		t.Fatalf("source fetched %d times, want 1", hits.Load())
	}
}

func TestAPIClient_BaseURLFallback(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := media.NewAPIClient(media.APIConfig{SourceURL: srv.URL, Fallback: "https://fallback/"}, srv.Client())
	base, err := client.BaseURL(context.Background())
	if err != nil || base != "https://fallback" {
		t.Fatalf("base = %q, %v", base, err)
	}

	empty := media.NewAPIClient(media.APIConfig{}, nil)
	if _, err := empty.BaseURL(context.Background()); err == nil {
		t.Fatal("expected error without any url")
	}
}

func TestAPIClient_Stream(t *testing.T) {
	t.Parallel()

	payload := strings.Repeat("x", 40000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(payload))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "abc123.webm")
	client := media.NewAPIClient(media.APIConfig{BaseURL: srv.URL}, srv.Client())
	n, err := client.Stream(context.Background(), srv.URL+"/file", dest, media.KindAudio)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if n != int64(len(payload)) {
		t.Fatalf("n = %d", n)
	}
	got, _ := os.ReadFile(dest)
	if string(got) != payload {
		t.Fatal("payload mismatch")
	}
}
