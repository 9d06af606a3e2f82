// Package thumbnails готовит превью трека 1920×1080 в CACHE_DIR.
package thumbnails

import (
	"context"
	"image"
	_ "image/jpeg" // декодер превью YouTube
	"image/png"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // часть превью отдаётся в webp

	"telegram-musicbot/internal/infra/logger"
	"telegram-musicbot/internal/infra/storage"
)

const (
	Width  = 1920
	Height = 1080

	fetchTimeout = 30 * time.Second
)

// Source отдаёт URL превью видео от меньшего к большему.
type Source interface {
	ThumbnailURLs(ctx context.Context, id string) ([]string, error)
}

// Generator рисует превью и кладёт их в dir.
type Generator struct {
	dir      string
	fallback string
	src      Source
	http     *http.Client
}

// New - fallback возвращается при любой ошибке (YOUTUBE_IMG_URL).
func New(dir, fallback string, src Source, httpClient *http.Client) *Generator {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: fetchTimeout}
	}
	return &Generator{dir: dir, fallback: fallback, src: src, http: httpClient}
}

// Path - куда кладётся превью id.
func (g *Generator) Path(id string) string {
	return filepath.Join(g.dir, id+"_full.png")
}

// Generate возвращает путь к готовому превью либо fallback.
func (g *Generator) Generate(ctx context.Context, id string) string {
	path := g.Path(id)
	if storage.FileReady(path) {
		return path
	}
	if err := g.render(ctx, id, path); err != nil {
		logger.Debug("thumbnail: fallback", zap.String("id", id), zap.Error(err))
		return g.fallback
	}
	return path
}

func (g *Generator) render(ctx context.Context, id, path string) error {
	urls, err := g.src.ThumbnailURLs(ctx, id)
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		return errors.New("no thumbnails")
	}
	src, err := g.fetch(ctx, urls[len(urls)-1])
	if err != nil {
		return err
	}

	dst := image.NewRGBA(image.Rect(0, 0, Width, Height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	return storage.WriteAtomic(path, storage.SharedPerm, func(w io.Writer) error {
		if err := png.Encode(w, dst); err != nil {
			return errors.Wrap(err, "encode png")
		}
		return nil
	})
}

func (g *Generator) fetch(ctx context.Context, url string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	resp, err := g.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch thumbnail")
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("fetch thumbnail: status %d", resp.StatusCode)
	}
	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "decode thumbnail")
	}
	return img, nil
}
