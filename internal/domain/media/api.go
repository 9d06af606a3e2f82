package media

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"telegram-musicbot/internal/infra/logger"
	"telegram-musicbot/internal/infra/storage"
)

const (
	apiRequestTimeout   = 60 * time.Second
	audioStreamTimeout  = 300 * time.Second
	videoStreamTimeout  = 600 * time.Second
	sourceFetchTimeout  = 15 * time.Second
	maxAPIResponseBytes = 1 << 20
)

// APIResponse - ответ внешнего API загрузки. Любое поле может отсутствовать.
type APIResponse struct {
	Status    string `json:"status"`
	Link      string `json:"link"`
	StreamURL string `json:"stream_url"`
}

// TelegramLink сообщает, что API вернул готовую ссылку на сообщение в Telegram.
func (r APIResponse) TelegramLink() bool {
	return r.Link != "" && strings.Contains(r.Link, "t.me")
}

// Streamable сообщает, что API вернул прямой URL потока.
func (r APIResponse) Streamable() bool {
	return r.Status == "success" && r.StreamURL != ""
}

// DownloadAPI - внешний сервис, который отдаёт ссылку на копию в Telegram или URL потока.
type DownloadAPI interface {
	Download(ctx context.Context, id string, kind Kind) (APIResponse, error)
	Stream(ctx context.Context, streamURL, dest string, kind Kind) (int64, error)
}

// APIConfig задаёт источники базового URL: явный URL, затем тело SourceURL, затем Fallback.
type APIConfig struct {
	BaseURL   string
	SourceURL string
	Fallback  string
}

// APIClient - HTTP-клиент API загрузки. Базовый URL определяется лениво один раз.
type APIClient struct {
	cfg  APIConfig
	http *http.Client

	mu   sync.Mutex
	base string
}

// NewAPIClient создаёт клиента. httpClient == nil - http.DefaultClient.
func NewAPIClient(cfg APIConfig, httpClient *http.Client) *APIClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &APIClient{cfg: cfg, http: httpClient}
}

// BaseURL возвращает базовый URL, при первом вызове определяя его.
func (c *APIClient) BaseURL(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.base != "" {
		return c.base, nil
	}

	base := strings.TrimSpace(c.cfg.BaseURL)
	if base == "" && c.cfg.SourceURL != "" {
		fetched, err := c.fetchSource(ctx)
		if err != nil {
			logger.Debug("media api: source url unavailable", zap.Error(err))
		}
		base = fetched
		if base != "" {
			logger.Info("media api: url loaded from source", zap.String("url", base))
		}
	}
	if base == "" {
		base = strings.TrimSpace(c.cfg.Fallback)
		if base != "" {
			logger.Warn("media api: using fallback url", zap.String("url", base))
		}
	}
	if base == "" {
		return "", errors.New("media api: url is not configured")
	}
	c.base = strings.TrimRight(base, "/")
	return c.base, nil
}

func (c *APIClient) fetchSource(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, sourceFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.SourceURL, nil)
	if err != nil {
		return "", errors.Wrap(err, "build source request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "fetch source")
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("source status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAPIResponseBytes))
	if err != nil {
		return "", errors.Wrap(err, "read source")
	}
	return strings.TrimSpace(string(body)), nil
}

// Download выполняет GET {base}/download?url=<id>&type=<kind>. Любой статус, кроме 200, - ошибка.
func (c *APIClient) Download(ctx context.Context, id string, kind Kind) (APIResponse, error) {
	base, err := c.BaseURL(ctx)
	if err != nil {
		return APIResponse{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, apiRequestTimeout)
	defer cancel()

	q := url.Values{}
	q.Set("url", id)
	q.Set("type", kind.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/download?"+q.Encode(), nil)
	if err != nil {
		return APIResponse{}, errors.Wrap(err, "build api request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return APIResponse{}, errors.Wrap(err, "api request")
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return APIResponse{}, errors.Errorf("api status %d", resp.StatusCode)
	}

	var out APIResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxAPIResponseBytes)).Decode(&out); err != nil {
		return APIResponse{}, errors.Wrap(err, "decode api response")
	}
	return out, nil
}

// Stream скачивает поток в dest атомарно, блоками storage.CopyChunkSize.
func (c *APIClient) Stream(ctx context.Context, streamURL, dest string, kind Kind) (int64, error) {
	timeout := audioStreamTimeout
	if kind == KindVideo {
		timeout = videoStreamTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return 0, errors.Wrap(err, "build stream request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, errors.Wrap(err, "stream request")
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return 0, errors.Errorf("stream status %d", resp.StatusCode)
	}
	n, err := storage.CopyAtomic(dest, resp.Body)
	if err != nil {
		return n, errors.Wrap(err, "save stream")
	}
	return n, nil
}
