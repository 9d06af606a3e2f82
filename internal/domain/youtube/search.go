package youtube

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/raitonoberu/ytsearch"
	"go.uber.org/zap"

	"telegram-musicbot/internal/infra/logger"
)

// Result - один результат поиска. DurationSec == 0 - прямой эфир.
type Result struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Channel     string `json:"channel"`
	DurationSec int    `json:"duration"`
	Thumb       string `json:"thumb"`
}

// Searcher ищет видео по текстовому запросу.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

// YTSearch - поиск через ytsearch.
type YTSearch struct{}

func (YTSearch) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := ytsearch.VideoSearch(query).Next()
	if err != nil {
		return nil, errors.Wrapf(err, "youtube search %q", query)
	}
	out := make([]Result, 0, limit)
	for _, v := range res.Videos {
		if len(out) >= limit {
			break
		}
		r := Result{ID: v.ID, Title: v.Title, Channel: v.Channel.Title, DurationSec: v.Duration}
		if len(v.Thumbnails) > 0 {
			r.Thumb = stripQuery(v.Thumbnails[0].URL)
		}
		out = append(out, r)
	}
	return out, nil
}

// CachedSearcher хранит результаты поиска в Redis под ytmeta:<query>:<limit>.
type CachedSearcher struct {
	next Searcher
	rdb  *goredis.Client
	ttl  time.Duration
}

// NewCachedSearcher оборачивает next кешем; rdb == nil - кеш выключен.
func NewCachedSearcher(next Searcher, rdb *goredis.Client, ttl time.Duration) *CachedSearcher {
	return &CachedSearcher{next: next, rdb: rdb, ttl: ttl}
}

func (c *CachedSearcher) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if c.rdb == nil {
		return c.next.Search(ctx, query, limit)
	}
	key := "ytmeta:" + strings.ToLower(strings.TrimSpace(query)) + ":" + strconv.Itoa(limit)
	if cached, err := c.rdb.Get(ctx, key).Result(); err == nil && cached != "" {
		var out []Result
		if json.Unmarshal([]byte(cached), &out) == nil {
			return out, nil
		}
	}

	out, err := c.next.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(out); err == nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			logger.Debug("youtube: search cache write failed", zap.Error(err))
		}
	}
	return out, nil
}

func stripQuery(u string) string {
	before, _, _ := strings.Cut(u, "?")
	return before
}
