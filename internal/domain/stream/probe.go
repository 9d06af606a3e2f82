package stream

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/grafov/m3u8"
)

const probeTimeout = 15 * time.Second

// ErrNotStreamable - по ссылке нет ни плейлиста, ни медиа.
var ErrNotStreamable = errors.New("stream: link is not streamable")

// IndexInfo - что нашлось по ссылке.
type IndexInfo struct {
	Playlist bool // HLS
	Master   bool
	Variants int
	Segments int
	Live     bool // медиа-плейлист без EXT-X-ENDLIST
}

// ProbeIndex проверяет, что ссылку можно отдать транспорту: HLS-плейлист
// разбирается через m3u8, иначе нужен Content-Type audio/* или video/*.
func ProbeIndex(ctx context.Context, httpClient *http.Client, link string) (IndexInfo, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, http.NoBody)
	if err != nil {
		return IndexInfo{}, errors.Wrap(ErrNotStreamable, err.Error())
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return IndexInfo{}, errors.Wrap(err, "probe index")
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return IndexInfo{}, errors.Wrapf(ErrNotStreamable, "status %d", resp.StatusCode)
	}

	ctype := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.Contains(ctype, "mpegurl") && !strings.HasSuffix(strings.ToLower(pathOf(link)), ".m3u8") {
		if strings.HasPrefix(ctype, "audio/") || strings.HasPrefix(ctype, "video/") {
			return IndexInfo{}, nil
		}
		return IndexInfo{}, errors.Wrapf(ErrNotStreamable, "content type %q", ctype)
	}

	pl, listType, err := m3u8.DecodeFrom(resp.Body, false)
	if err != nil {
		return IndexInfo{}, errors.Wrap(ErrNotStreamable, err.Error())
	}
	info := IndexInfo{Playlist: true}
	switch listType {
	case m3u8.MASTER:
		master, _ := pl.(*m3u8.MasterPlaylist)
		info.Master = true
		if master != nil {
			info.Variants = len(master.Variants)
		}
		if info.Variants == 0 {
			return info, errors.Wrap(ErrNotStreamable, "master playlist without variants")
		}
	case m3u8.MEDIA:
		mp, _ := pl.(*m3u8.MediaPlaylist)
		if mp != nil {
			info.Segments = int(mp.Count())
			info.Live = !mp.Closed
		}
		if info.Segments == 0 && !info.Live {
			return info, errors.Wrap(ErrNotStreamable, "empty media playlist")
		}
	}
	return info, nil
}

func pathOf(link string) string {
	before, _, _ := strings.Cut(link, "?")
	return before
}
