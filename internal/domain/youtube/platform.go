// Package youtube - платформа YouTube: распознавание ссылок, метаданные (kkdai/youtube),
// поиск (ytsearch), плейлисты, форматы и загрузка через media.Resolver.
package youtube

import (
	"context"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/go-faster/errors"
	"github.com/gotd/td/tg"
	kkdai "github.com/kkdai/youtube/v2"
	"go.uber.org/zap"

	"telegram-musicbot/internal/domain/formatters"
	"telegram-musicbot/internal/domain/media"
	"telegram-musicbot/internal/infra/logger"
)

const (
	watchBase    = "https://www.youtube.com/watch?v="
	playlistBase = "https://youtube.com/playlist?list="
	sliderLimit  = 10
)

var (
	linkRe    = regexp.MustCompile(`(?:youtube\.com|youtu\.be)`)
	linkInMsg = regexp.MustCompile(`(https?://)?(www\.)?(youtube\.com|youtu\.be)/\S+`)
	bareID    = regexp.MustCompile(`^[A-Za-z0-9_-]{11,12}$`)

	// ErrNotFound - поиск не вернул результатов.
	ErrNotFound = errors.New("youtube: nothing found")
)

// Mode - что скачивать.
type Mode int

const (
	ModeAudio Mode = iota
	ModeVideo
	ModeSongAudio
	ModeSongVideo
)

// Track - метаданные трека для ответа пользователю.
type Track struct {
	Title       string
	Link        string
	VideoID     string
	DurationMin string // "" - прямой эфир
	DurationSec int
	Thumb       string
}

// Live - у трека нет длительности.
func (t Track) Live() bool { return t.DurationSec == 0 }

// Format - муксированный (аудио+видео) формат.
type Format struct {
	Format   string
	FileSize int64
	FormatID string
	Ext      string
	Note     string
	URL      string
}

// MetadataClient - часть kkdai/youtube.Client, которой пользуется платформа.
type MetadataClient interface {
	GetVideoContext(ctx context.Context, url string) (*kkdai.Video, error)
	GetPlaylistContext(ctx context.Context, url string) (*kkdai.Playlist, error)
}

// Resolver - получение локального файла трека.
type Resolver interface {
	Resolve(ctx context.Context, id string, kind media.Kind) (media.Result, error)
}

// Deps - зависимости платформы. Metadata == nil - kkdai-клиент с cookies из CookiesDir.
type Deps struct {
	Search     Searcher
	Metadata   MetadataClient
	Resolver   Resolver
	CookiesDir string
}

// Platform - операции с YouTube.
type Platform struct {
	search   Searcher
	meta     MetadataClient
	resolver Resolver
}

// New собирает платформу.
func New(deps Deps) *Platform {
	meta := deps.Metadata
	if meta == nil {
		meta = &cookieClient{dir: deps.CookiesDir}
	}
	search := deps.Search
	if search == nil {
		search = YTSearch{}
	}
	return &Platform{search: search, meta: meta, resolver: deps.Resolver}
}

// cookieClient создаёт kkdai-клиент на каждый запрос со случайным файлом cookies.
type cookieClient struct {
	dir string
}

func (c *cookieClient) client() *kkdai.Client {
	httpClient := &http.Client{}
	if path := RandomCookieFile(c.dir); path != "" {
		if jar, err := LoadCookieJar(path); err == nil {
			httpClient.Jar = jar
		} else {
			logger.Debug("youtube: cookies not loaded", zap.String("path", path), zap.Error(err))
		}
	}
	return &kkdai.Client{HTTPClient: httpClient}
}

func (c *cookieClient) GetVideoContext(ctx context.Context, url string) (*kkdai.Video, error) {
	return c.client().GetVideoContext(ctx, url)
}

func (c *cookieClient) GetPlaylistContext(ctx context.Context, url string) (*kkdai.Playlist, error) {
	return c.client().GetPlaylistContext(ctx, url)
}

// Exists - ссылка ведёт на YouTube.
func Exists(link string) bool { return linkRe.MatchString(link) }

// WatchURL - ссылка на видео по id.
func WatchURL(id string) string { return watchBase + id }

// PlaylistURL - ссылка на плейлист по id.
func PlaylistURL(id string) string { return playlistBase + id }

// PlaylistID - часть ссылки после первого '=' до '&'.
func PlaylistID(link string) string {
	_, after, found := strings.Cut(link, "=")
	if !found {
		return ""
	}
	id, _, _ := strings.Cut(after, "&")
	return id
}

// ExtractID достаёт id видео из ссылки любого вида; иначе - media.VideoID.
func ExtractID(link string) string {
	if id, err := kkdai.ExtractVideoID(link); err == nil && id != "" {
		return id
	}
	return media.VideoID(link)
}

func trimParams(link string) string {
	before, _, _ := strings.Cut(link, "&")
	return before
}

// URLFromMessage ищет ссылку в сообщении и в сообщении, на которое оно отвечает:
// URL-сущность, затем text-link, затем регулярка по тексту, затем «голый» id из 11–12 символов
// в первом аргументе команды (он превращается в ссылку на видео).
func URLFromMessage(msg, reply *tg.Message) string {
	for _, m := range []*tg.Message{msg, reply} {
		if m == nil {
			continue
		}
		if u := urlEntity(m); u != "" {
			return u
		}
	}
	if msg == nil || msg.Message == "" {
		return ""
	}
	if m := linkInMsg.FindString(msg.Message); m != "" {
		return m
	}
	fields := strings.Fields(msg.Message)
	if len(fields) > 0 && strings.HasPrefix(fields[0], "/") {
		fields = fields[1:] // /vplayforce и /cvplayforce сами по 11–12 символов
	}
	if len(fields) > 0 && bareID.MatchString(fields[0]) {
		return WatchURL(fields[0])
	}
	return ""
}

func urlEntity(m *tg.Message) string {
	for _, e := range m.Entities {
		if u, ok := e.(*tg.MessageEntityURL); ok {
			return utf16Slice(m.Message, u.Offset, u.Length)
		}
	}
	for _, e := range m.Entities {
		if u, ok := e.(*tg.MessageEntityTextURL); ok {
			return u.URL
		}
	}
	return ""
}

// utf16Slice - смещения сущностей Telegram считаются в UTF-16 code units.
func utf16Slice(s string, offset, length int) string {
	units := utf16.Encode([]rune(s))
	if offset < 0 || length <= 0 || offset+length > len(units) {
		return ""
	}
	return string(utf16.Decode(units[offset : offset+length]))
}

// Track возвращает метаданные по ссылке или текстовому запросу.
func (p *Platform) Track(ctx context.Context, linkOrQuery string) (Track, error) {
	q := trimParams(strings.TrimSpace(linkOrQuery))
	if q == "" {
		return Track{}, ErrNotFound
	}
	if Exists(q) {
		if t, err := p.videoTrack(ctx, q); err == nil {
			return t, nil
		} else {
			logger.Debug("youtube: metadata failed, falling back to search", zap.String("link", q), zap.Error(err))
		}
	}
	results, err := p.search.Search(ctx, q, 1)
	if err != nil {
		return Track{}, err
	}
	if len(results) == 0 {
		return Track{}, ErrNotFound
	}
	return fromResult(results[0]), nil
}

// Details - то же, что Track: длительность в секундах уже заполнена.
func (p *Platform) Details(ctx context.Context, link string) (Track, error) {
	return p.Track(ctx, link)
}

// Title - название трека.
func (p *Platform) Title(ctx context.Context, link string) (string, error) {
	t, err := p.Track(ctx, link)
	return t.Title, err
}

// Duration - длительность "m:ss".
func (p *Platform) Duration(ctx context.Context, link string) (string, error) {
	t, err := p.Track(ctx, link)
	return t.DurationMin, err
}

// Thumbnail - URL превью.
func (p *Platform) Thumbnail(ctx context.Context, link string) (string, error) {
	t, err := p.Track(ctx, link)
	return t.Thumb, err
}

// ThumbnailURLs - все превью видео, от меньшего к большему.
func (p *Platform) ThumbnailURLs(ctx context.Context, id string) ([]string, error) {
	v, err := p.meta.GetVideoContext(ctx, WatchURL(id))
	if err != nil {
		return nil, errors.Wrapf(err, "youtube: video %s", id)
	}
	out := make([]string, 0, len(v.Thumbnails))
	for _, th := range v.Thumbnails {
		out = append(out, th.URL)
	}
	return out, nil
}

func (p *Platform) videoTrack(ctx context.Context, link string) (Track, error) {
	v, err := p.meta.GetVideoContext(ctx, link)
	if err != nil {
		return Track{}, errors.Wrapf(err, "youtube: video %s", link)
	}
	sec := int(v.Duration.Seconds())
	t := Track{
		Title:       v.Title,
		Link:        WatchURL(v.ID),
		VideoID:     v.ID,
		DurationSec: sec,
	}
	if sec > 0 {
		t.DurationMin = formatters.SecondsToMin(sec)
	}
	if len(v.Thumbnails) > 0 {
		t.Thumb = stripQuery(v.Thumbnails[0].URL)
	}
	return t, nil
}

func fromResult(r Result) Track {
	t := Track{
		Title:       r.Title,
		Link:        WatchURL(r.ID),
		VideoID:     r.ID,
		DurationSec: r.DurationSec,
		Thumb:       r.Thumb,
	}
	if r.DurationSec > 0 {
		t.DurationMin = formatters.SecondsToMin(r.DurationSec)
	}
	return t
}

// Slider возвращает index-й результат поиска из первых десяти.
func (p *Platform) Slider(ctx context.Context, query string, index int) (Track, error) {
	results, err := p.search.Search(ctx, trimParams(query), sliderLimit)
	if err != nil {
		return Track{}, err
	}
	if index < 0 || index >= len(results) {
		return Track{}, errors.Wrapf(ErrNotFound, "result #%d of %d", index, len(results))
	}
	return fromResult(results[index]), nil
}

// SliderLen - сколько результатов доступно для листания.
func (p *Platform) SliderLen(ctx context.Context, query string) (int, error) {
	results, err := p.search.Search(ctx, trimParams(query), sliderLimit)
	return len(results), err
}

// Playlist возвращает id первых limit видео плейлиста.
func (p *Platform) Playlist(ctx context.Context, link string, limit int) ([]string, error) {
	if !Exists(link) {
		link = PlaylistURL(link)
	}
	pl, err := p.meta.GetPlaylistContext(ctx, link)
	if err != nil {
		return nil, errors.Wrapf(err, "youtube: playlist %s", link)
	}
	ids := make([]string, 0, min(limit, len(pl.Videos)))
	for _, e := range pl.Videos {
		if limit > 0 && len(ids) >= limit {
			break
		}
		if e != nil && e.ID != "" {
			ids = append(ids, e.ID)
		}
	}
	return ids, nil
}

// Formats - форматы со звуком и видео в одном потоке.
func (p *Platform) Formats(ctx context.Context, link string) ([]Format, error) {
	link = trimParams(link)
	v, err := p.meta.GetVideoContext(ctx, link)
	if err != nil {
		return nil, errors.Wrapf(err, "youtube: video %s", link)
	}
	var out []Format
	for _, f := range v.Formats.WithAudioChannels() {
		if f.Width == 0 {
			continue
		}
		label := f.QualityLabel
		if label == "" {
			label = f.Quality
		}
		out = append(out, Format{
			Format:   strconv.Itoa(f.ItagNo) + " - " + label,
			FileSize: f.ContentLength,
			FormatID: strconv.Itoa(f.ItagNo),
			Ext:      mimeExt(f.MimeType),
			Note:     f.Quality,
			URL:      link,
		})
	}
	return out, nil
}

// FileSize - сумма известных размеров всех форматов.
func (p *Platform) FileSize(ctx context.Context, link string) (int64, error) {
	v, err := p.meta.GetVideoContext(ctx, trimParams(link))
	if err != nil {
		return 0, errors.Wrapf(err, "youtube: video %s", link)
	}
	var total int64
	for _, f := range v.Formats {
		total += f.ContentLength
	}
	return total, nil
}

func mimeExt(mime string) string {
	base, _, _ := strings.Cut(mime, ";")
	_, sub, found := strings.Cut(strings.TrimSpace(base), "/")
	if !found {
		return ""
	}
	return sub
}

// Download возвращает локальный файл трека. Песенные режимы качают аудио.
func (p *Platform) Download(ctx context.Context, link string, mode Mode) (string, error) {
	if p.resolver == nil {
		return "", errors.New("youtube: resolver is not configured")
	}
	kind := media.KindAudio
	if mode == ModeVideo {
		kind = media.KindVideo
	}
	res, err := p.resolver.Resolve(ctx, ExtractID(trimParams(link)), kind)
	if err != nil {
		return "", err
	}
	return res.Path, nil
}

// Video - Download в видеорежиме.
func (p *Platform) Video(ctx context.Context, link string) (string, error) {
	return p.Download(ctx, link, ModeVideo)
}
