package commands

import (
	"context"
	"html"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gotd/td/tg"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"telegram-musicbot/internal/domain/formatters"
	"telegram-musicbot/internal/domain/keyboards"
	"telegram-musicbot/internal/domain/media"
	"telegram-musicbot/internal/domain/stream"
	"telegram-musicbot/internal/domain/youtube"
	"telegram-musicbot/internal/infra/logger"
	"telegram-musicbot/internal/infra/storage"
	"telegram-musicbot/internal/shared"
)

const (
	playlistKeyLen      = 10
	playlistKeyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// playReq - куда играть и куда отвечать.
type playReq struct {
	chat    Chat  // чат с командой
	target  int64 // голосовой чат: сам чат или связанный канал
	from    User
	flags   keyboards.Flags
	channel string
}

// commandFlags: префикс c - канал, v - видео, суффикс force - замена текущего трека.
func commandFlags(cmd string) keyboards.Flags {
	var f keyboards.Flags
	if rest, ok := strings.CutPrefix(cmd, "c"); ok {
		f.Channel = true
		cmd = rest
	}
	if rest, ok := strings.CutPrefix(cmd, "v"); ok {
		f.Video = true
		cmd = rest
	}
	f.Force = strings.HasSuffix(cmd, "force")
	return f
}

// playTarget определяет голосовой чат. ok=false - ответ пользователю уже отправлен.
func (r *Router) playTarget(ctx context.Context, chat Chat, from User, flags keyboards.Flags) (playReq, bool) {
	p := playReq{chat: chat, target: chat.ID, from: from, flags: flags}
	if !flags.Channel {
		return p, true
	}
	linked, title, err := r.msgr.LinkedChat(ctx, chat.ID)
	if err != nil || linked == 0 {
		if err != nil {
			logger.Debug("linked chat lookup failed", zap.Int64("chat", chat.ID), zap.Error(err))
		}
		_, _ = r.msgr.SendText(ctx, chat.ID, 0, r.t.T("play_22"), nil)
		return p, false
	}
	p.target, p.channel = linked, title
	return p, true
}

func (r *Router) mysticText(p playReq) string {
	if p.flags.Channel {
		return r.t.T("play_2", p.channel)
	}
	return r.t.T("play_1")
}

func (r *Router) overLimit(sec int) bool {
	return r.cfg.DurationLimitMin > 0 && sec > r.cfg.DurationLimit()
}

func (r *Router) playCommand(ctx context.Context, m Message, cmd, args string) error {
	flags := commandFlags(cmd)
	if strings.Contains(m.Text, "-v") {
		flags.Video = true
	}
	p, ok := r.playTarget(ctx, m.Chat, m.From, flags)
	if !ok {
		return nil
	}
	mystic, err := r.msgr.SendText(ctx, m.Chat.ID, m.ID, r.mysticText(p), nil)
	if err != nil {
		return err
	}
	r.runPlay(ctx, m, p, args, mystic)
	return nil
}

// runPlay - порядок как у /play: файл из ответа, ссылка YouTube (плейлист или трек),
// прочие ссылки потоком, пустая команда, поиск.
func (r *Router) runPlay(ctx context.Context, m Message, p playReq, args string, mystic int) {
	edit := func(text string) { _ = r.msgr.EditText(ctx, m.Chat.ID, mystic, text, nil) }
	done := func(query, streamType string) {
		_ = r.msgr.Delete(ctx, m.Chat.ID, mystic)
		r.report(ctx, m.Chat, m.From, query, streamType)
	}
	fail := func(err error) {
		logger.Warn("play failed", zap.Int64("chat", m.Chat.ID), zap.Error(err))
		edit(r.t.T("general_2", exceptionName(err)))
	}

	if a, ok := AttachmentOf(m.Reply); ok {
		played, err := r.playAttachment(ctx, p, a, m.Reply, edit)
		switch {
		case err != nil:
			fail(err)
		case played:
			done(a.DisplayTitle(), "Telegram")
		}
		return
	}

	var (
		tr       youtube.Track
		ids      []string
		plistID  string
		slider   bool
		query    string
		playlist bool
	)

	link := youtube.URLFromMessage(m.Raw, m.Reply)
	switch {
	case link != "" && youtube.Exists(link) && strings.Contains(link, "playlist"):
		var err error
		ids, err = r.yt.Playlist(ctx, link, r.cfg.PlaylistLimit)
		if err != nil || len(ids) == 0 {
			logger.Debug("playlist fetch failed", zap.String("link", link), zap.Error(err))
			edit(r.t.T("play_3"))
			return
		}
		playlist, plistID, query = true, youtube.PlaylistID(link), link
	case link != "" && youtube.Exists(link):
		var err error
		if tr, err = r.yt.Track(ctx, link); err != nil {
			edit(r.t.T("play_3"))
			return
		}
		query = link
		if r.cfg.PlayMode != PlayModeInline {
			if r.overLimit(tr.DurationSec) {
				edit(r.t.T("play_6", r.cfg.DurationLimitMin, r.cfg.BotName))
				return
			}
			if err := r.streamTrack(ctx, p, tr); err != nil {
				fail(err)
				return
			}
			done(query, "youtube")
			return
		}
	case link != "":
		if r.prb != nil {
			if err := r.prb(ctx, link); err != nil {
				logger.Debug("index probe failed", zap.String("link", link), zap.Error(err))
				edit(r.t.T("play_17"))
				return
			}
		}
		edit(r.t.T("str_2"))
		if err := r.streamIndex(ctx, p, link); err != nil {
			logger.Warn("index stream failed", zap.String("link", link), zap.Error(err))
			edit(r.t.T("black_9"))
			return
		}
		done(link, "M3u8 or Index Link")
		return
	case strings.TrimSpace(args) == "":
		_ = r.msgr.Delete(ctx, m.Chat.ID, mystic)
		_, _ = r.msgr.SendText(ctx, m.Chat.ID, m.ID, r.t.T("play_18"), keyboards.BotPlaylist(r.t, r.cfg.SupportURL))
		return
	default:
		query = strings.Join(strings.Fields(strings.ReplaceAll(args, "-v", "")), " ")
		var err error
		if tr, err = r.yt.Track(ctx, query); err != nil {
			edit(r.t.T("play_3"))
			return
		}
		slider = true
	}

	uid := m.From.ID
	if r.cfg.PlayMode != PlayModeInline {
		if playlist {
			if _, err := r.streamPlaylist(ctx, p, ids); err != nil {
				fail(err)
				return
			}
			done(query, "playlist")
			return
		}
		if tr.Live() {
			_ = r.msgr.Delete(ctx, m.Chat.ID, mystic)
			_, _ = r.msgr.SendText(ctx, m.Chat.ID, m.ID, r.t.T("play_13"), keyboards.Livestream(r.t, tr.VideoID, uid, p.flags))
			return
		}
		if r.overLimit(tr.DurationSec) {
			edit(r.t.T("play_6", r.cfg.DurationLimitMin, r.cfg.BotName))
			return
		}
		if err := r.streamTrack(ctx, p, tr); err != nil {
			fail(err)
			return
		}
		done(query, "youtube")
		return
	}

	_ = r.msgr.Delete(ctx, m.Chat.ID, mystic)
	switch {
	case playlist:
		key := shared.RandomToken(playlistKeyLen, playlistKeyAlphabet)
		r.rememberPlaylist(key, plistID)
		_, _ = r.msgr.SendPhoto(ctx, m.Chat.ID, m.ID, r.cfg.PlaylistImgURL, r.t.T("play_9"),
			keyboards.Playlist(r.t, key, uid, "yt", p.flags))
		r.report(ctx, m.Chat, m.From, query, "Playlist : yt")
	case slider:
		_, _ = r.msgr.SendPhoto(ctx, m.Chat.ID, m.ID, r.photo(tr.Thumb), r.t.T("play_10", html.EscapeString(titleCase(tr.Title)), durationText(tr.DurationSec)),
			keyboards.Slider(r.t, tr.VideoID, uid, query, 0, p.flags))
		r.report(ctx, m.Chat, m.From, query, "Searched on Youtube")
	default:
		_, _ = r.msgr.SendPhoto(ctx, m.Chat.ID, m.ID, r.photo(tr.Thumb), r.t.T("play_10", html.EscapeString(tr.Title), durationText(tr.DurationSec)),
			keyboards.Track(r.t, tr.VideoID, uid, p.flags))
		r.report(ctx, m.Chat, m.From, query, "URL Searched Inline")
	}
}

// playAttachment проигрывает файл из сообщения, на которое ответили.
// played=false без ошибки - пользователю уже объяснили отказ.
func (r *Router) playAttachment(ctx context.Context, p playReq, a Attachment, msg *tg.Message, edit func(string)) (bool, error) {
	kind, st := media.KindAudio, stream.TypeAudio
	if a.Audio() {
		if r.cfg.AudioFileSizeLimit > 0 && a.Size > r.cfg.AudioFileSizeLimit {
			edit(r.t.T("play_5"))
			return false, nil
		}
		if r.overLimit(a.Duration) {
			edit(r.t.T("play_6", r.cfg.DurationLimitMin, r.cfg.BotName))
			return false, nil
		}
	} else {
		if a.FileName != "" && !formatters.IsVideoFormat(path.Ext(a.FileName)) {
			edit(r.t.T("play_7", strings.Join(formatters.VideoFormats, " | ")))
			return false, nil
		}
		if r.cfg.VideoFileSizeLimit > 0 && a.Size > r.cfg.VideoFileSizeLimit {
			edit(r.t.T("play_8"))
			return false, nil
		}
		kind, st = media.KindVideo, stream.TypeVideo
	}

	dest := filepath.Join(r.cfg.DownloadDir, a.ID+a.Ext())
	if !storage.FileReady(dest) {
		edit(r.t.T("play_21"))
		if err := r.msgr.DownloadMedia(ctx, msg, dest); err != nil {
			return false, err
		}
	}
	item := stream.Item{
		Title:      a.DisplayTitle(),
		Path:       dest,
		Duration:   time.Duration(a.Duration) * time.Second,
		Kind:       kind,
		StreamType: st,
		UserID:     p.from.ID,
		UserName:   p.from.Name(),
	}
	if err := r.enqueue(ctx, p, item, r.cfg.StartImgURL); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Router) photo(thumb string) string {
	if thumb == "" {
		return r.cfg.YoutubeImgURL
	}
	return thumb
}

func titleCase(s string) string {
	return cases.Title(language.Und).String(s)
}

// durationText - "m:ss" или "Live" для эфира.
func durationText(sec int) string {
	if sec <= 0 {
		return "Live"
	}
	return formatters.SecondsToMin(sec)
}

// clockText - как SecondsToMin, но ноль показывается как "00:00".
func clockText(sec int) string {
	if sec <= 0 {
		return "00:00"
	}
	return formatters.SecondsToMin(sec)
}

func (r *Router) rememberPlaylist(key, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lyrical[key] = id
}

func (r *Router) playlistByKey(key string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lyrical[key]
}

func modeOf(f keyboards.Flags) (youtube.Mode, media.Kind, stream.Type) {
	if f.Video {
		return youtube.ModeVideo, media.KindVideo, stream.TypeVideo
	}
	return youtube.ModeAudio, media.KindAudio, stream.TypeAudio
}

func (r *Router) thumb(ctx context.Context, id string) string {
	if r.thm == nil || id == "" {
		return r.cfg.YoutubeImgURL
	}
	return r.thm.Generate(ctx, id)
}

// streamTrack скачивает трек и ставит в очередь.
func (r *Router) streamTrack(ctx context.Context, p playReq, tr youtube.Track) error {
	if tr.Live() {
		return r.streamLive(ctx, p, tr)
	}
	mode, kind, st := modeOf(p.flags)
	path, err := r.yt.Download(ctx, tr.Link, mode)
	if err != nil {
		return err
	}
	item := stream.Item{
		Title:      tr.Title,
		VideoID:    tr.VideoID,
		Path:       path,
		Link:       tr.Link,
		Duration:   time.Duration(tr.DurationSec) * time.Second,
		Kind:       kind,
		StreamType: st,
		UserID:     p.from.ID,
		UserName:   p.from.Name(),
	}
	return r.enqueue(ctx, p, item, r.thumb(ctx, tr.VideoID))
}

func (r *Router) streamLive(ctx context.Context, p playReq, tr youtube.Track) error {
	_, kind, _ := modeOf(p.flags)
	item := stream.Item{
		Title:      tr.Title,
		VideoID:    tr.VideoID,
		Path:       tr.Link,
		Link:       tr.Link,
		Kind:       kind,
		StreamType: stream.TypeLive,
		UserID:     p.from.ID,
		UserName:   p.from.Name(),
	}
	return r.enqueue(ctx, p, item, r.thumb(ctx, tr.VideoID))
}

func (r *Router) streamIndex(ctx context.Context, p playReq, link string) error {
	_, kind, _ := modeOf(p.flags)
	item := stream.Item{
		Title:      link,
		Path:       link,
		Link:       link,
		Kind:       kind,
		StreamType: stream.TypeIndex,
		UserID:     p.from.ID,
		UserName:   p.from.Name(),
	}
	return r.enqueue(ctx, p, item, r.cfg.StartImgURL)
}

// streamPlaylist ставит в очередь треки плейлиста, пропуская недоступные и слишком длинные.
// Первый трек объявляется как обычно, об остальных - одно сообщение.
func (r *Router) streamPlaylist(ctx context.Context, p playReq, ids []string) (int, error) {
	mode, kind, st := modeOf(p.flags)
	queued := 0
	var lastErr error
	for _, id := range ids {
		tr, err := r.yt.Track(ctx, youtube.WatchURL(id))
		if err != nil {
			lastErr = err
			continue
		}
		if tr.Live() || r.overLimit(tr.DurationSec) {
			continue
		}
		path, err := r.yt.Download(ctx, tr.Link, mode)
		if err != nil {
			lastErr = err
			continue
		}
		item := stream.Item{
			Title:      tr.Title,
			VideoID:    tr.VideoID,
			Path:       path,
			Link:       tr.Link,
			Duration:   time.Duration(tr.DurationSec) * time.Second,
			Kind:       kind,
			StreamType: st,
			UserID:     p.from.ID,
			UserName:   p.from.Name(),
		}
		if queued == 0 {
			if err := r.enqueue(ctx, p, item, r.thumb(ctx, tr.VideoID)); err != nil {
				return 0, err
			}
		} else if _, err := r.play.Play(ctx, p.target, item, false); err != nil {
			return queued, err
		}
		queued++
	}
	if queued == 0 {
		if lastErr == nil {
			lastErr = media.ErrUnavailable
		}
		return 0, lastErr
	}
	if queued > 1 {
		_, _ = r.msgr.SendText(ctx, p.chat.ID, 0, r.t.T("play_23", queued-1), nil)
	}
	return queued, nil
}

// enqueue ставит элемент в очередь и сообщает об этом в чат.
func (r *Router) enqueue(ctx context.Context, p playReq, item stream.Item, thumb string) error {
	pos, err := r.play.Play(ctx, p.target, item, p.flags.Force)
	if err != nil {
		return err
	}
	return r.announce(ctx, p.chat.ID, p.target, item, thumb, pos)
}

func (r *Router) announce(ctx context.Context, chatID, target int64, item stream.Item, thumb string, pos int) error {
	title := html.EscapeString(shared.TruncateRunes(item.Title, 23))
	dur := durationText(int(item.Duration.Seconds()))
	mention := User{ID: item.UserID, FirstName: item.UserName}.Mention()
	if pos > 0 {
		_, err := r.msgr.SendText(ctx, chatID, 0, r.t.T("play_19", pos, title, dur, mention), keyboards.AQ(target))
		return err
	}
	_, err := r.msgr.SendPhoto(ctx, chatID, 0, thumb, r.t.T("play_20", title, dur, mention), r.timerMarkup(target, 0, item))
	return err
}

func (r *Router) timerMarkup(chatID int64, played time.Duration, item stream.Item) *tg.ReplyInlineMarkup {
	if item.Live() {
		return keyboards.Stream(r.t, chatID)
	}
	playedSec, durSec := int(played.Seconds()), int(item.Duration.Seconds())
	return keyboards.StreamTimer(r.t, chatID, clockText(playedSec), clockText(durSec), playedSec, durSec)
}
