package commands

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"

	"telegram-musicbot/internal/domain/keyboards"
	"telegram-musicbot/internal/domain/stream"
	"telegram-musicbot/internal/domain/youtube"
	"telegram-musicbot/internal/infra/logger"
)

// sliderSize - сколько результатов листает слайдер.
const sliderSize = 10

// startFromButton убирает сообщение с кнопками и пишет «ищу…» от имени бота.
func (r *Router) startFromButton(ctx context.Context, q CallbackQuery, flags keyboards.Flags) (playReq, int, bool) {
	p, ok := r.playTarget(ctx, q.Chat, q.From, flags)
	if !ok {
		_ = r.msgr.Answer(ctx, q.QueryID, "", false)
		return p, 0, false
	}
	_ = r.msgr.Delete(ctx, q.Chat.ID, q.MsgID)
	_ = r.msgr.Answer(ctx, q.QueryID, "", false)
	mystic, err := r.msgr.SendText(ctx, q.Chat.ID, 0, r.mysticText(p), nil)
	if err != nil {
		logger.Debug("mystic not sent", zap.Error(err))
		return p, 0, false
	}
	return p, mystic, true
}

// MusicStream vid|uid|mode|c|f
func (r *Router) onMusicStream(ctx context.Context, q CallbackQuery, cb keyboards.Callback) error {
	if !r.ownButton(ctx, q, cb.Arg(1)) {
		return nil
	}
	vid := cb.Arg(0)
	flags := keyboards.ParseFlags(cb.Arg(2), cb.Arg(3), cb.Arg(4))
	p, mystic, ok := r.startFromButton(ctx, q, flags)
	if !ok {
		return nil
	}
	edit := func(text string, m *tg.ReplyInlineMarkup) { _ = r.msgr.EditText(ctx, q.Chat.ID, mystic, text, m) }

	tr, err := r.yt.Track(ctx, youtube.WatchURL(vid))
	if err != nil {
		edit(r.t.T("play_3"), nil)
		return nil
	}
	if tr.Live() {
		edit(r.t.T("play_13"), keyboards.Livestream(r.t, vid, q.From.ID, flags))
		return nil
	}
	if r.overLimit(tr.DurationSec) {
		edit(r.t.T("play_6", r.cfg.DurationLimitMin, r.cfg.BotName), nil)
		return nil
	}
	if err := r.streamTrack(ctx, p, tr); err != nil {
		logger.Warn("play from button failed", zap.String("id", vid), zap.Error(err))
		edit(r.t.T("general_2", exceptionName(err)), nil)
		return nil
	}
	return r.msgr.Delete(ctx, q.Chat.ID, mystic)
}

// LiveStream vid|uid|mode|c|f
func (r *Router) onLiveStream(ctx context.Context, q CallbackQuery, cb keyboards.Callback) error {
	if !r.ownButton(ctx, q, cb.Arg(1)) {
		return nil
	}
	vid := cb.Arg(0)
	flags := keyboards.ParseFlags(cb.Arg(2), cb.Arg(3), cb.Arg(4))
	p, mystic, ok := r.startFromButton(ctx, q, flags)
	if !ok {
		return nil
	}
	tr, err := r.yt.Track(ctx, youtube.WatchURL(vid))
	if err != nil {
		return r.msgr.EditText(ctx, q.Chat.ID, mystic, r.t.T("play_3"), nil)
	}
	if !tr.Live() {
		return r.msgr.EditText(ctx, q.Chat.ID, mystic, r.t.T("play_24"), nil)
	}
	if err := r.streamLive(ctx, p, tr); err != nil {
		return r.msgr.EditText(ctx, q.Chat.ID, mystic, r.t.T("general_2", exceptionName(err)), nil)
	}
	return r.msgr.Delete(ctx, q.Chat.ID, mystic)
}

// AlonePlaylists key|uid|ptype|mode|c|f
func (r *Router) onPlaylist(ctx context.Context, q CallbackQuery, cb keyboards.Callback) error {
	if !r.ownButton(ctx, q, cb.Arg(1)) {
		return nil
	}
	plistID := r.playlistByKey(cb.Arg(0))
	if plistID == "" {
		return r.msgr.Answer(ctx, q.QueryID, r.t.T("play_3"), true)
	}
	flags := keyboards.ParseFlags(cb.Arg(3), cb.Arg(4), cb.Arg(5))
	p, mystic, ok := r.startFromButton(ctx, q, flags)
	if !ok {
		return nil
	}
	ids, err := r.yt.Playlist(ctx, youtube.PlaylistURL(plistID), r.cfg.PlaylistLimit)
	if err != nil || len(ids) == 0 {
		return r.msgr.EditText(ctx, q.Chat.ID, mystic, r.t.T("play_3"), nil)
	}
	if _, err := r.streamPlaylist(ctx, p, ids); err != nil {
		return r.msgr.EditText(ctx, q.Chat.ID, mystic, r.t.T("general_2", exceptionName(err)), nil)
	}
	return r.msgr.Delete(ctx, q.Chat.ID, mystic)
}

// slider B|idx|query|uid|c|f
func (r *Router) onSlider(ctx context.Context, q CallbackQuery, cb keyboards.Callback) error {
	uid := cb.Arg(3)
	if !r.ownButton(ctx, q, uid) {
		return nil
	}
	idx, err := strconv.Atoi(cb.Arg(1))
	if err != nil {
		return r.msgr.Answer(ctx, q.QueryID, "", false)
	}
	next := nextSlide(cb.Arg(0), idx)
	query := cb.Arg(2)
	flags := keyboards.ParseFlags("a", cb.Arg(4), cb.Arg(5))
	_ = r.msgr.Answer(ctx, q.QueryID, r.t.T("playcb_2"), false)

	tr, err := r.yt.Slider(ctx, query, next)
	if err != nil && next != 0 {
		// результатов меньше десяти: начинаем сначала
		next = 0
		tr, err = r.yt.Slider(ctx, query, next)
	}
	if err != nil {
		logger.Debug("slider failed", zap.String("query", query), zap.Error(err))
		return nil
	}
	return r.msgr.EditPhoto(ctx, q.Chat.ID, q.MsgID, r.photo(tr.Thumb),
		r.t.T("play_10", html.EscapeString(titleCase(tr.Title)), durationText(tr.DurationSec)),
		keyboards.Slider(r.t, tr.VideoID, q.From.ID, query, next, flags))
}

// nextSlide листает по кругу: F - вперёд, B - назад.
func nextSlide(what string, idx int) int {
	if what == "F" {
		if idx >= sliderSize-1 {
			return 0
		}
		return idx + 1
	}
	if idx <= 0 {
		return sliderSize - 1
	}
	return idx - 1
}

// forceclose query|uid
func (r *Router) onForceClose(ctx context.Context, q CallbackQuery, cb keyboards.Callback) error {
	if !r.ownButton(ctx, q, cb.Arg(1)) {
		return nil
	}
	_ = r.msgr.Delete(ctx, q.Chat.ID, q.MsgID)
	return r.msgr.Answer(ctx, q.QueryID, "", false)
}

func (r *Router) onTimer(ctx context.Context, q CallbackQuery) error {
	now, ok := r.play.Now(q.Chat.ID)
	if !ok {
		return r.msgr.Answer(ctx, q.QueryID, r.t.T("admin_7"), true)
	}
	played := int(now.Played.Seconds())
	text := clockText(played) + " / " + durationText(int(now.Item.Duration.Seconds()))
	_ = r.msgr.EditMarkup(ctx, q.Chat.ID, q.MsgID, r.timerMarkup(q.Chat.ID, now.Played, now.Item))
	return r.msgr.Answer(ctx, q.QueryID, text, false)
}

// target - голосовой чат кнопок очереди: "c" - связанный канал.
func (r *Router) target(ctx context.Context, chatID int64, cplay string) (int64, error) {
	if cplay != "c" {
		return chatID, nil
	}
	linked, _, err := r.msgr.LinkedChat(ctx, chatID)
	if err != nil {
		return 0, err
	}
	if linked == 0 {
		return 0, errors.New("no linked channel")
	}
	return linked, nil
}

// GetQueued cplay|vid
func (r *Router) onQueued(ctx context.Context, q CallbackQuery, cb keyboards.Callback) error {
	cplay := cb.Arg(0)
	target, err := r.target(ctx, q.Chat.ID, cplay)
	if err != nil {
		return r.msgr.Answer(ctx, q.QueryID, r.t.T("play_22"), true)
	}
	items := r.play.Queue(target)
	if len(items) == 0 {
		return r.msgr.Answer(ctx, q.QueryID, r.t.T("queue_1"), true)
	}
	_ = r.msgr.Answer(ctx, q.QueryID, "", false)
	return r.msgr.EditText(ctx, q.Chat.ID, q.MsgID, r.t.T("queue_2", queueText(items)), keyboards.QueueBack(cplay))
}

// queue_back_timer cplay
func (r *Router) onQueueBack(ctx context.Context, q CallbackQuery, cb keyboards.Callback) error {
	cplay := cb.Arg(0)
	target, err := r.target(ctx, q.Chat.ID, cplay)
	if err != nil {
		return r.msgr.Answer(ctx, q.QueryID, r.t.T("play_22"), true)
	}
	now, ok := r.play.Now(target)
	if !ok {
		return r.msgr.Answer(ctx, q.QueryID, r.t.T("admin_7"), true)
	}
	_ = r.msgr.Answer(ctx, q.QueryID, "", false)
	return r.msgr.EditText(ctx, q.Chat.ID, q.MsgID, r.nowText(now), keyboards.Queue(cplay, now.Item.VideoID))
}

// ADMIN Command|chat
func (r *Router) onAdmin(ctx context.Context, q CallbackQuery, cb keyboards.Callback) error {
	target, err := strconv.ParseInt(cb.Arg(1), 10, 64)
	if err != nil {
		return r.msgr.Answer(ctx, q.QueryID, "", false)
	}
	if !r.canControl(ctx, q.Chat.ID, q.From) {
		return r.msgr.Answer(ctx, q.QueryID, r.t.T("admin_8"), true)
	}

	var text string
	switch cb.Arg(0) {
	case "Pause":
		text, err = r.t.T("admin_1"), r.play.Pause(ctx, target)
	case "Resume":
		text, err = r.t.T("admin_2"), r.play.Resume(ctx, target)
	case "PauseResume":
		var paused bool
		paused, err = r.play.PauseResume(ctx, target)
		text = r.t.T("admin_2")
		if paused {
			text = r.t.T("admin_1")
		}
	case "Skip":
		text, err = r.skip(ctx, q.Chat.ID, target)
	case "Stop":
		text, err = r.t.T("admin_4"), r.play.Stop(ctx, target)
	case "Replay":
		_, err = r.play.Replay(ctx, target)
		text = r.t.T("admin_5")
	case "Back", "Forward":
		delta := stream.SeekStep
		if cb.Arg(0) == "Back" {
			delta = -delta
		}
		_, err = r.play.Seek(ctx, target, delta)
		text = r.t.T("admin_6", int(delta.Seconds()))
		if err == nil {
			if now, ok := r.play.Now(target); ok {
				_ = r.msgr.EditMarkup(ctx, q.Chat.ID, q.MsgID, r.timerMarkup(target, now.Played, now.Item))
			}
		}
	default:
		return r.msgr.Answer(ctx, q.QueryID, "", false)
	}
	if err != nil {
		return r.msgr.Answer(ctx, q.QueryID, r.controlError(err), true)
	}
	return r.msgr.Answer(ctx, q.QueryID, text, false)
}

// skip переключает трек и объявляет следующий.
func (r *Router) skip(ctx context.Context, chatID, target int64) (string, error) {
	next, ok, err := r.play.Skip(ctx, target)
	if err != nil {
		return "", err
	}
	if !ok {
		return r.t.T("admin_4"), nil
	}
	if err := r.announce(ctx, chatID, target, next, r.thumb(ctx, next.VideoID), 0); err != nil {
		logger.Debug("next track not announced", zap.Error(err))
	}
	return r.t.T("admin_3"), nil
}

func (r *Router) controlError(err error) string {
	switch {
	case errors.Is(err, stream.ErrNotStreaming):
		return r.t.T("admin_7")
	case errors.Is(err, stream.ErrAlreadyPaused):
		return r.t.T("admin_1")
	case errors.Is(err, stream.ErrNotPaused):
		return r.t.T("admin_2")
	default:
		return r.t.T("general_2", exceptionName(err))
	}
}

// help_callback section
func (r *Router) onHelpSection(ctx context.Context, q CallbackQuery, cb keyboards.Callback) error {
	_ = r.msgr.Answer(ctx, q.QueryID, "", false)
	return r.msgr.EditText(ctx, q.Chat.ID, q.MsgID, r.t.Help(cb.Arg(0)), keyboards.HelpBack(r.t))
}

func (r *Router) onHelpMenu(ctx context.Context, q CallbackQuery) error {
	_ = r.msgr.Answer(ctx, q.QueryID, "", false)
	return r.msgr.EditText(ctx, q.Chat.ID, q.MsgID, r.t.T("help_1", r.cfg.SupportURL), keyboards.HelpPanel(r.t, true))
}

func (r *Router) nowText(now stream.Playing) string {
	it := now.Item
	mention := User{ID: it.UserID, FirstName: it.UserName}.Mention()
	return r.t.T("play_20", html.EscapeString(it.Title), durationText(int(it.Duration.Seconds())), mention)
}

// queueText - нумерованный список: 0 - играет сейчас.
func queueText(items []stream.Item) string {
	var b strings.Builder
	for i, it := range items {
		if i == 0 {
			fmt.Fprintf(&b, "▶️ %s (%s)\n", html.EscapeString(it.Title), durationText(int(it.Duration.Seconds())))
			continue
		}
		fmt.Fprintf(&b, "%d. %s (%s)\n", i, html.EscapeString(it.Title), durationText(int(it.Duration.Seconds())))
	}
	return strings.TrimRight(b.String(), "\n")
}
