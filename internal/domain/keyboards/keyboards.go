// Package keyboards - inline-клавиатуры бота и разбор их callback-данных.
package keyboards

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gotd/td/tg"

	"telegram-musicbot/internal/shared"
)

// MaxCallbackData - лимит Telegram на callback_data в байтах.
const MaxCallbackData = 64

// SliderQueryRunes - сколько символов запроса уходит в callback слайдера.
const SliderQueryRunes = 20

// Texts отдаёт подписи кнопок по ключам каталога.
type Texts interface {
	T(key string, args ...any) string
}

// Flags - режимы, закодированные в callback: видео, канал, форс.
type Flags struct {
	Video   bool
	Channel bool
	Force   bool
}

// ModeCode - "v" или "a".
func (f Flags) ModeCode() string {
	if f.Video {
		return "v"
	}
	return "a"
}

// ChannelCode - "c" (канал) или "g" (группа).
func (f Flags) ChannelCode() string {
	if f.Channel {
		return "c"
	}
	return "g"
}

// ForceCode - "f" (принудительно) или "d" (по умолчанию).
func (f Flags) ForceCode() string {
	if f.Force {
		return "f"
	}
	return "d"
}

func cb(text, data string) tg.KeyboardButtonClass {
	return &tg.KeyboardButtonCallback{Text: text, Data: []byte(data)}
}

func row(buttons ...tg.KeyboardButtonClass) tg.KeyboardButtonRow {
	return tg.KeyboardButtonRow{Buttons: buttons}
}

func markup(rows ...tg.KeyboardButtonRow) *tg.ReplyInlineMarkup {
	out := make([]tg.KeyboardButtonRow, 0, len(rows))
	for _, r := range rows {
		if len(r.Buttons) > 0 {
			out = append(out, r)
		}
	}
	return &tg.ReplyInlineMarkup{Rows: out}
}

// Track - выбор аудио/видео для найденного трека.
func Track(t Texts, videoID string, userID int64, f Flags) *tg.ReplyInlineMarkup {
	uid := strconv.FormatInt(userID, 10)
	tail := "|" + f.ChannelCode() + "|" + f.ForceCode()
	return markup(
		row(
			cb(t.T("P_B_1"), "MusicStream "+videoID+"|"+uid+"|a"+tail),
			cb(t.T("P_B_2"), "MusicStream "+videoID+"|"+uid+"|v"+tail),
		),
		row(cb(t.T("CLOSE_BUTTON"), "forceclose "+videoID+"|"+uid)),
	)
}

// ShipTimeline рисует прогресс из 12 клеток с кораблём на позиции проигранного.
func ShipTimeline(playedSec, durSec int) string {
	const (
		barLen = 12
		ship   = "𓊝"
		water  = "﹏"
	)
	percent := 0.0
	if durSec > 0 {
		percent = float64(playedSec) / float64(durSec) * 100
	}
	filled := int(percent / 100 * barLen)
	if filled >= barLen {
		filled = barLen - 1
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat(water, filled) + ship + strings.Repeat(water, barLen-filled-1)
}

func controlsTop(chat string) tg.KeyboardButtonRow {
	return row(
		cb("⏮ ", "ADMIN Replay|"+chat),
		cb("⏸ ", "ADMIN Pause|"+chat),
		cb("▶️", "ADMIN Resume|"+chat),
	)
}

func controlsBottom(t Texts, chat string) tg.KeyboardButtonRow {
	return row(
		cb("⏪ 20s", "ADMIN Back|"+chat),
		cb(t.T("CLOSE_BUTTON"), "close"),
		cb("⏩ 20s", "ADMIN Forward|"+chat),
	)
}

// StreamTimer - управление потоком с полосой прогресса; played и dur в формате "m:ss".
func StreamTimer(t Texts, chatID int64, played, dur string, playedSec, durSec int) *tg.ReplyInlineMarkup {
	chat := strconv.FormatInt(chatID, 10)
	bar := ShipTimeline(playedSec, durSec)
	return markup(
		controlsTop(chat),
		row(cb(fmt.Sprintf("%s  %s  %s", played, bar, dur), "GetTimer")),
		controlsBottom(t, chat),
	)
}

// Stream - управление потоком без таймера.
func Stream(t Texts, chatID int64) *tg.ReplyInlineMarkup {
	chat := strconv.FormatInt(chatID, 10)
	return markup(controlsTop(chat), controlsBottom(t, chat))
}

// Playlist - выбор режима для целого плейлиста; key - ключ плейлиста в памяти бота.
func Playlist(t Texts, key string, userID int64, ptype string, f Flags) *tg.ReplyInlineMarkup {
	uid := strconv.FormatInt(userID, 10)
	head := "AlonePlaylists " + key + "|" + uid + "|" + ptype + "|"
	tail := "|" + f.ChannelCode() + "|" + f.ForceCode()
	return markup(
		row(
			cb(t.T("P_B_1"), head+"a"+tail),
			cb(t.T("P_B_2"), head+"v"+tail),
		),
		row(cb(t.T("CLOSE_BUTTON"), "forceclose "+key+"|"+uid)),
	)
}

// Livestream - подтверждение проигрывания прямого эфира.
func Livestream(t Texts, videoID string, userID int64, f Flags) *tg.ReplyInlineMarkup {
	uid := strconv.FormatInt(userID, 10)
	return markup(
		row(cb(t.T("P_B_3"), "LiveStream "+videoID+"|"+uid+"|"+f.ModeCode()+"|"+f.ChannelCode()+"|"+f.ForceCode())),
		row(cb(t.T("CLOSE_BUTTON"), "forceclose "+videoID+"|"+uid)),
	)
}

// Slider - листание результатов поиска. index - позиция текущего результата.
func Slider(t Texts, videoID string, userID int64, query string, index int, f Flags) *tg.ReplyInlineMarkup {
	uid := strconv.FormatInt(userID, 10)
	idx := strconv.Itoa(index)
	tail := "|" + uid + "|" + f.ChannelCode() + "|" + f.ForceCode()

	short := shared.TruncateRunes(strings.ReplaceAll(query, "|", " "), SliderQueryRunes)
	// Кириллица и эмодзи занимают больше байта, поэтому ужимаем запрос под лимит.
	for len("slider B|"+idx+"|"+short+tail) > MaxCallbackData && short != "" {
		r := []rune(short)
		short = string(r[:len(r)-1])
	}

	return markup(
		row(
			cb(t.T("P_B_1"), "MusicStream "+videoID+"|"+uid+"|a|"+f.ChannelCode()+"|"+f.ForceCode()),
			cb(t.T("P_B_2"), "MusicStream "+videoID+"|"+uid+"|v|"+f.ChannelCode()+"|"+f.ForceCode()),
		),
		row(
			cb("Prev", "slider B|"+idx+"|"+short+tail),
			cb(t.T("CLOSE_BUTTON"), "forceclose "+short+"|"+uid),
			cb("Next", "slider F|"+idx+"|"+short+tail),
		),
	)
}

// Queue - панель текущего трека: очередь, таймер, закрыть.
func Queue(cplay, videoID string) *tg.ReplyInlineMarkup {
	return markup(
		row(cb(" View Queue", "GetQueued "+cplay+"|"+videoID)),
		row(cb("   Time Info", "GetTimer")),
		row(cb("   Close Panel", "close")),
	)
}

// QueueBack - возврат из очереди или таймера.
func QueueBack(cplay string) *tg.ReplyInlineMarkup {
	return markup(row(
		cb("  Back", "queue_back_timer "+cplay),
		cb(" Close", "close"),
	))
}

// AQ - компактная панель управления.
func AQ(chatID int64) *tg.ReplyInlineMarkup {
	chat := strconv.FormatInt(chatID, 10)
	return markup(
		row(
			cb("⤷ Play/Pause ", "ADMIN PauseResume|"+chat),
			cb(" Skip ⤶", "ADMIN Skip|"+chat),
		),
		row(cb("⤷ Close ⤶", "close")),
		row(
			cb("⤷ Replay", "ADMIN Replay|"+chat),
			cb("Stop ⤶", "ADMIN Stop|"+chat),
		),
	)
}

// HelpPanel - главное меню помощи; back добавляет строку возврата.
func HelpPanel(t Texts, back bool) *tg.ReplyInlineMarkup {
	rows := []tg.KeyboardButtonRow{
		row(
			cb("👑 Admins", "help_callback adm"),
			cb("🌐 Public", "help_callback pub"),
		),
		row(
			cb("🛡️ Sudo", "help_callback sudo"),
			cb("🎮 Game", "help_callback game"),
		),
	}
	if back {
		rows = append(rows, row(cb(t.T("BACK_BUTTON"), "help_main_menu")))
	}
	return markup(rows...)
}

// PrivateHelpPanel - то же меню по одной кнопке в строке.
func PrivateHelpPanel() *tg.ReplyInlineMarkup {
	return markup(
		row(cb("👑 Admins", "help_callback adm")),
		row(cb("🌐 Public", "help_callback pub")),
		row(cb("🛡️ Sudo", "help_callback sudo")),
		row(cb("🎮 Game", "help_callback game")),
	)
}

// HelpBack - единственная кнопка возврата в меню помощи.
func HelpBack(t Texts) *tg.ReplyInlineMarkup {
	return markup(row(cb(t.T("BACK_BUTTON"), "help_main_menu")))
}

// BotPlaylist - ответ на /play без аргументов: поддержка и закрыть.
func BotPlaylist(t Texts, supportURL string) *tg.ReplyInlineMarkup {
	buttons := []tg.KeyboardButtonClass{}
	if supportURL != "" {
		buttons = append(buttons, &tg.KeyboardButtonURL{Text: t.T("S_B_9"), URL: supportURL})
	}
	buttons = append(buttons, cb(t.T("CLOSE_BUTTON"), "close"))
	return markup(row(buttons...))
}
