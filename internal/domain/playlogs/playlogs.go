// Package playlogs отправляет в лог-группу отчёт о каждом запуске воспроизведения.
package playlogs

import (
	"context"
	"fmt"
	"html"
	"strings"

	"go.uber.org/zap"

	"telegram-musicbot/internal/infra/logger"
)

// Sender отправляет HTML-сообщение в чат.
type Sender interface {
	SendHTML(ctx context.Context, chatID int64, text string) error
}

// Event - один запуск.
type Event struct {
	BotMention   string
	ChatID       int64
	ChatTitle    string
	ChatUsername string
	UserID       int64
	UserName     string
	UserUsername string
	Query        string
	StreamType   string
}

// Reporter шлёт отчёты, если они включены.
type Reporter struct {
	sender     Sender
	logGroupID int64
	enabled    bool
}

// New - enabled соответствует PLAY_LOGS.
func New(sender Sender, logGroupID int64, enabled bool) *Reporter {
	return &Reporter{sender: sender, logGroupID: logGroupID, enabled: enabled}
}

// Report отправляет отчёт. Ошибки только логируются.
func (r *Reporter) Report(ctx context.Context, ev Event) {
	if r == nil || !r.enabled || r.sender == nil || r.logGroupID == 0 || ev.ChatID == r.logGroupID {
		return
	}
	if err := r.sender.SendHTML(ctx, r.logGroupID, Render(ev)); err != nil {
		logger.Debug("play log not sent", zap.Int64("chat", ev.ChatID), zap.Error(err))
	}
}

// Render собирает текст отчёта.
func Render(ev Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s ᴘʟᴀʏ ʟᴏɢ</b>\n\n", html.EscapeString(ev.BotMention))
	fmt.Fprintf(&b, "<b>ᴄʜᴀᴛ ɪᴅ :</b> <code>%d</code>\n", ev.ChatID)
	fmt.Fprintf(&b, "<b>ᴄʜᴀᴛ ɴᴀᴍᴇ :</b> %s\n", html.EscapeString(ev.ChatTitle))
	fmt.Fprintf(&b, "<b>ᴄʜᴀᴛ ᴜsᴇʀɴᴀᴍᴇ :</b> %s\n\n", usernameOrPrivate(ev.ChatUsername))
	fmt.Fprintf(&b, "<b>ᴜsᴇʀ ɪᴅ :</b> <code>%d</code>\n", ev.UserID)
	fmt.Fprintf(&b, "<b>ɴᴀᴍᴇ :</b> <a href=\"tg://user?id=%d\">%s</a>\n", ev.UserID, html.EscapeString(ev.UserName))
	fmt.Fprintf(&b, "<b>ᴜsᴇʀɴᴀᴍᴇ :</b> %s\n\n", usernameOrPrivate(ev.UserUsername))
	fmt.Fprintf(&b, "<b>ǫᴜᴇʀʏ :</b> %s\n", html.EscapeString(ev.Query))
	fmt.Fprintf(&b, "<b>sᴛʀᴇᴀᴍᴛʏᴘᴇ :</b> %s", html.EscapeString(ev.StreamType))
	return b.String()
}

func usernameOrPrivate(username string) string {
	if username == "" {
		return "Private"
	}
	return "@" + html.EscapeString(strings.TrimPrefix(username, "@"))
}
