// Package debug - печать входящих событий в консоль при уровне логирования debug.
// Имена авторов и чатов берутся из entities апдейта, текст режется по рунам.
package debug

import (
	"fmt"
	"strings"

	"github.com/gotd/td/tg"

	"telegram-musicbot/internal/infra/logger"
	"telegram-musicbot/internal/infra/pr"
	"telegram-musicbot/internal/shared"
)

const textMaxLen = 50

// Enabled возвращает признак вывода: по умолчанию он совпадает с debug-уровнем логгера.
var Enabled = logger.IsDebugEnabled

// PrintUpdate печатает одну строку: [prefix] <тип чата> 'имя' > автор: текст.
func PrintUpdate(prefix string, msg *tg.Message, entities tg.Entities) {
	if msg == nil || !Enabled() {
		return
	}
	text := shared.TruncateRunes(msg.Message, textMaxLen)
	if text != msg.Message {
		text += "..."
	}
	kind, chat := chatLabel(msg.PeerID, entities)
	pr.Printf("[%s] %s %s > %s: %s\n", prefix, kind, chat, authorLabel(msg, entities), text)
}

// PrintCallback печатает нажатие кнопки.
func PrintCallback(chat tg.PeerClass, userID int64, data string, entities tg.Entities) {
	if !Enabled() {
		return
	}
	kind, name := chatLabel(chat, entities)
	pr.Printf("[Callback] %s %s > %s: %s\n", kind, name, userLabel(userID, entities), data)
}

// Dump pretty-печатает значение (kr/pretty), когда отладка включена.
func Dump(label string, v any) {
	if !Enabled() {
		return
	}
	pr.Printf("[%s] %s\n", label, pr.Pf(v))
}

func chatLabel(peer tg.PeerClass, e tg.Entities) (string, string) {
	switch p := peer.(type) {
	case *tg.PeerUser:
		return "Private", userLabel(p.UserID, e)
	case *tg.PeerChat:
		if c, ok := e.Chats[p.ChatID]; ok {
			return "Chat", fmt.Sprintf("'%s'", c.Title)
		}
		return "Chat", "<unknown chat>"
	case *tg.PeerChannel:
		ch, ok := e.Channels[p.ChannelID]
		if !ok {
			return "Channel", "<untitled channel>"
		}
		kind := "Channel"
		if ch.Megagroup {
			kind = "Supergroup"
		}
		if ch.Username != "" {
			return kind, fmt.Sprintf("'%s' (@%s)", ch.Title, ch.Username)
		}
		return kind, fmt.Sprintf("'%s'", ch.Title)
	default:
		return "Unknown", fmt.Sprintf("%+v", peer)
	}
}

func authorLabel(msg *tg.Message, e tg.Entities) string {
	from, ok := msg.GetFromID()
	if !ok {
		return "<anonymous>"
	}
	if u, ok := from.(*tg.PeerUser); ok {
		return userLabel(u.UserID, e)
	}
	_, name := chatLabel(from, e)
	return name
}

func userLabel(id int64, e tg.Entities) string {
	u, ok := e.Users[id]
	if !ok {
		return fmt.Sprintf("<user %d>", id)
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = "<unknown>"
	}
	if u.Username != "" {
		return fmt.Sprintf("'%s' (@%s)", name, u.Username)
	}
	return fmt.Sprintf("'%s'", name)
}
