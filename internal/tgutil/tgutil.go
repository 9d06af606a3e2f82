// Package tgutil - мелкие преобразования над типами gotd: идентификаторы peer'ов
// в формате Bot API, тексты и ответы сообщений.
package tgutil

import (
	"strings"

	"github.com/gotd/td/tg"
)

// channelIDOffset - префикс -100… каналов и супергрупп в идентификаторах Bot API.
const channelIDOffset int64 = 1_000_000_000_000

// GetPeerID возвращает «сырой» MTProto-идентификатор peer'а; 0 для неизвестного типа.
func GetPeerID(peer tg.PeerClass) int64 {
	switch p := peer.(type) {
	case *tg.PeerUser:
		return p.UserID
	case *tg.PeerChat:
		return p.ChatID
	case *tg.PeerChannel:
		return p.ChannelID
	default:
		return 0
	}
}

// BotAPIID переводит peer в идентификатор Bot API: пользователь как есть,
// чат со знаком минус, канал как -100<id>. Такие id пишут в LOG_GROUP_ID и UPLOAD_CHANNEL.
func BotAPIID(peer tg.PeerClass) int64 {
	switch p := peer.(type) {
	case *tg.PeerUser:
		return p.UserID
	case *tg.PeerChat:
		return -p.ChatID
	case *tg.PeerChannel:
		return -(channelIDOffset + p.ChannelID)
	default:
		return 0
	}
}

// PeerFromBotAPIID - обратное преобразование BotAPIID. Голый положительный id
// считается пользователем.
func PeerFromBotAPIID(id int64) tg.PeerClass {
	switch {
	case id > 0:
		return &tg.PeerUser{UserID: id}
	case id <= -channelIDOffset:
		return &tg.PeerChannel{ChannelID: -id - channelIDOffset}
	case id < 0:
		return &tg.PeerChat{ChatID: -id}
	default:
		return nil
	}
}

// IsGroup сообщает, что сообщение пришло из группы или супергруппы (не из лички и не из канала).
func IsGroup(msg *tg.Message, chats map[int64]*tg.Channel) bool {
	switch p := msg.PeerID.(type) {
	case *tg.PeerChat:
		return true
	case *tg.PeerChannel:
		ch, ok := chats[p.ChannelID]
		return ok && ch.Megagroup
	default:
		return false
	}
}

// IsPrivate сообщает, что сообщение пришло из лички.
func IsPrivate(msg *tg.Message) bool {
	_, ok := msg.PeerID.(*tg.PeerUser)
	return ok
}

// SenderID возвращает id автора сообщения; для лички - собеседника.
func SenderID(msg *tg.Message) int64 {
	if from, ok := msg.GetFromID(); ok {
		if u, ok := from.(*tg.PeerUser); ok {
			return u.UserID
		}
		return 0
	}
	if u, ok := msg.PeerID.(*tg.PeerUser); ok {
		return u.UserID
	}
	return 0
}

// ReplyToMsgID возвращает id сообщения, на которое ответили.
func ReplyToMsgID(msg *tg.Message) (int, bool) {
	reply, ok := msg.GetReplyTo()
	if !ok {
		return 0, false
	}
	header, ok := reply.(*tg.MessageReplyHeader)
	if !ok {
		return 0, false
	}
	return header.GetReplyToMsgID()
}

// SplitCommand разбирает "/play@Bot args" в ("play", "Bot", "args"). ok=false, если текст не команда.
func SplitCommand(text string) (cmd, mention, args string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") && !strings.HasPrefix(text, "!") {
		return "", "", "", false
	}
	head, rest, _ := strings.Cut(text[1:], " ")
	if head == "" {
		return "", "", "", false
	}
	cmd, mention, _ = strings.Cut(head, "@")
	return strings.ToLower(cmd), mention, strings.TrimSpace(rest), true
}
