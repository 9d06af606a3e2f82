package media

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/gotd/td/tg"

	"telegram-musicbot/internal/tgutil"
)

// RemotePointer - ссылка на сообщение с медиа в Telegram-канале.
// Заполнено либо Username, либо ChannelID (MTProto id, без префикса -100).
type RemotePointer struct {
	Username  string
	ChannelID int64
	MessageID int
}

// ParsePointer принимает три формы ссылок:
//
//	https://t.me/<username>/<msg>
//	https://t.me/c/<id>/<msg>
//	tg://openmessage?chat_id=<id>&message_id=<msg>
func ParsePointer(link string) (RemotePointer, error) {
	link = strings.TrimSpace(link)
	u, err := url.Parse(link)
	if err != nil {
		return RemotePointer{}, errors.Wrapf(ErrBadPointer, "%q: %v", link, err)
	}

	if u.Scheme == "tg" {
		return parseOpenMessage(u, link)
	}

	if host := strings.TrimPrefix(strings.ToLower(u.Host), "www."); host != "t.me" && host != "telegram.me" {
		return RemotePointer{}, errors.Wrapf(ErrBadPointer, "%q: not a t.me link", link)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 {
		return RemotePointer{}, errors.Wrapf(ErrBadPointer, "%q: too few path parts", link)
	}
	msgID, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil || msgID <= 0 {
		return RemotePointer{}, errors.Wrapf(ErrBadPointer, "%q: message id", link)
	}

	if parts[0] == "c" {
		if len(parts) < 3 {
			return RemotePointer{}, errors.Wrapf(ErrBadPointer, "%q: missing channel id", link)
		}
		id, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil || id <= 0 {
			return RemotePointer{}, errors.Wrapf(ErrBadPointer, "%q: channel id", link)
		}
		return RemotePointer{ChannelID: id, MessageID: msgID}, nil
	}
	return RemotePointer{Username: parts[0], MessageID: msgID}, nil
}

func parseOpenMessage(u *url.URL, link string) (RemotePointer, error) {
	if u.Host != "openmessage" {
		return RemotePointer{}, errors.Wrapf(ErrBadPointer, "%q: unsupported tg link", link)
	}
	q := u.Query()
	chatID, err := strconv.ParseInt(q.Get("chat_id"), 10, 64)
	if err != nil || chatID == 0 {
		return RemotePointer{}, errors.Wrapf(ErrBadPointer, "%q: chat_id", link)
	}
	msgID, err := strconv.Atoi(q.Get("message_id"))
	if err != nil || msgID <= 0 {
		return RemotePointer{}, errors.Wrapf(ErrBadPointer, "%q: message_id", link)
	}
	ch, ok := tgutil.PeerFromBotAPIID(chatID).(*tg.PeerChannel)
	if !ok {
		return RemotePointer{}, errors.Wrapf(ErrBadPointer, "%q: chat_id is not a channel", link)
	}
	return RemotePointer{ChannelID: ch.ChannelID, MessageID: msgID}, nil
}

// String форматирует ссылку так, как её хранит кеш: публичная t.me-ссылка для
// каналов с username, иначе tg://openmessage с Bot API id канала.
func (p RemotePointer) String() string {
	if p.Username != "" {
		return "https://t.me/" + strings.TrimPrefix(p.Username, "@") + "/" + strconv.Itoa(p.MessageID)
	}
	chatID := tgutil.BotAPIID(&tg.PeerChannel{ChannelID: p.ChannelID})
	return "tg://openmessage?chat_id=" + strconv.FormatInt(chatID, 10) +
		"&message_id=" + strconv.Itoa(p.MessageID)
}
