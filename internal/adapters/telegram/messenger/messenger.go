// Package messenger - исходящие операции бота через MTProto: тексты и фото с
// HTML-разметкой, правки, удаление, ответы на кнопки, служебные запросы о чате.
// Идентификаторы чатов принимаются в формате Bot API.
package messenger

import (
	"context"
	rand "math/rand/v2"
	"strings"

	"github.com/go-faster/errors"
	"github.com/gotd/td/telegram/message/entity"
	"github.com/gotd/td/telegram/message/html"
	"github.com/gotd/td/telegram/uploader"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"go.uber.org/zap"

	"telegram-musicbot/internal/adapters/telegram/channel"
	"telegram-musicbot/internal/infra/logger"
	"telegram-musicbot/internal/infra/telegram/peersmgr"
	"telegram-musicbot/internal/tgutil"
)

// Messenger реализует commands.Messenger и playlogs.Sender.
type Messenger struct {
	api   *tg.Client
	peers *peersmgr.Service
}

// New создаёт Messenger.
func New(api *tg.Client, peers *peersmgr.Service) *Messenger {
	if peers == nil {
		panic("messenger: peers manager must not be nil")
	}
	return &Messenger{api: api, peers: peers}
}

// parseHTML переводит HTML-подмножество Telegram в текст и сущности.
func parseHTML(text string) (string, []tg.MessageEntityClass, error) {
	var b entity.Builder
	if err := html.HTML(strings.NewReader(text), &b, html.Options{}); err != nil {
		return "", nil, errors.Wrap(err, "parse html")
	}
	msg, ents := b.Complete()
	return msg, ents, nil
}

// isRemote - фото по ссылке, без загрузки.
func isRemote(photo string) bool {
	return strings.HasPrefix(photo, "http://") || strings.HasPrefix(photo, "https://")
}

func (m *Messenger) inputPeer(ctx context.Context, chatID int64) (tg.InputPeerClass, error) {
	peer, err := m.peers.InputPeerByBotAPIID(ctx, chatID)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve chat %d", chatID)
	}
	return peer, nil
}

func (m *Messenger) photoMedia(ctx context.Context, photo string) (tg.InputMediaClass, error) {
	if isRemote(photo) {
		return &tg.InputMediaPhotoExternal{URL: photo}, nil
	}
	file, err := uploader.NewUploader(m.api).FromPath(ctx, photo)
	if err != nil {
		return nil, errors.Wrapf(err, "upload photo %s", photo)
	}
	return &tg.InputMediaUploadedPhoto{File: file}, nil
}

func replyTo(id int) tg.InputReplyToClass {
	if id <= 0 {
		return nil
	}
	return &tg.InputReplyToMessage{ReplyToMsgID: id}
}

// SendText отправляет HTML-текст и возвращает id сообщения.
func (m *Messenger) SendText(ctx context.Context, chatID int64, reply int, text string, markup *tg.ReplyInlineMarkup) (int, error) {
	peer, err := m.inputPeer(ctx, chatID)
	if err != nil {
		return 0, err
	}
	msg, ents, err := parseHTML(text)
	if err != nil {
		return 0, err
	}
	req := &tg.MessagesSendMessageRequest{
		Peer:      peer,
		Message:   msg,
		Entities:  ents,
		NoWebpage: true,
		RandomID:  rand.Int64(), // #nosec G404
	}
	if r := replyTo(reply); r != nil {
		req.ReplyTo = r
	}
	if markup != nil {
		req.ReplyMarkup = markup
	}
	upd, err := m.api.MessagesSendMessage(ctx, req)
	if err != nil {
		return 0, errors.Wrapf(err, "send message to %d", chatID)
	}
	id, _ := channel.SentMessageID(upd)
	return id, nil
}

// SendHTML - для лог-группы: без ответа и кнопок.
func (m *Messenger) SendHTML(ctx context.Context, chatID int64, text string) error {
	_, err := m.SendText(ctx, chatID, 0, text, nil)
	return err
}

// SendPhoto отправляет фото (URL или локальный файл) с подписью.
func (m *Messenger) SendPhoto(ctx context.Context, chatID int64, reply int, photo, caption string, markup *tg.ReplyInlineMarkup) (int, error) {
	peer, err := m.inputPeer(ctx, chatID)
	if err != nil {
		return 0, err
	}
	msg, ents, err := parseHTML(caption)
	if err != nil {
		return 0, err
	}
	media, err := m.photoMedia(ctx, photo)
	if err != nil {
		return 0, err
	}
	req := &tg.MessagesSendMediaRequest{
		Peer:     peer,
		Media:    media,
		Message:  msg,
		Entities: ents,
		RandomID: rand.Int64(), // #nosec G404
	}
	if r := replyTo(reply); r != nil {
		req.ReplyTo = r
	}
	if markup != nil {
		req.ReplyMarkup = markup
	}
	upd, err := m.api.MessagesSendMedia(ctx, req)
	if err != nil {
		// фото по ссылке Telegram иногда не может скачать: шлём хотя бы текст
		logger.Debug("send photo failed, falling back to text", zap.Int64("chat", chatID), zap.String("photo", photo), zap.Error(err))
		return m.SendText(ctx, chatID, reply, caption, markup)
	}
	id, _ := channel.SentMessageID(upd)
	return id, nil
}

func (m *Messenger) edit(ctx context.Context, chatID int64, req *tg.MessagesEditMessageRequest) error {
	peer, err := m.inputPeer(ctx, chatID)
	if err != nil {
		return err
	}
	req.Peer = peer
	if _, err := m.api.MessagesEditMessage(ctx, req); err != nil {
		if tgerr.Is(err, "MESSAGE_NOT_MODIFIED") {
			return nil
		}
		return errors.Wrapf(err, "edit message %d in %d", req.ID, chatID)
	}
	return nil
}

// EditText заменяет текст и клавиатуру сообщения.
func (m *Messenger) EditText(ctx context.Context, chatID int64, msgID int, text string, markup *tg.ReplyInlineMarkup) error {
	msg, ents, err := parseHTML(text)
	if err != nil {
		return err
	}
	req := &tg.MessagesEditMessageRequest{ID: msgID, Entities: ents, NoWebpage: true}
	req.SetMessage(msg)
	if markup != nil {
		req.ReplyMarkup = markup
	}
	return m.edit(ctx, chatID, req)
}

// EditPhoto заменяет фото, подпись и клавиатуру.
func (m *Messenger) EditPhoto(ctx context.Context, chatID int64, msgID int, photo, caption string, markup *tg.ReplyInlineMarkup) error {
	msg, ents, err := parseHTML(caption)
	if err != nil {
		return err
	}
	media, err := m.photoMedia(ctx, photo)
	if err != nil {
		return err
	}
	req := &tg.MessagesEditMessageRequest{ID: msgID, Media: media, Entities: ents}
	req.SetMessage(msg)
	if markup != nil {
		req.ReplyMarkup = markup
	}
	return m.edit(ctx, chatID, req)
}

// EditMarkup меняет только клавиатуру.
func (m *Messenger) EditMarkup(ctx context.Context, chatID int64, msgID int, markup *tg.ReplyInlineMarkup) error {
	req := &tg.MessagesEditMessageRequest{ID: msgID}
	if markup != nil {
		req.ReplyMarkup = markup
	}
	return m.edit(ctx, chatID, req)
}

// Delete удаляет сообщения; в каналах и супергруппах - через channels.deleteMessages.
func (m *Messenger) Delete(ctx context.Context, chatID int64, msgIDs ...int) error {
	if len(msgIDs) == 0 {
		return nil
	}
	if ch, ok := tgutil.PeerFromBotAPIID(chatID).(*tg.PeerChannel); ok {
		resolved, err := m.peers.ResolveChannelID(ctx, ch.ChannelID)
		if err != nil {
			return err
		}
		_, err = m.api.ChannelsDeleteMessages(ctx, &tg.ChannelsDeleteMessagesRequest{
			Channel: resolved.InputChannel(),
			ID:      msgIDs,
		})
		return errors.Wrap(err, "delete channel messages")
	}
	_, err := m.api.MessagesDeleteMessages(ctx, &tg.MessagesDeleteMessagesRequest{Revoke: true, ID: msgIDs})
	return errors.Wrap(err, "delete messages")
}

// Answer отвечает на нажатие кнопки; alert - всплывающее окно.
func (m *Messenger) Answer(ctx context.Context, queryID int64, text string, alert bool) error {
	req := &tg.MessagesSetBotCallbackAnswerRequest{QueryID: queryID, Alert: alert}
	if text != "" {
		req.SetMessage(text)
	}
	if _, err := m.api.MessagesSetBotCallbackAnswer(ctx, req); err != nil {
		if tgerr.Is(err, "QUERY_ID_INVALID") {
			return nil
		}
		return errors.Wrap(err, "answer callback")
	}
	return nil
}

// LinkedChat - связанный с супергруппой канал (для /cplay). id == 0, если связи нет.
func (m *Messenger) LinkedChat(ctx context.Context, chatID int64) (int64, string, error) {
	ch, ok := tgutil.PeerFromBotAPIID(chatID).(*tg.PeerChannel)
	if !ok {
		return 0, "", nil
	}
	resolved, err := m.peers.ResolveChannelID(ctx, ch.ChannelID)
	if err != nil {
		return 0, "", err
	}
	full, err := m.api.ChannelsGetFullChannel(ctx, resolved.InputChannel())
	if err != nil {
		return 0, "", errors.Wrap(err, "get full channel")
	}
	info, ok := full.FullChat.(*tg.ChannelFull)
	if !ok {
		return 0, "", nil
	}
	linked, ok := info.GetLinkedChatID()
	if !ok || linked == 0 {
		return 0, "", nil
	}
	if err := m.peers.Mgr.Apply(ctx, full.Users, full.Chats); err != nil {
		logger.Debug("linked chat entities not applied", zap.Error(err))
	}
	return tgutil.BotAPIID(&tg.PeerChannel{ChannelID: linked}), titleOf(full.Chats, linked), nil
}

func titleOf(chats []tg.ChatClass, id int64) string {
	for _, c := range chats {
		if ch, ok := c.(*tg.Channel); ok && ch.ID == id {
			return ch.Title
		}
	}
	return ""
}

// IsAdmin проверяет права участника: создатель или администратор.
func (m *Messenger) IsAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	user, err := m.peers.InputPeer(ctx, &tg.PeerUser{UserID: userID})
	if err != nil {
		return false, err
	}
	switch p := tgutil.PeerFromBotAPIID(chatID).(type) {
	case *tg.PeerChannel:
		ch, err := m.peers.ResolveChannelID(ctx, p.ChannelID)
		if err != nil {
			return false, err
		}
		res, err := m.api.ChannelsGetParticipant(ctx, &tg.ChannelsGetParticipantRequest{
			Channel:     ch.InputChannel(),
			Participant: user,
		})
		if err != nil {
			if tgerr.Is(err, "USER_NOT_PARTICIPANT") {
				return false, nil
			}
			return false, errors.Wrap(err, "get participant")
		}
		return isAdminParticipant(res.Participant), nil
	case *tg.PeerChat:
		full, err := m.api.MessagesGetFullChat(ctx, p.ChatID)
		if err != nil {
			return false, errors.Wrap(err, "get full chat")
		}
		info, ok := full.FullChat.(*tg.ChatFull)
		if !ok {
			return false, nil
		}
		list, ok := info.Participants.(*tg.ChatParticipants)
		if !ok {
			return false, nil
		}
		return isChatAdmin(list.Participants, userID), nil
	default:
		return false, nil
	}
}

func isAdminParticipant(p tg.ChannelParticipantClass) bool {
	switch p.(type) {
	case *tg.ChannelParticipantCreator, *tg.ChannelParticipantAdmin:
		return true
	default:
		return false
	}
}

func isChatAdmin(list []tg.ChatParticipantClass, userID int64) bool {
	for _, p := range list {
		switch v := p.(type) {
		case *tg.ChatParticipantCreator:
			if v.UserID == userID {
				return true
			}
		case *tg.ChatParticipantAdmin:
			if v.UserID == userID {
				return true
			}
		}
	}
	return false
}

// DownloadMedia сохраняет документ сообщения в dest.
func (m *Messenger) DownloadMedia(ctx context.Context, msg *tg.Message, dest string) error {
	doc, ok := channel.MessageDocument(msg)
	if !ok {
		return errors.New("messenger: message has no document")
	}
	return channel.SaveDocument(ctx, m.api, doc, dest)
}

// FetchReply загружает сообщение, на которое ответил msg. Нет ответа - (nil, nil).
func (m *Messenger) FetchReply(ctx context.Context, msg *tg.Message) (*tg.Message, error) {
	replyID, ok := tgutil.ReplyToMsgID(msg)
	if !ok {
		return nil, nil
	}
	ids := []tg.InputMessageClass{&tg.InputMessageID{ID: replyID}}

	var (
		res tg.MessagesMessagesClass
		err error
	)
	if ch, isChannel := msg.PeerID.(*tg.PeerChannel); isChannel {
		resolved, rErr := m.peers.ResolveChannelID(ctx, ch.ChannelID)
		if rErr != nil {
			return nil, rErr
		}
		res, err = m.api.ChannelsGetMessages(ctx, &tg.ChannelsGetMessagesRequest{Channel: resolved.InputChannel(), ID: ids})
	} else {
		res, err = m.api.MessagesGetMessages(ctx, ids)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get reply %d", replyID)
	}
	modified, ok := res.AsModified()
	if !ok {
		return nil, nil
	}
	for _, item := range modified.GetMessages() {
		if reply, ok := item.(*tg.Message); ok && reply.ID == replyID {
			return reply, nil
		}
	}
	return nil, nil
}
