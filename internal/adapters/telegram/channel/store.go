// Package channel - канал-хранилище в Telegram: чтение медиа из сообщения по
// ссылке и повторная загрузка скачанных треков. Аудио уходит аудиофайлом, видео
// документом; подпись сообщения - id трека. Все вызовы API идут через Throttler.
package channel

import (
	"context"
	"io"
	rand "math/rand/v2"
	"mime"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-faster/errors"
	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/telegram/peers"
	"github.com/gotd/td/telegram/uploader"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"

	"telegram-musicbot/internal/domain/media"
	"telegram-musicbot/internal/infra/logger"
	"telegram-musicbot/internal/infra/storage"
	"telegram-musicbot/internal/infra/throttle"
)

// Peers резолвит каналы по username и по MTProto/Bot API id.
type Peers interface {
	ResolveChannel(ctx context.Context, ref string) (peers.Channel, error)
	ResolveChannelID(ctx context.Context, id int64) (peers.Channel, error)
}

// Store реализует media.ChatClient и media.Uploader поверх MTProto-клиента.
type Store struct {
	api      *tg.Client
	peers    Peers
	throttle *throttle.Throttler
	ref      string // UPLOAD_CHANNEL

	mu     sync.Mutex
	target *peers.Channel
}

// New создаёт хранилище. Пустой ref отключает Upload, FetchMedia работает всегда.
func New(api *tg.Client, p Peers, th *throttle.Throttler, ref string) *Store {
	return &Store{api: api, peers: p, throttle: th, ref: strings.TrimSpace(ref)}
}

// Enabled сообщает, задан ли канал для загрузки.
func (s *Store) Enabled() bool { return s.ref != "" }

func (s *Store) do(ctx context.Context, fn func() error) error {
	if s.throttle == nil {
		return fn()
	}
	return s.throttle.Do(ctx, func() error { return classify(fn()) })
}

// resolve находит канал ссылки: по username, иначе по числовому id.
func (s *Store) resolve(ctx context.Context, p media.RemotePointer) (peers.Channel, error) {
	if p.Username != "" {
		ch, err := s.peers.ResolveChannel(ctx, p.Username)
		if err == nil || p.ChannelID == 0 {
			return ch, err
		}
		logger.Debug("channel: username lookup failed, trying id", zap.String("username", p.Username), zap.Error(err))
	}
	return s.peers.ResolveChannelID(ctx, p.ChannelID)
}

// FetchMedia скачивает аудио, видео или документ из сообщения по ссылке в dest.
func (s *Store) FetchMedia(ctx context.Context, p media.RemotePointer, dest string) error {
	ch, err := s.resolve(ctx, p)
	if err != nil {
		return errors.Wrap(err, "resolve channel")
	}

	var res tg.MessagesMessagesClass
	err = s.do(ctx, func() error {
		var callErr error
		res, callErr = s.api.ChannelsGetMessages(ctx, &tg.ChannelsGetMessagesRequest{
			Channel: ch.InputChannel(),
			ID:      []tg.InputMessageClass{&tg.InputMessageID{ID: p.MessageID}},
		})
		return callErr
	})
	if err != nil {
		return errors.Wrapf(err, "get message %d", p.MessageID)
	}

	doc, err := documentOf(res, p.MessageID)
	if err != nil {
		return err
	}
	return SaveDocument(ctx, s.api, doc, dest)
}

// documentOf достаёт документ сообщения msgID из ответа API.
func documentOf(res tg.MessagesMessagesClass, msgID int) (*tg.Document, error) {
	modified, ok := res.AsModified()
	if !ok {
		return nil, media.ErrNoMedia
	}
	for _, m := range modified.GetMessages() {
		msg, ok := m.(*tg.Message)
		if !ok || msg.ID != msgID {
			continue
		}
		if doc, ok := MessageDocument(msg); ok {
			return doc, nil
		}
	}
	return nil, errors.Wrapf(media.ErrNoMedia, "message %d", msgID)
}

// MessageDocument - документ из медиа сообщения (аудио, голосовое, видео, файл).
func MessageDocument(msg *tg.Message) (*tg.Document, bool) {
	if msg == nil {
		return nil, false
	}
	mm, ok := msg.Media.(*tg.MessageMediaDocument)
	if !ok {
		return nil, false
	}
	doc, ok := mm.Document.(*tg.Document)
	return doc, ok
}

// SaveDocument атомарно сохраняет документ в dest.
func SaveDocument(ctx context.Context, api *tg.Client, doc *tg.Document, dest string) error {
	d := downloader.NewDownloader()
	err := storage.WriteAtomic(dest, storage.SharedPerm, func(w io.Writer) error {
		_, err := d.Download(api, doc.AsInputDocumentFileLocation()).Stream(ctx, w)
		return err
	})
	if err != nil {
		return errors.Wrapf(err, "download document %d", doc.ID)
	}
	return nil
}

func (s *Store) uploadTarget(ctx context.Context) (peers.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.target != nil {
		return *s.target, nil
	}
	ch, err := s.peers.ResolveChannel(ctx, s.ref)
	if err != nil {
		return peers.Channel{}, errors.Wrapf(err, "resolve upload channel %q", s.ref)
	}
	s.target = &ch
	return ch, nil
}

// Upload заливает файл в канал и возвращает ссылку на новое сообщение.
func (s *Store) Upload(ctx context.Context, path, id string, kind media.Kind) (media.RemotePointer, error) {
	if !s.Enabled() {
		return media.RemotePointer{}, errors.New("channel: upload channel is not configured")
	}
	ch, err := s.uploadTarget(ctx)
	if err != nil {
		return media.RemotePointer{}, err
	}

	var file tg.InputFileClass
	err = s.do(ctx, func() error {
		var upErr error
		file, upErr = uploader.NewUploader(s.api).FromPath(ctx, path)
		return upErr
	})
	if err != nil {
		return media.RemotePointer{}, errors.Wrapf(err, "upload %s", path)
	}

	var upd tg.UpdatesClass
	err = s.do(ctx, func() error {
		var sendErr error
		upd, sendErr = s.api.MessagesSendMedia(ctx, &tg.MessagesSendMediaRequest{
			Peer:     ch.InputPeer(),
			Media:    uploadedMedia(file, path, id, kind),
			Message:  id,
			RandomID: rand.Int64(), // #nosec G404
		})
		return sendErr
	})
	if err != nil {
		return media.RemotePointer{}, errors.Wrapf(err, "send %s to %q", id, s.ref)
	}

	msgID, ok := SentMessageID(upd)
	if !ok {
		return media.RemotePointer{}, errors.Errorf("channel: no message id in %T", upd)
	}
	return pointerFor(ch, msgID), nil
}

// uploadedMedia: аудио - аудиофайлом с названием, видео - документом.
func uploadedMedia(file tg.InputFileClass, path, id string, kind media.Kind) *tg.InputMediaUploadedDocument {
	name := filepath.Base(path)
	doc := &tg.InputMediaUploadedDocument{
		File:     file,
		MimeType: mimeOf(path, kind),
		Attributes: []tg.DocumentAttributeClass{
			&tg.DocumentAttributeFilename{FileName: name},
		},
	}
	if kind == media.KindAudio {
		doc.Attributes = append(doc.Attributes, &tg.DocumentAttributeAudio{Title: id})
	} else {
		doc.SetForceFile(true)
	}
	return doc
}

func mimeOf(path string, kind media.Kind) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	if kind == media.KindAudio {
		return "audio/mpeg"
	}
	return "video/mp4"
}

func pointerFor(ch peers.Channel, msgID int) media.RemotePointer {
	if username, ok := ch.Username(); ok && username != "" {
		return media.RemotePointer{Username: username, MessageID: msgID}
	}
	return media.RemotePointer{ChannelID: ch.ID(), MessageID: msgID}
}

// SentMessageID достаёт id отправленного сообщения из ответа на send-запрос.
func SentMessageID(upd tg.UpdatesClass) (int, bool) {
	var list []tg.UpdateClass
	switch u := upd.(type) {
	case *tg.UpdateShortSentMessage:
		return u.ID, true
	case *tg.Updates:
		list = u.Updates
	case *tg.UpdatesCombined:
		list = u.Updates
	case *tg.UpdateShort:
		list = []tg.UpdateClass{u.Update}
	default:
		return 0, false
	}
	for _, item := range list {
		switch v := item.(type) {
		case *tg.UpdateNewChannelMessage:
			if m, ok := v.Message.(*tg.Message); ok {
				return m.ID, true
			}
		case *tg.UpdateNewMessage:
			if m, ok := v.Message.(*tg.Message); ok {
				return m.ID, true
			}
		}
	}
	for _, item := range list {
		if v, ok := item.(*tg.UpdateMessageID); ok {
			return v.ID, true
		}
	}
	return 0, false
}
