// Package peersmgr - обёртка над gotd peers.Manager с персистентным хранилищем на bbolt.
// Сервис отвечает за:
//   - открытие/закрытие базы кэша пиров;
//   - прогрузку сохранённых пиров в peers.Manager при старте (access hash каналов
//     переживают рестарт, и канал-хранилище не приходится резолвить заново);
//   - резолв канала-хранилища и чатов по username, числовому id или peer'у сообщения.
package peersmgr

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	bboltdb "github.com/gotd/contrib/bbolt"
	contribstorage "github.com/gotd/contrib/storage"
	"github.com/gotd/td/telegram/peers"
	"github.com/gotd/td/telegram/query/dialogs"
	"github.com/gotd/td/tg"
	"go.etcd.io/bbolt"

	"telegram-musicbot/internal/infra/logger"
	"telegram-musicbot/internal/infra/storage"
	"telegram-musicbot/internal/tgutil"
)

const (
	peersBucketName             = "peers"
	dbOpenTimeout               = time.Second
	dbFileMode      os.FileMode = 0o600
)

var peersBucketBytes = []byte(peersBucketName)

// Service инкапсулирует менеджер пиров и bbolt-хранилище.
type Service struct {
	db    *bbolt.DB
	store contribstorage.PeerStorage
	Mgr   *peers.Manager
}

// New открывает bbolt по dbPath и строит peers.Manager поверх api. Сетевых запросов не делает.
func New(api *tg.Client, dbPath string) (*Service, error) {
	if api == nil {
		return nil, errors.New("peersmgr: api client is nil")
	}
	path := strings.TrimSpace(dbPath)
	if path == "" {
		return nil, errors.New("peersmgr: db path is empty")
	}
	if err := storage.EnsureDir(path); err != nil {
		return nil, errors.Wrap(err, "peersmgr")
	}

	db, err := bbolt.Open(path, dbFileMode, &bbolt.Options{Timeout: dbOpenTimeout})
	if err != nil {
		return nil, errors.Wrap(err, "peersmgr: open db")
	}
	return &Service{
		db:    db,
		store: bboltdb.NewPeerStorage(db, peersBucketBytes),
		Mgr:   (peers.Options{}).Build(api),
	}, nil
}

// Close закрывает файл базы.
func (s *Service) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Store возвращает персистентное хранилище пиров (для contribstorage.UpdateHook).
func (s *Service) Store() contribstorage.PeerStorage {
	return s.store
}

// LoadFromStorage прогружает сохранённые пиры в peers.Manager. Битый бакет сбрасывается.
func (s *Service) LoadFromStorage(ctx context.Context) error {
	exists := false
	if err := s.db.View(func(tx *bbolt.Tx) error {
		exists = tx.Bucket(peersBucketBytes) != nil
		return nil
	}); err != nil {
		return errors.Wrap(err, "peersmgr: inspect db")
	}
	if !exists {
		return nil
	}

	iter, err := s.store.Iterate(ctx)
	if err != nil {
		return s.recoverCorrupted(err)
	}
	defer func() { _ = iter.Close() }()

	var (
		users []tg.UserClass
		chats []tg.ChatClass
	)
	for iter.Next(ctx) {
		user, chat := entityOf(iter.Value())
		if user != nil {
			users = append(users, user)
		}
		if chat != nil {
			chats = append(chats, chat)
		}
	}
	if err := iter.Err(); err != nil {
		return s.recoverCorrupted(err)
	}
	if len(users) == 0 && len(chats) == 0 {
		return nil
	}
	logger.Debugf("peersmgr: restored %d users, %d chats", len(users), len(chats))
	return s.Mgr.Apply(ctx, users, chats)
}

// entityOf восстанавливает сущность из записи хранилища; без полной сущности
// достаточно id и access hash.
func entityOf(value contribstorage.Peer) (tg.UserClass, tg.ChatClass) {
	switch value.Key.Kind {
	case dialogs.User:
		if value.User != nil {
			return value.User, nil
		}
		return &tg.User{ID: value.Key.ID, AccessHash: value.Key.AccessHash}, nil
	case dialogs.Chat:
		if value.Chat != nil {
			return nil, value.Chat
		}
		return nil, &tg.Chat{ID: value.Key.ID}
	case dialogs.Channel:
		if value.Channel != nil {
			return nil, value.Channel
		}
		return nil, &tg.Channel{ID: value.Key.ID, AccessHash: value.Key.AccessHash}
	default:
		return nil, nil
	}
}

func (s *Service) recoverCorrupted(err error) error {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if !errors.As(err, &syntaxErr) && !errors.As(err, &typeErr) && !strings.Contains(err.Error(), "json:") {
		return errors.Wrap(err, "peersmgr: iterate stored peers")
	}
	logger.Warnf("peersmgr: peers bucket is corrupted, resetting: %v", err)
	return s.db.Update(func(tx *bbolt.Tx) error {
		if delErr := tx.DeleteBucket(peersBucketBytes); delErr != nil && !errors.Is(delErr, bbolt.ErrBucketNotFound) {
			return delErr
		}
		_, createErr := tx.CreateBucketIfNotExists(peersBucketBytes)
		return createErr
	})
}

// ResolveChannel находит канал по ссылке из конфигурации: "@username", "username",
// Bot API id (-100…) или «сырой» id канала.
func (s *Service) ResolveChannel(ctx context.Context, ref string) (peers.Channel, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return peers.Channel{}, errors.New("peersmgr: empty channel reference")
	}
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return s.ResolveChannelID(ctx, id)
	}

	p, err := s.Mgr.ResolveDomain(ctx, strings.TrimPrefix(ref, "@"))
	if err != nil {
		return peers.Channel{}, errors.Wrapf(err, "resolve %q", ref)
	}
	ch, ok := p.(peers.Channel)
	if !ok {
		return peers.Channel{}, errors.Errorf("peersmgr: %q is %T, not a channel", ref, p)
	}
	return ch, nil
}

// ResolveChannelID принимает как Bot API id (-100…), так и MTProto id канала.
func (s *Service) ResolveChannelID(ctx context.Context, id int64) (peers.Channel, error) {
	if id < 0 {
		p, ok := tgutil.PeerFromBotAPIID(id).(*tg.PeerChannel)
		if !ok {
			return peers.Channel{}, errors.Errorf("peersmgr: %d is not a channel id", id)
		}
		id = p.ChannelID
	}
	ch, err := s.Mgr.ResolveChannelID(ctx, id)
	if err != nil {
		return peers.Channel{}, errors.Wrapf(err, "resolve channel %d", id)
	}
	return ch, nil
}

// InputPeer возвращает tg.InputPeerClass для peer'а сообщения.
func (s *Service) InputPeer(ctx context.Context, peer tg.PeerClass) (tg.InputPeerClass, error) {
	switch p := peer.(type) {
	case *tg.PeerUser:
		user, err := s.Mgr.ResolveUserID(ctx, p.UserID)
		if err != nil {
			return nil, errors.Wrapf(err, "resolve user %d", p.UserID)
		}
		return user.InputPeer(), nil
	case *tg.PeerChat:
		chat, err := s.Mgr.ResolveChatID(ctx, p.ChatID)
		if err != nil {
			return nil, errors.Wrapf(err, "resolve chat %d", p.ChatID)
		}
		return chat.InputPeer(), nil
	case *tg.PeerChannel:
		channel, err := s.Mgr.ResolveChannelID(ctx, p.ChannelID)
		if err != nil {
			return nil, errors.Wrapf(err, "resolve channel %d", p.ChannelID)
		}
		return channel.InputPeer(), nil
	default:
		return nil, errors.Errorf("peersmgr: unsupported peer type %T", peer)
	}
}

// InputPeerByBotAPIID - InputPeer для id в формате Bot API (LOG_GROUP_ID и т. п.).
func (s *Service) InputPeerByBotAPIID(ctx context.Context, id int64) (tg.InputPeerClass, error) {
	peer := tgutil.PeerFromBotAPIID(id)
	if peer == nil {
		return nil, errors.New("peersmgr: zero peer id")
	}
	return s.InputPeer(ctx, peer)
}
