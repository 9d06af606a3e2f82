package media

import (
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"
)

// Kind - вариант медиа одного и того же трека.
type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

const minIDLen = 3

var (
	// ErrInvalidID - идентификатор слишком короткий или пустой.
	ErrInvalidID = errors.New("media: invalid identifier")
	// ErrUnavailable - трек не удалось получить ни из одного источника.
	ErrUnavailable = errors.New("media: not available")
	// ErrNoMedia - в сообщении по ссылке нет аудио, видео или документа.
	ErrNoMedia = errors.New("media: message has no media")
	// ErrBadPointer - ссылку на сообщение не удалось разобрать.
	ErrBadPointer = errors.New("media: malformed message link")
	// ErrUnknownKind - неизвестный вид медиа.
	ErrUnknownKind = errors.New("media: unknown kind")
)

// ParseKind разбирает "audio"/"video" без учёта регистра.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindAudio:
		return KindAudio, nil
	case KindVideo:
		return KindVideo, nil
	default:
		return "", errors.Wrapf(ErrUnknownKind, "%q", s)
	}
}

// Ext - расширение локального файла: .webm для аудио, .mkv для видео.
func (k Kind) Ext() string {
	if k == KindVideo {
		return ".mkv"
	}
	return ".webm"
}

func (k Kind) String() string { return string(k) }

// Valid сообщает, что k - один из известных видов.
func (k Kind) Valid() bool { return k == KindAudio || k == KindVideo }

// ValidateID проверяет идентификатор трека.
func ValidateID(id string) error {
	if len(strings.TrimSpace(id)) < minIDLen {
		return errors.Wrapf(ErrInvalidID, "%q", id)
	}
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return errors.Wrapf(ErrInvalidID, "%q", id)
	}
	return nil
}

// VideoID достаёт id из ссылки вида ...?v=<id>&...; иначе возвращает ссылку как есть.
func VideoID(link string) string {
	_, after, found := strings.Cut(link, "v=")
	if !found {
		return link
	}
	id, _, _ := strings.Cut(after, "&")
	return id
}

// LocalPath - детерминированный путь файла трека в каталоге загрузок.
func LocalPath(dir, id string, kind Kind) string {
	return filepath.Join(dir, id+kind.Ext())
}
