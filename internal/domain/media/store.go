package media

import "context"

// Entry - последние известные ссылки на копии трека в канале, по видам.
type Entry struct {
	Audio string `json:"audio,omitempty"`
	Video string `json:"video,omitempty"`
}

// Get возвращает ссылку для kind.
func (e Entry) Get(kind Kind) string {
	if kind == KindVideo {
		return e.Video
	}
	return e.Audio
}

// With возвращает копию записи с заменённой ссылкой для kind.
func (e Entry) With(kind Kind, link string) Entry {
	if kind == KindVideo {
		e.Video = link
	} else {
		e.Audio = link
	}
	return e
}

// Empty - в записи нет ни одной ссылки.
func (e Entry) Empty() bool { return e.Audio == "" && e.Video == "" }

// CacheStore хранит соответствие id → ссылки на сообщения в канале-хранилище.
// Реализации потокобезопасны. Отсутствие записи - не ошибка (ok=false).
type CacheStore interface {
	Lookup(ctx context.Context, id string, kind Kind) (link string, ok bool, err error)
	Save(ctx context.Context, id string, kind Kind, link string) error
	Forget(ctx context.Context, id string) error
	Len(ctx context.Context) (int, error)
	Close() error
}
