package commands

import (
	"context"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/gotd/td/tg"

	"telegram-musicbot/internal/domain/playlogs"
	"telegram-musicbot/internal/domain/stream"
	"telegram-musicbot/internal/domain/youtube"
)

// Chat - чат, из которого пришло событие. ID в формате Bot API.
type Chat struct {
	ID       int64
	Title    string
	Username string
	Private  bool
}

// User - автор события.
type User struct {
	ID        int64
	FirstName string
	LastName  string
	Username  string
}

// Name - имя и фамилия.
func (u User) Name() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return "User"
	}
	return name
}

// Mention - HTML-ссылка на пользователя.
func (u User) Mention() string {
	return `<a href="tg://user?id=` + strconv.FormatInt(u.ID, 10) + `">` + html.EscapeString(u.Name()) + `</a>`
}

// Message - входящее сообщение с командой.
type Message struct {
	Chat  Chat
	From  User
	ID    int
	Text  string
	Raw   *tg.Message
	Reply *tg.Message // сообщение, на которое ответили; nil - нет
}

// CallbackQuery - нажатие inline-кнопки.
type CallbackQuery struct {
	QueryID int64
	Chat    Chat
	From    User
	MsgID   int
	Data    string
}

// Messenger - исходящие операции бота. Тексты в HTML, chatID в формате Bot API.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, replyTo int, text string, markup *tg.ReplyInlineMarkup) (int, error)
	// SendPhoto: photo - URL или локальный файл.
	SendPhoto(ctx context.Context, chatID int64, replyTo int, photo, caption string, markup *tg.ReplyInlineMarkup) (int, error)
	EditText(ctx context.Context, chatID int64, msgID int, text string, markup *tg.ReplyInlineMarkup) error
	EditPhoto(ctx context.Context, chatID int64, msgID int, photo, caption string, markup *tg.ReplyInlineMarkup) error
	EditMarkup(ctx context.Context, chatID int64, msgID int, markup *tg.ReplyInlineMarkup) error
	Delete(ctx context.Context, chatID int64, msgIDs ...int) error
	Answer(ctx context.Context, queryID int64, text string, alert bool) error
	// LinkedChat - связанный канал; id == 0, если его нет.
	LinkedChat(ctx context.Context, chatID int64) (int64, string, error)
	IsAdmin(ctx context.Context, chatID, userID int64) (bool, error)
	DownloadMedia(ctx context.Context, msg *tg.Message, dest string) error
}

// YouTube - операции платформы, которыми пользуются команды.
type YouTube interface {
	Track(ctx context.Context, linkOrQuery string) (youtube.Track, error)
	Slider(ctx context.Context, query string, index int) (youtube.Track, error)
	Playlist(ctx context.Context, link string, limit int) ([]string, error)
	Download(ctx context.Context, link string, mode youtube.Mode) (string, error)
}

// Player - очереди голосовых чатов.
type Player interface {
	Play(ctx context.Context, chatID int64, item stream.Item, force bool) (int, error)
	PauseResume(ctx context.Context, chatID int64) (bool, error)
	Pause(ctx context.Context, chatID int64) error
	Resume(ctx context.Context, chatID int64) error
	Skip(ctx context.Context, chatID int64) (stream.Item, bool, error)
	Stop(ctx context.Context, chatID int64) error
	Replay(ctx context.Context, chatID int64) (stream.Item, error)
	Seek(ctx context.Context, chatID int64, delta time.Duration) (time.Duration, error)
	Queue(chatID int64) []stream.Item
	Now(chatID int64) (stream.Playing, bool)
}

// Thumbnailer - превью трека; при ошибке возвращает картинку по умолчанию.
type Thumbnailer interface {
	Generate(ctx context.Context, id string) string
}

// Prober проверяет, что ссылку можно проиграть.
type Prober func(ctx context.Context, link string) error

// Texts - каталог строк.
type Texts interface {
	T(key string, args ...any) string
	Help(section string) string
}

// PlayLogger - отчёт о запуске в лог-группу.
type PlayLogger interface {
	Report(ctx context.Context, ev playlogs.Event)
}
