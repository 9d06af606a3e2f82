package commands

import (
	"path"
	"strconv"
	"strings"

	"github.com/gotd/td/tg"
)

// AttachmentKind - вид файла в сообщении.
type AttachmentKind int

const (
	AttachNone AttachmentKind = iota
	AttachAudio
	AttachVoice
	AttachVideo
	AttachDocument
)

// Attachment - файл из сообщения, на которое ответили.
type Attachment struct {
	Kind     AttachmentKind
	ID       string
	FileName string
	MimeType string
	Title    string
	Size     int64
	Duration int // секунды
}

// Audio - звук (аудио или голосовое).
func (a Attachment) Audio() bool { return a.Kind == AttachAudio || a.Kind == AttachVoice }

// Ext - расширение из имени файла; без имени - ".ogg" для звука и ".mp4" для видео.
func (a Attachment) Ext() string {
	if ext := path.Ext(a.FileName); ext != "" {
		return strings.ToLower(ext)
	}
	if a.Audio() {
		return ".ogg"
	}
	return ".mp4"
}

// DisplayTitle - подпись для очереди.
func (a Attachment) DisplayTitle() string {
	switch {
	case a.Title != "":
		return a.Title
	case a.FileName != "":
		return a.FileName
	case a.Kind == AttachVoice:
		return "Voice message"
	default:
		return "Telegram file"
	}
}

// AttachmentOf разбирает документ сообщения. ok=false - файла нет.
func AttachmentOf(msg *tg.Message) (Attachment, bool) {
	if msg == nil {
		return Attachment{}, false
	}
	mm, ok := msg.Media.(*tg.MessageMediaDocument)
	if !ok {
		return Attachment{}, false
	}
	doc, ok := mm.Document.(*tg.Document)
	if !ok {
		return Attachment{}, false
	}
	a := Attachment{
		Kind:     AttachDocument,
		ID:       strconv.FormatInt(doc.ID, 10),
		MimeType: doc.MimeType,
		Size:     doc.Size,
	}
	for _, attr := range doc.Attributes {
		switch v := attr.(type) {
		case *tg.DocumentAttributeFilename:
			a.FileName = v.FileName
		case *tg.DocumentAttributeAudio:
			a.Duration = v.Duration
			a.Title = v.Title
			if v.Voice {
				a.Kind = AttachVoice
			} else {
				a.Kind = AttachAudio
			}
		case *tg.DocumentAttributeVideo:
			a.Duration = int(v.Duration)
			if a.Kind == AttachDocument {
				a.Kind = AttachVideo
			}
		}
	}
	return a, true
}
