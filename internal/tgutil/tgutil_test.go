package tgutil_test

import (
	"reflect"
	"testing"

	"github.com/gotd/td/tg"

	"telegram-musicbot/internal/tgutil"
)

func TestBotAPIIDRoundTrip(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		peer tg.PeerClass
		id   int64
	}{
		{name: "пользователь", peer: &tg.PeerUser{UserID: 42}, id: 42},
		{name: "чат", peer: &tg.PeerChat{ChatID: 777}, id: -777},
		{name: "канал", peer: &tg.PeerChannel{ChannelID: 1234567890}, id: -1001234567890},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tgutil.BotAPIID(tc.peer); got != tc.id {
				t.Fatalf("BotAPIID = %d, want %d", got, tc.id)
			}
			if got := tgutil.PeerFromBotAPIID(tc.id); !reflect.DeepEqual(got, tc.peer) {
				t.Fatalf("PeerFromBotAPIID = %#v, want %#v", got, tc.peer)
			}
		})
	}
	if tgutil.PeerFromBotAPIID(0) != nil {
		t.Fatal("zero id must map to nil peer")
	}
}

func TestSplitCommand(t *testing.T) {
	t.Parallel()

	cases := []struct {
		text    string
		cmd     string
		mention string
		args    string
		ok      bool
	}{
		{text: "/play never gonna", cmd: "play", args: "never gonna", ok: true},
		{text: "/VPlay@MusicBot  https://youtu.be/x ", cmd: "vplay", mention: "MusicBot", args: "https://youtu.be/x", ok: true},
		{text: "!help", cmd: "help", ok: true},
		{text: "play", ok: false},
		{text: "/", ok: false},
	}
	for _, tc := range cases {
		cmd, mention, args, ok := tgutil.SplitCommand(tc.text)
		if cmd != tc.cmd || mention != tc.mention || args != tc.args || ok != tc.ok {
			t.Errorf("SplitCommand(%q) = (%q, %q, %q, %v)", tc.text, cmd, mention, args, ok)
		}
	}
}

func TestReplyToMsgID(t *testing.T) {
	t.Parallel()

	msg := &tg.Message{}
	if _, ok := tgutil.ReplyToMsgID(msg); ok {
		t.Fatal("message without reply reported reply")
	}
	header := &tg.MessageReplyHeader{}
	header.SetReplyToMsgID(15)
	msg.SetReplyTo(header)
	if id, ok := tgutil.ReplyToMsgID(msg); !ok || id != 15 {
		t.Fatalf("ReplyToMsgID = %d, %v", id, ok)
	}
}

func TestSenderID(t *testing.T) {
	t.Parallel()

	msg := &tg.Message{PeerID: &tg.PeerChannel{ChannelID: 1}}
	msg.SetFromID(&tg.PeerUser{UserID: 99})
	if got := tgutil.SenderID(msg); got != 99 {
		t.Fatalf("SenderID = %d", got)
	}
	private := &tg.Message{PeerID: &tg.PeerUser{UserID: 5}}
	if got := tgutil.SenderID(private); got != 5 {
		t.Fatalf("SenderID private = %d", got)
	}
}
