package debug

import (
	"testing"

	"github.com/gotd/td/tg"
)

func TestLabels(t *testing.T) {
	t.Parallel()

	e := tg.Entities{
		Users:    map[int64]*tg.User{1: {ID: 1, FirstName: "Ann", Username: "ann"}, 2: {ID: 2}},
		Chats:    map[int64]*tg.Chat{3: {ID: 3, Title: "Basic"}},
		Channels: map[int64]*tg.Channel{4: {ID: 4, Title: "Rock", Megagroup: true, Username: "rock"}},
	}
	cases := []struct {
		name     string
		peer     tg.PeerClass
		wantKind string
		wantName string
	}{
		{name: "личка", peer: &tg.PeerUser{UserID: 1}, wantKind: "Private", wantName: "'Ann' (@ann)"},
		{name: "пустое имя", peer: &tg.PeerUser{UserID: 2}, wantKind: "Private", wantName: "'<unknown>'"},
		{name: "чат", peer: &tg.PeerChat{ChatID: 3}, wantKind: "Chat", wantName: "'Basic'"},
		{name: "супергруппа", peer: &tg.PeerChannel{ChannelID: 4}, wantKind: "Supergroup", wantName: "'Rock' (@rock)"},
		{name: "неизвестный канал", peer: &tg.PeerChannel{ChannelID: 9}, wantKind: "Channel", wantName: "<untitled channel>"},
	}
	for _, tc := range cases {
		kind, name := chatLabel(tc.peer, e)
		if kind != tc.wantKind || name != tc.wantName {
			t.Errorf("%s: chatLabel = %q, %q", tc.name, kind, name)
		}
	}

	msg := &tg.Message{PeerID: &tg.PeerChannel{ChannelID: 4}}
	if got := authorLabel(msg, e); got != "<anonymous>" {
		t.Errorf("authorLabel without from = %q", got)
	}
	msg.SetFromID(&tg.PeerUser{UserID: 1})
	if got := authorLabel(msg, e); got != "'Ann' (@ann)" {
		t.Errorf("authorLabel = %q", got)
	}
}
