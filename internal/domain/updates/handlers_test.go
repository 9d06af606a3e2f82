package updates_test

import (
	"context"
	"sync"
	"testing"

	"github.com/gotd/td/tg"

	"telegram-musicbot/internal/domain/commands"
	"telegram-musicbot/internal/domain/updates"
	"telegram-musicbot/internal/infra/concurrency"
)

type recorder struct {
	mu        sync.Mutex
	messages  []commands.Message
	callbacks []commands.CallbackQuery
}

func (r *recorder) HandleMessage(_ context.Context, m commands.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, m)
	return nil
}

func (r *recorder) HandleCallback(_ context.Context, q commands.CallbackQuery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks = append(r.callbacks, q)
	return nil
}

type replies struct{ reply *tg.Message }

func (r replies) FetchReply(context.Context, *tg.Message) (*tg.Message, error) { return r.reply, nil }

func entities() tg.Entities {
	return tg.Entities{
		Users:    map[int64]*tg.User{42: {ID: 42, FirstName: "Ann", Username: "ann"}},
		Channels: map[int64]*tg.Channel{1234: {ID: 1234, Title: "Rock", Megagroup: true}},
	}
}

func channelMsg(id int, text string) *tg.UpdateNewChannelMessage {
	msg := &tg.Message{ID: id, Message: text, PeerID: &tg.PeerChannel{ChannelID: 1234}}
	msg.SetFromID(&tg.PeerUser{UserID: 42})
	return &tg.UpdateNewChannelMessage{Message: msg}
}

func TestHandlers_MessageFlow(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	reply := &tg.Message{ID: 1}
	h := updates.NewHandlers(rec, replies{reply: reply}, concurrency.NewDeduplicator(60))
	h.Start(context.Background())

	ctx := context.Background()
	_ = h.OnNewChannelMessage(ctx, entities(), channelMsg(10, "/play lofi"))
	_ = h.OnNewChannelMessage(ctx, entities(), channelMsg(10, "/play lofi")) // повтор
	_ = h.OnNewChannelMessage(ctx, entities(), channelMsg(11, "просто текст"))

	out := channelMsg(12, "/play x")
	out.Message.(*tg.Message).Out = true
	_ = h.OnNewChannelMessage(ctx, entities(), out)
	h.Stop()

	if len(rec.messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(rec.messages))
	}
	m := rec.messages[0]
	if m.Chat.ID != -1000000001234 || m.Chat.Private || m.Chat.Title != "Rock" {
		t.Errorf("chat = %+v", m.Chat)
	}
	if m.From.ID != 42 || m.From.Username != "ann" || m.Text != "/play lofi" || m.Reply != reply {
		t.Errorf("message = %+v", m)
	}
}

func TestHandlers_PrivateMessage(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	h := updates.NewHandlers(rec, nil, nil)
	h.Start(context.Background())
	_ = h.OnNewMessage(context.Background(), entities(), &tg.UpdateNewMessage{
		Message: &tg.Message{ID: 3, Message: "/start", PeerID: &tg.PeerUser{UserID: 42}},
	})
	h.Stop()

	if len(rec.messages) != 1 {
		t.Fatalf("messages = %d", len(rec.messages))
	}
	m := rec.messages[0]
	if !m.Chat.Private || m.Chat.ID != 42 || m.From.ID != 42 || m.From.FirstName != "Ann" {
		t.Fatalf("message = %+v", m)
	}
}

func TestHandlers_Callback(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	h := updates.NewHandlers(rec, nil, concurrency.NewDeduplicator(60))
	h.Start(context.Background())
	u := &tg.UpdateBotCallbackQuery{
		QueryID: 99,
		UserID:  42,
		Peer:    &tg.PeerChat{ChatID: 5},
		MsgID:   7,
		Data:    []byte("ADMIN Pause|-5"),
	}
	_ = h.OnBotCallbackQuery(context.Background(), entities(), u)
	_ = h.OnBotCallbackQuery(context.Background(), entities(), u)
	h.Stop()

	if len(rec.callbacks) != 1 {
		t.Fatalf("callbacks = %d", len(rec.callbacks))
	}
	q := rec.callbacks[0]
	if q.Chat.ID != -5 || q.From.ID != 42 || q.MsgID != 7 || q.Data != "ADMIN Pause|-5" || q.QueryID != 99 {
		t.Fatalf("callback = %+v", q)
	}
}

func TestHandlers_DropsBeforeStartAndAfterStop(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	h := updates.NewHandlers(rec, nil, nil)
	_ = h.OnNewChannelMessage(context.Background(), entities(), channelMsg(1, "/play a"))
	h.Start(context.Background())
	h.Stop()
	_ = h.OnNewChannelMessage(context.Background(), entities(), channelMsg(2, "/play b"))

	if len(rec.messages) != 0 {
		t.Fatalf("messages = %+v", rec.messages)
	}
}
