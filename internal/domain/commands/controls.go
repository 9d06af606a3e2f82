package commands

import (
	"context"
	"strconv"
	"strings"
	"time"

	"telegram-musicbot/internal/domain/keyboards"
	"telegram-musicbot/internal/domain/stream"
)

func (r *Router) queueCommand(ctx context.Context, m Message) error {
	items := r.play.Queue(m.Chat.ID)
	if len(items) == 0 {
		_, err := r.msgr.SendText(ctx, m.Chat.ID, m.ID, r.t.T("queue_1"), nil)
		return err
	}
	_, err := r.msgr.SendText(ctx, m.Chat.ID, m.ID, r.t.T("queue_2", queueText(items)), keyboards.Queue("g", items[0].VideoID))
	return err
}

// controlCommand - /pause /resume /skip /stop /replay /seek N /seekback N.
func (r *Router) controlCommand(ctx context.Context, m Message, cmd, args string) error {
	reply := func(text string) error {
		_, err := r.msgr.SendText(ctx, m.Chat.ID, m.ID, text, nil)
		return err
	}
	if !r.canControl(ctx, m.Chat.ID, m.From) {
		return reply(r.t.T("admin_8"))
	}

	chat := m.Chat.ID
	var (
		text string
		err  error
	)
	switch cmd {
	case "pause":
		text, err = r.t.T("admin_1"), r.play.Pause(ctx, chat)
	case "resume":
		text, err = r.t.T("admin_2"), r.play.Resume(ctx, chat)
	case "skip", "next":
		text, err = r.skip(ctx, chat, chat)
	case "stop", "end":
		text, err = r.t.T("admin_4"), r.play.Stop(ctx, chat)
	case "replay":
		_, err = r.play.Replay(ctx, chat)
		text = r.t.T("admin_5")
	case "seek", "seekback":
		delta := seekArg(args)
		if cmd == "seekback" {
			delta = -delta
		}
		_, err = r.play.Seek(ctx, chat, delta)
		text = r.t.T("admin_6", int(delta.Seconds()))
	}
	if err != nil {
		return reply(r.controlError(err))
	}
	return reply(text)
}

// seekArg - секунды из аргумента; по умолчанию шаг кнопок.
func seekArg(args string) time.Duration {
	n, err := strconv.Atoi(strings.TrimSpace(args))
	if err != nil || n == 0 {
		return stream.SeekStep
	}
	return time.Duration(n) * time.Second
}

// statsCommand доступна только владельцу бота.
func (r *Router) statsCommand(ctx context.Context, m Message) error {
	if r.adm == nil || r.cfg.OwnerID == 0 || m.From.ID != r.cfg.OwnerID {
		return nil
	}
	st, err := r.adm.Stats(ctx)
	if err != nil {
		return err
	}
	rs := st.Resolver
	_, err = r.msgr.SendText(ctx, m.Chat.ID, m.ID, r.t.T("stats_1",
		st.CachedTracks,
		st.ActiveChats,
		rs.LocalHits,
		rs.ChannelHits,
		rs.APIPointer+rs.APIStream,
		rs.Failures,
		st.Uploads.Succeeded,
		st.Uptime,
	), nil)
	return err
}
