package commands

import (
	"context"

	"telegram-musicbot/internal/domain/keyboards"
)

// helpCommand: в личке - картинка с меню, в группе - приглашение в личку.
func (r *Router) helpCommand(ctx context.Context, m Message) error {
	if m.Chat.Private {
		_, err := r.msgr.SendPhoto(ctx, m.Chat.ID, 0, r.cfg.StartImgURL, r.t.T("help_1", r.cfg.SupportURL), keyboards.HelpPanel(r.t, false))
		return err
	}
	_, err := r.msgr.SendText(ctx, m.Chat.ID, m.ID, r.t.T("help_2"), keyboards.PrivateHelpPanel())
	return err
}
