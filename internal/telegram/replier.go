package telegram

import (
	"github.com/Farengier/gatewayd-console/internal/telegram/interfaces"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type replier struct {
	b      *bot
	chatID int64
	cmd    interfaces.Command
}

func (r *replier) InternalError() {
	r.ReplyWithMessage(msgInternalErr)
}

func (r *replier) Usage() {
	if r.cmd == nil {
		return
	}
	r.ReplyWithMessage("Usage: " + r.cmd.Usage())
}

func (r *replier) ReplyWithMessage(msg string) {
	r.b.send(tgbotapi.NewMessage(r.chatID, msg))
}
