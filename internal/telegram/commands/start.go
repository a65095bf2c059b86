package commands

import (
	"github.com/Farengier/gatewayd-console/internal/telegram/chat"
	"github.com/Farengier/gatewayd-console/internal/telegram/domain"
	"github.com/Farengier/gatewayd-console/internal/telegram/interfaces"
)

type startCmd struct {
}

func Start() *startCmd {
	return &startCmd{}
}
func (sc *startCmd) Cmd() string {
	return "start"
}
func (sc *startCmd) Description() string {
	return "Start talking to the gatewayd console"
}
func (sc *startCmd) Usage() string {
	return "/start"
}
func (sc *startCmd) FloodControlLevel() int {
	return domain.SpamLevelNone
}
func (sc *startCmd) IsAuthRequired() bool {
	return false
}
func (sc *startCmd) PreAction(r interfaces.Replier, params []string, c *chat.Chat) bool {
	return false
}
func (sc *startCmd) Action(r interfaces.Replier, params []string, c *chat.Chat) interfaces.CommandActionResult {
	msg := `Gatewayd Basic Admin

Commands:
 /login <name> <session key>
 /logout
 /status`
	c.SetWatch(false)
	r.ReplyWithMessage(msg)
	return (*actionResult)(nil)
}
