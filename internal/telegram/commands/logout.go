package commands

import (
	"github.com/Farengier/gatewayd-console/internal/dispatch"
	"github.com/Farengier/gatewayd-console/internal/telegram/chat"
	"github.com/Farengier/gatewayd-console/internal/telegram/domain"
	"github.com/Farengier/gatewayd-console/internal/telegram/interfaces"
)

type logoutCmd struct {
	bus Dispatcher
}

func Logout(bus Dispatcher) *logoutCmd {
	return &logoutCmd{bus: bus}
}
func (lc *logoutCmd) Cmd() string {
	return "logout"
}
func (lc *logoutCmd) Description() string {
	return "Log the console out and forget the stored session"
}
func (lc *logoutCmd) Usage() string {
	return "/logout"
}
func (lc *logoutCmd) FloodControlLevel() int {
	return domain.SpamLevelLow
}
func (lc *logoutCmd) IsAuthRequired() bool {
	return true
}
func (lc *logoutCmd) PreAction(r interfaces.Replier, params []string, c *chat.Chat) bool {
	return false
}
func (lc *logoutCmd) Action(r interfaces.Replier, params []string, c *chat.Chat) interfaces.CommandActionResult {
	c.SetWatch(true)
	lc.bus.Dispatch(dispatch.Action{ActionType: dispatch.ActionLogout})
	return (*actionResult)(nil)
}
