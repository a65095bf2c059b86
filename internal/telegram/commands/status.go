package commands

import (
	"fmt"

	"github.com/Farengier/gatewayd-console/internal/session"
	"github.com/Farengier/gatewayd-console/internal/telegram/chat"
	"github.com/Farengier/gatewayd-console/internal/telegram/domain"
	"github.com/Farengier/gatewayd-console/internal/telegram/interfaces"
)

type statusCmd struct {
	sess Session
}

func Status(sess Session) *statusCmd {
	return &statusCmd{sess: sess}
}
func (sc *statusCmd) Cmd() string {
	return "status"
}
func (sc *statusCmd) Description() string {
	return "Show the console session"
}
func (sc *statusCmd) Usage() string {
	return "/status"
}
func (sc *statusCmd) FloodControlLevel() int {
	return domain.SpamLevelLow
}
func (sc *statusCmd) IsAuthRequired() bool {
	return false
}
func (sc *statusCmd) PreAction(r interfaces.Replier, params []string, c *chat.Chat) bool {
	return false
}
func (sc *statusCmd) Action(r interfaces.Replier, params []string, c *chat.Chat) interfaces.CommandActionResult {
	if !sc.sess.IsLoggedIn() {
		r.ReplyWithMessage(session.LogStateLoggedOut)
		return (*actionResult)(nil)
	}

	u := sc.sess.Snapshot().User
	msg := fmt.Sprintf("%s as %s [%s]", session.LogStateLoggedIn, u.Role, u.Name)
	if sc.sess.IsExpired() {
		msg += ", session expired"
	}
	r.ReplyWithMessage(msg)
	return (*actionResult)(nil)
}
