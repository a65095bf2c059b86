package commands

import (
	"fmt"

	"github.com/Farengier/gatewayd-console/internal/dispatch"
	"github.com/Farengier/gatewayd-console/internal/session"
	"github.com/Farengier/gatewayd-console/internal/telegram/chat"
	"github.com/Farengier/gatewayd-console/internal/telegram/domain"
	"github.com/Farengier/gatewayd-console/internal/telegram/interfaces"
	log "github.com/sirupsen/logrus"
)

type loginCmd struct {
	bus  Dispatcher
	sess Session
}

func Login(bus Dispatcher, sess Session) *loginCmd {
	return &loginCmd{bus: bus, sess: sess}
}
func (lc *loginCmd) Cmd() string {
	return "login"
}
func (lc *loginCmd) Description() string {
	return "Log the console in to the gateway"
}
func (lc *loginCmd) Usage() string {
	return "/login <name> <session key>"
}
func (lc *loginCmd) FloodControlLevel() int {
	return domain.SpamLevelSensitive
}
func (lc *loginCmd) IsAuthRequired() bool {
	return false
}
func (lc *loginCmd) PreAction(r interfaces.Replier, params []string, c *chat.Chat) bool {
	if lc.sess.IsLoggedIn() && !lc.sess.IsExpired() {
		u := lc.sess.Snapshot().User
		r.ReplyWithMessage(fmt.Sprintf("Already authenticated as %s [%s]", u.Role, u.Name))
		return true
	}

	if len(params) < 2 || params[0] == "" || params[1] == "" {
		r.Usage()
		return true
	}

	return false
}
func (lc *loginCmd) Action(r interfaces.Replier, params []string, c *chat.Chat) interfaces.CommandActionResult {
	name := params[0]
	key := params[1]

	log.Infof("[TBot] chat %d logs in as %s", c.ID, name)
	c.SetWatch(true)
	lc.bus.Dispatch(dispatch.Action{
		ActionType: dispatch.ActionLogin,
		Data:       session.Credentials{Name: name, SessionKey: key},
	})

	if !lc.sess.IsLoggedIn() {
		r.InternalError()
		return &actionResult{resetSpamFilter: false}
	}
	r.ReplyWithMessage(fmt.Sprintf("Logging in as %s, waiting for the gateway", name))
	return &actionResult{resetSpamFilter: true}
}
