package interfaces

import (
	"github.com/Farengier/gatewayd-console/internal/telegram/chat"
)

type Command interface {
	Cmd() string
	Description() string
	Usage() string
	FloodControlLevel() int
	// IsAuthRequired commands only run while the console is logged in.
	IsAuthRequired() bool
	// PreAction checks the params and the session before flood control.
	// Returning true stops the command.
	PreAction(r Replier, params []string, c *chat.Chat) bool
	Action(r Replier, params []string, c *chat.Chat) CommandActionResult
}

type CommandActionResult interface {
	ResetSpamFilter() bool
}
