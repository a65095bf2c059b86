package commands

import (
	"github.com/Farengier/gatewayd-console/internal/dispatch"
	"github.com/Farengier/gatewayd-console/internal/session"
)

type Dispatcher interface {
	Dispatch(a dispatch.Action)
}

type Session interface {
	IsLoggedIn() bool
	IsExpired() bool
	LogState() string
	Snapshot() session.State
}
