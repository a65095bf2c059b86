package dispatch

import (
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type ActionType string

const (
	ActionLogin   ActionType = "login"
	ActionLogout  ActionType = "logout"
	ActionRestore ActionType = "restore"
)

// Action is a message on the admin bus. Data carries the action payload,
// for login it is the credentials pair.
type Action struct {
	ActionType ActionType `json:"actionType"`
	Data       any        `json:"data,omitempty"`
}

type Callback func(a Action)

type Token string

type entry struct {
	token Token
	cb    Callback
}

// Dispatcher fans actions out to registered callbacks. It may be used from
// any goroutine; callbacks that own state must serialize on their own.
type Dispatcher struct {
	callbacks []entry
	mtx       sync.RWMutex
}

func New() *Dispatcher {
	return &Dispatcher{}
}

func (d *Dispatcher) Register(cb Callback) Token {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	t := Token(uuid.NewString())
	d.callbacks = append(d.callbacks, entry{token: t, cb: cb})
	return t
}

func (d *Dispatcher) Unregister(t Token) {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	for i, e := range d.callbacks {
		if e.token == t {
			d.callbacks = append(d.callbacks[:i:i], d.callbacks[i+1:]...)
			return
		}
	}
}

// Dispatch runs every registered callback in registration order before returning.
func (d *Dispatcher) Dispatch(a Action) {
	d.mtx.RLock()
	cbs := make([]entry, len(d.callbacks))
	copy(cbs, d.callbacks)
	d.mtx.RUnlock()

	log.Debugf("[Dispatch] %s to %d callbacks", a.ActionType, len(cbs))
	for _, e := range cbs {
		e.cb(a)
	}
}

func (d *Dispatcher) Len() int {
	d.mtx.RLock()
	defer d.mtx.RUnlock()
	return len(d.callbacks)
}
