package session

import (
	"encoding/json"
	"errors"

	"github.com/Farengier/gatewayd-console/internal/dispatch"
	log "github.com/sirupsen/logrus"
)

// handleAction is the manager's dispatcher callback. It returns once the
// action went through the mailbox.
func (m *Manager) handleAction(a dispatch.Action) {
	switch a.ActionType {
	case dispatch.ActionLogin:
		c, ok := credentialsFrom(a.Data)
		if !ok {
			log.Warnf("[Session] login action with unexpected payload %T", a.Data)
			return
		}
		m.Login(c)
	case dispatch.ActionLogout:
		if err := m.Logout(); err != nil {
			log.Errorf("[Session] logout action: %s", err)
		}
	case dispatch.ActionRestore:
		err := m.Restore()
		switch {
		case err == nil:
		case errors.Is(err, ErrNoSnapshot):
			log.Debug("[Session] restore action: nothing stored")
		default:
			log.Warnf("[Session] restore action: %s", err)
		}
	default:
		log.Debugf("[Session] ignoring action %q", a.ActionType)
	}
}

func credentialsFrom(data any) (Credentials, bool) {
	switch v := data.(type) {
	case Credentials:
		return v, true
	case *Credentials:
		if v == nil {
			return Credentials{}, false
		}
		return *v, true
	case json.RawMessage:
		return credentialsFromJSON(v)
	case []byte:
		return credentialsFromJSON(v)
	case map[string]any:
		name, _ := v["name"].(string)
		key, _ := v["sessionKey"].(string)
		return Credentials{Name: name, SessionKey: key}, true
	case map[string]string:
		return Credentials{Name: v["name"], SessionKey: v["sessionKey"]}, true
	default:
		return Credentials{}, false
	}
}

func credentialsFromJSON(b []byte) (Credentials, bool) {
	c := Credentials{}
	if err := json.Unmarshal(b, &c); err != nil {
		return Credentials{}, false
	}
	return c, true
}
