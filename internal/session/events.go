package session

import (
	log "github.com/sirupsen/logrus"
)

type EventKind string

const (
	EventLoggedIn  EventKind = "loggedIn"
	EventLoggedOut EventKind = "loggedOut"
)

type Event struct {
	Kind  EventKind
	State State
}

// Subscribe returns a channel receiving session events. Events that do not
// fit into the buffer are dropped. The channel is closed by Close or Unsubscribe.
func (m *Manager) Subscribe(buffer int) <-chan Event {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	m.subMtx.Lock()
	defer m.subMtx.Unlock()
	select {
	case <-m.done:
		close(ch)
		return ch
	default:
	}
	m.subs = append(m.subs, ch)
	return ch
}

func (m *Manager) Unsubscribe(sub <-chan Event) {
	m.subMtx.Lock()
	defer m.subMtx.Unlock()

	for i, ch := range m.subs {
		if (<-chan Event)(ch) == sub {
			m.subs = append(m.subs[:i:i], m.subs[i+1:]...)
			close(ch)
			return
		}
	}
}

func (m *Manager) emit(ev Event) {
	m.subMtx.Lock()
	defer m.subMtx.Unlock()

	for _, ch := range m.subs {
		e := Event{Kind: ev.Kind, State: ev.State.clone()}
		select {
		case ch <- e:
		default:
			log.Warnf("[Session] subscriber is full, %s event dropped", ev.Kind)
		}
	}
}
