// Package session holds the console's authentication state.
//
// A Manager owns a single mailbox goroutine. Login, Logout and Restore are
// messages processed one at a time in arrival order; the gateway round trip
// of a login runs aside and reports back through the same mailbox. Readers
// (IsLoggedIn, IsExpired, Snapshot) may be called from any goroutine.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Farengier/gatewayd-console/internal/api"
	"github.com/Farengier/gatewayd-console/internal/dispatch"
	"github.com/Farengier/gatewayd-console/internal/storage"
	log "github.com/sirupsen/logrus"
)

const DefaultTTL = time.Hour
const DefaultEmailDomain = "example.com"

const inboxLen = 16

var (
	ErrNoSnapshot = errors.New("no stored session")
	ErrClosed     = errors.New("session manager closed")
)

type Config interface {
	TTL() time.Duration
	EmailDomain() string
}

type Authenticator interface {
	Login(ctx context.Context, req api.LoginRequest, authorization string) (*api.LoginResponse, error)
}

type Kind int

const (
	KindLogin Kind = iota + 1
	KindLogout
	KindRestore
)

func (k Kind) String() string {
	switch k {
	case KindLogin:
		return "login"
	case KindLogout:
		return "logout"
	case KindRestore:
		return "restore"
	default:
		return "unknown"
	}
}

// Message is a mailbox entry. Credentials is only read for KindLogin.
type Message struct {
	Kind        Kind
	Credentials Credentials
}

type loginResult struct {
	attempt uint64
	name    string
	resp    *api.LoginResponse
	err     error
}

type outcome struct {
	accepted bool
	err      error
}

type envelope struct {
	msg    Message
	result *loginResult
	reply  chan outcome
}

type Manager struct {
	cfg   Config
	store storage.Storage
	auth  Authenticator
	now   func() time.Time

	mtx              sync.RWMutex
	state            State
	validationErrors []string

	inbox   chan envelope
	done    chan struct{}
	ctx     context.Context
	cncl    context.CancelFunc
	wg      sync.WaitGroup
	once    sync.Once
	attempt uint64

	subMtx sync.Mutex
	subs   []chan Event

	dispatcher *dispatch.Dispatcher
	token      dispatch.Token
}

// New starts a manager with default state. When d is not nil the manager
// registers its action handler there.
func New(cfg Config, store storage.Storage, auth Authenticator, d *dispatch.Dispatcher) *Manager {
	return newManager(cfg, store, auth, d, time.Now)
}

func newManager(cfg Config, store storage.Storage, auth Authenticator, d *dispatch.Dispatcher, now func() time.Time) *Manager {
	ctx, cncl := context.WithCancel(context.Background())
	m := &Manager{
		cfg:        cfg,
		store:      store,
		auth:       auth,
		now:        now,
		state:      defaultState(&User{}),
		inbox:      make(chan envelope, inboxLen),
		done:       make(chan struct{}),
		ctx:        ctx,
		cncl:       cncl,
		dispatcher: d,
	}

	m.wg.Add(1)
	go m.run()

	if d != nil {
		m.token = d.Register(m.handleAction)
	}
	return m
}

// Close stops the mailbox, abandons an in-flight login and closes subscriber channels.
func (m *Manager) Close() {
	m.once.Do(func() {
		if m.dispatcher != nil {
			m.dispatcher.Unregister(m.token)
		}
		close(m.done)
		m.cncl()
		m.wg.Wait()

		m.subMtx.Lock()
		for _, ch := range m.subs {
			close(ch)
		}
		m.subs = nil
		m.subMtx.Unlock()
		log.Info("[Session] manager closed")
	})
}

// Login updates the session optimistically and starts the gateway round trip.
// It returns false without touching anything when name or session key is empty.
func (m *Manager) Login(c Credentials) bool {
	out, err := m.call(Message{Kind: KindLogin, Credentials: c})
	if err != nil {
		return false
	}
	return out.accepted
}

// Logout resets the session and clears the whole storage. The state is reset
// even when clearing the storage fails.
func (m *Manager) Logout() error {
	out, err := m.call(Message{Kind: KindLogout})
	if err != nil {
		return err
	}
	return out.err
}

// Restore loads the stored session. It returns ErrNoSnapshot when there is
// none; on any error the current state is kept.
func (m *Manager) Restore() error {
	out, err := m.call(Message{Kind: KindRestore})
	if err != nil {
		return err
	}
	return out.err
}

// Post queues msg without waiting for it to be handled.
func (m *Manager) Post(msg Message) error {
	if !m.send(envelope{msg: msg}) {
		return ErrClosed
	}
	return nil
}

func (m *Manager) IsLoggedIn() bool {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	return m.state.User.IsLoggedIn
}

func (m *Manager) IsExpired() bool {
	m.mtx.RLock()
	last := m.state.LastLogin
	m.mtx.RUnlock()
	return m.now().UnixMilli()-last > m.ttl().Milliseconds()
}

func (m *Manager) LogState() string {
	if m.IsLoggedIn() {
		return LogStateLoggedIn
	}
	return LogStateLoggedOut
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() State {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	return m.state.clone()
}

// Validate checks the current state. Problems are also appended to the
// validation log.
func (m *Manager) Validate() error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.validateLocked(m.state)
}

// ValidationErrors returns every problem found so far, oldest first.
func (m *Manager) ValidationErrors() []string {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	out := make([]string, len(m.validationErrors))
	copy(out, m.validationErrors)
	return out
}

func (m *Manager) validateLocked(s State) error {
	p := s.problems()
	if len(p) == 0 {
		return nil
	}
	m.validationErrors = append(m.validationErrors, p...)
	return &ValidationError{Problems: p}
}

func (m *Manager) ttl() time.Duration {
	if m.cfg == nil || m.cfg.TTL() <= 0 {
		return DefaultTTL
	}
	return m.cfg.TTL()
}

func (m *Manager) emailDomain() string {
	if m.cfg == nil || m.cfg.EmailDomain() == "" {
		return DefaultEmailDomain
	}
	return m.cfg.EmailDomain()
}

func (m *Manager) send(env envelope) bool {
	select {
	case <-m.done:
		return false
	default:
	}
	select {
	case m.inbox <- env:
		return true
	case <-m.done:
		return false
	}
}

func (m *Manager) call(msg Message) (outcome, error) {
	env := envelope{msg: msg, reply: make(chan outcome, 1)}
	if !m.send(env) {
		return outcome{}, ErrClosed
	}
	select {
	case out := <-env.reply:
		return out, nil
	case <-m.done:
		return outcome{}, ErrClosed
	}
}

func (m *Manager) run() {
	defer m.wg.Done()
	for {
		select {
		case env := <-m.inbox:
			out := m.handle(env)
			if env.reply != nil {
				env.reply <- out
			}
		case <-m.done:
			return
		}
	}
}

func (m *Manager) handle(env envelope) outcome {
	if env.result != nil {
		m.loginDone(env.result)
		return outcome{}
	}

	switch env.msg.Kind {
	case KindLogin:
		return outcome{accepted: m.login(env.msg.Credentials)}
	case KindLogout:
		return outcome{accepted: true, err: m.logout()}
	case KindRestore:
		err := m.restore()
		return outcome{accepted: err == nil, err: err}
	default:
		log.Debugf("[Session] ignoring message of kind %d", env.msg.Kind)
		return outcome{}
	}
}

func (m *Manager) login(c Credentials) bool {
	if !c.valid() {
		log.Debug("[Session] login ignored: name or session key is empty")
		return false
	}

	authorization := BasicAuth(c.Name, c.SessionKey)

	m.mtx.Lock()
	m.state.SessionKey = c.SessionKey
	m.state.LastLogin = m.now().UnixMilli()
	m.state.User.Name = c.Name
	m.state.User.Role = c.Name
	m.state.User.IsLoggedIn = true
	m.state.Credentials = authorization
	_ = m.validateLocked(m.state)
	m.mtx.Unlock()

	m.attempt++
	res := &loginResult{attempt: m.attempt, name: c.Name}
	req := api.LoginRequest{
		Name:     c.Name + "@" + m.emailDomain(),
		Password: c.SessionKey,
	}

	m.wg.Add(1)
	go (func() {
		defer m.wg.Done()
		res.resp, res.err = m.auth.Login(m.ctx, req, authorization)
		m.send(envelope{result: res})
	})()
	return true
}

func (m *Manager) loginDone(r *loginResult) {
	if r.attempt != m.attempt {
		log.Warnf("[Session] dropping outdated login result for %s", r.name)
		return
	}
	if r.err != nil {
		log.Errorf("[Session] login FAIL for %s: %s", r.name, r.err)
		return
	}
	log.Infof("[Session] login SUCCESS for %s (admin: %t)", r.name, r.resp != nil && r.resp.User.Admin)

	snap := m.Snapshot()
	b, err := json.Marshal(snap)
	if err != nil {
		log.Errorf("[Session] encoding snapshot failed: %s", err)
	} else if err = m.store.SetItem(StorageKey, string(b)); err != nil {
		log.Errorf("[Session] storing snapshot failed: %s", err)
	}
	m.emit(Event{Kind: EventLoggedIn, State: snap})
}

func (m *Manager) logout() error {
	// a login still in flight must not resurrect the session
	m.attempt++

	m.mtx.Lock()
	u := m.state.User
	u.reset()
	m.state = defaultState(u)
	snap := m.state.clone()
	m.mtx.Unlock()

	var err error
	if cerr := m.store.Clear(); cerr != nil {
		log.Errorf("[Session] clearing storage failed: %s", cerr)
		err = fmt.Errorf("clearing storage failed: %w", cerr)
	}
	m.emit(Event{Kind: EventLoggedOut, State: snap})
	return err
}

func (m *Manager) restore() error {
	raw, ok, err := m.store.GetItem(StorageKey)
	if err != nil {
		return fmt.Errorf("reading stored session failed: %w", err)
	}
	if !ok || raw == "" {
		return ErrNoSnapshot
	}

	// stored fields override current ones, missing fields keep their value.
	// The user is rebuilt from the stored fragment alone.
	st := m.Snapshot()
	st.User = nil
	err = json.Unmarshal([]byte(raw), &st)
	if err != nil {
		return fmt.Errorf("decoding stored session failed: %w", err)
	}
	u := &User{}
	if st.User != nil {
		*u = *st.User
	}
	st.User = u

	m.mtx.Lock()
	defer m.mtx.Unlock()
	if err = m.validateLocked(st); err != nil {
		return fmt.Errorf("stored session rejected: %w", err)
	}
	m.state = st
	// a login still waiting on the gateway belongs to the replaced session
	m.attempt++
	log.Infof("[Session] restored session of %s", u.Name)
	return nil
}
