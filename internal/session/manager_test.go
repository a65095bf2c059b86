package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Farengier/gatewayd-console/internal/api"
	"github.com/Farengier/gatewayd-console/internal/dispatch"
	"github.com/Farengier/gatewayd-console/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	ttl    time.Duration
	domain string
}

func (c testConfig) TTL() time.Duration  { return c.ttl }
func (c testConfig) EmailDomain() string { return c.domain }

type call struct {
	req           api.LoginRequest
	authorization string
}

type fakeAuth struct {
	mtx     sync.Mutex
	calls   []call
	err     error
	release chan struct{}
}

func (f *fakeAuth) Login(ctx context.Context, req api.LoginRequest, authorization string) (*api.LoginResponse, error) {
	f.mtx.Lock()
	f.calls = append(f.calls, call{req: req, authorization: authorization})
	f.mtx.Unlock()

	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	r := &api.LoginResponse{}
	r.User.Admin = true
	return r, nil
}

func (f *fakeAuth) Calls() []call {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	out := make([]call, len(f.calls))
	copy(out, f.calls)
	return out
}

type clock struct {
	mtx sync.Mutex
	t   time.Time
}

func (c *clock) Now() time.Time {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.t
}

func (c *clock) Add(d time.Duration) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	m     *Manager
	auth  *fakeAuth
	store *storage.Memory
	clock *clock
	disp  *dispatch.Dispatcher
}

func newFixture(t *testing.T, auth *fakeAuth, store *storage.Memory) *fixture {
	t.Helper()
	if auth == nil {
		auth = &fakeAuth{}
	}
	if store == nil {
		store = storage.NewMemory()
	}
	f := &fixture{
		auth:  auth,
		store: store,
		clock: &clock{t: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		disp:  dispatch.New(),
	}
	f.m = newManager(testConfig{ttl: time.Hour, domain: "example.com"}, store, auth, f.disp, f.clock.Now)
	t.Cleanup(f.m.Close)
	return f
}

func waitEvent(t *testing.T, ch <-chan Event, kind EventKind) Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			require.True(t, ok, "subscription closed")
			if ev.Kind == kind {
				return ev
			}
		case <-timeout:
			t.Fatalf("no %s event", kind)
		}
	}
}

func defaultSnapshot() State {
	return State{Credentials: DefaultCredentials, User: &User{}}
}

func TestLogin_Success(t *testing.T) {
	f := newFixture(t, nil, nil)
	events := f.m.Subscribe(4)

	require.True(t, f.m.Login(Credentials{Name: "alice", SessionKey: "s3cr3t"}))
	assert.True(t, f.m.IsLoggedIn())
	assert.Equal(t, LogStateLoggedIn, f.m.LogState())

	ev := waitEvent(t, events, EventLoggedIn)
	assert.Equal(t, "s3cr3t", ev.State.SessionKey)

	snap := f.m.Snapshot()
	assert.Equal(t, "s3cr3t", snap.SessionKey)
	assert.Equal(t, f.clock.Now().UnixMilli(), snap.LastLogin)
	assert.Equal(t, "Basic YWxpY2U6czNjcjN0", snap.Credentials)
	assert.Equal(t, User{Name: "alice", Role: "alice", IsLoggedIn: true}, *snap.User)

	calls := f.auth.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, api.LoginRequest{Name: "alice@example.com", Password: "s3cr3t"}, calls[0].req)
	assert.Equal(t, snap.Credentials, calls[0].authorization)
	assert.Empty(t, f.m.ValidationErrors())

	raw, ok, err := f.store.GetItem(StorageKey)
	require.NoError(t, err)
	require.True(t, ok)
	stored := State{}
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Equal(t, snap, stored)
}

func TestLogin_MissingFieldsIsNoop(t *testing.T) {
	cases := map[string]Credentials{
		"no name": {SessionKey: "k"},
		"no key":  {Name: "alice"},
		"nothing": {},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, nil, nil)

			assert.False(t, f.m.Login(c))
			assert.False(t, f.m.IsLoggedIn())
			assert.Equal(t, defaultSnapshot(), f.m.Snapshot())
			assert.Empty(t, f.auth.Calls())
			assert.Equal(t, 0, f.store.Len())
		})
	}
}

func TestLogin_FailureKeepsOptimisticState(t *testing.T) {
	f := newFixture(t, &fakeAuth{err: errors.New("connection refused")}, nil)
	events := f.m.Subscribe(4)

	require.True(t, f.m.Login(Credentials{Name: "bob", SessionKey: "k"}))

	assert.Eventually(t, func() bool { return len(f.auth.Calls()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool {
		select {
		case <-events:
			return true
		default:
			return f.store.Len() > 0
		}
	}, 100*time.Millisecond, 10*time.Millisecond)

	assert.True(t, f.m.IsLoggedIn())
	assert.Equal(t, "k", f.m.Snapshot().SessionKey)
}

func TestLogout_IsIdempotent(t *testing.T) {
	f := newFixture(t, nil, nil)
	events := f.m.Subscribe(8)
	owned := f.m.state.User

	require.True(t, f.m.Login(Credentials{Name: "alice", SessionKey: "k"}))
	waitEvent(t, events, EventLoggedIn)
	require.NoError(t, f.store.SetItem("unrelated", "x"))

	require.NoError(t, f.m.Logout())
	once := f.m.Snapshot()
	require.NoError(t, f.m.Logout())
	twice := f.m.Snapshot()

	assert.Equal(t, defaultSnapshot(), once)
	assert.Equal(t, once, twice)
	assert.False(t, f.m.IsLoggedIn())
	assert.Equal(t, LogStateLoggedOut, f.m.LogState())
	assert.Equal(t, 0, f.store.Len())
	assert.Same(t, owned, f.m.state.User)
	waitEvent(t, events, EventLoggedOut)
}

func TestLogout_DropsLoginInFlight(t *testing.T) {
	auth := &fakeAuth{release: make(chan struct{})}
	f := newFixture(t, auth, nil)
	events := f.m.Subscribe(8)

	require.True(t, f.m.Login(Credentials{Name: "alice", SessionKey: "k"}))
	require.NoError(t, f.m.Logout())
	waitEvent(t, events, EventLoggedOut)
	close(auth.release)

	assert.Never(t, func() bool {
		select {
		case ev := <-events:
			return ev.Kind == EventLoggedIn
		default:
			return f.store.Len() > 0
		}
	}, 100*time.Millisecond, 10*time.Millisecond)
	assert.False(t, f.m.IsLoggedIn())
}

func TestRestore_DropsLoginInFlight(t *testing.T) {
	auth := &fakeAuth{release: make(chan struct{})}
	f := newFixture(t, auth, nil)
	events := f.m.Subscribe(8)
	stored := `{"sessionKey":"bobkey","lastLogin":5,"credentials":"Basic Ym9iOmJvYmtleQ==","user":{"name":"bob","role":"bob","isLoggedIn":true}}`
	require.NoError(t, f.store.SetItem(StorageKey, stored))

	require.True(t, f.m.Login(Credentials{Name: "alice", SessionKey: "k"}))
	require.NoError(t, f.m.Restore())
	close(auth.release)

	assert.Never(t, func() bool {
		select {
		case ev := <-events:
			return ev.Kind == EventLoggedIn
		default:
			return false
		}
	}, 100*time.Millisecond, 10*time.Millisecond)
	raw, ok, err := f.store.GetItem(StorageKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, stored, raw)
	assert.Equal(t, "bob", f.m.Snapshot().User.Name)
}

func TestRestore_PartialUserTakesDefaults(t *testing.T) {
	f := newFixture(t, nil, nil)
	events := f.m.Subscribe(4)
	require.True(t, f.m.Login(Credentials{Name: "alice", SessionKey: "k"}))
	waitEvent(t, events, EventLoggedIn)

	require.NoError(t, f.store.SetItem(StorageKey, `{"sessionKey":"k2","lastLogin":5,"user":{"name":"bob"}}`))
	require.NoError(t, f.m.Restore())

	snap := f.m.Snapshot()
	assert.Equal(t, "k2", snap.SessionKey)
	assert.Equal(t, int64(5), snap.LastLogin)
	assert.Equal(t, User{Name: "bob"}, *snap.User)
	assert.False(t, f.m.IsLoggedIn())
}

func TestRestore_RoundTrip(t *testing.T) {
	store := storage.NewMemory()
	first := newFixture(t, nil, store)
	events := first.m.Subscribe(4)

	require.True(t, first.m.Login(Credentials{Name: "alice", SessionKey: "k-42"}))
	waitEvent(t, events, EventLoggedIn)

	second := newFixture(t, nil, store)
	assert.False(t, second.m.IsLoggedIn())
	owned := second.m.state.User

	require.NoError(t, second.m.Restore())
	assert.True(t, second.m.IsLoggedIn())
	assert.Equal(t, "k-42", second.m.Snapshot().SessionKey)
	assert.Equal(t, first.m.Snapshot(), second.m.Snapshot())
	assert.NotSame(t, owned, second.m.state.User)
	assert.Empty(t, second.auth.Calls())
}

func TestRestore_NothingStored(t *testing.T) {
	f := newFixture(t, nil, nil)

	err := f.m.Restore()
	assert.ErrorIs(t, err, ErrNoSnapshot)
	assert.Equal(t, defaultSnapshot(), f.m.Snapshot())
}

func TestRestore_BadSnapshotLeavesState(t *testing.T) {
	cases := map[string]string{
		"not json":      `{"sessionKey":`,
		"wrong type":    `{"sessionKey":"k","lastLogin":"yesterday"}`,
		"empty key":     `{"sessionKey":"","lastLogin":5,"user":{"name":"x","isLoggedIn":true}}`,
		"negative time": `{"sessionKey":"k","lastLogin":-1}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, nil, nil)
			require.NoError(t, f.store.SetItem(StorageKey, raw))

			err := f.m.Restore()
			require.Error(t, err)
			assert.NotErrorIs(t, err, ErrNoSnapshot)
			assert.Equal(t, defaultSnapshot(), f.m.Snapshot())
		})
	}
}

func TestRestore_InvalidSnapshotIsLogged(t *testing.T) {
	f := newFixture(t, nil, nil)
	require.NoError(t, f.store.SetItem(StorageKey, `{"sessionKey":"","lastLogin":0}`))

	err := f.m.Restore()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{`"sessionKey" of session data is invalid`}, verr.Problems)
	assert.Equal(t, verr.Problems, f.m.ValidationErrors())
}

func TestValidate_AppendsToLog(t *testing.T) {
	f := newFixture(t, nil, nil)

	require.Error(t, f.m.Validate())
	require.Error(t, f.m.Validate())
	assert.Len(t, f.m.ValidationErrors(), 2)

	events := f.m.Subscribe(1)
	require.True(t, f.m.Login(Credentials{Name: "a", SessionKey: "b"}))
	waitEvent(t, events, EventLoggedIn)
	assert.NoError(t, f.m.Validate())
	assert.Len(t, f.m.ValidationErrors(), 2)
}

func TestIsExpired(t *testing.T) {
	f := newFixture(t, nil, nil)
	assert.True(t, f.m.IsExpired(), "never logged in")

	require.True(t, f.m.Login(Credentials{Name: "alice", SessionKey: "k"}))
	assert.False(t, f.m.IsExpired())

	f.clock.Add(time.Hour)
	assert.False(t, f.m.IsExpired())

	f.clock.Add(time.Millisecond)
	assert.True(t, f.m.IsExpired())
	assert.True(t, f.m.IsLoggedIn(), "expiry does not log out")
}

func TestDispatch_Routing(t *testing.T) {
	f := newFixture(t, nil, nil)
	events := f.m.Subscribe(8)
	require.Equal(t, 1, f.disp.Len())

	f.disp.Dispatch(dispatch.Action{ActionType: dispatch.ActionLogin, Data: Credentials{Name: "alice", SessionKey: "k"}})
	waitEvent(t, events, EventLoggedIn)
	assert.True(t, f.m.IsLoggedIn())

	before := f.m.Snapshot()
	f.disp.Dispatch(dispatch.Action{ActionType: "fetchPayments", Data: "anything"})
	assert.Equal(t, before, f.m.Snapshot())

	f.disp.Dispatch(dispatch.Action{ActionType: dispatch.ActionLogout})
	viaBus := f.m.Snapshot()
	require.NoError(t, f.m.Logout())
	assert.Equal(t, f.m.Snapshot(), viaBus)
	assert.Equal(t, defaultSnapshot(), viaBus)

	f.disp.Dispatch(dispatch.Action{ActionType: dispatch.ActionLogin, Data: Credentials{Name: "alice"}})
	assert.False(t, f.m.IsLoggedIn())
}

func TestDispatch_PayloadShapes(t *testing.T) {
	payloads := map[string]any{
		"pointer": &Credentials{Name: "a", SessionKey: "k"},
		"generic": map[string]any{"name": "a", "sessionKey": "k"},
		"strings": map[string]string{"name": "a", "sessionKey": "k"},
		"raw":     json.RawMessage(`{"name":"a","sessionKey":"k"}`),
	}
	for name, data := range payloads {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, nil, nil)
			f.disp.Dispatch(dispatch.Action{ActionType: dispatch.ActionLogin, Data: data})
			assert.True(t, f.m.IsLoggedIn())
		})
	}

	f := newFixture(t, nil, nil)
	f.disp.Dispatch(dispatch.Action{ActionType: dispatch.ActionLogin, Data: 42})
	assert.False(t, f.m.IsLoggedIn())
}

func TestDispatch_Restore(t *testing.T) {
	store := storage.NewMemory()
	first := newFixture(t, nil, store)
	events := first.m.Subscribe(1)
	first.disp.Dispatch(dispatch.Action{ActionType: dispatch.ActionLogin, Data: Credentials{Name: "a", SessionKey: "k"}})
	waitEvent(t, events, EventLoggedIn)

	second := newFixture(t, nil, store)
	second.disp.Dispatch(dispatch.Action{ActionType: dispatch.ActionRestore})
	assert.True(t, second.m.IsLoggedIn())
}

func TestPost_ProcessedInOrder(t *testing.T) {
	f := newFixture(t, &fakeAuth{release: make(chan struct{})}, nil)

	require.NoError(t, f.m.Post(Message{Kind: KindLogin, Credentials: Credentials{Name: "a", SessionKey: "k"}}))
	require.NoError(t, f.m.Post(Message{Kind: KindLogout}))
	require.NoError(t, f.m.Post(Message{Kind: KindLogin, Credentials: Credentials{Name: "b", SessionKey: "k2"}}))

	// a synchronous call queues behind the posted messages
	assert.ErrorIs(t, f.m.Restore(), ErrNoSnapshot)
	snap := f.m.Snapshot()
	assert.Equal(t, "b", snap.User.Name)
	assert.Equal(t, "k2", snap.SessionKey)
}

func TestClose(t *testing.T) {
	auth := &fakeAuth{release: make(chan struct{})}
	f := newFixture(t, auth, nil)
	events := f.m.Subscribe(1)
	require.True(t, f.m.Login(Credentials{Name: "a", SessionKey: "k"}))

	f.m.Close()
	f.m.Close()

	_, ok := <-events
	assert.False(t, ok)
	assert.Equal(t, 0, f.disp.Len())
	assert.False(t, f.m.Login(Credentials{Name: "a", SessionKey: "k"}))
	assert.ErrorIs(t, f.m.Restore(), ErrClosed)
	assert.ErrorIs(t, f.m.Logout(), ErrClosed)
	assert.ErrorIs(t, f.m.Post(Message{Kind: KindLogout}), ErrClosed)
}

func TestLogin_AgainstGateway(t *testing.T) {
	var user, pass string
	var body api.LoginRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, _ = r.BasicAuth()
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"user":{"admin":false}}`))
	}))
	defer srv.Close()

	store := storage.NewMemory()
	m := New(testConfig{domain: "ripple.local"}, store, api.New(gatewayConfig{url: srv.URL}), nil)
	defer m.Close()
	events := m.Subscribe(1)

	require.True(t, m.Login(Credentials{Name: "alice", SessionKey: "s3cr3t"}))
	waitEvent(t, events, EventLoggedIn)

	assert.True(t, m.IsLoggedIn())
	assert.Regexp(t, "^Basic ", m.Snapshot().Credentials)
	assert.Equal(t, "alice", user)
	assert.Equal(t, "s3cr3t", pass)
	assert.Equal(t, api.LoginRequest{Name: "alice@ripple.local", Password: "s3cr3t"}, body)
	assert.Equal(t, 1, store.Len())
}

type gatewayConfig struct {
	url string
}

func (c gatewayConfig) LoginURL() string              { return c.url }
func (c gatewayConfig) RequestTimeout() time.Duration { return 5 * time.Second }
