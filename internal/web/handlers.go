package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Farengier/gatewayd-console/internal/dispatch"
	"github.com/Farengier/gatewayd-console/internal/session"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const brandName = "Gatewayd Basic Admin"

type Session interface {
	IsLoggedIn() bool
	IsExpired() bool
	LogState() string
	Snapshot() session.State
}

type Dispatcher interface {
	Dispatch(a dispatch.Action)
}

type console struct {
	sess    Session
	bus     Dispatcher
	limiter *rate.Limiter
}

type userView struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

type statusView struct {
	State   string   `json:"state"`
	Expired bool     `json:"expired"`
	User    userView `json:"user"`
}

type errorView struct {
	Error string `json:"error"`
}

// NewRouter builds the console API. Session changes only go through the bus.
// A nil limiter leaves login attempts unlimited.
func NewRouter(sess Session, bus Dispatcher, limiter *rate.Limiter) *mux.Router {
	c := &console{sess: sess, bus: bus, limiter: limiter}

	r := mux.NewRouter()
	r.Use(logRequests)

	r.HandleFunc("/api/session", c.status).Methods(http.MethodGet)
	r.HandleFunc("/api/session/login", c.login).Methods(http.MethodPost)
	r.HandleFunc("/api/session/logout", c.logout).Methods(http.MethodPost)
	r.HandleFunc("/api/session/restore", c.restore).Methods(http.MethodPost)

	r.HandleFunc("/login", c.loginPage).Methods(http.MethodGet)
	r.Handle("/", c.requireSession(http.HandlerFunc(c.home))).Methods(http.MethodGet)
	return r
}

func (c *console) view() statusView {
	snap := c.sess.Snapshot()
	return statusView{
		State:   c.sess.LogState(),
		Expired: c.sess.IsExpired(),
		User:    userView{Name: snap.User.Name, Role: snap.User.Role},
	}
}

func (c *console) status(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, http.StatusOK, c.view())
}

func (c *console) login(rw http.ResponseWriter, r *http.Request) {
	if c.limiter != nil && !c.limiter.Allow() {
		log.Warnf("[Web] login from %s rejected by rate limit", r.RemoteAddr)
		writeJSON(rw, http.StatusTooManyRequests, errorView{Error: "too many login attempts"})
		return
	}

	creds := session.Credentials{}
	err := json.NewDecoder(r.Body).Decode(&creds)
	if err != nil {
		writeJSON(rw, http.StatusBadRequest, errorView{Error: "malformed login payload"})
		return
	}
	if creds.Name == "" || creds.SessionKey == "" {
		writeJSON(rw, http.StatusBadRequest, errorView{Error: "name and sessionKey are required"})
		return
	}

	c.bus.Dispatch(dispatch.Action{ActionType: dispatch.ActionLogin, Data: creds})
	// the gateway confirms later, report the optimistic state
	writeJSON(rw, http.StatusAccepted, c.view())
}

func (c *console) logout(rw http.ResponseWriter, r *http.Request) {
	c.bus.Dispatch(dispatch.Action{ActionType: dispatch.ActionLogout})
	writeJSON(rw, http.StatusOK, c.view())
}

func (c *console) restore(rw http.ResponseWriter, r *http.Request) {
	c.bus.Dispatch(dispatch.Action{ActionType: dispatch.ActionRestore})
	if !c.sess.IsLoggedIn() {
		writeJSON(rw, http.StatusNotFound, errorView{Error: "no stored session"})
		return
	}
	writeJSON(rw, http.StatusOK, c.view())
}

func (c *console) loginPage(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = rw.Write([]byte(brandName + ": login required\n"))
}

func (c *console) home(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = rw.Write([]byte(brandName + ": signed in as " + c.sess.Snapshot().User.Name + "\n"))
}

// requireSession tries to restore a stored session before sending the
// visitor to the login page.
func (c *console) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if !c.sess.IsLoggedIn() {
			c.bus.Dispatch(dispatch.Action{ActionType: dispatch.ActionRestore})
			if !c.sess.IsLoggedIn() {
				http.Redirect(rw, r, "/login", http.StatusFound)
				return
			}
		}
		next.ServeHTTP(rw, r)
	})
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(rw, r)
		log.Debugf("[Web] %s %s in %s", r.Method, r.URL.Path, time.Since(start))
	})
}

func writeJSON(rw http.ResponseWriter, status int, payload any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	if err := json.NewEncoder(rw).Encode(payload); err != nil {
		log.Errorf("[Web] writing response failed: %s", err)
	}
}
