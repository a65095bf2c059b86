package session

import (
	"encoding/base64"
	"strings"
)

// StorageKey is the storage item holding the last confirmed session.
const StorageKey = "session"

// DefaultCredentials is the Authorization placeholder of a logged out console.
const DefaultCredentials = "ABC"

const (
	LogStateLoggedIn  = "loggedIn"
	LogStateLoggedOut = "loggedOut"
)

type User struct {
	Name       string `json:"name"`
	Role       string `json:"role"`
	IsLoggedIn bool   `json:"isLoggedIn"`
}

func (u *User) reset() {
	*u = User{}
}

// State is the persisted shape of a session. LastLogin is in unix milliseconds.
type State struct {
	SessionKey  string `json:"sessionKey"`
	LastLogin   int64  `json:"lastLogin"`
	Credentials string `json:"credentials"`
	User        *User  `json:"user"`
}

func defaultState(u *User) State {
	return State{
		Credentials: DefaultCredentials,
		User:        u,
	}
}

func (s State) clone() State {
	c := s
	c.User = &User{}
	if s.User != nil {
		*c.User = *s.User
	}
	return c
}

func (s State) problems() []string {
	var p []string
	if s.SessionKey == "" {
		p = append(p, `"sessionKey" of session data is invalid`)
	}
	if s.LastLogin < 0 {
		p = append(p, `"lastLogin" of session data is invalid`)
	}
	return p
}

// Credentials is the login payload: the operator name and the session key
// that doubles as the gateway password.
type Credentials struct {
	Name       string `json:"name"`
	SessionKey string `json:"sessionKey"`
}

func (c Credentials) valid() bool {
	return c.Name != "" && c.SessionKey != ""
}

// BasicAuth builds an HTTP Basic Authorization header value.
func BasicAuth(name, sessionKey string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(name+":"+sessionKey))
}

type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "session data is invalid: " + strings.Join(e.Problems, "; ")
}
