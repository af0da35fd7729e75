// Package session holds the process-wide authentication state.
//
// A Session has two states: anonymous (no token) and authenticated. Signin
// always overwrites; Signout always leaves the session anonymous and runs the
// registered sign-out callbacks, which purge cached user data. The state is
// persisted through a Store so it survives restarts.
package session

import (
	"log/slog"
	"sync"

	"taskctl/internal/service"
)

// State is the persisted session record.
// IsAuthenticated is always equal to Token != "".
type State struct {
	Token           string        `json:"token"`
	User            *service.User `json:"user"`
	IsAuthenticated bool          `json:"is_authenticated"`
}

// normalize enforces IsAuthenticated == (Token != "").
func (s State) normalize() State {
	if s.Token == "" {
		return State{}
	}
	s.IsAuthenticated = true
	return s
}

// Session is the authentication state shared by every request.
// It is safe for concurrent use.
type Session struct {
	mu    sync.RWMutex
	state State
	store Store

	cbMu      sync.Mutex
	onSignOut []func()

	logger *slog.Logger
}

// New creates an anonymous session backed by store.
// Call Restore before issuing authenticated requests.
func New(store Store, logger *slog.Logger) *Session {
	if store == nil {
		store = NewMemoryStore()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Session{store: store, logger: logger}
}

// Restore loads the persisted record. A missing record leaves the session anonymous.
func (s *Session) Restore() error {
	st, err := s.store.Load()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.state = st.normalize()
	s.mu.Unlock()
	return nil
}

// Signin sets the token and user and persists them. The session changes
// only once the record is saved.
func (s *Session) Signin(token string, user *service.User) error {
	st := State{Token: token, User: user}.normalize()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Save(st); err != nil {
		return err
	}
	s.state = st
	return nil
}

// SetUser updates the identity of an authenticated session.
func (s *Session) SetUser(user *service.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.IsAuthenticated {
		return nil
	}
	st := s.state
	st.User = user
	if err := s.store.Save(st); err != nil {
		return err
	}
	s.state = st
	return nil
}

// Signout clears the session, persists the anonymous record and runs every
// sign-out callback. It is idempotent: callbacks run on every call,
// persistence failures are logged rather than returned. Reports whether a
// session was actually ended.
func (s *Session) Signout() bool {
	s.mu.Lock()
	ended := s.state.IsAuthenticated
	s.state = State{}
	err := s.store.Save(State{})
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("failed to persist signed-out session", "error", err)
	}

	s.cbMu.Lock()
	callbacks := make([]func(), len(s.onSignOut))
	copy(callbacks, s.onSignOut)
	s.cbMu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
	return ended
}

// OnSignOut registers a callback run on every Signout.
func (s *Session) OnSignOut(fn func()) {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	s.onSignOut = append(s.onSignOut, fn)
}

// AccessToken returns the bearer token, or "" when anonymous.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Token
}

// IsAuthenticated reports whether a token is held.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsAuthenticated
}

// User returns the signed-in identity, if known.
func (s *Session) User() *service.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.User == nil {
		return nil
	}
	u := *s.state.User
	return &u
}

// State returns a copy of the current record.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state
	if st.User != nil {
		u := *st.User
		st.User = &u
	}
	return st
}
