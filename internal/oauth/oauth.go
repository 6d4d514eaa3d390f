// Package oauth holds the pending authorization sessions used while a user
// links an external account, and the token source that keeps provider calls
// authenticated.
package oauth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"
)

// DefaultSessionTTL bounds how long a started authorization flow may stay
// pending before its state token is swept.
const DefaultSessionTTL = 10 * time.Minute

// ErrSessionNotFound is returned for unknown or expired state tokens.
var ErrSessionNotFound = errors.New("oauth_session_not_found")

// Session is one pending authorization flow, keyed by its state token.
type Session struct {
	State     string
	Provider  string
	UserRef   string
	CreatedAt time.Time
}

// SessionStore keeps pending sessions in memory. Expired entries are removed
// lazily on access and by the periodic sweep.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	ttl      time.Duration
	now      func() time.Time
	stop     chan struct{}
	stopped  sync.Once
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	s := &SessionStore{
		sessions: make(map[string]Session),
		ttl:      ttl,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

// Begin creates a pending session and returns its state token.
func (s *SessionStore) Begin(provider, userRef string) (Session, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return Session{}, err
	}
	sess := Session{
		State:     hex.EncodeToString(b[:]),
		Provider:  provider,
		UserRef:   userRef,
		CreatedAt: s.now(),
	}
	s.mu.Lock()
	s.sessions[sess.State] = sess
	s.mu.Unlock()
	return sess, nil
}

// Take removes and returns the session for a state token. A state token is
// single-use: the callback consumes it or it expires.
func (s *SessionStore) Take(state string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[state]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	delete(s.sessions, state)
	if s.now().Sub(sess.CreatedAt) > s.ttl {
		return Session{}, ErrSessionNotFound
	}
	return sess, nil
}

// Pending returns the number of unconsumed sessions.
func (s *SessionStore) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *SessionStore) sweepLoop() {
	ticker := time.NewTicker(s.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *SessionStore) sweep() {
	cutoff := s.now().Add(-s.ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	for state, sess := range s.sessions {
		if sess.CreatedAt.Before(cutoff) {
			delete(s.sessions, state)
		}
	}
}

// Close stops the sweep loop.
func (s *SessionStore) Close() {
	s.stopped.Do(func() { close(s.stop) })
}

// RefreshingTokenSource implements provider.TokenSource over a stored access
// token and a refresh callback.
type RefreshingTokenSource struct {
	mu      sync.Mutex
	access  string
	refresh func(ctx context.Context) (string, error)
}

func NewRefreshingTokenSource(access string, refresh func(ctx context.Context) (string, error)) *RefreshingTokenSource {
	return &RefreshingTokenSource{access: access, refresh: refresh}
}

func (t *RefreshingTokenSource) Token(context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.access, nil
}

// Refresh obtains a new access token and caches it for subsequent calls.
func (t *RefreshingTokenSource) Refresh(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.refresh == nil {
		return t.access, nil
	}
	access, err := t.refresh(ctx)
	if err != nil {
		return "", err
	}
	t.access = access
	return access, nil
}
