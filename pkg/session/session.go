// Package session stores short-lived per-browser values (OAuth state, access
// token, post-login destination, flash messages) keyed by a random session id.
package session

import (
	"context"
	"errors"
	"net/http"
)

// Keys used by the login flow.
const (
	KeyState       = "oauth2state"
	KeyAccessToken = "access_token"
	KeyDestination = "destination"
	KeyFlash       = "flash"
	KeyUserID      = "uid"
)

// flowKeys lists every key the login flow writes.
var flowKeys = []string{KeyState, KeyAccessToken, KeyDestination, KeyFlash, KeyUserID}

// ErrNotFound is returned by Store lookups when the key is absent or expired.
var ErrNotFound = errors.New("session value not found")

// Store is a key-value store partitioned by session id. Implementations must
// keep sessions isolated from each other.
type Store interface {
	// Set writes value under key for the session.
	Set(ctx context.Context, sessionID, key, value string) error
	// Get reads key without removing it.
	Get(ctx context.Context, sessionID, key string) (string, error)
	// Take atomically reads and removes key. Use it for single-use values.
	Take(ctx context.Context, sessionID, key string) (string, error)
	// Delete removes keys; missing keys are not an error.
	Delete(ctx context.Context, sessionID string, keys ...string) error
}

// Session binds a Store to one session id.
type Session struct {
	store  Store
	id     string
	cookie *http.Cookie // set by Middleware
}

// New returns a Session handle for id.
func New(store Store, id string) *Session {
	return &Session{store: store, id: id}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

func (s *Session) Set(ctx context.Context, key, value string) error {
	return s.store.Set(ctx, s.id, key, value)
}

// Get returns "" without error when key is absent.
func (s *Session) Get(ctx context.Context, key string) (string, error) {
	v, err := s.store.Get(ctx, s.id, key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return v, err
}

// Take consumes key, returning "" without error when it is absent.
func (s *Session) Take(ctx context.Context, key string) (string, error) {
	v, err := s.store.Take(ctx, s.id, key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return v, err
}

func (s *Session) Delete(ctx context.Context, keys ...string) error {
	return s.store.Delete(ctx, s.id, keys...)
}

type contextKey struct{}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the Session stored by Middleware, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(contextKey{}).(*Session)
	return s
}
