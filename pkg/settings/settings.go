package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/multierr"
)

// ErrIncomplete is returned by Validate when a mandatory setting is empty.
var ErrIncomplete = errors.New("reddit login settings incomplete")

// Settings holds the operator-provided Reddit app configuration.
type Settings struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	Scopes       []string `json:"scopes"`    // Extra scopes on top of identity and read.
	APICalls     []string `json:"api_calls"` // Extra API calls made for new users, in order.
	UserAgent    string   `json:"user_agent_string"`
}

// Validate reports every missing mandatory field. The user agent is mandatory:
// Reddit throttles or blocks clients without one.
func (s Settings) Validate() error {
	var err error
	if s.ClientID == "" {
		err = multierr.Append(err, fmt.Errorf("%w: client id is empty", ErrIncomplete))
	}
	if s.ClientSecret == "" {
		err = multierr.Append(err, fmt.Errorf("%w: client secret is empty", ErrIncomplete))
	}
	if s.UserAgent == "" {
		err = multierr.Append(err, fmt.Errorf("%w: user agent string is empty", ErrIncomplete))
	}
	return err
}

// IsZero reports whether nothing has been configured yet.
func (s Settings) IsZero() bool {
	return s.ClientID == "" && s.ClientSecret == "" && s.UserAgent == "" &&
		len(s.Scopes) == 0 && len(s.APICalls) == 0
}

// Store loads and persists Settings.
type Store interface {
	Load(ctx context.Context) (Settings, error)
	Save(ctx context.Context, s Settings) error
}

// MemoryStore keeps Settings in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	settings Settings
}

// NewMemoryStore returns a MemoryStore seeded with initial.
func NewMemoryStore(initial Settings) *MemoryStore {
	return &MemoryStore{settings: initial.clone()}
}

func (m *MemoryStore) Load(_ context.Context) (Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings.clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, s Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = s.clone()
	return nil
}

func (s Settings) clone() Settings {
	out := s
	out.Scopes = append([]string(nil), s.Scopes...)
	out.APICalls = append([]string(nil), s.APICalls...)
	return out
}
