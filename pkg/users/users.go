// Package users creates or logs in local accounts for Reddit identities.
package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Suhaibinator/redditauth/pkg/metrics"
)

// ProviderReddit is the provider name stored with every account.
const ProviderReddit = "reddit"

var (
	// ErrNotFound is returned by Store lookups for unknown accounts.
	ErrNotFound = errors.New("account not found")
	// ErrDuplicate is returned by Store.Create when the provider identity is
	// already linked to an account.
	ErrDuplicate = errors.New("record already exists")
)

// Identity is what the login flow hands over after a successful callback.
type Identity struct {
	DisplayName string
	Email       string // Reddit does not expose email addresses; normally empty.
	ExternalID  string
	AccessToken string
	AvatarURL   string
	ExtraData   json.RawMessage // JSON array, one entry per extra API call.
}

// Account is a local user linked to a Reddit identity.
type Account struct {
	ID          string          `json:"id"`
	Provider    string          `json:"provider"`
	ExternalID  string          `json:"external_id"`
	Name        string          `json:"name"`
	Email       string          `json:"email,omitempty"`
	AvatarURL   string          `json:"avatar_url,omitempty"`
	AccessToken string          `json:"-"`
	ExtraData   json.RawMessage `json:"extra_data,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	LastLoginAt time.Time       `json:"last_login_at"`
}

// Store persists accounts. Create must reject a second account for the same
// provider and external id with ErrDuplicate.
type Store interface {
	FindByExternalID(ctx context.Context, provider, externalID string) (*Account, error)
	FindByID(ctx context.Context, id string) (*Account, error)
	Create(ctx context.Context, a *Account) error
	Update(ctx context.Context, a *Account) error
}

// Manager implements the user-provisioning side of the login flow.
type Manager struct {
	store   Store
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewManager returns a Manager backed by store.
func NewManager(store Store, logger *zap.Logger, m *metrics.Metrics) *Manager {
	return &Manager{
		store:   store,
		logger:  logger.Named("users"),
		metrics: m,
		now:     time.Now,
	}
}

// UserExists reports whether a local account is linked to the Reddit id.
func (m *Manager) UserExists(ctx context.Context, externalID string) (bool, error) {
	_, err := m.store.FindByExternalID(ctx, ProviderReddit, externalID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("looking up account: %w", err)
	}
	return true, nil
}

// AuthenticateUser logs in the account linked to id.ExternalID, creating it
// first when none exists. Extra data is only recorded on creation.
func (m *Manager) AuthenticateUser(ctx context.Context, id Identity) (*Account, error) {
	if id.ExternalID == "" {
		return nil, errors.New("identity has no external id")
	}
	now := m.now().UTC()

	account, err := m.store.FindByExternalID(ctx, ProviderReddit, id.ExternalID)
	switch {
	case errors.Is(err, ErrNotFound):
		account = &Account{
			ID:          uuid.NewString(),
			Provider:    ProviderReddit,
			ExternalID:  id.ExternalID,
			Name:        id.DisplayName,
			Email:       id.Email,
			AvatarURL:   id.AvatarURL,
			AccessToken: id.AccessToken,
			ExtraData:   id.ExtraData,
			CreatedAt:   now,
			LastLoginAt: now,
		}
		err = m.store.Create(ctx, account)
		if err == nil {
			m.metrics.IncrementUsersCreated()
			m.logger.Info("Account created", zap.String("account_id", account.ID), zap.String("reddit_id", id.ExternalID))
			return account, nil
		}
		if !errors.Is(err, ErrDuplicate) {
			return nil, fmt.Errorf("creating account: %w", err)
		}
		// A concurrent first login created the account; log into that one.
		account, err = m.store.FindByExternalID(ctx, ProviderReddit, id.ExternalID)
		if err != nil {
			return nil, fmt.Errorf("looking up account: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("looking up account: %w", err)
	}

	account.Name = id.DisplayName
	account.AvatarURL = id.AvatarURL
	account.AccessToken = id.AccessToken
	account.LastLoginAt = now
	if err := m.store.Update(ctx, account); err != nil {
		return nil, fmt.Errorf("updating account: %w", err)
	}
	m.logger.Info("Account logged in", zap.String("account_id", account.ID), zap.String("reddit_id", id.ExternalID))
	return account, nil
}

// Account returns the account with the given local id.
func (m *Manager) Account(ctx context.Context, id string) (*Account, error) {
	return m.store.FindByID(ctx, id)
}

type externalKey struct {
	provider, externalID string
}

// MemoryStore keeps accounts in process memory.
type MemoryStore struct {
	mu         sync.RWMutex
	accounts   map[string]*Account    // keyed by account id
	byExternal map[externalKey]string // account id
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:   make(map[string]*Account),
		byExternal: make(map[externalKey]string),
	}
}

func (s *MemoryStore) FindByExternalID(_ context.Context, provider, externalID string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byExternal[externalKey{provider, externalID}]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s.accounts[id]
	return &cp, nil
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) Create(_ context.Context, a *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[a.ID]; ok {
		return fmt.Errorf("%w: account %s", ErrDuplicate, a.ID)
	}
	key := externalKey{a.Provider, a.ExternalID}
	if _, ok := s.byExternal[key]; ok {
		return fmt.Errorf("%w: %s/%s", ErrDuplicate, a.Provider, a.ExternalID)
	}
	cp := *a
	s.accounts[a.ID] = &cp
	s.byExternal[key] = a.ID
	return nil
}

// Update rewrites the account's mutable fields. The linked identity cannot change.
func (s *MemoryStore) Update(_ context.Context, a *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.accounts[a.ID]
	if !ok {
		return ErrNotFound
	}
	cp := *a
	cp.Provider, cp.ExternalID = old.Provider, old.ExternalID
	s.accounts[a.ID] = &cp
	return nil
}
