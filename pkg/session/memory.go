package session

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	values    map[string]string
	expiresAt time.Time
}

// MemoryStore keeps sessions in process memory. Each write extends the
// session's lifetime by ttl.
type MemoryStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]*memoryEntry
	now      func() time.Time
}

// NewMemoryStore returns an empty MemoryStore with the given session ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:      ttl,
		sessions: make(map[string]*memoryEntry),
		now:      time.Now,
	}
}

// entry returns the live entry for sessionID, dropping it if expired. Callers hold mu.
func (m *MemoryStore) entry(sessionID string) *memoryEntry {
	e, ok := m.sessions[sessionID]
	if !ok {
		return nil
	}
	if m.now().After(e.expiresAt) {
		delete(m.sessions, sessionID)
		return nil
	}
	return e
}

func (m *MemoryStore) Set(_ context.Context, sessionID, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.entry(sessionID)
	if e == nil {
		e = &memoryEntry{values: make(map[string]string)}
		m.sessions[sessionID] = e
	}
	e.values[key] = value
	e.expiresAt = m.now().Add(m.ttl)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, sessionID, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.entry(sessionID)
	if e == nil {
		return "", ErrNotFound
	}
	v, ok := e.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *MemoryStore) Take(_ context.Context, sessionID, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.entry(sessionID)
	if e == nil {
		return "", ErrNotFound
	}
	v, ok := e.values[key]
	if !ok {
		return "", ErrNotFound
	}
	delete(e.values, key)
	return v, nil
}

func (m *MemoryStore) Delete(_ context.Context, sessionID string, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.entry(sessionID)
	if e == nil {
		return nil
	}
	for _, key := range keys {
		delete(e.values, key)
	}
	if len(e.values) == 0 {
		delete(m.sessions, sessionID)
	}
	return nil
}

// Sweep removes expired sessions and returns how many were dropped.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	n := 0
	for id, e := range m.sessions {
		if now.After(e.expiresAt) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}
