package auth

import (
	"context"
	"sync"
	"time"
)

// RevocationList remembers tokens that were logged out before they expired.
// Entries only need to live until the token's own expiry.
type RevocationList interface {
	Revoke(ctx context.Context, token string, until time.Time) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// MemoryRevocationList is a process-local RevocationList. It is emptied on
// restart and not shared between instances; use RedisRevocationList for that.
type MemoryRevocationList struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryRevocationList() *MemoryRevocationList {
	return &MemoryRevocationList{entries: make(map[string]time.Time), now: time.Now}
}

// Revoke records token until the given time. Expired entries are pruned on
// every call so the map does not grow without bound.
func (m *MemoryRevocationList) Revoke(_ context.Context, token string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for t, exp := range m.entries {
		if !now.Before(exp) {
			delete(m.entries, t)
		}
	}
	m.entries[token] = until
	return nil
}

func (m *MemoryRevocationList) IsRevoked(_ context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	exp, ok := m.entries[token]
	if !ok {
		return false, nil
	}
	if !m.now().Before(exp) {
		delete(m.entries, token)
		return false, nil
	}
	return true, nil
}

// Len reports how many entries are currently held, expired or not.
func (m *MemoryRevocationList) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
