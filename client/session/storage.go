package session

import "sync"

// Storage persists the session triple (access token, refresh token, user).
// SetSession and Clear replace the triple as a unit: a concurrent reader
// never observes a partially-written session.
type Storage interface {
	AccessToken() string
	RefreshToken() string
	User() *User
	SetSession(accessToken, refreshToken string, user *User) error
	Clear() error
}

var _ Storage = (*MemoryStorage)(nil)

// MemoryStorage holds the session triple in memory. Used in tests and in
// processes that do not need the session to outlive them.
type MemoryStorage struct {
	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	user         *User
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (m *MemoryStorage) AccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.accessToken
}

func (m *MemoryStorage) RefreshToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.refreshToken
}

func (m *MemoryStorage) User() *User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user
}

func (m *MemoryStorage) SetSession(accessToken, refreshToken string, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accessToken = accessToken
	m.refreshToken = refreshToken
	m.user = user
	return nil
}

func (m *MemoryStorage) Clear() error {
	return m.SetSession("", "", nil)
}
