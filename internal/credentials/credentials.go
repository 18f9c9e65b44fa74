// Package credentials holds the admin bearer token pair and the per-process
// session identifier.
package credentials

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"momentify/internal/models"
)

// ErrNoCredentials is returned by Load when nothing is stored.
var ErrNoCredentials = errors.New("no stored credentials")

// Store persists the token pair. Implementations must be safe for concurrent
// use.
type Store interface {
	Load() (models.AuthTokens, error)
	Save(tokens models.AuthTokens) error
	Clear() error
}

// MemoryStore keeps tokens for the lifetime of the process.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens *models.AuthTokens
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load() (models.AuthTokens, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.tokens == nil {
		return models.AuthTokens{}, ErrNoCredentials
	}
	return *m.tokens, nil
}

func (m *MemoryStore) Save(tokens models.AuthTokens) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := tokens
	m.tokens = &t
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = nil
	return nil
}

// Session is a short-lived client identifier. It lives only as long as the
// process and is used to recognise media this client uploaded.
type Session struct {
	once sync.Once
	id   string
}

// ID returns the session identifier, generating it on first use.
func (s *Session) ID() string {
	s.once.Do(func() {
		if s.id == "" {
			s.id = "session_" + uuid.NewString()
		}
	})
	return s.id
}

// NewSession returns a session with a fixed id; an empty id is generated
// lazily.
func NewSession(id string) *Session {
	return &Session{id: id}
}
