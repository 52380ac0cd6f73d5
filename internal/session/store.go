package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
)

var ErrNotFound = errors.New("session not found")

// Store keeps live sessions addressable across requests.
type Store interface {
	Create(giftFile string) (*Session, error)
	Get(id string) (*Session, error)
	// Update runs fn against the session while holding the store lock, so
	// session mutations never race between requests.
	Update(id string, fn func(*Session) error) (*Session, error)
	Delete(id string) error
}

type memoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewInMemoryStore() Store {
	return &memoryStore{sessions: map[string]*Session{}}
}

func (m *memoryStore) Create(giftFile string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := randID()
	s := New(id, giftFile)
	m.sessions[id] = s
	return s, nil
}

func (m *memoryStore) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

func (m *memoryStore) Update(id string, fn func(*Session) error) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if err := fn(s); err != nil {
		return nil, err
	}
	return s, nil
}

func (m *memoryStore) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

func randID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}
