package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Store persists sessions. Implementations must return ErrNotFound for
// missing or expired ids and must not alias the sessions they are given.
type Store interface {
	Load(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
	Close() error
}

func encode(s *Session) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("session: encode %s: %w", s.ID, err)
	}
	return data, nil
}

func decode(data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("session: decode: %w", err)
	}
	s.normalize()
	return &s, nil
}

type memEntry struct {
	data    []byte
	expires time.Time
}

// MemoryStore keeps sessions in process. Entries expire ttl after their
// last save and are evicted when next touched.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memEntry
	ttl     time.Duration
	now     func() time.Time
	closed  bool
}

// NewMemoryStore creates an in-process store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Load returns a copy of the stored session.
func (m *MemoryStore) Load(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	e, ok := m.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	if m.ttl > 0 && !m.now().Before(e.expires) {
		delete(m.entries, id)
		return nil, ErrNotFound
	}
	return decode(e.data)
}

// Save stores a copy of s and restarts its TTL.
func (m *MemoryStore) Save(ctx context.Context, s *Session) error {
	data, err := encode(s)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	now := m.now()
	m.entries[s.ID] = memEntry{data: data, expires: now.Add(m.ttl)}
	m.sweep(now)
	return nil
}

// Delete removes a session. Deleting a missing id is not an error.
func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	delete(m.entries, id)
	return nil
}

// Len reports the number of stored, possibly expired, sessions.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Close drops all sessions.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.entries = nil
	return nil
}

// sweep drops expired entries. Caller holds mu.
func (m *MemoryStore) sweep(now time.Time) {
	if m.ttl <= 0 {
		return
	}
	for id, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, id)
		}
	}
}

// Verify MemoryStore implements Store at compile time.
var _ Store = (*MemoryStore)(nil)
