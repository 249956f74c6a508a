package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-kiosk/pkg/order"
)

// Manager creates sessions and serialises access to each of them.
type Manager struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	locks  map[string]*sessionLock
	closed atomic.Bool
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a manager over store.
func NewManager(store Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
		locks:  make(map[string]*sessionLock),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "session.manager")
	return m
}

// Create starts a fresh session with an empty order.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	now := m.now().UTC()
	s := &Session{
		ID:        uuid.NewString(),
		State:     order.NewState(),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.Save(ctx, s); err != nil {
		return nil, err
	}
	m.logger.Info("session created", "session_id", s.ID)
	return s, nil
}

// Get loads a session without locking it.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	if !validID(id) {
		return nil, ErrNotFound
	}
	return m.store.Load(ctx, id)
}

// Delete ends a session.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if !validID(id) {
		return ErrNotFound
	}
	unlock := m.lock(id)
	defer unlock()

	if _, err := m.store.Load(ctx, id); err != nil {
		return err
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	m.logger.Info("session deleted", "session_id", id)
	return nil
}

// Do runs fn on the session while holding its lock and persists the
// session if fn returns nil. Calls for the same id run one at a time in
// arrival order of the lock; calls for different ids run concurrently.
func (m *Manager) Do(ctx context.Context, id string, fn func(*Session) error) (*Session, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	if !validID(id) {
		return nil, ErrNotFound
	}

	unlock := m.lock(id)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(s); err != nil {
		return nil, err
	}
	s.Version++
	s.UpdatedAt = m.now().UTC()
	if err := m.store.Save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes the store. Further calls return ErrClosed.
func (m *Manager) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	return m.store.Close()
}

func (m *Manager) lock(id string) func() {
	m.mu.Lock()
	l, ok := m.locks[id]
	if !ok {
		l = &sessionLock{}
		m.locks[id] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, id)
		}
		m.mu.Unlock()
	}
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
