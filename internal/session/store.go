package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"fleetguard/internal/inspection"
)

var ErrNotFound = errors.New("session not found")

// Store keeps live inspection sessions between requests. Completed and cancelled sessions stay readable
// until they expire, but only in-progress sessions are returned by ActiveFor.
type Store interface {
	Save(ctx context.Context, s *inspection.Session) error
	Get(ctx context.Context, handle string) (*inspection.Session, error)
	ActiveFor(ctx context.Context, operatorID string) (*inspection.Session, error)
	Delete(ctx context.Context, s *inspection.Session) error
}

type memoryEntry struct {
	session *inspection.Session
	expires time.Time
}

// MemoryStore keeps its own copy of every session. Callers always get a private copy back, so concurrent
// readers never share state with a writer.
type MemoryStore struct {
	mu         sync.Mutex
	ttl        time.Duration
	now        func() time.Time
	sessions   map[string]memoryEntry
	byOperator map[string]string
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:        ttl,
		now:        time.Now,
		sessions:   make(map[string]memoryEntry),
		byOperator: make(map[string]string),
	}
}

func (m *MemoryStore) Save(_ context.Context, s *inspection.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[s.Handle] = memoryEntry{session: s.Clone(), expires: m.now().Add(m.ttl)}
	if s.State == inspection.StateInProgress {
		m.byOperator[s.Operator.ID] = s.Handle
	} else if m.byOperator[s.Operator.ID] == s.Handle {
		delete(m.byOperator, s.Operator.ID)
	}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, handle string) (*inspection.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.getLocked(handle)
	if err != nil {
		return nil, err
	}
	return s.Clone(), nil
}

func (m *MemoryStore) getLocked(handle string) (*inspection.Session, error) {
	e, ok := m.sessions[handle]
	if !ok {
		return nil, ErrNotFound
	}
	if m.ttl > 0 && m.now().After(e.expires) {
		m.removeLocked(e.session)
		return nil, ErrNotFound
	}
	return e.session, nil
}

func (m *MemoryStore) ActiveFor(_ context.Context, operatorID string) (*inspection.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	handle, ok := m.byOperator[operatorID]
	if !ok {
		return nil, ErrNotFound
	}
	s, err := m.getLocked(handle)
	if err != nil {
		return nil, err
	}
	if s.State != inspection.StateInProgress {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Delete(_ context.Context, s *inspection.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(s)
	return nil
}

func (m *MemoryStore) removeLocked(s *inspection.Session) {
	delete(m.sessions, s.Handle)
	if m.byOperator[s.Operator.ID] == s.Handle {
		delete(m.byOperator, s.Operator.ID)
	}
}

// Sweep drops expired sessions and returns how many were removed.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ttl <= 0 {
		return 0
	}
	now := m.now()
	removed := 0
	for _, e := range m.sessions {
		if now.After(e.expires) {
			m.removeLocked(e.session)
			removed++
		}
	}
	return removed
}

// RunJanitor sweeps every interval until ctx is done.
func (m *MemoryStore) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
