package store

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/rosettalab/xlate/internal/apperr"
	"github.com/rosettalab/xlate/internal/models"
)

// entry pairs a session with its exclusive lock and interrupt channel. The
// outer map lock is held only for lookups and never spans a mutator.
type entry struct {
	mu        sync.Mutex
	sess      *models.Session
	interrupt chan struct{}
	once      sync.Once
}

// MemoryStore is the in-memory Store implementation.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*entry)}
}

// newSessionID generates a new ULID string.
func newSessionID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

func (m *MemoryStore) Create(ctx context.Context, s *models.Session) (string, error) {
	if s.ID == "" {
		s.ID = newSessionID()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[s.ID]; exists {
		return "", apperr.New(apperr.CodeBadRequest, "session id collision: %s", s.ID)
	}
	m.entries[s.ID] = &entry{
		sess:      s.Clone(),
		interrupt: make(chan struct{}),
	}
	return s.ID, nil
}

func (m *MemoryStore) lookup(id string) (*entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, apperr.New(apperr.CodeSessionNotFound, "session not found: %s", id)
	}
	return e, nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*models.Session, error) {
	e, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess.Clone(), nil
}

func (m *MemoryStore) WithSession(ctx context.Context, id string, fn Mutator) error {
	e, err := m.lookup(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// The entry may have been removed while we waited for its lock.
	m.mu.RLock()
	_, present := m.entries[id]
	m.mu.RUnlock()
	if !present {
		return apperr.New(apperr.CodeSessionNotFound, "session not found: %s", id)
	}

	// Derive a context that unwinds the mutator's collaborator calls when
	// the session is interrupted.
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-e.interrupt:
			cancel()
		case <-stop:
		}
	}()

	// Mutate a private copy; commit only on success.
	work := e.sess.Clone()
	if err := fn(wctx, work); err != nil {
		return err
	}
	e.sess = work
	return nil
}

func (m *MemoryStore) List(ctx context.Context) ([]*models.Session, error) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	out := make([]*models.Session, 0, len(ids))
	for _, id := range ids {
		if s, err := m.Get(ctx, id); err == nil {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *MemoryStore) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok {
		return apperr.New(apperr.CodeSessionNotFound, "session not found: %s", id)
	}
	delete(m.entries, id)
	return nil
}

func (m *MemoryStore) Interrupt(id string) {
	m.mu.RLock()
	e, ok := m.entries[id]
	m.mu.RUnlock()
	if ok {
		e.once.Do(func() { close(e.interrupt) })
	}
}

func (m *MemoryStore) Sweep(now time.Time, ttl time.Duration) int {
	m.mu.RLock()
	candidates := make(map[string]*entry, len(m.entries))
	for id, e := range m.entries {
		candidates[id] = e
	}
	m.mu.RUnlock()

	removed := 0
	for id, e := range candidates {
		// Skip sessions with an active mutator rather than waiting out a
		// collaborator call; they are not idle anyway.
		if !e.mu.TryLock() {
			continue
		}
		// Delete while still holding the entry lock. A mutator blocked on it
		// wakes only after the entry is gone and fails its presence re-check,
		// so a commit can never land in a swept entry.
		if now.Sub(e.sess.LastActivityAt) > ttl {
			m.mu.Lock()
			delete(m.entries, id)
			m.mu.Unlock()
			removed++
		}
		e.mu.Unlock()
	}
	return removed
}

// StartSweeper reaps idle sessions every interval until ctx is cancelled.
// A non-positive interval disables sweeping.
func (m *MemoryStore) StartSweeper(ctx context.Context, interval, ttl time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				m.Sweep(now, ttl)
			}
		}
	}()
}

var _ Store = (*MemoryStore)(nil)
