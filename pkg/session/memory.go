package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/feichai0017/certificate-processor/internal/models"
)

type memoryEntry struct {
	state     models.WorkingUpload
	expiresAt time.Time
}

// MemoryStore keeps sessions in process. Suitable for tests and a single
// server instance.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (models.WorkingUpload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(id)
}

func (s *MemoryStore) getLocked(id string) (models.WorkingUpload, error) {
	e, ok := s.entries[id]
	if !ok {
		return models.WorkingUpload{}, ErrNotFound
	}
	if s.now().After(e.expiresAt) {
		delete(s.entries, id)
		return models.WorkingUpload{}, ErrNotFound
	}
	return e.state, nil
}

func (s *MemoryStore) Put(ctx context.Context, state models.WorkingUpload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[state.SessionID] = memoryEntry{state: state, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

// Update reports whether the value was written.
func (s *MemoryStore) Update(ctx context.Context, id string, fn UpdateFunc) (models.WorkingUpload, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.getLocked(id)
	if err != nil {
		return models.WorkingUpload{}, false, err
	}
	next, err := fn(current)
	if errors.Is(err, ErrSkip) {
		return current, false, nil
	}
	if err != nil {
		return current, false, err
	}
	s.entries[id] = memoryEntry{state: next, expiresAt: s.now().Add(s.ttl)}
	return next, true, nil
}
