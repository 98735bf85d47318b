package archive

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

const inMemoryCap = 1000

// InMemoryStore keeps recent records in a bounded slice. It drops the oldest
// entries beyond its cap so an unconfigured deployment cannot grow without
// bound.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Mode() string { return "in-memory" }

func (s *InMemoryStore) Save(_ context.Context, record Record) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	if overflow := len(s.records) - inMemoryCap; overflow > 0 {
		s.records = append(s.records[:0], s.records[overflow:]...)
	}
	return nil
}

func (s *InMemoryStore) RecentBySession(_ context.Context, sessionID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, 0, limit)
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		if s.records[i].SessionID == sessionID {
			out = append(out, s.records[i])
		}
	}

	// Chronological order for display and prompt coherence.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }
