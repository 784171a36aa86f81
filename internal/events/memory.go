package events

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process event sink with the same dedup contract as
// Store. Used when MongoDB is not configured and in tests.
type MemoryStore struct {
	mu   sync.Mutex
	seen map[string]*Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: map[string]*Event{}}
}

func (s *MemoryStore) Processed(ctx context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[eventID]
	return ok, nil
}

func (s *MemoryStore) MarkProcessed(ctx context.Context, ev *Event) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[ev.EventID]; ok {
		return false, nil
	}
	ev.ReceivedAt = time.Now().UTC()
	s.seen[ev.EventID] = ev
	return true, nil
}
