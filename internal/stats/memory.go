package stats

import (
	"context"
	"sync"
)

// MemoryStore keeps counters in process. Used by tests and the sqlite
// single-node setup; nothing expires.
type MemoryStore struct {
	mu      sync.Mutex
	byEvent map[int64]map[Outcome]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byEvent: make(map[int64]map[Outcome]int64)}
}

func (s *MemoryStore) Record(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byEvent[ev.EventID]
	if !ok {
		c = make(map[Outcome]int64)
		s.byEvent[ev.EventID] = c
	}
	c[ev.Outcome]++
	return nil
}

func (s *MemoryStore) Counters(_ context.Context, eventID int64) (map[Outcome]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[Outcome]int64, len(s.byEvent[eventID]))
	for k, v := range s.byEvent[eventID] {
		out[k] = v
	}
	return out, nil
}
