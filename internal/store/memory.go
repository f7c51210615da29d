package store

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Remote and CounterStore. It backs tests
// and offline development; semantics match the postgres store
// (idempotent upsert by id, serialized counter reservation).
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]map[string][]byte
	counters    map[string]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string][]byte),
		counters:    make(map[string]int64),
	}
}

func (s *MemoryStore) GetAll(_ context.Context, collection string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := make([]Record, 0, len(s.collections[collection]))
	for id, doc := range s.collections[collection] {
		records = append(records, Record{ID: id, Doc: append([]byte(nil), doc...)})
	}
	return records, nil
}

func (s *MemoryStore) Upsert(_ context.Context, collection string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.collections[collection] == nil {
		s.collections[collection] = make(map[string][]byte)
	}
	s.collections[collection][rec.ID] = append([]byte(nil), rec.Doc...)
	return nil
}

func (s *MemoryStore) Reserve(_ context.Context, scope string, count, seed int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, ok := s.counters[scope]
	if !ok {
		next = seed
	}
	s.counters[scope] = next + count
	return next, nil
}

func (s *MemoryStore) Raise(_ context.Context, scope string, next int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if next > s.counters[scope] {
		s.counters[scope] = next
	}
	return nil
}

func (s *MemoryStore) All(_ context.Context) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counters := make(map[string]int64, len(s.counters))
	for k, v := range s.counters {
		counters[k] = v
	}
	return counters, nil
}
