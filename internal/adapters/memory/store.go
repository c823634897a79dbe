// Package memory implements ports.RunStore in process memory. Useful for
// tests and for embedding without external infrastructure.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
)

// Store keeps run records in a map guarded by a mutex.
type Store struct {
	mu      sync.RWMutex
	records map[string]*domain.RunRecord
}

// New creates an empty store.
func New() *Store {
	return &Store{
		records: make(map[string]*domain.RunRecord),
	}
}

// Save implements ports.RunStore.
func (s *Store) Save(_ context.Context, record *domain.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *record
	clone.Context = record.Context.Clone()
	s.records[record.ID] = &clone
	return nil
}

// Load implements ports.RunStore.
func (s *Store) Load(_ context.Context, id string) (*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[id]
	if !ok {
		return nil, domain.ErrRunNotFound
	}
	clone := *record
	clone.Context = record.Context.Clone()
	return &clone, nil
}

// Delete implements ports.RunStore.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

// List implements ports.RunStore.
func (s *Store) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
