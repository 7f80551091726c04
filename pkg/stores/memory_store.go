package stores

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/openfroyo/factory/pkg/factory"
)

// MemoryStore keeps records in process.
type MemoryStore struct {
	mu      sync.RWMutex
	closed  bool
	models  map[string]string
	records map[string][]factory.Record
}

// NewMemoryStore creates an empty, ready store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		models:  make(map[string]string),
		records: make(map[string][]factory.Record),
	}
}

// Ready reports whether the store is open.
func (s *MemoryStore) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.closed
}

// HasModel reports whether modelID is bound.
func (s *MemoryStore) HasModel(modelID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.models[modelID]
	return ok
}

// BindModel registers name under its canonical id.
func (s *MemoryStore) BindModel(_ context.Context, name string) (string, error) {
	id := factory.ModelID(name)
	if id == "" {
		return "", fmt.Errorf("model name %q has no letters or digits", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", factory.NewStoreUnavailableError("store is closed")
	}
	if _, ok := s.models[id]; !ok {
		s.models[id] = name
	}
	return id, nil
}

// Models returns the bound model ids.
func (s *MemoryStore) Models(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.models))
	for id := range s.models {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// CreateRecord stores a copy of attrs.
func (s *MemoryStore) CreateRecord(ctx context.Context, modelID string, attrs factory.Attrs) (factory.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, factory.NewStoreUnavailableError("store is closed")
	}
	if _, ok := s.models[modelID]; !ok {
		return nil, factory.NewUnknownModelError(modelID)
	}

	rec := newRecord(attrs, uuid.NewString())
	s.records[modelID] = append(s.records[modelID], rec)
	return copyRecord(rec), nil
}

// Records returns copies of the stored records.
func (s *MemoryStore) Records(_ context.Context, modelID string) ([]factory.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.models[modelID]; !ok {
		return nil, factory.NewUnknownModelError(modelID)
	}

	out := make([]factory.Record, 0, len(s.records[modelID]))
	for _, rec := range s.records[modelID] {
		out = append(out, copyRecord(rec))
	}
	return out, nil
}

// Count returns the number of stored records of modelID.
func (s *MemoryStore) Count(_ context.Context, modelID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.models[modelID]; !ok {
		return 0, factory.NewUnknownModelError(modelID)
	}
	return len(s.records[modelID]), nil
}

// Truncate drops the records of modelID.
func (s *MemoryStore) Truncate(_ context.Context, modelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return factory.NewStoreUnavailableError("store is closed")
	}
	if _, ok := s.models[modelID]; !ok {
		return factory.NewUnknownModelError(modelID)
	}
	delete(s.records, modelID)
	return nil
}

// Close marks the store closed. Records are kept for inspection.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func copyRecord(rec factory.Record) factory.Record {
	cp := make(factory.Record, len(rec))
	for k, v := range rec {
		cp[k] = v
	}
	return cp
}
