package factory

import (
	"context"
	"errors"
	"sync"
)

// fakeStore is an in-memory ModelStore that records every call.
type fakeStore struct {
	mu      sync.Mutex
	ready   bool
	models  map[string]bool
	failOn  error
	created []Record
	nextID  int
}

func newFakeStore(models ...string) *fakeStore {
	s := &fakeStore{ready: true, models: make(map[string]bool)}
	for _, m := range models {
		s.models[m] = true
	}
	return s
}

func (s *fakeStore) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

func (s *fakeStore) HasModel(modelID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.models[modelID]
}

func (s *fakeStore) CreateRecord(_ context.Context, modelID string, attrs Attrs) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failOn != nil {
		return nil, s.failOn
	}
	if !s.models[modelID] {
		return nil, NewUnknownModelError(modelID)
	}

	s.nextID++
	rec := Record{"_model": modelID, "_row": s.nextID}
	for k, v := range attrs {
		rec[k] = v
	}
	s.created = append(s.created, rec)
	return rec, nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.created)
}

var errBoom = errors.New("boom")
