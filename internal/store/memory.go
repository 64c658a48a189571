package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps documents in process memory. It backs tests and the
// default service configuration; contents are copied on the way in and out so
// callers cannot alias the stored bytes.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]map[string][]byte)}
}

func (s *MemoryStore) Put(ctx context.Context, runID, name string, data []byte) error {
	if err := validKey(runID, name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	docs := s.runs[runID]
	if docs == nil {
		docs = make(map[string][]byte)
		s.runs[runID] = docs
	}
	docs[name] = append([]byte(nil), data...)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, runID, name string) ([]byte, error) {
	if err := validKey(runID, name); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.runs[runID][name]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryStore) List(ctx context.Context, runID string) ([]string, error) {
	if err := validComponent("run id", runID); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.runs[runID]))
	for name := range s.runs[runID] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *MemoryStore) Kind() string { return "memory" }
