package session

import (
	"context"
	"sync"
)

// MemoryStore keeps the snapshot in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	snap Snapshot
	ok   bool
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Get(_ context.Context) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ok {
		return Snapshot{}, false
	}
	return cloneSnapshot(s.snap), true
}

func (s *MemoryStore) Set(_ context.Context, snap Snapshot) error {
	if err := checkPair(snap); err != nil {
		return err
	}
	s.mu.Lock()
	s.snap = cloneSnapshot(snap)
	s.ok = true
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.snap = Snapshot{}
	s.ok = false
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Close() error { return nil }
