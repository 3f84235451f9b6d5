package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MemoryRecordStore is a process-local RecordStore.
type MemoryRecordStore struct {
	mu      sync.RWMutex
	entries map[string]string
}

func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{entries: map[string]string{}}
}

func (s *MemoryRecordStore) Get(_ context.Context, key string) (string, bool, error) {
	if s == nil {
		return "", false, fmt.Errorf("core: record store is not configured")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.entries[strings.TrimSpace(key)]
	return value, ok, nil
}

func (s *MemoryRecordStore) Put(_ context.Context, key string, value string) error {
	if s == nil {
		return fmt.Errorf("core: record store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("core: record key is required")
	}
	s.mu.Lock()
	s.entries[key] = value
	s.mu.Unlock()
	return nil
}

func (s *MemoryRecordStore) Delete(_ context.Context, key string) error {
	if s == nil {
		return fmt.Errorf("core: record store is not configured")
	}
	s.mu.Lock()
	delete(s.entries, strings.TrimSpace(key))
	s.mu.Unlock()
	return nil
}

func (s *MemoryRecordStore) Len() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

var _ RecordStore = (*MemoryRecordStore)(nil)
