package kvstores

import (
	"bytes"
	"context"
	"sync"
)

// Memory implements [Store] in process memory.
type Memory struct {
	mu       sync.Mutex
	records  map[string][]byte
	maxBytes int
}

var _ Store = (*Memory)(nil)

func NewMemory(maxRecordBytes int) *Memory {
	return &Memory{records: make(map[string][]byte), maxBytes: maxRecordBytes}
}

func (s *Memory) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.records[key]
	if !ok {
		return nil, ErrNotFound
	}
	return bytes.Clone(value), nil
}

func (s *Memory) Put(_ context.Context, records ...Record) error {
	if err := checkQuota(s.maxBytes, records); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.records[r.Key] = bytes.Clone(r.Value)
	}
	return nil
}

func (s *Memory) Close() error { return nil }
