package audit

import (
	"context"
	"slices"
	"sync"
)

// MemoryStorage keeps records in process memory.
type MemoryStorage struct {
	mu      sync.RWMutex
	records []Record
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (s *MemoryStorage) Store(_ context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	return nil
}

func (s *MemoryStorage) Query(_ context.Context, c Criteria) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, r := range slices.Backward(s.records) {
		if c.Matches(r) {
			out = append(out, r)
		}
	}
	return page(out, c), nil
}

func (s *MemoryStorage) Count(_ context.Context, c Criteria) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, r := range s.records {
		if c.Matches(r) {
			n++
		}
	}
	return n, nil
}

func page(recs []Record, c Criteria) []Record {
	if c.Offset > 0 {
		if c.Offset >= len(recs) {
			return nil
		}
		recs = recs[c.Offset:]
	}
	if c.Limit > 0 && len(recs) > c.Limit {
		recs = recs[:c.Limit]
	}
	return recs
}
