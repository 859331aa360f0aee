package runlog

import (
	"context"
	"sync"
)

// MemoryStore keeps records in memory. It is used when no persistent
// backend is configured and in tests.
type MemoryStore struct {
	mu   sync.RWMutex
	recs []Record
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Append(ctx context.Context, rec Record) error {
	m.mu.Lock()
	m.recs = append(m.recs, rec)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Query(ctx context.Context, q Query) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []Record
	for _, r := range m.recs {
		if q.Match(r) {
			res = append(res, r)
		}
	}
	return q.limit(res), nil
}

func (m *MemoryStore) Close() error { return nil }
