package consent

import (
	"context"
	"sync"
	"time"
)

type memoryKey struct {
	tenantID string
	phone    string
}

// MemoryStore keeps consent records in process memory. It is safe for
// concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[memoryKey]Record
	now     func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[memoryKey]Record),
		now:     time.Now,
	}
}

// LoadRecipient implements Store.
func (s *MemoryStore) LoadRecipient(_ context.Context, tenantID, phone string) (*Record, error) {
	s.mu.RLock()
	rec, ok := s.records[memoryKey{tenantID, normalizePhone(phone)}]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// UpsertRecipient implements Store.
func (s *MemoryStore) UpsertRecipient(_ context.Context, rec Record) (*Record, error) {
	rec.Phone = normalizePhone(rec.Phone)
	rec.UpdatedAt = s.now().UTC()

	s.mu.Lock()
	s.records[memoryKey{rec.TenantID, rec.Phone}] = rec
	s.mu.Unlock()

	return &rec, nil
}
