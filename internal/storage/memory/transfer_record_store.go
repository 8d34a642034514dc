package memory

import (
	"context"
	"sort"
	"sync"

	"circles-flow/internal/domain"
	"circles-flow/internal/storage"
)

// TransferRecordStore is an in-memory implementation of storage.TransferRecordStore.
type TransferRecordStore struct {
	mu      sync.RWMutex
	records []*domain.TransferRecord
}

// NewTransferRecordStore creates a new in-memory transfer record store.
func NewTransferRecordStore() *TransferRecordStore {
	return &TransferRecordStore{}
}

// Insert adds a new record.
func (s *TransferRecordStore) Insert(_ context.Context, rec *domain.TransferRecord) error {
	if rec == nil || rec.OperationID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	recCopy := *rec
	s.records = append(s.records, &recCopy)
	return nil
}

// GetByTimeRange retrieves records created within [start, end] (inclusive,
// unix ms), ordered by creation time ASC.
func (s *TransferRecordStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.TransferRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.TransferRecord
	for _, rec := range s.records {
		if rec.CreatedAt >= start && rec.CreatedAt <= end {
			recCopy := *rec
			out = append(out, &recCopy)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt < out[j].CreatedAt
	})
	return out, nil
}

var _ storage.TransferRecordStore = (*TransferRecordStore)(nil)
