package memory

import (
	"context"
	"sync"

	"circles-flow/internal/domain"
	"circles-flow/internal/storage"
)

// TokenInfoStore is an in-memory implementation of storage.TokenInfoStore.
type TokenInfoStore struct {
	mu   sync.RWMutex
	rows map[domain.Address]domain.TokenInfoRow
}

// NewTokenInfoStore creates a new in-memory token info store.
func NewTokenInfoStore() *TokenInfoStore {
	return &TokenInfoStore{
		rows: make(map[domain.Address]domain.TokenInfoRow),
	}
}

// GetBatch retrieves rows for the given token addresses. Unknown tokens
// are absent from the result.
func (s *TokenInfoStore) GetBatch(_ context.Context, tokens []domain.Address) (map[domain.Address]domain.TokenInfoRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[domain.Address]domain.TokenInfoRow, len(tokens))
	for _, token := range tokens {
		if row, exists := s.rows[token]; exists {
			out[token] = row
		}
	}
	return out, nil
}

// Upsert inserts or replaces a row.
func (s *TokenInfoStore) Upsert(_ context.Context, row domain.TokenInfoRow) error {
	if row.Token == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.rows[row.Token] = row
	return nil
}

var _ storage.TokenInfoStore = (*TokenInfoStore)(nil)
