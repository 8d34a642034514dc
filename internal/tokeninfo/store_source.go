package tokeninfo

import (
	"context"

	"circles-flow/internal/domain"
	"circles-flow/internal/storage"
)

// StoreSource serves token classification rows from a storage backend,
// typically a postgres mirror of the Circles index. A StoreSource can
// front an RPCSource as fallback for tokens the mirror has not seen yet.
type StoreSource struct {
	store    storage.TokenInfoStore
	fallback Source
}

// NewStoreSource creates a source over the given store. fallback may be
// nil; then unknown tokens stay unresolved.
func NewStoreSource(store storage.TokenInfoStore, fallback Source) *StoreSource {
	return &StoreSource{store: store, fallback: fallback}
}

// TokenInfoBatch resolves tokens from the store, consulting the fallback
// for misses. Fallback results are written back to the store best-effort.
func (s *StoreSource) TokenInfoBatch(ctx context.Context, tokens []domain.Address) (map[domain.Address]domain.TokenInfoRow, error) {
	out, err := s.store.GetBatch(ctx, tokens)
	if err != nil {
		return nil, &TokenError{Tokens: tokens, Err: err}
	}

	if s.fallback == nil || len(out) == len(tokens) {
		return out, nil
	}

	var missing []domain.Address
	for _, t := range tokens {
		if _, ok := out[t]; !ok {
			missing = append(missing, t)
		}
	}

	fetched, err := s.fallback.TokenInfoBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	for token, row := range fetched {
		out[token] = row
		// Mirror write failures are not fatal; the row is already in hand.
		_ = s.store.Upsert(ctx, row)
	}
	return out, nil
}

var _ Source = (*StoreSource)(nil)
