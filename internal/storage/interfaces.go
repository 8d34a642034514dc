package storage

import (
	"context"

	"circles-flow/internal/domain"
)

// TokenInfoStore provides access to token classification storage. Rows
// mirror the Circles indexer's token registry and are keyed by token
// address.
type TokenInfoStore interface {
	// GetBatch retrieves rows for the given token addresses. Tokens with
	// no row are simply absent from the result; the caller decides
	// whether that is an error.
	GetBatch(ctx context.Context, tokens []domain.Address) (map[domain.Address]domain.TokenInfoRow, error)

	// Upsert inserts or replaces a row. Returns ErrInvalidInput on an
	// empty token address.
	Upsert(ctx context.Context, row domain.TokenInfoRow) error
}

// TransferRecordStore provides access to the transfer audit log.
type TransferRecordStore interface {
	// Insert adds a new record. Returns ErrInvalidInput on a missing
	// operation id.
	Insert(ctx context.Context, rec *domain.TransferRecord) error

	// GetByTimeRange retrieves records created within [start, end]
	// (inclusive, unix ms), ordered by creation time ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.TransferRecord, error)
}
