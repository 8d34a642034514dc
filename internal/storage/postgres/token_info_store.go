package postgres

import (
	"context"
	"fmt"
	"time"

	"circles-flow/internal/domain"
	"circles-flow/internal/observability"
	"circles-flow/internal/storage"
)

// TokenInfoStore implements storage.TokenInfoStore using PostgreSQL.
// It backs the token classifier when the process wants classification
// to survive restarts instead of hitting the index RPC cold.
type TokenInfoStore struct {
	pool *Pool
}

// NewTokenInfoStore creates a new TokenInfoStore.
func NewTokenInfoStore(pool *Pool) *TokenInfoStore {
	return &TokenInfoStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenInfoStore = (*TokenInfoStore)(nil)

// GetBatch retrieves rows for the given token addresses. Unknown tokens
// are absent from the result, never an error.
func (s *TokenInfoStore) GetBatch(ctx context.Context, tokens []domain.Address) (map[domain.Address]domain.TokenInfoRow, error) {
	out := make(map[domain.Address]domain.TokenInfoRow, len(tokens))
	if len(tokens) == 0 {
		return out, nil
	}

	keys := make([]string, len(tokens))
	for i, t := range tokens {
		keys[i] = t.String()
	}

	query := `
		SELECT token, type, owner, version
		FROM token_info
		WHERE token = ANY($1)
	`

	start := time.Now()
	rows, err := s.pool.Query(ctx, query, keys)
	observability.RecordDBQuery("postgres", "token_info_get_batch", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("query token info batch: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var token, typ, owner string
		var version int
		if err := rows.Scan(&token, &typ, &owner, &version); err != nil {
			return nil, fmt.Errorf("scan token info row: %w", err)
		}
		addr, err := domain.ParseAddress(token)
		if err != nil {
			return nil, fmt.Errorf("stored token address %q: %w", token, err)
		}
		ownerAddr, err := domain.ParseAddress(owner)
		if err != nil {
			return nil, fmt.Errorf("stored owner address %q: %w", owner, err)
		}
		out[addr] = domain.TokenInfoRow{
			Token:   addr,
			Type:    domain.TokenType(typ),
			Owner:   ownerAddr,
			Version: version,
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token info rows: %w", err)
	}

	return out, nil
}

// Upsert inserts or replaces a row, keyed by token address.
func (s *TokenInfoStore) Upsert(ctx context.Context, row domain.TokenInfoRow) error {
	if row.Token == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO token_info (token, type, owner, version)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token) DO UPDATE SET
			type = EXCLUDED.type,
			owner = EXCLUDED.owner,
			version = EXCLUDED.version,
			updated_at = now()
	`

	start := time.Now()
	_, err := s.pool.Exec(ctx, query,
		row.Token.String(),
		string(row.Type),
		row.Owner.String(),
		row.Version,
	)
	observability.RecordDBQuery("postgres", "token_info_upsert", time.Since(start).Seconds(), err)
	if err != nil {
		return fmt.Errorf("upsert token info: %w", err)
	}
	return nil
}
