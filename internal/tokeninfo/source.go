package tokeninfo

import (
	"context"
	"fmt"
	"strings"

	"circles-flow/internal/domain"
)

// Source supplies token classification rows for a batch of addresses.
// Implementations return only the tokens they know about; missing tokens
// are simply absent from the result map.
type Source interface {
	TokenInfoBatch(ctx context.Context, tokens []domain.Address) (map[domain.Address]domain.TokenInfoRow, error)
}

// TokenError reports tokens that could not be classified.
type TokenError struct {
	Tokens []domain.Address
	Err    error
}

func (e *TokenError) Error() string {
	addrs := make([]string, len(e.Tokens))
	for i, t := range e.Tokens {
		addrs[i] = t.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("token info unavailable for [%s]: %v", strings.Join(addrs, ", "), e.Err)
	}
	return fmt.Sprintf("token info unavailable for [%s]", strings.Join(addrs, ", "))
}

func (e *TokenError) Unwrap() error { return e.Err }
