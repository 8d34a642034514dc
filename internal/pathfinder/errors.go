package pathfinder

import (
	"fmt"
	"math/big"
	"time"

	"circles-flow/internal/domain"
)

// JSON-RPC error codes reported by the pathfinder service.
const (
	codeNoPathFound         = -32000
	codeInsufficientBalance = -32001
)

// NoPathError reports that no viable route exists between source and sink.
// Distinct from a found-but-zero-value path.
type NoPathError struct {
	From   domain.Address
	To     domain.Address
	Amount *big.Int
}

func (e *NoPathError) Error() string {
	return fmt.Sprintf("no path found from %s to %s for %s", e.From, e.To, e.Amount)
}

// InsufficientBalanceError reports that the source cannot supply the
// requested amount.
type InsufficientBalanceError struct {
	From   domain.Address
	Amount *big.Int
	Detail string
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance at %s for %s: %s", e.From, e.Amount, e.Detail)
}

// Error is a general pathfinding failure with request context attached.
type Error struct {
	From   domain.Address
	To     domain.Address
	Amount *big.Int
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("pathfinding %s -> %s (%s): %s: %v", e.From, e.To, e.Amount, e.Detail, e.Err)
	}
	return fmt.Sprintf("pathfinding %s -> %s (%s): %s", e.From, e.To, e.Amount, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

// NetworkError is a transport-layer failure that survived all retries.
type NetworkError struct {
	Attempts int
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error after %d attempts: %v", e.Attempts, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// TimeoutError is a request that exceeded the caller's time bound.
type TimeoutError struct {
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request timed out after %s: %v", e.Timeout, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// RateLimitError is an explicit backoff signal from the service.
// RetryAfter carries the server's hint when present.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

// rpcError is the JSON-RPC 2.0 error object.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}
