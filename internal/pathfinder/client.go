// Package pathfinder talks to the Circles pathfinder JSON-RPC service.
//
// The pathfinder answers max-flow queries over the trust graph: given a
// source, a sink and a target amount it returns the achievable flow and
// the transfer steps realizing it. This package wraps that API with
// retries, typed errors and the probe trick for capacity queries.
package pathfinder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"circles-flow/internal/domain"
	"circles-flow/internal/observability"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// maxFlowProbe is deliberately larger than any realistic Circles balance;
// asking for it makes the pathfinder report the full capacity between two
// avatars instead of a capped route.
const maxFlowProbe = "9999999999999999999999999999999999999"

// Request describes one path query.
type Request struct {
	From   domain.Address
	To     domain.Address
	Amount *big.Int

	// UseWrappedBalances lets the pathfinder route through ERC20
	// wrapper balances in addition to native Circles.
	UseWrappedBalances bool

	// Constraints optionally restricts which tokens may enter or leave
	// the path. Nil means unconstrained.
	Constraints *domain.PathConstraints
}

// Client finds transfer paths through the Circles trust graph.
type Client interface {
	FindPath(ctx context.Context, req Request) (*domain.Path, error)
	FindMaxFlow(ctx context.Context, from, to domain.Address, constraints *domain.PathConstraints) (*big.Int, error)
	HealthCheck(ctx context.Context) error
}

// HTTPClient implements Client over HTTP JSON-RPC 2.0.
type HTTPClient struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	requestID   atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a pathfinder client for the given endpoint.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// findPathParams is the wire form of circlesV2_findPath.
// Field casing follows the pathfinder API, not Go JSON convention.
type findPathParams struct {
	Source             string   `json:"Source"`
	Sink               string   `json:"Sink"`
	TargetFlow         string   `json:"TargetFlow"`
	WithWrap           bool     `json:"WithWrap"`
	FromTokens         []string `json:"FromTokens,omitempty"`
	ToTokens           []string `json:"ToTokens,omitempty"`
	ExcludedFromTokens []string `json:"ExcludedFromTokens,omitempty"`
	ExcludedToTokens   []string `json:"ExcludedToTokens,omitempty"`
}

// findPathResult is the raw RPC response for circlesV2_findPath.
type findPathResult struct {
	MaxFlow   string         `json:"maxFlow"`
	Transfers []wireTransfer `json:"transfers"`
}

type wireTransfer struct {
	From       string `json:"from"`
	To         string `json:"to"`
	TokenOwner string `json:"tokenOwner"`
	Value      string `json:"value"`
}

// call performs a JSON-RPC call with retries and exponential backoff.
// Transport failures and 429 responses are retried; RPC-level errors are
// returned to the caller untouched.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	reqID := c.requestID.Add(1)
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error
	rateLimited := false
	var retryAfter time.Duration

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			observability.RecordPathfinderRetry(method)
			select {
			case <-ctx.Done():
				return c.wrapContextErr(ctx.Err())
			case <-time.After(delay):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return c.wrapContextErr(ctxErr)
			}
			rateLimited = false
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			rateLimited = false
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			rateLimited = true
			if hint := parseRetryAfter(resp.Header.Get("Retry-After")); hint > 0 {
				retryAfter = hint
				if hint > delay && hint <= c.maxDelay {
					delay = hint
				}
			}
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		if resp.StatusCode != http.StatusOK {
			rateLimited = false
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			rateLimited = false
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}

		if rpcResp.Error != nil {
			// RPC errors are not retried
			return rpcResp.Error
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}

		return nil
	}

	if rateLimited {
		return &RateLimitError{RetryAfter: retryAfter}
	}
	return &NetworkError{Attempts: c.maxRetries + 1, Err: lastErr}
}

func (c *HTTPClient) wrapContextErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Timeout: c.client.Timeout, Err: err}
	}
	return err
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// FindPath queries the pathfinder for a route delivering req.Amount from
// req.From to req.To. A missing route surfaces as *NoPathError.
func (c *HTTPClient) FindPath(ctx context.Context, req Request) (*domain.Path, error) {
	start := time.Now()
	path, err := c.findPath(ctx, req)
	observability.RecordPathfinderCall("circlesV2_findPath", err == nil, time.Since(start))
	return path, err
}

func (c *HTTPClient) findPath(ctx context.Context, req Request) (*domain.Path, error) {
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return nil, &Error{From: req.From, To: req.To, Amount: req.Amount, Detail: "amount must be positive"}
	}

	params := findPathParams{
		Source:     req.From.String(),
		Sink:       req.To.String(),
		TargetFlow: req.Amount.String(),
		WithWrap:   req.UseWrappedBalances,
	}
	if req.Constraints != nil {
		params.FromTokens = addressStrings(req.Constraints.FromTokens)
		params.ToTokens = addressStrings(req.Constraints.ToTokens)
		params.ExcludedFromTokens = addressStrings(req.Constraints.ExcludedFromTokens)
		params.ExcludedToTokens = addressStrings(req.Constraints.ExcludedToTokens)
	}

	var result *findPathResult
	if err := c.call(ctx, "circlesV2_findPath", []interface{}{params}, &result); err != nil {
		return nil, c.classifyError(req, err)
	}

	// A null result means the pathfinder found nothing at all.
	if result == nil {
		return nil, &NoPathError{From: req.From, To: req.To, Amount: req.Amount}
	}

	return decodePath(req, result)
}

func decodePath(req Request, result *findPathResult) (*domain.Path, error) {
	maxFlow := new(big.Int)
	if result.MaxFlow != "" {
		if _, ok := maxFlow.SetString(result.MaxFlow, 10); !ok {
			return nil, &Error{From: req.From, To: req.To, Amount: req.Amount,
				Detail: fmt.Sprintf("malformed maxFlow %q", result.MaxFlow)}
		}
	}

	steps := make([]domain.TransferStep, 0, len(result.Transfers))
	for i, t := range result.Transfers {
		value := new(big.Int)
		if _, ok := value.SetString(t.Value, 10); !ok {
			return nil, &Error{From: req.From, To: req.To, Amount: req.Amount,
				Detail: fmt.Sprintf("malformed value %q in transfer %d", t.Value, i)}
		}
		step, err := domain.NewTransferStep(t.From, t.To, t.TokenOwner, value)
		if err != nil {
			return nil, &Error{From: req.From, To: req.To, Amount: req.Amount,
				Detail: fmt.Sprintf("invalid transfer %d", i), Err: err}
		}
		steps = append(steps, step)
	}

	if maxFlow.Sign() == 0 && len(steps) == 0 {
		return nil, &NoPathError{From: req.From, To: req.To, Amount: req.Amount}
	}

	return &domain.Path{MaxFlow: maxFlow, Steps: steps}, nil
}

// classifyError maps wire-level failures onto the typed error set.
func (c *HTTPClient) classifyError(req Request, err error) error {
	var rpcErr *rpcError
	if errors.As(err, &rpcErr) {
		switch rpcErr.Code {
		case codeNoPathFound:
			return &NoPathError{From: req.From, To: req.To, Amount: req.Amount}
		case codeInsufficientBalance:
			return &InsufficientBalanceError{From: req.From, Amount: req.Amount, Detail: rpcErr.Message}
		default:
			return &Error{From: req.From, To: req.To, Amount: req.Amount, Detail: rpcErr.Message, Err: rpcErr}
		}
	}
	return err
}

// FindMaxFlow reports the total transferable capacity from one avatar to
// another by probing with an unreachable target amount. No path at all is
// reported as zero capacity, not as an error.
func (c *HTTPClient) FindMaxFlow(ctx context.Context, from, to domain.Address, constraints *domain.PathConstraints) (*big.Int, error) {
	probe, _ := new(big.Int).SetString(maxFlowProbe, 10)
	path, err := c.findPath(ctx, Request{
		From:               from,
		To:                 to,
		Amount:             probe,
		UseWrappedBalances: true,
		Constraints:        constraints,
	})
	if err != nil {
		var noPath *NoPathError
		if errors.As(err, &noPath) {
			return big.NewInt(0), nil
		}
		return nil, err
	}
	return path.MaxFlow, nil
}

// HealthCheck probes the endpoint with a minimal request. Any HTTP
// response, including an RPC error, counts as alive.
func (c *HTTPClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint,
		bytes.NewReader([]byte(`{"jsonrpc":"2.0","id":0,"method":"circlesV2_findPath","params":[]}`)))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &NetworkError{Attempts: 1, Err: err}
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return nil
}

func addressStrings(addrs []domain.Address) []string {
	if len(addrs) == 0 {
		return nil
	}
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.String()
	}
	return out
}
