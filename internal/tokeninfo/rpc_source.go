package tokeninfo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"circles-flow/internal/domain"
	"circles-flow/internal/observability"
)

// DefaultRPCTimeout bounds one token info batch request.
const DefaultRPCTimeout = 15 * time.Second

// RPCSource fetches token classification rows from the Circles index RPC
// via circles_getTokenInfoBatch.
type RPCSource struct {
	endpoint  string
	client    *http.Client
	requestID atomic.Uint64
}

// RPCSourceOption configures RPCSource.
type RPCSourceOption func(*RPCSource)

// WithRPCTimeout sets the HTTP client timeout.
func WithRPCTimeout(d time.Duration) RPCSourceOption {
	return func(s *RPCSource) {
		s.client.Timeout = d
	}
}

// WithRPCHTTPClient sets a custom http.Client.
func WithRPCHTTPClient(client *http.Client) RPCSourceOption {
	return func(s *RPCSource) {
		s.client = client
	}
}

// NewRPCSource creates a source against the given Circles RPC endpoint.
func NewRPCSource(endpoint string, opts ...RPCSourceOption) *RPCSource {
	s := &RPCSource{
		endpoint: endpoint,
		client:   &http.Client{Timeout: DefaultRPCTimeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// tokenInfoWireRow is one row of the circles_getTokenInfoBatch response.
type tokenInfoWireRow struct {
	Timestamp       int64  `json:"timestamp"`
	TransactionHash string `json:"transactionHash"`
	Version         int    `json:"version"`
	Type            string `json:"type"`
	Token           string `json:"token"`
	TokenOwner      string `json:"tokenOwner"`
}

// TokenInfoBatch fetches rows for the given tokens. Tokens the index does
// not know are absent from the result.
func (s *RPCSource) TokenInfoBatch(ctx context.Context, tokens []domain.Address) (map[domain.Address]domain.TokenInfoRow, error) {
	if len(tokens) == 0 {
		return map[domain.Address]domain.TokenInfoRow{}, nil
	}

	addrs := make([]string, len(tokens))
	for i, t := range tokens {
		addrs[i] = t.String()
	}

	reqBody := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      s.requestID.Add(1),
		"method":  "circles_getTokenInfoBatch",
		"params":  []interface{}{addrs},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		observability.RecordTokenLookupError()
		return nil, &TokenError{Tokens: tokens, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		observability.RecordTokenLookupError()
		return nil, &TokenError{Tokens: tokens, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		observability.RecordTokenLookupError()
		return nil, &TokenError{Tokens: tokens,
			Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))}
	}

	var rpcResp struct {
		Result []tokenInfoWireRow `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		observability.RecordTokenLookupError()
		return nil, &TokenError{Tokens: tokens, Err: fmt.Errorf("unmarshal response: %w", err)}
	}
	if rpcResp.Error != nil {
		observability.RecordTokenLookupError()
		return nil, &TokenError{Tokens: tokens,
			Err: fmt.Errorf("RPC error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)}
	}

	out := make(map[domain.Address]domain.TokenInfoRow, len(rpcResp.Result))
	for _, wire := range rpcResp.Result {
		token, err := domain.ParseAddress(wire.Token)
		if err != nil {
			continue
		}
		owner, err := domain.ParseAddress(wire.TokenOwner)
		if err != nil {
			continue
		}
		out[token] = domain.TokenInfoRow{
			Token:   token,
			Type:    domain.TokenType(wire.Type),
			Owner:   owner,
			Version: wire.Version,
		}
	}
	return out, nil
}

var _ Source = (*RPCSource)(nil)
