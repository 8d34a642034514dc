package tokeninfo

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"circles-flow/internal/domain"
)

func TestRPCSource_TokenInfoBatch(t *testing.T) {
	tokenA := "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	ownerA := "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string        `json:"method"`
			Params []interface{} `json:"params"`
			ID     uint64        `json:"id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}

		if req.Method != "circles_getTokenInfoBatch" {
			t.Errorf("expected method circles_getTokenInfoBatch, got %s", req.Method)
		}

		addrs, ok := req.Params[0].([]interface{})
		if !ok || len(addrs) != 1 || addrs[0] != tokenA {
			t.Errorf("expected params [[%s]], got %v", tokenA, req.Params)
		}

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": []map[string]interface{}{
				{
					"timestamp":       int64(1700000000),
					"transactionHash": "0xdeadbeef",
					"version":         2,
					"type":            "CrcV2_ERC20WrapperDeployed_Inflationary",
					"token":           tokenA,
					"tokenOwner":      ownerA,
				},
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	source := NewRPCSource(server.URL)
	ctx := context.Background()

	rows, err := source.TokenInfoBatch(ctx, []domain.Address{domain.MustAddress(tokenA)})
	if err != nil {
		t.Fatalf("TokenInfoBatch: %v", err)
	}

	row, ok := rows[domain.MustAddress(tokenA)]
	if !ok {
		t.Fatal("expected row for token")
	}
	if row.Type != domain.TokenTypeWrapperInflationary {
		t.Errorf("unexpected type: %s", row.Type)
	}
	if row.Owner != domain.MustAddress(ownerA) {
		t.Errorf("unexpected owner: %s", row.Owner)
	}
	if row.Version != 2 {
		t.Errorf("unexpected version: %d", row.Version)
	}
}

func TestRPCSource_EmptyBatch(t *testing.T) {
	source := NewRPCSource("http://unreachable.invalid")

	rows, err := source.TokenInfoBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("TokenInfoBatch: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected empty result, got %d rows", len(rows))
	}
}

func TestRPCSource_RPCError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"invalid params"}}`))
	}))
	defer server.Close()

	source := NewRPCSource(server.URL)

	_, err := source.TokenInfoBatch(context.Background(), []domain.Address{testAddr(0)})
	var tokenErr *TokenError
	if !errors.As(err, &tokenErr) {
		t.Fatalf("expected TokenError, got %T: %v", err, err)
	}
}

func TestStoreSource_FallbackAndWriteBack(t *testing.T) {
	cached := testRow(0)
	missing := testRow(1)

	store := &fakeStore{rows: map[domain.Address]domain.TokenInfoRow{cached.Token: cached}}
	fallback := newFakeSource(missing)
	source := NewStoreSource(store, fallback)

	rows, err := source.TokenInfoBatch(context.Background(), []domain.Address{cached.Token, missing.Token})
	if err != nil {
		t.Fatalf("TokenInfoBatch: %v", err)
	}

	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if fallback.calls.Load() != 1 {
		t.Errorf("expected 1 fallback call, got %d", fallback.calls.Load())
	}

	// The fallback row is mirrored into the store.
	if _, ok := store.rows[missing.Token]; !ok {
		t.Error("expected fallback row written back to store")
	}
}

// fakeStore is a minimal storage.TokenInfoStore for fallback tests.
type fakeStore struct {
	rows map[domain.Address]domain.TokenInfoRow
}

func (s *fakeStore) GetBatch(_ context.Context, tokens []domain.Address) (map[domain.Address]domain.TokenInfoRow, error) {
	out := make(map[domain.Address]domain.TokenInfoRow)
	for _, t := range tokens {
		if row, ok := s.rows[t]; ok {
			out[t] = row
		}
	}
	return out, nil
}

func (s *fakeStore) Upsert(_ context.Context, row domain.TokenInfoRow) error {
	s.rows[row.Token] = row
	return nil
}
