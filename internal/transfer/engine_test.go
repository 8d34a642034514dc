package transfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"circles-flow/internal/domain"
	"circles-flow/internal/pathfinder"
	"circles-flow/internal/storage/memory"
	"circles-flow/internal/tokeninfo"
)

var (
	alice = domain.MustAddress("0x1000000000000000000000000000000000000001")
	bob   = domain.MustAddress("0x2000000000000000000000000000000000000002")
	carol = domain.MustAddress("0x3000000000000000000000000000000000000003")
	hub   = domain.MustAddress("0xc12c1e50abb450d6205ea2c3fa861b3b834d13e8")
)

// fakePathfinder returns a canned path and records the last request.
type fakePathfinder struct {
	path    *domain.Path
	maxFlow *big.Int
	err     error
	lastReq pathfinder.Request
}

func (f *fakePathfinder) FindPath(_ context.Context, req pathfinder.Request) (*domain.Path, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	p := f.path.Clone()
	return &p, nil
}

func (f *fakePathfinder) FindMaxFlow(_ context.Context, _, _ domain.Address, _ *domain.PathConstraints) (*big.Int, error) {
	return new(big.Int).Set(f.maxFlow), nil
}

func (f *fakePathfinder) HealthCheck(context.Context) error { return nil }

// rowSource serves fixed classification rows.
type rowSource map[domain.Address]domain.TokenInfoRow

func (s rowSource) TokenInfoBatch(_ context.Context, tokens []domain.Address) (map[domain.Address]domain.TokenInfoRow, error) {
	out := make(map[domain.Address]domain.TokenInfoRow)
	for _, t := range tokens {
		if row, ok := s[t]; ok {
			out[t] = row
		}
	}
	return out, nil
}

// markerEncoder emits recognizable calldata.
type markerEncoder struct{}

func (markerEncoder) OperateFlowMatrix(*domain.FlowMatrix) ([]byte, error) {
	return []byte("matrix"), nil
}

func (markerEncoder) SetApprovalForAll(domain.Address, bool) []byte {
	return []byte("approve")
}

func (markerEncoder) Unwrap(amount *big.Int) ([]byte, error) {
	return []byte("unwrap:" + amount.String()), nil
}

type approvalsStub bool

func (a approvalsStub) IsApprovedForAll(context.Context, domain.Address, domain.Address) (bool, error) {
	return bool(a), nil
}

func amt(circles int64) *big.Int {
	atto := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	return atto.Mul(atto, big.NewInt(circles))
}

func nativePath(value *big.Int) *domain.Path {
	return &domain.Path{
		MaxFlow: new(big.Int).Set(value),
		Steps: []domain.TransferStep{
			{From: alice, To: bob, TokenOwner: alice, Value: new(big.Int).Set(value)},
			{From: bob, To: carol, TokenOwner: bob, Value: new(big.Int).Set(value)},
		},
	}
}

func nativeRows() rowSource {
	return rowSource{
		alice: {Token: alice, Type: domain.TokenTypeV2Human, Owner: alice, Version: 2},
		bob:   {Token: bob, Type: domain.TokenTypeV2Human, Owner: bob, Version: 2},
	}
}

func newTestEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	if opts.Classifier == nil {
		opts.Classifier = tokeninfo.NewClassifier(nativeRows(), nil)
	}
	if opts.HubAddress == "" {
		opts.HubAddress = hub
	}
	engine, err := NewEngine(opts)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return engine
}

func TestEngine_Validation(t *testing.T) {
	engine := newTestEngine(t, Options{
		Pathfinder: &fakePathfinder{path: nativePath(amt(1))},
	})
	ctx := context.Background()

	cases := []struct {
		name string
		req  Request
	}{
		{"missing from", Request{To: bob, Amount: amt(1)}},
		{"missing to", Request{From: alice, Amount: amt(1)}},
		{"same endpoints", Request{From: alice, To: alice, Amount: amt(1)}},
		{"nil amount", Request{From: alice, To: carol}},
		{"zero amount", Request{From: alice, To: carol, Amount: big.NewInt(0)}},
		{"negative amount", Request{From: alice, To: carol, Amount: big.NewInt(-5)}},
		{"truncates to zero", Request{From: alice, To: carol, Amount: big.NewInt(999_999_999_999)}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.Transfer(ctx, tc.req)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %T: %v", err, err)
			}
		})
	}
}

func TestTruncateToSixDecimals(t *testing.T) {
	v, _ := new(big.Int).SetString("1234567890123456789", 10)
	want, _ := new(big.Int).SetString("1234567000000000000", 10)

	if got := TruncateToSixDecimals(v); got.Cmp(want) != 0 {
		t.Errorf("expected %s, got %s", want, got)
	}

	// Already truncated values pass through.
	if got := TruncateToSixDecimals(want); got.Cmp(want) != 0 {
		t.Errorf("expected identity, got %s", got)
	}
}

func TestEngine_TransferNativePath(t *testing.T) {
	pf := &fakePathfinder{path: nativePath(amt(5))}
	engine := newTestEngine(t, Options{Pathfinder: pf})

	req := Request{From: alice, To: carol, Amount: amt(5), UseWrappedBalances: true}
	matrix, err := engine.Transfer(context.Background(), req)
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}

	if pf.lastReq.Amount.Cmp(amt(5)) != 0 {
		t.Errorf("expected pathfinder amount %s, got %s", amt(5), pf.lastReq.Amount)
	}
	if !pf.lastReq.UseWrappedBalances {
		t.Error("expected wrapped balances flag forwarded")
	}

	if matrix.TerminalSum().Cmp(amt(5)) != 0 {
		t.Errorf("expected terminal sum %s, got %s", amt(5), matrix.TerminalSum())
	}
	if len(matrix.Vertices) != 3 {
		t.Errorf("expected 3 vertices, got %d", len(matrix.Vertices))
	}
}

func TestEngine_TransferTruncatesRequest(t *testing.T) {
	pf := &fakePathfinder{path: nativePath(amt(1))}
	engine := newTestEngine(t, Options{Pathfinder: pf})

	// One atto above a clean six-decimal amount.
	ragged := new(big.Int).Add(amt(1), big.NewInt(1))
	if _, err := engine.Transfer(context.Background(), Request{From: alice, To: carol, Amount: ragged}); err != nil {
		t.Fatalf("Transfer: %v", err)
	}

	if pf.lastReq.Amount.Cmp(amt(1)) != 0 {
		t.Errorf("expected truncated amount %s, got %s", amt(1), pf.lastReq.Amount)
	}
}

func TestEngine_TransferWithCalls(t *testing.T) {
	wrapper := domain.MustAddress("0x4000000000000000000000000000000000000004")
	avatar := domain.MustAddress("0x5000000000000000000000000000000000000005")

	rows := nativeRows()
	rows[wrapper] = domain.TokenInfoRow{Token: wrapper, Type: domain.TokenTypeWrapperDemurraged, Owner: avatar, Version: 2}

	value := amt(2)
	pf := &fakePathfinder{path: &domain.Path{
		MaxFlow: new(big.Int).Set(value),
		Steps: []domain.TransferStep{
			{From: alice, To: bob, TokenOwner: wrapper, Value: new(big.Int).Set(value)},
			{From: bob, To: carol, TokenOwner: bob, Value: new(big.Int).Set(value)},
		},
	}}

	engine := newTestEngine(t, Options{
		Pathfinder: pf,
		Classifier: tokeninfo.NewClassifier(rows, nil),
		Encoder:    markerEncoder{},
	})

	matrix, calls, err := engine.TransferWithCalls(context.Background(),
		Request{From: alice, To: carol, Amount: value})
	if err != nil {
		t.Fatalf("TransferWithCalls: %v", err)
	}

	// Deny-all default: approval, one unwrap, hub call.
	if len(calls) != 3 {
		t.Fatalf("expected 3 calls, got %d", len(calls))
	}

	if calls[0].To != hub || !bytes.Equal(calls[0].Data, []byte("approve")) {
		t.Errorf("expected approval call to hub first, got %+v", calls[0])
	}
	wantUnwrap := []byte("unwrap:" + value.String())
	if calls[1].To != wrapper || !bytes.Equal(calls[1].Data, wantUnwrap) {
		t.Errorf("expected unwrap call to wrapper, got to=%s data=%s", calls[1].To, calls[1].Data)
	}
	if calls[2].To != hub || !bytes.Equal(calls[2].Data, []byte("matrix")) {
		t.Errorf("expected hub matrix call last, got %+v", calls[2])
	}

	// Wrapper replaced by its avatar in the encoded matrix.
	for _, v := range matrix.Vertices {
		if v == wrapper {
			t.Error("wrapper address must not appear among vertices")
		}
	}
}

func TestEngine_TransferWithCalls_SkipsGrantedApproval(t *testing.T) {
	pf := &fakePathfinder{path: nativePath(amt(1))}
	engine := newTestEngine(t, Options{
		Pathfinder: pf,
		Encoder:    markerEncoder{},
		Approvals:  approvalsStub(true),
	})

	_, calls, err := engine.TransferWithCalls(context.Background(),
		Request{From: alice, To: carol, Amount: amt(1)})
	if err != nil {
		t.Fatalf("TransferWithCalls: %v", err)
	}

	if len(calls) != 1 {
		t.Fatalf("expected only the hub call, got %d calls", len(calls))
	}
	if !bytes.Equal(calls[0].Data, []byte("matrix")) {
		t.Errorf("expected hub matrix call, got %s", calls[0].Data)
	}
}

func TestEngine_TransferAttachesStreamData(t *testing.T) {
	pf := &fakePathfinder{path: nativePath(amt(1))}
	engine := newTestEngine(t, Options{Pathfinder: pf})

	data := []byte{0xde, 0xad}
	matrix, err := engine.Transfer(context.Background(),
		Request{From: alice, To: carol, Amount: amt(1), Data: data})
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}

	for i, s := range matrix.Streams {
		if !bytes.Equal(s.Data, data) {
			t.Errorf("stream %d: expected data attached, got %x", i, s.Data)
		}
	}
}

func TestEngine_TransferRecordsAudit(t *testing.T) {
	pf := &fakePathfinder{path: nativePath(amt(1))}
	records := memory.NewTransferRecordStore()
	engine := newTestEngine(t, Options{Pathfinder: pf, Records: records})

	if _, err := engine.Transfer(context.Background(),
		Request{From: alice, To: carol, Amount: amt(1)}); err != nil {
		t.Fatalf("Transfer: %v", err)
	}

	recs, err := records.GetByTimeRange(context.Background(), 0, 1<<62)
	if err != nil {
		t.Fatalf("GetByTimeRange: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 audit record, got %d", len(recs))
	}

	rec := recs[0]
	if rec.From != alice.String() || rec.To != carol.String() {
		t.Errorf("unexpected endpoints: %s -> %s", rec.From, rec.To)
	}
	if rec.Requested != amt(1).String() || rec.Actual != amt(1).String() {
		t.Errorf("unexpected amounts: requested %s, actual %s", rec.Requested, rec.Actual)
	}
	if rec.Steps != 2 || rec.Vertices != 3 || rec.Shrunk {
		t.Errorf("unexpected shape: %+v", rec)
	}
}

func TestEngine_TransferPropagatesPathfinderErrors(t *testing.T) {
	wantErr := &pathfinder.NoPathError{From: alice, To: carol, Amount: amt(1)}
	engine := newTestEngine(t, Options{Pathfinder: &fakePathfinder{err: wantErr}})

	_, err := engine.Transfer(context.Background(), Request{From: alice, To: carol, Amount: amt(1)})
	var noPath *pathfinder.NoPathError
	if !errors.As(err, &noPath) {
		t.Fatalf("expected NoPathError, got %T: %v", err, err)
	}
}

func TestEngine_MaxTransferableAmount(t *testing.T) {
	engine := newTestEngine(t, Options{
		Pathfinder: &fakePathfinder{maxFlow: big.NewInt(123456)},
	})

	flow, err := engine.MaxTransferableAmount(context.Background(), alice, carol, nil)
	if err != nil {
		t.Fatalf("MaxTransferableAmount: %v", err)
	}
	if flow.Cmp(big.NewInt(123456)) != 0 {
		t.Errorf("expected 123456, got %s", flow)
	}

	if _, err := engine.MaxTransferableAmount(context.Background(), alice, alice, nil); err == nil {
		t.Error("expected error for identical endpoints")
	}
}

func TestEngine_RequiresEncoderForCalls(t *testing.T) {
	engine := newTestEngine(t, Options{Pathfinder: &fakePathfinder{path: nativePath(amt(1))}})

	_, _, err := engine.TransferWithCalls(context.Background(),
		Request{From: alice, To: carol, Amount: amt(1)})
	if err == nil {
		t.Fatal("expected error without encoder")
	}
	if _, ok := err.(*ValidationError); ok {
		t.Errorf("expected configuration error, got validation error: %v", err)
	}
}

func TestEngine_NewEngineRequirements(t *testing.T) {
	classifier := tokeninfo.NewClassifier(nativeRows(), nil)

	cases := []struct {
		name string
		opts Options
	}{
		{"missing pathfinder", Options{Classifier: classifier, HubAddress: hub}},
		{"missing classifier", Options{Pathfinder: &fakePathfinder{}, HubAddress: hub}},
		{"missing hub", Options{Pathfinder: &fakePathfinder{}, Classifier: classifier}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewEngine(tc.opts); err == nil {
				t.Error("expected construction error")
			}
		})
	}
}

func TestEngine_WrapperTransferEndToEnd(t *testing.T) {
	// Inflationary wrapper forces shrinkage; the matrix total must match
	// the shrunk path, not the requested amount.
	wrapper := domain.MustAddress("0x4000000000000000000000000000000000000004")
	avatar := domain.MustAddress("0x5000000000000000000000000000000000000005")

	rows := rowSource{
		wrapper: {Token: wrapper, Type: domain.TokenTypeWrapperInflationary, Owner: avatar, Version: 2},
	}

	value := amt(3)
	pf := &fakePathfinder{path: &domain.Path{
		MaxFlow: new(big.Int).Set(value),
		Steps: []domain.TransferStep{
			{From: alice, To: carol, TokenOwner: wrapper, Value: new(big.Int).Set(value)},
		},
	}}

	engine := newTestEngine(t, Options{
		Pathfinder: pf,
		Classifier: tokeninfo.NewClassifier(rows, nil),
		Encoder:    markerEncoder{},
	})

	matrix, calls, err := engine.TransferWithCalls(context.Background(),
		Request{From: alice, To: carol, Amount: value})
	if err != nil {
		t.Fatalf("TransferWithCalls: %v", err)
	}

	if matrix.TerminalSum().Cmp(value) >= 0 {
		t.Errorf("expected shrunk terminal sum below %s, got %s", value, matrix.TerminalSum())
	}

	// The unwrap call still covers the raw wrapped total.
	found := false
	for _, c := range calls {
		if c.To == wrapper {
			found = true
			if want := fmt.Sprintf("unwrap:%s", value); string(c.Data) != want {
				t.Errorf("expected %s, got %s", want, c.Data)
			}
		}
	}
	if !found {
		t.Error("expected an unwrap call to the wrapper")
	}
}
