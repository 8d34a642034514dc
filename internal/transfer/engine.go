// Package transfer orchestrates the full Circles transfer pipeline:
// pathfinding, wrapper rewriting, flow matrix encoding and transaction
// batch assembly.
package transfer

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"time"

	"circles-flow/internal/domain"
	"circles-flow/internal/flowmatrix"
	"circles-flow/internal/idhash"
	"circles-flow/internal/observability"
	"circles-flow/internal/pathfinder"
	"circles-flow/internal/rewrite"
	"circles-flow/internal/storage"
	"circles-flow/internal/tokeninfo"
)

// sixDecimalStep is 10^12: atto amounts are truncated to six decimal
// places of a whole Circle before pathfinding, matching what wallets
// display and what the pathfinder can reliably route.
var sixDecimalStep = big.NewInt(1_000_000_000_000)

// CallEncoder encodes the contract calls the engine emits.
type CallEncoder interface {
	OperateFlowMatrix(m *domain.FlowMatrix) ([]byte, error)
	SetApprovalForAll(operator domain.Address, approved bool) []byte
	Unwrap(amount *big.Int) ([]byte, error)
}

// ApprovalChecker answers whether the hub may already move the owner's
// tokens on the operator's behalf.
type ApprovalChecker interface {
	IsApprovedForAll(ctx context.Context, owner, operator domain.Address) (bool, error)
}

// denyAllApprovals reports every approval as missing, so the batch
// always carries an explicit approval call. Safe default when no chain
// state is reachable: a redundant approval is a no-op on chain.
type denyAllApprovals struct{}

func (denyAllApprovals) IsApprovedForAll(context.Context, domain.Address, domain.Address) (bool, error) {
	return false, nil
}

// Request describes one transfer to prepare.
type Request struct {
	From   domain.Address
	To     domain.Address
	Amount *big.Int

	// UseWrappedBalances lets the pathfinder route through ERC20
	// wrapper balances.
	UseWrappedBalances bool

	// Constraints optionally restricts token usage along the path.
	Constraints *domain.PathConstraints

	// Data is attached to every stream of the flow matrix and handed to
	// the receiving contract unchanged.
	Data []byte
}

// Options configures an Engine. Pathfinder, Classifier and HubAddress
// are required.
type Options struct {
	Pathfinder pathfinder.Client
	Classifier *tokeninfo.Classifier
	HubAddress domain.Address

	// Encoder produces calldata; required for TransferWithCalls.
	Encoder CallEncoder

	// Approvals gates approval calls. Nil means deny-all: every batch
	// carries an approval call.
	Approvals ApprovalChecker

	// RetainBps overrides the shrink factor. Zero means the default.
	RetainBps int64

	// Records receives one audit row per prepared transfer. Optional;
	// insert failures are logged, never fatal.
	Records storage.TransferRecordStore

	// Verbose enables step-by-step pipeline logging.
	Verbose bool
}

// Engine prepares Circles transfers end to end.
type Engine struct {
	pathfinder pathfinder.Client
	rewriter   *rewrite.Rewriter
	hub        domain.Address
	encoder    CallEncoder
	approvals  ApprovalChecker
	records    storage.TransferRecordStore
	verbose    bool
}

// NewEngine creates an engine from options.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Pathfinder == nil {
		return nil, fmt.Errorf("transfer: pathfinder client is required")
	}
	if opts.Classifier == nil {
		return nil, fmt.Errorf("transfer: token classifier is required")
	}
	if opts.HubAddress == "" {
		return nil, fmt.Errorf("transfer: hub address is required")
	}

	var rewriterOpts []rewrite.Option
	if opts.RetainBps > 0 {
		rewriterOpts = append(rewriterOpts, rewrite.WithRetainBps(opts.RetainBps))
	}

	approvals := opts.Approvals
	if approvals == nil {
		approvals = denyAllApprovals{}
	}

	return &Engine{
		pathfinder: opts.Pathfinder,
		rewriter:   rewrite.NewRewriter(opts.Classifier, rewriterOpts...),
		hub:        opts.HubAddress,
		encoder:    opts.Encoder,
		approvals:  approvals,
		records:    opts.Records,
		verbose:    opts.Verbose,
	}, nil
}

// TruncateToSixDecimals drops everything below 10^-6 of a whole Circle
// from an atto amount.
func TruncateToSixDecimals(v *big.Int) *big.Int {
	out := new(big.Int).Set(v)
	rem := new(big.Int).Mod(out, sixDecimalStep)
	return out.Sub(out, rem)
}

// Transfer runs the pipeline and returns the encoded flow matrix.
func (e *Engine) Transfer(ctx context.Context, req Request) (*domain.FlowMatrix, error) {
	matrix, _, err := e.prepare(ctx, req, false)
	return matrix, err
}

// TransferWithCalls runs the pipeline and returns the flow matrix plus
// the transaction batch executing it: approval calls first, then one
// unwrap call per wrapper in path order, then the hub call.
func (e *Engine) TransferWithCalls(ctx context.Context, req Request) (*domain.FlowMatrix, []domain.Call, error) {
	return e.prepare(ctx, req, true)
}

func (e *Engine) prepare(ctx context.Context, req Request, withCalls bool) (*domain.FlowMatrix, []domain.Call, error) {
	if err := validate(req); err != nil {
		return nil, nil, err
	}
	if withCalls && e.encoder == nil {
		return nil, nil, fmt.Errorf("transfer: call encoder is required for call assembly")
	}

	start := time.Now()
	requested := TruncateToSixDecimals(req.Amount)
	if requested.Sign() == 0 {
		return nil, nil, &ValidationError{Field: "amount",
			Detail: fmt.Sprintf("%s truncates to zero at six decimal precision", req.Amount)}
	}

	if e.verbose {
		log.Printf("[transfer] finding path %s -> %s for %s", req.From, req.To, requested)
	}

	path, err := e.pathfinder.FindPath(ctx, pathfinder.Request{
		From:               req.From,
		To:                 req.To,
		Amount:             requested,
		UseWrappedBalances: req.UseWrappedBalances,
		Constraints:        req.Constraints,
	})
	if err != nil {
		return nil, nil, err
	}

	if e.verbose {
		log.Printf("[transfer] path found: %d steps, max flow %s", len(path.Steps), path.MaxFlow)
	}

	result, err := e.rewriter.Process(ctx, path)
	if err != nil {
		return nil, nil, err
	}

	if e.verbose && result.HadInflationaryWrapper {
		log.Printf("[transfer] inflationary wrapper on path, values shrunk to %s", result.Path.MaxFlow)
	}

	matrix, err := flowmatrix.Encode(req.From, req.To, result.Path.MaxFlow, result.Path.Steps)
	if err != nil {
		return nil, nil, err
	}

	if len(req.Data) > 0 {
		for i := range matrix.Streams {
			matrix.Streams[i].Data = req.Data
		}
	}

	var calls []domain.Call
	if withCalls {
		calls, err = e.assembleCalls(ctx, req.From, result, matrix)
		if err != nil {
			return nil, nil, err
		}
	}

	elapsed := time.Since(start)
	observability.RecordTransferEncoded(len(matrix.Vertices), result.HadInflationaryWrapper, elapsed)
	e.record(ctx, req, requested, result, matrix, elapsed)

	return matrix, calls, nil
}

func (e *Engine) assembleCalls(ctx context.Context, from domain.Address, result *rewrite.Result, matrix *domain.FlowMatrix) ([]domain.Call, error) {
	var calls []domain.Call

	approved, err := e.approvals.IsApprovedForAll(ctx, from, from)
	if err != nil {
		return nil, fmt.Errorf("check approval: %w", err)
	}
	if !approved {
		calls = append(calls, domain.Call{
			To:    e.hub,
			Data:  e.encoder.SetApprovalForAll(from, true),
			Value: new(big.Int),
		})
	}

	// One unwrap per wrapper, in path order, for the raw wrapped total.
	for _, wt := range result.WrappedTotals {
		data, err := e.encoder.Unwrap(wt.Total)
		if err != nil {
			return nil, fmt.Errorf("encode unwrap for %s: %w", wt.Wrapper, err)
		}
		calls = append(calls, domain.Call{
			To:    wt.Wrapper,
			Data:  data,
			Value: new(big.Int),
		})
	}

	hubData, err := e.encoder.OperateFlowMatrix(matrix)
	if err != nil {
		return nil, fmt.Errorf("encode flow matrix call: %w", err)
	}
	calls = append(calls, domain.Call{
		To:    e.hub,
		Data:  hubData,
		Value: new(big.Int),
	})

	return calls, nil
}

func (e *Engine) record(ctx context.Context, req Request, requested *big.Int, result *rewrite.Result, matrix *domain.FlowMatrix, elapsed time.Duration) {
	if e.records == nil {
		return
	}

	now := time.Now().UnixMilli()
	rec := &domain.TransferRecord{
		OperationID: idhash.ComputeOperationID(req.From.String(), req.To.String(), requested.String(), now),
		From:        req.From.String(),
		To:          req.To.String(),
		Requested:   requested.String(),
		Actual:      matrix.TerminalSum().String(),
		Steps:       len(result.Path.Steps),
		Vertices:    len(matrix.Vertices),
		Shrunk:      result.HadInflationaryWrapper,
		DurationMs:  elapsed.Milliseconds(),
		CreatedAt:   now,
	}
	if err := e.records.Insert(ctx, rec); err != nil {
		log.Printf("[transfer] audit record insert failed: %v", err)
	}
}

// MaxTransferableAmount reports the total capacity between two avatars.
func (e *Engine) MaxTransferableAmount(ctx context.Context, from, to domain.Address, constraints *domain.PathConstraints) (*big.Int, error) {
	if from == to {
		return nil, &ValidationError{Field: "to", Detail: "source and destination must differ"}
	}
	return e.pathfinder.FindMaxFlow(ctx, from, to, constraints)
}

func validate(req Request) error {
	if req.From == "" || req.From.IsZero() {
		return &ValidationError{Field: "from", Detail: "missing source address"}
	}
	if req.To == "" || req.To.IsZero() {
		return &ValidationError{Field: "to", Detail: "missing destination address"}
	}
	if req.From == req.To {
		return &ValidationError{Field: "to", Detail: "source and destination must differ"}
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return &ValidationError{Field: "amount", Detail: "amount must be positive"}
	}
	return nil
}

// ValidationError reports a malformed transfer request.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Detail)
}
