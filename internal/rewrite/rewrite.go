// Package rewrite transforms pathfinder results into hub-executable paths.
//
// Pathfinder paths may route through ERC20 wrapper tokens, which the hub
// cannot move directly. Rewriting substitutes each wrapper with its
// backing avatar token and, when inflationary wrappers are involved,
// shrinks every step value by a hair to absorb the dust lost in unit
// conversion during unwrapping.
package rewrite

import (
	"context"
	"math/big"

	"circles-flow/internal/domain"
	"circles-flow/internal/observability"
	"circles-flow/internal/tokeninfo"
)

const (
	// DefaultRetainBps retains 999_999_999_999 parts per 1e12 of every
	// step value, shaving one part per trillion.
	DefaultRetainBps = 999_999_999_999

	retainDenominator = 1_000_000_000_000
)

// Rewriter runs the full rewrite pipeline over pathfinder results.
type Rewriter struct {
	classifier *tokeninfo.Classifier
	retainBps  int64
}

// Option configures Rewriter.
type Option func(*Rewriter)

// WithRetainBps overrides the shrink factor numerator.
func WithRetainBps(bps int64) Option {
	return func(r *Rewriter) {
		r.retainBps = bps
	}
}

// NewRewriter creates a rewriter using the given classifier.
func NewRewriter(classifier *tokeninfo.Classifier, opts ...Option) *Rewriter {
	r := &Rewriter{
		classifier: classifier,
		retainBps:  DefaultRetainBps,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Result is the outcome of rewriting one path.
type Result struct {
	// Path is the rewritten, possibly shrunk path.
	Path *domain.Path

	// HadInflationaryWrapper reports whether any step routed through an
	// inflationary wrapper, which forces value shrinkage.
	HadInflationaryWrapper bool

	// WrappedTotals aggregates step values per wrapper token, in first
	// appearance order. These drive the unwrap calls.
	WrappedTotals []tokeninfo.WrappedTotal

	// UnwrapTargets carries unwrap amounts and expected yields.
	UnwrapTargets []tokeninfo.UnwrapTarget
}

// Process classifies every token in the path, substitutes wrappers with
// their avatars and shrinks values when inflationary wrappers force it.
// The returned path always satisfies flow conservation.
func (r *Rewriter) Process(ctx context.Context, path *domain.Path) (*Result, error) {
	rows, err := r.classifier.ClassifyPath(ctx, path)
	if err != nil {
		observability.RecordRewriteFailure("classify")
		return nil, err
	}

	totals := tokeninfo.WrappedTotals(path, rows)
	targets := r.classifier.ExpectedUnwrapTargets(totals, rows)

	rewritten := ReplaceWrappedTokens(path, targets)

	hadInflationary := false
	for _, wt := range totals {
		if wt.Kind == domain.WrapperInflationary {
			hadInflationary = true
			break
		}
	}

	if hadInflationary {
		rewritten, err = ShrinkValues(rewritten, r.retainBps)
		if err != nil {
			observability.RecordRewriteFailure("shrink")
			return nil, err
		}
	}

	if err := AssertBalanced(rewritten); err != nil {
		observability.RecordRewriteFailure("conservation")
		return nil, err
	}

	return &Result{
		Path:                   rewritten,
		HadInflationaryWrapper: hadInflationary,
		WrappedTotals:          totals,
		UnwrapTargets:          targets,
	}, nil
}

// ReplaceWrappedTokens substitutes each wrapper token owner with its
// backing avatar. Steps, values and ordering are untouched; only the
// token owner column changes.
func ReplaceWrappedTokens(path *domain.Path, targets []tokeninfo.UnwrapTarget) *domain.Path {
	avatars := make(map[domain.Address]domain.Address, len(targets))
	for _, t := range targets {
		avatars[t.Wrapper] = t.Avatar
	}

	steps := make([]domain.TransferStep, len(path.Steps))
	for i, step := range path.Steps {
		if avatar, ok := avatars[step.TokenOwner]; ok {
			steps[i] = step.WithTokenOwner(avatar)
		} else {
			steps[i] = step
		}
	}

	return &domain.Path{
		MaxFlow: new(big.Int).Set(path.MaxFlow),
		Steps:   steps,
	}
}

// ShrinkValues scales every step value by retainBps/1e12, truncating.
// Steps whose value truncates to zero are dropped; the relative order of
// the survivors is preserved. The path's max flow is recomputed as the
// total inflow to the unique sink of the surviving steps.
func ShrinkValues(path *domain.Path, retainBps int64) (*domain.Path, error) {
	factor := big.NewInt(retainBps)
	denom := big.NewInt(retainDenominator)

	steps := make([]domain.TransferStep, 0, len(path.Steps))
	for _, step := range path.Steps {
		scaled := new(big.Int).Mul(step.Value, factor)
		scaled.Quo(scaled, denom)
		if scaled.Sign() == 0 {
			continue
		}
		steps = append(steps, step.WithValue(scaled))
	}

	shrunk := &domain.Path{MaxFlow: new(big.Int), Steps: steps}

	_, sink, err := SourceAndSink(shrunk)
	if err != nil {
		return nil, err
	}
	for _, step := range steps {
		if step.To == sink {
			shrunk.MaxFlow.Add(shrunk.MaxFlow, step.Value)
		}
	}
	return shrunk, nil
}

// SourceAndSink identifies the unique endpoints of a path: the source
// sends but never receives, the sink receives but never sends. Anything
// else is ambiguous and rejected.
func SourceAndSink(path *domain.Path) (domain.Address, domain.Address, error) {
	senders := make(map[domain.Address]bool)
	receivers := make(map[domain.Address]bool)
	for _, step := range path.Steps {
		senders[step.From] = true
		receivers[step.To] = true
	}

	var source, sink domain.Address
	sources, sinks := 0, 0
	for addr := range senders {
		if !receivers[addr] {
			source = addr
			sources++
		}
	}
	for addr := range receivers {
		if !senders[addr] {
			sink = addr
			sinks++
		}
	}

	if sources != 1 || sinks != 1 {
		return "", "", &EndpointError{Sources: sources, Sinks: sinks}
	}
	return source, sink, nil
}

// AssertBalanced verifies flow conservation: the source is strictly net
// negative, the sink strictly net positive and every intermediate vertex
// nets exactly zero.
func AssertBalanced(path *domain.Path) error {
	source, sink, err := SourceAndSink(path)
	if err != nil {
		return err
	}

	net := make(map[domain.Address]*big.Int)
	balance := func(addr domain.Address) *big.Int {
		b, ok := net[addr]
		if !ok {
			b = new(big.Int)
			net[addr] = b
		}
		return b
	}
	for _, step := range path.Steps {
		balance(step.From).Sub(balance(step.From), step.Value)
		balance(step.To).Add(balance(step.To), step.Value)
	}

	for addr, b := range net {
		switch {
		case addr == source:
			if b.Sign() >= 0 {
				return &ImbalanceError{Vertex: addr, Net: b, Role: "source"}
			}
		case addr == sink:
			if b.Sign() <= 0 {
				return &ImbalanceError{Vertex: addr, Net: b, Role: "sink"}
			}
		default:
			if b.Sign() != 0 {
				return &ImbalanceError{Vertex: addr, Net: b, Role: "intermediate"}
			}
		}
	}
	return nil
}
