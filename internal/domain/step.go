package domain

import (
	"fmt"
	"math/big"
)

// TransferStep is one hop of a payment path: `Value` of TokenOwner's token
// moves from From to To. Steps are immutable once constructed; transforms
// produce new values via the With* helpers.
type TransferStep struct {
	From       Address
	To         Address
	TokenOwner Address
	Value      *big.Int
}

// NewTransferStep validates and normalizes the addresses and copies value.
func NewTransferStep(from, to, tokenOwner string, value *big.Int) (TransferStep, error) {
	f, err := ParseAddress(from)
	if err != nil {
		return TransferStep{}, fmt.Errorf("from: %w", err)
	}
	t, err := ParseAddress(to)
	if err != nil {
		return TransferStep{}, fmt.Errorf("to: %w", err)
	}
	o, err := ParseAddress(tokenOwner)
	if err != nil {
		return TransferStep{}, fmt.Errorf("token owner: %w", err)
	}
	if value == nil || value.Sign() < 0 {
		return TransferStep{}, fmt.Errorf("value must be a non-negative integer, got %v", value)
	}
	return TransferStep{From: f, To: t, TokenOwner: o, Value: new(big.Int).Set(value)}, nil
}

// WithTokenOwner returns a copy of the step with the token owner replaced.
func (s TransferStep) WithTokenOwner(owner Address) TransferStep {
	return TransferStep{From: s.From, To: s.To, TokenOwner: owner, Value: new(big.Int).Set(s.Value)}
}

// WithValue returns a copy of the step with the value replaced.
func (s TransferStep) WithValue(value *big.Int) TransferStep {
	return TransferStep{From: s.From, To: s.To, TokenOwner: s.TokenOwner, Value: new(big.Int).Set(value)}
}

// Path is one pathfinder response, or a rewritten derivative of one.
// MaxFlow is the total amount the path delivers to its sink.
type Path struct {
	MaxFlow *big.Int
	Steps   []TransferStep
}

// NewPath copies maxFlow and steps into a fresh Path.
func NewPath(maxFlow *big.Int, steps []TransferStep) Path {
	p := Path{MaxFlow: new(big.Int), Steps: make([]TransferStep, len(steps))}
	if maxFlow != nil {
		p.MaxFlow.Set(maxFlow)
	}
	for i, s := range steps {
		p.Steps[i] = s.WithValue(s.Value)
	}
	return p
}

// Clone returns a deep copy of the path.
func (p Path) Clone() Path {
	return NewPath(p.MaxFlow, p.Steps)
}
