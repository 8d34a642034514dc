package domain

import "math/big"

// Call is one transaction in an assembled batch: calldata for To with an
// optional native value. Batches are ordered; earlier calls establish the
// on-chain preconditions of later ones.
type Call struct {
	To    Address
	Data  []byte
	Value *big.Int
}

// NewCall builds a zero-value call.
func NewCall(to Address, data []byte) Call {
	return Call{To: to, Data: data, Value: new(big.Int)}
}
