package flowmatrix

import (
	"errors"
	"fmt"
	"math/big"
)

// ErrNoSteps is returned when encoding an empty path.
var ErrNoSteps = errors.New("cannot encode a flow matrix without transfer steps")

// VertexLimitError reports a path touching more addresses than uint16
// coordinates can index.
type VertexLimitError struct {
	Count int
}

func (e *VertexLimitError) Error() string {
	return fmt.Sprintf("path touches %d vertices, limit is %d", e.Count, MaxVertices)
}

// EdgeLimitError reports a path with more steps than uint16 edge ids can
// address.
type EdgeLimitError struct {
	Count int
}

func (e *EdgeLimitError) Error() string {
	return fmt.Sprintf("path has %d edges, limit is %d", e.Count, MaxVertices)
}

// AmountOverflowError reports a step value outside the uint192 range.
type AmountOverflowError struct {
	Index  int
	Amount *big.Int
}

func (e *AmountOverflowError) Error() string {
	return fmt.Sprintf("edge %d amount %s does not fit in uint192", e.Index, e.Amount)
}

// SumMismatchError reports terminal edges not summing to the expected
// transfer total.
type SumMismatchError struct {
	Got  *big.Int
	Want *big.Int
}

func (e *SumMismatchError) Error() string {
	return fmt.Sprintf("terminal sum %s does not equal expected %s", e.Got, e.Want)
}
