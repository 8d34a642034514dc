package domain

import "math/big"

// FlowEdge is one edge of an encoded flow matrix. StreamSinkID 1 marks a
// terminal edge (delivering to the overall sink), 0 an intermediate edge.
// The edge's position in the matrix edge list is its identity: packed
// coordinates and stream edge ids refer to edges positionally.
type FlowEdge struct {
	StreamSinkID uint16
	Amount       *big.Int // must fit in 192 bits on the wire
}

// Stream is a named flow from one source coordinate to a set of terminal
// edges. Data is an opaque payload handed to the hub call unchanged.
type Stream struct {
	SourceCoordinate uint16
	FlowEdgeIDs      []uint16
	Data             []byte
}

// FlowMatrix is the encoder's terminal artifact: the exact structure the
// Circles hub consumes to execute a multi-hop transfer in one call.
type FlowMatrix struct {
	Vertices          []Address // sorted ascending by numeric address value
	Edges             []FlowEdge
	Streams           []Stream
	PackedCoordinates []byte // big-endian uint16 triples, see flowmatrix.PackCoordinates
	SourceCoordinate  uint16 // index of the transfer source in Vertices
}

// TerminalSum sums the amounts of all terminal edges.
func (m *FlowMatrix) TerminalSum() *big.Int {
	sum := new(big.Int)
	for _, e := range m.Edges {
		if e.StreamSinkID == 1 {
			sum.Add(sum, e.Amount)
		}
	}
	return sum
}
