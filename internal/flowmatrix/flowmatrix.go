// Package flowmatrix encodes rewritten transfer paths into the flow
// matrix structure consumed by the Circles hub's operateFlowMatrix.
//
// The hub addresses vertices by their index in a sorted address list and
// edges by their position in the edge list; all coordinates are uint16.
// Encoding is pure: the same path always yields the same matrix.
package flowmatrix

import (
	"encoding/binary"
	"math/big"

	"circles-flow/internal/domain"
)

// MaxVertices is the hard vertex limit imposed by uint16 coordinates.
const MaxVertices = 65536

// maxUint192 bounds edge amounts on the wire.
var maxUint192 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 192), big.NewInt(1))

// PackCoordinates packs uint16 coordinates big-endian, two bytes each,
// with no padding.
func PackCoordinates(coords []uint16) []byte {
	out := make([]byte, 2*len(coords))
	for i, c := range coords {
		binary.BigEndian.PutUint16(out[2*i:], c)
	}
	return out
}

// Vertices builds the sorted vertex list for a set of steps plus the
// overall endpoints, with an index lookup. Vertices are sorted ascending
// by the numeric value of the address.
func Vertices(from, to domain.Address, steps []domain.TransferStep) ([]domain.Address, map[domain.Address]uint16, error) {
	seen := map[domain.Address]bool{from: true, to: true}
	for _, s := range steps {
		seen[s.From] = true
		seen[s.To] = true
		seen[s.TokenOwner] = true
	}

	if len(seen) > MaxVertices {
		return nil, nil, &VertexLimitError{Count: len(seen)}
	}

	vertices := make([]domain.Address, 0, len(seen))
	for addr := range seen {
		vertices = append(vertices, addr)
	}
	sortAddresses(vertices)

	index := make(map[domain.Address]uint16, len(vertices))
	for i, addr := range vertices {
		index[addr] = uint16(i)
	}
	return vertices, index, nil
}

func sortAddresses(addrs []domain.Address) {
	// Insertion sort on the numeric address value. Vertex sets are small;
	// paths rarely touch more than a few dozen addresses.
	for i := 1; i < len(addrs); i++ {
		for j := i; j > 0 && addrs[j].Cmp(addrs[j-1]) < 0; j-- {
			addrs[j], addrs[j-1] = addrs[j-1], addrs[j]
		}
	}
}

// Encode builds the flow matrix for a path delivering expectedTotal from
// one address to another. The terminal edges (those delivering to the
// destination) must sum to exactly expectedTotal.
func Encode(from, to domain.Address, expectedTotal *big.Int, steps []domain.TransferStep) (*domain.FlowMatrix, error) {
	if len(steps) == 0 {
		return nil, ErrNoSteps
	}
	if len(steps) > MaxVertices {
		return nil, &EdgeLimitError{Count: len(steps)}
	}

	vertices, index, err := Vertices(from, to, steps)
	if err != nil {
		return nil, err
	}

	edges := make([]domain.FlowEdge, len(steps))
	for i, s := range steps {
		if s.Value.Sign() < 0 || s.Value.Cmp(maxUint192) > 0 {
			return nil, &AmountOverflowError{Index: i, Amount: s.Value}
		}
		var sinkID uint16
		if s.To == to {
			sinkID = 1
		}
		edges[i] = domain.FlowEdge{
			StreamSinkID: sinkID,
			Amount:       new(big.Int).Set(s.Value),
		}
	}

	// The hub requires at least one terminal edge. If no step delivers
	// to the destination, force the last edge toward it, falling back to
	// the last edge overall.
	hasTerminal := false
	for _, e := range edges {
		if e.StreamSinkID == 1 {
			hasTerminal = true
			break
		}
	}
	if !hasTerminal {
		fallback := len(edges) - 1
		for i, s := range steps {
			if s.To == to {
				fallback = i
			}
		}
		edges[fallback].StreamSinkID = 1
	}

	var termEdgeIDs []uint16
	for i, e := range edges {
		if e.StreamSinkID == 1 {
			termEdgeIDs = append(termEdgeIDs, uint16(i))
		}
	}

	streams := []domain.Stream{{
		SourceCoordinate: index[from],
		FlowEdgeIDs:      termEdgeIDs,
		Data:             []byte{},
	}}

	coords := make([]uint16, 0, 3*len(steps))
	for _, s := range steps {
		coords = append(coords, index[s.TokenOwner], index[s.From], index[s.To])
	}

	matrix := &domain.FlowMatrix{
		Vertices:          vertices,
		Edges:             edges,
		Streams:           streams,
		PackedCoordinates: PackCoordinates(coords),
		SourceCoordinate:  index[from],
	}

	terminalSum := matrix.TerminalSum()
	if terminalSum.Cmp(expectedTotal) != 0 {
		return nil, &SumMismatchError{Got: terminalSum, Want: new(big.Int).Set(expectedTotal)}
	}
	return matrix, nil
}
