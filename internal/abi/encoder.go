package abi

import (
	"fmt"
	"math/big"

	"circles-flow/internal/domain"
)

// Canonical signatures of the calls the engine emits.
const (
	sigOperateFlowMatrix = "operateFlowMatrix(address[],(uint16,uint192)[],(uint16,uint16[],bytes)[],bytes)"
	sigSetApprovalForAll = "setApprovalForAll(address,bool)"
	sigUnwrap            = "unwrap(uint256)"
)

var (
	maxUint192 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 192), big.NewInt(1))
	maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

// EncodeSetApprovalForAll encodes an ERC1155 setApprovalForAll call.
func EncodeSetApprovalForAll(operator domain.Address, approved bool) []byte {
	sel := Selector(sigSetApprovalForAll)
	b := &builder{buf: sel[:]}
	b.addressWord(operator)
	b.boolWord(approved)
	return b.buf
}

// EncodeUnwrap encodes a wrapper unwrap call for the given amount.
func EncodeUnwrap(amount *big.Int) ([]byte, error) {
	if amount == nil || amount.Sign() < 0 || amount.Cmp(maxUint256) > 0 {
		return nil, fmt.Errorf("unwrap amount %s does not fit in uint256", amount)
	}
	sel := Selector(sigUnwrap)
	b := &builder{buf: sel[:]}
	b.bigWord(amount)
	return b.buf, nil
}

// EncodeOperateFlowMatrix encodes the hub's operateFlowMatrix call for an
// encoded flow matrix. The trailing bytes argument carries the packed
// coordinates.
func EncodeOperateFlowMatrix(m *domain.FlowMatrix) ([]byte, error) {
	for i, e := range m.Edges {
		if e.Amount.Sign() < 0 || e.Amount.Cmp(maxUint192) > 0 {
			return nil, fmt.Errorf("edge %d amount %s does not fit in uint192", i, e.Amount)
		}
	}

	verticesSize := wordSize * (1 + len(m.Vertices))
	edgesSize := wordSize * (1 + 2*len(m.Edges))
	streamsSize := wordSize * (1 + len(m.Streams))
	for _, s := range m.Streams {
		streamsSize += streamTupleSize(s)
	}

	sel := Selector(sigOperateFlowMatrix)
	b := &builder{buf: sel[:]}

	// Head: offsets of the four dynamic arguments.
	offVertices := 4 * wordSize
	offEdges := offVertices + verticesSize
	offStreams := offEdges + edgesSize
	offPacked := offStreams + streamsSize
	b.uintWord(uint64(offVertices))
	b.uintWord(uint64(offEdges))
	b.uintWord(uint64(offStreams))
	b.uintWord(uint64(offPacked))

	// address[] _flowVertices
	b.uintWord(uint64(len(m.Vertices)))
	for _, v := range m.Vertices {
		b.addressWord(v)
	}

	// (uint16,uint192)[] _flow: static tuples, two words each.
	b.uintWord(uint64(len(m.Edges)))
	for _, e := range m.Edges {
		b.uintWord(uint64(e.StreamSinkID))
		b.bigWord(e.Amount)
	}

	// (uint16,uint16[],bytes)[] _streams: dynamic tuples behind offsets
	// relative to the start of the array's data area.
	b.uintWord(uint64(len(m.Streams)))
	offset := wordSize * len(m.Streams)
	for _, s := range m.Streams {
		b.uintWord(uint64(offset))
		offset += streamTupleSize(s)
	}
	for _, s := range m.Streams {
		encodeStreamTuple(b, s)
	}

	// bytes _packedCoordinates
	b.bytesTail(m.PackedCoordinates)

	return b.buf, nil
}

func streamTupleSize(s domain.Stream) int {
	head := 3 * wordSize
	ids := wordSize * (1 + len(s.FlowEdgeIDs))
	return head + ids + paddedLen(len(s.Data))
}

func encodeStreamTuple(b *builder, s domain.Stream) {
	idsOffset := 3 * wordSize
	dataOffset := idsOffset + wordSize*(1+len(s.FlowEdgeIDs))

	b.uintWord(uint64(s.SourceCoordinate))
	b.uintWord(uint64(idsOffset))
	b.uintWord(uint64(dataOffset))

	b.uintWord(uint64(len(s.FlowEdgeIDs)))
	for _, id := range s.FlowEdgeIDs {
		b.uintWord(uint64(id))
	}

	b.bytesTail(s.Data)
}

// Encoder encodes hub and wrapper calldata.
type Encoder struct{}

// OperateFlowMatrix encodes the hub flow execution call.
func (Encoder) OperateFlowMatrix(m *domain.FlowMatrix) ([]byte, error) {
	return EncodeOperateFlowMatrix(m)
}

// SetApprovalForAll encodes an operator approval call.
func (Encoder) SetApprovalForAll(operator domain.Address, approved bool) []byte {
	return EncodeSetApprovalForAll(operator, approved)
}

// Unwrap encodes a wrapper unwrap call.
func (Encoder) Unwrap(amount *big.Int) ([]byte, error) {
	return EncodeUnwrap(amount)
}
