package flowmatrix

import (
	"encoding/hex"

	"circles-flow/internal/domain"
)

// ABIEdge mirrors the hub's (uint16, uint192) flow edge tuple.
type ABIEdge struct {
	StreamSinkID uint16 `json:"streamSinkId"`
	Amount       string `json:"amount"`
}

// ABIStream mirrors the hub's (uint16, uint16[], bytes) stream tuple.
type ABIStream struct {
	SourceCoordinate uint16   `json:"sourceCoordinate"`
	FlowEdgeIDs      []uint16 `json:"flowEdgeIds"`
	Data             string   `json:"data"`
}

// ABIView is the operateFlowMatrix argument set with bytes fields
// hex-encoded, the shape wallet tooling expects.
type ABIView struct {
	FlowVertices      []string    `json:"_flowVertices"`
	Flow              []ABIEdge   `json:"_flow"`
	Streams           []ABIStream `json:"_streams"`
	PackedCoordinates string      `json:"_packedCoordinates"`
}

// View renders a flow matrix as its ABI argument set.
func View(m *domain.FlowMatrix) ABIView {
	vertices := make([]string, len(m.Vertices))
	for i, v := range m.Vertices {
		vertices[i] = v.String()
	}

	edges := make([]ABIEdge, len(m.Edges))
	for i, e := range m.Edges {
		edges[i] = ABIEdge{
			StreamSinkID: e.StreamSinkID,
			Amount:       e.Amount.String(),
		}
	}

	streams := make([]ABIStream, len(m.Streams))
	for i, s := range m.Streams {
		ids := make([]uint16, len(s.FlowEdgeIDs))
		copy(ids, s.FlowEdgeIDs)
		streams[i] = ABIStream{
			SourceCoordinate: s.SourceCoordinate,
			FlowEdgeIDs:      ids,
			Data:             "0x" + hex.EncodeToString(s.Data),
		}
	}

	return ABIView{
		FlowVertices:      vertices,
		Flow:              edges,
		Streams:           streams,
		PackedCoordinates: "0x" + hex.EncodeToString(m.PackedCoordinates),
	}
}
