package rewrite

import (
	"fmt"
	"math/big"

	"circles-flow/internal/domain"
)

// EndpointError reports a path without exactly one source and one sink.
type EndpointError struct {
	Sources int
	Sinks   int
}

func (e *EndpointError) Error() string {
	return fmt.Sprintf("could not determine unique source / sink (%d sources, %d sinks)", e.Sources, e.Sinks)
}

// ImbalanceError reports a flow conservation violation at one vertex.
type ImbalanceError struct {
	Vertex domain.Address
	Net    *big.Int
	Role   string // source, sink or intermediate
}

func (e *ImbalanceError) Error() string {
	switch e.Role {
	case "source":
		return fmt.Sprintf("source %s should be net negative, got %s", e.Vertex, e.Net)
	case "sink":
		return fmt.Sprintf("sink %s should be net positive, got %s", e.Vertex, e.Net)
	default:
		return fmt.Sprintf("vertex %s is unbalanced: %s", e.Vertex, e.Net)
	}
}
