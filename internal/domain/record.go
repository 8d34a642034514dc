package domain

// TransferRecord is one audit row for an encoded transfer operation.
// Amounts are decimal strings to survive storage layers without native
// 256-bit integers.
type TransferRecord struct {
	OperationID string // unique id for the transfer operation
	From        string
	To          string
	Requested   string // amount asked of the pathfinder
	Actual      string // terminal total actually encoded
	Steps       int    // surviving steps after rewriting
	Vertices    int    // vertex count of the flow matrix
	Shrunk      bool   // whether value shrinkage was applied
	DurationMs  int64  // end-to-end pipeline duration
	CreatedAt   int64  // record creation timestamp (ms)
}
