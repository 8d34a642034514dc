package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeOperationID computes a deterministic operation id using SHA256.
// Formula: SHA256(from|to|amount|started_at_ms)
// Returns hex-encoded hash (64 characters).
func ComputeOperationID(
	from string,
	to string,
	amount string,
	startedAtMs int64,
) string {
	data := fmt.Sprintf("%s|%s|%s|%d",
		from,
		to,
		amount,
		startedAtMs,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
