package idhash

import "testing"

func TestComputeOperationID_Deterministic(t *testing.T) {
	id1 := ComputeOperationID("0xaa", "0xbb", "1000", 1700000000000)
	id2 := ComputeOperationID("0xaa", "0xbb", "1000", 1700000000000)

	if id1 != id2 {
		t.Errorf("expected deterministic id, got %s and %s", id1, id2)
	}

	if len(id1) != 64 {
		t.Errorf("expected 64 hex characters, got %d", len(id1))
	}
}

func TestComputeOperationID_Distinct(t *testing.T) {
	base := ComputeOperationID("0xaa", "0xbb", "1000", 1700000000000)

	variants := []string{
		ComputeOperationID("0xac", "0xbb", "1000", 1700000000000),
		ComputeOperationID("0xaa", "0xbc", "1000", 1700000000000),
		ComputeOperationID("0xaa", "0xbb", "1001", 1700000000000),
		ComputeOperationID("0xaa", "0xbb", "1000", 1700000000001),
	}

	for i, v := range variants {
		if v == base {
			t.Errorf("variant %d collides with base id", i)
		}
	}
}
