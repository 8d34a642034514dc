package domain

import (
	"bytes"
	"testing"
)

func TestParseAddress(t *testing.T) {
	got, err := ParseAddress("0xC12C1E50ABB450d6205Ea2C3Fa861b3B834d13e8")
	if err != nil {
		t.Fatalf("ParseAddress: %v", err)
	}
	if got != "0xc12c1e50abb450d6205ea2c3fa861b3b834d13e8" {
		t.Errorf("expected lowercase canonical form, got %s", got)
	}
}

func TestParseAddress_Invalid(t *testing.T) {
	cases := []string{
		"",
		"0x",
		"c12c1e50abb450d6205ea2c3fa861b3b834d13e8",    // missing prefix
		"0xc12c1e50abb450d6205ea2c3fa861b3b834d13e",   // too short
		"0xc12c1e50abb450d6205ea2c3fa861b3b834d13e8f", // too long
		"0xg12c1e50abb450d6205ea2c3fa861b3b834d13e8",  // non-hex
		"0x c12c1e50abb450d6205ea2c3fa861b3b834d13e8", // whitespace
	}

	for _, s := range cases {
		if _, err := ParseAddress(s); err == nil {
			t.Errorf("expected error for %q", s)
		}
	}
}

func TestAddress_IsZero(t *testing.T) {
	if !Address("").IsZero() {
		t.Error("empty address should be zero")
	}
	if !Address("0x0000000000000000000000000000000000000000").IsZero() {
		t.Error("all-zero address should be zero")
	}
	if Address("0x0000000000000000000000000000000000000001").IsZero() {
		t.Error("nonzero address reported zero")
	}
}

func TestAddress_Cmp(t *testing.T) {
	low := MustAddress("0x0000000000000000000000000000000000000001")
	high := MustAddress("0x00000000000000000000000000000000000000ff")

	if low.Cmp(high) >= 0 {
		t.Error("expected low < high")
	}
	if high.Cmp(low) <= 0 {
		t.Error("expected high > low")
	}
	if low.Cmp(low) != 0 {
		t.Error("expected equality with itself")
	}
}

func TestAddress_Bytes(t *testing.T) {
	a := MustAddress("0x0000000000000000000000000000000000000102")

	got := a.Bytes()
	if len(got) != 20 {
		t.Fatalf("expected 20 bytes, got %d", len(got))
	}

	want := make([]byte, 20)
	want[18], want[19] = 0x01, 0x02
	if !bytes.Equal(got, want) {
		t.Errorf("expected %x, got %x", want, got)
	}
}
