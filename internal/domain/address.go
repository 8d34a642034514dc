package domain

import (
	"fmt"
	"math/big"
	"strings"
)

// Address is a lowercase 0x-prefixed 20-byte hex address.
// The zero value "" is not a valid address.
type Address string

// AddressLen is the text length of a well-formed address ("0x" + 40 hex digits).
const AddressLen = 42

// ParseAddress validates s and returns its canonical lowercase form.
func ParseAddress(s string) (Address, error) {
	if len(s) != AddressLen || s[0] != '0' || (s[1] != 'x' && s[1] != 'X') {
		return "", fmt.Errorf("invalid address %q: want 0x + 40 hex digits", s)
	}
	for i := 2; i < AddressLen; i++ {
		c := s[i]
		ok := (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
		if !ok {
			return "", fmt.Errorf("invalid address %q: non-hex character %q at position %d", s, c, i)
		}
	}
	return Address(strings.ToLower(s)), nil
}

// MustAddress parses s and panics on failure. For fixtures and constants.
func MustAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) String() string { return string(a) }

// IsZero reports whether a is empty or the all-zero address.
func (a Address) IsZero() bool {
	return a == "" || a == "0x0000000000000000000000000000000000000000"
}

// Big returns the numeric value of the address. Flow-matrix vertices are
// ordered by this value, ascending.
func (a Address) Big() *big.Int {
	v, _ := new(big.Int).SetString(strings.TrimPrefix(string(a), "0x"), 16)
	if v == nil {
		return new(big.Int)
	}
	return v
}

// Cmp compares two addresses by numeric value.
func (a Address) Cmp(b Address) int {
	return a.Big().Cmp(b.Big())
}

// Bytes returns the 20-byte binary form of the address.
func (a Address) Bytes() []byte {
	out := make([]byte, 20)
	copy(out[20-len(a.Big().Bytes()):], a.Big().Bytes())
	return out
}
