// Package abi hand-encodes the handful of Solidity calls the transfer
// engine emits. The call surface is three fixed signatures; a full ABI
// compiler dependency would be dead weight against it.
package abi

import (
	"fmt"
	"math/big"

	"golang.org/x/crypto/sha3"

	"circles-flow/internal/domain"
)

const wordSize = 32

// Selector returns the 4-byte function selector for a canonical
// signature, e.g. "transfer(address,uint256)".
func Selector(signature string) [4]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(signature))
	var sel [4]byte
	copy(sel[:], h.Sum(nil)[:4])
	return sel
}

// builder accumulates ABI words.
type builder struct {
	buf []byte
}

func (b *builder) word(w []byte) {
	if len(w) != wordSize {
		panic(fmt.Sprintf("abi: word of length %d", len(w)))
	}
	b.buf = append(b.buf, w...)
}

func (b *builder) uintWord(n uint64) {
	b.word(leftPad(new(big.Int).SetUint64(n).Bytes()))
}

func (b *builder) bigWord(v *big.Int) {
	b.word(leftPad(v.Bytes()))
}

func (b *builder) addressWord(a domain.Address) {
	b.word(leftPad(a.Bytes()))
}

func (b *builder) boolWord(v bool) {
	if v {
		b.uintWord(1)
	} else {
		b.uintWord(0)
	}
}

// bytesTail appends the dynamic encoding of a byte string: length word
// followed by the data right-padded to a word boundary.
func (b *builder) bytesTail(data []byte) {
	b.uintWord(uint64(len(data)))
	b.buf = append(b.buf, rightPad(data)...)
}

func leftPad(data []byte) []byte {
	if len(data) > wordSize {
		panic(fmt.Sprintf("abi: value of %d bytes exceeds one word", len(data)))
	}
	out := make([]byte, wordSize)
	copy(out[wordSize-len(data):], data)
	return out
}

func rightPad(data []byte) []byte {
	rem := len(data) % wordSize
	if rem == 0 {
		return data
	}
	out := make([]byte, len(data)+wordSize-rem)
	copy(out, data)
	return out
}

// paddedLen returns the word-aligned byte length of a dynamic bytes tail.
func paddedLen(n int) int {
	words := (n + wordSize - 1) / wordSize
	return wordSize * (1 + words)
}
