// Package merkle implements the sorted-pair SHA-256 hash chain used to commit
// to allowlists and to verify membership proofs against those commitments.
//
// Pairs are ordered bytewise before hashing, so a proof carries no left/right
// position bits. Published proofs depend on this exact construction.
package merkle

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	sha256 "github.com/minio/sha256-simd"
)

// HashSize is the width of every node, leaf and root.
const HashSize = 32

// ErrProofLength reports a serialized proof whose length is not a multiple of HashSize.
var ErrProofLength = errors.New("merkle: proof length is not a multiple of 32")

// Hash is a 32-byte digest.
type Hash [HashSize]byte

func (h Hash) String() string { return hex.EncodeToString(h[:]) }

// ParseHash decodes a 64-character hex string.
func ParseHash(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("merkle: decode hash: %w", err)
	}
	if len(b) != HashSize {
		return h, fmt.Errorf("merkle: hash must be %d bytes, got %d", HashSize, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// MustParseHash is like ParseHash but panics on error.
func MustParseHash(s string) Hash {
	h, err := ParseHash(s)
	if err != nil {
		panic(err)
	}
	return h
}

// Combine hashes the pair (min(a,b), max(a,b)). It is commutative.
func Combine(a, b Hash) Hash {
	var buf [2 * HashSize]byte
	if bytes.Compare(a[:], b[:]) <= 0 {
		copy(buf[:HashSize], a[:])
		copy(buf[HashSize:], b[:])
	} else {
		copy(buf[:HashSize], b[:])
		copy(buf[HashSize:], a[:])
	}
	return sha256.Sum256(buf[:])
}

// Leaf returns sha256(identity). There is no leaf domain prefix.
func Leaf(identity [32]byte) Hash {
	return sha256.Sum256(identity[:])
}

// PositionedLeaf returns sha256(identity || le16(position)).
func PositionedLeaf(identity [32]byte, position uint16) Hash {
	var buf [34]byte
	copy(buf[:32], identity[:])
	binary.LittleEndian.PutUint16(buf[32:], position)
	return sha256.Sum256(buf[:])
}

// Proof is an ordered list of sibling hashes, leaf side first.
type Proof []Hash

// ParseProof splits b into 32-byte siblings. An empty input is a valid empty proof.
func ParseProof(b []byte) (Proof, error) {
	if len(b)%HashSize != 0 {
		return nil, ErrProofLength
	}
	out := make(Proof, len(b)/HashSize)
	for i := range out {
		copy(out[i][:], b[i*HashSize:(i+1)*HashSize])
	}
	return out, nil
}

// Bytes serializes the proof as concatenated siblings.
func (p Proof) Bytes() []byte {
	out := make([]byte, 0, len(p)*HashSize)
	for _, h := range p {
		out = append(out, h[:]...)
	}
	return out
}

// Fold combines leaf with every sibling in order and returns the computed root.
func Fold(leaf Hash, proof Proof) Hash {
	computed := leaf
	for _, sibling := range proof {
		computed = Combine(computed, sibling)
	}
	return computed
}

// Verify reports whether proof connects leaf to root. The whole proof is always
// folded before the single comparison.
func Verify(leaf Hash, proof Proof, root Hash) bool {
	return Fold(leaf, proof) == root
}
