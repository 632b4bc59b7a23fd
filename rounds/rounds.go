// Package rounds holds the per-round allowlist commitments.
//
// A Registry is fixed at construction and never mutated; deployments inject
// it rather than reading a package-level table.
package rounds

import (
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"

	"github.com/dikanevn/bf/cidutil"
	"github.com/dikanevn/bf/merkle"
)

// MaxRounds is the number of ids addressable by the one-byte round field.
const MaxRounds = 256

var (
	ErrInvalidRound = errors.New("rounds: invalid round")
	ErrNoRounds     = errors.New("rounds: registry needs at least one root")
	ErrTooManyRound = errors.New("rounds: more than 256 roots")
)

// Registry maps round id to Merkle root.
type Registry struct {
	roots []merkle.Hash
}

// New copies roots into an immutable registry. Round i commits to roots[i].
func New(roots []merkle.Hash) (*Registry, error) {
	if len(roots) == 0 {
		return nil, ErrNoRounds
	}
	if len(roots) > MaxRounds {
		return nil, ErrTooManyRound
	}
	return &Registry{roots: append([]merkle.Hash(nil), roots...)}, nil
}

// MustNew is like New but panics on error.
func MustNew(roots ...merkle.Hash) *Registry {
	r, err := New(roots)
	if err != nil {
		panic(err)
	}
	return r
}

// RootFor returns the commitment for id, or ErrInvalidRound when id >= Len().
func (r *Registry) RootFor(id uint) (merkle.Hash, error) {
	if r == nil || id >= uint(len(r.roots)) {
		n := 0
		if r != nil {
			n = len(r.roots)
		}
		return merkle.Hash{}, fmt.Errorf("%w: %d (registry has %d)", ErrInvalidRound, id, n)
	}
	return r.roots[id], nil
}

func (r *Registry) Len() int { return len(r.roots) }

// Roots returns a copy of the table.
func (r *Registry) Roots() []merkle.Hash {
	return append([]merkle.Hash(nil), r.roots...)
}

// Bytes is the canonical encoding: roots concatenated in id order.
func (r *Registry) Bytes() []byte {
	out := make([]byte, 0, len(r.roots)*merkle.HashSize)
	for _, h := range r.roots {
		out = append(out, h[:]...)
	}
	return out
}

// Fingerprint identifies the table contents as a CIDv1 (raw, sha2-256).
func (r *Registry) Fingerprint() (cid.Cid, error) {
	return cidutil.Sum(r.Bytes())
}
