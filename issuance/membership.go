package issuance

import (
	"fmt"

	"github.com/blocto/solana-go-sdk/common"

	"github.com/dikanevn/bf/merkle"
	"github.com/dikanevn/bf/rounds"
)

// LeafFor forms the allowlist leaf of identity. A nil position gives the
// identity leaf.
func LeafFor(identity common.PublicKey, position *uint16) merkle.Hash {
	if position != nil {
		return merkle.PositionedLeaf(identity, *position)
	}
	return merkle.Leaf(identity)
}

// VerifyMembership checks that identity is committed to round's root.
func VerifyMembership(reg *rounds.Registry, identity common.PublicKey, round uint8, proof merkle.Proof, position *uint16) error {
	root, err := reg.RootFor(uint(round))
	if err != nil {
		return wrapError(KindInvalidRound, CodeInvalidRound, fmt.Sprintf("round %d", round), err)
	}
	if !merkle.Verify(LeafFor(identity, position), proof, root) {
		return newError(KindProofInvalid, CodeProofInvalid, fmt.Sprintf("%s is not in round %d", identity.ToBase58(), round))
	}
	return nil
}
