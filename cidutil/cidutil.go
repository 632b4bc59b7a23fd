// Package cidutil names byte strings by CIDv1 (raw codec, sha2-256 multihash).
//
// Registries, plans and ledger exports are identified this way in logs and
// signed manifests.
package cidutil

import (
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// Sum returns the CIDv1 raw/sha2-256 of data.
func Sum(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// String is Sum rendered as text, or "" if hashing fails.
func String(data []byte) string {
	id, err := Sum(data)
	if err != nil {
		return ""
	}
	return id.String()
}

// Check reports whether want names data.
func Check(want string, data []byte) error {
	id, err := cid.Decode(want)
	if err != nil {
		return fmt.Errorf("cidutil: decode %q: %w", want, err)
	}
	got, err := Sum(data)
	if err != nil {
		return err
	}
	if !id.Equals(got) {
		return fmt.Errorf("cidutil: content is %s, expected %s", got, id)
	}
	return nil
}
