package keys

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"
)

// roleDomain separates role seeds from any other use of the root seed.
const roleDomain = "bf-issuer-keys-v1"

// AccountFromSeed returns the signing account for an ed25519 seed.
func AccountFromSeed(seed []byte) (types.Account, error) {
	if len(seed) != ed25519.SeedSize {
		return types.Account{}, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return types.AccountFromBytes(ed25519.NewKeyFromSeed(seed))
}

// AddressFromSeed returns the base58 address of an ed25519 seed.
func AddressFromSeed(seed []byte) (common.PublicKey, error) {
	acct, err := AccountFromSeed(seed)
	if err != nil {
		return common.PublicKey{}, err
	}
	return acct.PublicKey, nil
}

// DeriveRoleSeed derives a role-specific seed from a root seed. The same
// root and role always give the same seed.
func DeriveRoleSeed(rootSeed []byte, role string) ([]byte, error) {
	if len(rootSeed) != ed25519.SeedSize {
		return nil, fmt.Errorf("root seed must be %d bytes", ed25519.SeedSize)
	}
	if err := CheckRole(role); err != nil {
		return nil, err
	}
	h := sha256.New()
	_, _ = h.Write(rootSeed)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(roleDomain))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte("role:" + role))
	return h.Sum(nil)[:ed25519.SeedSize], nil
}
