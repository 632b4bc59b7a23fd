// Package authority provides the program's signing capability. It holds no
// secret: each signature is the authority seed and bump, recomputed on use,
// which the host checks by re-deriving the address.
package authority

import (
	"errors"
	"fmt"

	"github.com/blocto/solana-go-sdk/common"

	"github.com/dikanevn/bf/derive"
)

var (
	ErrAuthorityMismatch = errors.New("authority: supplied authority does not match derived authority")
	ErrNotAuthorized     = errors.New("authority: signature does not authorize account")
)

// SignatureProof is a recomputed proof of knowledge of the authority seeds.
type SignatureProof struct {
	Program common.PublicKey
	Seeds   [][]byte
}

// Signer resolves the address this proof signs for.
func (p SignatureProof) Signer() (common.PublicKey, error) {
	addr, err := common.CreateProgramAddress(p.Seeds, p.Program)
	if err != nil {
		return common.PublicKey{}, fmt.Errorf("authority: invalid signature seeds: %w", err)
	}
	return addr, nil
}

// Authorizes returns nil if the proof signs for account.
func (p SignatureProof) Authorizes(account common.PublicKey) error {
	signer, err := p.Signer()
	if err != nil {
		return err
	}
	if signer != account {
		return fmt.Errorf("%w: signs for %s, need %s", ErrNotAuthorized, signer.ToBase58(), account.ToBase58())
	}
	return nil
}

// Capability is the deployment's single authority signer.
type Capability struct {
	deriver *derive.Deriver
	address common.PublicKey
}

// Derive builds the capability for program. It is total for any program id
// that has an off-curve authority address, which FindProgramAddress guarantees.
func Derive(program common.PublicKey) (*Capability, error) {
	return New(derive.New(program))
}

func New(d *derive.Deriver) (*Capability, error) {
	auth, err := d.Authority()
	if err != nil {
		return nil, err
	}
	return &Capability{deriver: d, address: auth.Address}, nil
}

func (c *Capability) Address() common.PublicKey { return c.address }

func (c *Capability) Program() common.PublicKey { return c.deriver.Program() }

// Sign recomputes the authority derivation and returns its signer seeds.
func (c *Capability) Sign() (SignatureProof, error) {
	auth, err := c.deriver.Authority()
	if err != nil {
		return SignatureProof{}, err
	}
	if auth.Address != c.address {
		return SignatureProof{}, ErrAuthorityMismatch
	}
	return SignatureProof{Program: c.deriver.Program(), Seeds: auth.SignerSeeds()}, nil
}

// Authorize checks a caller-supplied authority account against the derived one.
func (c *Capability) Authorize(supplied common.PublicKey) error {
	if supplied != c.address {
		return fmt.Errorf("%w: expected %s, got %s", ErrAuthorityMismatch, c.address.ToBase58(), supplied.ToBase58())
	}
	return nil
}
