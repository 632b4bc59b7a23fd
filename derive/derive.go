// Package derive computes program-derived addresses: the single authority
// signer and the per (round, claimant) issuance record locations.
//
// Every derivation is a pure function of the program id and its seeds.
package derive

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/metaplex/token_metadata"
)

// AuthorityTag is the only seed of the authority address.
const AuthorityTag = "mint_authority"

var ErrDerivationMismatch = errors.New("derive: address does not match derivation")

// Derivation is an address together with the seeds and bump that produce it.
// It doubles as the proof of derivation handed to the ledger.
type Derivation struct {
	Address common.PublicKey
	Bump    uint8
	Seeds   [][]byte
}

// SignerSeeds returns the seeds with the bump appended, as used for signing.
func (d Derivation) SignerSeeds() [][]byte {
	out := make([][]byte, 0, len(d.Seeds)+1)
	for _, s := range d.Seeds {
		out = append(out, append([]byte(nil), s...))
	}
	return append(out, []byte{d.Bump})
}

// Verify recomputes the address from the seeds and bump under program.
func (d Derivation) Verify(program common.PublicKey) error {
	got, err := common.CreateProgramAddress(d.SignerSeeds(), program)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDerivationMismatch, err)
	}
	if got != d.Address {
		return fmt.Errorf("%w: seeds give %s, claimed %s", ErrDerivationMismatch, got.ToBase58(), d.Address.ToBase58())
	}
	return nil
}

// Identity returns the trailing 32-byte seed of a record derivation.
func (d Derivation) Identity() (common.PublicKey, bool) {
	if len(d.Seeds) == 0 {
		return common.PublicKey{}, false
	}
	last := d.Seeds[len(d.Seeds)-1]
	if len(last) != 32 {
		return common.PublicKey{}, false
	}
	return common.PublicKeyFromBytes(last), true
}

// Deriver derives addresses under one program id.
type Deriver struct {
	program common.PublicKey
}

func New(program common.PublicKey) *Deriver {
	return &Deriver{program: program}
}

func (d *Deriver) Program() common.PublicKey { return d.program }

func (d *Deriver) find(seeds [][]byte) (Derivation, error) {
	addr, bump, err := common.FindProgramAddress(seeds, d.program)
	if err != nil {
		return Derivation{}, fmt.Errorf("derive: find program address: %w", err)
	}
	return Derivation{Address: addr, Bump: bump, Seeds: seeds}, nil
}

// Authority derives the program's signing authority.
func (d *Deriver) Authority() (Derivation, error) {
	return d.find([][]byte{[]byte(AuthorityTag)})
}

// Record derives where the issuance record for (round, identity) lives under schema.
func (d *Deriver) Record(s Schema, round uint8, identity common.PublicKey) (Derivation, error) {
	if s.Tag == "" {
		return Derivation{}, errors.New("derive: schema has no tag")
	}
	id := identity
	return d.find([][]byte{[]byte(s.Tag), s.roundSeed(round), id[:]})
}

// CheckRecord derives the record address and compares it to supplied.
func (d *Deriver) CheckRecord(s Schema, round uint8, identity, supplied common.PublicKey) (Derivation, error) {
	want, err := d.Record(s, round, identity)
	if err != nil {
		return Derivation{}, err
	}
	if err := Check(want.Address, supplied); err != nil {
		return Derivation{}, err
	}
	return want, nil
}

// Check reports ErrDerivationMismatch when supplied differs from want.
func Check(want, supplied common.PublicKey) error {
	if !bytes.Equal(want[:], supplied[:]) {
		return fmt.Errorf("%w: expected %s, got %s", ErrDerivationMismatch, want.ToBase58(), supplied.ToBase58())
	}
	return nil
}

// Holding is the associated token account of owner for mint.
func Holding(owner, mint common.PublicKey) (common.PublicKey, error) {
	addr, _, err := common.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return common.PublicKey{}, fmt.Errorf("derive: holding account: %w", err)
	}
	return addr, nil
}

// Metadata is the descriptive record address of mint.
func Metadata(mint common.PublicKey) (common.PublicKey, error) {
	addr, err := token_metadata.GetTokenMetaPubkey(mint)
	if err != nil {
		return common.PublicKey{}, fmt.Errorf("derive: metadata account: %w", err)
	}
	return addr, nil
}

// MasterEdition is the edition record address of mint. Printed editions
// live at the same address of their own mint.
func MasterEdition(mint common.PublicKey) (common.PublicKey, error) {
	addr, err := token_metadata.GetMasterEdition(mint)
	if err != nil {
		return common.PublicKey{}, fmt.Errorf("derive: master edition account: %w", err)
	}
	return addr, nil
}

// EditionMark is the marker account that records which edition numbers of
// master have been printed.
func EditionMark(master common.PublicKey, edition uint64) (common.PublicKey, error) {
	addr, err := token_metadata.GetEditionMark(master, edition)
	if err != nil {
		return common.PublicKey{}, fmt.Errorf("derive: edition marker: %w", err)
	}
	return addr, nil
}
