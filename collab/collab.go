// Package collab defines the subsystems an issuance attempt calls into: the
// token program, the descriptive-record (metadata) program, and lamport funds.
//
// Calls that act for the program carry an authority.SignatureProof. A
// collaborator must check the proof signs for the account it is about to
// change and must treat every other field as opaque.
package collab

import (
	"context"
	"errors"

	"github.com/blocto/solana-go-sdk/common"

	"github.com/dikanevn/bf/authority"
	"github.com/dikanevn/bf/storage"
)

var (
	ErrAccountExists     = errors.New("collab: account already exists")
	ErrAccountMissing    = errors.New("collab: account does not exist")
	ErrInsufficientFunds = errors.New("collab: insufficient funds")
	ErrUnauthorized      = errors.New("collab: signature does not authorize operation")
	ErrInvalidParams     = errors.New("collab: invalid parameters")
	ErrSupplyExhausted   = errors.New("collab: edition number beyond max supply")
	ErrEditionTaken      = errors.New("collab: edition number already printed")
)

// Account sizes charged by the collaborator programs.
const (
	MintAccountSize          = 82
	HoldingAccountSize       = 165
	MetadataAccountSize      = 679
	MasterEditionAccountSize = 282
	EditionAccountSize       = 241
)

// RentExempt is the minimum balance, in lamports, that keeps an account of
// size bytes alive.
func RentExempt(size int) uint64 {
	return uint64(128+size) * 3480 * 2
}

// Content is the descriptive configuration of an issued resource. The engine
// passes it through unchanged.
type Content struct {
	Name         string `yaml:"name" json:"name"`
	Symbol       string `yaml:"symbol" json:"symbol"`
	URI          string `yaml:"uri" json:"uri"`
	SellerFeeBps uint16 `yaml:"seller_fee_bps" json:"sellerFeeBps"`
}

type CreateMintParams struct {
	Mint            common.PublicKey
	Payer           common.PublicKey
	Decimals        uint8
	MintAuthority   common.PublicKey
	FreezeAuthority *common.PublicKey
}

type HoldingParams struct {
	Payer common.PublicKey
	Owner common.PublicKey
	Mint  common.PublicKey
}

type MintUnitParams struct {
	Mint    common.PublicKey
	Holding common.PublicKey
	Amount  uint64
}

// TokenProgram creates mints and holding accounts and issues units.
type TokenProgram interface {
	CreateMint(ctx context.Context, p CreateMintParams) error
	// CreateHoldingAccount returns the associated holding account address.
	CreateHoldingAccount(ctx context.Context, p HoldingParams) (common.PublicKey, error)
	// MintUnit requires sig to sign for the mint's authority.
	MintUnit(ctx context.Context, p MintUnitParams, sig authority.SignatureProof) error
}

type RecordParams struct {
	Mint            common.PublicKey
	Payer           common.PublicKey
	UpdateAuthority common.PublicKey
	Creator         *common.PublicKey
	Content         Content
	Collection      *common.PublicKey
	// MasterEdition also creates the edition record with MaxSupply. A nil
	// MaxSupply allows unlimited prints; zero allows none.
	MasterEdition bool
	MaxSupply     *uint64
}

// PrintParams prints edition number Edition of Master into NewMint. NewMint
// must already hold its single unit, and Owner must hold the master.
type PrintParams struct {
	Master          common.PublicKey
	NewMint         common.PublicKey
	Owner           common.PublicKey
	Payer           common.PublicKey
	UpdateAuthority common.PublicKey
	Edition         uint64
}

type UpdateParams struct {
	Mint               common.PublicKey
	Content            *Content
	Creator            *common.PublicKey
	NewUpdateAuthority *common.PublicKey
}

type CollectionParams struct {
	Mint       common.PublicKey
	Collection common.PublicKey
	Payer      common.PublicKey
}

// MetadataProgram manages descriptive records and collection membership.
type MetadataProgram interface {
	// CreateRecord requires sig to sign for the mint's authority.
	CreateRecord(ctx context.Context, p RecordParams, sig authority.SignatureProof) error
	// UpdateRecord requires sig to sign for the record's update authority.
	UpdateRecord(ctx context.Context, p UpdateParams, sig authority.SignatureProof) error
	// VerifyCollectionMembership requires sig to sign for the collection's
	// update authority.
	VerifyCollectionMembership(ctx context.Context, p CollectionParams, sig authority.SignatureProof) error
	// PrintEdition requires sig to sign for the new mint's authority. Each
	// edition number of a master is printed at most once, and never beyond
	// the master's max supply.
	PrintEdition(ctx context.Context, p PrintParams, sig authority.SignatureProof) error
}

// Funds moves lamports. Debit and Credit act for accounts that signed the
// surrounding transaction; Transfer moves funds out of a program-owned
// account and requires sig to sign for from.
type Funds interface {
	Balance(ctx context.Context, acct common.PublicKey) (uint64, error)
	Debit(ctx context.Context, acct common.PublicKey, amount uint64) error
	Credit(ctx context.Context, acct common.PublicKey, amount uint64) error
	Transfer(ctx context.Context, from, to common.PublicKey, amount uint64, sig authority.SignatureProof) error
}

// Env is the view one attempt has of the host. Everything done through it
// becomes visible together or not at all.
type Env struct {
	Store    storage.Store
	Token    TokenProgram
	Metadata MetadataProgram
	Funds    Funds
}

// Host runs attempts. fn's effects are committed only if it returns nil and
// the host accepts them; otherwise they are discarded.
type Host interface {
	Execute(ctx context.Context, fn func(ctx context.Context, env Env) error) error
}
