package solanaix

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/associated_token_account"
	"github.com/blocto/solana-go-sdk/program/metaplex/token_metadata"
	"github.com/blocto/solana-go-sdk/program/system"
	"github.com/blocto/solana-go-sdk/program/token"

	"github.com/dikanevn/bf/authority"
	"github.com/dikanevn/bf/collab"
	"github.com/dikanevn/bf/derive"
	"github.com/dikanevn/bf/storage"
	"github.com/dikanevn/bf/storage/memstore"
)

// Planner is a collab.Host that records instructions instead of executing
// them. Ledger reads go to Base, so a plan reflects the records Base holds.
type Planner struct {
	Program common.PublicKey
	Payer   common.PublicKey
	// Base is read for existing ledger records; nil means an empty ledger.
	Base storage.Store
	// Balances answers Funds.Balance; accounts not listed are treated as
	// unlimited.
	Balances map[common.PublicKey]uint64

	mu   sync.Mutex
	last *Plan
}

var _ collab.Host = (*Planner)(nil)

// Execute plans fn; the result is available from Last.
func (p *Planner) Execute(ctx context.Context, fn func(ctx context.Context, env collab.Env) error) error {
	plan, err := p.Build(ctx, fn)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.last = plan
	p.mu.Unlock()
	return nil
}

// Last is the most recent successful plan.
func (p *Planner) Last() *Plan {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Build runs fn against a recording environment and returns the plan.
func (p *Planner) Build(ctx context.Context, fn func(ctx context.Context, env collab.Env) error) (*Plan, error) {
	base := p.Base
	if base == nil {
		base = memstore.New()
	}
	r := &recorder{
		planner:  p,
		plan:     &Plan{Program: p.Program, FeePayer: p.Payer},
		batch:    storage.NewBatch(base),
		records:  map[common.PublicKey]collab.RecordParams{},
		balances: map[common.PublicKey]int64{},
	}
	env := collab.Env{Store: r.store(), Token: r, Metadata: r, Funds: r}
	if err := fn(ctx, env); err != nil {
		return nil, err
	}
	return r.plan, nil
}

type recorder struct {
	planner *Planner
	plan    *Plan
	batch   *storage.Batch
	// records remembers descriptive records planned in this attempt.
	records  map[common.PublicKey]collab.RecordParams
	balances map[common.PublicKey]int64
}

var (
	_ collab.TokenProgram    = (*recorder)(nil)
	_ collab.MetadataProgram = (*recorder)(nil)
	_ collab.Funds           = (*recorder)(nil)
)

func signer(sig authority.SignatureProof) (common.PublicKey, error) {
	addr, err := sig.Signer()
	if err != nil {
		return common.PublicKey{}, fmt.Errorf("%w: %v", collab.ErrUnauthorized, err)
	}
	return addr, nil
}

func (r *recorder) CreateMint(_ context.Context, p collab.CreateMintParams) error {
	r.plan.add("system.create_account(mint)", system.CreateAccount(system.CreateAccountParam{
		From:     p.Payer,
		New:      p.Mint,
		Owner:    common.TokenProgramID,
		Lamports: collab.RentExempt(collab.MintAccountSize),
		Space:    token.MintAccountSize,
	}), nil)
	r.plan.add("token.initialize_mint", token.InitializeMint(token.InitializeMintParam{
		Decimals:   p.Decimals,
		Mint:       p.Mint,
		MintAuth:   p.MintAuthority,
		FreezeAuth: p.FreezeAuthority,
	}), nil)
	return nil
}

func (r *recorder) CreateHoldingAccount(_ context.Context, p collab.HoldingParams) (common.PublicKey, error) {
	ata, err := derive.Holding(p.Owner, p.Mint)
	if err != nil {
		return common.PublicKey{}, err
	}
	r.plan.add("associated_token_account.create", associated_token_account.CreateAssociatedTokenAccount(
		associated_token_account.CreateAssociatedTokenAccountParam{
			Funder:                 p.Payer,
			Owner:                  p.Owner,
			Mint:                   p.Mint,
			AssociatedTokenAccount: ata,
		},
	), nil)
	return ata, nil
}

func (r *recorder) MintUnit(_ context.Context, p collab.MintUnitParams, sig authority.SignatureProof) error {
	auth, err := signer(sig)
	if err != nil {
		return err
	}
	r.plan.add("token.mint_to", token.MintTo(token.MintToParam{
		Mint:   p.Mint,
		To:     p.Holding,
		Auth:   auth,
		Amount: p.Amount,
	}), sig.Seeds)
	return nil
}

func (r *recorder) CreateRecord(_ context.Context, p collab.RecordParams, sig authority.SignatureProof) error {
	auth, err := signer(sig)
	if err != nil {
		return err
	}
	metadata, err := derive.Metadata(p.Mint)
	if err != nil {
		return err
	}
	data := token_metadata.DataV2{
		Name:                 p.Content.Name,
		Symbol:               p.Content.Symbol,
		Uri:                  p.Content.URI,
		SellerFeeBasisPoints: p.Content.SellerFeeBps,
	}
	if p.Creator != nil {
		data.Creators = &[]token_metadata.Creator{{Address: *p.Creator, Verified: *p.Creator == auth, Share: 100}}
	}
	if p.Collection != nil {
		data.Collection = &token_metadata.Collection{Verified: false, Key: *p.Collection}
	}
	r.plan.add("token_metadata.create_metadata_account_v3", token_metadata.CreateMetadataAccountV3(
		token_metadata.CreateMetadataAccountV3Param{
			Metadata:                metadata,
			Mint:                    p.Mint,
			MintAuthority:           auth,
			UpdateAuthority:         p.UpdateAuthority,
			Payer:                   p.Payer,
			UpdateAuthorityIsSigner: p.UpdateAuthority == auth,
			IsMutable:               true,
			Data:                    data,
		},
	), sig.Seeds)

	if p.MasterEdition {
		edition, err := derive.MasterEdition(p.Mint)
		if err != nil {
			return err
		}
		r.plan.add("token_metadata.create_master_edition_v3", token_metadata.CreateMasterEditionV3(
			token_metadata.CreateMasterEditionParam{
				Edition:         edition,
				Mint:            p.Mint,
				UpdateAuthority: p.UpdateAuthority,
				MintAuthority:   auth,
				Metadata:        metadata,
				Payer:           p.Payer,
				MaxSupply:       p.MaxSupply,
			},
		), sig.Seeds)
	}
	r.records[p.Mint] = p
	return nil
}

func (r *recorder) UpdateRecord(_ context.Context, p collab.UpdateParams, sig authority.SignatureProof) error {
	auth, err := signer(sig)
	if err != nil {
		return err
	}
	metadata, err := derive.Metadata(p.Mint)
	if err != nil {
		return err
	}
	var collection *common.PublicKey
	if prev, ok := r.records[p.Mint]; ok {
		collection = prev.Collection
	}
	ix, err := updateMetadataAccountV2(metadata, auth, p, collection)
	if err != nil {
		return err
	}
	r.plan.add("token_metadata.update_metadata_account_v2", ix, sig.Seeds)
	return nil
}

func (r *recorder) VerifyCollectionMembership(_ context.Context, p collab.CollectionParams, sig authority.SignatureProof) error {
	auth, err := signer(sig)
	if err != nil {
		return err
	}
	metadata, err := derive.Metadata(p.Mint)
	if err != nil {
		return err
	}
	collMeta, err := derive.Metadata(p.Collection)
	if err != nil {
		return err
	}
	collEdition, err := derive.MasterEdition(p.Collection)
	if err != nil {
		return err
	}
	r.plan.add("token_metadata.verify_collection",
		verifyCollection(metadata, auth, p.Payer, p.Collection, collMeta, collEdition), sig.Seeds)
	return nil
}

func (r *recorder) PrintEdition(_ context.Context, p collab.PrintParams, sig authority.SignatureProof) error {
	auth, err := signer(sig)
	if err != nil {
		return err
	}
	if p.Edition == 0 {
		return fmt.Errorf("%w: edition numbers start at 1", collab.ErrSupplyExhausted)
	}
	if prev, ok := r.records[p.Master]; ok && prev.MaxSupply != nil && p.Edition > *prev.MaxSupply {
		return fmt.Errorf("%w: edition %d, max supply %d", collab.ErrSupplyExhausted, p.Edition, *prev.MaxSupply)
	}
	newMetadata, err := derive.Metadata(p.NewMint)
	if err != nil {
		return err
	}
	newEdition, err := derive.MasterEdition(p.NewMint)
	if err != nil {
		return err
	}
	masterMetadata, err := derive.Metadata(p.Master)
	if err != nil {
		return err
	}
	masterEdition, err := derive.MasterEdition(p.Master)
	if err != nil {
		return err
	}
	mark, err := derive.EditionMark(p.Master, p.Edition)
	if err != nil {
		return err
	}
	holding, err := derive.Holding(p.Owner, p.Master)
	if err != nil {
		return err
	}
	r.plan.add("token_metadata.mint_new_edition_from_master_edition_via_token",
		token_metadata.MintNewEditionFromMasterEditionViaToken(token_metadata.MintNewEditionFromMasterEditionViaTokeParam{
			NewMetaData:                newMetadata,
			NewEdition:                 newEdition,
			MasterEdition:              masterEdition,
			NewMint:                    p.NewMint,
			EditionMark:                mark,
			NewMintAuthority:           auth,
			Payer:                      p.Payer,
			TokenAccountOwner:          p.Owner,
			TokenAccount:               holding,
			NewMetadataUpdateAuthority: p.UpdateAuthority,
			MasterMetadata:             masterMetadata,
			Edition:                    p.Edition,
		}), sig.Seeds)
	return nil
}

func (r *recorder) Balance(_ context.Context, acct common.PublicKey) (uint64, error) {
	have, ok := r.planner.Balances[acct]
	if !ok {
		return math.MaxUint64, nil
	}
	d := r.balances[acct]
	if d < 0 && uint64(-d) > have {
		return 0, nil
	}
	return uint64(int64(have) + d), nil
}

// Debit and Credit only track balances; the lamports move inside the
// instruction that needs them.
func (r *recorder) Debit(ctx context.Context, acct common.PublicKey, amount uint64) error {
	if amount > math.MaxInt64 {
		return fmt.Errorf("%w: amount %d out of range", collab.ErrInvalidParams, amount)
	}
	have, _ := r.Balance(ctx, acct)
	if have < amount {
		return fmt.Errorf("%w: %s has %d, needs %d", collab.ErrInsufficientFunds, acct.ToBase58(), have, amount)
	}
	r.balances[acct] -= int64(amount)
	return nil
}

func (r *recorder) Credit(_ context.Context, acct common.PublicKey, amount uint64) error {
	if amount > math.MaxInt64 {
		return fmt.Errorf("%w: amount %d out of range", collab.ErrInvalidParams, amount)
	}
	r.balances[acct] += int64(amount)
	return nil
}

func (r *recorder) Transfer(ctx context.Context, from, to common.PublicKey, amount uint64, sig authority.SignatureProof) error {
	if err := sig.Authorizes(from); err != nil {
		return fmt.Errorf("%w: %v", collab.ErrUnauthorized, err)
	}
	if err := r.Debit(ctx, from, amount); err != nil {
		return err
	}
	r.balances[to] += int64(amount)
	r.plan.add("system.transfer", system.Transfer(system.TransferParam{
		From:   from,
		To:     to,
		Amount: amount,
	}), sig.Seeds)
	return nil
}

// store records a system CreateAccount for every ledger allocation.
func (r *recorder) store() storage.Store {
	return &recordingStore{Batch: r.batch, r: r}
}

type recordingStore struct {
	*storage.Batch
	r *recorder
}

func (s *recordingStore) Allocate(ctx context.Context, addr storage.Address, acct storage.Account) error {
	if err := s.Batch.Allocate(ctx, addr, acct); err != nil {
		return err
	}
	s.r.plan.add("system.create_account(record)", system.CreateAccount(system.CreateAccountParam{
		From:     s.r.planner.Payer,
		New:      common.PublicKey(addr),
		Owner:    common.PublicKey(acct.Owner),
		Lamports: acct.Deposit,
		Space:    uint64(len(acct.Data)),
	}), nil)
	return nil
}
