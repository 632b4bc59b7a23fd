// Package issuance runs allowlist-gated, exactly-once issuance attempts.
//
// An attempt moves Idle → ProofChecked → LedgerChecked → ResourceCreated →
// RecordWritten → Done, or to Failed from any state. The caller runs each
// attempt inside a collab.Host so a failure leaves no effect.
package issuance

import (
	"context"
	"errors"
	"fmt"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dikanevn/bf/authority"
	"github.com/dikanevn/bf/collab"
	"github.com/dikanevn/bf/derive"
	"github.com/dikanevn/bf/ledger"
	"github.com/dikanevn/bf/rounds"
	"github.com/dikanevn/bf/storage"
)

type State string

const (
	StateIdle            State = "Idle"
	StateProofChecked    State = "ProofChecked"
	StateLedgerChecked   State = "LedgerChecked"
	StateResourceCreated State = "ResourceCreated"
	StateRecordWritten   State = "RecordWritten"
	StateDone            State = "Done"
	StateFailed          State = "Failed"
)

// Invocation carries the accounts a caller supplied and which of them signed.
type Invocation struct {
	Signers []common.PublicKey
	// Claimant is the identity being issued to; it pays for created accounts.
	Claimant  common.PublicKey
	Authority common.PublicKey
	// Mint is the fresh mint account; it must sign.
	Mint          common.PublicKey
	Holding       common.PublicKey
	Record        common.PublicKey
	Metadata      common.PublicKey
	MasterEdition common.PublicKey
	Collection    common.PublicKey
	Recipient     common.PublicKey
	// Master is the master mint an edition is printed from.
	Master common.PublicKey
}

func (inv Invocation) signed(pk common.PublicKey) bool {
	for _, s := range inv.Signers {
		if s == pk {
			return true
		}
	}
	return false
}

// Result describes one attempt. Trace ends in Done or Failed.
type Result struct {
	AttemptID string
	Variant   string
	Round     uint8
	Claimant  common.PublicKey
	Mint      common.PublicKey
	Holding   common.PublicKey
	Record    *derive.Derivation
	Trace     []State
	Kind      Kind
}

func (r *Result) Done() bool {
	return len(r.Trace) > 0 && r.Trace[len(r.Trace)-1] == StateDone
}

func (r *Result) fail(kind Kind) {
	if n := len(r.Trace); n > 0 && r.Trace[n-1] == StateFailed {
		return
	}
	r.Trace = append(r.Trace, StateFailed)
	r.Kind = kind
}

// Config wires a Pipeline to one deployment.
type Config struct {
	Registry  *rounds.Registry
	Authority *authority.Capability
	// Content describes every issued resource.
	Content collab.Content
	// Collection is required by collection variants.
	Collection *common.PublicKey
	// Treasury receives withdrawals.
	Treasury common.PublicKey
	// Operator must sign descriptive record updates. Zero means Treasury.
	Operator common.PublicKey
	// PrintSupply is the max supply of every master edition issued; zero
	// makes issued resources unprintable.
	PrintSupply uint64
	Logger      *zap.Logger
}

type Pipeline struct {
	registry   *rounds.Registry
	auth       *authority.Capability
	deriver    *derive.Deriver
	content    collab.Content
	collection *common.PublicKey
	treasury   common.PublicKey
	operator   common.PublicKey
	supply     uint64
	logger     *zap.Logger
}

func NewPipeline(cfg Config) (*Pipeline, error) {
	if cfg.Registry == nil {
		return nil, errors.New("issuance: nil round registry")
	}
	if cfg.Authority == nil {
		return nil, errors.New("issuance: nil authority")
	}
	p := &Pipeline{
		registry:   cfg.Registry,
		auth:       cfg.Authority,
		deriver:    derive.New(cfg.Authority.Program()),
		content:    cfg.Content,
		collection: cfg.Collection,
		treasury:   cfg.Treasury,
		operator:   cfg.Operator,
		supply:     cfg.PrintSupply,
		logger:     cfg.Logger,
	}
	if p.operator == (common.PublicKey{}) {
		p.operator = cfg.Treasury
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	return p, nil
}

func (p *Pipeline) Program() common.PublicKey { return p.auth.Program() }

func (p *Pipeline) Registry() *rounds.Registry { return p.registry }

func (p *Pipeline) Deriver() *derive.Deriver { return p.deriver }

// Issue runs one attempt of variant v against env. The returned Result is
// non-nil even on failure so the trace can be inspected.
func (p *Pipeline) Issue(ctx context.Context, env collab.Env, v Variant, inv Invocation, claim Claim) (*Result, error) {
	res := &Result{
		AttemptID: uuid.NewString(),
		Variant:   v.Name,
		Round:     claim.Round,
		Claimant:  inv.Claimant,
		Mint:      inv.Mint,
		Trace:     []State{StateIdle},
	}
	log := p.logger.With(
		zap.String("attempt_id", res.AttemptID),
		zap.String("variant", v.Name),
		zap.Uint8("round", claim.Round),
		zap.String("claimant", inv.Claimant.ToBase58()),
	)
	if err := p.issue(ctx, env, v, inv, claim, res, log); err != nil {
		res.fail(KindOf(err))
		log.Debug("state", zap.String("to", string(StateFailed)), zap.String("code", Code(err)))
		return res, err
	}
	return res, nil
}

func (p *Pipeline) enter(res *Result, s State, log *zap.Logger) {
	res.Trace = append(res.Trace, s)
	log.Debug("state", zap.String("to", string(s)))
}

func (p *Pipeline) issue(ctx context.Context, env collab.Env, v Variant, inv Invocation, claim Claim, res *Result, log *zap.Logger) error {
	if err := p.checkAccounts(v, inv, res); err != nil {
		return err
	}

	if v.Gated() {
		position := claim.Position
		if v.Leaf == LeafPositioned && position == nil {
			return newError(KindParse, CodeMalformedData, "positioned variant needs an allowlist position")
		}
		if v.Leaf == LeafIdentity {
			position = nil
		}
		if err := VerifyMembership(p.registry, inv.Claimant, claim.Round, claim.Proof, position); err != nil {
			return err
		}
	}
	p.enter(res, StateProofChecked, log)

	l := ledger.New(env.Store, env.Funds, p.Program(), ledger.WithLogger(log))
	if v.Schema != nil {
		d, err := p.deriver.CheckRecord(*v.Schema, claim.Round, inv.Claimant, inv.Record)
		if err != nil {
			return mapLedgerErr(err)
		}
		exists, err := l.Exists(ctx, d.Address)
		if err != nil {
			return wrapError(KindInternal, CodeInternal, "ledger lookup", err)
		}
		if exists {
			return newError(KindAlreadyIssued, CodeAlreadyIssued, fmt.Sprintf("round %d already issued to %s", claim.Round, inv.Claimant.ToBase58()))
		}
		res.Record = &d
	}
	p.enter(res, StateLedgerChecked, log)

	if err := p.createResource(ctx, env, v, inv, res); err != nil {
		return err
	}
	p.enter(res, StateResourceCreated, log)

	if v.Schema != nil {
		if err := l.Create(ctx, *res.Record, v.Schema.Kind, inv.Claimant); err != nil {
			return mapLedgerErr(err)
		}
		var err error
		switch v.Schema.Kind {
		case derive.KindFlag:
			err = l.WriteFlag(ctx, res.Record.Address)
		default:
			err = l.WriteReference(ctx, res.Record.Address, inv.Mint)
		}
		if err != nil {
			return mapLedgerErr(err)
		}
	}
	p.enter(res, StateRecordWritten, log)

	if v.Collection {
		sig, err := p.auth.Sign()
		if err != nil {
			return wrapError(KindInternal, CodeInternal, "authority signature", err)
		}
		err = env.Metadata.VerifyCollectionMembership(ctx, collab.CollectionParams{
			Mint:       inv.Mint,
			Collection: *p.collection,
			Payer:      inv.Claimant,
		}, sig)
		if err != nil {
			return wrapError(KindCollaboratorFailure, CodeMetadataFailure, "verify collection membership", err)
		}
	}
	p.enter(res, StateDone, log)
	return nil
}

// checkAccounts enforces the Idle preconditions: signers, the authority
// account, and every collaborator account the variant touches.
func (p *Pipeline) checkAccounts(v Variant, inv Invocation, res *Result) error {
	if !inv.signed(inv.Claimant) {
		return newError(KindAuthorizationMissing, CodeMissingSigner, "claimant must sign")
	}
	if !inv.signed(inv.Mint) {
		return newError(KindAuthorizationMissing, CodeMissingSigner, "mint account must sign")
	}
	if err := p.auth.Authorize(inv.Authority); err != nil {
		return wrapError(KindDerivationMismatch, CodeAuthorityAddr, "authority account", err)
	}

	holding, err := derive.Holding(inv.Claimant, inv.Mint)
	if err != nil {
		return wrapError(KindInternal, CodeInternal, "derive holding account", err)
	}
	if err := derive.Check(holding, inv.Holding); err != nil {
		return wrapError(KindDerivationMismatch, CodeHoldingAddress, "holding account", err)
	}
	res.Holding = holding

	if v.Descriptive {
		md, err := derive.Metadata(inv.Mint)
		if err != nil {
			return wrapError(KindInternal, CodeInternal, "derive metadata account", err)
		}
		if err := derive.Check(md, inv.Metadata); err != nil {
			return wrapError(KindDerivationMismatch, CodeMetadataAddress, "metadata account", err)
		}
		ed, err := derive.MasterEdition(inv.Mint)
		if err != nil {
			return wrapError(KindInternal, CodeInternal, "derive master edition account", err)
		}
		if err := derive.Check(ed, inv.MasterEdition); err != nil {
			return wrapError(KindDerivationMismatch, CodeMetadataAddress, "master edition account", err)
		}
	}

	if v.Collection {
		if p.collection == nil {
			return newError(KindInternal, CodeInternal, "no collection configured")
		}
		if err := derive.Check(*p.collection, inv.Collection); err != nil {
			return wrapError(KindDerivationMismatch, CodeCollectionMint, "collection mint", err)
		}
	}
	return nil
}

func (p *Pipeline) createResource(ctx context.Context, env collab.Env, v Variant, inv Invocation, res *Result) error {
	sig, err := p.auth.Sign()
	if err != nil {
		return wrapError(KindInternal, CodeInternal, "authority signature", err)
	}
	authAddr := p.auth.Address()
	if err := p.mintUnit(ctx, env, inv, res.Holding, sig); err != nil {
		return err
	}

	if v.Descriptive {
		maxSupply := p.supply
		params := collab.RecordParams{
			Mint:            inv.Mint,
			Payer:           inv.Claimant,
			UpdateAuthority: authAddr,
			Creator:         &authAddr,
			Content:         p.content,
			MasterEdition:   true,
			MaxSupply:       &maxSupply,
		}
		if v.Collection {
			params.Collection = p.collection
		}
		if err := env.Metadata.CreateRecord(ctx, params, sig); err != nil {
			return wrapError(KindCollaboratorFailure, CodeMetadataFailure, "create descriptive record", err)
		}
	}
	return nil
}

// mintUnit creates inv.Mint under the authority, opens the claimant's
// holding account at want and issues the single unit into it.
func (p *Pipeline) mintUnit(ctx context.Context, env collab.Env, inv Invocation, want common.PublicKey, sig authority.SignatureProof) error {
	authAddr := p.auth.Address()
	err := env.Token.CreateMint(ctx, collab.CreateMintParams{
		Mint:            inv.Mint,
		Payer:           inv.Claimant,
		Decimals:        0,
		MintAuthority:   authAddr,
		FreezeAuthority: &authAddr,
	})
	if err != nil {
		return wrapError(KindCollaboratorFailure, CodeTokenFailure, "create mint", err)
	}
	holding, err := env.Token.CreateHoldingAccount(ctx, collab.HoldingParams{
		Payer: inv.Claimant,
		Owner: inv.Claimant,
		Mint:  inv.Mint,
	})
	if err != nil {
		return wrapError(KindCollaboratorFailure, CodeTokenFailure, "create holding account", err)
	}
	if err := derive.Check(want, holding); err != nil {
		return wrapError(KindCollaboratorFailure, CodeTokenFailure, "holding account", err)
	}
	err = env.Token.MintUnit(ctx, collab.MintUnitParams{Mint: inv.Mint, Holding: holding, Amount: 1}, sig)
	if err != nil {
		return wrapError(KindCollaboratorFailure, CodeTokenFailure, "mint unit", err)
	}
	return nil
}

// mapLedgerErr places ledger and derivation errors in the taxonomy.
func mapLedgerErr(err error) error {
	var e *Error
	switch {
	case errors.As(err, &e):
		return err
	case errors.Is(err, ledger.ErrAlreadyIssued), errors.Is(err, storage.ErrAlreadyAllocated):
		return wrapError(KindAlreadyIssued, CodeAlreadyIssued, "record exists", err)
	case errors.Is(err, ledger.ErrInsufficientCapacity):
		return wrapError(KindInsufficientCapacity, CodeNoCapacity, "record deposit", err)
	case errors.Is(err, ledger.ErrAddressOccupied):
		return wrapError(KindInsufficientCapacity, CodeOccupied, "record address occupied", err)
	case errors.Is(err, derive.ErrDerivationMismatch):
		return wrapError(KindDerivationMismatch, CodeRecordAddress, "record address", err)
	case errors.Is(err, ledger.ErrNotIssued), errors.Is(err, ledger.ErrNotOwned):
		return wrapError(KindNotIssued, CodeNotIssued, "no record", err)
	case errors.Is(err, ledger.ErrNotClaimant):
		return wrapError(KindAuthorizationMissing, CodeNotClaimant, "reclaim beneficiary", err)
	default:
		return wrapError(KindInternal, CodeInternal, "ledger", err)
	}
}
