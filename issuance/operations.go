package issuance

import (
	"context"
	"fmt"

	"github.com/blocto/solana-go-sdk/common"
	"go.uber.org/zap"

	"github.com/dikanevn/bf/collab"
	"github.com/dikanevn/bf/derive"
	"github.com/dikanevn/bf/ledger"
)

// Reclaim closes the claimant's record for (schema, round) and refunds its
// deposit to the claimant. A non-zero inv.Record must match the derivation.
func (p *Pipeline) Reclaim(ctx context.Context, env collab.Env, inv Invocation, req ReclaimRequest) (uint64, error) {
	if !inv.signed(inv.Claimant) {
		return 0, newError(KindAuthorizationMissing, CodeMissingSigner, "claimant must sign")
	}
	d, err := p.deriver.Record(req.Schema, req.Round, inv.Claimant)
	if err != nil {
		return 0, wrapError(KindInternal, CodeInternal, "derive record", err)
	}
	if inv.Record != (common.PublicKey{}) && inv.Record != d.Address {
		return 0, newError(KindDerivationMismatch, CodeRecordAddress,
			fmt.Sprintf("record %s is not %s", inv.Record.ToBase58(), d.Address.ToBase58()))
	}
	refund, err := ledger.New(env.Store, env.Funds, p.Program(), ledger.WithLogger(p.logger)).Reclaim(ctx, d, inv.Claimant)
	if err != nil {
		return 0, mapLedgerErr(err)
	}
	return refund, nil
}

// Withdraw moves amount from the authority's balance to the treasury.
func (p *Pipeline) Withdraw(ctx context.Context, env collab.Env, inv Invocation, req WithdrawRequest) error {
	if err := p.auth.Authorize(inv.Authority); err != nil {
		return wrapError(KindDerivationMismatch, CodeAuthorityAddr, "authority account", err)
	}
	if inv.Recipient != p.treasury {
		return newError(KindDerivationMismatch, CodeTreasuryAddress,
			fmt.Sprintf("recipient %s is not the treasury", inv.Recipient.ToBase58()))
	}
	have, err := env.Funds.Balance(ctx, p.auth.Address())
	if err != nil {
		return wrapError(KindCollaboratorFailure, CodeFundsFailure, "authority balance", err)
	}
	if have < req.Amount {
		return newError(KindInsufficientCapacity, CodeInsufficient,
			fmt.Sprintf("authority holds %d, withdrawal is %d", have, req.Amount))
	}
	sig, err := p.auth.Sign()
	if err != nil {
		return wrapError(KindInternal, CodeInternal, "authority signature", err)
	}
	if err := env.Funds.Transfer(ctx, p.auth.Address(), p.treasury, req.Amount, sig); err != nil {
		return wrapError(KindCollaboratorFailure, CodeFundsFailure, "transfer", err)
	}
	p.logger.Info("authority withdrawal",
		zap.Uint64("amount", req.Amount),
		zap.String("treasury", p.treasury.ToBase58()),
	)
	return nil
}

// UpdateRecord changes the descriptive record of an issued mint. The
// operator must sign.
func (p *Pipeline) UpdateRecord(ctx context.Context, env collab.Env, inv Invocation, req UpdateRequest) error {
	if !inv.signed(p.operator) {
		return newError(KindAuthorizationMissing, CodeMissingSigner, "operator must sign")
	}
	if err := p.auth.Authorize(inv.Authority); err != nil {
		return wrapError(KindDerivationMismatch, CodeAuthorityAddr, "authority account", err)
	}
	sig, err := p.auth.Sign()
	if err != nil {
		return wrapError(KindInternal, CodeInternal, "authority signature", err)
	}
	err = env.Metadata.UpdateRecord(ctx, collab.UpdateParams{
		Mint:               req.Mint,
		Content:            req.Content,
		Creator:            req.Creator,
		NewUpdateAuthority: req.NewUpdateAuthority,
	}, sig)
	if err != nil {
		return wrapError(KindCollaboratorFailure, CodeMetadataFailure, "update descriptive record", err)
	}
	return nil
}

// PrintEdition prints edition req.Edition of inv.Master into the fresh mint
// inv.Mint for the claimant, who must sign and must hold the master. The
// edition mint is created and issued exactly like an issued resource.
func (p *Pipeline) PrintEdition(ctx context.Context, env collab.Env, inv Invocation, req PrintRequest) error {
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
	md, err := derive.Metadata(inv.Mint)
	if err != nil {
		return wrapError(KindInternal, CodeInternal, "derive metadata account", err)
	}
	if err := derive.Check(md, inv.Metadata); err != nil {
		return wrapError(KindDerivationMismatch, CodeMetadataAddress, "metadata account", err)
	}
	masterEdition, err := derive.MasterEdition(inv.Master)
	if err != nil {
		return wrapError(KindInternal, CodeInternal, "derive master edition account", err)
	}
	if err := derive.Check(masterEdition, inv.MasterEdition); err != nil {
		return wrapError(KindDerivationMismatch, CodeMetadataAddress, "master edition account", err)
	}

	sig, err := p.auth.Sign()
	if err != nil {
		return wrapError(KindInternal, CodeInternal, "authority signature", err)
	}
	if err := p.mintUnit(ctx, env, inv, holding, sig); err != nil {
		return err
	}
	err = env.Metadata.PrintEdition(ctx, collab.PrintParams{
		Master:          inv.Master,
		NewMint:         inv.Mint,
		Owner:           inv.Claimant,
		Payer:           inv.Claimant,
		UpdateAuthority: p.auth.Address(),
		Edition:         req.Edition,
	}, sig)
	if err != nil {
		return wrapError(KindCollaboratorFailure, CodeMetadataFailure, "print edition", err)
	}
	p.logger.Info("edition printed",
		zap.String("master", inv.Master.ToBase58()),
		zap.String("mint", inv.Mint.ToBase58()),
		zap.Uint64("edition", req.Edition),
		zap.String("claimant", inv.Claimant.ToBase58()),
	)
	return nil
}
