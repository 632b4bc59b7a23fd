package issuance

import (
	"github.com/blocto/solana-go-sdk/common"

	"github.com/dikanevn/bf/collab"
	"github.com/dikanevn/bf/derive"
)

// Accounts builds the invocation a well-behaved client sends for variant v:
// every derived account filled in, with claimant and mint as signers.
func (p *Pipeline) Accounts(v Variant, round uint8, claimant, mint common.PublicKey) (Invocation, error) {
	inv := Invocation{
		Signers:   []common.PublicKey{claimant, mint},
		Claimant:  claimant,
		Authority: p.auth.Address(),
		Mint:      mint,
		Recipient: p.treasury,
	}
	if p.collection != nil {
		inv.Collection = *p.collection
	}
	var err error
	if inv.Holding, err = derive.Holding(claimant, mint); err != nil {
		return Invocation{}, err
	}
	if v.Descriptive {
		if inv.Metadata, err = derive.Metadata(mint); err != nil {
			return Invocation{}, err
		}
		if inv.MasterEdition, err = derive.MasterEdition(mint); err != nil {
			return Invocation{}, err
		}
	}
	if v.Schema != nil {
		d, err := p.deriver.Record(*v.Schema, round, claimant)
		if err != nil {
			return Invocation{}, err
		}
		inv.Record = d.Address
	}
	return inv, nil
}

// PrintAccounts builds the invocation for printing an edition of master
// into mint for claimant.
func (p *Pipeline) PrintAccounts(master, claimant, mint common.PublicKey) (Invocation, error) {
	inv := Invocation{
		Signers:   []common.PublicKey{claimant, mint},
		Claimant:  claimant,
		Authority: p.auth.Address(),
		Mint:      mint,
		Master:    master,
	}
	var err error
	if inv.Holding, err = derive.Holding(claimant, mint); err != nil {
		return Invocation{}, err
	}
	if inv.Metadata, err = derive.Metadata(mint); err != nil {
		return Invocation{}, err
	}
	if inv.MasterEdition, err = derive.MasterEdition(master); err != nil {
		return Invocation{}, err
	}
	return inv, nil
}

func (p *Pipeline) Authority() common.PublicKey { return p.auth.Address() }

func (p *Pipeline) Treasury() common.PublicKey { return p.treasury }

func (p *Pipeline) Operator() common.PublicKey { return p.operator }

func (p *Pipeline) Collection() *common.PublicKey { return p.collection }

func (p *Pipeline) Content() collab.Content { return p.content }

// PrintSupply is the max supply given to issued master editions.
func (p *Pipeline) PrintSupply() uint64 { return p.supply }
