package solanaix

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/metaplex/token_metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dikanevn/bf/authority"
	"github.com/dikanevn/bf/collab"
	"github.com/dikanevn/bf/derive"
	"github.com/dikanevn/bf/ledger"
)

var (
	program    = common.PublicKeyFromString("BJZpNCrvPDRdbD3w2GUUWPoiF2Ww17wuY6fLNxsD3pRA")
	alice      = common.PublicKeyFromString("E9kCZevh9Y5piLjkzYuFdMBcr7XU1zdHRdYMnvHFhveH")
	mint       = common.PublicKeyFromString("GDi7rtknaEdvgGrm9qpXbF54ZGZMGezmXLky2VQac2c6")
	collection = common.PublicKeyFromString("HjDkVP7sYuse7UyirbngnjMJD5PgVkPSfcX6dLWbfE4a")
)

func issueAll(c *authority.Capability) func(ctx context.Context, env collab.Env) error {
	return func(ctx context.Context, env collab.Env) error {
		sig, err := c.Sign()
		if err != nil {
			return err
		}
		if err := env.Token.CreateMint(ctx, collab.CreateMintParams{Mint: mint, Payer: alice, MintAuthority: c.Address()}); err != nil {
			return err
		}
		holding, err := env.Token.CreateHoldingAccount(ctx, collab.HoldingParams{Payer: alice, Owner: alice, Mint: mint})
		if err != nil {
			return err
		}
		if err := env.Token.MintUnit(ctx, collab.MintUnitParams{Mint: mint, Holding: holding, Amount: 1}, sig); err != nil {
			return err
		}
		if err := env.Metadata.CreateRecord(ctx, collab.RecordParams{
			Mint: mint, Payer: alice, UpdateAuthority: c.Address(),
			Content:    collab.Content{Name: "Item", Symbol: "IT", URI: "https://example.invalid/1.json", SellerFeeBps: 500},
			Collection: &collection, MasterEdition: true,
		}, sig); err != nil {
			return err
		}
		d, err := derive.New(program).Record(derive.SchemaMinted, 2, alice)
		if err != nil {
			return err
		}
		l := ledger.New(env.Store, env.Funds, program)
		if err := l.Create(ctx, d, derive.KindReference, alice); err != nil {
			return err
		}
		if err := l.WriteReference(ctx, d.Address, mint); err != nil {
			return err
		}
		return env.Metadata.VerifyCollectionMembership(ctx, collab.CollectionParams{Mint: mint, Collection: collection, Payer: alice}, sig)
	}
}

func TestPlannerRecordsIssuance(t *testing.T) {
	c, err := authority.Derive(program)
	require.NoError(t, err)
	p := &Planner{Program: program, Payer: alice}

	require.NoError(t, p.Execute(context.Background(), issueAll(c)))
	plan := p.Last()
	require.NotNil(t, plan)

	assert.Equal(t, []string{
		"system.create_account(mint)",
		"token.initialize_mint",
		"associated_token_account.create",
		"token.mint_to",
		"token_metadata.create_metadata_account_v3",
		"token_metadata.create_master_edition_v3",
		"system.create_account(record)",
		"token_metadata.verify_collection",
	}, plan.Names())

	mintTo := plan.Steps[3]
	assert.Equal(t, common.TokenProgramID, mintTo.Instruction.ProgramID)
	assert.NotEmpty(t, mintTo.SignerSeeds)
	var authSigns bool
	for _, a := range mintTo.Instruction.Accounts {
		if a.PubKey == c.Address() && a.IsSigner {
			authSigns = true
		}
	}
	assert.True(t, authSigns, "authority signs mint_to")

	rec := plan.Steps[6].Instruction
	assert.Equal(t, common.SystemProgramID, rec.ProgramID)

	verify := plan.Steps[7].Instruction
	assert.Equal(t, common.MetaplexTokenMetaProgramID, verify.ProgramID)
	assert.Equal(t, []byte{ixVerifyCollection}, verify.Data)
}

func TestPlanIDIsDeterministic(t *testing.T) {
	c, err := authority.Derive(program)
	require.NoError(t, err)

	a, err := (&Planner{Program: program, Payer: alice}).Build(context.Background(), issueAll(c))
	require.NoError(t, err)
	b, err := (&Planner{Program: program, Payer: alice}).Build(context.Background(), issueAll(c))
	require.NoError(t, err)

	ida, err := a.ID()
	require.NoError(t, err)
	idb, err := b.ID()
	require.NoError(t, err)
	assert.Equal(t, ida, idb)

	other, err := (&Planner{Program: program, Payer: mint}).Build(context.Background(), issueAll(c))
	require.NoError(t, err)
	idc, err := other.ID()
	require.NoError(t, err)
	assert.NotEqual(t, ida, idc)
}

func TestPlannerRespectsBalances(t *testing.T) {
	c, err := authority.Derive(program)
	require.NoError(t, err)
	p := &Planner{Program: program, Payer: alice, Balances: map[common.PublicKey]uint64{alice: 1}}

	err = p.Execute(context.Background(), issueAll(c))
	assert.ErrorIs(t, err, ledger.ErrInsufficientCapacity)
	assert.Nil(t, p.Last())
}

func TestUpdateMetadataEncoding(t *testing.T) {
	auth := alice
	content := collab.Content{Name: "A", Symbol: "B", URI: "C", SellerFeeBps: 0x0102}
	ix, err := updateMetadataAccountV2(mint, auth, collab.UpdateParams{Mint: mint, Content: &content}, nil)
	require.NoError(t, err)

	want := []byte{
		ixUpdateMetadataAccountV2,
		1,          // Some(data)
		1, 0, 0, 0, 'A',
		1, 0, 0, 0, 'B',
		1, 0, 0, 0, 'C',
		0x02, 0x01, // fee, little endian
		0, 0, 0,    // creators, collection, uses
		0,          // new update authority
		0,          // primary sale happened
		0,          // is mutable
	}
	assert.Equal(t, want, ix.Data)
	require.Len(t, ix.Accounts, 2)
	assert.True(t, ix.Accounts[1].IsSigner)
}

func TestTransferNeedsAuthority(t *testing.T) {
	c, err := authority.Derive(program)
	require.NoError(t, err)
	p := &Planner{Program: program, Payer: alice}

	plan, err := p.Build(context.Background(), func(ctx context.Context, env collab.Env) error {
		sig, err := c.Sign()
		if err != nil {
			return err
		}
		if err := env.Funds.Transfer(ctx, alice, mint, 1, sig); err == nil {
			t.Error("expected transfer from a non-authority account to fail")
		}
		return env.Funds.Transfer(ctx, c.Address(), alice, 10, sig)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"system.transfer"}, plan.Names())
}

func TestPlannerPrintsEdition(t *testing.T) {
	c, err := authority.Derive(program)
	require.NoError(t, err)
	edition := common.PublicKeyFromString("7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU")

	printIt := func(n uint64) func(ctx context.Context, env collab.Env) error {
		return func(ctx context.Context, env collab.Env) error {
			sig, err := c.Sign()
			if err != nil {
				return err
			}
			supply := uint64(3)
			if err := env.Metadata.CreateRecord(ctx, collab.RecordParams{
				Mint: mint, Payer: alice, UpdateAuthority: c.Address(), MasterEdition: true, MaxSupply: &supply,
			}, sig); err != nil {
				return err
			}
			return env.Metadata.PrintEdition(ctx, collab.PrintParams{
				Master: mint, NewMint: edition, Owner: alice, Payer: alice, UpdateAuthority: c.Address(), Edition: n,
			}, sig)
		}
	}

	plan, err := (&Planner{Program: program, Payer: alice}).Build(context.Background(), printIt(3))
	require.NoError(t, err)
	names := plan.Names()
	require.NotEmpty(t, names)
	assert.Equal(t, "token_metadata.mint_new_edition_from_master_edition_via_token", names[len(names)-1])

	ix := plan.Steps[len(plan.Steps)-1].Instruction
	assert.Equal(t, common.MetaplexTokenMetaProgramID, ix.ProgramID)
	want := binary.LittleEndian.AppendUint64([]byte{byte(token_metadata.InstructionMintNewEditionFromMasterEditionViaToken)}, 3)
	assert.Equal(t, want, ix.Data)

	mark, err := derive.EditionMark(mint, 3)
	require.NoError(t, err)
	holding, err := derive.Holding(alice, mint)
	require.NoError(t, err)
	assert.Equal(t, mark, ix.Accounts[4].PubKey)
	assert.Equal(t, c.Address(), ix.Accounts[5].PubKey)
	assert.True(t, ix.Accounts[5].IsSigner)
	assert.Equal(t, alice, ix.Accounts[7].PubKey)
	assert.Equal(t, holding, ix.Accounts[8].PubKey)

	_, err = (&Planner{Program: program, Payer: alice}).Build(context.Background(), printIt(4))
	assert.ErrorIs(t, err, collab.ErrSupplyExhausted)
}
