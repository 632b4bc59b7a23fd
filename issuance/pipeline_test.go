package issuance

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dikanevn/bf/collab"
	"github.com/dikanevn/bf/derive"
	"github.com/dikanevn/bf/ledger"
	"github.com/dikanevn/bf/merkle"
	"github.com/dikanevn/bf/rounds"
	"github.com/dikanevn/bf/simhost"
	"github.com/dikanevn/bf/storage"
)

var fullTrace = []State{StateIdle, StateProofChecked, StateLedgerChecked, StateResourceCreated, StateRecordWritten, StateDone}

func requireKind(t *testing.T, err error, kind Kind, code string) {
	t.Helper()
	require.Error(t, err)
	var e *Error
	require.True(t, errors.As(err, &e), "not a structured error: %v", err)
	assert.Equal(t, kind, e.Kind, err.Error())
	if code != "" {
		assert.Equal(t, code, e.Code, err.Error())
	}
}

func TestIssueReferenceRecord(t *testing.T) {
	f := newFixture(t)
	v := variant(t, "merkle-mint-ref")
	inv := f.invocation(v, 3, alice)

	res, err := f.issue(v, inv, f.claim(v, 3, alice, 0))
	require.NoError(t, err)
	assert.Equal(t, fullTrace, res.Trace)
	assert.True(t, res.Done())
	assert.NotEmpty(t, res.AttemptID)
	require.NotNil(t, res.Record)
	assert.Equal(t, inv.Record, res.Record.Address)

	rec, err := f.record(inv.Record)
	require.NoError(t, err)
	assert.True(t, rec.Issued)
	require.NotNil(t, rec.Reference)
	assert.Equal(t, inv.Mint, *rec.Reference)
	assert.Equal(t, ledger.Rent(derive.KindReference), rec.Deposit)

	mint, ok := f.host.Mint(inv.Mint)
	require.True(t, ok)
	assert.Equal(t, uint64(1), mint.Supply)
	assert.Equal(t, f.auth.Address(), mint.MintAuthority)
	require.NotNil(t, mint.FreezeAuthority)
	assert.Equal(t, f.auth.Address(), *mint.FreezeAuthority)

	hold, ok := f.host.Holding(inv.Holding)
	require.True(t, ok)
	assert.Equal(t, alice, hold.Owner)
	assert.Equal(t, uint64(1), hold.Amount)

	_, ok = f.host.Record(inv.Mint)
	assert.False(t, ok, "variant is not descriptive")

	want := uint64(funding) - collab.RentExempt(collab.MintAccountSize) - collab.RentExempt(collab.HoldingAccountSize) - ledger.Rent(derive.KindReference)
	assert.Equal(t, want, f.host.Balance(alice))
}

func TestIssueCollectionVariant(t *testing.T) {
	f := newFixture(t)
	v := variant(t, "merkle-mint-collection")
	inv := f.invocation(v, 1, bob)

	res, err := f.issue(v, inv, f.claim(v, 1, bob, 0))
	require.NoError(t, err)
	assert.Equal(t, fullTrace, res.Trace)

	r, ok := f.host.Record(inv.Mint)
	require.True(t, ok)
	assert.Equal(t, content, r.Content)
	assert.Equal(t, f.auth.Address(), r.UpdateAuthority)
	require.NotNil(t, r.Creator)
	assert.Equal(t, f.auth.Address(), *r.Creator)
	require.NotNil(t, r.Collection)
	assert.Equal(t, collection, *r.Collection)
	assert.True(t, r.CollectionVerified)
	assert.True(t, r.MasterEdition)
	require.NotNil(t, r.MaxSupply)
	assert.Zero(t, *r.MaxSupply)
}

func TestIssuePositionedVariant(t *testing.T) {
	f := newFixture(t)
	v := variant(t, "merkle-mint-positioned")

	inv := f.invocation(v, 2, alice)
	_, err := f.issue(v, inv, f.claim(v, 2, alice, 7))
	require.NoError(t, err)

	rec, err := f.record(inv.Record)
	require.NoError(t, err)
	require.NotNil(t, rec.Reference)
	assert.Equal(t, inv.Mint, *rec.Reference)

	// bob's proof at his own position does not carry a different position.
	c := f.claim(v, 2, bob, 8)
	wrong := uint16(9)
	c.Position = &wrong
	res, err := f.issue(v, f.invocation(v, 2, bob), c)
	requireKind(t, err, KindProofInvalid, CodeProofInvalid)
	assert.Equal(t, []State{StateIdle, StateFailed}, res.Trace)

	missing := f.claim(v, 2, carol, 9)
	missing.Position = nil
	_, err = f.issue(v, f.invocation(v, 2, carol), missing)
	requireKind(t, err, KindParse, CodeMalformedData)
}

func TestUngatedVariants(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"mint", "merkle-mint"} {
		t.Run(name, func(t *testing.T) {
			v := variant(t, name)
			inv := f.invocation(v, 0, dave)
			res, err := f.issue(v, inv, f.claim(v, 0, dave, 0))
			require.NoError(t, err)
			assert.Equal(t, fullTrace, res.Trace)
			assert.Nil(t, res.Record)
			_, ok := f.host.Mint(inv.Mint)
			assert.True(t, ok)
		})
	}
}

func TestReplayRejected(t *testing.T) {
	f := newFixture(t)
	v := variant(t, "merkle-mint-ref")

	first := f.invocation(v, 3, alice)
	_, err := f.issue(v, first, f.claim(v, 3, alice, 0))
	require.NoError(t, err)
	balance := f.host.Balance(alice)

	second := f.invocation(v, 3, alice)
	res, err := f.issue(v, second, f.claim(v, 3, alice, 0))
	requireKind(t, err, KindAlreadyIssued, CodeAlreadyIssued)
	assert.Equal(t, []State{StateIdle, StateProofChecked, StateFailed}, res.Trace)

	rec, err := f.record(first.Record)
	require.NoError(t, err)
	assert.Equal(t, first.Mint, *rec.Reference)
	_, ok := f.host.Mint(second.Mint)
	assert.False(t, ok)
	assert.Equal(t, balance, f.host.Balance(alice))
}

func TestIssuanceIndependence(t *testing.T) {
	f := newFixture(t)
	v := variant(t, "merkle-mint-ref")

	_, err := f.issue(v, f.invocation(v, 3, alice), f.claim(v, 3, alice, 0))
	require.NoError(t, err)
	_, err = f.issue(v, f.invocation(v, 0, alice), f.claim(v, 0, alice, 0))
	require.NoError(t, err, "other round for the same claimant")
	_, err = f.issue(v, f.invocation(v, 3, bob), f.claim(v, 3, bob, 0))
	require.NoError(t, err, "other claimant in the same round")

	// Distinct schemas use disjoint record spaces.
	coll := variant(t, "merkle-mint-positioned")
	_, err = f.issue(coll, f.invocation(coll, 2, alice), f.claim(coll, 2, alice, 7))
	require.NoError(t, err)
}

func TestProofRejected(t *testing.T) {
	f := newFixture(t)
	v := variant(t, "merkle-mint-ref")

	// dave is not in round 3; reuse carol's proof.
	c := f.claim(v, 3, carol, 0)
	inv := f.invocation(v, 3, dave)
	res, err := f.issue(v, inv, c)
	requireKind(t, err, KindProofInvalid, CodeProofInvalid)
	assert.Equal(t, []State{StateIdle, StateFailed}, res.Trace)
	assert.Equal(t, KindProofInvalid, res.Kind)

	// A valid proof for round 0 is not valid for round 3.
	c0 := f.claim(v, 0, dave, 0)
	c0.Round = 3
	_, err = f.issue(v, inv, c0)
	requireKind(t, err, KindProofInvalid, CodeProofInvalid)

	// Tampered sibling.
	c = f.claim(v, 3, alice, 0)
	c.Proof[0][0] ^= 0xff
	_, err = f.issue(v, f.invocation(v, 3, alice), c)
	requireKind(t, err, KindProofInvalid, CodeProofInvalid)

	_, ok := f.host.Mint(inv.Mint)
	assert.False(t, ok)
	assert.Equal(t, uint64(funding), f.host.Balance(dave))
}

func TestRoundBounds(t *testing.T) {
	f := newFixture(t)
	v := variant(t, "merkle-mint-ref")
	for _, round := range []uint8{uint8(f.pipeline.Registry().Len()), 200, 255} {
		c := Claim{Round: round, Proof: f.claim(v, 3, alice, 0).Proof}
		_, err := f.issue(v, f.invocation(v, round, alice), c)
		requireKind(t, err, KindInvalidRound, CodeInvalidRound)
	}
	last := uint8(f.pipeline.Registry().Len() - 1)
	_, err := f.issue(v, f.invocation(v, last, bob), f.claim(v, last, bob, 0))
	require.NoError(t, err)
}

func TestSingleLeafRound(t *testing.T) {
	f := newFixture(t)
	v := variant(t, "merkle-mint-ref")

	c := f.claim(v, 4, bob, 0)
	assert.Empty(t, c.Proof)
	_, err := f.issue(v, f.invocation(v, 4, bob), c)
	require.NoError(t, err)

	_, err = f.issue(v, f.invocation(v, 4, alice), Claim{Round: 4})
	requireKind(t, err, KindProofInvalid, CodeProofInvalid)
}

func TestAttemptIsAtomic(t *testing.T) {
	v, _ := VariantByName("merkle-mint-collection")
	ops := []string{
		"token.create_mint",
		"token.create_holding",
		"token.mint_unit",
		"metadata.create_record",
		"funds.debit",
		"store.allocate",
		"store.write",
		"metadata.verify_collection",
		"commit",
	}
	for _, op := range ops {
		t.Run(op, func(t *testing.T) {
			f := newFixture(t)
			inv := f.invocation(v, 3, carol)
			c := f.claim(v, 3, carol, 0)

			f.host.FailNext(op, 1)
			_, err := f.issue(v, inv, c)
			require.Error(t, err)
			assert.ErrorIs(t, err, simhost.ErrInjected)
			assert.Equal(t, 1, f.host.Calls(op))

			_, ok := f.host.Mint(inv.Mint)
			assert.False(t, ok)
			_, ok = f.host.Holding(inv.Holding)
			assert.False(t, ok)
			_, ok = f.host.Record(inv.Mint)
			assert.False(t, ok)
			_, err = f.record(inv.Record)
			assert.ErrorIs(t, err, ledger.ErrNotIssued)
			assert.Equal(t, uint64(funding), f.host.Balance(carol))

			res, err := f.issue(v, inv, c)
			require.NoError(t, err, "retry after %s fault", op)
			assert.True(t, res.Done())
		})
	}
}

func TestCollaboratorFailurePreservesCause(t *testing.T) {
	f := newFixture(t)
	v := variant(t, "merkle-mint-collection")
	f.host.FailNext("metadata.create_record", 1)

	res, err := f.issue(v, f.invocation(v, 0, alice), f.claim(v, 0, alice, 0))
	requireKind(t, err, KindCollaboratorFailure, CodeMetadataFailure)
	assert.ErrorIs(t, err, simhost.ErrInjected)
	assert.Equal(t, []State{StateIdle, StateProofChecked, StateLedgerChecked, StateFailed}, res.Trace)
}

func TestConcurrentSamePair(t *testing.T) {
	f := newFixture(t)
	v := variant(t, "merkle-mint-ref")
	c := f.claim(v, 3, bob, 0)

	const n = 8
	invs := make([]Invocation, n)
	for i := range invs {
		invs[i] = f.invocation(v, 3, bob)
	}
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range invs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.issue(v, invs[i], c)
		}(i)
	}
	wg.Wait()

	var winners int
	var winner common.PublicKey
	for i, err := range errs {
		if err == nil {
			winners++
			winner = invs[i].Mint
			continue
		}
		if !IsKind(err, KindAlreadyIssued) {
			// Losers either see the record or lose the create-once race at commit.
			assert.ErrorIs(t, err, simhost.ErrConflict)
		}
	}
	require.Equal(t, 1, winners)

	rec, err := f.record(invs[0].Record)
	require.NoError(t, err)
	assert.Equal(t, winner, *rec.Reference)
	hold, err := derive.Holding(bob, winner)
	require.NoError(t, err)
	h, ok := f.host.Holding(hold)
	require.True(t, ok)
	assert.Equal(t, uint64(1), h.Amount)
}

func TestAccountChecks(t *testing.T) {
	v, _ := VariantByName("merkle-mint-collection")
	other := newMint()

	cases := []struct {
		name   string
		mutate func(*Invocation)
		kind   Kind
		code   string
	}{
		{"claimant unsigned", func(inv *Invocation) { inv.Signers = inv.Signers[1:] }, KindAuthorizationMissing, CodeMissingSigner},
		{"mint unsigned", func(inv *Invocation) { inv.Signers = inv.Signers[:1] }, KindAuthorizationMissing, CodeMissingSigner},
		{"authority", func(inv *Invocation) { inv.Authority = other }, KindDerivationMismatch, CodeAuthorityAddr},
		{"holding", func(inv *Invocation) { inv.Holding = other }, KindDerivationMismatch, CodeHoldingAddress},
		{"metadata", func(inv *Invocation) { inv.Metadata = other }, KindDerivationMismatch, CodeMetadataAddress},
		{"master edition", func(inv *Invocation) { inv.MasterEdition = other }, KindDerivationMismatch, CodeMetadataAddress},
		{"collection", func(inv *Invocation) { inv.Collection = other }, KindDerivationMismatch, CodeCollectionMint},
		{"record", func(inv *Invocation) { inv.Record = other }, KindDerivationMismatch, CodeRecordAddress},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			inv := f.invocation(v, 3, alice)
			tc.mutate(&inv)
			_, err := f.issue(v, inv, f.claim(v, 3, alice, 0))
			requireKind(t, err, tc.kind, tc.code)
			_, ok := f.host.Mint(inv.Mint)
			assert.False(t, ok)
		})
	}
}

func TestRecordDepositUnaffordable(t *testing.T) {
	f := newFixture(t)
	v := variant(t, "merkle-mint-ref")
	poor := common.PublicKey(merkle.Leaf([32]byte{0x90}))
	f.host.Fund(poor, collab.RentExempt(collab.MintAccountSize)+collab.RentExempt(collab.HoldingAccountSize))

	// poor is in no round; give it a registry of its own.
	p, err := NewPipeline(Config{
		Registry:  rounds.MustNew(identityTree(t, poor).Root()),
		Authority: f.auth,
		Treasury:  treasury,
	})
	require.NoError(t, err)
	f.pipeline = p

	_, err = f.issue(v, f.invocation(v, 0, poor), Claim{Round: 0})
	requireKind(t, err, KindInsufficientCapacity, CodeNoCapacity)
	assert.ErrorIs(t, err, ledger.ErrInsufficientCapacity)
}

func TestOccupiedRecordAddress(t *testing.T) {
	f := newFixture(t)
	v := variant(t, "merkle-mint-ref")
	inv := f.invocation(v, 3, alice)

	err := f.host.Execute(t.Context(), func(ctx context.Context, env collab.Env) error {
		return env.Store.Allocate(ctx, storage.Address(inv.Record), storage.Account{
			Owner: storage.Address(bob),
			Data:  make([]byte, 32),
		})
	})
	require.NoError(t, err)

	_, err = f.issue(v, inv, f.claim(v, 3, alice, 0))
	requireKind(t, err, KindInsufficientCapacity, CodeOccupied)
}

func TestTransitionsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	f := newFixture(t, func(c *Config) { c.Logger = zap.New(core) })
	v := variant(t, "merkle-mint-ref")

	res, err := f.issue(v, f.invocation(v, 3, alice), f.claim(v, 3, alice, 0))
	require.NoError(t, err)

	states := logs.FilterMessage("state").All()
	require.Len(t, states, len(fullTrace)-1)
	for i, entry := range states {
		ctx := entry.ContextMap()
		assert.Equal(t, string(fullTrace[i+1]), ctx["to"])
		assert.Equal(t, res.AttemptID, ctx["attempt_id"])
		assert.Equal(t, "merkle-mint-ref", ctx["variant"])
		assert.Equal(t, alice.ToBase58(), ctx["claimant"])
	}
}
