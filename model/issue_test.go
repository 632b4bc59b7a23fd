package model

import (
	"context"
	"errors"
	"testing"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dikanevn/bf/authority"
	"github.com/dikanevn/bf/derive"
	"github.com/dikanevn/bf/issuance"
	"github.com/dikanevn/bf/ledger"
	"github.com/dikanevn/bf/merkle"
	"github.com/dikanevn/bf/rounds"
	"github.com/dikanevn/bf/simhost"
)

var (
	program = common.PublicKeyFromString("BJZpNCrvPDRdbD3w2GUUWPoiF2Ww17wuY6fLNxsD3pRA")
	alice   = common.PublicKeyFromString("E9kCZevh9Y5piLjkzYuFdMBcr7XU1zdHRdYMnvHFhveH")
	bob     = common.PublicKeyFromString("GDi7rtknaEdvgGrm9qpXbF54ZGZMGezmXLky2VQac2c6")
)

func setup(t *testing.T) (*issuance.Dispatcher, *simhost.Host, *merkle.Tree) {
	t.Helper()
	tree, err := merkle.FromIdentities([][32]byte{alice, bob})
	require.NoError(t, err)
	auth, err := authority.Derive(program)
	require.NoError(t, err)
	p, err := issuance.NewPipeline(issuance.Config{
		Registry:  rounds.MustNew(tree.Root()),
		Authority: auth,
	})
	require.NoError(t, err)
	h := simhost.New()
	h.Fund(alice, 50_000_000)
	return issuance.NewDispatcher(p, h), h, tree
}

func proofHex(t *testing.T, tree *merkle.Tree, id common.PublicKey) []string {
	t.Helper()
	proof, err := tree.Proof(merkle.Leaf(id))
	require.NoError(t, err)
	out := make([]string, len(proof))
	for i, h := range proof {
		out[i] = h.String()
	}
	return out
}

func TestIssueAndReadRecord(t *testing.T) {
	ctx := context.Background()
	d, h, tree := setup(t)
	mint := types.NewAccount().PublicKey

	req := IssueRequest{
		Variant:  "merkle-mint-ref",
		Claimant: alice.ToBase58(),
		Mint:     mint.ToBase58(),
		Proof:    proofHex(t, tree, alice),
	}
	rc, err := Issue(ctx, d, req)
	require.NoError(t, err)
	assert.True(t, rc.Committed)
	assert.Nil(t, rc.Error)
	assert.NotEmpty(t, rc.AttemptID)
	assert.Equal(t, []string{"Idle", "ProofChecked", "LedgerChecked", "ResourceCreated", "RecordWritten", "Done"}, rc.Trace)

	view, err := ReadRecord(ctx, h.Store(), program, "reference", 0, alice.ToBase58())
	require.NoError(t, err)
	assert.Equal(t, rc.Record, view.Address)
	assert.Equal(t, mint.ToBase58(), view.Reference)
	assert.Equal(t, "reference", view.Kind)
	assert.True(t, view.Issued)
	assert.Equal(t, ledger.Rent(derive.KindReference), view.Deposit)

	req.Mint = types.NewAccount().PublicKey.ToBase58()
	rc, err = Issue(ctx, d, req)
	require.Error(t, err)
	require.NotNil(t, rc)
	assert.False(t, rc.Committed)
	assert.Equal(t, ErrorCode(issuance.CodeAlreadyIssued), rc.Error.Code)
	assert.Equal(t, string(issuance.KindAlreadyIssued), rc.Error.Kind)
	assert.Equal(t, []string{"Idle", "ProofChecked", "Failed"}, rc.Trace)
}

func TestIssueRequestValidation(t *testing.T) {
	d, _, _ := setup(t)
	ctx := context.Background()
	good := alice.ToBase58()

	cases := []IssueRequest{
		{Variant: "nope", Claimant: good, Mint: good},
		{Variant: "mint", Claimant: "not-base58-0OIl", Mint: good},
		{Variant: "mint", Claimant: good, Mint: "abc"},
		{Variant: "merkle-mint", Claimant: good, Mint: good, Proof: []string{"zz"}},
	}
	for _, req := range cases {
		rc, err := Issue(ctx, d, req)
		assert.Nil(t, rc)
		var ce *CodedError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, ErrInvalidRequest, ce.Code)
	}
}

func TestReadRecordErrors(t *testing.T) {
	_, h, _ := setup(t)
	ctx := context.Background()

	_, err := ReadRecord(ctx, h.Store(), program, "reference", 0, bob.ToBase58())
	var ce *CodedError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, ErrNotFound, ce.Code)

	_, err = ReadRecord(ctx, h.Store(), program, "bogus", 0, bob.ToBase58())
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, ErrInvalidRequest, ce.Code)
}

func TestMapErr(t *testing.T) {
	assert.Nil(t, mapErr(nil))
	assert.Equal(t, ErrInternal, mapErr(errors.New("x")).Code)
	ce := NewError(ErrNotFound, "gone")
	assert.Same(t, ce, mapErr(ce))
	assert.Equal(t, "NOT_FOUND: gone", ce.Error())
}
