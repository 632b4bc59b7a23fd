package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dikanevn/bf/authority"
	"github.com/dikanevn/bf/collab"
	"github.com/dikanevn/bf/derive"
	"github.com/dikanevn/bf/storage"
	"github.com/dikanevn/bf/storage/memstore"
	"github.com/dikanevn/bf/storage/testkit"
)

var (
	program = common.PublicKeyFromString("BJZpNCrvPDRdbD3w2GUUWPoiF2Ww17wuY6fLNxsD3pRA")
	alice   = common.PublicKeyFromString("E9kCZevh9Y5piLjkzYuFdMBcr7XU1zdHRdYMnvHFhveH")
	bob     = common.PublicKeyFromString("GDi7rtknaEdvgGrm9qpXbF54ZGZMGezmXLky2VQac2c6")
)

type fakeFunds map[common.PublicKey]uint64

func (f fakeFunds) Balance(_ context.Context, a common.PublicKey) (uint64, error) { return f[a], nil }

func (f fakeFunds) Debit(_ context.Context, a common.PublicKey, n uint64) error {
	if f[a] < n {
		return fmt.Errorf("%w: %d < %d", collab.ErrInsufficientFunds, f[a], n)
	}
	f[a] -= n
	return nil
}

func (f fakeFunds) Credit(_ context.Context, a common.PublicKey, n uint64) error {
	f[a] += n
	return nil
}

func (f fakeFunds) Transfer(ctx context.Context, from, to common.PublicKey, n uint64, _ authority.SignatureProof) error {
	if err := f.Debit(ctx, from, n); err != nil {
		return err
	}
	return f.Credit(ctx, to, n)
}

func record(t *testing.T, s derive.Schema, round uint8, id common.PublicKey) derive.Derivation {
	t.Helper()
	d, err := derive.New(program).Record(s, round, id)
	require.NoError(t, err)
	return d
}

func TestRent(t *testing.T) {
	assert.Equal(t, uint64(897_840), Rent(derive.KindFlag))
	assert.Equal(t, uint64(1_113_600), Rent(derive.KindReference))
}

func TestCreateWriteRead(t *testing.T) {
	ctx := context.Background()
	funds := fakeFunds{alice: 10_000_000}
	l := New(memstore.New(), funds, program)
	d := record(t, derive.SchemaReference, 3, alice)

	ok, err := l.Exists(ctx, d.Address)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.Create(ctx, d, derive.KindReference, alice))
	assert.Equal(t, uint64(10_000_000)-Rent(derive.KindReference), funds[alice])

	mint := bob
	require.NoError(t, l.WriteReference(ctx, d.Address, mint))

	rec, err := l.Read(ctx, d.Address)
	require.NoError(t, err)
	assert.Equal(t, derive.KindReference, rec.Kind)
	assert.True(t, rec.Issued)
	require.NotNil(t, rec.Reference)
	assert.Equal(t, mint, *rec.Reference)
	assert.Equal(t, Rent(derive.KindReference), rec.Deposit)

	ok, err = l.Exists(ctx, d.Address)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCreateIsOnce(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	funds := fakeFunds{alice: 10_000_000}
	d := record(t, derive.SchemaFlag, 0, alice)

	first := New(store, funds, program)
	require.NoError(t, first.Create(ctx, d, derive.KindFlag, alice))
	require.NoError(t, first.WriteFlag(ctx, d.Address))
	before := funds[alice]

	second := New(store, funds, program)
	err := second.Create(ctx, d, derive.KindFlag, alice)
	assert.ErrorIs(t, err, ErrAlreadyIssued)
	assert.Equal(t, before, funds[alice], "no charge on replay")

	rec, err := second.Read(ctx, d.Address)
	require.NoError(t, err)
	assert.True(t, rec.Issued)
}

func TestCreateChecksDerivation(t *testing.T) {
	ctx := context.Background()
	l := New(memstore.New(), fakeFunds{alice: 10_000_000}, program)
	d := record(t, derive.SchemaFlag, 0, alice)
	d.Address = bob

	err := l.Create(ctx, d, derive.KindFlag, alice)
	assert.ErrorIs(t, err, derive.ErrDerivationMismatch)
}

func TestCreateInsufficientCapacity(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	l := New(store, fakeFunds{alice: 1}, program)
	d := record(t, derive.SchemaFlag, 0, alice)

	err := l.Create(ctx, d, derive.KindFlag, alice)
	assert.ErrorIs(t, err, ErrInsufficientCapacity)
	assert.Zero(t, store.Len())
}

func TestCreateOccupiedByOtherOwner(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	d := record(t, derive.SchemaFlag, 0, alice)
	require.NoError(t, store.Allocate(ctx, storage.Address(d.Address), storage.Account{Owner: storage.Address(bob), Data: []byte{0}}))

	l := New(store, fakeFunds{alice: 10_000_000}, program)
	ok, err := l.Exists(ctx, d.Address)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, l.Create(ctx, d, derive.KindFlag, alice), ErrAddressOccupied)
}

func TestWriteRequiresCreateInSession(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	funds := fakeFunds{alice: 10_000_000}
	d := record(t, derive.SchemaReference, 1, alice)

	l := New(store, funds, program)
	assert.ErrorIs(t, l.WriteReference(ctx, d.Address, bob), ErrNotCreated)

	require.NoError(t, l.Create(ctx, d, derive.KindReference, alice))
	assert.ErrorIs(t, l.WriteFlag(ctx, d.Address), ErrKindMismatch)
	require.NoError(t, l.WriteReference(ctx, d.Address, bob))
	assert.ErrorIs(t, l.WriteReference(ctx, d.Address, alice), ErrAlreadyWritten)

	other := New(store, funds, program)
	assert.ErrorIs(t, other.WriteReference(ctx, d.Address, alice), ErrNotCreated)

	rec, err := other.Read(ctx, d.Address)
	require.NoError(t, err)
	assert.Equal(t, bob, *rec.Reference)
}

func TestCreateFailedAllocateRefunds(t *testing.T) {
	ctx := context.Background()
	faulty := testkit.NewFaultyStore(memstore.New())
	funds := fakeFunds{alice: 10_000_000}
	l := New(faulty, funds, program)
	d := record(t, derive.SchemaFlag, 0, alice)

	faulty.FailNext("allocate", 1)
	err := l.Create(ctx, d, derive.KindFlag, alice)
	assert.ErrorIs(t, err, testkit.ErrInjected)
	assert.Equal(t, uint64(10_000_000), funds[alice])
	assert.ErrorIs(t, l.WriteFlag(ctx, d.Address), ErrNotCreated)
}

// refusingFunds fails every credit.
type refusingFunds struct{ fakeFunds }

var errCreditRefused = errors.New("credit refused")

func (refusingFunds) Credit(context.Context, common.PublicKey, uint64) error { return errCreditRefused }

func TestCreateFailedRefundIsReported(t *testing.T) {
	ctx := context.Background()
	faulty := testkit.NewFaultyStore(memstore.New())
	l := New(faulty, refusingFunds{fakeFunds{alice: 10_000_000}}, program)
	d := record(t, derive.SchemaReference, 1, alice)

	faulty.FailNext("allocate", 1)
	err := l.Create(ctx, d, derive.KindReference, alice)
	assert.ErrorIs(t, err, testkit.ErrInjected)
	assert.ErrorIs(t, err, errCreditRefused)
}

func TestReclaim(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	funds := fakeFunds{alice: 10_000_000}
	d := record(t, derive.SchemaMinted, 5, alice)

	l := New(store, funds, program)
	require.NoError(t, l.Create(ctx, d, derive.KindReference, alice))
	require.NoError(t, l.WriteReference(ctx, d.Address, bob))

	_, err := New(store, funds, program).Reclaim(ctx, d, bob)
	assert.ErrorIs(t, err, ErrNotClaimant)

	refund, err := New(store, funds, program).Reclaim(ctx, d, alice)
	require.NoError(t, err)
	assert.Equal(t, Rent(derive.KindReference), refund)
	assert.Equal(t, uint64(10_000_000), funds[alice])

	ok, err := l.Exists(ctx, d.Address)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = New(store, funds, program).Reclaim(ctx, d, alice)
	assert.ErrorIs(t, err, ErrNotIssued)

	// The address can be issued again after reclamation.
	require.NoError(t, New(store, funds, program).Create(ctx, d, derive.KindReference, alice))
}

func TestReadMissing(t *testing.T) {
	l := New(memstore.New(), fakeFunds{}, program)
	_, err := l.Read(context.Background(), alice)
	assert.ErrorIs(t, err, ErrNotIssued)
}
