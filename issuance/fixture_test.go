package issuance

import (
	"context"
	"testing"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dikanevn/bf/authority"
	"github.com/dikanevn/bf/collab"
	"github.com/dikanevn/bf/compliance"
	"github.com/dikanevn/bf/ledger"
	"github.com/dikanevn/bf/merkle"
	"github.com/dikanevn/bf/rounds"
	"github.com/dikanevn/bf/simhost"
)

var (
	program    = common.PublicKeyFromString("BJZpNCrvPDRdbD3w2GUUWPoiF2Ww17wuY6fLNxsD3pRA")
	alice      = common.PublicKeyFromString("E9kCZevh9Y5piLjkzYuFdMBcr7XU1zdHRdYMnvHFhveH")
	bob        = common.PublicKeyFromString("GDi7rtknaEdvgGrm9qpXbF54ZGZMGezmXLky2VQac2c6")
	collection = common.PublicKeyFromString("HjDkVP7sYuse7UyirbngnjMJD5PgVkPSfcX6dLWbfE4a")
	carol      = common.PublicKey(merkle.Leaf([32]byte{0xca}))
	dave       = common.PublicKey(merkle.Leaf([32]byte{0xda}))
	treasury   = common.PublicKey(merkle.Leaf([32]byte{0x7e}))
	operator   = common.PublicKey(merkle.Leaf([32]byte{0x0b}))
)

var content = collab.Content{Name: "Pass", Symbol: "PASS", URI: "https://example.invalid/pass.json", SellerFeeBps: 500}

const funding = 100_000_000

// Round layout used by the tests:
//
//	0, 1: identity leaves of alice, bob, carol, dave
//	2:    positioned leaves alice@7, bob@8, carol@9
//	3:    identity leaves of alice, bob, carol
//	4:    a single identity leaf for bob
type fixture struct {
	t        *testing.T
	host     *simhost.Host
	auth     *authority.Capability
	pipeline *Pipeline
	trees    []*merkle.Tree
}

func identityTree(t *testing.T, ids ...common.PublicKey) *merkle.Tree {
	t.Helper()
	raw := make([][32]byte, len(ids))
	for i, id := range ids {
		raw[i] = id
	}
	tree, err := merkle.FromIdentities(raw)
	require.NoError(t, err)
	return tree
}

func newFixture(t *testing.T, opts ...func(*Config)) *fixture {
	t.Helper()
	positioned, err := merkle.NewTree([]merkle.Hash{
		merkle.PositionedLeaf(alice, 7),
		merkle.PositionedLeaf(bob, 8),
		merkle.PositionedLeaf(carol, 9),
	})
	require.NoError(t, err)
	trees := []*merkle.Tree{
		identityTree(t, alice, bob, carol, dave),
		identityTree(t, alice, bob, carol, dave),
		positioned,
		identityTree(t, alice, bob, carol),
		identityTree(t, bob),
	}
	roots := make([]merkle.Hash, len(trees))
	for i, tree := range trees {
		roots[i] = tree.Root()
	}
	reg, err := rounds.New(roots)
	require.NoError(t, err)

	auth, err := authority.Derive(program)
	require.NoError(t, err)

	coll := collection
	cfg := Config{
		Registry:   reg,
		Authority:  auth,
		Content:    content,
		Collection: &coll,
		Treasury:   treasury,
		Operator:   operator,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	p, err := NewPipeline(cfg)
	require.NoError(t, err)

	h := simhost.New()
	h.SeedCollection(collection, auth.Address(), collab.Content{Name: "Collection", Symbol: "COLL"})
	for _, id := range []common.PublicKey{alice, bob, carol, dave} {
		h.Fund(id, funding)
	}
	return &fixture{t: t, host: h, auth: auth, pipeline: p, trees: trees}
}

func (f *fixture) dispatcher(opts ...DispatcherOption) *Dispatcher {
	return NewDispatcher(f.pipeline, f.host, opts...)
}

func newMint() common.PublicKey { return types.NewAccount().PublicKey }

// invocation fills every account for claimant and a fresh mint.
func (f *fixture) invocation(v Variant, round uint8, claimant common.PublicKey) Invocation {
	f.t.Helper()
	inv, err := f.pipeline.Accounts(v, round, claimant, newMint())
	require.NoError(f.t, err)
	return inv
}

// claim builds a valid claim for claimant in round. Positions only apply
// to round 2.
func (f *fixture) claim(v Variant, round uint8, claimant common.PublicKey, position uint16) Claim {
	f.t.Helper()
	c := Claim{Round: round}
	leaf := merkle.Leaf(claimant)
	if v.Leaf == LeafPositioned {
		c.Position = &position
		leaf = merkle.PositionedLeaf(claimant, position)
	}
	if v.Gated() {
		proof, err := f.trees[round].Proof(leaf)
		require.NoError(f.t, err)
		c.Proof = proof
	}
	return c
}

func (f *fixture) issue(v Variant, inv Invocation, c Claim) (*Result, error) {
	var res *Result
	err := f.host.Execute(context.Background(), func(ctx context.Context, env collab.Env) error {
		var err error
		res, err = f.pipeline.Issue(ctx, env, v, inv, c)
		return err
	})
	return res, err
}

func (f *fixture) record(addr common.PublicKey) (ledger.Record, error) {
	return ledger.New(f.host.Store(), nil, program).Read(context.Background(), addr)
}

func variant(t *testing.T, name string) Variant {
	t.Helper()
	v, ok := VariantByName(name)
	require.True(t, ok, name)
	return v
}

func strictDispatcher(f *fixture, logger *zap.Logger) *Dispatcher {
	return f.dispatcher(WithMode(compliance.Strict), WithLogger(logger))
}
