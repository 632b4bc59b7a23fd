package merkle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identity(b byte) [32]byte {
	var id [32]byte
	for i := range id {
		id[i] = b
	}
	return id
}

func TestLeafAndCombineVectors(t *testing.T) {
	la := Leaf(identity(1))
	lb := Leaf(identity(2))
	assert.Equal(t, "72cd6e8422c407fb6d098690f1130b7ded7ec2f7f5e1d30bd9d521f015363793", la.String())
	assert.Equal(t, "75877bb41d393b5fb8455ce60ecd8dda001d06316496b14dfa7f895656eeca4a", lb.String())
	assert.Equal(t, "50a27d4746f357cb700cbe9d4883b77fb64f0128828a3489dc6a6f21ddbf2414", Combine(la, lb).String())
	assert.Equal(t, "cc90b9225b469e6fd1f0f3cb77b75c6fbbb85d32b640c74ba2c646eefadfe034", PositionedLeaf(identity(1), 7).String())
}

func TestCombineCommutative(t *testing.T) {
	for i := 0; i < 16; i++ {
		for j := 0; j < 16; j++ {
			a, b := Leaf(identity(byte(i))), Leaf(identity(byte(j)))
			require.Equal(t, Combine(a, b), Combine(b, a), "i=%d j=%d", i, j)
		}
	}
}

func TestParseProof(t *testing.T) {
	p, err := ParseProof(nil)
	require.NoError(t, err)
	assert.Empty(t, p)

	a, b := identity(3), identity(4)
	raw := append(a[:], b[:]...)
	p, err = ParseProof(raw)
	require.NoError(t, err)
	require.Len(t, p, 2)
	assert.Equal(t, Hash(a), p[0])
	assert.Equal(t, raw, p.Bytes())

	for _, n := range []int{1, 31, 33, 63} {
		_, err := ParseProof(make([]byte, n))
		assert.ErrorIs(t, err, ErrProofLength, "len=%d", n)
	}
}

func TestSingleLeafTree(t *testing.T) {
	x := identity(0x58)
	root := Leaf(x)
	assert.True(t, Verify(Leaf(x), nil, root))
	assert.False(t, Verify(Leaf(x), nil, Leaf(identity(0x59))))

	tree, err := FromIdentities([][32]byte{x})
	require.NoError(t, err)
	assert.Equal(t, root, tree.Root())
	proof, err := tree.Proof(root)
	require.NoError(t, err)
	assert.Empty(t, proof)
}

func TestTreeCompleteness(t *testing.T) {
	for n := 1; n <= 33; n++ {
		ids := make([][32]byte, n)
		for i := range ids {
			ids[i] = identity(byte(i + 1))
		}
		tree, err := FromIdentities(ids)
		require.NoError(t, err)
		for _, id := range ids {
			proof, err := tree.Proof(Leaf(id))
			require.NoError(t, err)
			require.True(t, Verify(Leaf(id), proof, tree.Root()), "n=%d leaf=%x", n, id[0])
		}
	}
}

func TestTreeInputOrderIrrelevant(t *testing.T) {
	a, err := NewTree([]Hash{Leaf(identity(1)), Leaf(identity(2)), Leaf(identity(3))})
	require.NoError(t, err)
	b, err := NewTree([]Hash{Leaf(identity(3)), Leaf(identity(1)), Leaf(identity(2))})
	require.NoError(t, err)
	assert.Equal(t, a.Root(), b.Root())
}

func TestTreeOddNodePromoted(t *testing.T) {
	leaves := []Hash{Leaf(identity(1)), Leaf(identity(2)), Leaf(identity(3))}
	tree, err := NewTree(leaves)
	require.NoError(t, err)
	s := tree.Leaves()
	assert.Equal(t, Combine(Combine(s[0], s[1]), s[2]), tree.Root())

	proof, err := tree.Proof(s[2])
	require.NoError(t, err)
	assert.Equal(t, Proof{Combine(s[0], s[1])}, proof)
}

func TestEmptyTree(t *testing.T) {
	_, err := NewTree(nil)
	assert.ErrorIs(t, err, ErrEmptyTree)
}

func TestProofForMissingLeaf(t *testing.T) {
	tree, err := FromIdentities([][32]byte{identity(1), identity(2)})
	require.NoError(t, err)
	_, err = tree.Proof(Leaf(identity(9)))
	assert.ErrorIs(t, err, ErrLeafMissing)
}

// Every sequence of tree nodes up to depth+1 long is tried as a proof for an
// outsider; none may reach the root.
func TestSoundnessExhaustiveSmallTrees(t *testing.T) {
	outsider := Leaf(identity(0xee))
	for n := 1; n <= 5; n++ {
		ids := make([][32]byte, n)
		for i := range ids {
			ids[i] = identity(byte(i + 1))
		}
		tree, err := FromIdentities(ids)
		require.NoError(t, err)
		nodes := tree.Nodes()
		root := tree.Root()

		var walk func(proof Proof)
		walk = func(proof Proof) {
			require.False(t, Verify(outsider, proof, root), "n=%d proof=%v", n, proof)
			if len(proof) > tree.Depth() {
				return
			}
			for _, h := range nodes {
				walk(append(append(Proof(nil), proof...), h))
			}
		}
		walk(nil)
	}
}

func TestVerifyDeterministic(t *testing.T) {
	tree, err := FromIdentities([][32]byte{identity(1), identity(2), identity(3), identity(4)})
	require.NoError(t, err)
	proof, err := tree.Proof(Leaf(identity(2)))
	require.NoError(t, err)
	for i := 0; i < 8; i++ {
		require.True(t, Verify(Leaf(identity(2)), proof, tree.Root()))
		require.False(t, Verify(Leaf(identity(5)), proof, tree.Root()))
	}
}
