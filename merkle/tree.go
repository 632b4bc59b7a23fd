package merkle

import (
	"bytes"
	"errors"
	"sort"
)

var (
	ErrEmptyTree   = errors.New("merkle: tree needs at least one leaf")
	ErrLeafMissing = errors.New("merkle: leaf not in tree")
)

// Tree is the reference builder for allowlist commitments.
//
// Leaves are sorted bytewise, adjacent pairs are combined with Combine and a
// trailing unpaired node is promoted unchanged to the next layer. A single
// leaf tree has root == leaf.
type Tree struct {
	layers [][]Hash
}

// NewTree builds a tree over a copy of leaves.
func NewTree(leaves []Hash) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, ErrEmptyTree
	}
	level := append([]Hash(nil), leaves...)
	sort.Slice(level, func(i, j int) bool { return bytes.Compare(level[i][:], level[j][:]) < 0 })

	layers := [][]Hash{level}
	for len(level) > 1 {
		next := make([]Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			next = append(next, Combine(level[i], level[i+1]))
		}
		layers = append(layers, next)
		level = next
	}
	return &Tree{layers: layers}, nil
}

// FromIdentities builds a tree over Leaf(identity) for each identity.
func FromIdentities(ids [][32]byte) (*Tree, error) {
	leaves := make([]Hash, len(ids))
	for i, id := range ids {
		leaves[i] = Leaf(id)
	}
	return NewTree(leaves)
}

func (t *Tree) Root() Hash {
	top := t.layers[len(t.layers)-1]
	return top[0]
}

// Leaves returns the sorted leaf layer.
func (t *Tree) Leaves() []Hash {
	return append([]Hash(nil), t.layers[0]...)
}

// Depth is the number of combine layers above the leaves.
func (t *Tree) Depth() int { return len(t.layers) - 1 }

// Proof returns the sibling path for leaf. Promoted nodes contribute no sibling.
func (t *Tree) Proof(leaf Hash) (Proof, error) {
	idx := -1
	for i, h := range t.layers[0] {
		if h == leaf {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrLeafMissing
	}

	var proof Proof
	for _, layer := range t.layers[:len(t.layers)-1] {
		sibling := idx ^ 1
		if sibling < len(layer) {
			proof = append(proof, layer[sibling])
		}
		idx /= 2
	}
	return proof, nil
}

// Nodes returns every distinct hash in the tree, leaves first.
func (t *Tree) Nodes() []Hash {
	seen := make(map[Hash]struct{})
	var out []Hash
	for _, layer := range t.layers {
		for _, h := range layer {
			if _, ok := seen[h]; ok {
				continue
			}
			seen[h] = struct{}{}
			out = append(out, h)
		}
	}
	return out
}
