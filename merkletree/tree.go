package merkletree

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// DefaultDepth is the tree depth used for block commitments: a capacity of
// 2^16 leaves. The root chain verifies proofs of exactly this length.
const DefaultDepth = 16

// PaddingLeaf is the well-known leaf value used to pad a partially-full
// block on the right up to the tree capacity.
var PaddingLeaf = common.Hash{}

var (
	ErrTooManyLeaves = errors.New("leaf count exceeds tree capacity")
	ErrLeafNotFound  = errors.New("leaf is not in the tree")
	ErrInvalidIndex  = errors.New("leaf index is out of range")
)

// MerkleTree is a fixed-depth binary keccak tree over an ordered sequence of
// 32-byte leaves. The root is a pure function of the ordered, padded leaf
// sequence; reordering the same leaves produces a different root. Padding is
// never materialized: each level only stores the occupied prefix and falls
// back to precomputed default nodes beyond it.
type MerkleTree struct {
	depth        int
	levels       [][]common.Hash
	defaultNodes []common.Hash
	root         common.Hash
}

func parentHash(left common.Hash, right common.Hash) common.Hash {
	return crypto.Keccak256Hash(left[:], right[:])
}

// NewTree builds a tree of the given depth over the ordered leaves. Fails if
// the leaves exceed the 2^depth capacity.
func NewTree(leaves []common.Hash, depth int) (*MerkleTree, error) {
	if depth < 1 {
		return nil, errors.New("tree depth must be positive")
	}
	if len(leaves) > 1<<uint(depth) {
		return nil, ErrTooManyLeaves
	}

	defaultNodes := make([]common.Hash, depth+1)
	defaultNodes[0] = PaddingLeaf
	for i := 1; i <= depth; i++ {
		defaultNodes[i] = parentHash(defaultNodes[i-1], defaultNodes[i-1])
	}

	levels := make([][]common.Hash, depth+1)
	levels[0] = make([]common.Hash, len(leaves))
	copy(levels[0], leaves)
	for level := 0; level < depth; level++ {
		current := levels[level]
		parents := make([]common.Hash, (len(current)+1)/2)
		for i := 0; i < len(parents); i++ {
			left := current[2*i]
			right := defaultNodes[level]
			if 2*i+1 < len(current) {
				right = current[2*i+1]
			}
			parents[i] = parentHash(left, right)
		}
		levels[level+1] = parents
	}

	tree := &MerkleTree{depth: depth, levels: levels, defaultNodes: defaultNodes}
	if len(levels[depth]) == 1 {
		tree.root = levels[depth][0]
	} else {
		tree.root = defaultNodes[depth]
	}
	return tree, nil
}

// Root returns the Merkle root.
func (m *MerkleTree) Root() common.Hash {
	return m.root
}

// Depth returns the tree depth.
func (m *MerkleTree) Depth() int {
	return m.depth
}

// CreateMembershipProof locates the first leaf equal to leafHash and returns
// the sibling path from leaf level to root. Fails with ErrLeafNotFound if the
// leaf is absent.
func (m *MerkleTree) CreateMembershipProof(leafHash common.Hash) (Proof, error) {
	for index, leaf := range m.levels[0] {
		if leaf == leafHash {
			return m.CreateMembershipProofForIndex(uint32(index))
		}
	}
	return nil, ErrLeafNotFound
}

// CreateMembershipProofForIndex returns the sibling path for the leaf at the
// given index, ordered leaf-to-root. The proof is a plain value with no ties
// to the tree that produced it.
func (m *MerkleTree) CreateMembershipProofForIndex(index uint32) (Proof, error) {
	if int(index) >= len(m.levels[0]) {
		return nil, ErrInvalidIndex
	}
	proof := make(Proof, m.depth)
	idx := index
	for level := 0; level < m.depth; level++ {
		sibling := idx ^ 1
		if int(sibling) < len(m.levels[level]) {
			proof[level] = m.levels[level][sibling]
		} else {
			proof[level] = m.defaultNodes[level]
		}
		idx >>= 1
	}
	return proof, nil
}
