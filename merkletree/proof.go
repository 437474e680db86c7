package merkletree

import (
	"github.com/ethereum/go-ethereum/common"
)

// Proof is a membership proof: the ordered sequence of sibling hashes from
// leaf level to root. Its length equals the depth of the tree it came from.
type Proof []common.Hash

// Bytes flattens the proof into concatenated 32-byte siblings, the layout
// submitted to the root chain.
func (p Proof) Bytes() []byte {
	out := make([]byte, 0, len(p)*common.HashLength)
	for _, sibling := range p {
		out = append(out, sibling[:]...)
	}
	return out
}

// ProofFromBytes parses a flattened proof. Returns nil for input that is not
// a whole number of 32-byte siblings.
func ProofFromBytes(raw []byte) Proof {
	if len(raw)%common.HashLength != 0 {
		return nil
	}
	proof := make(Proof, len(raw)/common.HashLength)
	for i := range proof {
		copy(proof[i][:], raw[i*common.HashLength:(i+1)*common.HashLength])
	}
	return proof
}

// Verify recomputes the root from a leaf, its index and a proof, and compares
// it to the expected root. At each level the bit of index (least-significant
// first) decides whether the running hash is the left or right operand. It is
// a pure function, so a verifier that never saw the tree (a root-chain
// contract, an exiting client) gets the same answer as the builder.
func Verify(leafHash common.Hash, index uint32, proof Proof, expectedRoot common.Hash) bool {
	computed := leafHash
	idx := index
	for _, sibling := range proof {
		if idx&1 == 0 {
			computed = parentHash(computed, sibling)
		} else {
			computed = parentHash(sibling, computed)
		}
		idx >>= 1
	}
	return computed == expectedRoot
}
