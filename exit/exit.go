// Package exit assembles the withdrawal proof bundle a client submits to the
// root chain to reclaim a child-chain UTXO: the signed transaction, its
// Merkle inclusion proof and the owners' confirmation signatures.
package exit

import (
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/pdexchain/plasmadex/block"
	"github.com/pdexchain/plasmadex/common"
	"github.com/pdexchain/plasmadex/merkletree"
	"github.com/pdexchain/plasmadex/transaction"
)

var ErrIndexOutOfRange = errors.New("transaction index is out of range")

// Bundle is the complete exit tuple for one output. It is internally
// consistent by construction: the proof verifies the transaction's merkle
// hash against the block root the confirmation signatures attest to.
type Bundle struct {
	BlockNumber       uint32
	TransactionNumber uint32
	OutputNumber      uint8
	Transaction       *transaction.Transaction
	MerkleRoot        ethcommon.Hash
	Proof             merkletree.Proof
	ConfirmSig1       [common.SignatureLength]byte
	ConfirmSig2       [common.SignatureLength]byte
}

// ConfirmationHash is the preimage of a confirmation signature: the personal
// hash of the transaction's merkle hash concatenated with the block root. An
// owner signing it attests "I have seen this transaction committed under
// this root and will not dispute it".
func ConfirmationHash(merkleHash ethcommon.Hash, merkleRoot ethcommon.Hash) ethcommon.Hash {
	message := make([]byte, 0, 2*ethcommon.HashLength)
	message = append(message, merkleHash[:]...)
	message = append(message, merkleRoot[:]...)
	return common.CreatePersonalHash(message)
}

// ConfirmTransaction produces one confirmation signature over the
// transaction's commitment under root with the owner's raw private key.
func ConfirmTransaction(tx *transaction.Transaction, merkleRoot ethcommon.Hash, privateKey []byte) ([common.SignatureLength]byte, error) {
	merkleHash, err := tx.MerkleHash()
	if err != nil {
		return [common.SignatureLength]byte{}, err
	}
	return common.SignHash(ConfirmationHash(merkleHash, merkleRoot), privateKey)
}

// BuildBundle assembles the exit bundle for output oindex of the transaction
// at txindex in b. key1 and key2 are the confirmation keys for the two input
// slots; a nil key leaves that slot's confirmation signature empty, which is
// only valid if the corresponding input slot is null (the root chain rejects
// a withdrawal missing a required confirmation). Either a complete bundle or
// an error is returned, never a partial one.
func BuildBundle(b *block.Block, txindex uint32, oindex uint8, key1 []byte, key2 []byte) (*Bundle, error) {
	tx, err := b.GetTransaction(txindex)
	if err != nil {
		return nil, ErrIndexOutOfRange
	}

	// Re-merklization is deterministic, so this is a no-op on a block that
	// already committed its root.
	root, err := b.Merklize()
	if err != nil {
		return nil, err
	}
	proof, err := b.CreateMembershipProof(txindex)
	if err != nil {
		return nil, err
	}

	bundle := &Bundle{
		BlockNumber:       b.GetNumber(),
		TransactionNumber: txindex,
		OutputNumber:      oindex,
		Transaction:       tx,
		MerkleRoot:        root,
		Proof:             proof,
	}
	if !tx.Input1.IsNull() && key1 != nil {
		bundle.ConfirmSig1, err = ConfirmTransaction(tx, root, key1)
		if err != nil {
			return nil, err
		}
	}
	if !tx.Input2.IsNull() && key2 != nil {
		bundle.ConfirmSig2, err = ConfirmTransaction(tx, root, key2)
		if err != nil {
			return nil, err
		}
	}
	return bundle, nil
}

// SignatureBundle flattens the spending and confirmation signatures in the
// order the root chain expects: sig1, sig2, confirmSig1, confirmSig2.
func (bundle *Bundle) SignatureBundle() []byte {
	sigs := make([]byte, 0, 4*common.SignatureLength)
	sigs = append(sigs, bundle.Transaction.Sig1[:]...)
	sigs = append(sigs, bundle.Transaction.Sig2[:]...)
	sigs = append(sigs, bundle.ConfirmSig1[:]...)
	sigs = append(sigs, bundle.ConfirmSig2[:]...)
	return sigs
}

// Verify checks the bundle's internal consistency: the proof must have the
// committed tree depth and verify the transaction's merkle hash at txindex
// against the bundle root. The length check keeps a truncated proof (in the
// extreme, an empty one over leaf == root) from passing.
func (bundle *Bundle) Verify() (bool, error) {
	leaf, err := bundle.Transaction.MerkleHash()
	if err != nil {
		return false, err
	}
	if len(bundle.Proof) != merkletree.DefaultDepth {
		return false, nil
	}
	return merkletree.Verify(leaf, bundle.TransactionNumber, bundle.Proof, bundle.MerkleRoot), nil
}
