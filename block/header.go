package block

import (
	"bytes"
	"encoding/binary"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/pdexchain/plasmadex/common"
	"github.com/pdexchain/plasmadex/transaction"
)

const (
	PreviousBlockHashLength = 32
	MerkleTreeRootLength    = 32

	// BlockHeaderLength is the byte length of a serialized signed header:
	// number, transaction count, previous hash, root, signature.
	BlockHeaderLength = transaction.BlockNumberLength + transaction.TransactionNumberLength +
		PreviousBlockHashLength + MerkleTreeRootLength + common.SignatureLength
)

// BlockHeader is the canonical block commitment: block number, transaction
// count, previous block hash, Merkle root and the operator's signature over
// the first four. The signed raw header is what gets submitted to the root
// chain.
type BlockHeader struct {
	BlockNumber          [transaction.BlockNumberLength]byte
	NumberOfTransactions [transaction.TransactionNumberLength]byte
	PreviousBlockHash    [PreviousBlockHashLength]byte
	MerkleTreeRoot       [MerkleTreeRootLength]byte
	Sig                  [common.SignatureLength]byte
	from                 ethcommon.Address
}

// NewUnsignedBlockHeader builds a header with an empty signature slot.
func NewUnsignedBlockHeader(blockNumber uint32, numberOfTransactions uint32,
	previousBlockHash ethcommon.Hash, merkleTreeRoot ethcommon.Hash) *BlockHeader {
	header := &BlockHeader{}
	binary.BigEndian.PutUint32(header.BlockNumber[:], blockNumber)
	binary.BigEndian.PutUint32(header.NumberOfTransactions[:], numberOfTransactions)
	copy(header.PreviousBlockHash[:], previousBlockHash[:])
	copy(header.MerkleTreeRoot[:], merkleTreeRoot[:])
	return header
}

// GetBlockNumber returns the committed block number.
func (header *BlockHeader) GetBlockNumber() uint32 {
	return binary.BigEndian.Uint32(header.BlockNumber[:])
}

// GetNumberOfTransactions returns the committed transaction count.
func (header *BlockHeader) GetNumberOfTransactions() uint32 {
	return binary.BigEndian.Uint32(header.NumberOfTransactions[:])
}

// GetMerkleRoot returns the committed Merkle root.
func (header *BlockHeader) GetMerkleRoot() ethcommon.Hash {
	return ethcommon.BytesToHash(header.MerkleTreeRoot[:])
}

// GetHash returns the personal hash of the unsigned header fields, the
// preimage of the operator's signature.
func (header *BlockHeader) GetHash() ethcommon.Hash {
	toHash := []byte{}
	toHash = append(toHash, header.BlockNumber[:]...)
	toHash = append(toHash, header.NumberOfTransactions[:]...)
	toHash = append(toHash, header.PreviousBlockHash[:]...)
	toHash = append(toHash, header.MerkleTreeRoot[:]...)
	return common.CreatePersonalHash(toHash)
}

// IsSigned reports whether the signature slot is populated.
func (header *BlockHeader) IsSigned() bool {
	empty := [common.SignatureLength]byte{}
	return !bytes.Equal(header.Sig[:], empty[:])
}

// Sign signs the header with the operator's raw private key.
func (header *BlockHeader) Sign(privateKey []byte) error {
	signature, err := common.SignHash(header.GetHash(), privateKey)
	if err != nil {
		return err
	}
	header.Sig = signature
	header.from = ethcommon.Address{}
	return nil
}

// GetFrom recovers and caches the operator address from the signature.
func (header *BlockHeader) GetFrom() (ethcommon.Address, error) {
	if (header.from != ethcommon.Address{}) {
		return header.from, nil
	}
	if !header.IsSigned() {
		return ethcommon.Address{}, errors.New("header is not signed")
	}
	sender, err := common.RecoverSigner(header.GetHash(), header.Sig)
	if err != nil {
		return ethcommon.Address{}, err
	}
	header.from = sender
	return header.from, nil
}

// GetRaw serializes the signed header. Fails on an unsigned header so an
// uncommitted root can never be submitted by accident.
func (header *BlockHeader) GetRaw() ([]byte, error) {
	if !header.IsSigned() {
		return nil, errors.New("header is not signed")
	}
	raw := make([]byte, 0, BlockHeaderLength)
	raw = append(raw, header.BlockNumber[:]...)
	raw = append(raw, header.NumberOfTransactions[:]...)
	raw = append(raw, header.PreviousBlockHash[:]...)
	raw = append(raw, header.MerkleTreeRoot[:]...)
	raw = append(raw, header.Sig[:]...)
	return raw, nil
}

// NewBlockHeaderFromBytes parses a serialized signed header.
func NewBlockHeaderFromBytes(raw []byte) (*BlockHeader, error) {
	if len(raw) != BlockHeaderLength {
		return nil, errors.New("invalid header length")
	}
	header := &BlockHeader{}
	offset := 0
	copy(header.BlockNumber[:], raw[offset:offset+transaction.BlockNumberLength])
	offset += transaction.BlockNumberLength
	copy(header.NumberOfTransactions[:], raw[offset:offset+transaction.TransactionNumberLength])
	offset += transaction.TransactionNumberLength
	copy(header.PreviousBlockHash[:], raw[offset:offset+PreviousBlockHashLength])
	offset += PreviousBlockHashLength
	copy(header.MerkleTreeRoot[:], raw[offset:offset+MerkleTreeRootLength])
	offset += MerkleTreeRootLength
	copy(header.Sig[:], raw[offset:offset+common.SignatureLength])
	return header, nil
}
