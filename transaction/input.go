package transaction

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/pdexchain/plasmadex/types"
)

// TransactionInput references one output of one transaction in one block.
// The all-zero reference (0, 0, 0) means "unused input slot".
type TransactionInput struct {
	BlockNumber       [BlockNumberLength]byte
	TransactionNumber [TransactionNumberLength]byte
	OutputNumber      [OutputNumberLength]byte
}

type rlpTransactionInput struct {
	BlockNumber       []byte
	TransactionNumber []byte
	OutputNumber      []byte
}

// NewTransactionInput packs a UTXO reference into fixed-width big-endian
// fields.
func NewTransactionInput(blockNumber uint32, transactionNumber uint32, outputNumber uint8) *TransactionInput {
	input := &TransactionInput{}
	binary.BigEndian.PutUint32(input.BlockNumber[:], blockNumber)
	binary.BigEndian.PutUint32(input.TransactionNumber[:], transactionNumber)
	input.OutputNumber[0] = outputNumber
	return input
}

// NullInput returns the unused-slot reference.
func NullInput() *TransactionInput {
	return &TransactionInput{}
}

// SetFields sets the reference from multi-precision components, failing if
// any of them does not fit its fixed-width field.
func (input *TransactionInput) SetFields(blockNumber *types.BigInt, transactionNumber *types.BigInt, outputNumber *types.BigInt) error {
	blockNumberBytes, err := blockNumber.GetLeftPaddedBytes(BlockNumberLength)
	if err != nil {
		return errors.New("block number is too long")
	}
	transactionNumberBytes, err := transactionNumber.GetLeftPaddedBytes(TransactionNumberLength)
	if err != nil {
		return errors.New("transaction number is too long")
	}
	outputNumberBytes, err := outputNumber.GetLeftPaddedBytes(OutputNumberLength)
	if err != nil {
		return errors.New("output number is too long")
	}
	copy(input.BlockNumber[:], blockNumberBytes)
	copy(input.TransactionNumber[:], transactionNumberBytes)
	copy(input.OutputNumber[:], outputNumberBytes)
	return nil
}

// IsNull reports whether this slot carries no UTXO reference.
func (input *TransactionInput) IsNull() bool {
	empty := TransactionInput{}
	return bytes.Equal(input.BlockNumber[:], empty.BlockNumber[:]) &&
		bytes.Equal(input.TransactionNumber[:], empty.TransactionNumber[:]) &&
		bytes.Equal(input.OutputNumber[:], empty.OutputNumber[:])
}

// Equal reports whether two inputs reference the same UTXO.
func (input *TransactionInput) Equal(other *TransactionInput) bool {
	return bytes.Equal(input.BlockNumber[:], other.BlockNumber[:]) &&
		bytes.Equal(input.TransactionNumber[:], other.TransactionNumber[:]) &&
		bytes.Equal(input.OutputNumber[:], other.OutputNumber[:])
}

// GetBlockNumber returns the referenced block number.
func (input *TransactionInput) GetBlockNumber() uint32 {
	return binary.BigEndian.Uint32(input.BlockNumber[:])
}

// GetTransactionNumber returns the referenced transaction index.
func (input *TransactionInput) GetTransactionNumber() uint32 {
	return binary.BigEndian.Uint32(input.TransactionNumber[:])
}

// GetOutputNumber returns the referenced output index.
func (input *TransactionInput) GetOutputNumber() uint8 {
	return input.OutputNumber[0]
}

// EncodeRLP implements rlp.Encoder.
func (input *TransactionInput) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, rlpTransactionInput{input.BlockNumber[:], input.TransactionNumber[:], input.OutputNumber[:]})
}

// DecodeRLP implements rlp.Decoder and enforces the fixed field widths.
func (input *TransactionInput) DecodeRLP(s *rlp.Stream) error {
	var dec rlpTransactionInput
	if err := s.Decode(&dec); err != nil {
		return errors.Wrap(ErrInvalidEncoding, err.Error())
	}
	if len(dec.BlockNumber) != BlockNumberLength {
		return errors.Wrap(ErrInvalidEncoding, "invalid block number length")
	}
	if len(dec.TransactionNumber) != TransactionNumberLength {
		return errors.Wrap(ErrInvalidEncoding, "invalid transaction number length")
	}
	if len(dec.OutputNumber) != OutputNumberLength {
		return errors.Wrap(ErrInvalidEncoding, "invalid output number length")
	}
	copy(input.BlockNumber[:], dec.BlockNumber)
	copy(input.TransactionNumber[:], dec.TransactionNumber)
	copy(input.OutputNumber[:], dec.OutputNumber)
	return nil
}
