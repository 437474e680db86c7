package transaction

import (
	"bytes"
	"io"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/pdexchain/plasmadex/common"
	"github.com/pdexchain/plasmadex/types"
)

// Transaction is the fixed-shape child-chain transaction: two input slots,
// one currency, two output slots, a fee paid to the block operator and two
// signature slots corresponding one-to-one with the inputs. Unused slots hold
// the null reference / null output / zero signature.
//
// The unsigned encoding (everything but the signatures) is what gets signed;
// the full signed encoding is what gets hashed into the Merkle tree. Both are
// part of the wire format verified byte-for-byte by the root chain.
type Transaction struct {
	Input1   *TransactionInput
	Input2   *TransactionInput
	Currency [AddressLength]byte
	Output1  *TransactionOutput
	Output2  *TransactionOutput
	Fee      [ValueLength]byte
	Sig1     [SignatureLength]byte
	Sig2     [SignatureLength]byte
}

type rlpUnsignedTransaction struct {
	Input1   *TransactionInput
	Input2   *TransactionInput
	Currency []byte
	Output1  *TransactionOutput
	Output2  *TransactionOutput
	Fee      []byte
}

type rlpSignedTransaction struct {
	Input1   *TransactionInput
	Input2   *TransactionInput
	Currency []byte
	Output1  *TransactionOutput
	Output2  *TransactionOutput
	Fee      []byte
	Sig1     []byte
	Sig2     []byte
}

// NewTransaction assembles an unsigned transaction. Nil inputs and outputs
// are replaced by null slots.
func NewTransaction(input1 *TransactionInput, input2 *TransactionInput,
	currency ethcommon.Address,
	output1 *TransactionOutput, output2 *TransactionOutput,
	fee *types.BigInt) (*Transaction, error) {
	tx := &Transaction{}
	if input1 == nil {
		input1 = NullInput()
	}
	if input2 == nil {
		input2 = NullInput()
	}
	if output1 == nil {
		output1 = NullOutput()
	}
	if output2 == nil {
		output2 = NullOutput()
	}
	feeBytes, err := fee.GetLeftPaddedBytes(ValueLength)
	if err != nil {
		return nil, errors.New("fee is too long")
	}
	tx.Input1 = input1
	tx.Input2 = input2
	copy(tx.Currency[:], currency.Bytes())
	tx.Output1 = output1
	tx.Output2 = output2
	copy(tx.Fee[:], feeBytes)
	return tx, nil
}

// GetCurrency returns the transaction currency; the empty address means the
// native asset.
func (tx *Transaction) GetCurrency() ethcommon.Address {
	return tx.Currency
}

// GetFee returns the operator fee.
func (tx *Transaction) GetFee() *types.BigInt {
	return types.NewBigIntFromBytes(tx.Fee[:])
}

// Inputs returns the two input slots in order.
func (tx *Transaction) Inputs() [NumInputs]*TransactionInput {
	return [NumInputs]*TransactionInput{tx.Input1, tx.Input2}
}

// Outputs returns the two output slots in order.
func (tx *Transaction) Outputs() [NumOutputs]*TransactionOutput {
	return [NumOutputs]*TransactionOutput{tx.Output1, tx.Output2}
}

// IsDeposit reports whether this is a deposit-originated transaction: both
// input slots null and exactly one populated output. Such a transaction is
// exempt from the input-sum check since its value originates from a
// root-chain deposit, and it carries no signatures.
func (tx *Transaction) IsDeposit() bool {
	return tx.Input1.IsNull() && tx.Input2.IsNull() &&
		!tx.Output1.IsNull() && tx.Output2.IsNull()
}

// EncodeUnsigned returns the deterministic RLP encoding of all fields except
// the signatures. This is the preimage of the hash that gets signed.
func (tx *Transaction) EncodeUnsigned() ([]byte, error) {
	var b bytes.Buffer
	unsigned := rlpUnsignedTransaction{tx.Input1, tx.Input2, tx.Currency[:],
		tx.Output1, tx.Output2, tx.Fee[:]}
	if err := rlp.Encode(io.Writer(&b), unsigned); err != nil {
		return nil, errors.Wrap(ErrInvalidEncoding, err.Error())
	}
	return b.Bytes(), nil
}

// UnsignedHash returns the personal hash of the unsigned encoding.
func (tx *Transaction) UnsignedHash() (ethcommon.Hash, error) {
	encoded, err := tx.EncodeUnsigned()
	if err != nil {
		return ethcommon.Hash{}, err
	}
	return common.CreatePersonalHash(encoded), nil
}

// EncodeSigned returns the RLP encoding of the full transaction including
// both signature slots.
func (tx *Transaction) EncodeSigned() ([]byte, error) {
	var b bytes.Buffer
	if err := tx.EncodeRLP(io.Writer(&b)); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// MerkleHash returns the personal hash of the full signed encoding. It is the
// transaction's Merkle-tree leaf. The value is recomputed on every call since
// signing mutates the preimage.
func (tx *Transaction) MerkleHash() (ethcommon.Hash, error) {
	encoded, err := tx.EncodeSigned()
	if err != nil {
		return ethcommon.Hash{}, err
	}
	return common.CreatePersonalHash(encoded), nil
}

// Sign computes a recoverable signature over the unsigned hash and stores it
// in the requested slot (1 or 2). It does not check that the key matches the
// corresponding input's owner; that correspondence is enforced by Validate.
func (tx *Transaction) Sign(slot int, privateKey []byte) error {
	hash, err := tx.UnsignedHash()
	if err != nil {
		return err
	}
	signature, err := common.SignHash(hash, privateKey)
	if err != nil {
		return errors.Wrap(ErrInvalidKey, err.Error())
	}
	switch slot {
	case 1:
		tx.Sig1 = signature
	case 2:
		tx.Sig2 = signature
	default:
		return ErrInvalidSlot
	}
	return nil
}

// HasSignature reports whether the given slot holds a signature.
func (tx *Transaction) HasSignature(slot int) bool {
	empty := [SignatureLength]byte{}
	switch slot {
	case 1:
		return !bytes.Equal(tx.Sig1[:], empty[:])
	case 2:
		return !bytes.Equal(tx.Sig2[:], empty[:])
	}
	return false
}

// SignerOfSlot recovers the address that produced the signature in the given
// slot.
func (tx *Transaction) SignerOfSlot(slot int) (ethcommon.Address, error) {
	if !tx.HasSignature(slot) {
		return ethcommon.Address{}, ErrMissingSignature
	}
	hash, err := tx.UnsignedHash()
	if err != nil {
		return ethcommon.Address{}, err
	}
	var signature [SignatureLength]byte
	switch slot {
	case 1:
		signature = tx.Sig1
	case 2:
		signature = tx.Sig2
	default:
		return ethcommon.Address{}, ErrInvalidSlot
	}
	sender, err := common.RecoverSigner(hash, signature)
	if err != nil {
		return ethcommon.Address{}, errors.Wrap(ErrSignatureMismatch, err.Error())
	}
	return sender, nil
}

// EncodeRLP implements rlp.Encoder for the full signed transaction.
func (tx *Transaction) EncodeRLP(w io.Writer) error {
	signed := rlpSignedTransaction{tx.Input1, tx.Input2, tx.Currency[:],
		tx.Output1, tx.Output2, tx.Fee[:], tx.Sig1[:], tx.Sig2[:]}
	return rlp.Encode(w, signed)
}

// DecodeRLP implements rlp.Decoder for the full signed transaction.
func (tx *Transaction) DecodeRLP(s *rlp.Stream) error {
	var dec rlpSignedTransaction
	if err := s.Decode(&dec); err != nil {
		return errors.Wrap(ErrInvalidEncoding, err.Error())
	}
	if len(dec.Currency) != AddressLength {
		return errors.Wrap(ErrInvalidEncoding, "invalid currency length")
	}
	if len(dec.Fee) != ValueLength {
		return errors.Wrap(ErrInvalidEncoding, "invalid fee length")
	}
	if len(dec.Sig1) != SignatureLength {
		return errors.Wrap(ErrInvalidEncoding, "invalid sig1 length")
	}
	if len(dec.Sig2) != SignatureLength {
		return errors.Wrap(ErrInvalidEncoding, "invalid sig2 length")
	}
	tx.Input1 = dec.Input1
	tx.Input2 = dec.Input2
	copy(tx.Currency[:], dec.Currency)
	tx.Output1 = dec.Output1
	tx.Output2 = dec.Output2
	copy(tx.Fee[:], dec.Fee)
	copy(tx.Sig1[:], dec.Sig1)
	copy(tx.Sig2[:], dec.Sig2)
	return nil
}

// DecodeBytes parses a full signed transaction from its RLP encoding.
func DecodeBytes(raw []byte) (*Transaction, error) {
	tx := &Transaction{}
	if err := rlp.DecodeBytes(raw, tx); err != nil {
		if errors.Is(err, ErrInvalidEncoding) {
			return nil, err
		}
		return nil, errors.Wrap(ErrInvalidEncoding, err.Error())
	}
	return tx, nil
}
