package transaction

import (
	"bytes"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/pdexchain/plasmadex/types"
)

// TransactionOutput is a tagged union over {transfer, order creation}. A
// transfer pays Value of the transaction's currency to To. An order output
// instead places Value of the transaction's currency on the book, asking
// OrderPrice per unit of OrderCurrency. The order fields of a transfer are
// required to be zero so that the encodings of the two variants never
// collide.
type TransactionOutput struct {
	OutputType    [1]byte
	To            [AddressLength]byte
	Value         [ValueLength]byte
	OrderPrice    [ValueLength]byte
	OrderCurrency [AddressLength]byte
}

type rlpTransactionOutput struct {
	OutputType    []byte
	To            []byte
	Value         []byte
	OrderPrice    []byte
	OrderCurrency []byte
}

// NewTransferOutput builds a plain transfer output.
func NewTransferOutput(to common.Address, value *types.BigInt) (*TransactionOutput, error) {
	output := &TransactionOutput{}
	output.OutputType[0] = OutputTypeTransfer
	valueBytes, err := value.GetLeftPaddedBytes(ValueLength)
	if err != nil {
		return nil, errors.New("value is too long")
	}
	copy(output.To[:], to.Bytes())
	copy(output.Value[:], valueBytes)
	return output, nil
}

// NewOrderOutput builds an order-creation output offering value of the
// transaction's currency at price per unit of orderCurrency.
func NewOrderOutput(to common.Address, value *types.BigInt, price *types.BigInt, orderCurrency common.Address) (*TransactionOutput, error) {
	output := &TransactionOutput{}
	output.OutputType[0] = OutputTypeOrder
	valueBytes, err := value.GetLeftPaddedBytes(ValueLength)
	if err != nil {
		return nil, errors.New("value is too long")
	}
	priceBytes, err := price.GetLeftPaddedBytes(ValueLength)
	if err != nil {
		return nil, errors.New("price is too long")
	}
	copy(output.To[:], to.Bytes())
	copy(output.Value[:], valueBytes)
	copy(output.OrderPrice[:], priceBytes)
	copy(output.OrderCurrency[:], orderCurrency.Bytes())
	return output, nil
}

// NullOutput returns the unused-slot output: a transfer of zero to the empty
// address.
func NullOutput() *TransactionOutput {
	output := &TransactionOutput{}
	output.OutputType[0] = OutputTypeTransfer
	return output
}

// IsNull reports whether this slot carries no value.
func (output *TransactionOutput) IsNull() bool {
	return output.OutputType[0] == OutputTypeTransfer &&
		bytes.Equal(output.To[:], EmptyAddress[:]) &&
		output.GetValue().Sign() == 0
}

// IsOrder reports whether this output creates a standing order.
func (output *TransactionOutput) IsOrder() bool {
	return output.OutputType[0] == OutputTypeOrder
}

// GetValue returns the output amount.
func (output *TransactionOutput) GetValue() *types.BigInt {
	return types.NewBigIntFromBytes(output.Value[:])
}

// GetOrderPrice returns the asking price of an order output.
func (output *TransactionOutput) GetOrderPrice() *types.BigInt {
	return types.NewBigIntFromBytes(output.OrderPrice[:])
}

// GetToAddress returns the owner as an Ethereum address.
func (output *TransactionOutput) GetToAddress() common.Address {
	return output.To
}

// GetOrderCurrency returns the asked-for token of an order output.
func (output *TransactionOutput) GetOrderCurrency() common.Address {
	return output.OrderCurrency
}

// EncodeRLP implements rlp.Encoder.
func (output *TransactionOutput) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, rlpTransactionOutput{output.OutputType[:], output.To[:],
		output.Value[:], output.OrderPrice[:], output.OrderCurrency[:]})
}

// DecodeRLP implements rlp.Decoder. Besides the fixed widths it enforces the
// union invariant: a transfer output must carry zero order fields.
func (output *TransactionOutput) DecodeRLP(s *rlp.Stream) error {
	var dec rlpTransactionOutput
	if err := s.Decode(&dec); err != nil {
		return errors.Wrap(ErrInvalidEncoding, err.Error())
	}
	if len(dec.OutputType) != 1 {
		return errors.Wrap(ErrInvalidEncoding, "invalid output type length")
	}
	if len(dec.To) != AddressLength {
		return errors.Wrap(ErrInvalidEncoding, "invalid address length")
	}
	if len(dec.Value) != ValueLength {
		return errors.Wrap(ErrInvalidEncoding, "invalid value length")
	}
	if len(dec.OrderPrice) != ValueLength {
		return errors.Wrap(ErrInvalidEncoding, "invalid order price length")
	}
	if len(dec.OrderCurrency) != AddressLength {
		return errors.Wrap(ErrInvalidEncoding, "invalid order currency length")
	}
	switch dec.OutputType[0] {
	case OutputTypeTransfer:
		if !bytes.Equal(dec.OrderPrice, make([]byte, ValueLength)) ||
			!bytes.Equal(dec.OrderCurrency, make([]byte, AddressLength)) {
			return errors.Wrap(ErrInvalidEncoding, "transfer output carries order fields")
		}
	case OutputTypeOrder:
	default:
		return errors.Wrap(ErrInvalidEncoding, "invalid output type")
	}
	copy(output.OutputType[:], dec.OutputType)
	copy(output.To[:], dec.To)
	copy(output.Value[:], dec.Value)
	copy(output.OrderPrice[:], dec.OrderPrice)
	copy(output.OrderCurrency[:], dec.OrderCurrency)
	return nil
}
