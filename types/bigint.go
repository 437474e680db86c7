package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// A BigInt represents an unsigned multi-precision integer used for
// transaction amounts, fees and order prices.
type BigInt struct {
	Bigint *big.Int
}

// NewBigInt allocates and returns a new BigInt set to x.
func NewBigInt(x int64) *BigInt {
	return &BigInt{big.NewInt(x)}
}

// NewBigIntFromBytes interprets buf as a big-endian unsigned integer.
func NewBigIntFromBytes(buf []byte) *BigInt {
	bi := NewBigInt(0)
	bi.SetBytes(buf)
	return bi
}

// GetBytes returns the absolute value of x as a big-endian byte slice.
func (bi *BigInt) GetBytes() []byte {
	return bi.Bigint.Bytes()
}

// GetLeftPaddedBytes returns the value as a big-endian slice left-padded
// with zeroes to exactly length bytes. Fails if the value does not fit.
func (bi *BigInt) GetLeftPaddedBytes(length int) ([]byte, error) {
	b := bi.Bigint.Bytes()
	if len(b) > length {
		return nil, errors.New("byte representation is too long to pad")
	}
	return common.LeftPadBytes(b, length), nil
}

// SetBytes interprets buf as the bytes of a big-endian unsigned integer and
// sets the big int to that value.
func (bi *BigInt) SetBytes(buf []byte) {
	bi.Bigint.SetBytes(common.CopyBytes(buf))
}

// String returns the value of x as a formatted decimal string.
func (bi *BigInt) String() string {
	return bi.Bigint.String()
}

// GetString returns the value of x as a formatted string in some number base.
func (bi *BigInt) GetString(base int) string {
	return bi.Bigint.Text(base)
}

// Sign returns -1, 0 or +1 depending on the sign of x.
func (bi *BigInt) Sign() int {
	return bi.Bigint.Sign()
}

// SetString sets the big int from a string in the given base. A "0x" prefix
// selects base 16 when base is 0.
func (bi *BigInt) SetString(x string, base int) {
	bi.Bigint.SetString(x, base)
}
