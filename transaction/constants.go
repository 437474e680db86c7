package transaction

import "github.com/ethereum/go-ethereum/common"

const (
	BlockNumberLength       = 4
	TransactionNumberLength = 4
	OutputNumberLength      = 1
	AddressLength           = 20
	ValueLength             = 32
	SignatureLength         = 65

	// OutputTypeTransfer is a plain value transfer to an owner.
	// OutputTypeOrder creates a standing exchange order; the output then
	// additionally carries a price and the currency being asked for.
	OutputTypeTransfer = byte(0x01)
	OutputTypeOrder    = byte(0x02)

	// NumInputs and NumOutputs fix the transaction shape. Constant-size
	// transactions keep root-chain proof costs constant.
	NumInputs  = 2
	NumOutputs = 2
)

var EmptyAddress = common.Address{}
