package transaction

import (
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// UTXODetails is what a UTXO reference resolves to.
type UTXODetails struct {
	Owner    ethcommon.Address
	Amount   *big.Int
	Currency ethcommon.Address
}

// UTXOSource resolves UTXO references against current chain state. Lookup
// returns ErrUTXONotFound for an unknown reference and ErrUTXOAlreadySpent
// for a consumed one.
type UTXOSource interface {
	Lookup(blockNumber uint32, transactionNumber uint32, outputNumber uint8) (*UTXODetails, error)
}

// Validate checks the transaction against current UTXO state:
//
//   - both referenced inputs exist and are unspent (null slots are skipped),
//   - no input is referenced twice,
//   - every resolved input carries the transaction's currency,
//   - each non-null input's signature slot holds a signature recovering to
//     that input's owner,
//   - outputs plus fee do not exceed inputs.
//
// A deposit-originated transaction (both inputs null, one populated output)
// skips the signature and conservation checks. Validation has no side
// effects; the first violated condition is returned.
func (tx *Transaction) Validate(source UTXOSource) error {
	if tx.IsDeposit() {
		return nil
	}
	if !tx.Input1.IsNull() && !tx.Input2.IsNull() && tx.Input1.Equal(tx.Input2) {
		return ErrDuplicateInputs
	}

	totalIn := big.NewInt(0)
	for slot, input := range tx.Inputs() {
		if input.IsNull() {
			continue
		}
		details, err := source.Lookup(input.GetBlockNumber(), input.GetTransactionNumber(), input.GetOutputNumber())
		if err != nil {
			return err
		}
		if details.Currency != tx.GetCurrency() {
			return ErrCurrencyMismatch
		}
		signer, err := tx.SignerOfSlot(slot + 1)
		if err != nil {
			return err
		}
		if signer != details.Owner {
			return ErrSignatureMismatch
		}
		totalIn.Add(totalIn, details.Amount)
	}

	totalOut := big.NewInt(0)
	for _, output := range tx.Outputs() {
		totalOut.Add(totalOut, output.GetValue().Bigint)
	}
	totalOut.Add(totalOut, tx.GetFee().Bigint)
	if totalOut.Cmp(totalIn) > 0 {
		return ErrAmountMismatch
	}
	return nil
}
