package transaction

import "github.com/pkg/errors"

// Validation and encoding failures are returned as values; nothing here is
// fatal and no failure leaves a transaction or the UTXO state partially
// mutated.
var (
	// Encoding errors.
	ErrInvalidEncoding = errors.New("invalid transaction encoding")

	// Signature errors.
	ErrInvalidKey        = errors.New("invalid signing key")
	ErrInvalidSlot       = errors.New("invalid signature slot")
	ErrMissingSignature  = errors.New("missing signature for spent input")
	ErrSignatureMismatch = errors.New("signature does not recover to input owner")

	// UTXO errors.
	ErrUTXONotFound     = errors.New("referenced UTXO does not exist")
	ErrUTXOAlreadySpent = errors.New("referenced UTXO is already spent")
	ErrDuplicateInputs  = errors.New("transaction references the same UTXO twice")
	ErrCurrencyMismatch = errors.New("input currency does not match transaction currency")
	ErrAmountMismatch   = errors.New("outputs plus fee exceed inputs")
)
