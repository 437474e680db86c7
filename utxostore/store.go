// Package utxostore keeps the spendable-output state of the child chain. It
// implements the lookup/mark contract the block applier needs plus the
// iteration queries (balances, open orders) the RPC layer serves.
package utxostore

import (
	"encoding/binary"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/pdexchain/plasmadex/transaction"
)

// Store is the full UTXO-state collaborator. Lookup returns
// transaction.ErrUTXONotFound / transaction.ErrUTXOAlreadySpent so that
// validation surfaces those errors unchanged. Implementations
// must keep MarkSpent/MarkAvailable transactionally consistent with block
// application; the block applier calls them under its own mutex.
type Store interface {
	transaction.UTXOSource
	MarkSpent(blockNumber uint32, transactionNumber uint32, outputNumber uint8) error
	MarkAvailable(blockNumber uint32, transactionNumber uint32, outputNumber uint8, details transaction.UTXODetails) error
	// Remove erases a record entirely; the block applier uses it to undo
	// MarkAvailable when a later mark of the same transaction fails.
	Remove(blockNumber uint32, transactionNumber uint32, outputNumber uint8) error
	// MarkOrder attaches order-book metadata to an already available UTXO
	// created by an order output.
	MarkOrder(blockNumber uint32, transactionNumber uint32, outputNumber uint8, price *big.Int, askCurrency ethcommon.Address) error
	ListByOwner(owner ethcommon.Address) ([]Record, error)
	ListOrders() ([]OrderRecord, error)
}

// Record is one unspent output.
type Record struct {
	BlockNumber       uint32
	TransactionNumber uint32
	OutputNumber      uint8
	Owner             ethcommon.Address
	Amount            *big.Int
	Currency          ethcommon.Address
}

// OrderRecord is an unspent order-creation output: the offered UTXO plus its
// asking price per unit of the asked-for currency.
type OrderRecord struct {
	Record
	Price       *big.Int
	AskCurrency ethcommon.Address
}

const utxoKeyLength = transaction.BlockNumberLength + transaction.TransactionNumberLength +
	transaction.OutputNumberLength

type utxoKey [utxoKeyLength]byte

func makeKey(blockNumber uint32, transactionNumber uint32, outputNumber uint8) utxoKey {
	key := utxoKey{}
	binary.BigEndian.PutUint32(key[0:4], blockNumber)
	binary.BigEndian.PutUint32(key[4:8], transactionNumber)
	key[8] = outputNumber
	return key
}

func (key utxoKey) components() (uint32, uint32, uint8) {
	return binary.BigEndian.Uint32(key[0:4]), binary.BigEndian.Uint32(key[4:8]), key[8]
}
