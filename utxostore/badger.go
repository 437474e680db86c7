package utxostore

import (
	"math/big"

	"github.com/dgraph-io/badger"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/pdexchain/plasmadex/transaction"
)

var (
	utxoIndexPrefix  = []byte("utxo")
	orderIndexPrefix = []byte("order")
	blockIndexPrefix = []byte("block")
)

const (
	utxoStatusSpent     = byte(0x00)
	utxoStatusAvailable = byte(0x01)

	// status + owner + amount + currency
	utxoValueLength = 1 + transaction.AddressLength + transaction.ValueLength + transaction.AddressLength
	// price + asked-for currency
	orderValueLength = transaction.ValueLength + transaction.AddressLength
)

// BadgerStore is a Store persisted in a Badger key-value database. UTXO
// records live under the "utxo" prefix keyed by the big-endian composite
// (blknum, txindex, oindex); order metadata under "order" with the same
// composite; serialized submitted blocks under "block" keyed by number.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) a store at dir.
func NewBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "could not open utxo database")
	}
	return &BadgerStore{db: db}, nil
}

// Close releases the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func prefixedKey(prefix []byte, key utxoKey) []byte {
	full := make([]byte, 0, len(prefix)+utxoKeyLength)
	full = append(full, prefix...)
	full = append(full, key[:]...)
	return full
}

func encodeUTXOValue(status byte, details transaction.UTXODetails) []byte {
	value := make([]byte, 0, utxoValueLength)
	value = append(value, status)
	value = append(value, details.Owner[:]...)
	value = append(value, ethcommon.LeftPadBytes(details.Amount.Bytes(), transaction.ValueLength)...)
	value = append(value, details.Currency[:]...)
	return value
}

func decodeUTXOValue(value []byte) (byte, transaction.UTXODetails, error) {
	if len(value) != utxoValueLength {
		return 0, transaction.UTXODetails{}, errors.New("corrupted utxo record")
	}
	details := transaction.UTXODetails{}
	copy(details.Owner[:], value[1:1+transaction.AddressLength])
	details.Amount = new(big.Int).SetBytes(value[1+transaction.AddressLength : 1+transaction.AddressLength+transaction.ValueLength])
	copy(details.Currency[:], value[1+transaction.AddressLength+transaction.ValueLength:])
	return value[0], details, nil
}

// Lookup implements transaction.UTXOSource.
func (s *BadgerStore) Lookup(blockNumber uint32, transactionNumber uint32, outputNumber uint8) (*transaction.UTXODetails, error) {
	key := prefixedKey(utxoIndexPrefix, makeKey(blockNumber, transactionNumber, outputNumber))
	var details transaction.UTXODetails
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return transaction.ErrUTXONotFound
		}
		if err != nil {
			return err
		}
		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		status, decoded, err := decodeUTXOValue(value)
		if err != nil {
			return err
		}
		if status != utxoStatusAvailable {
			return transaction.ErrUTXOAlreadySpent
		}
		details = decoded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &details, nil
}

// MarkSpent flips an available record to spent, keeping it around so later
// lookups distinguish AlreadySpent from NotFound.
func (s *BadgerStore) MarkSpent(blockNumber uint32, transactionNumber uint32, outputNumber uint8) error {
	key := prefixedKey(utxoIndexPrefix, makeKey(blockNumber, transactionNumber, outputNumber))
	orderKey := prefixedKey(orderIndexPrefix, makeKey(blockNumber, transactionNumber, outputNumber))
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return transaction.ErrUTXONotFound
		}
		if err != nil {
			return err
		}
		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		status, details, err := decodeUTXOValue(value)
		if err != nil {
			return err
		}
		if status != utxoStatusAvailable {
			return transaction.ErrUTXOAlreadySpent
		}
		if err := txn.Set(key, encodeUTXOValue(utxoStatusSpent, details)); err != nil {
			return err
		}
		// A spent order leaves the book.
		if err := txn.Delete(orderKey); err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		return nil
	})
}

// MarkAvailable records a freshly created output.
func (s *BadgerStore) MarkAvailable(blockNumber uint32, transactionNumber uint32, outputNumber uint8, details transaction.UTXODetails) error {
	key := prefixedKey(utxoIndexPrefix, makeKey(blockNumber, transactionNumber, outputNumber))
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, encodeUTXOValue(utxoStatusAvailable, details))
	})
}

// Remove erases a record and any attached order metadata.
func (s *BadgerStore) Remove(blockNumber uint32, transactionNumber uint32, outputNumber uint8) error {
	key := prefixedKey(utxoIndexPrefix, makeKey(blockNumber, transactionNumber, outputNumber))
	orderKey := prefixedKey(orderIndexPrefix, makeKey(blockNumber, transactionNumber, outputNumber))
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(key); err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		if err := txn.Delete(orderKey); err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		return nil
	})
}

// MarkOrder attaches order metadata to an available output.
func (s *BadgerStore) MarkOrder(blockNumber uint32, transactionNumber uint32, outputNumber uint8, price *big.Int, askCurrency ethcommon.Address) error {
	key := prefixedKey(orderIndexPrefix, makeKey(blockNumber, transactionNumber, outputNumber))
	value := make([]byte, 0, orderValueLength)
	value = append(value, ethcommon.LeftPadBytes(price.Bytes(), transaction.ValueLength)...)
	value = append(value, askCurrency[:]...)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// ListByOwner scans the utxo prefix for unspent outputs owned by owner.
func (s *BadgerStore) ListByOwner(owner ethcommon.Address) ([]Record, error) {
	records := make([]Record, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(utxoIndexPrefix); it.ValidForPrefix(utxoIndexPrefix); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			status, details, err := decodeUTXOValue(value)
			if err != nil {
				return err
			}
			if status != utxoStatusAvailable || details.Owner != owner {
				continue
			}
			key := utxoKey{}
			copy(key[:], item.Key()[len(utxoIndexPrefix):])
			blockNumber, transactionNumber, outputNumber := key.components()
			records = append(records, Record{
				BlockNumber:       blockNumber,
				TransactionNumber: transactionNumber,
				OutputNumber:      outputNumber,
				Owner:             details.Owner,
				Amount:            details.Amount,
				Currency:          details.Currency,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// ListOrders scans the order prefix and joins each entry with its UTXO
// record.
func (s *BadgerStore) ListOrders() ([]OrderRecord, error) {
	orders := make([]OrderRecord, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(orderIndexPrefix); it.ValidForPrefix(orderIndexPrefix); it.Next() {
			item := it.Item()
			orderValue, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if len(orderValue) != orderValueLength {
				return errors.New("corrupted order record")
			}
			key := utxoKey{}
			copy(key[:], item.Key()[len(orderIndexPrefix):])
			utxoItem, err := txn.Get(prefixedKey(utxoIndexPrefix, key))
			if err != nil {
				return err
			}
			utxoValue, err := utxoItem.ValueCopy(nil)
			if err != nil {
				return err
			}
			status, details, err := decodeUTXOValue(utxoValue)
			if err != nil {
				return err
			}
			if status != utxoStatusAvailable {
				continue
			}
			blockNumber, transactionNumber, outputNumber := key.components()
			order := OrderRecord{
				Record: Record{
					BlockNumber:       blockNumber,
					TransactionNumber: transactionNumber,
					OutputNumber:      outputNumber,
					Owner:             details.Owner,
					Amount:            details.Amount,
					Currency:          details.Currency,
				},
				Price: new(big.Int).SetBytes(orderValue[:transaction.ValueLength]),
			}
			copy(order.AskCurrency[:], orderValue[transaction.ValueLength:])
			orders = append(orders, order)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// SaveBlock archives a serialized submitted block for later proof queries.
func (s *BadgerStore) SaveBlock(blockNumber uint32, raw []byte) error {
	key := prefixedKey(blockIndexPrefix, makeKey(blockNumber, 0, 0))[:len(blockIndexPrefix)+transaction.BlockNumberLength]
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, raw)
	})
}

// GetBlock loads an archived block; returns nil bytes if absent.
func (s *BadgerStore) GetBlock(blockNumber uint32) ([]byte, error) {
	key := prefixedKey(blockIndexPrefix, makeKey(blockNumber, 0, 0))[:len(blockIndexPrefix)+transaction.BlockNumberLength]
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return raw, nil
}
