package utxostore

import (
	"math/big"
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/pdexchain/plasmadex/transaction"
)

type memoryEntry struct {
	details transaction.UTXODetails
	spent   bool
	order   bool
	price   *big.Int
	ask     ethcommon.Address
}

// MemoryStore is a map-backed Store guarded by a RWMutex. Spent outputs are
// retained so that a second spend attempt resolves to AlreadySpent rather
// than NotFound.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[utxoKey]*memoryEntry
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[utxoKey]*memoryEntry)}
}

// Lookup implements transaction.UTXOSource.
func (s *MemoryStore) Lookup(blockNumber uint32, transactionNumber uint32, outputNumber uint8) (*transaction.UTXODetails, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[makeKey(blockNumber, transactionNumber, outputNumber)]
	if !ok {
		return nil, transaction.ErrUTXONotFound
	}
	if entry.spent {
		return nil, transaction.ErrUTXOAlreadySpent
	}
	details := entry.details
	details.Amount = new(big.Int).Set(entry.details.Amount)
	return &details, nil
}

// MarkSpent consumes an available output.
func (s *MemoryStore) MarkSpent(blockNumber uint32, transactionNumber uint32, outputNumber uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[makeKey(blockNumber, transactionNumber, outputNumber)]
	if !ok {
		return transaction.ErrUTXONotFound
	}
	if entry.spent {
		return transaction.ErrUTXOAlreadySpent
	}
	entry.spent = true
	return nil
}

// MarkAvailable records a freshly created output.
func (s *MemoryStore) MarkAvailable(blockNumber uint32, transactionNumber uint32, outputNumber uint8, details transaction.UTXODetails) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := details
	stored.Amount = new(big.Int).Set(details.Amount)
	s.entries[makeKey(blockNumber, transactionNumber, outputNumber)] = &memoryEntry{details: stored}
	return nil
}

// Remove erases a record entirely.
func (s *MemoryStore) Remove(blockNumber uint32, transactionNumber uint32, outputNumber uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, makeKey(blockNumber, transactionNumber, outputNumber))
	return nil
}

// MarkOrder attaches order metadata to an available output.
func (s *MemoryStore) MarkOrder(blockNumber uint32, transactionNumber uint32, outputNumber uint8, price *big.Int, askCurrency ethcommon.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[makeKey(blockNumber, transactionNumber, outputNumber)]
	if !ok {
		return transaction.ErrUTXONotFound
	}
	entry.order = true
	entry.price = new(big.Int).Set(price)
	entry.ask = askCurrency
	return nil
}

// ListByOwner returns every unspent output owned by owner.
func (s *MemoryStore) ListByOwner(owner ethcommon.Address) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := make([]Record, 0)
	for key, entry := range s.entries {
		if entry.spent || entry.details.Owner != owner {
			continue
		}
		records = append(records, s.recordForEntry(key, entry))
	}
	return records, nil
}

// ListOrders returns every unspent order-creation output.
func (s *MemoryStore) ListOrders() ([]OrderRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	orders := make([]OrderRecord, 0)
	for key, entry := range s.entries {
		if entry.spent || !entry.order {
			continue
		}
		orders = append(orders, OrderRecord{
			Record:      s.recordForEntry(key, entry),
			Price:       new(big.Int).Set(entry.price),
			AskCurrency: entry.ask,
		})
	}
	return orders, nil
}

func (s *MemoryStore) recordForEntry(key utxoKey, entry *memoryEntry) Record {
	blockNumber, transactionNumber, outputNumber := key.components()
	return Record{
		BlockNumber:       blockNumber,
		TransactionNumber: transactionNumber,
		OutputNumber:      outputNumber,
		Owner:             entry.details.Owner,
		Amount:            new(big.Int).Set(entry.details.Amount),
		Currency:          entry.details.Currency,
	}
}
