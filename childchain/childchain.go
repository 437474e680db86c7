// Package childchain wires the transaction, block and storage components
// into the operator's chain service. The service is an explicitly
// constructed object passed to each RPC handler; there is no package-global
// chain state.
package childchain

import (
	"context"
	"math/big"
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/pdexchain/plasmadex/block"
	"github.com/pdexchain/plasmadex/transaction"
	"github.com/pdexchain/plasmadex/types"
	"github.com/pdexchain/plasmadex/utxostore"
)

var (
	ErrBlockNotFound     = errors.New("block is not known")
	ErrDepositNotAllowed = errors.New("deposit transactions can only originate from the operator")
)

// BlockArchive persists serialized submitted blocks for proof queries.
type BlockArchive interface {
	SaveBlock(blockNumber uint32, raw []byte) error
	GetBlock(blockNumber uint32) ([]byte, error)
}

// ChildChain is the operator service: it owns the single open block, the
// UTXO state and the submitted-block archive. ApplyTransaction calls for the
// open block serialize inside the block's own mutex; the chain-level mutex
// only guards swapping the open block at submission time.
type ChildChain struct {
	mu           sync.RWMutex
	log          *logrus.Logger
	store        utxostore.Store
	archive      BlockArchive
	rootChain    RootChain
	counter      Counter
	currentBlock *block.Block
	lastHash     ethcommon.Hash
}

// New constructs the chain service and opens the first block at the
// counter's current number.
func New(ctx context.Context, store utxostore.Store, archive BlockArchive,
	rootChain RootChain, counter Counter, log *logrus.Logger) (*ChildChain, error) {
	number, err := counter.Current(ctx)
	if err != nil {
		return nil, err
	}
	chain := &ChildChain{
		log:          log,
		store:        store,
		archive:      archive,
		rootChain:    rootChain,
		counter:      counter,
		currentBlock: block.NewBlock(number, ethcommon.Hash{}),
	}
	log.WithField("blockNumber", number).Info("child chain started")
	return chain, nil
}

// ApplyTransaction validates tx against current state and includes it in the
// open block, returning the block number and txindex it was included at.
// Deposit-shaped transactions are rejected: they are exempt from signature
// and conservation checks, so accepting them from clients would mint value.
// Deposits enter through ApplyDeposit only.
func (chain *ChildChain) ApplyTransaction(tx *transaction.Transaction) (uint32, uint32, error) {
	if tx.IsDeposit() {
		return 0, 0, ErrDepositNotAllowed
	}
	return chain.applyTransaction(tx)
}

func (chain *ChildChain) applyTransaction(tx *transaction.Transaction) (uint32, uint32, error) {
	chain.mu.RLock()
	current := chain.currentBlock
	chain.mu.RUnlock()

	txindex, err := current.ApplyTransaction(tx, chain.store)
	if err != nil {
		return 0, 0, err
	}
	// Order outputs additionally go on the book. Matching and settlement
	// are handled by chain-level order-book logic, not here.
	for oindex, output := range tx.Outputs() {
		if !output.IsOrder() {
			continue
		}
		err := chain.store.MarkOrder(current.GetNumber(), txindex, uint8(oindex),
			output.GetOrderPrice().Bigint, output.GetOrderCurrency())
		if err != nil {
			chain.log.WithError(err).Warn("could not index order output")
		}
	}
	chain.log.WithFields(logrus.Fields{
		"blockNumber": current.GetNumber(),
		"txindex":     txindex,
	}).Debug("transaction applied")
	// The number comes from the block the transaction actually landed in,
	// not from a separate read that could race with block submission.
	return current.GetNumber(), txindex, nil
}

// ApplyDeposit turns a root-chain deposit event into a deposit-originated
// transaction (both inputs null, single output) and includes it in the open
// block.
func (chain *ChildChain) ApplyDeposit(owner ethcommon.Address, amount *big.Int, currency ethcommon.Address) (uint32, uint32, error) {
	output, err := transaction.NewTransferOutput(owner, &types.BigInt{Bigint: amount})
	if err != nil {
		return 0, 0, err
	}
	tx, err := transaction.NewTransaction(nil, nil, currency, output, nil, types.NewBigInt(0))
	if err != nil {
		return 0, 0, err
	}
	blockNumber, txindex, err := chain.applyTransaction(tx)
	if err != nil {
		return 0, 0, err
	}
	chain.log.WithFields(logrus.Fields{
		"owner":  owner.Hex(),
		"amount": amount.String(),
	}).Info("deposit applied")
	return blockNumber, txindex, nil
}

// SubmitBlock merklizes and signs the open block with the operator key,
// submits its root to the root chain, archives the block and opens the next
// one. Returns the submitted block's number and root.
func (chain *ChildChain) SubmitBlock(ctx context.Context, privateKey []byte) (uint32, ethcommon.Hash, error) {
	chain.mu.Lock()
	defer chain.mu.Unlock()

	current := chain.currentBlock
	root, err := current.Merklize()
	if err != nil {
		return 0, ethcommon.Hash{}, err
	}
	if err := current.Sign(privateKey); err != nil {
		return 0, ethcommon.Hash{}, err
	}
	number, root, sig, err := current.SubmissionTuple()
	if err != nil {
		return 0, ethcommon.Hash{}, err
	}
	if err := chain.rootChain.SubmitBlock(number, root, sig); err != nil {
		return 0, ethcommon.Hash{}, errors.Wrap(err, "root chain rejected the block")
	}
	if err := current.MarkSubmitted(); err != nil {
		return 0, ethcommon.Hash{}, err
	}
	raw, err := current.Serialize()
	if err != nil {
		return 0, ethcommon.Hash{}, err
	}
	if err := chain.archive.SaveBlock(number, raw); err != nil {
		return 0, ethcommon.Hash{}, errors.Wrap(err, "could not archive the block")
	}

	nextNumber, err := chain.counter.Increment(ctx)
	if err != nil {
		return 0, ethcommon.Hash{}, err
	}
	header, err := current.GetHeader()
	if err != nil {
		return 0, ethcommon.Hash{}, err
	}
	chain.lastHash = header.GetHash()
	chain.currentBlock = block.NewBlock(nextNumber, chain.lastHash)
	chain.log.WithFields(logrus.Fields{
		"blockNumber": number,
		"merkleRoot":  root.Hex(),
		"nextBlock":   nextNumber,
	}).Info("block submitted")
	return number, root, nil
}

// GetCurrentBlock returns the open block.
func (chain *ChildChain) GetCurrentBlock() *block.Block {
	chain.mu.RLock()
	defer chain.mu.RUnlock()
	return chain.currentBlock
}

// GetCurrentBlockNum returns the open block's number.
func (chain *ChildChain) GetCurrentBlockNum() uint32 {
	return chain.GetCurrentBlock().GetNumber()
}

// GetBlock returns the block with the given number: the open block, or a
// submitted one reconstructed from the archive.
func (chain *ChildChain) GetBlock(blockNumber uint32) (*block.Block, error) {
	chain.mu.RLock()
	current := chain.currentBlock
	chain.mu.RUnlock()
	if current.GetNumber() == blockNumber {
		return current, nil
	}
	raw, err := chain.archive.GetBlock(blockNumber)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, ErrBlockNotFound
	}
	return block.NewBlockFromBytes(raw)
}

// GetTransaction returns the transaction at txindex of block blknum.
func (chain *ChildChain) GetTransaction(blockNumber uint32, txindex uint32) (*transaction.Transaction, error) {
	b, err := chain.GetBlock(blockNumber)
	if err != nil {
		return nil, err
	}
	return b.GetTransaction(txindex)
}

// GetBalances sums the owner's unspent outputs per currency, keyed by the
// hex currency address.
func (chain *ChildChain) GetBalances(owner ethcommon.Address) (map[string]*big.Int, error) {
	records, err := chain.store.ListByOwner(owner)
	if err != nil {
		return nil, err
	}
	balances := make(map[string]*big.Int)
	for _, record := range records {
		key := record.Currency.Hex()
		if balances[key] == nil {
			balances[key] = big.NewInt(0)
		}
		balances[key].Add(balances[key], record.Amount)
	}
	return balances, nil
}

// ListUTXOs returns the owner's unspent outputs.
func (chain *ChildChain) ListUTXOs(owner ethcommon.Address) ([]utxostore.Record, error) {
	return chain.store.ListByOwner(owner)
}

// GetOpenOrders lists every unspent order-creation output.
func (chain *ChildChain) GetOpenOrders() ([]utxostore.OrderRecord, error) {
	return chain.store.ListOrders()
}
