package childchain

import (
	"context"
	"io"
	"math/big"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/pdexchain/plasmadex/block"
	"github.com/pdexchain/plasmadex/transaction"
	"github.com/pdexchain/plasmadex/types"
	"github.com/pdexchain/plasmadex/utxostore"
)

type testAccount struct {
	key     []byte
	address ethcommon.Address
}

func newTestAccount(t *testing.T) testAccount {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return testAccount{
		key:     crypto.FromECDSA(key),
		address: crypto.PubkeyToAddress(key.PublicKey),
	}
}

type memoryArchive struct {
	blocks map[uint32][]byte
}

func newMemoryArchive() *memoryArchive {
	return &memoryArchive{blocks: make(map[uint32][]byte)}
}

func (a *memoryArchive) SaveBlock(blockNumber uint32, raw []byte) error {
	a.blocks[blockNumber] = raw
	return nil
}

func (a *memoryArchive) GetBlock(blockNumber uint32) ([]byte, error) {
	return a.blocks[blockNumber], nil
}

type recordingRootChain struct {
	submissions []uint32
}

func (r *recordingRootChain) SubmitBlock(blockNumber uint32, merkleRoot ethcommon.Hash, signature [65]byte) error {
	r.submissions = append(r.submissions, blockNumber)
	return nil
}

func newTestChain(t *testing.T) (*ChildChain, *recordingRootChain) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	rootChain := &recordingRootChain{}
	chain, err := New(context.Background(), utxostore.NewMemoryStore(), newMemoryArchive(),
		rootChain, NewMemoryCounter(1), log)
	require.NoError(t, err)
	return chain, rootChain
}

func TestDepositSpendSubmitFlow(t *testing.T) {
	operator := newTestAccount(t)
	alice := newTestAccount(t)
	bob := newTestAccount(t)
	chain, rootChain := newTestChain(t)

	require.Equal(t, uint32(1), chain.GetCurrentBlockNum())

	blknum, txindex, err := chain.ApplyDeposit(alice.address, big.NewInt(100), ethcommon.Address{})
	require.NoError(t, err)
	require.Equal(t, uint32(1), blknum)
	require.Equal(t, uint32(0), txindex)

	output, err := transaction.NewTransferOutput(bob.address, types.NewBigInt(90))
	require.NoError(t, err)
	change, err := transaction.NewTransferOutput(alice.address, types.NewBigInt(10))
	require.NoError(t, err)
	tx, err := transaction.NewTransaction(
		transaction.NewTransactionInput(1, 0, 0), nil,
		ethcommon.Address{}, output, change, types.NewBigInt(0))
	require.NoError(t, err)
	require.NoError(t, tx.Sign(1, alice.key))

	blknum, txindex, err = chain.ApplyTransaction(tx)
	require.NoError(t, err)
	require.Equal(t, uint32(1), blknum)
	require.Equal(t, uint32(1), txindex)

	number, root, err := chain.SubmitBlock(context.Background(), operator.key)
	require.NoError(t, err)
	require.Equal(t, uint32(1), number)
	require.NotEqual(t, ethcommon.Hash{}, root)
	require.Equal(t, []uint32{1}, rootChain.submissions)

	// A fresh block is open and chained to the submitted header.
	require.Equal(t, uint32(2), chain.GetCurrentBlockNum())
	require.Equal(t, block.StateOpen, chain.GetCurrentBlock().GetState())

	// The submitted block is served from the archive with its transactions.
	archived, err := chain.GetBlock(1)
	require.NoError(t, err)
	require.Equal(t, block.StateSubmitted, archived.GetState())
	fetched, err := chain.GetTransaction(1, 1)
	require.NoError(t, err)
	signer, err := fetched.SignerOfSlot(1)
	require.NoError(t, err)
	require.Equal(t, alice.address, signer)
}

func TestBalancesTrackSpends(t *testing.T) {
	alice := newTestAccount(t)
	bob := newTestAccount(t)
	chain, _ := newTestChain(t)
	eth := ethcommon.Address{}.Hex()

	_, _, err := chain.ApplyDeposit(alice.address, big.NewInt(100), ethcommon.Address{})
	require.NoError(t, err)

	balances, err := chain.GetBalances(alice.address)
	require.NoError(t, err)
	require.Equal(t, int64(100), balances[eth].Int64())

	output, err := transaction.NewTransferOutput(bob.address, types.NewBigInt(60))
	require.NoError(t, err)
	change, err := transaction.NewTransferOutput(alice.address, types.NewBigInt(40))
	require.NoError(t, err)
	tx, err := transaction.NewTransaction(
		transaction.NewTransactionInput(1, 0, 0), nil,
		ethcommon.Address{}, output, change, types.NewBigInt(0))
	require.NoError(t, err)
	require.NoError(t, tx.Sign(1, alice.key))
	_, _, err = chain.ApplyTransaction(tx)
	require.NoError(t, err)

	balances, err = chain.GetBalances(alice.address)
	require.NoError(t, err)
	require.Equal(t, int64(40), balances[eth].Int64())
	balances, err = chain.GetBalances(bob.address)
	require.NoError(t, err)
	require.Equal(t, int64(60), balances[eth].Int64())

	utxos, err := chain.ListUTXOs(bob.address)
	require.NoError(t, err)
	require.Len(t, utxos, 1)
	require.Equal(t, uint32(1), utxos[0].TransactionNumber)
}

func TestOrderOutputsAppearOnTheBook(t *testing.T) {
	alice := newTestAccount(t)
	chain, _ := newTestChain(t)
	askCurrency := ethcommon.HexToAddress("0x00000000000000000000000000000000deadbeef")

	_, _, err := chain.ApplyDeposit(alice.address, big.NewInt(100), ethcommon.Address{})
	require.NoError(t, err)

	order, err := transaction.NewOrderOutput(alice.address, types.NewBigInt(100), types.NewBigInt(3), askCurrency)
	require.NoError(t, err)
	tx, err := transaction.NewTransaction(
		transaction.NewTransactionInput(1, 0, 0), nil,
		ethcommon.Address{}, order, nil, types.NewBigInt(0))
	require.NoError(t, err)
	require.NoError(t, tx.Sign(1, alice.key))
	_, _, err = chain.ApplyTransaction(tx)
	require.NoError(t, err)

	orders, err := chain.GetOpenOrders()
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Equal(t, alice.address, orders[0].Owner)
	require.Equal(t, int64(3), orders[0].Price.Int64())
	require.Equal(t, askCurrency, orders[0].AskCurrency)

	// Spending the order output cancels it.
	cancel, err := transaction.NewTransferOutput(alice.address, types.NewBigInt(100))
	require.NoError(t, err)
	cancelTx, err := transaction.NewTransaction(
		transaction.NewTransactionInput(1, 1, 0), nil,
		ethcommon.Address{}, cancel, nil, types.NewBigInt(0))
	require.NoError(t, err)
	require.NoError(t, cancelTx.Sign(1, alice.key))
	_, _, err = chain.ApplyTransaction(cancelTx)
	require.NoError(t, err)

	orders, err = chain.GetOpenOrders()
	require.NoError(t, err)
	require.Empty(t, orders)
}

func TestInvalidTransactionIsRejected(t *testing.T) {
	alice := newTestAccount(t)
	mallory := newTestAccount(t)
	chain, _ := newTestChain(t)

	_, _, err := chain.ApplyDeposit(alice.address, big.NewInt(100), ethcommon.Address{})
	require.NoError(t, err)

	output, err := transaction.NewTransferOutput(mallory.address, types.NewBigInt(100))
	require.NoError(t, err)
	tx, err := transaction.NewTransaction(
		transaction.NewTransactionInput(1, 0, 0), nil,
		ethcommon.Address{}, output, nil, types.NewBigInt(0))
	require.NoError(t, err)
	require.NoError(t, tx.Sign(1, mallory.key))
	_, _, err = chain.ApplyTransaction(tx)
	require.ErrorIs(t, err, transaction.ErrSignatureMismatch)
	require.Equal(t, 1, chain.GetCurrentBlock().NumberOfTransactions())
}

func TestDepositShapedTransactionFromClientIsRejected(t *testing.T) {
	mallory := newTestAccount(t)
	chain, _ := newTestChain(t)

	// Both inputs null and a single output is the deposit form, which skips
	// signature and conservation checks. Only the operator may create it.
	output, err := transaction.NewTransferOutput(mallory.address, types.NewBigInt(1000000000))
	require.NoError(t, err)
	forged, err := transaction.NewTransaction(nil, nil, ethcommon.Address{}, output, nil, types.NewBigInt(0))
	require.NoError(t, err)
	require.True(t, forged.IsDeposit())

	_, _, err = chain.ApplyTransaction(forged)
	require.ErrorIs(t, err, ErrDepositNotAllowed)
	require.Equal(t, 0, chain.GetCurrentBlock().NumberOfTransactions())

	balances, err := chain.GetBalances(mallory.address)
	require.NoError(t, err)
	require.Empty(t, balances)

	// The operator path still works.
	_, _, err = chain.ApplyDeposit(mallory.address, big.NewInt(5), ethcommon.Address{})
	require.NoError(t, err)
}

func TestGetBlockUnknownNumber(t *testing.T) {
	chain, _ := newTestChain(t)
	_, err := chain.GetBlock(42)
	require.ErrorIs(t, err, ErrBlockNotFound)
}

func TestCrossBlockSpend(t *testing.T) {
	operator := newTestAccount(t)
	alice := newTestAccount(t)
	bob := newTestAccount(t)
	chain, _ := newTestChain(t)

	_, _, err := chain.ApplyDeposit(alice.address, big.NewInt(100), ethcommon.Address{})
	require.NoError(t, err)
	_, _, err = chain.SubmitBlock(context.Background(), operator.key)
	require.NoError(t, err)

	// The deposit committed in block 1 is spendable in block 2, and the
	// reported position matches the block the spend actually landed in.
	output, err := transaction.NewTransferOutput(bob.address, types.NewBigInt(100))
	require.NoError(t, err)
	tx, err := transaction.NewTransaction(
		transaction.NewTransactionInput(1, 0, 0), nil,
		ethcommon.Address{}, output, nil, types.NewBigInt(0))
	require.NoError(t, err)
	require.NoError(t, tx.Sign(1, alice.key))
	blknum, txindex, err := chain.ApplyTransaction(tx)
	require.NoError(t, err)
	require.Equal(t, uint32(2), blknum)
	require.Equal(t, uint32(0), txindex)
	require.Equal(t, uint32(2), chain.GetCurrentBlockNum())

	fetched, err := chain.GetTransaction(blknum, txindex)
	require.NoError(t, err)
	signer, err := fetched.SignerOfSlot(1)
	require.NoError(t, err)
	require.Equal(t, alice.address, signer)
}

func TestMemoryCounter(t *testing.T) {
	counter := NewMemoryCounter(0)
	current, err := counter.Current(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint32(1), current)
	next, err := counter.Increment(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint32(2), next)
}
