package block

import (
	"sync"
	"sync/atomic"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/pdexchain/plasmadex/merkletree"
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

func depositFor(t *testing.T, owner testAccount, amount int64) *transaction.Transaction {
	t.Helper()
	output, err := transaction.NewTransferOutput(owner.address, types.NewBigInt(amount))
	require.NoError(t, err)
	tx, err := transaction.NewTransaction(nil, nil, ethcommon.Address{}, output, nil, types.NewBigInt(0))
	require.NoError(t, err)
	require.True(t, tx.IsDeposit())
	return tx
}

func spendFor(t *testing.T, from testAccount, to ethcommon.Address, blknum, txindex uint32, amount int64) *transaction.Transaction {
	t.Helper()
	output, err := transaction.NewTransferOutput(to, types.NewBigInt(amount))
	require.NoError(t, err)
	tx, err := transaction.NewTransaction(
		transaction.NewTransactionInput(blknum, txindex, 0), nil,
		ethcommon.Address{}, output, nil, types.NewBigInt(0))
	require.NoError(t, err)
	require.NoError(t, tx.Sign(1, from.key))
	return tx
}

func TestApplyAssignsSequentialIndexes(t *testing.T) {
	alice := newTestAccount(t)
	bob := newTestAccount(t)
	store := utxostore.NewMemoryStore()
	b := NewBlock(1, ethcommon.Hash{})

	txindex, err := b.ApplyTransaction(depositFor(t, alice, 100), store)
	require.NoError(t, err)
	require.Equal(t, uint32(0), txindex)

	txindex, err = b.ApplyTransaction(spendFor(t, alice, bob.address, 1, 0, 100), store)
	require.NoError(t, err)
	require.Equal(t, uint32(1), txindex)
	require.Equal(t, 2, b.NumberOfTransactions())

	// The deposit output was consumed within the same block.
	_, err = store.Lookup(1, 0, 0)
	require.ErrorIs(t, err, transaction.ErrUTXOAlreadySpent)
	details, err := store.Lookup(1, 1, 0)
	require.NoError(t, err)
	require.Equal(t, bob.address, details.Owner)
}

func TestDoubleSpendWithinBlockIsRejected(t *testing.T) {
	alice := newTestAccount(t)
	bob := newTestAccount(t)
	carol := newTestAccount(t)
	store := utxostore.NewMemoryStore()
	b := NewBlock(1, ethcommon.Hash{})

	_, err := b.ApplyTransaction(depositFor(t, alice, 100), store)
	require.NoError(t, err)
	_, err = b.ApplyTransaction(spendFor(t, alice, bob.address, 1, 0, 100), store)
	require.NoError(t, err)

	_, err = b.ApplyTransaction(spendFor(t, alice, carol.address, 1, 0, 100), store)
	require.ErrorIs(t, err, transaction.ErrUTXOAlreadySpent)
	require.Equal(t, 2, b.NumberOfTransactions())
}

func TestRejectedTransactionLeavesStateUntouched(t *testing.T) {
	alice := newTestAccount(t)
	bob := newTestAccount(t)
	store := utxostore.NewMemoryStore()
	b := NewBlock(1, ethcommon.Hash{})

	_, err := b.ApplyTransaction(depositFor(t, alice, 100), store)
	require.NoError(t, err)

	// References an output that does not exist.
	_, err = b.ApplyTransaction(spendFor(t, alice, bob.address, 1, 7, 100), store)
	require.ErrorIs(t, err, transaction.ErrUTXONotFound)
	require.Equal(t, 1, b.NumberOfTransactions())

	details, err := store.Lookup(1, 0, 0)
	require.NoError(t, err)
	require.Equal(t, alice.address, details.Owner)
}

func TestCapacityIsEnforced(t *testing.T) {
	alice := newTestAccount(t)
	store := utxostore.NewMemoryStore()
	b := NewBlockWithCapacity(1, ethcommon.Hash{}, 2)

	_, err := b.ApplyTransaction(depositFor(t, alice, 1), store)
	require.NoError(t, err)
	_, err = b.ApplyTransaction(depositFor(t, alice, 2), store)
	require.NoError(t, err)
	_, err = b.ApplyTransaction(depositFor(t, alice, 3), store)
	require.ErrorIs(t, err, ErrBlockFull)
}

func TestMerklizeClosesBlock(t *testing.T) {
	alice := newTestAccount(t)
	store := utxostore.NewMemoryStore()
	b := NewBlock(1, ethcommon.Hash{})

	deposit := depositFor(t, alice, 100)
	_, err := b.ApplyTransaction(deposit, store)
	require.NoError(t, err)

	root, err := b.Merklize()
	require.NoError(t, err)
	require.Equal(t, StateMerklized, b.GetState())

	// Idempotent: re-merklizing returns the same root.
	again, err := b.Merklize()
	require.NoError(t, err)
	require.Equal(t, root, again)

	_, err = b.ApplyTransaction(depositFor(t, alice, 1), store)
	require.ErrorIs(t, err, ErrBlockClosed)

	leaf, err := deposit.MerkleHash()
	require.NoError(t, err)
	proof, err := b.CreateMembershipProof(0)
	require.NoError(t, err)
	require.True(t, merkletree.Verify(leaf, 0, proof, root))
}

func TestQueriesFailBeforeMerklize(t *testing.T) {
	b := NewBlock(1, ethcommon.Hash{})
	_, err := b.MerkleRoot()
	require.ErrorIs(t, err, ErrNotMerklized)
	_, err = b.CreateMembershipProof(0)
	require.ErrorIs(t, err, ErrNotMerklized)
	_, err = b.GetHeader()
	require.ErrorIs(t, err, ErrNotMerklized)
	require.ErrorIs(t, b.Sign(newTestAccount(t).key), ErrNotMerklized)
}

func TestSubmissionRequiresSignature(t *testing.T) {
	operator := newTestAccount(t)
	alice := newTestAccount(t)
	store := utxostore.NewMemoryStore()
	b := NewBlock(1, ethcommon.Hash{})

	_, err := b.ApplyTransaction(depositFor(t, alice, 100), store)
	require.NoError(t, err)
	root, err := b.Merklize()
	require.NoError(t, err)

	_, _, _, err = b.SubmissionTuple()
	require.ErrorIs(t, err, ErrNotSigned)
	require.ErrorIs(t, b.MarkSubmitted(), ErrNotSigned)

	require.NoError(t, b.Sign(operator.key))
	require.Equal(t, StateSigned, b.GetState())

	number, tupleRoot, _, err := b.SubmissionTuple()
	require.NoError(t, err)
	require.Equal(t, uint32(1), number)
	require.Equal(t, root, tupleRoot)

	header, err := b.GetHeader()
	require.NoError(t, err)
	signer, err := header.GetFrom()
	require.NoError(t, err)
	require.Equal(t, operator.address, signer)

	require.NoError(t, b.MarkSubmitted())
	require.Equal(t, StateSubmitted, b.GetState())
}

func TestSerializeRoundTrip(t *testing.T) {
	operator := newTestAccount(t)
	alice := newTestAccount(t)
	bob := newTestAccount(t)
	store := utxostore.NewMemoryStore()
	b := NewBlock(3, crypto.Keccak256Hash([]byte("previous")))

	_, err := b.ApplyTransaction(depositFor(t, alice, 100), store)
	require.NoError(t, err)
	_, err = b.ApplyTransaction(spendFor(t, alice, bob.address, 3, 0, 100), store)
	require.NoError(t, err)

	root, err := b.Merklize()
	require.NoError(t, err)
	require.NoError(t, b.Sign(operator.key))

	raw, err := b.Serialize()
	require.NoError(t, err)

	restored, err := NewBlockFromBytes(raw)
	require.NoError(t, err)
	require.Equal(t, uint32(3), restored.GetNumber())
	require.Equal(t, StateSubmitted, restored.GetState())
	require.Equal(t, 2, restored.NumberOfTransactions())

	restoredRoot, err := restored.MerkleRoot()
	require.NoError(t, err)
	require.Equal(t, root, restoredRoot)

	// Proofs from the restored block verify against the original root.
	tx, err := restored.GetTransaction(1)
	require.NoError(t, err)
	leaf, err := tx.MerkleHash()
	require.NoError(t, err)
	proof, err := restored.CreateMembershipProof(1)
	require.NoError(t, err)
	require.True(t, merkletree.Verify(leaf, 1, proof, root))
}

func TestSerializeFailsUnsigned(t *testing.T) {
	alice := newTestAccount(t)
	store := utxostore.NewMemoryStore()
	b := NewBlock(1, ethcommon.Hash{})
	_, err := b.ApplyTransaction(depositFor(t, alice, 100), store)
	require.NoError(t, err)

	_, err = b.Serialize()
	require.ErrorIs(t, err, ErrNotMerklized)
	_, err = b.Merklize()
	require.NoError(t, err)
	_, err = b.Serialize()
	require.ErrorIs(t, err, ErrNotSigned)
}

// failingStore injects storage errors at chosen mark calls.
type failingStore struct {
	*utxostore.MemoryStore
	failSpendAt     int
	spendCalls      int
	failAvailableAt int
	availableCalls  int
}

func (s *failingStore) MarkSpent(blockNumber uint32, transactionNumber uint32, outputNumber uint8) error {
	s.spendCalls++
	if s.failSpendAt != 0 && s.spendCalls == s.failSpendAt {
		return errors.New("storage write failed")
	}
	return s.MemoryStore.MarkSpent(blockNumber, transactionNumber, outputNumber)
}

func (s *failingStore) MarkAvailable(blockNumber uint32, transactionNumber uint32, outputNumber uint8, details transaction.UTXODetails) error {
	s.availableCalls++
	if s.failAvailableAt != 0 && s.availableCalls == s.failAvailableAt {
		return errors.New("storage write failed")
	}
	return s.MemoryStore.MarkAvailable(blockNumber, transactionNumber, outputNumber, details)
}

func twoInputSpend(t *testing.T, from testAccount, to ethcommon.Address) *transaction.Transaction {
	t.Helper()
	output, err := transaction.NewTransferOutput(to, types.NewBigInt(60))
	require.NoError(t, err)
	change, err := transaction.NewTransferOutput(from.address, types.NewBigInt(40))
	require.NoError(t, err)
	tx, err := transaction.NewTransaction(
		transaction.NewTransactionInput(1, 0, 0),
		transaction.NewTransactionInput(1, 1, 0),
		ethcommon.Address{}, output, change, types.NewBigInt(0))
	require.NoError(t, err)
	require.NoError(t, tx.Sign(1, from.key))
	require.NoError(t, tx.Sign(2, from.key))
	return tx
}

func TestStorageFailureRestoresSpentInputs(t *testing.T) {
	alice := newTestAccount(t)
	bob := newTestAccount(t)
	// Two deposit outputs, then the second MarkSpent of the spend fails.
	store := &failingStore{MemoryStore: utxostore.NewMemoryStore(), failSpendAt: 2}
	b := NewBlock(1, ethcommon.Hash{})
	_, err := b.ApplyTransaction(depositFor(t, alice, 60), store)
	require.NoError(t, err)
	_, err = b.ApplyTransaction(depositFor(t, alice, 40), store)
	require.NoError(t, err)

	_, err = b.ApplyTransaction(twoInputSpend(t, alice, bob.address), store)
	require.Error(t, err)
	require.Equal(t, 2, b.NumberOfTransactions())

	// Both inputs are spendable again.
	for _, txindex := range []uint32{0, 1} {
		details, err := store.Lookup(1, txindex, 0)
		require.NoError(t, err)
		require.Equal(t, alice.address, details.Owner)
	}
}

func TestStorageFailureRemovesCreatedOutputs(t *testing.T) {
	alice := newTestAccount(t)
	bob := newTestAccount(t)
	// Calls 1 and 2 are the deposit outputs; 3 and 4 are the spend's
	// outputs, the last of which fails.
	store := &failingStore{MemoryStore: utxostore.NewMemoryStore(), failAvailableAt: 4}
	b := NewBlock(1, ethcommon.Hash{})
	_, err := b.ApplyTransaction(depositFor(t, alice, 60), store)
	require.NoError(t, err)
	_, err = b.ApplyTransaction(depositFor(t, alice, 40), store)
	require.NoError(t, err)

	_, err = b.ApplyTransaction(twoInputSpend(t, alice, bob.address), store)
	require.Error(t, err)
	require.Equal(t, 2, b.NumberOfTransactions())

	// The first output of the rejected transaction is gone, not spendable
	// and not a phantom spent record.
	_, err = store.Lookup(1, 2, 0)
	require.ErrorIs(t, err, transaction.ErrUTXONotFound)
	// Inputs are restored.
	for _, txindex := range []uint32{0, 1} {
		_, err := store.Lookup(1, txindex, 0)
		require.NoError(t, err)
	}
}

func TestSubmittedBlockCannotBeResigned(t *testing.T) {
	operator := newTestAccount(t)
	intruder := newTestAccount(t)
	alice := newTestAccount(t)
	store := utxostore.NewMemoryStore()
	b := NewBlock(1, ethcommon.Hash{})
	_, err := b.ApplyTransaction(depositFor(t, alice, 100), store)
	require.NoError(t, err)
	_, err = b.Merklize()
	require.NoError(t, err)
	require.NoError(t, b.Sign(operator.key))
	require.NoError(t, b.MarkSubmitted())

	_, _, sigBefore, err := b.SubmissionTuple()
	require.NoError(t, err)
	require.ErrorIs(t, b.Sign(intruder.key), ErrBlockSubmitted)
	_, _, sigAfter, err := b.SubmissionTuple()
	require.NoError(t, err)
	require.Equal(t, sigBefore, sigAfter)
}

func TestConcurrentDoubleSpendAdmitsOneWinner(t *testing.T) {
	alice := newTestAccount(t)
	store := utxostore.NewMemoryStore()
	b := NewBlock(1, ethcommon.Hash{})
	_, err := b.ApplyTransaction(depositFor(t, alice, 100), store)
	require.NoError(t, err)

	const contenders = 16
	spends := make([]*transaction.Transaction, contenders)
	for i := range spends {
		spends[i] = spendFor(t, alice, newTestAccount(t).address, 1, 0, 100)
	}

	var wg sync.WaitGroup
	var accepted int32
	for _, tx := range spends {
		wg.Add(1)
		go func(tx *transaction.Transaction) {
			defer wg.Done()
			if _, err := b.ApplyTransaction(tx, store); err == nil {
				atomic.AddInt32(&accepted, 1)
			}
		}(tx)
	}
	wg.Wait()

	require.Equal(t, int32(1), accepted)
	require.Equal(t, 2, b.NumberOfTransactions())
}

func TestCorruptedSerializationIsRejected(t *testing.T) {
	operator := newTestAccount(t)
	alice := newTestAccount(t)
	store := utxostore.NewMemoryStore()
	b := NewBlock(1, ethcommon.Hash{})
	_, err := b.ApplyTransaction(depositFor(t, alice, 100), store)
	require.NoError(t, err)
	_, err = b.Merklize()
	require.NoError(t, err)
	require.NoError(t, b.Sign(operator.key))

	raw, err := b.Serialize()
	require.NoError(t, err)

	// Flip a byte in the committed root so the rebuilt tree cannot match.
	corrupted := make([]byte, len(raw))
	copy(corrupted, raw)
	corrupted[transaction.BlockNumberLength+transaction.TransactionNumberLength+ethcommon.HashLength] ^= 0x01
	_, err = NewBlockFromBytes(corrupted)
	require.Error(t, err)

	_, err = NewBlockFromBytes(raw[:10])
	require.Error(t, err)
}
