package block

import (
	"bytes"
	"io"
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/pdexchain/plasmadex/merkletree"
	"github.com/pdexchain/plasmadex/transaction"
)

// DefaultCapacity is the per-block transaction cap, matching the Merkle tree
// leaf capacity at the default depth.
const DefaultCapacity = 1 << merkletree.DefaultDepth

// State is the block lifecycle stage. Transitions only move forward:
// Open -> Merklized -> Signed -> Submitted.
type State int

const (
	StateOpen State = iota
	StateMerklized
	StateSigned
	StateSubmitted
)

var (
	ErrBlockFull       = errors.New("block transaction cap reached")
	ErrBlockClosed     = errors.New("block no longer accepts transactions")
	ErrBlockSubmitted  = errors.New("block is already submitted")
	ErrNotMerklized    = errors.New("block root has not been computed")
	ErrNotSigned       = errors.New("block is not signed")
	ErrIndexOutOfRange = errors.New("transaction index is out of range")
)

// UTXOState is the slice of chain state a block needs while accepting
// transactions: reference resolution plus spend/creation bookkeeping. Remove
// undoes a MarkAvailable when a later mark of the same transaction fails. The
// implementations live in the utxostore package.
type UTXOState interface {
	transaction.UTXOSource
	MarkSpent(blockNumber uint32, transactionNumber uint32, outputNumber uint8) error
	MarkAvailable(blockNumber uint32, transactionNumber uint32, outputNumber uint8, details transaction.UTXODetails) error
	Remove(blockNumber uint32, transactionNumber uint32, outputNumber uint8) error
}

// Block is an ordered set of transactions under one operator commitment. A
// transaction's position in the set is its txindex and its Merkle leaf
// position. All mutating calls serialize on an internal mutex; once a block
// leaves StateOpen it is immutable apart from the signature slot and safe
// for unbounded concurrent readers.
type Block struct {
	mu           sync.Mutex
	number       uint32
	previousHash ethcommon.Hash
	capacity     int
	state        State
	transactions []*transaction.Transaction
	tree         *merkletree.MerkleTree
	header       *BlockHeader
}

// NewBlock opens an empty block with the default capacity.
func NewBlock(number uint32, previousHash ethcommon.Hash) *Block {
	return NewBlockWithCapacity(number, previousHash, DefaultCapacity)
}

// NewBlockWithCapacity opens an empty block with an explicit transaction cap.
func NewBlockWithCapacity(number uint32, previousHash ethcommon.Hash, capacity int) *Block {
	if capacity <= 0 || capacity > DefaultCapacity {
		capacity = DefaultCapacity
	}
	return &Block{
		number:       number,
		previousHash: previousHash,
		capacity:     capacity,
		state:        StateOpen,
		transactions: make([]*transaction.Transaction, 0),
	}
}

// GetNumber returns the block number.
func (block *Block) GetNumber() uint32 {
	return block.number
}

// GetState returns the current lifecycle stage.
func (block *Block) GetState() State {
	block.mu.Lock()
	defer block.mu.Unlock()
	return block.state
}

// NumberOfTransactions returns the current transaction count.
func (block *Block) NumberOfTransactions() int {
	block.mu.Lock()
	defer block.mu.Unlock()
	return len(block.transactions)
}

// GetTransaction returns the transaction at txindex.
func (block *Block) GetTransaction(txindex uint32) (*transaction.Transaction, error) {
	block.mu.Lock()
	defer block.mu.Unlock()
	if int(txindex) >= len(block.transactions) {
		return nil, ErrIndexOutOfRange
	}
	return block.transactions[txindex], nil
}

// ApplyTransaction validates tx against state, appends it, assigns and
// returns its txindex, and updates state: referenced inputs become spent and
// produced outputs become available. Assignment and state updates happen
// under one lock so two transactions spending the same input can never both
// succeed. Validation failures leave block and state untouched.
func (block *Block) ApplyTransaction(tx *transaction.Transaction, state UTXOState) (uint32, error) {
	block.mu.Lock()
	defer block.mu.Unlock()
	if block.state != StateOpen {
		return 0, ErrBlockClosed
	}
	if len(block.transactions) >= block.capacity {
		return 0, ErrBlockFull
	}
	if err := tx.Validate(state); err != nil {
		return 0, err
	}

	txindex := uint32(len(block.transactions))

	// Marks are undone on a storage failure partway through, so a rejected
	// transaction never leaves an input consumed or a phantom output behind.
	type spentInput struct {
		input   *transaction.TransactionInput
		details transaction.UTXODetails
	}
	spent := make([]spentInput, 0, transaction.NumInputs)
	restoreSpent := func() {
		for _, s := range spent {
			state.MarkAvailable(s.input.GetBlockNumber(), s.input.GetTransactionNumber(),
				s.input.GetOutputNumber(), s.details)
		}
	}
	for _, input := range tx.Inputs() {
		if input.IsNull() {
			continue
		}
		details, err := state.Lookup(input.GetBlockNumber(), input.GetTransactionNumber(), input.GetOutputNumber())
		if err != nil {
			restoreSpent()
			return 0, errors.Wrap(err, "could not resolve input")
		}
		err = state.MarkSpent(input.GetBlockNumber(), input.GetTransactionNumber(), input.GetOutputNumber())
		if err != nil {
			restoreSpent()
			return 0, errors.Wrap(err, "could not mark input spent")
		}
		spent = append(spent, spentInput{input: input, details: *details})
	}
	created := make([]uint8, 0, transaction.NumOutputs)
	for oindex, output := range tx.Outputs() {
		if output.IsNull() {
			continue
		}
		details := transaction.UTXODetails{
			Owner:    output.GetToAddress(),
			Amount:   output.GetValue().Bigint,
			Currency: tx.GetCurrency(),
		}
		err := state.MarkAvailable(block.number, txindex, uint8(oindex), details)
		if err != nil {
			for _, o := range created {
				state.Remove(block.number, txindex, o)
			}
			restoreSpent()
			return 0, errors.Wrap(err, "could not mark output available")
		}
		created = append(created, uint8(oindex))
	}
	block.transactions = append(block.transactions, tx)
	return txindex, nil
}

// Merklize closes the block, builds the Merkle tree over the ordered
// transaction merkle hashes and returns the root. Idempotent: calling it on
// an already merklized block returns the cached root.
func (block *Block) Merklize() (ethcommon.Hash, error) {
	block.mu.Lock()
	defer block.mu.Unlock()
	return block.merklize()
}

func (block *Block) merklize() (ethcommon.Hash, error) {
	if block.state != StateOpen {
		return block.tree.Root(), nil
	}
	leaves := make([]ethcommon.Hash, len(block.transactions))
	for i, tx := range block.transactions {
		leaf, err := tx.MerkleHash()
		if err != nil {
			return ethcommon.Hash{}, err
		}
		leaves[i] = leaf
	}
	tree, err := merkletree.NewTree(leaves, merkletree.DefaultDepth)
	if err != nil {
		return ethcommon.Hash{}, err
	}
	block.tree = tree
	block.header = NewUnsignedBlockHeader(block.number, uint32(len(block.transactions)),
		block.previousHash, tree.Root())
	block.state = StateMerklized
	return tree.Root(), nil
}

// MerkleRoot returns the committed root; fails before Merklize.
func (block *Block) MerkleRoot() (ethcommon.Hash, error) {
	block.mu.Lock()
	defer block.mu.Unlock()
	if block.state == StateOpen {
		return ethcommon.Hash{}, ErrNotMerklized
	}
	return block.tree.Root(), nil
}

// CreateMembershipProof returns the inclusion proof for the leaf at txindex;
// fails before Merklize.
func (block *Block) CreateMembershipProof(txindex uint32) (merkletree.Proof, error) {
	block.mu.Lock()
	defer block.mu.Unlock()
	if block.state == StateOpen {
		return nil, ErrNotMerklized
	}
	if int(txindex) >= len(block.transactions) {
		return nil, ErrIndexOutOfRange
	}
	return block.tree.CreateMembershipProofForIndex(txindex)
}

// Sign signs the committed header with the operator key. Fails with
// ErrNotMerklized if the root has not been computed, so a stale or absent
// root can never be signed, and with ErrBlockSubmitted on a submitted block,
// which is terminal and read-only.
func (block *Block) Sign(privateKey []byte) error {
	block.mu.Lock()
	defer block.mu.Unlock()
	if block.state == StateOpen {
		return ErrNotMerklized
	}
	if block.state == StateSubmitted {
		return ErrBlockSubmitted
	}
	if err := block.header.Sign(privateKey); err != nil {
		return err
	}
	if block.state == StateMerklized {
		block.state = StateSigned
	}
	return nil
}

// GetHeader returns the block header; fails before Merklize.
func (block *Block) GetHeader() (*BlockHeader, error) {
	block.mu.Lock()
	defer block.mu.Unlock()
	if block.state == StateOpen {
		return nil, ErrNotMerklized
	}
	return block.header, nil
}

// SubmissionTuple returns (number, root, signature), the exact tuple the
// root-chain contract consumes. Fails before Sign.
func (block *Block) SubmissionTuple() (uint32, ethcommon.Hash, [65]byte, error) {
	block.mu.Lock()
	defer block.mu.Unlock()
	if block.state == StateOpen {
		return 0, ethcommon.Hash{}, [65]byte{}, ErrNotMerklized
	}
	if !block.header.IsSigned() {
		return 0, ethcommon.Hash{}, [65]byte{}, ErrNotSigned
	}
	return block.number, block.tree.Root(), block.header.Sig, nil
}

// MarkSubmitted moves the block to its terminal state. The block stays
// available read-only for proof queries.
func (block *Block) MarkSubmitted() error {
	block.mu.Lock()
	defer block.mu.Unlock()
	if block.state != StateSigned {
		return ErrNotSigned
	}
	block.state = StateSubmitted
	return nil
}

// Serialize returns the signed header followed by the RLP transaction list.
func (block *Block) Serialize() ([]byte, error) {
	block.mu.Lock()
	defer block.mu.Unlock()
	if block.state == StateOpen {
		return nil, ErrNotMerklized
	}
	headerBytes, err := block.header.GetRaw()
	if err != nil {
		return nil, ErrNotSigned
	}
	var b bytes.Buffer
	if err := rlp.Encode(io.Writer(&b), block.transactions); err != nil {
		return nil, err
	}
	full := make([]byte, 0, len(headerBytes)+b.Len())
	full = append(full, headerBytes...)
	full = append(full, b.Bytes()...)
	return full, nil
}

// NewBlockFromBytes reconstructs a submitted block from its serialization,
// rebuilding the Merkle tree and checking it against the committed root. The
// result serves proof queries only.
func NewBlockFromBytes(raw []byte) (*Block, error) {
	if len(raw) <= BlockHeaderLength {
		return nil, errors.New("data is too short")
	}
	header, err := NewBlockHeaderFromBytes(raw[0:BlockHeaderLength])
	if err != nil {
		return nil, err
	}
	var transactions []*transaction.Transaction
	if err := rlp.DecodeBytes(raw[BlockHeaderLength:], &transactions); err != nil {
		return nil, errors.Wrap(transaction.ErrInvalidEncoding, err.Error())
	}
	leaves := make([]ethcommon.Hash, len(transactions))
	for i, tx := range transactions {
		leaf, err := tx.MerkleHash()
		if err != nil {
			return nil, err
		}
		leaves[i] = leaf
	}
	tree, err := merkletree.NewTree(leaves, merkletree.DefaultDepth)
	if err != nil {
		return nil, err
	}
	if tree.Root() != header.GetMerkleRoot() {
		return nil, errors.New("merkle tree root mismatch")
	}
	block := &Block{
		number:       header.GetBlockNumber(),
		previousHash: ethcommon.BytesToHash(header.PreviousBlockHash[:]),
		capacity:     DefaultCapacity,
		state:        StateSubmitted,
		transactions: transactions,
		tree:         tree,
		header:       header,
	}
	return block, nil
}
