package transaction

import (
	"math/big"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/pdexchain/plasmadex/types"
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

// stubSource resolves references from a map, mirroring the lookup contract
// of the real stores.
type stubSource struct {
	utxos map[[3]uint32]*UTXODetails
	spent map[[3]uint32]bool
}

func newStubSource() *stubSource {
	return &stubSource{
		utxos: make(map[[3]uint32]*UTXODetails),
		spent: make(map[[3]uint32]bool),
	}
}

func (s *stubSource) add(blknum, txindex uint32, oindex uint8, details UTXODetails) {
	s.utxos[[3]uint32{blknum, txindex, uint32(oindex)}] = &details
}

func (s *stubSource) markSpent(blknum, txindex uint32, oindex uint8) {
	s.spent[[3]uint32{blknum, txindex, uint32(oindex)}] = true
}

func (s *stubSource) Lookup(blknum uint32, txindex uint32, oindex uint8) (*UTXODetails, error) {
	key := [3]uint32{blknum, txindex, uint32(oindex)}
	if s.spent[key] {
		return nil, ErrUTXOAlreadySpent
	}
	details, ok := s.utxos[key]
	if !ok {
		return nil, ErrUTXONotFound
	}
	return details, nil
}

func transferTo(t *testing.T, owner ethcommon.Address, amount int64) *TransactionOutput {
	t.Helper()
	output, err := NewTransferOutput(owner, types.NewBigInt(amount))
	require.NoError(t, err)
	return output
}

func TestEncodeUnsignedRoundTrip(t *testing.T) {
	owner := newTestAccount(t)
	tx, err := NewTransaction(
		NewTransactionInput(1, 0, 0), nil,
		ethcommon.Address{},
		transferTo(t, owner.address, 90), nil,
		types.NewBigInt(10))
	require.NoError(t, err)

	raw, err := tx.EncodeSigned()
	require.NoError(t, err)
	decoded, err := DecodeBytes(raw)
	require.NoError(t, err)

	originalUnsigned, err := tx.EncodeUnsigned()
	require.NoError(t, err)
	decodedUnsigned, err := decoded.EncodeUnsigned()
	require.NoError(t, err)
	require.Equal(t, originalUnsigned, decodedUnsigned)

	reencoded, err := decoded.EncodeSigned()
	require.NoError(t, err)
	require.Equal(t, raw, reencoded)
}

func TestOrderOutputRoundTrip(t *testing.T) {
	owner := newTestAccount(t)
	askCurrency := ethcommon.HexToAddress("0x00000000000000000000000000000000deadbeef")
	orderOutput, err := NewOrderOutput(owner.address, types.NewBigInt(50), types.NewBigInt(7), askCurrency)
	require.NoError(t, err)

	tx, err := NewTransaction(
		NewTransactionInput(1, 0, 0), nil,
		ethcommon.Address{},
		orderOutput, transferTo(t, owner.address, 50),
		types.NewBigInt(0))
	require.NoError(t, err)

	raw, err := tx.EncodeSigned()
	require.NoError(t, err)
	decoded, err := DecodeBytes(raw)
	require.NoError(t, err)
	require.True(t, decoded.Output1.IsOrder())
	require.Equal(t, int64(7), decoded.Output1.GetOrderPrice().Bigint.Int64())
	require.Equal(t, askCurrency, decoded.Output1.GetOrderCurrency())
	require.False(t, decoded.Output2.IsOrder())
}

func TestTransferWithOrderFieldsRejectedAtDecode(t *testing.T) {
	owner := newTestAccount(t)
	output, err := NewOrderOutput(owner.address, types.NewBigInt(5), types.NewBigInt(1), owner.address)
	require.NoError(t, err)
	// Forge a transfer tag on an order-shaped output.
	output.OutputType[0] = OutputTypeTransfer
	tx, err := NewTransaction(NewTransactionInput(1, 0, 0), nil,
		ethcommon.Address{}, output, nil, types.NewBigInt(0))
	require.NoError(t, err)
	raw, err := tx.EncodeSigned()
	require.NoError(t, err)
	_, err = DecodeBytes(raw)
	require.ErrorIs(t, err, ErrInvalidEncoding)
}

func TestSignAndRecover(t *testing.T) {
	owner := newTestAccount(t)
	tx, err := NewTransaction(NewTransactionInput(1, 0, 0), nil,
		ethcommon.Address{}, transferTo(t, owner.address, 100), nil, types.NewBigInt(0))
	require.NoError(t, err)

	require.False(t, tx.HasSignature(1))
	require.NoError(t, tx.Sign(1, owner.key))
	require.True(t, tx.HasSignature(1))

	signer, err := tx.SignerOfSlot(1)
	require.NoError(t, err)
	require.Equal(t, owner.address, signer)

	_, err = tx.SignerOfSlot(2)
	require.ErrorIs(t, err, ErrMissingSignature)

	require.ErrorIs(t, tx.Sign(3, owner.key), ErrInvalidSlot)
	require.ErrorIs(t, tx.Sign(1, []byte{0x00}), ErrInvalidKey)
}

func TestMerkleHashChangesWithSignature(t *testing.T) {
	owner := newTestAccount(t)
	tx, err := NewTransaction(NewTransactionInput(1, 0, 0), nil,
		ethcommon.Address{}, transferTo(t, owner.address, 100), nil, types.NewBigInt(0))
	require.NoError(t, err)

	unsignedHash, err := tx.MerkleHash()
	require.NoError(t, err)
	require.NoError(t, tx.Sign(1, owner.key))
	signedHash, err := tx.MerkleHash()
	require.NoError(t, err)
	require.NotEqual(t, unsignedHash, signedHash)

	// The signing preimage does not include the signatures.
	before, err := tx.UnsignedHash()
	require.NoError(t, err)
	require.NoError(t, tx.Sign(2, owner.key))
	after, err := tx.UnsignedHash()
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestValidateSpend(t *testing.T) {
	ownerA := newTestAccount(t)
	ownerB := newTestAccount(t)
	source := newStubSource()
	source.add(1, 0, 0, UTXODetails{Owner: ownerA.address, Amount: big.NewInt(100), Currency: ethcommon.Address{}})

	tx, err := NewTransaction(NewTransactionInput(1, 0, 0), nil,
		ethcommon.Address{}, transferTo(t, ownerB.address, 90), nil, types.NewBigInt(10))
	require.NoError(t, err)
	require.NoError(t, tx.Sign(1, ownerA.key))
	require.NoError(t, tx.Validate(source))
}

func TestValidateRejectsWrongSigner(t *testing.T) {
	ownerA := newTestAccount(t)
	mallory := newTestAccount(t)
	source := newStubSource()
	source.add(1, 0, 0, UTXODetails{Owner: ownerA.address, Amount: big.NewInt(100), Currency: ethcommon.Address{}})

	tx, err := NewTransaction(NewTransactionInput(1, 0, 0), nil,
		ethcommon.Address{}, transferTo(t, mallory.address, 100), nil, types.NewBigInt(0))
	require.NoError(t, err)
	require.NoError(t, tx.Sign(1, mallory.key))
	require.ErrorIs(t, tx.Validate(source), ErrSignatureMismatch)
}

func TestValidateRejectsMissingSignature(t *testing.T) {
	ownerA := newTestAccount(t)
	source := newStubSource()
	source.add(1, 0, 0, UTXODetails{Owner: ownerA.address, Amount: big.NewInt(100), Currency: ethcommon.Address{}})

	tx, err := NewTransaction(NewTransactionInput(1, 0, 0), nil,
		ethcommon.Address{}, transferTo(t, ownerA.address, 100), nil, types.NewBigInt(0))
	require.NoError(t, err)
	require.ErrorIs(t, tx.Validate(source), ErrMissingSignature)
}

func TestValidateRejectsUnknownAndSpentInputs(t *testing.T) {
	ownerA := newTestAccount(t)
	source := newStubSource()

	tx, err := NewTransaction(NewTransactionInput(1, 0, 0), nil,
		ethcommon.Address{}, transferTo(t, ownerA.address, 100), nil, types.NewBigInt(0))
	require.NoError(t, err)
	require.NoError(t, tx.Sign(1, ownerA.key))
	require.ErrorIs(t, tx.Validate(source), ErrUTXONotFound)

	source.add(1, 0, 0, UTXODetails{Owner: ownerA.address, Amount: big.NewInt(100), Currency: ethcommon.Address{}})
	source.markSpent(1, 0, 0)
	require.ErrorIs(t, tx.Validate(source), ErrUTXOAlreadySpent)
}

func TestValidateRejectsDuplicateInputs(t *testing.T) {
	ownerA := newTestAccount(t)
	source := newStubSource()
	source.add(1, 0, 0, UTXODetails{Owner: ownerA.address, Amount: big.NewInt(100), Currency: ethcommon.Address{}})

	tx, err := NewTransaction(NewTransactionInput(1, 0, 0), NewTransactionInput(1, 0, 0),
		ethcommon.Address{}, transferTo(t, ownerA.address, 200), nil, types.NewBigInt(0))
	require.NoError(t, err)
	require.NoError(t, tx.Sign(1, ownerA.key))
	require.NoError(t, tx.Sign(2, ownerA.key))
	require.ErrorIs(t, tx.Validate(source), ErrDuplicateInputs)
}

func TestValidateRejectsOverspend(t *testing.T) {
	ownerA := newTestAccount(t)
	source := newStubSource()
	source.add(1, 0, 0, UTXODetails{Owner: ownerA.address, Amount: big.NewInt(100), Currency: ethcommon.Address{}})

	tx, err := NewTransaction(NewTransactionInput(1, 0, 0), nil,
		ethcommon.Address{}, transferTo(t, ownerA.address, 95), nil, types.NewBigInt(10))
	require.NoError(t, err)
	require.NoError(t, tx.Sign(1, ownerA.key))
	require.ErrorIs(t, tx.Validate(source), ErrAmountMismatch)
}

func TestValidateRejectsCurrencyMismatch(t *testing.T) {
	ownerA := newTestAccount(t)
	token := ethcommon.HexToAddress("0x00000000000000000000000000000000deadbeef")
	source := newStubSource()
	source.add(1, 0, 0, UTXODetails{Owner: ownerA.address, Amount: big.NewInt(100), Currency: token})

	tx, err := NewTransaction(NewTransactionInput(1, 0, 0), nil,
		ethcommon.Address{}, transferTo(t, ownerA.address, 100), nil, types.NewBigInt(0))
	require.NoError(t, err)
	require.NoError(t, tx.Sign(1, ownerA.key))
	require.ErrorIs(t, tx.Validate(source), ErrCurrencyMismatch)
}

func TestDepositSkipsInputChecks(t *testing.T) {
	ownerA := newTestAccount(t)
	tx, err := NewTransaction(nil, nil,
		ethcommon.Address{}, transferTo(t, ownerA.address, 100), nil, types.NewBigInt(0))
	require.NoError(t, err)
	require.True(t, tx.IsDeposit())
	require.NoError(t, tx.Validate(newStubSource()))
}

func TestZeroAmountTransferIsValid(t *testing.T) {
	ownerA := newTestAccount(t)
	ownerB := newTestAccount(t)
	source := newStubSource()
	source.add(1, 0, 0, UTXODetails{Owner: ownerA.address, Amount: big.NewInt(100), Currency: ethcommon.Address{}})

	// Wasteful but legal; policy above this layer may flag it.
	tx, err := NewTransaction(NewTransactionInput(1, 0, 0), nil,
		ethcommon.Address{}, transferTo(t, ownerB.address, 0), nil, types.NewBigInt(0))
	require.NoError(t, err)
	require.NoError(t, tx.Sign(1, ownerA.key))
	require.NoError(t, tx.Validate(source))
}
