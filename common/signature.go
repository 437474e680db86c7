package common

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

const (
	// SignatureLength is the byte length of a recoverable secp256k1
	// signature laid out as [R || S || V].
	SignatureLength = 65
	// PrivateKeyLength is the byte length of a raw secp256k1 private key.
	PrivateKeyLength = 32
)

var EmptyAddress = common.Address{}

// SignHash produces a recoverable [R || S || V] signature over hash with the
// raw 32-byte private key.
func SignHash(hash common.Hash, privateKey []byte) ([SignatureLength]byte, error) {
	signature := [SignatureLength]byte{}
	if len(privateKey) != PrivateKeyLength {
		return signature, errors.New("invalid private key length")
	}
	key, err := crypto.ToECDSA(privateKey)
	if err != nil {
		return signature, errors.Wrap(err, "could not restore a private key")
	}
	sig, err := crypto.Sign(hash[:], key)
	if err != nil {
		return signature, errors.Wrap(err, "could not sign")
	}
	copy(signature[:], sig)
	return signature, nil
}

// RecoverSigner recovers the signing address from a [R || S || V] signature
// over hash. A V of 27/28 is normalized to 0/1 before recovery, matching
// what Ethereum tooling emits.
func RecoverSigner(hash common.Hash, signature [SignatureLength]byte) (common.Address, error) {
	fullSignature := make([]byte, SignatureLength)
	copy(fullSignature, signature[:])
	if fullSignature[64] >= 27 {
		fullSignature[64] -= 27
	}
	senderPubKey, err := crypto.Ecrecover(hash[:], fullSignature)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "could not recover a public key")
	}
	pubKey, err := crypto.UnmarshalPubkey(senderPubKey)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "invalid recovered public key")
	}
	sender := crypto.PubkeyToAddress(*pubKey)
	if sender == EmptyAddress {
		return common.Address{}, errors.New("recovered an empty address")
	}
	return sender, nil
}

// AddressForKey derives the address controlled by the raw private key.
func AddressForKey(privateKey []byte) (common.Address, error) {
	key, err := crypto.ToECDSA(privateKey)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "could not restore a private key")
	}
	return crypto.PubkeyToAddress(key.PublicKey), nil
}
