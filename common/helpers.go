package common

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// CreatePersonalHash hashes a message the way eth_sign does: the keccak of
// the "\x19Ethereum Signed Message:\n" prefix, the decimal message length and
// the message itself. Every signature in the system (transaction, block
// header, confirmation) is made over a personal hash so that root-chain
// contracts can verify them with ecrecover on personally-signed data.
func CreatePersonalHash(message []byte) common.Hash {
	personalHashData := []byte{}
	personalHashData = append(personalHashData, []byte("\x19Ethereum Signed Message:\n")...)
	personalHashData = append(personalHashData, []byte(strconv.Itoa(len(message)))...)
	personalHashData = append(personalHashData, message...)
	return crypto.Keccak256Hash(personalHashData)
}
