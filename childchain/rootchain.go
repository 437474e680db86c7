package childchain

import (
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/pdexchain/plasmadex/common"
)

// RootChain is the boundary to the root-chain contract. The child chain only
// produces the submission tuple; contract interaction and the dispute game
// live behind this interface.
type RootChain interface {
	SubmitBlock(blockNumber uint32, merkleRoot ethcommon.Hash, sig [common.SignatureLength]byte) error
}

// LoggingRootChain records submissions without talking to a contract. It
// stands in for the real binding in tests and single-node development runs.
type LoggingRootChain struct {
	log *logrus.Logger
}

// NewLoggingRootChain returns a RootChain that only logs.
func NewLoggingRootChain(log *logrus.Logger) *LoggingRootChain {
	return &LoggingRootChain{log: log}
}

func (r *LoggingRootChain) SubmitBlock(blockNumber uint32, merkleRoot ethcommon.Hash, sig [common.SignatureLength]byte) error {
	r.log.WithFields(logrus.Fields{
		"blockNumber": blockNumber,
		"merkleRoot":  merkleRoot.Hex(),
	}).Info("block root submitted to root chain")
	return nil
}
