// Package policy holds the operator's local acceptance rules. These are
// softer than validation: a transaction that fails policy is well-formed and
// valid against chain state, the operator just declines to include it.
package policy

import (
	"math/big"

	"github.com/caarlos0/env/v6"
	"github.com/pkg/errors"

	"github.com/pdexchain/plasmadex/transaction"
)

type Config struct {
	// MinFee is the smallest accepted fee, in wei.
	MinFee string `env:"MIN_FEE" envDefault:"0"`
	// MinOutputSize is the dust limit for outputs, in wei.
	MinOutputSize string `env:"MIN_UTXO_SIZE" envDefault:"0"`
}

var (
	ErrOutputTooSmall = errors.New("output is below the dust limit")
	ErrFeeTooSmall    = errors.New("fee is below the operator minimum")
)

// Policy is the operator's acceptance rule set. A zero value accepts
// everything.
type Policy struct {
	MinFee        *big.Int
	MinOutputSize *big.Int
}

// FromEnv reads the policy from the environment.
func FromEnv() (*Policy, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, errors.Wrap(err, "could not parse policy config")
	}
	minFee, ok := big.NewInt(0).SetString(cfg.MinFee, 10)
	if !ok {
		return nil, errors.New("could not parse minimal fee")
	}
	minOutputSize, ok := big.NewInt(0).SetString(cfg.MinOutputSize, 10)
	if !ok {
		return nil, errors.New("could not parse minimal output size")
	}
	return &Policy{MinFee: minFee, MinOutputSize: minOutputSize}, nil
}

// Check applies the rules to a transaction. Deposits are operator-originated
// and always pass.
func (p *Policy) Check(tx *transaction.Transaction) error {
	if p == nil {
		return nil
	}
	if tx.IsDeposit() {
		return nil
	}
	if p.MinOutputSize != nil && p.MinOutputSize.Sign() > 0 {
		for _, output := range tx.Outputs() {
			if output.IsNull() {
				continue
			}
			if output.GetValue().Bigint.Cmp(p.MinOutputSize) < 0 {
				return ErrOutputTooSmall
			}
		}
	}
	if p.MinFee != nil && p.MinFee.Sign() > 0 {
		if tx.GetFee().Bigint.Cmp(p.MinFee) < 0 {
			return ErrFeeTooSmall
		}
	}
	return nil
}
