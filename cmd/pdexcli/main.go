// pdexcli is the client and operator command line for the child chain: it
// builds and signs transactions locally, drives block submission and
// assembles withdrawal bundles. Keys are accepted as ephemeral hex arguments
// and never stored.
package main

import (
	"fmt"
	"math/big"
	"os"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/pdexchain/plasmadex/client"
	"github.com/pdexchain/plasmadex/exit"
	"github.com/pdexchain/plasmadex/transaction"
	"github.com/pdexchain/plasmadex/types"
)

func main() {
	app := &cli.App{
		Name:  "pdexcli",
		Usage: "client for the PlasmaDEX child chain",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Value:   "http://localhost:8546",
				Usage:   "child chain RPC endpoint",
				EnvVars: []string{"CHILD_CHAIN_URL"},
			},
		},
		Commands: []*cli.Command{
			depositCommand(),
			sendTxCommand(),
			makeOrderCommand(),
			submitBlockCommand(),
			withdrawCommand(),
			getBlockCommand(),
			getBalancesCommand(),
			getOpenOrdersCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func chainClient(c *cli.Context) *client.Client {
	return client.New(c.String("server"))
}

func parseAddress(value string) (ethcommon.Address, error) {
	if value == "" || value == "0x0" {
		return ethcommon.Address{}, nil
	}
	if !ethcommon.IsHexAddress(value) {
		return ethcommon.Address{}, errors.Errorf("invalid address %q", value)
	}
	return ethcommon.HexToAddress(value), nil
}

func parseAmount(value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok || amount.Sign() < 0 {
		return nil, errors.Errorf("invalid amount %q", value)
	}
	return amount, nil
}

func depositCommand() *cli.Command {
	return &cli.Command{
		Name:  "deposit",
		Usage: "mirror a root-chain deposit into the child chain",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "owner", Required: true},
			&cli.StringFlag{Name: "amount", Required: true},
			&cli.StringFlag{Name: "currency", Value: "0x0"},
		},
		Action: func(c *cli.Context) error {
			owner, err := parseAddress(c.String("owner"))
			if err != nil {
				return err
			}
			amount, err := parseAmount(c.String("amount"))
			if err != nil {
				return err
			}
			currency, err := parseAddress(c.String("currency"))
			if err != nil {
				return err
			}
			blknum, txindex, err := chainClient(c).ApplyDeposit(owner, amount, currency)
			if err != nil {
				return err
			}
			fmt.Printf("Deposited %s to %s at (%d, %d)\n", amount, owner.Hex(), blknum, txindex)
			return nil
		},
	}
}

func sendTxCommand() *cli.Command {
	return &cli.Command{
		Name:  "sendtx",
		Usage: "build, sign and submit a transfer transaction",
		Flags: []cli.Flag{
			&cli.UintFlag{Name: "blknum1"},
			&cli.UintFlag{Name: "txindex1"},
			&cli.UintFlag{Name: "oindex1"},
			&cli.UintFlag{Name: "blknum2"},
			&cli.UintFlag{Name: "txindex2"},
			&cli.UintFlag{Name: "oindex2"},
			&cli.StringFlag{Name: "currency", Value: "0x0"},
			&cli.StringFlag{Name: "newowner1", Value: "0x0"},
			&cli.StringFlag{Name: "amount1", Value: "0"},
			&cli.StringFlag{Name: "newowner2", Value: "0x0"},
			&cli.StringFlag{Name: "amount2", Value: "0"},
			&cli.StringFlag{Name: "fee", Value: "0"},
			&cli.StringFlag{Name: "key1", Required: true},
			&cli.StringFlag{Name: "key2"},
		},
		Action: func(c *cli.Context) error {
			currency, err := parseAddress(c.String("currency"))
			if err != nil {
				return err
			}
			tx, err := buildTransfer(c, currency)
			if err != nil {
				return err
			}
			if err := tx.Sign(1, ethcommon.FromHex(c.String("key1"))); err != nil {
				return err
			}
			if c.String("key2") != "" {
				if err := tx.Sign(2, ethcommon.FromHex(c.String("key2"))); err != nil {
					return err
				}
			}
			blknum, txindex, err := chainClient(c).ApplyTransaction(tx)
			if err != nil {
				return err
			}
			fmt.Printf("Sent transaction, included at (%d, %d)\n", blknum, txindex)
			return nil
		},
	}
}

func buildTransfer(c *cli.Context, currency ethcommon.Address) (*transaction.Transaction, error) {
	input1 := transaction.NewTransactionInput(uint32(c.Uint("blknum1")),
		uint32(c.Uint("txindex1")), uint8(c.Uint("oindex1")))
	input2 := transaction.NewTransactionInput(uint32(c.Uint("blknum2")),
		uint32(c.Uint("txindex2")), uint8(c.Uint("oindex2")))

	newOwner1, err := parseAddress(c.String("newowner1"))
	if err != nil {
		return nil, err
	}
	amount1, err := parseAmount(c.String("amount1"))
	if err != nil {
		return nil, err
	}
	output1, err := transaction.NewTransferOutput(newOwner1, &types.BigInt{Bigint: amount1})
	if err != nil {
		return nil, err
	}

	newOwner2, err := parseAddress(c.String("newowner2"))
	if err != nil {
		return nil, err
	}
	amount2, err := parseAmount(c.String("amount2"))
	if err != nil {
		return nil, err
	}
	output2, err := transaction.NewTransferOutput(newOwner2, &types.BigInt{Bigint: amount2})
	if err != nil {
		return nil, err
	}

	fee, err := parseAmount(c.String("fee"))
	if err != nil {
		return nil, err
	}
	return transaction.NewTransaction(input1, input2, currency, output1, output2,
		&types.BigInt{Bigint: fee})
}

func makeOrderCommand() *cli.Command {
	return &cli.Command{
		Name:  "makeorder",
		Usage: "place a standing order by spending one of your UTXOs",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "address", Required: true},
			&cli.StringFlag{Name: "currency", Value: "0x0", Usage: "currency being sold"},
			&cli.StringFlag{Name: "amount", Required: true},
			&cli.StringFlag{Name: "price", Required: true},
			&cli.StringFlag{Name: "ask", Required: true, Usage: "currency being asked for"},
			&cli.StringFlag{Name: "key", Required: true},
		},
		Action: func(c *cli.Context) error {
			owner, err := parseAddress(c.String("address"))
			if err != nil {
				return err
			}
			currency, err := parseAddress(c.String("currency"))
			if err != nil {
				return err
			}
			askCurrency, err := parseAddress(c.String("ask"))
			if err != nil {
				return err
			}
			amount, err := parseAmount(c.String("amount"))
			if err != nil {
				return err
			}
			price, err := parseAmount(c.String("price"))
			if err != nil {
				return err
			}

			cl := chainClient(c)
			utxos, err := cl.ListUTXOs(owner)
			if err != nil {
				return err
			}
			for _, utxo := range utxos {
				utxoAmount, ok := new(big.Int).SetString(utxo.Amount, 10)
				if !ok || utxoAmount.Cmp(amount) < 0 {
					continue
				}
				if ethcommon.HexToAddress(utxo.Currency) != currency {
					continue
				}
				tx, err := buildOrder(owner, currency, askCurrency, amount, price, utxoAmount, utxo)
				if err != nil {
					return err
				}
				if err := tx.Sign(1, ethcommon.FromHex(c.String("key"))); err != nil {
					return err
				}
				blknum, txindex, err := cl.ApplyTransaction(tx)
				if err != nil {
					return err
				}
				fmt.Printf("Placed order at (%d, %d)\n", blknum, txindex)
				return nil
			}
			return errors.New("no UTXO large enough to cover the order")
		},
	}
}

func buildOrder(owner ethcommon.Address, currency ethcommon.Address, askCurrency ethcommon.Address,
	amount *big.Int, price *big.Int, utxoAmount *big.Int, utxo client.UTXO) (*transaction.Transaction, error) {
	input := transaction.NewTransactionInput(utxo.BlockNumber, utxo.TxIndex, utxo.OutputIndex)
	orderOutput, err := transaction.NewOrderOutput(owner, &types.BigInt{Bigint: amount},
		&types.BigInt{Bigint: price}, askCurrency)
	if err != nil {
		return nil, err
	}
	var changeOutput *transaction.TransactionOutput
	change := new(big.Int).Sub(utxoAmount, amount)
	if change.Sign() > 0 {
		changeOutput, err = transaction.NewTransferOutput(owner, &types.BigInt{Bigint: change})
		if err != nil {
			return nil, err
		}
	}
	return transaction.NewTransaction(input, nil, currency, orderOutput, changeOutput, types.NewBigInt(0))
}

func submitBlockCommand() *cli.Command {
	return &cli.Command{
		Name:  "submitblock",
		Usage: "commit the current block to the root chain",
		Action: func(c *cli.Context) error {
			blknum, root, err := chainClient(c).SubmitBlock()
			if err != nil {
				return err
			}
			fmt.Printf("Submitted block %d with root %s\n", blknum, root.Hex())
			return nil
		},
	}
}

func withdrawCommand() *cli.Command {
	return &cli.Command{
		Name:  "withdraw",
		Usage: "assemble the exit bundle for one of your outputs",
		Flags: []cli.Flag{
			&cli.UintFlag{Name: "blknum", Required: true},
			&cli.UintFlag{Name: "txindex", Required: true},
			&cli.UintFlag{Name: "oindex", Required: true},
			&cli.StringFlag{Name: "key1"},
			&cli.StringFlag{Name: "key2"},
		},
		Action: func(c *cli.Context) error {
			b, err := chainClient(c).GetBlock(uint32(c.Uint("blknum")))
			if err != nil {
				return err
			}
			var key1, key2 []byte
			if c.String("key1") != "" {
				key1 = ethcommon.FromHex(c.String("key1"))
			}
			if c.String("key2") != "" {
				key2 = ethcommon.FromHex(c.String("key2"))
			}
			bundle, err := exit.BuildBundle(b, uint32(c.Uint("txindex")), uint8(c.Uint("oindex")), key1, key2)
			if err != nil {
				return err
			}
			raw, err := bundle.Transaction.EncodeSigned()
			if err != nil {
				return err
			}
			fmt.Printf("Position:   (%d, %d, %d)\n", bundle.BlockNumber, bundle.TransactionNumber, bundle.OutputNumber)
			fmt.Printf("Root:       %s\n", bundle.MerkleRoot.Hex())
			fmt.Printf("Transaction: %s\n", hexutil.Encode(raw))
			fmt.Printf("Proof:      %s\n", hexutil.Encode(bundle.Proof.Bytes()))
			fmt.Printf("Signatures: %s\n", hexutil.Encode(bundle.SignatureBundle()))
			return nil
		},
	}
}

func getBlockCommand() *cli.Command {
	return &cli.Command{
		Name:  "getblock",
		Usage: "fetch a submitted block",
		Flags: []cli.Flag{
			&cli.UintFlag{Name: "blknum", Required: true},
		},
		Action: func(c *cli.Context) error {
			b, err := chainClient(c).GetBlock(uint32(c.Uint("blknum")))
			if err != nil {
				return err
			}
			root, err := b.MerkleRoot()
			if err != nil {
				return err
			}
			fmt.Printf("Block %d: %d transactions, root %s\n",
				b.GetNumber(), b.NumberOfTransactions(), root.Hex())
			return nil
		},
	}
}

func getBalancesCommand() *cli.Command {
	return &cli.Command{
		Name:  "getbalances",
		Usage: "show per-currency balances of an address",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "address", Required: true},
		},
		Action: func(c *cli.Context) error {
			owner, err := parseAddress(c.String("address"))
			if err != nil {
				return err
			}
			balances, err := chainClient(c).GetBalances(owner)
			if err != nil {
				return err
			}
			for currency, amount := range balances {
				fmt.Printf("%s: %s\n", currency, amount)
			}
			return nil
		},
	}
}

func getOpenOrdersCommand() *cli.Command {
	return &cli.Command{
		Name:  "getopenorders",
		Usage: "list standing orders",
		Action: func(c *cli.Context) error {
			orders, err := chainClient(c).GetOpenOrders()
			if err != nil {
				return err
			}
			for _, order := range orders {
				fmt.Printf("(%d, %d, %d) %s sells %s of %s at %s per unit of %s\n",
					order.BlockNumber, order.TxIndex, order.OutputIndex,
					order.Owner, order.Amount, order.Currency, order.Price, order.AskCurrency)
			}
			return nil
		},
	}
}
