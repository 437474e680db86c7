// Package client talks the child chain's JSON-over-HTTP protocol. Service
// errors (the chain rejecting an operation) are surfaced as
// ChildChainServiceError, distinct from transport failures.
package client

import (
	"encoding/json"
	"math/big"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"

	"github.com/pdexchain/plasmadex/block"
	"github.com/pdexchain/plasmadex/transaction"
)

// ChildChainServiceError is a rejection reported by the child chain itself,
// as opposed to a transport failure.
type ChildChainServiceError struct {
	Reason string
}

func (e *ChildChainServiceError) Error() string {
	return e.Reason
}

// Client is a thin binding over the RPC methods.
type Client struct {
	baseURL    string
	httpClient *fasthttp.Client
}

// New builds a client for a child chain server, e.g.
// "http://localhost:8546".
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &fasthttp.Client{
			ReadTimeout:  time.Second * 15,
			WriteTimeout: time.Second * 15,
		},
	}
}

func (c *Client) call(path string, request interface{}, response interface{}) error {
	body := []byte("{}")
	if request != nil {
		var err error
		body, err = json.Marshal(request)
		if err != nil {
			return errors.Wrap(err, "could not encode request")
		}
	}
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)
	if err := c.httpClient.Do(req, resp); err != nil {
		return errors.Wrap(err, "transport failure")
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return errors.Errorf("unexpected status %d", resp.StatusCode())
	}

	var envelope struct {
		Error  bool   `json:"error"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return errors.Wrap(err, "could not decode response")
	}
	if envelope.Error {
		return &ChildChainServiceError{Reason: envelope.Reason}
	}
	return json.Unmarshal(resp.Body(), response)
}

// ApplyTransaction submits a signed transaction and returns its assigned
// (blknum, txindex) position.
func (c *Client) ApplyTransaction(tx *transaction.Transaction) (uint32, uint32, error) {
	raw, err := tx.EncodeSigned()
	if err != nil {
		return 0, 0, err
	}
	request := map[string]string{"tx": hexutil.Encode(raw)}
	var response struct {
		BlockNumber uint32 `json:"blockNumber"`
		TxIndex     uint32 `json:"txindex"`
	}
	if err := c.call("/apply_transaction", request, &response); err != nil {
		return 0, 0, err
	}
	return response.BlockNumber, response.TxIndex, nil
}

// ApplyDeposit mirrors a root-chain deposit into the open block.
func (c *Client) ApplyDeposit(owner ethcommon.Address, amount *big.Int, currency ethcommon.Address) (uint32, uint32, error) {
	request := map[string]string{
		"owner":    owner.Hex(),
		"amount":   amount.String(),
		"currency": currency.Hex(),
	}
	var response struct {
		BlockNumber uint32 `json:"blockNumber"`
		TxIndex     uint32 `json:"txindex"`
	}
	if err := c.call("/apply_deposit", request, &response); err != nil {
		return 0, 0, err
	}
	return response.BlockNumber, response.TxIndex, nil
}

// SubmitBlock asks the operator to commit the current block.
func (c *Client) SubmitBlock() (uint32, ethcommon.Hash, error) {
	var response struct {
		BlockNumber uint32 `json:"blockNumber"`
		MerkleRoot  string `json:"merkleRoot"`
	}
	if err := c.call("/submit_block", nil, &response); err != nil {
		return 0, ethcommon.Hash{}, err
	}
	return response.BlockNumber, ethcommon.HexToHash(response.MerkleRoot), nil
}

// GetTransaction fetches the transaction at (blknum, txindex).
func (c *Client) GetTransaction(blknum uint32, txindex uint32) (*transaction.Transaction, error) {
	request := map[string]uint32{"blknum": blknum, "txindex": txindex}
	var response struct {
		TX string `json:"tx"`
	}
	if err := c.call("/get_transaction", request, &response); err != nil {
		return nil, err
	}
	return transaction.DecodeBytes(ethcommon.FromHex(response.TX))
}

// GetBlock fetches and reconstructs a submitted block.
func (c *Client) GetBlock(blknum uint32) (*block.Block, error) {
	request := map[string]uint32{"blknum": blknum}
	var response struct {
		Block string `json:"block"`
	}
	if err := c.call("/get_block", request, &response); err != nil {
		return nil, err
	}
	return block.NewBlockFromBytes(ethcommon.FromHex(response.Block))
}

// GetCurrentBlockNum returns the open block's number.
func (c *Client) GetCurrentBlockNum() (uint32, error) {
	var response struct {
		BlockNumber uint32 `json:"blockNumber"`
	}
	if err := c.call("/get_current_block_num", nil, &response); err != nil {
		return 0, err
	}
	return response.BlockNumber, nil
}

// GetBalances returns per-currency balances for an address, keyed by hex
// currency address.
func (c *Client) GetBalances(owner ethcommon.Address) (map[string]string, error) {
	request := map[string]string{"address": owner.Hex()}
	var response struct {
		Balances map[string]string `json:"balances"`
	}
	if err := c.call("/get_balances", request, &response); err != nil {
		return nil, err
	}
	return response.Balances, nil
}

// UTXO is one spendable output as reported by the server.
type UTXO struct {
	BlockNumber uint32 `json:"blockNumber"`
	TxIndex     uint32 `json:"txindex"`
	OutputIndex uint8  `json:"oindex"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
}

// ListUTXOs returns the owner's spendable outputs.
func (c *Client) ListUTXOs(owner ethcommon.Address) ([]UTXO, error) {
	request := map[string]string{"for": owner.Hex()}
	var response struct {
		UTXOs []UTXO `json:"utxos"`
	}
	if err := c.call("/list_utxos", request, &response); err != nil {
		return nil, err
	}
	return response.UTXOs, nil
}

// OpenOrder is one standing order as reported by the server.
type OpenOrder struct {
	BlockNumber uint32 `json:"blockNumber"`
	TxIndex     uint32 `json:"txindex"`
	OutputIndex uint8  `json:"oindex"`
	Owner       string `json:"owner"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Price       string `json:"price"`
	AskCurrency string `json:"askCurrency"`
}

// GetOpenOrders lists the standing orders.
func (c *Client) GetOpenOrders() ([]OpenOrder, error) {
	var response struct {
		Orders []OpenOrder `json:"orders"`
	}
	if err := c.call("/get_open_orders", nil, &response); err != nil {
		return nil, err
	}
	return response.Orders, nil
}
