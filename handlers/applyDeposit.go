package handlers

import (
	"encoding/json"
	"math/big"

	common "github.com/ethereum/go-ethereum/common"
	"github.com/valyala/fasthttp"

	"github.com/pdexchain/plasmadex/childchain"
)

type applyDepositRequest struct {
	Owner    string `json:"owner"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

type applyDepositResponse struct {
	Error       bool   `json:"error"`
	BlockNumber uint32 `json:"blockNumber"`
	TxIndex     uint32 `json:"txindex"`
}

// ApplyDepositHandler mirrors a root-chain deposit into the open block. In a
// production deployment this is driven by the deposit-event watcher, not by
// clients.
type ApplyDepositHandler struct {
	chain *childchain.ChildChain
}

func NewApplyDepositHandler(chain *childchain.ChildChain) *ApplyDepositHandler {
	return &ApplyDepositHandler{chain: chain}
}

func (h *ApplyDepositHandler) HandlerFunc(ctx *fasthttp.RequestCtx) {
	var requestJSON applyDepositRequest
	if err := json.Unmarshal(ctx.PostBody(), &requestJSON); err != nil {
		writeErrorResponse(ctx, "malformed request")
		return
	}
	if !common.IsHexAddress(requestJSON.Owner) {
		writeErrorResponse(ctx, "invalid owner address")
		return
	}
	amount, ok := new(big.Int).SetString(requestJSON.Amount, 10)
	if !ok || amount.Sign() <= 0 {
		writeErrorResponse(ctx, "invalid amount")
		return
	}
	currency := common.Address{}
	if requestJSON.Currency != "" {
		if !common.IsHexAddress(requestJSON.Currency) {
			writeErrorResponse(ctx, "invalid currency address")
			return
		}
		currency = common.HexToAddress(requestJSON.Currency)
	}
	blockNumber, txindex, err := h.chain.ApplyDeposit(common.HexToAddress(requestJSON.Owner), amount, currency)
	if err != nil {
		writeErrorResponse(ctx, err.Error())
		return
	}
	writeJSONResponse(ctx, applyDepositResponse{
		BlockNumber: blockNumber,
		TxIndex:     txindex,
	})
}
