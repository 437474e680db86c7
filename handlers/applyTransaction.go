package handlers

import (
	"encoding/json"

	common "github.com/ethereum/go-ethereum/common"
	"github.com/valyala/fasthttp"

	"github.com/pdexchain/plasmadex/childchain"
	"github.com/pdexchain/plasmadex/policy"
	"github.com/pdexchain/plasmadex/transaction"
)

type applyTransactionRequest struct {
	TX string `json:"tx"`
}

type applyTransactionResponse struct {
	Error       bool   `json:"error"`
	Accepted    bool   `json:"accepted"`
	BlockNumber uint32 `json:"blockNumber"`
	TxIndex     uint32 `json:"txindex"`
}

type ApplyTransactionHandler struct {
	chain  *childchain.ChildChain
	policy *policy.Policy
}

func NewApplyTransactionHandler(chain *childchain.ChildChain, acceptance *policy.Policy) *ApplyTransactionHandler {
	return &ApplyTransactionHandler{chain: chain, policy: acceptance}
}

func (h *ApplyTransactionHandler) HandlerFunc(ctx *fasthttp.RequestCtx) {
	var requestJSON applyTransactionRequest
	if err := json.Unmarshal(ctx.PostBody(), &requestJSON); err != nil {
		writeErrorResponse(ctx, "malformed request")
		return
	}
	raw := common.FromHex(requestJSON.TX)
	if len(raw) == 0 {
		writeErrorResponse(ctx, "empty transaction")
		return
	}
	tx, err := transaction.DecodeBytes(raw)
	if err != nil {
		writeErrorResponse(ctx, err.Error())
		return
	}
	if err := h.policy.Check(tx); err != nil {
		writeErrorResponse(ctx, err.Error())
		return
	}
	blockNumber, txindex, err := h.chain.ApplyTransaction(tx)
	if err != nil {
		writeErrorResponse(ctx, err.Error())
		return
	}
	writeJSONResponse(ctx, applyTransactionResponse{
		Accepted:    true,
		BlockNumber: blockNumber,
		TxIndex:     txindex,
	})
}
