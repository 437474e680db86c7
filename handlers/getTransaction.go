package handlers

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/valyala/fasthttp"

	"github.com/pdexchain/plasmadex/childchain"
)

type getTransactionRequest struct {
	BlockNumber uint32 `json:"blknum"`
	TxIndex     uint32 `json:"txindex"`
}

type getTransactionResponse struct {
	Error bool   `json:"error"`
	TX    string `json:"tx"`
}

type GetTransactionHandler struct {
	chain *childchain.ChildChain
}

func NewGetTransactionHandler(chain *childchain.ChildChain) *GetTransactionHandler {
	return &GetTransactionHandler{chain: chain}
}

func (h *GetTransactionHandler) HandlerFunc(ctx *fasthttp.RequestCtx) {
	var requestJSON getTransactionRequest
	if err := json.Unmarshal(ctx.PostBody(), &requestJSON); err != nil {
		writeErrorResponse(ctx, "malformed request")
		return
	}
	tx, err := h.chain.GetTransaction(requestJSON.BlockNumber, requestJSON.TxIndex)
	if err != nil {
		writeErrorResponse(ctx, err.Error())
		return
	}
	raw, err := tx.EncodeSigned()
	if err != nil {
		writeErrorResponse(ctx, err.Error())
		return
	}
	writeJSONResponse(ctx, getTransactionResponse{TX: hexutil.Encode(raw)})
}
