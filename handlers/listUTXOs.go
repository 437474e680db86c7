package handlers

import (
	"encoding/json"

	common "github.com/ethereum/go-ethereum/common"
	"github.com/valyala/fasthttp"

	"github.com/pdexchain/plasmadex/childchain"
)

type listUTXOsRequest struct {
	For string `json:"for"`
}

type singleUTXODetails struct {
	BlockNumber uint32 `json:"blockNumber"`
	TxIndex     uint32 `json:"txindex"`
	OutputIndex uint8  `json:"oindex"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
}

type listUTXOsResponse struct {
	Error bool                `json:"error"`
	UTXOs []singleUTXODetails `json:"utxos"`
}

// ListUTXOsHandler lets clients discover spendable outputs, e.g. to pick an
// input for an order.
type ListUTXOsHandler struct {
	chain *childchain.ChildChain
}

func NewListUTXOsHandler(chain *childchain.ChildChain) *ListUTXOsHandler {
	return &ListUTXOsHandler{chain: chain}
}

func (h *ListUTXOsHandler) HandlerFunc(ctx *fasthttp.RequestCtx) {
	var requestJSON listUTXOsRequest
	if err := json.Unmarshal(ctx.PostBody(), &requestJSON); err != nil {
		writeErrorResponse(ctx, "malformed request")
		return
	}
	if !common.IsHexAddress(requestJSON.For) {
		writeErrorResponse(ctx, "invalid address")
		return
	}
	records, err := h.chain.ListUTXOs(common.HexToAddress(requestJSON.For))
	if err != nil {
		writeErrorResponse(ctx, err.Error())
		return
	}
	details := make([]singleUTXODetails, len(records))
	for i, record := range records {
		details[i] = singleUTXODetails{
			BlockNumber: record.BlockNumber,
			TxIndex:     record.TransactionNumber,
			OutputIndex: record.OutputNumber,
			Amount:      record.Amount.String(),
			Currency:    record.Currency.Hex(),
		}
	}
	writeJSONResponse(ctx, listUTXOsResponse{UTXOs: details})
}
