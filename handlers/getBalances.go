package handlers

import (
	"encoding/json"

	common "github.com/ethereum/go-ethereum/common"
	"github.com/valyala/fasthttp"

	"github.com/pdexchain/plasmadex/childchain"
)

type getBalancesRequest struct {
	Address string `json:"address"`
}

type getBalancesResponse struct {
	Error    bool              `json:"error"`
	Balances map[string]string `json:"balances"`
}

type GetBalancesHandler struct {
	chain *childchain.ChildChain
}

func NewGetBalancesHandler(chain *childchain.ChildChain) *GetBalancesHandler {
	return &GetBalancesHandler{chain: chain}
}

func (h *GetBalancesHandler) HandlerFunc(ctx *fasthttp.RequestCtx) {
	var requestJSON getBalancesRequest
	if err := json.Unmarshal(ctx.PostBody(), &requestJSON); err != nil {
		writeErrorResponse(ctx, "malformed request")
		return
	}
	if !common.IsHexAddress(requestJSON.Address) {
		writeErrorResponse(ctx, "invalid address")
		return
	}
	balances, err := h.chain.GetBalances(common.HexToAddress(requestJSON.Address))
	if err != nil {
		writeErrorResponse(ctx, err.Error())
		return
	}
	formatted := make(map[string]string, len(balances))
	for currency, amount := range balances {
		formatted[currency] = amount.String()
	}
	writeJSONResponse(ctx, getBalancesResponse{Balances: formatted})
}
