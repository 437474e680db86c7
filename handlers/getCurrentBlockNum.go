package handlers

import (
	"github.com/valyala/fasthttp"

	"github.com/pdexchain/plasmadex/childchain"
)

type getCurrentBlockNumResponse struct {
	Error       bool   `json:"error"`
	BlockNumber uint32 `json:"blockNumber"`
}

type GetCurrentBlockNumHandler struct {
	chain *childchain.ChildChain
}

func NewGetCurrentBlockNumHandler(chain *childchain.ChildChain) *GetCurrentBlockNumHandler {
	return &GetCurrentBlockNumHandler{chain: chain}
}

func (h *GetCurrentBlockNumHandler) HandlerFunc(ctx *fasthttp.RequestCtx) {
	writeJSONResponse(ctx, getCurrentBlockNumResponse{
		BlockNumber: h.chain.GetCurrentBlockNum(),
	})
}
