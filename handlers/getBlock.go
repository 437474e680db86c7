package handlers

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/valyala/fasthttp"

	"github.com/pdexchain/plasmadex/block"
	"github.com/pdexchain/plasmadex/childchain"
)

type getBlockRequest struct {
	BlockNumber uint32 `json:"blknum"`
}

type getBlockResponse struct {
	Error bool   `json:"error"`
	Block string `json:"block"`
}

// GetBlockHandler serves serialized submitted blocks for proof construction.
type GetBlockHandler struct {
	chain *childchain.ChildChain
}

func NewGetBlockHandler(chain *childchain.ChildChain) *GetBlockHandler {
	return &GetBlockHandler{chain: chain}
}

func (h *GetBlockHandler) HandlerFunc(ctx *fasthttp.RequestCtx) {
	var requestJSON getBlockRequest
	if err := json.Unmarshal(ctx.PostBody(), &requestJSON); err != nil {
		writeErrorResponse(ctx, "malformed request")
		return
	}
	b, err := h.chain.GetBlock(requestJSON.BlockNumber)
	if err != nil {
		writeErrorResponse(ctx, err.Error())
		return
	}
	raw, err := b.Serialize()
	if err == block.ErrNotMerklized || err == block.ErrNotSigned {
		writeErrorResponse(ctx, "block is not submitted yet")
		return
	}
	if err != nil {
		writeErrorResponse(ctx, err.Error())
		return
	}
	writeJSONResponse(ctx, getBlockResponse{Block: hexutil.Encode(raw)})
}
