package handlers

import (
	"github.com/valyala/fasthttp"

	"github.com/pdexchain/plasmadex/childchain"
)

type submitBlockResponse struct {
	Error       bool   `json:"error"`
	BlockNumber uint32 `json:"blockNumber"`
	MerkleRoot  string `json:"merkleRoot"`
}

// SubmitBlockHandler closes the current block, signs it with the operator
// key held by the server and submits the root.
type SubmitBlockHandler struct {
	chain      *childchain.ChildChain
	signingKey []byte
}

func NewSubmitBlockHandler(chain *childchain.ChildChain, signingKey []byte) *SubmitBlockHandler {
	return &SubmitBlockHandler{chain: chain, signingKey: signingKey}
}

func (h *SubmitBlockHandler) HandlerFunc(ctx *fasthttp.RequestCtx) {
	number, root, err := h.chain.SubmitBlock(ctx, h.signingKey)
	if err != nil {
		writeErrorResponse(ctx, err.Error())
		return
	}
	writeJSONResponse(ctx, submitBlockResponse{
		BlockNumber: number,
		MerkleRoot:  root.Hex(),
	})
}
