package handlers

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/valyala/fasthttp"

	"github.com/pdexchain/plasmadex/childchain"
)

type getCurrentBlockResponse struct {
	Error                bool     `json:"error"`
	BlockNumber          uint32   `json:"blockNumber"`
	NumberOfTransactions int      `json:"numberOfTransactions"`
	Transactions         []string `json:"transactions"`
}

// GetCurrentBlockHandler reports the open block: its number and the signed
// encodings of the transactions accepted so far.
type GetCurrentBlockHandler struct {
	chain *childchain.ChildChain
}

func NewGetCurrentBlockHandler(chain *childchain.ChildChain) *GetCurrentBlockHandler {
	return &GetCurrentBlockHandler{chain: chain}
}

func (h *GetCurrentBlockHandler) HandlerFunc(ctx *fasthttp.RequestCtx) {
	current := h.chain.GetCurrentBlock()
	count := current.NumberOfTransactions()
	transactions := make([]string, 0, count)
	for i := 0; i < count; i++ {
		tx, err := current.GetTransaction(uint32(i))
		if err != nil {
			writeErrorResponse(ctx, err.Error())
			return
		}
		raw, err := tx.EncodeSigned()
		if err != nil {
			writeErrorResponse(ctx, err.Error())
			return
		}
		transactions = append(transactions, hexutil.Encode(raw))
	}
	writeJSONResponse(ctx, getCurrentBlockResponse{
		BlockNumber:          current.GetNumber(),
		NumberOfTransactions: count,
		Transactions:         transactions,
	})
}
