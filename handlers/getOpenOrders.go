package handlers

import (
	"github.com/valyala/fasthttp"

	"github.com/pdexchain/plasmadex/childchain"
)

type openOrderDetails struct {
	BlockNumber uint32 `json:"blockNumber"`
	TxIndex     uint32 `json:"txindex"`
	OutputIndex uint8  `json:"oindex"`
	Owner       string `json:"owner"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Price       string `json:"price"`
	AskCurrency string `json:"askCurrency"`
}

type getOpenOrdersResponse struct {
	Error  bool               `json:"error"`
	Orders []openOrderDetails `json:"orders"`
}

type GetOpenOrdersHandler struct {
	chain *childchain.ChildChain
}

func NewGetOpenOrdersHandler(chain *childchain.ChildChain) *GetOpenOrdersHandler {
	return &GetOpenOrdersHandler{chain: chain}
}

func (h *GetOpenOrdersHandler) HandlerFunc(ctx *fasthttp.RequestCtx) {
	orders, err := h.chain.GetOpenOrders()
	if err != nil {
		writeErrorResponse(ctx, err.Error())
		return
	}
	details := make([]openOrderDetails, len(orders))
	for i, order := range orders {
		details[i] = openOrderDetails{
			BlockNumber: order.BlockNumber,
			TxIndex:     order.TransactionNumber,
			OutputIndex: order.OutputNumber,
			Owner:       order.Owner.Hex(),
			Amount:      order.Amount.String(),
			Currency:    order.Currency.Hex(),
			Price:       order.Price.String(),
			AskCurrency: order.AskCurrency.Hex(),
		}
	}
	writeJSONResponse(ctx, getOpenOrdersResponse{Orders: details})
}
