// Package handlers exposes the child-chain operations as JSON-over-HTTP
// remote procedures, one handler per method. Transport failures are reported
// in the JSON envelope and never conflated with core validation errors,
// which travel in the "reason" field verbatim.
package handlers

import (
	"encoding/json"

	"github.com/valyala/fasthttp"
)

type errorResponse struct {
	Error  bool   `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func writeErrorResponse(ctx *fasthttp.RequestCtx, reason string) {
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(fasthttp.StatusOK)
	response := errorResponse{Error: true, Reason: reason}
	body, _ := json.Marshal(response)
	ctx.SetBody(body)
}

func writeJSONResponse(ctx *fasthttp.RequestCtx, response interface{}) {
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(fasthttp.StatusOK)
	body, _ := json.Marshal(response)
	ctx.SetBody(body)
}
