package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ProbeHandler exposes preflight probing of candidate endpoints.
type ProbeHandler struct {
	common *CommonServices
}

func NewProbeHandler(common *CommonServices) *ProbeHandler {
	return &ProbeHandler{common: common}
}

// ProbeEndpoint godoc
// @Summary      Probe an endpoint for payment gating
// @Description  Sends an unpaid request to the endpoint and extracts the payment quote from its 402 challenge. Any response other than 402 is a probe failure.
// @Tags         probe
// @Accept       json
// @Produce      json
// @Param        probe  body      ProbeRequest  true  "Endpoint to probe"
// @Success      200    {object}  ProbeResponse  "Extracted payment quote"
// @Failure      400    {object}  ErrorResponse  "Invalid request body"
// @Failure      422    {object}  ErrorResponse  "Endpoint is not payment-gated or its challenge is malformed"
// @Failure      502    {object}  ErrorResponse  "Endpoint unreachable or timed out"
// @Router       /probe [post]
func (h *ProbeHandler) ProbeEndpoint(c *gin.Context) {
	var req ProbeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	start := time.Now()
	quote, err := h.common.prober.Probe(c.Request.Context(), req.Endpoint)
	if err != nil {
		h.common.metrics.IncCounter("probe_failure", map[string]string{"network": ""})
		sendProbeError(c, err)
		return
	}

	h.common.metrics.IncCounter("probe_success", map[string]string{"network": quote.Network})
	h.common.metrics.ObserveLatency("probe", time.Since(start), map[string]string{"network": quote.Network})

	sendSuccess(c, http.StatusOK, ProbeResponse{Endpoint: req.Endpoint, Quote: *quote})
}
