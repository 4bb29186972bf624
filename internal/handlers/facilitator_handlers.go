package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// FacilitatorHandler exposes the typed facilitator operations directly.
type FacilitatorHandler struct {
	common *CommonServices
}

func NewFacilitatorHandler(common *CommonServices) *FacilitatorHandler {
	return &FacilitatorHandler{common: common}
}

// VerifyPayment godoc
// @Summary      Verify a payment proof
// @Description  Submits a proof and its payment requirement to the network's facilitator for verification. The call is never retried.
// @Tags         facilitator
// @Accept       json
// @Produce      json
// @Param        verify  body      FacilitatorCheckRequest  true  "Proof and requirement"
// @Success      200     {object}  facilitator.VerifyResult  "Verification outcome"
// @Failure      400     {object}  ErrorResponse  "Invalid request body"
// @Failure      502     {object}  ErrorResponse  "Facilitator unreachable or call failed"
// @Router       /facilitator/verify [post]
func (h *FacilitatorHandler) VerifyPayment(c *gin.Context) {
	var req FacilitatorCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.common.facilitator.Verify(c.Request.Context(), req.PaymentHeader, req.PaymentRequirements)
	if err != nil {
		sendFacilitatorError(c, err)
		return
	}
	sendSuccess(c, http.StatusOK, result)
}

// SettlePayment godoc
// @Summary      Settle a verified payment
// @Description  Submits a proof and its payment requirement to the network's facilitator for on-chain settlement. The call is never retried.
// @Tags         facilitator
// @Accept       json
// @Produce      json
// @Param        settle  body      FacilitatorCheckRequest  true  "Proof and requirement"
// @Success      200     {object}  facilitator.SettleResult  "Settlement outcome"
// @Failure      400     {object}  ErrorResponse  "Invalid request body"
// @Failure      502     {object}  ErrorResponse  "Facilitator unreachable or call failed"
// @Router       /facilitator/settle [post]
func (h *FacilitatorHandler) SettlePayment(c *gin.Context) {
	var req FacilitatorCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.common.facilitator.Settle(c.Request.Context(), req.PaymentHeader, req.PaymentRequirements)
	if err != nil {
		sendFacilitatorError(c, err)
		return
	}
	sendSuccess(c, http.StatusOK, result)
}

// GetSupported godoc
// @Summary      List a facilitator's settlement capabilities
// @Tags         facilitator
// @Produce      json
// @Param        network  query     string  true  "Network to route to"
// @Success      200      {object}  facilitator.SupportedResult  "Supported scheme/network pairs"
// @Failure      400      {object}  ErrorResponse  "Missing network"
// @Failure      502      {object}  ErrorResponse  "Facilitator unreachable"
// @Router       /facilitator/supported [get]
func (h *FacilitatorHandler) GetSupported(c *gin.Context) {
	network := c.Query("network")
	if network == "" {
		sendError(c, http.StatusBadRequest, "network query parameter is required", nil)
		return
	}

	result, err := h.common.facilitator.Supported(c.Request.Context(), network)
	if err != nil {
		sendFacilitatorError(c, err)
		return
	}
	sendSuccess(c, http.StatusOK, result)
}

// ListResources godoc
// @Summary      List services registered with a facilitator
// @Tags         facilitator
// @Produce      json
// @Param        network  query     string  true  "Network to route to"
// @Success      200      {object}  facilitator.ListResult  "Registry listing"
// @Failure      400      {object}  ErrorResponse  "Missing network"
// @Failure      502      {object}  ErrorResponse  "Facilitator unreachable"
// @Router       /facilitator/list [get]
func (h *FacilitatorHandler) ListResources(c *gin.Context) {
	network := c.Query("network")
	if network == "" {
		sendError(c, http.StatusBadRequest, "network query parameter is required", nil)
		return
	}

	result, err := h.common.facilitator.List(c.Request.Context(), network)
	if err != nil {
		sendFacilitatorError(c, err)
		return
	}
	sendSuccess(c, http.StatusOK, result)
}
