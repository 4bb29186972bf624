package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"paygrid-api/internal/db"
	"paygrid-api/internal/logger"
	"paygrid-api/internal/x402"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PaymentHandler runs the paid-call pipeline: quote, verify, forward, settle,
// split.
type PaymentHandler struct {
	common *CommonServices
}

func NewPaymentHandler(common *CommonServices) *PaymentHandler {
	return &PaymentHandler{common: common}
}

// ForwardRequest godoc
// @Summary      Forward a payment-bearing request
// @Description  Relays the caller's request to the target endpoint, passing the X-Payment proof through unchanged and relaying protocol response headers verbatim.
// @Tags         proxy
// @Accept       json
// @Produce      json
// @Param        proxy      body      ProxyRequest  true  "Target and payload"
// @Param        X-Payment  header    string        false "Payment proof to pass through"
// @Success      200    {object}  map[string]interface{}  "Upstream response body"
// @Failure      400    {object}  ErrorResponse  "Invalid request body or target"
// @Failure      404    {object}  ErrorResponse  "Unknown service"
// @Failure      502    {object}  ErrorResponse  "Upstream unreachable or timed out"
// @Router       /proxy [post]
func (h *PaymentHandler) ForwardRequest(c *gin.Context) {
	var req ProxyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	target := req.Target
	if req.ServiceID != "" {
		service, err := h.common.store.GetServiceByServiceID(c.Request.Context(), req.ServiceID)
		if err != nil {
			handleDBError(c, err, "Service not found")
			return
		}
		target = service.Endpoint
	}
	if target == "" {
		sendError(c, http.StatusBadRequest, "Either serviceId or target is required", nil)
		return
	}

	body, err := marshalBody(req.Body)
	if err != nil {
		sendError(c, http.StatusBadRequest, "Request body is not serializable", err)
		return
	}

	headers := cloneHeaders(req.Headers)
	if proof := c.GetHeader(x402.HeaderPayment); proof != "" {
		headers[x402.HeaderPayment] = proof
	}

	result, err := h.common.forwarder.Forward(c.Request.Context(), target, req.Method, headers, body)
	if err != nil {
		sendProxyError(c, err)
		return
	}

	relayHeaders(c, result)
	c.JSON(result.StatusCode, result.Body)
}

// PayService godoc
// @Summary      Execute a paid call against a catalog service
// @Description  Probes the service for a fresh quote, verifies the X-Payment proof against it, forwards the call, settles the payment, and records the fee split. Verification and settlement are never retried.
// @Tags         pay
// @Accept       json
// @Produce      json
// @Param        pay        body      PayRequest  true  "Service and payload"
// @Param        X-Payment  header    string      true  "Payment proof"
// @Success      200    {object}  PayResponse    "Upstream response with settlement facts"
// @Failure      400    {object}  ErrorResponse  "Invalid request body"
// @Failure      402    {object}  x402.PaymentChallenge  "Proof missing or rejected; body carries the current challenge"
// @Failure      404    {object}  ErrorResponse  "Unknown service"
// @Failure      409    {object}  ErrorResponse  "Service is not available"
// @Failure      502    {object}  ErrorResponse  "Endpoint, upstream, or facilitator failure"
// @Router       /pay [post]
func (h *PaymentHandler) PayService(c *gin.Context) {
	var req PayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := c.Request.Context()

	service, err := h.common.store.GetServiceByServiceID(ctx, req.ServiceID)
	if err != nil {
		handleDBError(c, err, "Service not found")
		return
	}
	if !service.Available {
		sendError(c, http.StatusConflict, "Service is not available", nil)
		return
	}

	// Challenge material can rotate between catalog syncs, so the quote is
	// always taken from a live probe, never from stored fields.
	quote, err := h.common.prober.Probe(ctx, service.Endpoint)
	if err != nil {
		sendProbeError(c, err)
		return
	}
	requirement := quote.Requirement()

	proof := c.GetHeader(x402.HeaderPayment)
	if proof == "" {
		c.JSON(http.StatusPaymentRequired, x402.PaymentChallenge{
			X402Version: x402.X402Version,
			Accepts:     []x402.PaymentRequirements{requirement},
			Error:       "payment proof required",
		})
		return
	}

	verification, err := h.common.facilitator.Verify(ctx, proof, requirement)
	if err != nil {
		sendFacilitatorError(c, err)
		return
	}
	if !verification.IsValid {
		h.common.metrics.IncCounter("verify_rejected", map[string]string{"network": quote.Network})
		c.JSON(http.StatusPaymentRequired, x402.PaymentChallenge{
			X402Version: x402.X402Version,
			Accepts:     []x402.PaymentRequirements{requirement},
			Error:       verification.InvalidReason,
		})
		return
	}

	body, err := marshalBody(req.Body)
	if err != nil {
		sendError(c, http.StatusBadRequest, "Request body is not serializable", err)
		return
	}

	headers := cloneHeaders(req.Headers)
	headers[x402.HeaderPayment] = proof

	start := time.Now()
	result, err := h.common.forwarder.Forward(ctx, service.Endpoint, req.Method, headers, body)
	if err != nil {
		sendProxyError(c, err)
		return
	}

	if result.StatusCode < 200 || result.StatusCode >= 300 {
		// The upstream refused the call, so nothing is settled and the proof
		// stays unspent.
		relayHeaders(c, result)
		c.JSON(result.StatusCode, result.Body)
		return
	}

	settlement, err := h.common.facilitator.Settle(ctx, proof, requirement)
	if err != nil {
		sendFacilitatorError(c, err)
		return
	}
	if !settlement.Success {
		sendError(c, http.StatusBadGateway, "Settlement rejected: "+settlement.ErrorReason, nil)
		return
	}

	h.common.metrics.IncCounter("settlement", map[string]string{"network": quote.Network})
	h.common.metrics.ObserveLatency("pay", time.Since(start), map[string]string{"network": quote.Network})

	fee, merchant, err := x402.Split(quote.MaxAmountRequired, h.common.cfg.PlatformFeePercent)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "Fee split failed", err)
		return
	}

	// Settlement is already final on-chain. A ledger write failure is logged
	// for operator reconciliation, not surfaced as a call failure.
	if _, err := h.common.store.CreateFeeRecord(ctx, db.CreateFeeRecordParams{
		ServiceID:      service.ServiceID,
		Network:        quote.Network,
		TxHash:         settlement.Transaction,
		GrossAmount:    quote.MaxAmountRequired,
		FeeAmount:      fee,
		MerchantAmount: merchant,
	}); err != nil {
		logger.Error("failed to record fee split",
			zap.String("service_id", service.ServiceID),
			zap.String("transaction", settlement.Transaction),
			zap.Error(err))
	}

	if receipt, err := json.Marshal(settlement); err == nil {
		c.Header(x402.HeaderPaymentResponse, base64.StdEncoding.EncodeToString(receipt))
	}
	relayHeaders(c, result)

	sendSuccess(c, http.StatusOK, PayResponse{
		Status: result.StatusCode,
		Body:   result.Body,
		Settlement: &Settlement{
			Transaction:    settlement.Transaction,
			Network:        quote.Network,
			Payer:          settlement.Payer,
			GrossAmount:    quote.MaxAmountRequired,
			FeeAmount:      fee,
			MerchantAmount: merchant,
		},
	})
}

func marshalBody(body interface{}) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	return json.Marshal(body)
}

func cloneHeaders(headers map[string]string) map[string]string {
	cloned := make(map[string]string, len(headers))
	for key, value := range headers {
		cloned[key] = value
	}
	return cloned
}

// relayHeaders copies the protocol headers the forwarder captured onto the
// response.
func relayHeaders(c *gin.Context, result *x402.UpstreamResult) {
	for name, values := range result.Headers {
		if name == "Content-Type" {
			continue
		}
		for _, value := range values {
			c.Header(name, value)
		}
	}
}

func sendProxyError(c *gin.Context, err error) {
	var proxyErr *x402.ProxyError
	if errors.As(err, &proxyErr) {
		sendError(c, proxyErr.StatusClass(), proxyErr.Error(), err)
		return
	}
	sendError(c, http.StatusInternalServerError, "forward failed", err)
}
