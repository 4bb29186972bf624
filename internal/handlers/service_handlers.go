package handlers

import (
	"net/http"
	"strconv"

	"paygrid-api/internal/db"
	"paygrid-api/internal/ownership"
	"paygrid-api/internal/x402"

	"github.com/gin-gonic/gin"
)

const defaultListLimit = 100

// ServiceHandler manages the service catalog: listing, self-submission,
// curated updates and ownership claims.
type ServiceHandler struct {
	common *CommonServices
}

func NewServiceHandler(common *CommonServices) *ServiceHandler {
	return &ServiceHandler{common: common}
}

// ListServices godoc
// @Summary      List catalog services
// @Tags         services
// @Produce      json
// @Param        network    query  string  false  "Filter by network"
// @Param        source     query  string  false  "Filter by registry source"
// @Param        available  query  bool    false  "Only available services"
// @Param        limit      query  int     false  "Max entries (default 100)"
// @Success      200  {object}  map[string]interface{}  "List of services"
// @Failure      500  {object}  ErrorResponse
// @Router       /services [get]
func (h *ServiceHandler) ListServices(c *gin.Context) {
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	services, err := h.common.store.ListServices(c.Request.Context(), db.ListServicesParams{
		Network:       c.Query("network"),
		Source:        c.Query("source"),
		OnlyAvailable: c.Query("available") == "true",
		Limit:         int32(limit),
	})
	if err != nil {
		handleDBError(c, err, "No services found")
		return
	}

	sendList(c, toServiceResponses(services))
}

// GetService godoc
// @Summary      Get one catalog service
// @Tags         services
// @Produce      json
// @Param        service_id  path      string  true  "Service ID"
// @Success      200  {object}  ServiceResponse
// @Failure      404  {object}  ErrorResponse  "Unknown service"
// @Router       /services/{service_id} [get]
func (h *ServiceHandler) GetService(c *gin.Context) {
	service, err := h.common.store.GetServiceByServiceID(c.Request.Context(), c.Param("service_id"))
	if err != nil {
		handleDBError(c, err, "Service not found")
		return
	}
	sendSuccess(c, http.StatusOK, toServiceResponse(service))
}

// SubmitService godoc
// @Summary      Submit a self-registered service
// @Description  Probes the endpoint first; the entry is only created when the endpoint answers with a valid payment challenge. Operational fields come from the probe, curated fields from the submitter.
// @Tags         services
// @Accept       json
// @Produce      json
// @Param        service  body      SubmitServiceRequest  true  "Service to register"
// @Success      201  {object}  ServiceResponse  "Created entry"
// @Failure      400  {object}  ErrorResponse  "Invalid request body"
// @Failure      422  {object}  ErrorResponse  "Endpoint is not payment-gated"
// @Failure      502  {object}  ErrorResponse  "Endpoint unreachable"
// @Router       /services [post]
func (h *ServiceHandler) SubmitService(c *gin.Context) {
	var req SubmitServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	quote, err := h.common.prober.Probe(c.Request.Context(), req.Endpoint)
	if err != nil {
		sendProbeError(c, err)
		return
	}

	display, _ := x402.PriceDisplay(quote.MaxAmountRequired, 6)

	service, err := h.common.store.CreateService(c.Request.Context(), db.CreateServiceParams{
		ServiceID:      req.ServiceID,
		Name:           req.Name,
		Description:    req.Description,
		Category:       req.Category,
		Endpoint:       req.Endpoint,
		Network:        quote.Network,
		ChainID:        quote.ChainID,
		TokenAddress:   quote.TokenAddress,
		Price:          quote.MaxAmountRequired,
		PriceDisplay:   display,
		FacilitatorURL: quote.FacilitatorURL,
		Available:      true,
		Source:         db.SourceSelf,
		Verified:       false,
		ApprovalStatus: db.ApprovalPending,
	})
	if err != nil {
		handleDBError(c, err, "Service not found")
		return
	}

	h.common.metrics.IncCounter("service_submitted", map[string]string{"network": quote.Network})
	sendSuccess(c, http.StatusCreated, toServiceResponse(service))
}

// UpdateService godoc
// @Summary      Update curated service metadata
// @Description  Updates name, description and category. Empty fields are left unchanged. Reconciliation never overwrites these fields.
// @Tags         services
// @Accept       json
// @Produce      json
// @Param        service_id  path      string                true  "Service ID"
// @Param        service     body      UpdateServiceRequest  true  "Fields to update"
// @Success      200  {object}  ServiceResponse
// @Failure      400  {object}  ErrorResponse  "Invalid request body"
// @Failure      404  {object}  ErrorResponse  "Unknown service"
// @Router       /services/{service_id} [patch]
func (h *ServiceHandler) UpdateService(c *gin.Context) {
	var req UpdateServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	service, err := h.common.store.UpdateServiceCurated(c.Request.Context(), db.UpdateServiceCuratedParams{
		ServiceID:   c.Param("service_id"),
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
	})
	if err != nil {
		handleDBError(c, err, "Service not found")
		return
	}
	sendSuccess(c, http.StatusOK, toServiceResponse(service))
}

// ListServicesByOwner godoc
// @Summary      List services owned by an address
// @Tags         services
// @Produce      json
// @Param        address  path      string  true  "Owner wallet address"
// @Success      200  {object}  map[string]interface{}  "List of services"
// @Failure      500  {object}  ErrorResponse
// @Router       /services/owner/{address} [get]
func (h *ServiceHandler) ListServicesByOwner(c *gin.Context) {
	services, err := h.common.store.ListServicesByOwner(c.Request.Context(), c.Param("address"))
	if err != nil {
		handleDBError(c, err, "No services found")
		return
	}
	sendList(c, toServiceResponses(services))
}

// ClaimService godoc
// @Summary      Claim ownership of a catalog entry
// @Description  Verifies a personal_sign signature over the canonical claim message. On success the entry is marked verified and bound to the claiming address.
// @Tags         services
// @Accept       json
// @Produce      json
// @Param        service_id  path      string               true  "Service ID"
// @Param        claim       body      ClaimServiceRequest  true  "Address and signature"
// @Success      200  {object}  ServiceResponse  "Verified entry"
// @Failure      400  {object}  ErrorResponse  "Invalid request body or signature format"
// @Failure      401  {object}  ErrorResponse  "Signature does not match the address"
// @Failure      404  {object}  ErrorResponse  "Unknown service"
// @Router       /services/{service_id}/claim [post]
func (h *ServiceHandler) ClaimService(c *gin.Context) {
	var req ClaimServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	serviceID := c.Param("service_id")
	if _, err := h.common.store.GetServiceByServiceID(c.Request.Context(), serviceID); err != nil {
		handleDBError(c, err, "Service not found")
		return
	}

	message := ownership.ClaimMessage(serviceID, req.Address)
	valid, err := h.common.verifier.Verify(req.Address, message, req.Signature)
	if err != nil {
		sendError(c, http.StatusBadRequest, "Invalid signature format", err)
		return
	}
	if !valid {
		sendError(c, http.StatusUnauthorized, "Signature does not match the claimed address", nil)
		return
	}

	service, err := h.common.store.SetServiceVerified(c.Request.Context(), db.SetServiceVerifiedParams{
		ServiceID:    serviceID,
		OwnerAddress: req.Address,
	})
	if err != nil {
		handleDBError(c, err, "Service not found")
		return
	}

	sendSuccess(c, http.StatusOK, toServiceResponse(service))
}
