package handlers

import (
	"paygrid-api/internal/db"
	"paygrid-api/internal/x402"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse represents a standard success response
type SuccessResponse struct {
	Message string `json:"message"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

// ProbeRequest asks for a preflight probe of one endpoint.
type ProbeRequest struct {
	Endpoint string `json:"endpoint" binding:"required,url"`
}

// ProbeResponse carries the quote extracted from a payment challenge.
type ProbeResponse struct {
	Endpoint string     `json:"endpoint"`
	Quote    x402.Quote `json:"quote"`
}

// ProxyRequest relays one pre-paid call to an upstream service.
type ProxyRequest struct {
	ServiceID string            `json:"serviceId,omitempty"`
	Target    string            `json:"target,omitempty"`
	Method    string            `json:"method,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	Body      interface{}       `json:"body,omitempty"`
}

// PayRequest executes the full probe/verify/forward/settle pipeline for one
// catalog service. The payment proof arrives in the X-Payment header.
type PayRequest struct {
	ServiceID string            `json:"serviceId" binding:"required"`
	Method    string            `json:"method,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	Body      interface{}       `json:"body,omitempty"`
}

// PayResponse wraps the upstream response together with settlement facts.
type PayResponse struct {
	Status     int         `json:"status"`
	Body       interface{} `json:"body"`
	Settlement *Settlement `json:"settlement"`
}

// Settlement reports what was settled and how the amount was split.
type Settlement struct {
	Transaction    string `json:"transaction,omitempty"`
	Network        string `json:"network"`
	Payer          string `json:"payer,omitempty"`
	GrossAmount    string `json:"grossAmount"`
	FeeAmount      string `json:"feeAmount"`
	MerchantAmount string `json:"merchantAmount"`
}

// FacilitatorCheckRequest carries a proof and the requirement it must match.
type FacilitatorCheckRequest struct {
	PaymentHeader       string                   `json:"paymentHeader" binding:"required"`
	PaymentRequirements x402.PaymentRequirements `json:"paymentRequirements" binding:"required"`
}

// SubmitServiceRequest registers a self-submitted service. The endpoint is
// probed before anything is stored.
type SubmitServiceRequest struct {
	ServiceID   string `json:"serviceId" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	Endpoint    string `json:"endpoint" binding:"required,url"`
}

// UpdateServiceRequest updates owner-curated presentation fields. Empty
// fields are left unchanged.
type UpdateServiceRequest struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
}

// ClaimServiceRequest proves wallet ownership of a catalog entry.
type ClaimServiceRequest struct {
	Address   string `json:"address" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

// ReverifyRequest scopes a reverification batch.
type ReverifyRequest struct {
	Network string `json:"network,omitempty"`
	Source  string `json:"source,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

// StakeRequest stakes an integer token amount for an address.
type StakeRequest struct {
	Address string `json:"address" binding:"required"`
	Amount  string `json:"amount" binding:"required"`
}

// UnstakeRequest initiates or completes an unstake for an address.
type UnstakeRequest struct {
	Address string `json:"address" binding:"required"`
}

// ServiceResponse is the API view of a catalog entry.
type ServiceResponse struct {
	ID                  string `json:"id"`
	ServiceID           string `json:"serviceId"`
	Name                string `json:"name"`
	Description         string `json:"description,omitempty"`
	Category            string `json:"category,omitempty"`
	Endpoint            string `json:"endpoint"`
	Network             string `json:"network,omitempty"`
	ChainID             int64  `json:"chainId,omitempty"`
	TokenAddress        string `json:"tokenAddress,omitempty"`
	Price               string `json:"price,omitempty"`
	PriceDisplay        string `json:"priceDisplay,omitempty"`
	FacilitatorURL      string `json:"facilitatorUrl,omitempty"`
	Available           bool   `json:"available"`
	Source              string `json:"source"`
	Verified            bool   `json:"verified"`
	ApprovalStatus      string `json:"approvalStatus"`
	OwnerAddress        string `json:"ownerAddress,omitempty"`
	LastPreflightAt     string `json:"lastPreflightAt,omitempty"`
	LastPreflightStatus string `json:"lastPreflightStatus,omitempty"`
}

func toServiceResponse(service db.Service) ServiceResponse {
	resp := ServiceResponse{
		ID:                  service.ID.String(),
		ServiceID:           service.ServiceID,
		Name:                service.Name,
		Description:         service.Description,
		Category:            service.Category,
		Endpoint:            service.Endpoint,
		Network:             service.Network,
		ChainID:             service.ChainID,
		TokenAddress:        service.TokenAddress,
		Price:               service.Price,
		PriceDisplay:        service.PriceDisplay,
		FacilitatorURL:      service.FacilitatorURL,
		Available:           service.Available,
		Source:              service.Source,
		Verified:            service.Verified,
		ApprovalStatus:      service.ApprovalStatus,
		OwnerAddress:        service.OwnerAddress,
		LastPreflightStatus: service.LastPreflightStatus,
	}
	if service.LastPreflightAt.Valid {
		resp.LastPreflightAt = service.LastPreflightAt.Time.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	return resp
}

func toServiceResponses(services []db.Service) []ServiceResponse {
	out := make([]ServiceResponse, len(services))
	for i, service := range services {
		out[i] = toServiceResponse(service)
	}
	return out
}
