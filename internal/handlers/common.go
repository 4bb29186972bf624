package handlers

import (
	"context"
	"errors"
	"net/http"

	"paygrid-api/internal/client/facilitator"
	"paygrid-api/internal/config"
	"paygrid-api/internal/db"
	"paygrid-api/internal/logger"
	"paygrid-api/internal/metrics"
	"paygrid-api/internal/ownership"
	"paygrid-api/internal/reconciler"
	"paygrid-api/internal/staking"
	"paygrid-api/internal/x402"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Store is the catalog and fee persistence surface handlers depend on.
// *db.Queries satisfies it.
type Store interface {
	CreateService(ctx context.Context, arg db.CreateServiceParams) (db.Service, error)
	GetServiceByServiceID(ctx context.Context, serviceID string) (db.Service, error)
	ListServices(ctx context.Context, arg db.ListServicesParams) ([]db.Service, error)
	ListServicesByOwner(ctx context.Context, ownerAddress string) ([]db.Service, error)
	UpdateServiceCurated(ctx context.Context, arg db.UpdateServiceCuratedParams) (db.Service, error)
	SetServiceVerified(ctx context.Context, arg db.SetServiceVerifiedParams) (db.Service, error)
	CreateFeeRecord(ctx context.Context, arg db.CreateFeeRecordParams) (db.FeeRecord, error)
	ListUntransferredFeeRecords(ctx context.Context, limit int32) ([]db.FeeRecord, error)
	MarkFeeRecordTransferred(ctx context.Context, id uuid.UUID) (db.FeeRecord, error)
}

// Prober issues preflight probes against candidate endpoints.
type Prober interface {
	Probe(ctx context.Context, endpoint string) (*x402.Quote, error)
}

// Forwarder relays payment-bearing requests to upstream services.
type Forwarder interface {
	Forward(ctx context.Context, targetURL, method string, headers map[string]string, body []byte) (*x402.UpstreamResult, error)
}

// FacilitatorAPI is the typed facilitator surface handlers call.
type FacilitatorAPI interface {
	Verify(ctx context.Context, proof string, requirement x402.PaymentRequirements) (*facilitator.VerifyResult, error)
	Settle(ctx context.Context, proof string, requirement x402.PaymentRequirements) (*facilitator.SettleResult, error)
	Supported(ctx context.Context, network string) (*facilitator.SupportedResult, error)
	List(ctx context.Context, network string) (*facilitator.ListResult, error)
}

// CommonServices holds common dependencies used across handlers. It is
// constructed once at startup and handed to every handler constructor.
type CommonServices struct {
	store       Store
	cfg         *config.Config
	prober      Prober
	forwarder   Forwarder
	facilitator FacilitatorAPI
	reconciler  *reconciler.Reconciler
	staking     *staking.Service
	verifier    *ownership.Verifier
	metrics     metrics.Recorder
}

// NewCommonServices creates a new instance of CommonServices
func NewCommonServices(
	store Store,
	cfg *config.Config,
	prober Prober,
	forwarder Forwarder,
	facilitatorClient FacilitatorAPI,
	rec *reconciler.Reconciler,
	stakingService *staking.Service,
	verifier *ownership.Verifier,
	recorder metrics.Recorder,
) *CommonServices {
	return &CommonServices{
		store:       store,
		cfg:         cfg,
		prober:      prober,
		forwarder:   forwarder,
		facilitator: facilitatorClient,
		reconciler:  rec,
		staking:     stakingService,
		verifier:    verifier,
		metrics:     recorder,
	}
}

// sendError is a helper function that combines logging and error response.
// It logs the error with the given message and sends a JSON error response.
func sendError(c *gin.Context, statusCode int, message string, err error) {
	logger.Error(message,
		zap.Error(err),
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method),
	)
	c.JSON(statusCode, ErrorResponse{Error: message})
}

// handleDBError is a helper function that handles database errors and returns appropriate HTTP status codes
func handleDBError(c *gin.Context, err error, notFoundMsg string) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		sendError(c, http.StatusNotFound, notFoundMsg, err)
	default:
		sendError(c, http.StatusInternalServerError, "Internal server error", err)
	}
}

// sendSuccess is a helper function that sends a success response
func sendSuccess(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, data)
}

// sendList is a helper function that sends a list response
func sendList(c *gin.Context, items interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"object": "list",
		"data":   items,
	})
}

// sendProbeError maps the probe failure taxonomy onto statuses. Connectivity
// problems are 502-class; an endpoint that answered but is not payment-gated
// or returned a malformed challenge is a 422.
func sendProbeError(c *gin.Context, err error) {
	var probeErr *x402.ProbeError
	if !errors.As(err, &probeErr) {
		sendError(c, http.StatusInternalServerError, "probe failed", err)
		return
	}

	switch probeErr.Kind {
	case x402.ProbeUnexpectedStatus, x402.ProbeParse:
		sendError(c, http.StatusUnprocessableEntity, probeErr.Error(), err)
	default:
		sendError(c, http.StatusBadGateway, probeErr.Error(), err)
	}
}

// sendFacilitatorError maps facilitator failures. Rejected credentials are a
// deployment configuration fault; everything else is an upstream fault.
func sendFacilitatorError(c *gin.Context, err error) {
	var facErr *facilitator.Error
	if !errors.As(err, &facErr) {
		sendError(c, http.StatusInternalServerError, "facilitator call failed", err)
		return
	}

	switch facErr.Kind {
	case facilitator.ErrAuth:
		sendError(c, http.StatusInternalServerError, "facilitator credentials rejected", err)
	default:
		sendError(c, http.StatusBadGateway, facErr.Error(), err)
	}
}
