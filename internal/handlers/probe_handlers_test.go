package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"paygrid-api/internal/x402"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func probeRouter(common *CommonServices) *gin.Engine {
	router := gin.New()
	router.POST("/probe", NewProbeHandler(common).ProbeEndpoint)
	return router
}

func TestProbeEndpointReturnsQuote(t *testing.T) {
	common, deps := newTestCommon()
	deps.prober.On("Probe", mock.Anything, "https://svc.example.com/v1").Return(&x402.Quote{
		Network:           "base-sepolia",
		ChainID:           84532,
		PayTo:             "0xmerchant",
		MaxAmountRequired: "1000000",
	}, nil)

	body, _ := json.Marshal(ProbeRequest{Endpoint: "https://svc.example.com/v1"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/probe", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	probeRouter(common).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp ProbeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "base-sepolia", resp.Quote.Network)
	assert.Equal(t, "1000000", resp.Quote.MaxAmountRequired)
}

func TestProbeEndpointNotGatedIs422(t *testing.T) {
	common, deps := newTestCommon()
	deps.prober.On("Probe", mock.Anything, mock.Anything).Return(nil, &x402.ProbeError{
		Kind:   x402.ProbeUnexpectedStatus,
		Status: http.StatusOK,
	})

	body, _ := json.Marshal(ProbeRequest{Endpoint: "https://open.example.com"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/probe", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	probeRouter(common).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestProbeEndpointTimeoutIs502(t *testing.T) {
	common, deps := newTestCommon()
	deps.prober.On("Probe", mock.Anything, mock.Anything).Return(nil, &x402.ProbeError{
		Kind: x402.ProbeTimeout,
	})

	body, _ := json.Marshal(ProbeRequest{Endpoint: "https://slow.example.com"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/probe", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	probeRouter(common).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestProbeEndpointRejectsBadBody(t *testing.T) {
	common, _ := newTestCommon()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/probe", bytes.NewReader([]byte(`{"endpoint":"not a url"}`)))
	req.Header.Set("Content-Type", "application/json")
	probeRouter(common).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
