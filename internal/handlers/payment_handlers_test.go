package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"paygrid-api/internal/client/facilitator"
	"paygrid-api/internal/db"
	"paygrid-api/internal/x402"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func payRouter(common *CommonServices) *gin.Engine {
	router := gin.New()
	handler := NewPaymentHandler(common)
	router.POST("/pay", handler.PayService)
	router.POST("/proxy", handler.ForwardRequest)
	return router
}

func availableService() db.Service {
	return db.Service{
		ServiceID: "svc-1",
		Endpoint:  "https://svc.example.com/v1",
		Network:   "base-sepolia",
		Available: true,
	}
}

func payQuote() *x402.Quote {
	return &x402.Quote{
		Network:           "base-sepolia",
		ChainID:           84532,
		PayTo:             "0xmerchant",
		TokenAddress:      "0xtoken",
		MaxAmountRequired: "1000000",
	}
}

func doPay(t *testing.T, common *CommonServices, payload PayRequest, proof string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/pay", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if proof != "" {
		req.Header.Set(x402.HeaderPayment, proof)
	}
	payRouter(common).ServeHTTP(w, req)
	return w
}

func TestPayServiceFullPipeline(t *testing.T) {
	common, deps := newTestCommon()
	service := availableService()
	quote := payQuote()

	deps.store.On("GetServiceByServiceID", mock.Anything, "svc-1").Return(service, nil)
	deps.prober.On("Probe", mock.Anything, service.Endpoint).Return(quote, nil)
	deps.facilitator.On("Verify", mock.Anything, "proof-abc", quote.Requirement()).
		Return(&facilitator.VerifyResult{IsValid: true, Payer: "0xpayer"}, nil)
	deps.forwarder.On("Forward", mock.Anything, service.Endpoint, "", mock.MatchedBy(func(h map[string]string) bool {
		return h[x402.HeaderPayment] == "proof-abc"
	}), mock.Anything).Return(&x402.UpstreamResult{
		StatusCode: http.StatusOK,
		Body:       map[string]interface{}{"answer": "42"},
		Headers:    http.Header{},
	}, nil)
	deps.facilitator.On("Settle", mock.Anything, "proof-abc", quote.Requirement()).
		Return(&facilitator.SettleResult{Success: true, Transaction: "0xtx", Network: "base-sepolia", Payer: "0xpayer"}, nil)
	deps.store.On("CreateFeeRecord", mock.Anything, db.CreateFeeRecordParams{
		ServiceID:      "svc-1",
		Network:        "base-sepolia",
		TxHash:         "0xtx",
		GrossAmount:    "1000000",
		FeeAmount:      "50000",
		MerchantAmount: "950000",
	}).Return(db.FeeRecord{}, nil)

	w := doPay(t, common, PayRequest{ServiceID: "svc-1", Body: map[string]string{"prompt": "hi"}}, "proof-abc")

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(x402.HeaderPaymentResponse))

	var resp PayResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Settlement)
	assert.Equal(t, "0xtx", resp.Settlement.Transaction)
	assert.Equal(t, "50000", resp.Settlement.FeeAmount)
	assert.Equal(t, "950000", resp.Settlement.MerchantAmount)

	deps.store.AssertExpectations(t)
	deps.facilitator.AssertExpectations(t)
}

func TestPayServiceMissingProofIs402WithChallenge(t *testing.T) {
	common, deps := newTestCommon()
	deps.store.On("GetServiceByServiceID", mock.Anything, "svc-1").Return(availableService(), nil)
	deps.prober.On("Probe", mock.Anything, mock.Anything).Return(payQuote(), nil)

	w := doPay(t, common, PayRequest{ServiceID: "svc-1"}, "")

	require.Equal(t, http.StatusPaymentRequired, w.Code)

	var challenge x402.PaymentChallenge
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &challenge))
	assert.Equal(t, x402.X402Version, challenge.X402Version)
	require.Len(t, challenge.Accepts, 1)
	assert.Equal(t, "1000000", challenge.Accepts[0].MaxAmountRequired)
}

func TestPayServiceRejectedProofIs402(t *testing.T) {
	common, deps := newTestCommon()
	quote := payQuote()
	deps.store.On("GetServiceByServiceID", mock.Anything, "svc-1").Return(availableService(), nil)
	deps.prober.On("Probe", mock.Anything, mock.Anything).Return(quote, nil)
	deps.facilitator.On("Verify", mock.Anything, "bad-proof", quote.Requirement()).
		Return(&facilitator.VerifyResult{IsValid: false, InvalidReason: "insufficient funds"}, nil)

	w := doPay(t, common, PayRequest{ServiceID: "svc-1"}, "bad-proof")

	require.Equal(t, http.StatusPaymentRequired, w.Code)

	var challenge x402.PaymentChallenge
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &challenge))
	assert.Equal(t, "insufficient funds", challenge.Error)

	// A rejected proof is never forwarded or settled.
	deps.forwarder.AssertNotCalled(t, "Forward", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	deps.facilitator.AssertNotCalled(t, "Settle", mock.Anything, mock.Anything, mock.Anything)
}

func TestPayServiceUpstreamRefusalSkipsSettle(t *testing.T) {
	common, deps := newTestCommon()
	quote := payQuote()
	deps.store.On("GetServiceByServiceID", mock.Anything, "svc-1").Return(availableService(), nil)
	deps.prober.On("Probe", mock.Anything, mock.Anything).Return(quote, nil)
	deps.facilitator.On("Verify", mock.Anything, mock.Anything, mock.Anything).
		Return(&facilitator.VerifyResult{IsValid: true}, nil)
	deps.forwarder.On("Forward", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&x402.UpstreamResult{StatusCode: http.StatusBadRequest, Body: map[string]interface{}{"error": "bad input"}, Headers: http.Header{}}, nil)

	w := doPay(t, common, PayRequest{ServiceID: "svc-1"}, "proof-abc")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	deps.facilitator.AssertNotCalled(t, "Settle", mock.Anything, mock.Anything, mock.Anything)
	deps.store.AssertNotCalled(t, "CreateFeeRecord", mock.Anything, mock.Anything)
}

func TestPayServiceUnavailableIs409(t *testing.T) {
	common, deps := newTestCommon()
	service := availableService()
	service.Available = false
	deps.store.On("GetServiceByServiceID", mock.Anything, "svc-1").Return(service, nil)

	w := doPay(t, common, PayRequest{ServiceID: "svc-1"}, "proof-abc")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestForwardRequestRelaysUpstream(t *testing.T) {
	common, deps := newTestCommon()
	deps.forwarder.On("Forward", mock.Anything, "https://direct.example.com", http.MethodGet, mock.Anything, mock.Anything).
		Return(&x402.UpstreamResult{
			StatusCode: http.StatusPaymentRequired,
			Body:       map[string]interface{}{"x402Version": float64(1)},
			Headers:    http.Header{"Payment-Required": []string{"challenge"}},
		}, nil)

	body, _ := json.Marshal(ProxyRequest{Target: "https://direct.example.com", Method: http.MethodGet})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/proxy", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	payRouter(common).ServeHTTP(w, req)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, "challenge", w.Header().Get("Payment-Required"))
}

func TestForwardRequestRequiresTarget(t *testing.T) {
	common, _ := newTestCommon()

	body, _ := json.Marshal(ProxyRequest{})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/proxy", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	payRouter(common).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
