package x402

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeExtractsQuoteFrom402(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(http.StatusPaymentRequired)
		json.NewEncoder(w).Encode(PaymentChallenge{
			X402Version: X402Version,
			Accepts: []PaymentRequirements{{
				Scheme:            SchemeExact,
				Network:           "base-sepolia",
				MaxAmountRequired: "1000000",
				PayTo:             "0x1111111111111111111111111111111111111111",
				Asset:             "0x2222222222222222222222222222222222222222",
			}},
		})
	}))
	defer server.Close()

	quote, err := NewProber().Probe(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "base-sepolia", quote.Network)
	assert.Equal(t, "1000000", quote.MaxAmountRequired)
	assert.Equal(t, "0x1111111111111111111111111111111111111111", quote.PayTo)
}

func TestProbe200IsUnexpectedStatus(t *testing.T) {
	// A 200 means the endpoint is not payment-gated. That is a probe
	// failure, never a success.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	_, err := NewProber().Probe(context.Background(), server.URL)
	require.Error(t, err)

	var probeErr *ProbeError
	require.True(t, errors.As(err, &probeErr))
	assert.Equal(t, ProbeUnexpectedStatus, probeErr.Kind)
	assert.Equal(t, http.StatusOK, probeErr.Status)
}

func TestProbeMalformedChallenge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte("not a challenge"))
	}))
	defer server.Close()

	_, err := NewProber().Probe(context.Background(), server.URL)
	require.Error(t, err)

	var probeErr *ProbeError
	require.True(t, errors.As(err, &probeErr))
	assert.Equal(t, ProbeParse, probeErr.Kind)
}

func TestProbeUnreachableEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	_, err := NewProber().Probe(context.Background(), server.URL)
	require.Error(t, err)

	var probeErr *ProbeError
	require.True(t, errors.As(err, &probeErr))
	assert.Equal(t, ProbeNetwork, probeErr.Kind)
}

func TestProbeCallerCancellationPassesThrough(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer server.Close()

	_, err := NewProber().Probe(ctx, server.URL)
	require.Error(t, err)

	// Caller cancellation is not reclassified into the probe taxonomy.
	var probeErr *ProbeError
	assert.False(t, errors.As(err, &probeErr))
	assert.True(t, errors.Is(err, context.Canceled))
}
