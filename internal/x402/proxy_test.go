package x402

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForwardRelaysPaymentHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "proof-value", r.Header.Get(HeaderPayment))
		w.Header().Set(HeaderPaymentResponse, "receipt-value")
		w.Header().Set("X-Internal-Secret", "must-not-leak")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result":"ok"}`))
	}))
	defer server.Close()

	result, err := NewForwarder().Forward(context.Background(), server.URL, http.MethodPost,
		map[string]string{HeaderPayment: "proof-value"}, []byte(`{}`))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, result.StatusCode)
	// Protocol headers are relayed verbatim, everything else is dropped.
	assert.Equal(t, "receipt-value", result.Headers.Get(HeaderPaymentResponse))
	assert.Empty(t, result.Headers.Get("X-Internal-Secret"))

	body, ok := result.Body.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "ok", body["result"])
}

func TestForwardWrapsNonJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("plain text response"))
	}))
	defer server.Close()

	result, err := NewForwarder().Forward(context.Background(), server.URL, "", nil, nil)
	require.NoError(t, err)

	body, ok := result.Body.(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "plain text response", body["raw"])
}

func TestForwardDefaultsToPost(t *testing.T) {
	var gotMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
	}))
	defer server.Close()

	_, err := NewForwarder().Forward(context.Background(), server.URL, "", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, gotMethod)
}

func TestForwardRejectsMalformedTarget(t *testing.T) {
	_, err := NewForwarder().Forward(context.Background(), "ftp://example.com", "", nil, nil)
	require.Error(t, err)

	var proxyErr *ProxyError
	require.True(t, errors.As(err, &proxyErr))
	assert.Equal(t, ProxyMalformedCall, proxyErr.Kind)
	assert.Equal(t, http.StatusInternalServerError, proxyErr.StatusClass())
}

func TestForwardUpstreamFailureIs502Class(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	_, err := NewForwarder().Forward(context.Background(), server.URL, "", nil, nil)
	require.Error(t, err)

	var proxyErr *ProxyError
	require.True(t, errors.As(err, &proxyErr))
	assert.Equal(t, ProxyUpstream, proxyErr.Kind)
	assert.Equal(t, http.StatusBadGateway, proxyErr.StatusClass())
}
