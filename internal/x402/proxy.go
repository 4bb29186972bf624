package x402

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ForwardTimeout bounds every proxied call, enforced by context cancellation.
const ForwardTimeout = 30 * time.Second

// Protocol headers.
const (
	HeaderPayment         = "X-Payment"
	HeaderPaymentResponse = "X-Payment-Response"
)

// relayedHeaders is the fixed set of protocol-relevant response headers
// copied verbatim from the upstream response. Nothing else is forwarded.
var relayedHeaders = []string{
	HeaderPayment,
	HeaderPaymentResponse,
	"Payment",
	"Payment-Response",
	"Payment-Required",
	"Payment-Quote",
	"Www-Authenticate",
	"Content-Type",
}

const maxUpstreamBody = 4 << 20

// UpstreamResult is the outcome of a successfully forwarded request. Body is
// the upstream JSON when it parses, or a {"raw": ...} envelope when it does
// not: payment protocol bodies are not guaranteed to be JSON on error paths.
type UpstreamResult struct {
	StatusCode int
	Body       interface{}
	Headers    http.Header
}

// Forwarder proxies payment-bearing requests to upstream resources and
// facilitators, relaying protocol headers in both directions.
type Forwarder struct {
	httpClient *http.Client
}

func NewForwarder() *Forwarder {
	return &Forwarder{
		httpClient: &http.Client{},
	}
}

// Forward sends the caller's request to targetURL. JSON content negotiation
// is applied unless the caller overrides it, and a caller-supplied payment
// proof header is passed through unchanged.
func (f *Forwarder) Forward(ctx context.Context, targetURL, method string, headers map[string]string, body []byte) (*UpstreamResult, error) {
	parsed, err := url.ParseRequestURI(targetURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, &ProxyError{Kind: ProxyMalformedCall, Target: targetURL, Err: errors.New("target is not a valid http(s) URL")}
	}
	if method == "" {
		method = http.MethodPost
	}

	forwardCtx, cancel := context.WithTimeout(ctx, ForwardTimeout)
	defer cancel()

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(forwardCtx, method, targetURL, reader)
	if err != nil {
		return nil, &ProxyError{Kind: ProxyMalformedCall, Target: targetURL, Err: err}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return nil, &ProxyError{Kind: ProxyTimeout, Target: targetURL, Err: err}
		case errors.Is(err, context.Canceled):
			return nil, err
		default:
			return nil, &ProxyError{Kind: ProxyUpstream, Target: targetURL, Err: err}
		}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
	if err != nil {
		return nil, &ProxyError{Kind: ProxyUpstream, Target: targetURL, Err: err}
	}

	result := &UpstreamResult{
		StatusCode: resp.StatusCode,
		Headers:    make(http.Header),
	}

	// Raw text first, JSON parse second. Non-JSON upstream bodies are wrapped
	// rather than failing the call.
	var parsedBody interface{}
	if len(raw) > 0 && json.Unmarshal(raw, &parsedBody) == nil {
		result.Body = parsedBody
	} else {
		result.Body = map[string]string{"raw": string(raw)}
	}

	for _, name := range relayedHeaders {
		if values := resp.Header.Values(name); len(values) > 0 {
			for _, v := range values {
				result.Headers.Add(name, v)
			}
		}
	}

	return result, nil
}
