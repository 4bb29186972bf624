package x402

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"
)

// ProbeDeadline bounds every preflight probe. Exceeding it surfaces as a
// distinct timeout failure, never a partial result.
const ProbeDeadline = 10 * time.Second

// maxChallengeBody caps how much of an untrusted 402 body is read.
const maxChallengeBody = 1 << 20

// Prober issues preflight probes against candidate resource endpoints to
// discover their payment requirements. Probes are side-effect free and safe
// to repeat.
type Prober struct {
	httpClient *http.Client
}

func NewProber() *Prober {
	return &Prober{
		// Per-call bound comes from the probe context; the client itself
		// carries no timeout so caller cancellation propagates cleanly.
		httpClient: &http.Client{},
	}
}

// Probe sends a minimal JSON request to the endpoint and extracts a quote
// from its 402 challenge. A 402-class status is the only success path: any
// other status, including 200, means the endpoint is not payment-gated and
// is reported as unexpected-status.
func (p *Prober) Probe(ctx context.Context, endpoint string) (*Quote, error) {
	probeCtx, cancel := context.WithTimeout(ctx, ProbeDeadline)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodPost, endpoint, bytes.NewReader([]byte("{}")))
	if err != nil {
		return nil, &ProbeError{Kind: ProbeNetwork, Endpoint: endpoint, Reason: "invalid endpoint URL", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return nil, &ProbeError{Kind: ProbeTimeout, Endpoint: endpoint, Reason: "probe exceeded 10s bound", Err: err}
		case errors.Is(err, context.Canceled):
			// Caller cancellation is not a probe classification.
			return nil, err
		default:
			return nil, &ProbeError{Kind: ProbeNetwork, Endpoint: endpoint, Reason: "request failed", Err: err}
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPaymentRequired {
		return nil, &ProbeError{
			Kind:     ProbeUnexpectedStatus,
			Endpoint: endpoint,
			Status:   resp.StatusCode,
			Reason:   "endpoint is not payment-gated",
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxChallengeBody))
	if err != nil {
		return nil, &ProbeError{Kind: ProbeNetwork, Endpoint: endpoint, Reason: "failed to read challenge body", Err: err}
	}

	quote, err := ParseChallenge(body)
	if err != nil {
		return nil, &ProbeError{Kind: ProbeParse, Endpoint: endpoint, Status: resp.StatusCode, Reason: err.Error(), Err: err}
	}

	return quote, nil
}
