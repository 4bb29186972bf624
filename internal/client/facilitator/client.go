package facilitator

import (
	"context"
	"time"

	httpClient "paygrid-api/internal/client/http"
	"paygrid-api/internal/metrics"
	"paygrid-api/internal/x402"
)

// CallTimeout bounds every facilitator call. No automatic retry anywhere in
// this client: payment proofs are single-use, so a failed verify or settle
// is reported to the caller as-is.
const CallTimeout = 30 * time.Second

// VerifyRequest is the payload sent to a facilitator's verify operation. The
// payment proof header value stays opaque end to end.
type VerifyRequest struct {
	X402Version         int                      `json:"x402Version"`
	PaymentHeader       string                   `json:"paymentHeader"`
	PaymentRequirements x402.PaymentRequirements `json:"paymentRequirements"`
}

// VerifyResult is the facilitator's verification outcome.
type VerifyResult struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
	Payer         string `json:"payer,omitempty"`
}

// SettleRequest is the payload sent to a facilitator's settle operation.
type SettleRequest struct {
	X402Version         int                      `json:"x402Version"`
	PaymentHeader       string                   `json:"paymentHeader"`
	PaymentRequirements x402.PaymentRequirements `json:"paymentRequirements"`
}

// SettleResult is the on-chain settlement outcome.
type SettleResult struct {
	Success     bool   `json:"success"`
	ErrorReason string `json:"errorReason,omitempty"`
	Transaction string `json:"transaction,omitempty"`
	Network     string `json:"network,omitempty"`
	Payer       string `json:"payer,omitempty"`
}

// SupportedKind describes one scheme/network pair a facilitator can settle.
type SupportedKind struct {
	X402Version int    `json:"x402Version"`
	Scheme      string `json:"scheme"`
	Network     string `json:"network"`
}

// SupportedResult lists a facilitator's settlement capabilities.
type SupportedResult struct {
	Kinds []SupportedKind `json:"kinds"`
}

// ListingItem is one entry from a facilitator's service listing.
type ListingItem struct {
	Resource    string                     `json:"resource"`
	Type        string                     `json:"type,omitempty"`
	X402Version int                        `json:"x402Version"`
	Accepts     []x402.PaymentRequirements `json:"accepts"`
	LastUpdated string                     `json:"lastUpdated,omitempty"`
	Metadata    map[string]interface{}     `json:"metadata,omitempty"`
}

// ListResult is a facilitator's registry listing page.
type ListResult struct {
	Items []ListingItem `json:"items"`
}

// Client is the typed wrapper over the facilitator's four operations,
// routing through the Selector for URL and authentication.
type Client struct {
	selector *Selector
	http     *httpClient.HTTPClient
}

// NewClient builds the facilitator client. The underlying HTTP client has
// retries disabled.
func NewClient(selector *Selector, recorder metrics.Recorder) *Client {
	return &Client{
		selector: selector,
		http: httpClient.NewHTTPClient(
			httpClient.WithTimeout(CallTimeout),
			httpClient.WithMetricsRecorder(recorder),
		),
	}
}

// Verify asks the network's facilitator whether the payment proof is valid
// for the given requirement.
func (c *Client) Verify(ctx context.Context, proof string, requirement x402.PaymentRequirements) (*VerifyResult, error) {
	endpoint, err := c.selector.Select(requirement.Network)
	if err != nil {
		return nil, &Error{Kind: ErrUnreachable, Network: requirement.Network, Message: err.Error(), Err: err}
	}

	callCtx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()

	body := VerifyRequest{
		X402Version:         x402.X402Version,
		PaymentHeader:       proof,
		PaymentRequirements: requirement,
	}

	resp, err := c.http.Post(callCtx, endpoint.BaseURL+"/verify", body, c.authOptions(endpoint, OpVerify)...)
	if err != nil {
		return nil, classify(err, ErrVerifyFailed, requirement.Network, "verify call failed")
	}

	var result VerifyResult
	if err := c.http.ProcessJSONResponse(resp, &result); err != nil {
		return nil, classify(err, ErrVerifyFailed, requirement.Network, "verify response unreadable")
	}
	return &result, nil
}

// Settle asks the network's facilitator to finalize a verified payment
// on-chain.
func (c *Client) Settle(ctx context.Context, proof string, requirement x402.PaymentRequirements) (*SettleResult, error) {
	endpoint, err := c.selector.Select(requirement.Network)
	if err != nil {
		return nil, &Error{Kind: ErrUnreachable, Network: requirement.Network, Message: err.Error(), Err: err}
	}

	callCtx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()

	body := SettleRequest{
		X402Version:         x402.X402Version,
		PaymentHeader:       proof,
		PaymentRequirements: requirement,
	}

	resp, err := c.http.Post(callCtx, endpoint.BaseURL+"/settle", body, c.authOptions(endpoint, OpSettle)...)
	if err != nil {
		return nil, classify(err, ErrSettleFailed, requirement.Network, "settle call failed")
	}

	var result SettleResult
	if err := c.http.ProcessJSONResponse(resp, &result); err != nil {
		return nil, classify(err, ErrSettleFailed, requirement.Network, "settle response unreadable")
	}
	return &result, nil
}

// Supported queries the facilitator's capability discovery operation.
func (c *Client) Supported(ctx context.Context, network string) (*SupportedResult, error) {
	endpoint, err := c.selector.Select(network)
	if err != nil {
		return nil, &Error{Kind: ErrUnreachable, Network: network, Message: err.Error(), Err: err}
	}

	callCtx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()

	resp, err := c.http.Get(callCtx, endpoint.BaseURL+"/supported", c.authOptions(endpoint, OpSupported)...)
	if err != nil {
		return nil, classify(err, ErrUnreachable, network, "supported call failed")
	}

	var result SupportedResult
	if err := c.http.ProcessJSONResponse(resp, &result); err != nil {
		return nil, classify(err, ErrUnreachable, network, "supported response unreadable")
	}
	return &result, nil
}

// List pulls the facilitator's service registry listing.
func (c *Client) List(ctx context.Context, network string) (*ListResult, error) {
	endpoint, err := c.selector.Select(network)
	if err != nil {
		return nil, &Error{Kind: ErrUnreachable, Network: network, Message: err.Error(), Err: err}
	}

	callCtx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()

	resp, err := c.http.Get(callCtx, endpoint.BaseURL+"/discovery/resources", c.authOptions(endpoint, OpList)...)
	if err != nil {
		return nil, classify(err, ErrUnreachable, network, "list call failed")
	}

	var result ListResult
	if err := c.http.ProcessJSONResponse(resp, &result); err != nil {
		return nil, classify(err, ErrUnreachable, network, "list response unreadable")
	}
	return &result, nil
}

func (c *Client) authOptions(endpoint *Endpoint, op Operation) []httpClient.RequestOption {
	headers := endpoint.AuthHeaders(op)
	if headers == nil {
		return nil
	}
	options := make([]httpClient.RequestOption, 0, len(headers))
	for key, value := range headers {
		options = append(options, httpClient.WithHeader(key, value))
	}
	return options
}

// classify maps transport-level failures onto the facilitator error
// taxonomy. 401/403 responses are credential problems, not payment problems.
func classify(err error, fallback ErrorKind, network, message string) *Error {
	if httpErr, ok := err.(*httpClient.HTTPError); ok {
		if httpErr.StatusCode == 401 || httpErr.StatusCode == 403 {
			return &Error{Kind: ErrAuth, Network: network, Message: "facilitator rejected credentials", Err: err}
		}
		return &Error{Kind: fallback, Network: network, Message: message, Err: err}
	}
	return &Error{Kind: ErrUnreachable, Network: network, Message: message, Err: err}
}
