package x402

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// X402Version is the protocol version this service speaks.
const X402Version = 1

// SchemeExact is the only payment scheme currently matched during quote
// selection.
const SchemeExact = "exact"

// chainIDs maps every routable network to its EVM chain ID. Chain ID 0 is
// reserved for non-EVM ledgers.
var chainIDs = map[string]int64{
	"base":          8453,
	"base-sepolia":  84532,
	"polygon":       137,
	"polygon-amoy":  80002,
	"avalanche":     43114,
	"solana":        0,
	"solana-devnet": 0,
}

var validate = validator.New()

// KnownNetwork reports whether the network identifier is one this service
// can route payments for.
func KnownNetwork(network string) bool {
	_, ok := chainIDs[network]
	return ok
}

// ChainID returns the chain ID for a known network. Non-EVM ledgers return 0.
func ChainID(network string) (int64, bool) {
	id, ok := chainIDs[network]
	return id, ok
}

// PaymentRequirements is one payment option offered in a 402 challenge body.
// External input: parsed defensively, never trusted.
type PaymentRequirements struct {
	Scheme            string                 `json:"scheme" validate:"required"`
	Network           string                 `json:"network" validate:"required"`
	MaxAmountRequired string                 `json:"maxAmountRequired"`
	Resource          string                 `json:"resource,omitempty"`
	Description       string                 `json:"description,omitempty"`
	MimeType          string                 `json:"mimeType,omitempty"`
	PayTo             string                 `json:"payTo"`
	MaxTimeoutSeconds int                    `json:"maxTimeoutSeconds,omitempty"`
	Asset             string                 `json:"asset,omitempty"`
	FacilitatorURL    string                 `json:"facilitatorUrl,omitempty"`
	InputSchema       map[string]interface{} `json:"inputSchema,omitempty"`
	OutputSchema      map[string]interface{} `json:"outputSchema,omitempty"`
	Extra             map[string]interface{} `json:"extra,omitempty"`
}

// PaymentChallenge is the JSON body of a 402 response.
type PaymentChallenge struct {
	X402Version int                   `json:"x402Version"`
	Accepts     []PaymentRequirements `json:"accepts"`
	Error       string                `json:"error,omitempty"`
}

// Quote is the validated payment requirement extracted from a challenge.
type Quote struct {
	Network           string                 `json:"network"`
	ChainID           int64                  `json:"chainId"`
	PayTo             string                 `json:"payTo"`
	TokenAddress      string                 `json:"tokenAddress"`
	MaxAmountRequired string                 `json:"maxAmountRequired"`
	FacilitatorURL    string                 `json:"facilitatorUrl,omitempty"`
	Method            string                 `json:"method,omitempty"`
	InputSchema       map[string]interface{} `json:"inputSchema,omitempty"`
	OutputSchema      map[string]interface{} `json:"outputSchema,omitempty"`
}

// Requirement rebuilds the wire-shaped requirement for facilitator calls.
func (q *Quote) Requirement() PaymentRequirements {
	return PaymentRequirements{
		Scheme:            SchemeExact,
		Network:           q.Network,
		MaxAmountRequired: q.MaxAmountRequired,
		PayTo:             q.PayTo,
		Asset:             q.TokenAddress,
		OutputSchema:      q.OutputSchema,
	}
}

// QuoteFromRequirement validates a single requirement and lifts it into a
// Quote. A requirement without payTo or a well-formed integer amount is
// unusable and rejected outright.
func QuoteFromRequirement(req PaymentRequirements) (*Quote, error) {
	if err := validate.Struct(&req); err != nil {
		return nil, fmt.Errorf("invalid payment requirement: %w", err)
	}
	chainID, ok := chainIDs[req.Network]
	if !ok {
		return nil, fmt.Errorf("unknown network %q", req.Network)
	}
	if req.PayTo == "" {
		return nil, fmt.Errorf("payment requirement missing payTo")
	}
	if !IsIntegerString(req.MaxAmountRequired) {
		return nil, fmt.Errorf("maxAmountRequired %q is not a non-negative integer string", req.MaxAmountRequired)
	}

	method := ""
	if m, ok := req.Extra["method"].(string); ok {
		method = m
	}

	return &Quote{
		Network:           req.Network,
		ChainID:           chainID,
		PayTo:             req.PayTo,
		TokenAddress:      req.Asset,
		MaxAmountRequired: req.MaxAmountRequired,
		FacilitatorURL:    req.FacilitatorURL,
		Method:            method,
		InputSchema:       req.InputSchema,
		OutputSchema:      req.OutputSchema,
	}, nil
}

// ParseChallenge parses a 402 challenge body and selects the first
// requirement with a known scheme and network. Selection is deliberately
// first-match, not best-price; changing it would change economic behavior.
func ParseChallenge(body []byte) (*Quote, error) {
	var challenge PaymentChallenge
	if err := json.Unmarshal(body, &challenge); err != nil {
		return nil, fmt.Errorf("failed to parse payment challenge: %w", err)
	}
	if len(challenge.Accepts) == 0 {
		return nil, fmt.Errorf("payment challenge offers no requirements")
	}

	var lastErr error
	for _, req := range challenge.Accepts {
		if req.Scheme != SchemeExact || !KnownNetwork(req.Network) {
			continue
		}
		quote, err := QuoteFromRequirement(req)
		if err != nil {
			lastErr = err
			continue
		}
		return quote, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("no usable payment requirement: %w", lastErr)
	}
	return nil, fmt.Errorf("no payment requirement matches a supported scheme and network")
}

// IsIntegerString reports whether s is a non-negative base-10 integer string.
func IsIntegerString(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
