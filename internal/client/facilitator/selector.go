package facilitator

import (
	"encoding/base64"
	"fmt"

	"paygrid-api/internal/config"
)

// Operation names the four facilitator operations. Auth headers are built
// per operation because some facilitators rotate challenge material per call.
type Operation string

const (
	OpVerify    Operation = "verify"
	OpSettle    Operation = "settle"
	OpSupported Operation = "supported"
	OpList      Operation = "list"
)

// Endpoint is the resolved routing target for one network.
type Endpoint struct {
	Network string
	BaseURL string
	auth    *config.FacilitatorAuth
}

// RequiresAuth reports whether calls to this endpoint carry credentials.
func (e *Endpoint) RequiresAuth() bool {
	return e.auth != nil
}

// AuthHeaders builds the authentication headers for a single operation. A
// fresh header is built on every call rather than cached on the endpoint.
func (e *Endpoint) AuthHeaders(op Operation) map[string]string {
	if e.auth == nil {
		return nil
	}
	token := base64.StdEncoding.EncodeToString(
		[]byte(e.auth.KeyID + ":" + e.auth.KeySecret),
	)
	return map[string]string{
		"Authorization": "Basic " + token,
		// Correlates the credential with the operation it was minted for.
		"X-Operation": string(op),
	}
}

// Selector deterministically maps a network identifier to its facilitator
// endpoint. Single-facilitator today, but keyed by network so additional
// facilitators register without changing callers.
type Selector struct {
	endpoints map[string]Endpoint
}

// NewSelector validates the configured facilitator set. A missing base URL
// is a startup configuration error, not a per-request condition.
func NewSelector(facilitators map[string]config.FacilitatorEndpoint) (*Selector, error) {
	if len(facilitators) == 0 {
		return nil, fmt.Errorf("no facilitators configured")
	}

	endpoints := make(map[string]Endpoint, len(facilitators))
	for network, fc := range facilitators {
		if fc.BaseURL == "" {
			return nil, fmt.Errorf("facilitator base URL missing for network %s", network)
		}
		endpoints[network] = Endpoint{
			Network: network,
			BaseURL: fc.BaseURL,
			auth:    fc.Auth,
		}
	}

	return &Selector{endpoints: endpoints}, nil
}

// Select returns the facilitator endpoint for a network.
func (s *Selector) Select(network string) (*Endpoint, error) {
	endpoint, ok := s.endpoints[network]
	if !ok {
		return nil, fmt.Errorf("no facilitator configured for network %s", network)
	}
	return &endpoint, nil
}

// Networks lists every network with a configured facilitator.
func (s *Selector) Networks() []string {
	networks := make([]string, 0, len(s.endpoints))
	for network := range s.endpoints {
		networks = append(networks, network)
	}
	return networks
}
