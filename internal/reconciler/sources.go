package reconciler

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"

	"paygrid-api/internal/client/facilitator"
	httpClient "paygrid-api/internal/client/http"
	"paygrid-api/internal/db"
	"paygrid-api/internal/x402"
)

// Candidate is a normalized catalog-entry candidate produced by a source
// adapter. ServiceID must be stable across runs so upserts stay idempotent.
type Candidate struct {
	ServiceID      string
	Name           string
	Description    string
	Category       string
	Endpoint       string
	Network        string
	ChainID        int64
	TokenAddress   string
	Price          string
	PriceDisplay   string
	FacilitatorURL string
	Available      bool
}

// Source pulls service listings from one external registry and normalizes
// them. Adapters tolerate partial or malformed entries by skipping them; a
// bad entry never aborts the pull.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]Candidate, error)
}

// FacilitatorSource lists services through a facilitator's registry
// operation.
type FacilitatorSource struct {
	client  *facilitator.Client
	network string
}

func NewFacilitatorSource(client *facilitator.Client, network string) *FacilitatorSource {
	return &FacilitatorSource{client: client, network: network}
}

func (s *FacilitatorSource) Name() string {
	return db.SourceFacilitator
}

func (s *FacilitatorSource) Fetch(ctx context.Context) ([]Candidate, error) {
	listing, err := s.client.List(ctx, s.network)
	if err != nil {
		return nil, &Error{Kind: ErrSourceUnreachable, Source: s.Name(), Err: err}
	}

	candidates := make([]Candidate, 0, len(listing.Items))
	for _, item := range listing.Items {
		if item.Resource == "" || len(item.Accepts) == 0 {
			continue
		}
		quote, err := firstUsableQuote(item.Accepts)
		if err != nil {
			// Listing entries for networks this deployment cannot route are
			// skipped, not fatal.
			continue
		}
		candidates = append(candidates, Candidate{
			ServiceID:      item.Resource,
			Name:           metadataString(item.Metadata, "name", hostOf(item.Resource)),
			Description:    metadataString(item.Metadata, "description", ""),
			Category:       metadataString(item.Metadata, "category", ""),
			Endpoint:       item.Resource,
			Network:        quote.Network,
			ChainID:        quote.ChainID,
			TokenAddress:   quote.TokenAddress,
			Price:          quote.MaxAmountRequired,
			PriceDisplay:   displayOrEmpty(quote.MaxAmountRequired),
			FacilitatorURL: quote.FacilitatorURL,
			Available:      true,
		})
	}
	return candidates, nil
}

// communityEntry matches markdown-style "[name](https://endpoint)" listings.
// communityField matches loose `"id": "...", "link": "..."` pairs. The
// community registry is maintained by hand; both shapes appear in it, and
// anything that matches neither is skipped.
var (
	communityEntry = regexp.MustCompile(`\[([^\]\n]+)\]\((https?://[^\s)]+)\)`)
	communityField = regexp.MustCompile(`"id"\s*:\s*"([^"]+)"\s*,\s*"link"\s*:\s*"(https?://[^"]+)"`)
)

// CommunitySource scrapes a community-maintained registry document. The
// document is loosely structured text, not a stable API; this adapter is the
// only place that fragility is allowed to live.
type CommunitySource struct {
	http *httpClient.HTTPClient
	url  string
}

func NewCommunitySource(client *httpClient.HTTPClient, rawURL string) *CommunitySource {
	return &CommunitySource{http: client, url: rawURL}
}

func (s *CommunitySource) Name() string {
	return db.SourceCommunity
}

func (s *CommunitySource) Fetch(ctx context.Context) ([]Candidate, error) {
	if s.url == "" {
		return nil, nil
	}

	resp, err := s.http.Get(ctx, s.url)
	if err != nil {
		return nil, &Error{Kind: ErrSourceUnreachable, Source: s.Name(), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &Error{Kind: ErrSourceUnreachable, Source: s.Name(), Err: err}
	}
	text := string(raw)

	seen := make(map[string]bool)
	var candidates []Candidate

	add := func(name, link string) {
		endpoint := strings.TrimSpace(link)
		if _, err := url.ParseRequestURI(endpoint); err != nil || seen[endpoint] {
			return
		}
		seen[endpoint] = true
		candidates = append(candidates, Candidate{
			ServiceID: endpoint,
			Name:      strings.TrimSpace(name),
			Endpoint:  endpoint,
			// No pricing data in the document; a later reverify probe fills
			// the operational fields.
			Available: false,
		})
	}

	for _, match := range communityField.FindAllStringSubmatch(text, -1) {
		add(match[1], match[2])
	}
	for _, match := range communityEntry.FindAllStringSubmatch(text, -1) {
		add(match[1], match[2])
	}

	return candidates, nil
}

// aggregatorListing is the wire shape of a third-party aggregator API.
type aggregatorListing struct {
	Services []struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
		Category    string `json:"category"`
		Endpoint    string `json:"endpoint"`
		URL         string `json:"url"`
		Network     string `json:"network"`
		Token       string `json:"token"`
		Price       string `json:"price"`
	} `json:"services"`
}

// AggregatorSource pulls another aggregator's JSON listing and maps its
// shape onto candidates.
type AggregatorSource struct {
	http *httpClient.HTTPClient
	url  string
}

func NewAggregatorSource(client *httpClient.HTTPClient, rawURL string) *AggregatorSource {
	return &AggregatorSource{http: client, url: rawURL}
}

func (s *AggregatorSource) Name() string {
	return db.SourceAggregator
}

func (s *AggregatorSource) Fetch(ctx context.Context) ([]Candidate, error) {
	if s.url == "" {
		return nil, nil
	}

	resp, err := s.http.Get(ctx, s.url)
	if err != nil {
		return nil, &Error{Kind: ErrSourceUnreachable, Source: s.Name(), Err: err}
	}

	var listing aggregatorListing
	if err := s.http.ProcessJSONResponse(resp, &listing); err != nil {
		return nil, &Error{Kind: ErrParse, Source: s.Name(), Err: err}
	}

	candidates := make([]Candidate, 0, len(listing.Services))
	for _, svc := range listing.Services {
		endpoint := svc.Endpoint
		if endpoint == "" {
			endpoint = svc.URL
		}
		if svc.ID == "" || endpoint == "" {
			continue
		}

		chainID := int64(0)
		network := svc.Network
		if id, ok := x402.ChainID(network); ok {
			chainID = id
		} else {
			network = ""
		}

		price := svc.Price
		if !x402.IsIntegerString(price) {
			price = "0"
		}

		candidates = append(candidates, Candidate{
			ServiceID:    svc.ID,
			Name:         svc.Name,
			Description:  svc.Description,
			Category:     svc.Category,
			Endpoint:     endpoint,
			Network:      network,
			ChainID:      chainID,
			TokenAddress: svc.Token,
			Price:        price,
			PriceDisplay: displayOrEmpty(price),
			Available:    network != "" && price != "0",
		})
	}
	return candidates, nil
}

func firstUsableQuote(accepts []x402.PaymentRequirements) (*x402.Quote, error) {
	for _, req := range accepts {
		if req.Scheme != x402.SchemeExact || !x402.KnownNetwork(req.Network) {
			continue
		}
		if quote, err := x402.QuoteFromRequirement(req); err == nil {
			return quote, nil
		}
	}
	return nil, fmt.Errorf("no usable payment requirement")
}

func metadataString(metadata map[string]interface{}, key, fallback string) string {
	if value, ok := metadata[key].(string); ok && value != "" {
		return value
	}
	return fallback
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return rawURL
	}
	return parsed.Host
}

// displayOrEmpty renders minor units assuming 6 decimals, the convention of
// the stablecoins used for settlement. Unparseable amounts display as empty.
func displayOrEmpty(minorUnits string) string {
	display, err := x402.PriceDisplay(minorUnits, 6)
	if err != nil {
		return ""
	}
	return display
}
