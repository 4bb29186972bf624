package config

import (
	"fmt"
	"os"
	"strconv"
)

// Default facilitator endpoints. Base mainnet settles through the CDP
// facilitator, which requires API credentials; every other network uses the
// public facilitator.
const (
	DefaultFacilitatorURL = "https://x402.org/facilitator"
	CDPFacilitatorURL     = "https://api.cdp.coinbase.com/platform/v2/x402"
)

// FacilitatorAuth holds the credential pair used to build per-operation
// authorization headers for facilitators that require them.
type FacilitatorAuth struct {
	KeyID     string
	KeySecret string
}

// FacilitatorEndpoint is the routing target for a single network.
type FacilitatorEndpoint struct {
	BaseURL string
	Auth    *FacilitatorAuth
}

// Config holds all process configuration. It is constructed once at startup
// and passed explicitly into every constructor that needs it; nothing reads
// the environment after Load returns.
type Config struct {
	Port        string
	GinMode     string
	DatabaseURL string

	// Economic split applied to every settled payment.
	PlatformFeePercent    int
	PlatformWalletAddress string

	// Facilitator routing, keyed by network identifier.
	Facilitators map[string]FacilitatorEndpoint

	// Registry reconciliation.
	CommunityRegistryURL  string
	AggregatorRegistryURL string
	SyncSchedule          string
	ReverifyLimit         int
}

// Load reads configuration from the environment and validates the
// startup-time invariants. A missing DATABASE_URL or an out-of-range fee
// percent is a fatal configuration error, not a per-request condition.
func Load() (*Config, error) {
	cfg := &Config{
		Port:                  getEnv("PORT", "8000"),
		GinMode:               os.Getenv("GIN_MODE"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		PlatformWalletAddress: os.Getenv("PLATFORM_WALLET_ADDRESS"),
		CommunityRegistryURL:  os.Getenv("COMMUNITY_REGISTRY_URL"),
		AggregatorRegistryURL: os.Getenv("AGGREGATOR_REGISTRY_URL"),
		SyncSchedule:          os.Getenv("REGISTRY_SYNC_SCHEDULE"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	feePercent, err := strconv.Atoi(getEnv("PLATFORM_FEE_PERCENT", "5"))
	if err != nil {
		return nil, fmt.Errorf("PLATFORM_FEE_PERCENT must be an integer: %w", err)
	}
	if feePercent < 0 || feePercent > 100 {
		return nil, fmt.Errorf("PLATFORM_FEE_PERCENT must be between 0 and 100, got %d", feePercent)
	}
	cfg.PlatformFeePercent = feePercent

	reverifyLimit, err := strconv.Atoi(getEnv("REVERIFY_LIMIT", "50"))
	if err != nil {
		return nil, fmt.Errorf("REVERIFY_LIMIT must be an integer: %w", err)
	}
	cfg.ReverifyLimit = reverifyLimit

	facilitatorURL := getEnv("FACILITATOR_URL", DefaultFacilitatorURL)
	cfg.Facilitators = map[string]FacilitatorEndpoint{
		"base-sepolia":  {BaseURL: facilitatorURL},
		"polygon":       {BaseURL: facilitatorURL},
		"polygon-amoy":  {BaseURL: facilitatorURL},
		"avalanche":     {BaseURL: facilitatorURL},
		"solana":        {BaseURL: facilitatorURL},
		"solana-devnet": {BaseURL: facilitatorURL},
	}

	// Base mainnet is only routable when CDP credentials are present.
	cdpKeyID := os.Getenv("CDP_API_KEY_ID")
	cdpKeySecret := os.Getenv("CDP_API_KEY_SECRET")
	if cdpKeyID != "" && cdpKeySecret != "" {
		cfg.Facilitators["base"] = FacilitatorEndpoint{
			BaseURL: getEnv("CDP_FACILITATOR_URL", CDPFacilitatorURL),
			Auth: &FacilitatorAuth{
				KeyID:     cdpKeyID,
				KeySecret: cdpKeySecret,
			},
		}
	}

	for network, endpoint := range cfg.Facilitators {
		if endpoint.BaseURL == "" {
			return nil, fmt.Errorf("facilitator base URL missing for network %s", network)
		}
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
