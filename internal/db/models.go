package db

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Preflight outcomes recorded on a service.
const (
	PreflightStatusSuccess = "success"
	PreflightStatusFailed  = "failed"
)

// Origin registry tags.
const (
	SourceSelf        = "self"
	SourceFacilitator = "facilitator"
	SourceCommunity   = "community"
	SourceAggregator  = "aggregator"
)

// Approval states for catalog entries.
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

// Staking lifecycle states. Absence of a record means never staked.
const (
	StakingStatusStaked    = "staked"
	StakingStatusUnstaking = "unstaking"
)

// Service is one known payable service in the catalog. ServiceID is globally
// unique and is the idempotency key for every upsert.
type Service struct {
	ID                  uuid.UUID          `json:"id"`
	ServiceID           string             `json:"service_id"`
	Name                string             `json:"name"`
	Description         string             `json:"description"`
	Category            string             `json:"category"`
	Endpoint            string             `json:"endpoint"`
	Network             string             `json:"network"`
	ChainID             int64              `json:"chain_id"`
	TokenAddress        string             `json:"token_address"`
	Price               string             `json:"price"`
	PriceDisplay        string             `json:"price_display"`
	FacilitatorURL      string             `json:"facilitator_url"`
	Available           bool               `json:"available"`
	Source              string             `json:"source"`
	Verified            bool               `json:"verified"`
	ApprovalStatus      string             `json:"approval_status"`
	LastPreflightAt     pgtype.Timestamptz `json:"last_preflight_at"`
	LastPreflightStatus string             `json:"last_preflight_status"`
	OwnerAddress        string             `json:"owner_address"`
	CreatedAt           time.Time          `json:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
}

// StakingRecord is the per-address staking state. At most one record per
// address; status unstaking implies UnstakeRequestedAt is set.
type StakingRecord struct {
	ID                 uuid.UUID          `json:"id"`
	UserAddress        string             `json:"user_address"`
	StakedAmount       string             `json:"staked_amount"`
	Status             string             `json:"status"`
	UnstakeRequestedAt pgtype.Timestamptz `json:"unstake_requested_at"`
	UnstakeCompletedAt pgtype.Timestamptz `json:"unstake_completed_at"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// FeeRecord is the economic split of one settled payment.
type FeeRecord struct {
	ID             uuid.UUID `json:"id"`
	ServiceID      string    `json:"service_id"`
	Network        string    `json:"network"`
	TxHash         string    `json:"tx_hash"`
	GrossAmount    string    `json:"gross_amount"`
	FeeAmount      string    `json:"fee_amount"`
	MerchantAmount string    `json:"merchant_amount"`
	Transferred    bool      `json:"transferred"`
	CreatedAt      time.Time `json:"created_at"`
}
