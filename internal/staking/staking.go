package staking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"paygrid-api/internal/db"
	"paygrid-api/internal/x402"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Cooldown is the fixed wall-clock delay between an unstake request and its
// completion.
const Cooldown = 24 * time.Hour

// Reported lifecycle states. A missing record reports not_staked.
const (
	StateNotStaked = "not_staked"
	StateStaked    = "staked"
	StateUnstaking = "unstaking"
)

// ErrorKind classifies staking failures. cooldown-active is deliberately not
// here: an initiate under cooldown is a normal structured outcome, not an
// exceptional error.
type ErrorKind string

const (
	ErrNotFound      ErrorKind = "not-found"
	ErrInvalidAmount ErrorKind = "invalid-amount"
	ErrStoreWrite    ErrorKind = "store-write-failure"
)

type Error struct {
	Kind    ErrorKind
	Address string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("staking %s for %s", e.Kind, e.Address)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Store is the subset of database operations the state machine needs. The
// store must provide per-key atomic upsert semantics.
type Store interface {
	GetStakingRecordByAddress(ctx context.Context, userAddress string) (db.StakingRecord, error)
	UpsertStake(ctx context.Context, arg db.UpsertStakeParams) (db.StakingRecord, error)
	SetUnstakeRequested(ctx context.Context, arg db.SetUnstakeRequestedParams) (db.StakingRecord, error)
	CompleteUnstake(ctx context.Context, arg db.CompleteUnstakeParams) (db.StakingRecord, error)
}

// Status is the queryable view of an address's staking state.
type Status struct {
	Status       string `json:"status"`
	StakedAmount string `json:"stakedAmount,omitempty"`
	CanUnstake   bool   `json:"canUnstake"`
	RemainingMs  int64  `json:"remainingMs"`
}

// UnstakeResult is the outcome of an initiate-unstake call. When the
// cooldown is still running the call is a no-op and Accepted is false.
type UnstakeResult struct {
	Accepted    bool      `json:"accepted"`
	RemainingMs int64     `json:"remainingMs"`
	RequestedAt time.Time `json:"requestedAt,omitempty"`
}

// Service runs the per-address stake/unstake lifecycle gated by the fixed
// cooldown window.
type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// NewServiceWithClock injects a clock; used by tests.
func NewServiceWithClock(store Store, now func() time.Time) *Service {
	return &Service{store: store, now: now}
}

// Stake adds to an address's staked amount. Staking while a cooldown is
// pending cancels the pending unstake.
func (s *Service) Stake(ctx context.Context, address, amount string) (db.StakingRecord, error) {
	if !x402.IsIntegerString(amount) || amount == "0" {
		return db.StakingRecord{}, &Error{Kind: ErrInvalidAmount, Address: address,
			Err: fmt.Errorf("amount %q must be a positive integer string", amount)}
	}

	record, err := s.store.UpsertStake(ctx, db.UpsertStakeParams{UserAddress: address, Amount: amount})
	if err != nil {
		return db.StakingRecord{}, &Error{Kind: ErrStoreWrite, Address: address, Err: err}
	}
	return record, nil
}

// InitiateUnstake starts the cooldown for an address. If a cooldown is
// already running, the call is rejected with the remaining milliseconds and
// the stored request timestamp is left unchanged; repeated initiates under
// cooldown therefore converge on the same outcome.
func (s *Service) InitiateUnstake(ctx context.Context, address string) (*UnstakeResult, error) {
	record, err := s.store.GetStakingRecordByAddress(ctx, address)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &Error{Kind: ErrNotFound, Address: address, Err: err}
		}
		return nil, &Error{Kind: ErrStoreWrite, Address: address, Err: err}
	}

	now := s.now()
	if record.Status == db.StakingStatusUnstaking && record.UnstakeRequestedAt.Valid {
		remaining := remainingMs(now, record.UnstakeRequestedAt.Time)
		if remaining > 0 {
			return &UnstakeResult{
				Accepted:    false,
				RemainingMs: remaining,
				RequestedAt: record.UnstakeRequestedAt.Time,
			}, nil
		}
	}

	updated, err := s.store.SetUnstakeRequested(ctx, db.SetUnstakeRequestedParams{
		UserAddress: address,
		RequestedAt: pgtype.Timestamptz{Time: now, Valid: true},
	})
	if err != nil {
		return nil, &Error{Kind: ErrStoreWrite, Address: address, Err: err}
	}

	return &UnstakeResult{
		Accepted:    true,
		RemainingMs: Cooldown.Milliseconds(),
		RequestedAt: updated.UnstakeRequestedAt.Time,
	}, nil
}

// Status reports an address's staking state and unstake eligibility.
func (s *Service) Status(ctx context.Context, address string) (*Status, error) {
	record, err := s.store.GetStakingRecordByAddress(ctx, address)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &Status{Status: StateNotStaked, CanUnstake: false}, nil
		}
		return nil, &Error{Kind: ErrStoreWrite, Address: address, Err: err}
	}

	switch record.Status {
	case db.StakingStatusUnstaking:
		remaining := int64(0)
		if record.UnstakeRequestedAt.Valid {
			remaining = remainingMs(s.now(), record.UnstakeRequestedAt.Time)
		}
		return &Status{
			Status:       StateUnstaking,
			StakedAmount: record.StakedAmount,
			CanUnstake:   remaining == 0,
			RemainingMs:  remaining,
		}, nil
	default:
		return &Status{
			Status:       StateStaked,
			StakedAmount: record.StakedAmount,
			CanUnstake:   true,
		}, nil
	}
}

// CompleteUnstake finishes an elapsed cooldown, recording the completion
// time and releasing the stake. Calling it early is rejected with the
// remaining milliseconds.
func (s *Service) CompleteUnstake(ctx context.Context, address string) (db.StakingRecord, *UnstakeResult, error) {
	record, err := s.store.GetStakingRecordByAddress(ctx, address)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return db.StakingRecord{}, nil, &Error{Kind: ErrNotFound, Address: address, Err: err}
		}
		return db.StakingRecord{}, nil, &Error{Kind: ErrStoreWrite, Address: address, Err: err}
	}

	if record.Status != db.StakingStatusUnstaking || !record.UnstakeRequestedAt.Valid {
		return db.StakingRecord{}, nil, &Error{Kind: ErrNotFound, Address: address,
			Err: errors.New("no pending unstake for address")}
	}

	now := s.now()
	if remaining := remainingMs(now, record.UnstakeRequestedAt.Time); remaining > 0 {
		return db.StakingRecord{}, &UnstakeResult{Accepted: false, RemainingMs: remaining,
			RequestedAt: record.UnstakeRequestedAt.Time}, nil
	}

	updated, err := s.store.CompleteUnstake(ctx, db.CompleteUnstakeParams{
		UserAddress: address,
		CompletedAt: pgtype.Timestamptz{Time: now, Valid: true},
	})
	if err != nil {
		return db.StakingRecord{}, nil, &Error{Kind: ErrStoreWrite, Address: address, Err: err}
	}
	return updated, nil, nil
}

func remainingMs(now, requestedAt time.Time) int64 {
	remaining := Cooldown - now.Sub(requestedAt)
	if remaining < 0 {
		return 0
	}
	return remaining.Milliseconds()
}
