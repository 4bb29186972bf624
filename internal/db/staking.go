package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const stakingColumns = `id, user_address, staked_amount, status, unstake_requested_at,
	unstake_completed_at, created_at, updated_at`

func scanStakingRecord(row interface{ Scan(dest ...interface{}) error }) (StakingRecord, error) {
	var r StakingRecord
	err := row.Scan(
		&r.ID, &r.UserAddress, &r.StakedAmount, &r.Status,
		&r.UnstakeRequestedAt, &r.UnstakeCompletedAt, &r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

const getStakingRecordByAddress = `
SELECT ` + stakingColumns + ` FROM staking_records WHERE lower(user_address) = lower($1)`

func (q *Queries) GetStakingRecordByAddress(ctx context.Context, userAddress string) (StakingRecord, error) {
	return scanStakingRecord(q.db.QueryRow(ctx, getStakingRecordByAddress, userAddress))
}

// UpsertStake adds to an address's stake. Re-staking while a cooldown is
// pending cancels the pending unstake.
const upsertStake = `
INSERT INTO staking_records (user_address, staked_amount, status)
VALUES (lower($1), $2, 'staked')
ON CONFLICT (user_address) DO UPDATE SET
	staked_amount = (staking_records.staked_amount::numeric + EXCLUDED.staked_amount::numeric)::text,
	status = 'staked',
	unstake_requested_at = NULL,
	unstake_completed_at = NULL,
	updated_at = now()
RETURNING ` + stakingColumns

type UpsertStakeParams struct {
	UserAddress string
	Amount      string
}

func (q *Queries) UpsertStake(ctx context.Context, arg UpsertStakeParams) (StakingRecord, error) {
	return scanStakingRecord(q.db.QueryRow(ctx, upsertStake, arg.UserAddress, arg.Amount))
}

const setUnstakeRequested = `
UPDATE staking_records SET
	status = 'unstaking',
	unstake_requested_at = $2,
	updated_at = now()
WHERE lower(user_address) = lower($1)
RETURNING ` + stakingColumns

type SetUnstakeRequestedParams struct {
	UserAddress string
	RequestedAt pgtype.Timestamptz
}

func (q *Queries) SetUnstakeRequested(ctx context.Context, arg SetUnstakeRequestedParams) (StakingRecord, error) {
	return scanStakingRecord(q.db.QueryRow(ctx, setUnstakeRequested, arg.UserAddress, arg.RequestedAt))
}

const completeUnstake = `
UPDATE staking_records SET
	staked_amount = '0',
	status = 'staked',
	unstake_requested_at = NULL,
	unstake_completed_at = $2,
	updated_at = now()
WHERE lower(user_address) = lower($1)
RETURNING ` + stakingColumns

type CompleteUnstakeParams struct {
	UserAddress string
	CompletedAt pgtype.Timestamptz
}

func (q *Queries) CompleteUnstake(ctx context.Context, arg CompleteUnstakeParams) (StakingRecord, error) {
	return scanStakingRecord(q.db.QueryRow(ctx, completeUnstake, arg.UserAddress, arg.CompletedAt))
}
