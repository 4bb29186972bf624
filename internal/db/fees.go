package db

import (
	"context"

	"github.com/google/uuid"
)

const feeColumns = `id, service_id, network, tx_hash, gross_amount, fee_amount,
	merchant_amount, transferred, created_at`

func scanFeeRecord(row interface{ Scan(dest ...interface{}) error }) (FeeRecord, error) {
	var r FeeRecord
	err := row.Scan(
		&r.ID, &r.ServiceID, &r.Network, &r.TxHash, &r.GrossAmount, &r.FeeAmount,
		&r.MerchantAmount, &r.Transferred, &r.CreatedAt,
	)
	return r, err
}

const createFeeRecord = `
INSERT INTO fee_records (service_id, network, tx_hash, gross_amount, fee_amount, merchant_amount, transferred)
VALUES ($1, $2, $3, $4, $5, $6, false)
RETURNING ` + feeColumns

type CreateFeeRecordParams struct {
	ServiceID      string
	Network        string
	TxHash         string
	GrossAmount    string
	FeeAmount      string
	MerchantAmount string
}

func (q *Queries) CreateFeeRecord(ctx context.Context, arg CreateFeeRecordParams) (FeeRecord, error) {
	row := q.db.QueryRow(ctx, createFeeRecord,
		arg.ServiceID, arg.Network, arg.TxHash, arg.GrossAmount, arg.FeeAmount, arg.MerchantAmount,
	)
	return scanFeeRecord(row)
}

const markFeeRecordTransferred = `
UPDATE fee_records SET transferred = true WHERE id = $1
RETURNING ` + feeColumns

func (q *Queries) MarkFeeRecordTransferred(ctx context.Context, id uuid.UUID) (FeeRecord, error) {
	return scanFeeRecord(q.db.QueryRow(ctx, markFeeRecordTransferred, id))
}

const listUntransferredFeeRecords = `
SELECT ` + feeColumns + ` FROM fee_records WHERE NOT transferred ORDER BY created_at LIMIT $1`

func (q *Queries) ListUntransferredFeeRecords(ctx context.Context, limit int32) ([]FeeRecord, error) {
	rows, err := q.db.Query(ctx, listUntransferredFeeRecords, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []FeeRecord
	for rows.Next() {
		r, err := scanFeeRecord(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}
