package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const serviceColumns = `id, service_id, name, description, category, endpoint, network, chain_id,
	token_address, price, price_display, facilitator_url, available, source, verified,
	approval_status, last_preflight_at, last_preflight_status, owner_address, created_at, updated_at`

func scanService(row interface{ Scan(dest ...interface{}) error }) (Service, error) {
	var s Service
	err := row.Scan(
		&s.ID, &s.ServiceID, &s.Name, &s.Description, &s.Category, &s.Endpoint, &s.Network,
		&s.ChainID, &s.TokenAddress, &s.Price, &s.PriceDisplay, &s.FacilitatorURL, &s.Available,
		&s.Source, &s.Verified, &s.ApprovalStatus, &s.LastPreflightAt, &s.LastPreflightStatus,
		&s.OwnerAddress, &s.CreatedAt, &s.UpdatedAt,
	)
	return s, err
}

const createService = `
INSERT INTO services (
	service_id, name, description, category, endpoint, network, chain_id, token_address,
	price, price_display, facilitator_url, available, source, verified, approval_status,
	owner_address
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
RETURNING ` + serviceColumns

type CreateServiceParams struct {
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
	Source         string
	Verified       bool
	ApprovalStatus string
	OwnerAddress   string
}

func (q *Queries) CreateService(ctx context.Context, arg CreateServiceParams) (Service, error) {
	row := q.db.QueryRow(ctx, createService,
		arg.ServiceID, arg.Name, arg.Description, arg.Category, arg.Endpoint, arg.Network,
		arg.ChainID, arg.TokenAddress, arg.Price, arg.PriceDisplay, arg.FacilitatorURL,
		arg.Available, arg.Source, arg.Verified, arg.ApprovalStatus, arg.OwnerAddress,
	)
	return scanService(row)
}

// UpsertServiceOperational inserts a new catalog entry or, when the
// service_id already exists, refreshes operational fields only. Name,
// description and category are never touched on the update path so automated
// reconciliation cannot clobber owner-curated metadata.
const upsertServiceOperational = `
INSERT INTO services (
	service_id, name, description, category, endpoint, network, chain_id, token_address,
	price, price_display, facilitator_url, available, source, approval_status
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (service_id) DO UPDATE SET
	endpoint = EXCLUDED.endpoint,
	network = EXCLUDED.network,
	chain_id = EXCLUDED.chain_id,
	token_address = EXCLUDED.token_address,
	price = EXCLUDED.price,
	price_display = EXCLUDED.price_display,
	facilitator_url = EXCLUDED.facilitator_url,
	available = EXCLUDED.available,
	updated_at = now()
RETURNING ` + serviceColumns + `, (xmax = 0) AS inserted`

type UpsertServiceOperationalParams struct {
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
	Source         string
	ApprovalStatus string
}

type UpsertServiceOperationalRow struct {
	Service
	Inserted bool
}

func (q *Queries) UpsertServiceOperational(ctx context.Context, arg UpsertServiceOperationalParams) (UpsertServiceOperationalRow, error) {
	row := q.db.QueryRow(ctx, upsertServiceOperational,
		arg.ServiceID, arg.Name, arg.Description, arg.Category, arg.Endpoint, arg.Network,
		arg.ChainID, arg.TokenAddress, arg.Price, arg.PriceDisplay, arg.FacilitatorURL,
		arg.Available, arg.Source, arg.ApprovalStatus,
	)
	var r UpsertServiceOperationalRow
	err := row.Scan(
		&r.ID, &r.ServiceID, &r.Name, &r.Description, &r.Category, &r.Endpoint, &r.Network,
		&r.ChainID, &r.TokenAddress, &r.Price, &r.PriceDisplay, &r.FacilitatorURL, &r.Available,
		&r.Source, &r.Verified, &r.ApprovalStatus, &r.LastPreflightAt, &r.LastPreflightStatus,
		&r.OwnerAddress, &r.CreatedAt, &r.UpdatedAt, &r.Inserted,
	)
	return r, err
}

const getServiceByServiceID = `
SELECT ` + serviceColumns + ` FROM services WHERE service_id = $1`

func (q *Queries) GetServiceByServiceID(ctx context.Context, serviceID string) (Service, error) {
	return scanService(q.db.QueryRow(ctx, getServiceByServiceID, serviceID))
}

const listServices = `
SELECT ` + serviceColumns + ` FROM services
WHERE ($1::text = '' OR network = $1)
  AND ($2::text = '' OR source = $2)
  AND (NOT $3::bool OR available)
ORDER BY created_at DESC
LIMIT $4`

type ListServicesParams struct {
	Network       string
	Source        string
	OnlyAvailable bool
	Limit         int32
}

func (q *Queries) ListServices(ctx context.Context, arg ListServicesParams) ([]Service, error) {
	rows, err := q.db.Query(ctx, listServices, arg.Network, arg.Source, arg.OnlyAvailable, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

const listServicesByOwner = `
SELECT ` + serviceColumns + ` FROM services
WHERE lower(owner_address) = lower($1)
ORDER BY created_at DESC`

func (q *Queries) ListServicesByOwner(ctx context.Context, ownerAddress string) ([]Service, error) {
	rows, err := q.db.Query(ctx, listServicesByOwner, ownerAddress)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

const updateServiceCurated = `
UPDATE services SET
	name = COALESCE(NULLIF($2, ''), name),
	description = COALESCE(NULLIF($3, ''), description),
	category = COALESCE(NULLIF($4, ''), category),
	updated_at = now()
WHERE service_id = $1
RETURNING ` + serviceColumns

type UpdateServiceCuratedParams struct {
	ServiceID   string
	Name        string
	Description string
	Category    string
}

// UpdateServiceCurated changes the owner-editable descriptive fields. Only
// the ownership-claim flow and the owning address reach this query.
func (q *Queries) UpdateServiceCurated(ctx context.Context, arg UpdateServiceCuratedParams) (Service, error) {
	row := q.db.QueryRow(ctx, updateServiceCurated, arg.ServiceID, arg.Name, arg.Description, arg.Category)
	return scanService(row)
}

const updateServicePreflightSuccess = `
UPDATE services SET
	network = $2,
	chain_id = $3,
	token_address = $4,
	price = $5,
	price_display = $6,
	facilitator_url = $7,
	available = true,
	last_preflight_at = $8,
	last_preflight_status = 'success',
	updated_at = now()
WHERE service_id = $1
RETURNING ` + serviceColumns

type UpdateServicePreflightSuccessParams struct {
	ServiceID      string
	Network        string
	ChainID        int64
	TokenAddress   string
	Price          string
	PriceDisplay   string
	FacilitatorURL string
	PreflightAt    pgtype.Timestamptz
}

// UpdateServicePreflightSuccess atomically refreshes the quote-derived
// operational fields together with the preflight bookkeeping.
func (q *Queries) UpdateServicePreflightSuccess(ctx context.Context, arg UpdateServicePreflightSuccessParams) (Service, error) {
	row := q.db.QueryRow(ctx, updateServicePreflightSuccess,
		arg.ServiceID, arg.Network, arg.ChainID, arg.TokenAddress, arg.Price,
		arg.PriceDisplay, arg.FacilitatorURL, arg.PreflightAt,
	)
	return scanService(row)
}

const updateServicePreflightFailure = `
UPDATE services SET
	available = false,
	last_preflight_at = $2,
	last_preflight_status = 'failed',
	updated_at = now()
WHERE service_id = $1
RETURNING ` + serviceColumns

type UpdateServicePreflightFailureParams struct {
	ServiceID   string
	PreflightAt pgtype.Timestamptz
}

// UpdateServicePreflightFailure records a failed preflight without touching
// prior operational data.
func (q *Queries) UpdateServicePreflightFailure(ctx context.Context, arg UpdateServicePreflightFailureParams) (Service, error) {
	row := q.db.QueryRow(ctx, updateServicePreflightFailure, arg.ServiceID, arg.PreflightAt)
	return scanService(row)
}

const setServiceVerified = `
UPDATE services SET
	verified = true,
	owner_address = $2,
	approval_status = 'approved',
	updated_at = now()
WHERE service_id = $1
RETURNING ` + serviceColumns

type SetServiceVerifiedParams struct {
	ServiceID    string
	OwnerAddress string
}

func (q *Queries) SetServiceVerified(ctx context.Context, arg SetServiceVerifiedParams) (Service, error) {
	row := q.db.QueryRow(ctx, setServiceVerified, arg.ServiceID, arg.OwnerAddress)
	return scanService(row)
}
