package reconciler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"paygrid-api/internal/db"
	"paygrid-api/internal/logger"
	"paygrid-api/internal/x402"

	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

// Bounds for a single reconciliation run.
const (
	sourceFetchTimeout = 30 * time.Second
	maxReverifyLimit   = 200
	defaultParallelism = 5
)

// Store is the subset of catalog operations the reconciler needs.
type Store interface {
	UpsertServiceOperational(ctx context.Context, arg db.UpsertServiceOperationalParams) (db.UpsertServiceOperationalRow, error)
	ListServices(ctx context.Context, arg db.ListServicesParams) ([]db.Service, error)
	UpdateServicePreflightSuccess(ctx context.Context, arg db.UpdateServicePreflightSuccessParams) (db.Service, error)
	UpdateServicePreflightFailure(ctx context.Context, arg db.UpdateServicePreflightFailureParams) (db.Service, error)
}

// Prober re-checks a stored endpoint's payment gating.
type Prober interface {
	Probe(ctx context.Context, endpoint string) (*x402.Quote, error)
}

// EntryError is one failed entry inside a batch. Batch processing always
// continues past it.
type EntryError struct {
	ServiceID string    `json:"serviceId"`
	Kind      ErrorKind `json:"kind"`
	Reason    string    `json:"reason"`
}

// SyncResult summarizes one sync run against a single source.
type SyncResult struct {
	Source  string       `json:"source"`
	Created int          `json:"created"`
	Updated int          `json:"updated"`
	Errors  []EntryError `json:"errors,omitempty"`
}

// ReverifyFilter selects which catalog entries a reverify run touches.
type ReverifyFilter struct {
	Network string `json:"network,omitempty"`
	Source  string `json:"source,omitempty"`
}

// ReverifyEntry is the outcome of re-probing one catalog entry.
type ReverifyEntry struct {
	ServiceID string `json:"serviceId"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
}

// ReverifyResult summarizes one reverify batch.
type ReverifyResult struct {
	Checked int             `json:"checked"`
	Entries []ReverifyEntry `json:"entries"`
}

// Reconciler keeps the local catalog consistent with external registries and
// re-verifies previously known endpoints.
type Reconciler struct {
	store       Store
	prober      Prober
	sources     map[string]Source
	parallelism int
}

func New(store Store, prober Prober, sources ...Source) *Reconciler {
	indexed := make(map[string]Source, len(sources))
	for _, source := range sources {
		indexed[source.Name()] = source
	}
	return &Reconciler{
		store:       store,
		prober:      prober,
		sources:     indexed,
		parallelism: defaultParallelism,
	}
}

// Sources lists the registered source names.
func (r *Reconciler) Sources() []string {
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	return names
}

// Sync pulls one source and upserts its candidates by service_id. A failed
// candidate is recorded in the result and never blocks the rest of the
// batch.
func (r *Reconciler) Sync(ctx context.Context, sourceName string) (*SyncResult, error) {
	source, ok := r.sources[sourceName]
	if !ok {
		return nil, fmt.Errorf("unknown registry source %q", sourceName)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, sourceFetchTimeout)
	defer cancel()

	candidates, err := source.Fetch(fetchCtx)
	if err != nil {
		return nil, err
	}

	result := &SyncResult{Source: sourceName}
	for _, candidate := range candidates {
		if candidate.ServiceID == "" {
			result.Errors = append(result.Errors, EntryError{
				Kind: ErrParse, Reason: "candidate missing service id",
			})
			continue
		}
		if candidate.Endpoint == "" {
			result.Errors = append(result.Errors, EntryError{
				ServiceID: candidate.ServiceID, Kind: ErrNoEndpoint, Reason: "candidate missing endpoint",
			})
			continue
		}

		row, err := r.store.UpsertServiceOperational(ctx, db.UpsertServiceOperationalParams{
			ServiceID:      candidate.ServiceID,
			Name:           candidate.Name,
			Description:    candidate.Description,
			Category:       candidate.Category,
			Endpoint:       candidate.Endpoint,
			Network:        candidate.Network,
			ChainID:        candidate.ChainID,
			TokenAddress:   candidate.TokenAddress,
			Price:          candidate.Price,
			PriceDisplay:   candidate.PriceDisplay,
			FacilitatorURL: candidate.FacilitatorURL,
			Available:      candidate.Available,
			Source:         sourceName,
			ApprovalStatus: db.ApprovalPending,
		})
		if err != nil {
			result.Errors = append(result.Errors, EntryError{
				ServiceID: candidate.ServiceID, Kind: ErrStoreWrite, Reason: err.Error(),
			})
			continue
		}

		if row.Inserted {
			result.Created++
		} else {
			result.Updated++
		}
	}

	logger.Info("registry sync finished",
		zap.String("source", sourceName),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("errors", len(result.Errors)))

	return result, nil
}

// SyncAll runs Sync for every registered source. One source failing never
// blocks the others; its failure is reported in its own result slot.
func (r *Reconciler) SyncAll(ctx context.Context) map[string]*SyncResult {
	results := make(map[string]*SyncResult, len(r.sources))
	for name := range r.sources {
		result, err := r.Sync(ctx, name)
		if err != nil {
			result = &SyncResult{Source: name, Errors: []EntryError{{
				Kind: ErrSourceUnreachable, Reason: err.Error(),
			}}}
		}
		results[name] = result
	}
	return results
}

// Reverify re-probes up to limit known endpoints matching the filter.
// Entries are processed with bounded parallelism; each upsert is
// independently keyed and idempotent, so there is no cross-entry ordering.
// On probe success the quote-derived fields and preflight bookkeeping update
// atomically; on failure only the bookkeeping changes.
func (r *Reconciler) Reverify(ctx context.Context, filter ReverifyFilter, limit int) (*ReverifyResult, error) {
	if limit <= 0 || limit > maxReverifyLimit {
		limit = maxReverifyLimit
	}

	services, err := r.store.ListServices(ctx, db.ListServicesParams{
		Network: filter.Network,
		Source:  filter.Source,
		Limit:   int32(limit),
	})
	if err != nil {
		return nil, &Error{Kind: ErrStoreWrite, Source: "reverify", Err: err}
	}

	entries := make([]ReverifyEntry, len(services))
	var wg sync.WaitGroup
	sem := make(chan struct{}, r.parallelism)

	for i, service := range services {
		wg.Add(1)
		go func(i int, service db.Service) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			entries[i] = r.reverifyOne(ctx, service)
		}(i, service)
	}
	wg.Wait()

	return &ReverifyResult{Checked: len(services), Entries: entries}, nil
}

func (r *Reconciler) reverifyOne(ctx context.Context, service db.Service) ReverifyEntry {
	if service.Endpoint == "" {
		// Permanent data problem, not an infrastructure one.
		return ReverifyEntry{
			ServiceID: service.ServiceID,
			Status:    db.PreflightStatusFailed,
			Reason:    string(ErrNoEndpoint),
		}
	}

	now := pgtype.Timestamptz{Time: time.Now(), Valid: true}

	quote, err := r.prober.Probe(ctx, service.Endpoint)
	if err != nil {
		if _, storeErr := r.store.UpdateServicePreflightFailure(ctx, db.UpdateServicePreflightFailureParams{
			ServiceID:   service.ServiceID,
			PreflightAt: now,
		}); storeErr != nil {
			return ReverifyEntry{
				ServiceID: service.ServiceID,
				Status:    db.PreflightStatusFailed,
				Reason:    (&Error{Kind: ErrStoreWrite, Source: "reverify", Err: storeErr}).Error(),
			}
		}
		return ReverifyEntry{
			ServiceID: service.ServiceID,
			Status:    db.PreflightStatusFailed,
			Reason:    err.Error(),
		}
	}

	if _, err := r.store.UpdateServicePreflightSuccess(ctx, db.UpdateServicePreflightSuccessParams{
		ServiceID:      service.ServiceID,
		Network:        quote.Network,
		ChainID:        quote.ChainID,
		TokenAddress:   quote.TokenAddress,
		Price:          quote.MaxAmountRequired,
		PriceDisplay:   displayOrEmpty(quote.MaxAmountRequired),
		FacilitatorURL: quote.FacilitatorURL,
		PreflightAt:    now,
	}); err != nil {
		return ReverifyEntry{
			ServiceID: service.ServiceID,
			Status:    db.PreflightStatusFailed,
			Reason:    (&Error{Kind: ErrStoreWrite, Source: "reverify", Err: err}).Error(),
		}
	}

	return ReverifyEntry{ServiceID: service.ServiceID, Status: db.PreflightStatusSuccess}
}
