package reconciler

import (
	"context"
	"errors"
	"os"
	"testing"

	"paygrid-api/internal/db"
	"paygrid-api/internal/logger"
	"paygrid-api/internal/x402"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.InitLogger()
	os.Exit(m.Run())
}

type MockCatalogStore struct {
	mock.Mock
}

func (m *MockCatalogStore) UpsertServiceOperational(ctx context.Context, arg db.UpsertServiceOperationalParams) (db.UpsertServiceOperationalRow, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(db.UpsertServiceOperationalRow), args.Error(1)
}

func (m *MockCatalogStore) ListServices(ctx context.Context, arg db.ListServicesParams) ([]db.Service, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).([]db.Service), args.Error(1)
}

func (m *MockCatalogStore) UpdateServicePreflightSuccess(ctx context.Context, arg db.UpdateServicePreflightSuccessParams) (db.Service, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(db.Service), args.Error(1)
}

func (m *MockCatalogStore) UpdateServicePreflightFailure(ctx context.Context, arg db.UpdateServicePreflightFailureParams) (db.Service, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(db.Service), args.Error(1)
}

type stubSource struct {
	name       string
	candidates []Candidate
	err        error
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(context.Context) ([]Candidate, error) {
	return s.candidates, s.err
}

type stubProber struct {
	quotes map[string]*x402.Quote
	err    error
}

func (p *stubProber) Probe(_ context.Context, endpoint string) (*x402.Quote, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.quotes[endpoint], nil
}

func candidate(id string) Candidate {
	return Candidate{
		ServiceID:    id,
		Name:         "svc " + id,
		Endpoint:     "https://" + id + ".example.com",
		Network:      "base-sepolia",
		ChainID:      84532,
		TokenAddress: "0xtoken",
		Price:        "1000000",
		Available:    true,
	}
}

func upsertRow(inserted bool) db.UpsertServiceOperationalRow {
	return db.UpsertServiceOperationalRow{Inserted: inserted}
}

func TestSyncCountsCreatesAndUpdates(t *testing.T) {
	store := new(MockCatalogStore)
	store.On("UpsertServiceOperational", mock.Anything, mock.MatchedBy(func(arg db.UpsertServiceOperationalParams) bool {
		return arg.ServiceID == "a"
	})).Return(upsertRow(true), nil)
	store.On("UpsertServiceOperational", mock.Anything, mock.MatchedBy(func(arg db.UpsertServiceOperationalParams) bool {
		return arg.ServiceID == "b"
	})).Return(upsertRow(false), nil)

	source := &stubSource{name: "community", candidates: []Candidate{candidate("a"), candidate("b")}}
	result, err := New(store, &stubProber{}, source).Sync(context.Background(), "community")
	require.NoError(t, err)

	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Updated)
	assert.Empty(t, result.Errors)
}

func TestSyncIsIdempotent(t *testing.T) {
	store := new(MockCatalogStore)
	// First run inserts, second run only updates the same keyed rows.
	store.On("UpsertServiceOperational", mock.Anything, mock.Anything).Return(upsertRow(true), nil).Twice()
	store.On("UpsertServiceOperational", mock.Anything, mock.Anything).Return(upsertRow(false), nil).Twice()

	source := &stubSource{name: "community", candidates: []Candidate{candidate("a"), candidate("b")}}
	r := New(store, &stubProber{}, source)

	first, err := r.Sync(context.Background(), "community")
	require.NoError(t, err)
	assert.Equal(t, 2, first.Created)

	second, err := r.Sync(context.Background(), "community")
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 2, second.Updated)
}

func TestSyncEntryFailureDoesNotAbortBatch(t *testing.T) {
	store := new(MockCatalogStore)
	store.On("UpsertServiceOperational", mock.Anything, mock.MatchedBy(func(arg db.UpsertServiceOperationalParams) bool {
		return arg.ServiceID == "a"
	})).Return(db.UpsertServiceOperationalRow{}, errors.New("write failed"))
	store.On("UpsertServiceOperational", mock.Anything, mock.MatchedBy(func(arg db.UpsertServiceOperationalParams) bool {
		return arg.ServiceID == "b"
	})).Return(upsertRow(true), nil)

	noEndpoint := candidate("c")
	noEndpoint.Endpoint = ""

	source := &stubSource{name: "community", candidates: []Candidate{candidate("a"), candidate("b"), noEndpoint}}
	result, err := New(store, &stubProber{}, source).Sync(context.Background(), "community")
	require.NoError(t, err)

	assert.Equal(t, 1, result.Created)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, ErrStoreWrite, result.Errors[0].Kind)
	assert.Equal(t, ErrNoEndpoint, result.Errors[1].Kind)
}

func TestSyncUnknownSource(t *testing.T) {
	store := new(MockCatalogStore)
	_, err := New(store, &stubProber{}).Sync(context.Background(), "nonexistent")
	assert.Error(t, err)
}

func TestSyncAllIsolatesSourceFailures(t *testing.T) {
	store := new(MockCatalogStore)
	store.On("UpsertServiceOperational", mock.Anything, mock.Anything).Return(upsertRow(true), nil)

	healthy := &stubSource{name: "community", candidates: []Candidate{candidate("a")}}
	broken := &stubSource{name: "aggregator", err: errors.New("connection refused")}

	results := New(store, &stubProber{}, healthy, broken).SyncAll(context.Background())
	require.Len(t, results, 2)

	assert.Equal(t, 1, results["community"].Created)
	require.Len(t, results["aggregator"].Errors, 1)
	assert.Equal(t, ErrSourceUnreachable, results["aggregator"].Errors[0].Kind)
}

func TestReverifyRefreshesQuoteOnSuccess(t *testing.T) {
	stored := db.Service{ServiceID: "a", Endpoint: "https://a.example.com"}
	store := new(MockCatalogStore)
	store.On("ListServices", mock.Anything, mock.Anything).Return([]db.Service{stored}, nil)
	store.On("UpdateServicePreflightSuccess", mock.Anything, mock.MatchedBy(func(arg db.UpdateServicePreflightSuccessParams) bool {
		return arg.ServiceID == "a" && arg.Price == "2000000" && arg.Network == "polygon"
	})).Return(db.Service{}, nil)

	prober := &stubProber{quotes: map[string]*x402.Quote{
		"https://a.example.com": {Network: "polygon", ChainID: 137, MaxAmountRequired: "2000000"},
	}}

	result, err := New(store, prober).Reverify(context.Background(), ReverifyFilter{}, 10)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Checked)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, db.PreflightStatusSuccess, result.Entries[0].Status)
	store.AssertExpectations(t)
}

func TestReverifyFailureOnlyTouchesBookkeeping(t *testing.T) {
	stored := db.Service{ServiceID: "a", Endpoint: "https://a.example.com"}
	store := new(MockCatalogStore)
	store.On("ListServices", mock.Anything, mock.Anything).Return([]db.Service{stored}, nil)
	store.On("UpdateServicePreflightFailure", mock.Anything, mock.MatchedBy(func(arg db.UpdateServicePreflightFailureParams) bool {
		return arg.ServiceID == "a"
	})).Return(db.Service{}, nil)

	prober := &stubProber{err: &x402.ProbeError{Kind: x402.ProbeTimeout, Endpoint: "https://a.example.com"}}

	result, err := New(store, prober).Reverify(context.Background(), ReverifyFilter{}, 10)
	require.NoError(t, err)

	require.Len(t, result.Entries, 1)
	assert.Equal(t, db.PreflightStatusFailed, result.Entries[0].Status)
	store.AssertNotCalled(t, "UpdateServicePreflightSuccess", mock.Anything, mock.Anything)
	store.AssertExpectations(t)
}

func TestReverifyMissingEndpointIsBusinessRuleFailure(t *testing.T) {
	stored := db.Service{ServiceID: "a", Endpoint: ""}
	store := new(MockCatalogStore)
	store.On("ListServices", mock.Anything, mock.Anything).Return([]db.Service{stored}, nil)

	result, err := New(store, &stubProber{}).Reverify(context.Background(), ReverifyFilter{}, 10)
	require.NoError(t, err)

	require.Len(t, result.Entries, 1)
	assert.Equal(t, db.PreflightStatusFailed, result.Entries[0].Status)
	assert.Equal(t, string(ErrNoEndpoint), result.Entries[0].Reason)

	// Neither store update runs for a data problem.
	store.AssertNotCalled(t, "UpdateServicePreflightSuccess", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "UpdateServicePreflightFailure", mock.Anything, mock.Anything)
}

func TestReverifyLimitClamped(t *testing.T) {
	store := new(MockCatalogStore)
	store.On("ListServices", mock.Anything, mock.MatchedBy(func(arg db.ListServicesParams) bool {
		return arg.Limit == int32(maxReverifyLimit)
	})).Return([]db.Service{}, nil)

	_, err := New(store, &stubProber{}).Reverify(context.Background(), ReverifyFilter{}, 100000)
	require.NoError(t, err)
	store.AssertExpectations(t)
}
