package handlers

import (
	"context"
	"os"
	"testing"

	"paygrid-api/internal/client/facilitator"
	"paygrid-api/internal/config"
	"paygrid-api/internal/db"
	"paygrid-api/internal/logger"
	"paygrid-api/internal/metrics"
	"paygrid-api/internal/ownership"
	"paygrid-api/internal/x402"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	logger.InitLogger()
	os.Exit(m.Run())
}

// MockStore mocks the catalog and fee persistence surface.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateService(ctx context.Context, arg db.CreateServiceParams) (db.Service, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(db.Service), args.Error(1)
}

func (m *MockStore) GetServiceByServiceID(ctx context.Context, serviceID string) (db.Service, error) {
	args := m.Called(ctx, serviceID)
	return args.Get(0).(db.Service), args.Error(1)
}

func (m *MockStore) ListServices(ctx context.Context, arg db.ListServicesParams) ([]db.Service, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).([]db.Service), args.Error(1)
}

func (m *MockStore) ListServicesByOwner(ctx context.Context, ownerAddress string) ([]db.Service, error) {
	args := m.Called(ctx, ownerAddress)
	return args.Get(0).([]db.Service), args.Error(1)
}

func (m *MockStore) UpdateServiceCurated(ctx context.Context, arg db.UpdateServiceCuratedParams) (db.Service, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(db.Service), args.Error(1)
}

func (m *MockStore) SetServiceVerified(ctx context.Context, arg db.SetServiceVerifiedParams) (db.Service, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(db.Service), args.Error(1)
}

func (m *MockStore) CreateFeeRecord(ctx context.Context, arg db.CreateFeeRecordParams) (db.FeeRecord, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(db.FeeRecord), args.Error(1)
}

func (m *MockStore) ListUntransferredFeeRecords(ctx context.Context, limit int32) ([]db.FeeRecord, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]db.FeeRecord), args.Error(1)
}

func (m *MockStore) MarkFeeRecordTransferred(ctx context.Context, id uuid.UUID) (db.FeeRecord, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(db.FeeRecord), args.Error(1)
}

// MockProber mocks the preflight prober.
type MockProber struct {
	mock.Mock
}

func (m *MockProber) Probe(ctx context.Context, endpoint string) (*x402.Quote, error) {
	args := m.Called(ctx, endpoint)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*x402.Quote), args.Error(1)
}

// MockForwarder mocks the upstream forwarder.
type MockForwarder struct {
	mock.Mock
}

func (m *MockForwarder) Forward(ctx context.Context, targetURL, method string, headers map[string]string, body []byte) (*x402.UpstreamResult, error) {
	args := m.Called(ctx, targetURL, method, headers, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*x402.UpstreamResult), args.Error(1)
}

// MockFacilitator mocks the facilitator surface.
type MockFacilitator struct {
	mock.Mock
}

func (m *MockFacilitator) Verify(ctx context.Context, proof string, requirement x402.PaymentRequirements) (*facilitator.VerifyResult, error) {
	args := m.Called(ctx, proof, requirement)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*facilitator.VerifyResult), args.Error(1)
}

func (m *MockFacilitator) Settle(ctx context.Context, proof string, requirement x402.PaymentRequirements) (*facilitator.SettleResult, error) {
	args := m.Called(ctx, proof, requirement)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*facilitator.SettleResult), args.Error(1)
}

func (m *MockFacilitator) Supported(ctx context.Context, network string) (*facilitator.SupportedResult, error) {
	args := m.Called(ctx, network)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*facilitator.SupportedResult), args.Error(1)
}

func (m *MockFacilitator) List(ctx context.Context, network string) (*facilitator.ListResult, error) {
	args := m.Called(ctx, network)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*facilitator.ListResult), args.Error(1)
}

type testDeps struct {
	store       *MockStore
	prober      *MockProber
	forwarder   *MockForwarder
	facilitator *MockFacilitator
}

func newTestCommon() (*CommonServices, *testDeps) {
	deps := &testDeps{
		store:       new(MockStore),
		prober:      new(MockProber),
		forwarder:   new(MockForwarder),
		facilitator: new(MockFacilitator),
	}
	cfg := &config.Config{
		PlatformFeePercent: 5,
		ReverifyLimit:      50,
	}
	common := NewCommonServices(
		deps.store,
		cfg,
		deps.prober,
		deps.forwarder,
		deps.facilitator,
		nil,
		nil,
		ownership.NewVerifier(),
		metrics.NewNoopRecorder(),
	)
	return common, deps
}
