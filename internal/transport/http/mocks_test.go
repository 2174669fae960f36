package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"cryptorecs/internal/analytics"
	apperrors "cryptorecs/internal/errors"
	"cryptorecs/internal/operations"
	"cryptorecs/internal/services"
	"cryptorecs/internal/shared/testutil"
	"cryptorecs/pkg/contracts"
	"cryptorecs/pkg/contracts/domain"
)

// MockAnalyticsService is a mock implementation of AnalyticsService
type MockAnalyticsService struct {
	mock.Mock
}

func (m *MockAnalyticsService) ListAll(ctx context.Context, symbol string) ([]domain.PriceObservation, error) {
	args := m.Called(symbol)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PriceObservation), args.Error(1)
}

func (m *MockAnalyticsService) NormalizedAll(ctx context.Context, dir analytics.SortDirection) ([]domain.NormalizedResult, error) {
	args := m.Called(dir)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.NormalizedResult), args.Error(1)
}

func (m *MockAnalyticsService) HighestNormalizedForDay(ctx context.Context, day time.Time) (domain.NormalizedResult, bool, error) {
	args := m.Called(day)
	return args.Get(0).(domain.NormalizedResult), args.Bool(1), args.Error(2)
}

func (m *MockAnalyticsService) Statistics(ctx context.Context, symbol string, monthAnchor *time.Time) ([]domain.RangeStatistics, error) {
	args := m.Called(symbol, monthAnchor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RangeStatistics), args.Error(1)
}

func (m *MockAnalyticsService) StatisticsForRange(ctx context.Context, symbol string, from, to time.Time) ([]domain.RangeStatistics, error) {
	args := m.Called(symbol, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RangeStatistics), args.Error(1)
}

// MockBatchService is a mock implementation of BatchServiceInterface
type MockBatchService struct {
	mock.Mock
}

func (m *MockBatchService) TriggerReload(ctx context.Context) (domain.Run, error) {
	args := m.Called()
	return args.Get(0).(domain.Run), args.Error(1)
}

func (m *MockBatchService) LastRun(ctx context.Context) (domain.Run, error) {
	args := m.Called()
	return args.Get(0).(domain.Run), args.Error(1)
}

func (m *MockBatchService) Runs(ctx context.Context, filter operations.RunFilter) ([]domain.Run, error) {
	args := m.Called(filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Run), args.Error(1)
}

// MockHealthService is a mock implementation of HealthServiceInterface
type MockHealthService struct {
	mock.Mock
}

func (m *MockHealthService) HealthCheck(ctx context.Context) services.HealthStatus {
	return m.Called().Get(0).(services.HealthStatus)
}

func (m *MockHealthService) ReadinessCheck(ctx context.Context) services.HealthStatus {
	return m.Called().Get(0).(services.HealthStatus)
}

func (m *MockHealthService) LivenessCheck(ctx context.Context) services.HealthStatus {
	return m.Called().Get(0).(services.HealthStatus)
}

func (m *MockHealthService) Version() contracts.VersionInfo {
	return m.Called().Get(0).(contracts.VersionInfo)
}

func newErrorHandler(t *testing.T) *apperrors.ErrorHandler {
	logger, _ := testutil.NewTestLogger(t)
	return apperrors.NewErrorHandler(logger, false)
}

func serve(t *testing.T, mount string, routes chi.Router, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Mount(mount, routes)
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func problemOf(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var problem map[string]interface{}
	decodeJSON(t, rec, &problem)
	return problem
}

func utc(layout, value string) time.Time {
	t, err := time.ParseInLocation(layout, value, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func sameInstant(want time.Time) interface{} {
	return mock.MatchedBy(func(got time.Time) bool { return got.Equal(want) })
}
