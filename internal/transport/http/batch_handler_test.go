package http

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	apperrors "cryptorecs/internal/errors"
	"cryptorecs/internal/operations"
	"cryptorecs/internal/shared/testutil"
	"cryptorecs/pkg/contracts/domain"
)

func newBatchHandler(t *testing.T, service *MockBatchService) *BatchHandler {
	logger, _ := testutil.NewTestLogger(t)
	return NewBatchHandler(service, newErrorHandler(t), logger)
}

func TestBatchHandler_Refresh(t *testing.T) {
	pending := domain.Run{
		RunID:     1700000000000,
		JobName:   "cryptoPriceImport",
		Status:    domain.RunStatusPending,
		CreatedAt: time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC),
	}

	tests := []struct {
		name           string
		setupMock      func(*MockBatchService)
		expectedStatus int
		expectedCode   string
	}{
		{
			name: "accepted",
			setupMock: func(m *MockBatchService) {
				m.On("TriggerReload").Return(pending, nil)
			},
			expectedStatus: http.StatusAccepted,
		},
		{
			name: "already running",
			setupMock: func(m *MockBatchService) {
				m.On("TriggerReload").Return(domain.Run{}, apperrors.NewRunInProgressError(42))
			},
			expectedStatus: http.StatusConflict,
		},
		{
			name: "launch failure",
			setupMock: func(m *MockBatchService) {
				m.On("TriggerReload").Return(domain.Run{}, errors.New("source directory missing"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   "RUN_LAUNCH_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(MockBatchService)
			tt.setupMock(service)

			rec := serve(t, "/api/batch", newBatchHandler(t, service).Routes(), http.MethodPatch, "/api/batch/refresh")

			assert.Equal(t, tt.expectedStatus, rec.Code)
			switch tt.expectedStatus {
			case http.StatusAccepted:
				var got domain.Run
				decodeJSON(t, rec, &got)
				assert.Equal(t, pending.RunID, got.RunID)
				assert.Equal(t, domain.RunStatusPending, got.Status)
			case http.StatusConflict:
				problem := problemOf(t, rec)
				assert.Equal(t, apperrors.TypeRunInProgress, problem["type"])
				assert.EqualValues(t, 42, problem["run_id"])
			default:
				assert.Equal(t, tt.expectedCode, problemOf(t, rec)["error_code"])
			}
			service.AssertExpectations(t)
		})
	}
}

func TestBatchHandler_RefreshRejectsGet(t *testing.T) {
	service := new(MockBatchService)

	rec := serve(t, "/api/batch", newBatchHandler(t, service).Routes(), http.MethodGet, "/api/batch/refresh")

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	service.AssertNotCalled(t, "TriggerReload")
}

func TestBatchHandler_LastStatus(t *testing.T) {
	completed := domain.Run{RunID: 9, Status: domain.RunStatusCompleted, ReadCount: 150, WriteCount: 150}

	tests := []struct {
		name           string
		method         string
		setupMock      func(*MockBatchService)
		expectedStatus int
	}{
		{
			name:   "get latest",
			method: http.MethodGet,
			setupMock: func(m *MockBatchService) {
				m.On("LastRun").Return(completed, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:   "patch latest",
			method: http.MethodPatch,
			setupMock: func(m *MockBatchService) {
				m.On("LastRun").Return(completed, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:   "never run",
			method: http.MethodGet,
			setupMock: func(m *MockBatchService) {
				m.On("LastRun").Return(domain.Run{}, apperrors.ErrNoSuchRun)
			},
			expectedStatus: http.StatusNoContent,
		},
		{
			name:   "run store failure",
			method: http.MethodGet,
			setupMock: func(m *MockBatchService) {
				m.On("LastRun").Return(domain.Run{}, apperrors.NewStoreUnavailableError("last run", errors.New("closed")))
			},
			expectedStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(MockBatchService)
			tt.setupMock(service)

			rec := serve(t, "/api/batch", newBatchHandler(t, service).Routes(), tt.method, "/api/batch/lastBatchExecStatus")

			assert.Equal(t, tt.expectedStatus, rec.Code)
			if tt.expectedStatus == http.StatusOK {
				var got domain.Run
				decodeJSON(t, rec, &got)
				assert.Equal(t, completed.RunID, got.RunID)
				assert.Equal(t, 150, got.WriteCount)
			}
			service.AssertExpectations(t)
		})
	}
}

func TestBatchHandler_ListRuns(t *testing.T) {
	tests := []struct {
		name           string
		target         string
		setupMock      func(*MockBatchService)
		expectedStatus int
		expectedLen    int
	}{
		{
			name:   "no filter",
			target: "/api/batch/runs",
			setupMock: func(m *MockBatchService) {
				m.On("Runs", operations.RunFilter{}).Return([]domain.Run{{RunID: 2}, {RunID: 1}}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedLen:    2,
		},
		{
			name:   "failed runs limited",
			target: "/api/batch/runs?status=failed&limit=5",
			setupMock: func(m *MockBatchService) {
				m.On("Runs", operations.RunFilter{Status: domain.RunStatusFailed, Limit: 5}).Return(nil, nil)
			},
			expectedStatus: http.StatusOK,
			expectedLen:    0,
		},
		{
			name:           "unknown status",
			target:         "/api/batch/runs?status=exploded",
			setupMock:      func(m *MockBatchService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "limit not a number",
			target:         "/api/batch/runs?limit=ten",
			setupMock:      func(m *MockBatchService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "limit too large",
			target:         "/api/batch/runs?limit=1000",
			setupMock:      func(m *MockBatchService) {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(MockBatchService)
			tt.setupMock(service)

			rec := serve(t, "/api/batch", newBatchHandler(t, service).Routes(), http.MethodGet, tt.target)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			if tt.expectedStatus == http.StatusOK {
				var got []domain.Run
				decodeJSON(t, rec, &got)
				assert.NotNil(t, got)
				assert.Len(t, got, tt.expectedLen)
			} else {
				service.AssertNotCalled(t, "Runs", mock.Anything)
			}
			service.AssertExpectations(t)
		})
	}
}
