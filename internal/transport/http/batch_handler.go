package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apperrors "cryptorecs/internal/errors"
	"cryptorecs/internal/operations"
	api "cryptorecs/pkg/contracts/api/v1"
	"cryptorecs/pkg/contracts/domain"
)

// BatchHandler handles import run HTTP requests
type BatchHandler struct {
	service      BatchServiceInterface
	errorHandler *apperrors.ErrorHandler
	logger       *slog.Logger
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(service BatchServiceInterface, errorHandler *apperrors.ErrorHandler, logger *slog.Logger) *BatchHandler {
	if service == nil {
		panic("service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchHandler{
		service:      service,
		errorHandler: errorHandler,
		logger:       logger.With(slog.String("handler", "batch")),
	}
}

// Routes returns the router mounted at /api/batch
func (h *BatchHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Patch("/refresh", h.Refresh)
	r.Patch("/lastBatchExecStatus", h.LastStatus)
	r.Get("/lastBatchExecStatus", h.LastStatus)
	r.Get("/runs", h.ListRuns)
	return r
}

// Refresh handles PATCH /api/batch/refresh
func (h *BatchHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	run, err := h.service.TriggerReload(r.Context())
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrTypeRunInProgress) {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		h.errorHandler.HandleError(w, r, apperrors.RunLaunchError(err))
		return
	}

	h.logger.InfoContext(r.Context(), "run_accepted", slog.Int64("run_id", run.RunID))
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, run)
}

// LastStatus handles PATCH and GET /api/batch/lastBatchExecStatus
func (h *BatchHandler) LastStatus(w http.ResponseWriter, r *http.Request) {
	run, err := h.service.LastRun(r.Context())
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrTypeNoSuchRun) {
			render.NoContent(w, r)
			return
		}
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, run)
}

// ListRuns handles GET /api/batch/runs
func (h *BatchHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r.URL.Query().Get("limit"), "limit")
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	req := api.RunListRequest{
		Status: r.URL.Query().Get("status"),
		Limit:  limit,
	}
	if err := validateRequest(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	runs, err := h.service.Runs(r.Context(), operations.RunFilter{
		Status: domain.RunStatus(req.Status),
		Limit:  req.Limit,
	})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if runs == nil {
		runs = []domain.Run{}
	}
	render.JSON(w, r, runs)
}
