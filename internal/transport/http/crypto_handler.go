package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"cryptorecs/internal/analytics"
	apperrors "cryptorecs/internal/errors"
	api "cryptorecs/pkg/contracts/api/v1"
	"cryptorecs/pkg/contracts/domain"
)

// CryptoHandler serves the analytics queries
type CryptoHandler struct {
	service      AnalyticsService
	errorHandler *apperrors.ErrorHandler
	logger       *slog.Logger
}

// NewCryptoHandler creates a new crypto handler
func NewCryptoHandler(service AnalyticsService, errorHandler *apperrors.ErrorHandler, logger *slog.Logger) *CryptoHandler {
	if service == nil {
		panic("service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CryptoHandler{
		service:      service,
		errorHandler: errorHandler,
		logger:       logger.With(slog.String("handler", "crypto")),
	}
}

// Routes returns the router mounted at /api/crypto
func (h *CryptoHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/list", h.List)
	r.Get("/normalized/all", h.NormalizedAll)
	r.Get("/normalized/top", h.NormalizedTop)
	r.Get("/statistics", h.Statistics)
	r.Get("/statistics/{symbol}", h.Statistics)
	r.Get("/range-statistics", h.RangeStatistics)
	r.Get("/range-statistics/{symbol}", h.RangeStatistics)
	return r
}

// List handles GET /api/crypto/list
func (h *CryptoHandler) List(w http.ResponseWriter, r *http.Request) {
	req := api.ListRequest{Symbol: strings.TrimSpace(r.URL.Query().Get("symbol"))}
	if err := validateRequest(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	observations, err := h.service.ListAll(r.Context(), req.Symbol)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if len(observations) == 0 {
		render.NoContent(w, r)
		return
	}
	render.JSON(w, r, observations)
}

// NormalizedAll handles GET /api/crypto/normalized/all
func (h *CryptoHandler) NormalizedAll(w http.ResponseWriter, r *http.Request) {
	req := api.NormalizedAllRequest{Sort: r.URL.Query().Get("sort")}
	dir, err := analytics.ParseSortDirection(req.Sort)
	if err != nil {
		h.errorHandler.HandleError(w, r, apperrors.InvalidParameter("sort", "one of ASC DESC", err))
		return
	}

	results, err := h.service.NormalizedAll(r.Context(), dir)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if len(results) == 0 {
		render.NoContent(w, r)
		return
	}
	render.JSON(w, r, results)
}

// NormalizedTop handles GET /api/crypto/normalized/top
func (h *CryptoHandler) NormalizedTop(w http.ResponseWriter, r *http.Request) {
	req := api.TopNormalizedRequest{Date: r.URL.Query().Get("date")}
	if err := validateRequest(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	day, err := parseUTC(api.DateLayout, req.Date)
	if err != nil {
		h.errorHandler.HandleError(w, r, apperrors.InvalidParameter("date", api.DateLayout, err))
		return
	}

	best, found, err := h.service.HighestNormalizedForDay(r.Context(), day)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if !found {
		render.NoContent(w, r)
		return
	}
	render.JSON(w, r, best)
}

// Statistics handles GET /api/crypto/statistics[/{symbol}]
func (h *CryptoHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	req := api.StatisticsRequest{
		Symbol:    chi.URLParam(r, "symbol"),
		YearMonth: r.URL.Query().Get("yearMonth"),
	}
	if err := validateRequest(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	var anchor *time.Time
	if req.YearMonth != "" {
		t, err := parseUTC(api.DateLayout, req.YearMonth)
		if err != nil {
			h.errorHandler.HandleError(w, r, apperrors.InvalidParameter("yearMonth", api.DateLayout, err))
			return
		}
		anchor = &t
	}

	stats, err := h.service.Statistics(r.Context(), req.Symbol, anchor)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, nonNil(stats))
}

// RangeStatistics handles GET /api/crypto/range-statistics[/{symbol}]
func (h *CryptoHandler) RangeStatistics(w http.ResponseWriter, r *http.Request) {
	req := api.RangeStatisticsRequest{
		Symbol: chi.URLParam(r, "symbol"),
		From:   r.URL.Query().Get("from"),
		To:     r.URL.Query().Get("to"),
	}
	if err := validateRequest(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	from, err := parseUTC(api.DateTimeLayout, req.From)
	if err != nil {
		h.errorHandler.HandleError(w, r, apperrors.InvalidParameter("from", api.DateTimeLayout, err))
		return
	}
	to, err := parseUTC(api.DateTimeLayout, req.To)
	if err != nil {
		h.errorHandler.HandleError(w, r, apperrors.InvalidParameter("to", api.DateTimeLayout, err))
		return
	}

	stats, err := h.service.StatisticsForRange(r.Context(), req.Symbol, from, to)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, nonNil(stats))
}

func nonNil(stats []domain.RangeStatistics) []domain.RangeStatistics {
	if stats == nil {
		return []domain.RangeStatistics{}
	}
	return stats
}
