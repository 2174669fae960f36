package http

import (
	"context"
	"time"

	"cryptorecs/internal/analytics"
	"cryptorecs/internal/operations"
	"cryptorecs/internal/services"
	"cryptorecs/pkg/contracts"
	"cryptorecs/pkg/contracts/domain"
)

// AnalyticsService defines the read-only queries behind /api/crypto
type AnalyticsService interface {
	ListAll(ctx context.Context, symbol string) ([]domain.PriceObservation, error)
	NormalizedAll(ctx context.Context, dir analytics.SortDirection) ([]domain.NormalizedResult, error)
	HighestNormalizedForDay(ctx context.Context, day time.Time) (domain.NormalizedResult, bool, error)
	Statistics(ctx context.Context, symbol string, monthAnchor *time.Time) ([]domain.RangeStatistics, error)
	StatisticsForRange(ctx context.Context, symbol string, from, to time.Time) ([]domain.RangeStatistics, error)
}

// BatchServiceInterface defines the import controls behind /api/batch
type BatchServiceInterface interface {
	TriggerReload(ctx context.Context) (domain.Run, error)
	LastRun(ctx context.Context) (domain.Run, error)
	Runs(ctx context.Context, filter operations.RunFilter) ([]domain.Run, error)
}

// HealthServiceInterface defines the health and version queries
type HealthServiceInterface interface {
	HealthCheck(ctx context.Context) services.HealthStatus
	ReadinessCheck(ctx context.Context) services.HealthStatus
	LivenessCheck(ctx context.Context) services.HealthStatus
	Version() contracts.VersionInfo
}
