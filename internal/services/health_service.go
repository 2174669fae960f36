package services

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"cryptorecs/pkg/contracts"
)

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// ClientCounter reports connected websocket clients
type ClientCounter interface {
	ClientCount() int
}

// HealthService provides health check functionality
type HealthService struct {
	store     Pinger
	hub       ClientCounter
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Runtime   map[string]interface{}   `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

// Ready reports whether every dependency is ready
func (s HealthStatus) Ready() bool {
	return s.Status == "ready"
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// NewHealthService creates a health service. hub may be nil.
func NewHealthService(store Pinger, hub ClientCounter, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		store:     store,
		hub:       hub,
		startTime: time.Now(),
		logger:    logger.With(slog.String("component", "health_service")),
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   contracts.Version,
	}
}

// ReadinessCheck pings the price store. The service is not ready while the
// store is unreachable.
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now().UTC(),
		Version:   contracts.Version,
		Services: map[string]ServiceHealth{
			"store": hs.checkStore(ctx),
		},
	}
	if hs.hub != nil {
		status.Services["websocket"] = ServiceHealth{Status: "ready"}
	}

	for _, service := range status.Services {
		if service.Status != "ready" {
			status.Status = "not_ready"
			break
		}
	}
	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	rt := map[string]interface{}{
		"uptime_seconds": time.Since(hs.startTime).Seconds(),
		"goroutines":     runtime.NumGoroutine(),
	}
	if hs.hub != nil {
		rt["websocket_clients"] = hs.hub.ClientCount()
	}
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now().UTC(),
		Version:   contracts.Version,
		Runtime:   rt,
	}
}

// Version returns build information
func (hs *HealthService) Version() contracts.VersionInfo {
	return contracts.GetVersionInfo()
}

func (hs *HealthService) checkStore(ctx context.Context) ServiceHealth {
	if err := hs.store.Ping(ctx); err != nil {
		hs.logger.WarnContext(ctx, "store_not_ready", slog.String("error", err.Error()))
		return ServiceHealth{Status: "not_ready", Message: "price store unreachable"}
	}
	return ServiceHealth{Status: "ready"}
}
