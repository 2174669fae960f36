package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cryptorecs/internal/analytics"
	"cryptorecs/internal/config"
	apperrors "cryptorecs/internal/errors"
	"cryptorecs/internal/infrastructure"
	customMiddleware "cryptorecs/internal/middleware"
	"cryptorecs/internal/operations"
	"cryptorecs/internal/services"
	"cryptorecs/internal/store"
	handlers "cryptorecs/internal/transport/http"
	"cryptorecs/internal/validation"
	ws "cryptorecs/internal/websocket"
	"cryptorecs/pkg/contracts"
	"cryptorecs/pkg/contracts/domain"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

const (
	AppName = "cryptorecs"

	// runHistory bounds the in-memory run history served on /api/batch/runs
	runHistory = 100
)

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.BusinessMetrics
	ErrorHandler  *apperrors.ErrorHandler
	Store         *store.Guarded
	Analytics     *analytics.Engine
	Launcher      *operations.Launcher
	WebSocketHub  *ws.Hub
	Services      *ServiceContainer
}

// ServiceContainer holds all application services
type ServiceContainer struct {
	Batch  *services.BatchService
	Health *services.HealthService
}

// NewApplication loads configuration, initializes the process logger and
// builds the application.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return New(cfg, logger)
}

// New wires every component from cfg. The websocket hub is running when New
// returns; the HTTP server is not.
func New(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if cfg == nil {
		return nil, apperrors.NewConfigError("configuration is required", nil)
	}
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	logger.Info("application_starting",
		slog.String("name", AppName),
		slog.String("version", contracts.Version),
		slog.String("storage_driver", cfg.Storage.Driver))

	otelProviders, err := infrastructure.InitializeOTel(cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics, err := infrastructure.CreateBusinessMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}

	a := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
		Metrics:       metrics,
		ErrorHandler:  apperrors.NewErrorHandler(logger, cfg.Telemetry.Environment == "development"),
	}

	if err := a.initializeServices(); err != nil {
		a.closeStore()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := a.setupRouter(); err != nil {
		a.WebSocketHub.Stop()
		a.closeStore()
		return nil, fmt.Errorf("failed to set up router: %w", err)
	}

	a.createServer()
	return a, nil
}

// initializeServices opens the store and builds the engine, launcher, hub
// and services on top of it
func (a *Application) initializeServices() error {
	st, err := store.Open(a.Config.Storage, a.Logger,
		store.WithTracer(a.OTelProviders.Tracer),
		store.WithMetrics(a.Metrics))
	if err != nil {
		return fmt.Errorf("failed to open price store: %w", err)
	}
	a.Store = st

	a.Analytics = analytics.NewEngine(st,
		domain.NewSymbolSet(a.Config.Analytics.DisabledSymbols...),
		analytics.WithConcurrency(a.Config.Analytics.Concurrency),
		analytics.WithLogger(a.Logger),
		analytics.WithMetrics(a.Metrics),
		analytics.WithTracer(a.OTelProviders.Tracer))

	hub := ws.NewHub(a.Logger, ws.WithHubMetrics(a.Metrics))
	hub.Start()
	a.WebSocketHub = hub

	a.Launcher = operations.NewLauncher(a.Logger,
		operations.WithRunStore(operations.NewMemoryRunStore(runHistory)),
		operations.WithObserver(hub),
		operations.WithLauncherMetrics(a.Metrics),
		operations.WithLauncherTracer(a.OTelProviders.Tracer))

	a.Services = &ServiceContainer{
		Batch: services.NewBatchService(a.Launcher,
			services.ImportJobFactory(a.Config.Input, st, a.Logger), a.Logger),
		Health: services.NewHealthService(st, hub, a.Logger),
	}
	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() error {
	r := chi.NewRouter()

	// RequestID → OTel → Logger → Recoverer → SecurityHeaders → CORS → RateLimit → AllowList
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders.Tracer, a.Metrics, a.Logger).Handler)
	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(customMiddleware.Recoverer(a.ErrorHandler))
	r.Use(customMiddleware.SecurityHeaders)

	if a.Config.Security.EnableCORS {
		r.Use(customMiddleware.CORS(customMiddleware.CORSConfig{
			AllowedOrigins: a.Config.Security.AllowedOrigins,
			MaxAge:         300,
			Logger:         a.Logger,
		}))
	}

	if a.Config.Security.RateLimit.Enabled {
		r.Use(customMiddleware.NewRateLimiter(
			a.Config.Security.RateLimit.RPS,
			a.Config.Security.RateLimit.Burst,
			a.ErrorHandler,
			a.Logger,
		).Handler)
	}

	allowList, err := customMiddleware.NewIPAllowList(a.Config.Security.AllowedNetworks, a.ErrorHandler, a.Logger)
	if err != nil {
		return err
	}
	r.Use(allowList.Handler)

	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	a.setupAPIRoutes(r)

	r.Handle("/ws", ws.NewHandler(a.WebSocketHub, a.Config.WebSocket,
		a.Config.Security.AllowedOrigins, a.ErrorHandler, a.Logger))

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
	return nil
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout))

		healthHandler := handlers.NewHealthHandler(a.Services.Health, a.Logger)
		r.Get("/health", healthHandler.HealthCheck)
		r.Get("/health/ready", healthHandler.ReadinessCheck)
		r.Get("/health/live", healthHandler.LivenessCheck)
		r.Get("/version", healthHandler.Version)

		cryptoHandler := handlers.NewCryptoHandler(a.Analytics, a.ErrorHandler, a.Logger)
		r.Mount("/crypto", cryptoHandler.Routes())

		batchHandler := handlers.NewBatchHandler(a.Services.Batch, a.ErrorHandler, a.Logger)
		r.Mount("/batch", batchHandler.Routes())
	})
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// Start starts the HTTP server in the background. A listen failure cancels
// the application context through cancel.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "application_started",
		slog.String("name", AppName),
		slog.String("version", contracts.Version),
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level))

	if err := a.performStartupHealthCheck(ctx); err != nil {
		a.Logger.WarnContext(ctx, "startup_health_check_warnings", slog.String("warnings", err.Error()))
	}
	if err := a.importOnStartup(ctx); err != nil {
		a.Logger.ErrorContext(ctx, "startup_import_failed", slog.String("error", err.Error()))
	}

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "server_error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	return nil
}

// importOnStartup launches the initial import when input.import_on_startup
// is set. The run proceeds in the background like a refresh.
func (a *Application) importOnStartup(ctx context.Context) error {
	if !a.Config.Input.ImportOnStartup {
		return nil
	}
	run, err := a.Services.Batch.TriggerReload(ctx)
	if err != nil {
		return err
	}
	a.Logger.InfoContext(ctx, "startup_import_launched", slog.Int64("run_id", run.RunID))
	return nil
}

// Stop gracefully stops the application. The active import run is cancelled
// first so its terminal status still reaches connected websocket clients.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "application_stopping")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error

	if err := a.Launcher.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("launcher shutdown: %w", err))
	}

	a.WebSocketHub.Stop()

	if a.Server != nil {
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "otel_shutdown_failed", slog.String("error", err.Error()))
		}
	}

	if err := a.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store close: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		a.Logger.ErrorContext(ctx, "application_stop_failed", slog.String("error", err.Error()))
		return err
	}

	a.Logger.InfoContext(ctx, "application_stopped")
	return nil
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case sig := <-sigChan:
		a.Logger.InfoContext(ctx, "signal_received", slog.String("signal", sig.String()))
	case <-ctx.Done():
		a.Logger.InfoContext(ctx, "server_exited")
	}

	return a.Stop(context.Background())
}

// performStartupHealthCheck reports problems that do not prevent startup
func (a *Application) performStartupHealthCheck(ctx context.Context) error {
	var warnings []error

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := a.Store.Ping(pingCtx); err != nil {
		warnings = append(warnings, fmt.Errorf("price store: %w", err))
	}

	validator := validation.NewInputValidator(a.Logger)
	report, err := validator.ValidateSourceDir(a.Config.Input.SourceDir, a.Config.Input.Pattern)
	switch {
	case err != nil:
		warnings = append(warnings, fmt.Errorf("source directory: %w", err))
	case len(report.Files) == 0:
		warnings = append(warnings, fmt.Errorf("source directory %s has no files matching %q",
			a.Config.Input.SourceDir, a.Config.Input.Pattern))
	}

	return errors.Join(warnings...)
}

func (a *Application) closeStore() {
	if a.Store == nil {
		return
	}
	if err := a.Store.Close(); err != nil {
		a.Logger.Error("store_close_failed", slog.String("error", err.Error()))
	}
}
