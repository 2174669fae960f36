package services

import (
	"context"
	"fmt"
	"log/slog"

	"cryptorecs/internal/config"
	"cryptorecs/internal/importer"
	"cryptorecs/internal/operations"
	"cryptorecs/internal/store"
	"cryptorecs/pkg/contracts/domain"
)

// JobFactory builds the job executed by one run
type JobFactory func() (operations.Job, error)

// ImportJobFactory returns a factory for price import jobs writing to w.
// A fresh job is built per run so every run resolves its input files anew.
func ImportJobFactory(cfg config.InputConfig, w store.Writer, logger *slog.Logger) JobFactory {
	return func() (operations.Job, error) {
		job, err := importer.NewJob(cfg, importer.NewStoreWriter(w), logger)
		if err != nil {
			return nil, err
		}
		return job, nil
	}
}

// BatchService triggers import runs and reports their status
type BatchService struct {
	launcher *operations.Launcher
	newJob   JobFactory
	logger   *slog.Logger
}

// NewBatchService creates a batch service
func NewBatchService(launcher *operations.Launcher, newJob JobFactory, logger *slog.Logger) *BatchService {
	return &BatchService{
		launcher: launcher,
		newJob:   newJob,
		logger:   logger.With(slog.String("component", "batch_service")),
	}
}

// TriggerReload launches an import run and returns it in its initial state.
// It fails with RunAlreadyInProgress while another run is in flight.
func (s *BatchService) TriggerReload(ctx context.Context) (domain.Run, error) {
	job, err := s.newJob()
	if err != nil {
		return domain.Run{}, fmt.Errorf("build import job: %w", err)
	}

	run, err := s.launcher.Launch(ctx, job)
	if err != nil {
		s.logger.WarnContext(ctx, "reload_rejected", slog.String("error", err.Error()))
		return domain.Run{}, err
	}

	s.logger.InfoContext(ctx, "reload_triggered", slog.Int64("run_id", run.RunID))
	return run, nil
}

// LastRun returns the most recent run, or a NoSuchRun error
func (s *BatchService) LastRun(ctx context.Context) (domain.Run, error) {
	return s.launcher.LastRun(ctx)
}

// Runs returns the recorded run history, newest first
func (s *BatchService) Runs(ctx context.Context, filter operations.RunFilter) ([]domain.Run, error) {
	return s.launcher.Runs(ctx, filter)
}
