package operations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	apperrors "cryptorecs/internal/errors"
	"cryptorecs/internal/infrastructure"
	"cryptorecs/pkg/contracts/domain"
)

// TracerName is the instrumentation scope of run spans
const TracerName = "cryptorecs.operations"

// ErrLauncherClosed is returned by Launch after Shutdown
var ErrLauncherClosed = errors.New("launcher is shut down")

// Launcher executes at most one run at a time. A run moves from pending to
// running and then to completed or failed; the slot is free again as soon as
// the run reaches a terminal status.
type Launcher struct {
	mu        sync.Mutex
	state     launcherState
	active    *activeRun
	lastRunID int64
	instances int64

	runs      RunStore
	observers []RunObserver
	logger    *slog.Logger
	metrics   *infrastructure.BusinessMetrics
	tracer    trace.Tracer
	now       func() time.Time
}

// LauncherOption configures a Launcher
type LauncherOption func(*Launcher)

// WithRunStore replaces the default in-memory run store
func WithRunStore(runs RunStore) LauncherOption {
	return func(l *Launcher) {
		l.runs = runs
	}
}

// WithObserver registers an observer at construction time
func WithObserver(o RunObserver) LauncherOption {
	return func(l *Launcher) {
		l.observers = append(l.observers, o)
	}
}

// WithLauncherMetrics records run and chunk metrics
func WithLauncherMetrics(m *infrastructure.BusinessMetrics) LauncherOption {
	return func(l *Launcher) {
		if m != nil {
			l.metrics = m
		}
	}
}

// WithLauncherTracer records a span per run
func WithLauncherTracer(t trace.Tracer) LauncherOption {
	return func(l *Launcher) {
		if t != nil {
			l.tracer = t
		}
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) LauncherOption {
	return func(l *Launcher) {
		l.now = now
	}
}

// NewLauncher creates an idle launcher
func NewLauncher(logger *slog.Logger, opts ...LauncherOption) *Launcher {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Launcher{
		runs:    NewMemoryRunStore(DefaultRunHistory),
		logger:  logger.With(slog.String("component", "launcher")),
		metrics: infrastructure.NoopBusinessMetrics(),
		tracer:  noop.NewTracerProvider().Tracer(TracerName),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Launch starts job asynchronously and returns the pending run. Failures to
// launch are returned immediately; failures of the job itself are recorded
// on the run.
func (l *Launcher) Launch(ctx context.Context, job Job) (domain.Run, error) {
	run, _, err := l.launch(ctx, job)
	return run, err
}

// Run launches job and waits for it to reach a terminal status
func (l *Launcher) Run(ctx context.Context, job Job) (domain.Run, error) {
	_, active, err := l.launch(ctx, job)
	if err != nil {
		return domain.Run{}, err
	}

	select {
	case <-active.done:
	case <-ctx.Done():
		return domain.Run{}, ctx.Err()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return active.run.Clone(), nil
}

func (l *Launcher) launch(ctx context.Context, job Job) (domain.Run, *activeRun, error) {
	if job == nil {
		return domain.Run{}, nil, fmt.Errorf("launch: job is nil")
	}

	l.mu.Lock()
	switch l.state {
	case stateClosed:
		l.mu.Unlock()
		return domain.Run{}, nil, ErrLauncherClosed
	case stateRunning:
		runID := l.active.run.RunID
		l.mu.Unlock()
		l.logger.WarnContext(ctx, "run_rejected", slog.Int64("active_run_id", runID))
		return domain.Run{}, nil, apperrors.NewRunInProgressError(runID)
	}

	now := l.now().UTC()
	run := domain.Run{
		RunID:      nextRunID(now, l.lastRunID),
		InstanceID: l.instances + 1,
		JobName:    job.Name(),
		Status:     domain.RunStatusPending,
		CreatedAt:  now,
	}
	if err := l.runs.Save(ctx, run); err != nil {
		l.mu.Unlock()
		return domain.Run{}, nil, fmt.Errorf("launch: save run: %w", err)
	}

	// the run outlives the request that triggered it
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	active := &activeRun{run: run, cancel: cancel, done: make(chan struct{})}
	l.lastRunID = run.RunID
	l.instances++
	l.state = stateRunning
	l.active = active
	l.mu.Unlock()

	l.logger.InfoContext(ctx, "run_launched",
		slog.Int64("run_id", run.RunID),
		slog.Int64("instance_id", run.InstanceID),
		slog.String("job", run.JobName))
	l.notify(ctx, run.Clone())

	go l.execute(runCtx, job, active)

	return run.Clone(), active, nil
}

// Wait blocks until no run is active or ctx is done
func (l *Launcher) Wait(ctx context.Context) error {
	l.mu.Lock()
	active := l.active
	l.mu.Unlock()
	if active == nil {
		return nil
	}

	select {
	case <-active.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LastRun returns the newest run, in flight or finished
func (l *Launcher) LastRun(ctx context.Context) (domain.Run, error) {
	return l.runs.Latest(ctx)
}

// Runs returns recent runs, newest first
func (l *Launcher) Runs(ctx context.Context, filter RunFilter) ([]domain.Run, error) {
	return l.runs.List(ctx, filter)
}

// Shutdown refuses new runs, cancels the active one and waits for it to end
func (l *Launcher) Shutdown(ctx context.Context) error {
	l.mu.Lock()
	l.state = stateClosed
	active := l.active
	l.mu.Unlock()

	if active == nil {
		return nil
	}

	l.logger.InfoContext(ctx, "cancelling_active_run", slog.Int64("run_id", active.run.RunID))
	active.cancel()

	select {
	case <-active.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for run %d: %w", active.run.RunID, ctx.Err())
	}
}

func (l *Launcher) execute(ctx context.Context, job Job, active *activeRun) {
	defer close(active.done)
	defer active.cancel()

	ctx, span := l.tracer.Start(ctx, "import.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.Int64("run.id", active.run.RunID),
			attribute.String("run.job", active.run.JobName),
		))
	defer span.End()

	l.mu.Lock()
	active.start(l.now().UTC())
	started := active.run.Clone()
	l.saveLocked(ctx, started)
	l.mu.Unlock()

	l.metrics.ImportActiveRuns.Add(ctx, 1)
	l.logger.InfoContext(ctx, "run_started", slog.Int64("run_id", started.RunID))
	l.notify(ctx, started)

	err := l.safeExecute(ctx, job, &runProgress{launcher: l, active: active})
	cancelled := err != nil && ctx.Err() != nil && errors.Is(err, context.Canceled)

	l.mu.Lock()
	active.finish(l.now().UTC(), err, cancelled)
	final := active.run.Clone()
	l.saveLocked(ctx, final)
	if l.active == active {
		l.active = nil
		if l.state == stateRunning {
			l.state = stateIdle
		}
	}
	l.mu.Unlock()

	l.metrics.ImportActiveRuns.Add(ctx, -1)
	l.metrics.RecordImportRun(ctx, string(final.Status), final.Duration())
	span.SetAttributes(
		attribute.String("run.status", string(final.Status)),
		attribute.Int("run.write_count", final.WriteCount),
	)

	if err != nil {
		infrastructure.RecordError(ctx, err)
		l.logger.ErrorContext(ctx, "run_failed",
			slog.Int64("run_id", final.RunID),
			slog.String("kind", final.Error.Kind),
			slog.String("error", err.Error()),
			slog.Int("chunks_committed", final.ChunksCommitted))
	} else {
		l.logger.InfoContext(ctx, "run_completed",
			slog.Int64("run_id", final.RunID),
			slog.Int("read_count", final.ReadCount),
			slog.Int("write_count", final.WriteCount),
			slog.Int("chunks_committed", final.ChunksCommitted),
			slog.Duration("duration", final.Duration()))
	}
	l.notify(ctx, final)
}

// safeExecute turns a panicking job into a failed run
func (l *Launcher) safeExecute(ctx context.Context, job Job, progress ProgressReporter) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.NewAppError(apperrors.ErrTypeInternal, fmt.Sprintf("job panicked: %v", r), nil)
		}
	}()
	return job.Execute(ctx, progress)
}

// saveLocked persists run; l.mu must be held
func (l *Launcher) saveLocked(ctx context.Context, run domain.Run) {
	if err := l.runs.Save(ctx, run); err != nil {
		l.logger.WarnContext(ctx, "run_not_saved",
			slog.Int64("run_id", run.RunID),
			slog.String("status", string(run.Status)),
			slog.String("error", err.Error()))
	}
}

func (l *Launcher) notify(ctx context.Context, run domain.Run) {
	l.mu.Lock()
	observers := append([]RunObserver(nil), l.observers...)
	l.mu.Unlock()

	for _, o := range observers {
		o.RunChanged(ctx, run.Clone())
	}
}
