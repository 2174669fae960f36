package operations

import (
	"context"

	"cryptorecs/pkg/contracts/domain"
)

// Job is the unit of work executed by a run
type Job interface {
	// Name identifies the job in logs and run records
	Name() string

	// Execute runs the job to completion. It must return promptly once ctx
	// is cancelled.
	Execute(ctx context.Context, progress ProgressReporter) error
}

// ProgressReporter lets a job publish counters on the run it belongs to
type ProgressReporter interface {
	// SetFiles records the resolved input files
	SetFiles(files []string)

	// ChunkCommitted records one committed chunk
	ChunkCommitted(ctx context.Context, read, written int)
}

// RunObserver is notified of every run status transition and of progress
// on the active run. Observers must not block.
type RunObserver interface {
	RunChanged(ctx context.Context, run domain.Run)
}

// RunObserverFunc adapts a function to RunObserver
type RunObserverFunc func(ctx context.Context, run domain.Run)

// RunChanged calls f
func (f RunObserverFunc) RunChanged(ctx context.Context, run domain.Run) {
	f(ctx, run)
}

// JobFunc adapts a function to Job
type JobFunc struct {
	JobName string
	Fn      func(ctx context.Context, progress ProgressReporter) error
}

func (j JobFunc) Name() string {
	return j.JobName
}

func (j JobFunc) Execute(ctx context.Context, progress ProgressReporter) error {
	return j.Fn(ctx, progress)
}
