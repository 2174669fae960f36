package operations

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "cryptorecs/internal/errors"
	"cryptorecs/internal/shared/testutil"
	"cryptorecs/pkg/contracts/domain"
)

// blockingJob runs until released or cancelled
type blockingJob struct {
	started chan struct{}
	release chan struct{}
}

func newBlockingJob() *blockingJob {
	return &blockingJob{started: make(chan struct{}), release: make(chan struct{})}
}

func (j *blockingJob) Name() string { return "blocking" }

func (j *blockingJob) Execute(ctx context.Context, progress ProgressReporter) error {
	close(j.started)
	select {
	case <-j.release:
		progress.ChunkCommitted(ctx, 3, 3)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// recordingObserver collects every published run
type recordingObserver struct {
	mu   sync.Mutex
	runs []domain.Run
}

func (o *recordingObserver) RunChanged(ctx context.Context, run domain.Run) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.runs = append(o.runs, run)
}

func (o *recordingObserver) statuses() []domain.RunStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []domain.RunStatus
	for _, r := range o.runs {
		out = append(out, r.Status)
	}
	return out
}

func newTestLauncher(t *testing.T, opts ...LauncherOption) *Launcher {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	l := NewLauncher(logger, opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = l.Shutdown(ctx)
	})
	return l
}

func waitFor(t *testing.T, l *Launcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, l.Wait(ctx))
}

func TestLauncher_LastRunBeforeAnyRun(t *testing.T) {
	l := newTestLauncher(t)

	_, err := l.LastRun(context.Background())

	assert.ErrorIs(t, err, apperrors.ErrNoSuchRun)
}

func TestLauncher_RejectsConcurrentLaunch(t *testing.T) {
	l := newTestLauncher(t)
	job := newBlockingJob()

	first, err := l.Launch(context.Background(), job)
	require.NoError(t, err)
	<-job.started

	_, err = l.Launch(context.Background(), newBlockingJob())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrRunAlreadyInProgress)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, first.RunID, appErr.Context["run_id"])

	running, err := l.LastRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusRunning, running.Status)

	close(job.release)
	waitFor(t, l)

	done, err := l.LastRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.RunID, done.RunID)
	assert.Equal(t, domain.RunStatusCompleted, done.Status)
	assert.Equal(t, 3, done.WriteCount)
	assert.Equal(t, 1, done.ChunksCommitted)
	require.NotNil(t, done.EndedAt)

	// the slot is free again
	next := newBlockingJob()
	close(next.release)
	_, err = l.Launch(context.Background(), next)
	assert.NoError(t, err)
	waitFor(t, l)
}

func TestLauncher_ManyConcurrentLaunchesAdmitOne(t *testing.T) {
	l := newTestLauncher(t)
	job := newBlockingJob()

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted, rejected := 0, 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Launch(context.Background(), job)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				admitted++
			} else if apperrors.IsType(err, apperrors.ErrTypeRunInProgress) {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, admitted)
	assert.Equal(t, 15, rejected)
	close(job.release)
	waitFor(t, l)
}

func TestLauncher_RunIDsIncreaseStrictly(t *testing.T) {
	fixed := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newTestLauncher(t, WithClock(func() time.Time { return fixed }))
	noop := JobFunc{JobName: "noop", Fn: func(context.Context, ProgressReporter) error { return nil }}

	var last domain.Run
	for i := 0; i < 3; i++ {
		run, err := l.Run(context.Background(), noop)
		require.NoError(t, err)
		if i > 0 {
			assert.Greater(t, run.RunID, last.RunID)
			assert.Equal(t, last.InstanceID+1, run.InstanceID)
		}
		last = run
	}
	assert.Equal(t, fixed.UnixMilli()+2, last.RunID)
	assert.Equal(t, int64(3), last.InstanceID)

	runs, err := l.Runs(context.Background(), RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, last.RunID, runs[0].RunID)
}

func TestLauncher_FailedRunRecordsCause(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantKind    apperrors.ErrorType
		wantMessage string
		hidden      string
	}{
		{
			name:        "malformed record keeps location",
			err:         apperrors.NewMalformedRecordError("a.csv", 3, "price", "bad", nil),
			wantKind:    apperrors.ErrTypeMalformedRecord,
			wantMessage: "a.csv:3",
		},
		{
			name: "store failure hides driver text",
			err: fmt.Errorf("write chunk: %w",
				apperrors.NewStoreUnavailableError("upsert", errors.New("pq: password authentication failed for user \"prices\""))),
			wantKind:    apperrors.ErrTypeStoreUnavailable,
			wantMessage: "price store upsert failed",
			hidden:      "password authentication",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logs := testutil.NewTestLogger(t)
			l := NewLauncher(logger)
			failing := JobFunc{JobName: "failing", Fn: func(context.Context, ProgressReporter) error {
				return tt.err
			}}

			run, err := l.Run(context.Background(), failing)
			require.NoError(t, err)

			assert.Equal(t, domain.RunStatusFailed, run.Status)
			require.NotNil(t, run.Error)
			assert.Equal(t, string(tt.wantKind), run.Error.Kind)
			assert.Contains(t, run.Error.Message, tt.wantMessage)
			if tt.hidden != "" {
				assert.NotContains(t, run.Error.Message, tt.hidden)
				assert.True(t, logs.ContainsAttr("error", tt.err.Error()))
			}
		})
	}
}

func TestLauncher_PanickingJobFailsRun(t *testing.T) {
	l := newTestLauncher(t)
	panicking := JobFunc{JobName: "panicking", Fn: func(context.Context, ProgressReporter) error {
		panic("boom")
	}}

	run, err := l.Run(context.Background(), panicking)
	require.NoError(t, err)

	assert.Equal(t, domain.RunStatusFailed, run.Status)
	assert.Equal(t, string(apperrors.ErrTypeInternal), run.Error.Kind)
}

func TestLauncher_ObserversSeeEveryTransition(t *testing.T) {
	obs := &recordingObserver{}
	l := newTestLauncher(t, WithObserver(obs))
	job := newBlockingJob()
	close(job.release)

	_, err := l.Run(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, []domain.RunStatus{
		domain.RunStatusPending,
		domain.RunStatusRunning,
		domain.RunStatusRunning,
		domain.RunStatusCompleted,
	}, obs.statuses())
}

func TestLauncher_ShutdownCancelsActiveRun(t *testing.T) {
	l := newTestLauncher(t)
	job := newBlockingJob()

	_, err := l.Launch(context.Background(), job)
	require.NoError(t, err)
	<-job.started

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, l.Shutdown(ctx))

	run, err := l.LastRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusFailed, run.Status)
	require.NotNil(t, run.Error)
	assert.Equal(t, string(apperrors.ErrTypeCancelled), run.Error.Kind)

	_, err = l.Launch(context.Background(), newBlockingJob())
	assert.True(t, errors.Is(err, ErrLauncherClosed))
}

func TestLauncher_RequestCancellationDoesNotStopRun(t *testing.T) {
	l := newTestLauncher(t)
	job := newBlockingJob()

	reqCtx, cancelReq := context.WithCancel(context.Background())
	_, err := l.Launch(reqCtx, job)
	require.NoError(t, err)
	<-job.started
	cancelReq()

	close(job.release)
	waitFor(t, l)

	run, err := l.LastRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, run.Status)
}

func TestLauncher_NilJob(t *testing.T) {
	l := newTestLauncher(t)
	_, err := l.Launch(context.Background(), nil)
	assert.Error(t, err)
}
