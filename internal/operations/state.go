package operations

import (
	"context"
	"errors"
	"time"

	apperrors "cryptorecs/internal/errors"
	"cryptorecs/pkg/contracts/domain"
)

// launcherState is the state of the single import slot
type launcherState int

const (
	stateIdle launcherState = iota
	stateRunning
	stateClosed
)

func (s launcherState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateRunning:
		return "running"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// activeRun is the bookkeeping for the run occupying the slot
type activeRun struct {
	run    domain.Run
	cancel context.CancelFunc
	done   chan struct{}
}

// start moves the run from pending to running
func (a *activeRun) start(now time.Time) {
	a.run.Status = domain.RunStatusRunning
	a.run.StartedAt = &now
}

// finish moves the run to its terminal status
func (a *activeRun) finish(now time.Time, err error, cancelled bool) {
	a.run.EndedAt = &now
	if err == nil {
		a.run.Status = domain.RunStatusCompleted
		return
	}

	a.run.Status = domain.RunStatusFailed
	kind := string(apperrors.TypeOf(err))
	if cancelled {
		kind = string(apperrors.ErrTypeCancelled)
	}
	a.run.Error = &domain.RunError{Kind: kind, Message: runErrorMessage(err)}
}

// runErrorMessage is the message a run reports for err. Storage failures
// report the failed operation only; the driver text stays in the logs.
func runErrorMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Type == apperrors.ErrTypeStoreUnavailable {
		return appErr.Message
	}
	return err.Error()
}

// nextRunID derives a run identifier from the launch time that is strictly
// greater than the previous one.
func nextRunID(now time.Time, last int64) int64 {
	id := now.UnixMilli()
	if id <= last {
		id = last + 1
	}
	return id
}
