// Package operations runs import jobs and tracks their outcome.
//
// A Launcher owns a single run slot. Launch moves it from idle to running
// and starts the job in its own goroutine; a second Launch while a run is
// active fails with RunAlreadyInProgress instead of queueing. When the job
// returns, the run is recorded as completed or failed, with the error kind
// and message of the failure, and the slot is free again.
//
// Every run has a RunID derived from its launch time, strictly increasing
// across runs, and an ordinal InstanceID. Runs are kept in a RunStore and
// every transition is published to the registered RunObservers.
//
// Example usage:
//
//	launcher := operations.NewLauncher(logger, operations.WithObserver(hub))
//	run, err := launcher.Launch(ctx, job)
//	if apperrors.IsType(err, apperrors.ErrTypeRunInProgress) {
//	    // reject the trigger
//	}
//	latest, err := launcher.LastRun(ctx)
package operations
