package operations

import (
	"context"
	"log/slog"
)

// runProgress reports job counters onto the active run
type runProgress struct {
	launcher *Launcher
	active   *activeRun
}

func (p *runProgress) SetFiles(files []string) {
	l := p.launcher
	l.mu.Lock()
	p.active.run.Files = append([]string(nil), files...)
	l.mu.Unlock()
}

func (p *runProgress) ChunkCommitted(ctx context.Context, read, written int) {
	l := p.launcher
	l.mu.Lock()
	p.active.run.ReadCount += read
	p.active.run.WriteCount += written
	p.active.run.ChunksCommitted++
	snapshot := p.active.run.Clone()
	if err := l.runs.Save(ctx, snapshot); err != nil {
		l.logger.WarnContext(ctx, "run_progress_not_saved",
			slog.Int64("run_id", snapshot.RunID),
			slog.String("error", err.Error()))
	}
	l.mu.Unlock()

	l.metrics.RecordChunk(ctx, written)
	l.logger.DebugContext(ctx, "chunk_committed",
		slog.Int64("run_id", snapshot.RunID),
		slog.Int("chunk", snapshot.ChunksCommitted),
		slog.Int("records", written),
		slog.Int("write_count", snapshot.WriteCount))
	l.notify(ctx, snapshot)
}
