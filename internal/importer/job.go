package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"unicode/utf8"

	"cryptorecs/internal/config"
	"cryptorecs/internal/files"
	"cryptorecs/internal/operations"
	"cryptorecs/pkg/contracts/domain"
)

// JobName is recorded on every import run
const JobName = "cryptoPriceImport"

// Job reads the configured input files and commits them to the store in
// fixed-size chunks. A chunk that cannot be read or written fails the run;
// chunks committed before it stay in the store.
type Job struct {
	cfg       config.InputConfig
	discovery *files.Discovery
	mapper    *Mapper
	processor ItemProcessor
	writer    ItemWriter
	logger    *slog.Logger
}

// JobOption configures a Job
type JobOption func(*Job)

// WithProcessor replaces the identity processor
func WithProcessor(p ItemProcessor) JobOption {
	return func(j *Job) {
		j.processor = p
	}
}

// NewJob validates cfg and builds an import job writing through writer
func NewJob(cfg config.InputConfig, writer ItemWriter, logger *slog.Logger, opts ...JobOption) (*Job, error) {
	if writer == nil {
		return nil, fmt.Errorf("import job: writer is nil")
	}
	if cfg.ChunkSize < 1 {
		return nil, fmt.Errorf("import job: chunk size must be positive, got %d", cfg.ChunkSize)
	}
	if utf8.RuneCountInString(cfg.Delimiter) != 1 {
		return nil, fmt.Errorf("import job: delimiter must be a single character, got %q", cfg.Delimiter)
	}
	mapper, err := NewMapper(cfg.Columns)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	j := &Job{
		cfg:       cfg,
		discovery: files.NewDiscovery(""),
		mapper:    mapper,
		processor: PassThrough{},
		writer:    writer,
		logger:    logger.With(slog.String("component", "importer")),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

func (j *Job) Name() string {
	return JobName
}

// Execute implements operations.Job
func (j *Job) Execute(ctx context.Context, progress operations.ProgressReporter) error {
	inputs, err := j.discovery.Resolve(j.cfg.SourceDir, j.cfg.Pattern)
	if err != nil {
		return err
	}
	progress.SetFiles(files.Paths(inputs))

	delimiter, _ := utf8.DecodeRuneInString(j.cfg.Delimiter)
	reader := NewFileReader(inputs, j.cfg.LinesToSkip, delimiter, j.mapper, j.logger)
	defer reader.Close()

	j.logger.InfoContext(ctx, "import_started",
		slog.Int("files", len(inputs)),
		slog.Int("chunk_size", j.cfg.ChunkSize))

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunk := make([]domain.PriceObservation, 0, j.cfg.ChunkSize)
		eof, err := j.fill(ctx, reader, &chunk)
		if err != nil {
			return err
		}
		if len(chunk) > 0 {
			if err := j.writer.Write(ctx, chunk); err != nil {
				return fmt.Errorf("write chunk: %w", err)
			}
			progress.ChunkCommitted(ctx, len(chunk), len(chunk))
		}
		if eof {
			return nil
		}
	}
}

// fill reads up to ChunkSize processed items into chunk
func (j *Job) fill(ctx context.Context, reader ItemReader, chunk *[]domain.PriceObservation) (eof bool, err error) {
	for len(*chunk) < j.cfg.ChunkSize {
		item, err := reader.Read(ctx)
		if errors.Is(err, io.EOF) {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		item, err = j.processor.Process(ctx, item)
		if err != nil {
			return false, err
		}
		*chunk = append(*chunk, item)
	}
	return false, nil
}
