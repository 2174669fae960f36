package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	apperrors "cryptorecs/internal/errors"
	"cryptorecs/internal/files"
	"cryptorecs/internal/store"
	"cryptorecs/pkg/contracts/domain"
)

// ItemReader yields observations one at a time and io.EOF at the end
type ItemReader interface {
	Read(ctx context.Context) (domain.PriceObservation, error)
	Close() error
}

// ItemProcessor transforms an observation between reading and writing
type ItemProcessor interface {
	Process(ctx context.Context, item domain.PriceObservation) (domain.PriceObservation, error)
}

// ItemWriter commits one chunk atomically
type ItemWriter interface {
	Write(ctx context.Context, chunk []domain.PriceObservation) error
}

// FileReader reads every file in order, skipping the configured number of
// leading physical lines in each. Blank lines after them are ignored.
type FileReader struct {
	files     []files.FileInfo
	skip      int
	delimiter rune
	mapper    *Mapper
	logger    *slog.Logger

	current int
	source  recordSource
}

// NewFileReader creates a reader over inputs
func NewFileReader(inputs []files.FileInfo, skip int, delimiter rune, mapper *Mapper, logger *slog.Logger) *FileReader {
	return &FileReader{
		files:     inputs,
		skip:      skip,
		delimiter: delimiter,
		mapper:    mapper,
		logger:    logger,
	}
}

func (r *FileReader) Read(ctx context.Context) (domain.PriceObservation, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.PriceObservation{}, err
		}

		if r.source == nil {
			if r.current >= len(r.files) {
				return domain.PriceObservation{}, io.EOF
			}
			file := r.files[r.current]
			src, err := openSource(file, r.delimiter, r.skip)
			if err != nil {
				return domain.PriceObservation{}, fmt.Errorf("%s: %w", file.Path, err)
			}
			r.source = src
			r.logger.DebugContext(ctx, "file_opened",
				slog.String("file", file.Path),
				slog.String("format", string(file.Format)))
		}

		file := r.files[r.current].Path
		fields, line, err := r.source.Next()
		if errors.Is(err, io.EOF) {
			if err := r.closeSource(); err != nil {
				return domain.PriceObservation{}, err
			}
			r.current++
			continue
		}
		if err != nil {
			return domain.PriceObservation{}, apperrors.NewMalformedRecordError(file, line, "", "unreadable record", err)
		}

		if isBlank(fields) {
			continue
		}

		return r.mapper.Map(file, line, fields)
	}
}

func (r *FileReader) closeSource() error {
	if r.source == nil {
		return nil
	}
	err := r.source.Close()
	r.source = nil
	return err
}

func (r *FileReader) Close() error {
	return r.closeSource()
}

func isBlank(fields []string) bool {
	for _, f := range fields {
		if f != "" {
			return false
		}
	}
	return true
}

// PassThrough is the identity processor
type PassThrough struct{}

func (PassThrough) Process(ctx context.Context, item domain.PriceObservation) (domain.PriceObservation, error) {
	return item, nil
}

// StoreWriter upserts each chunk into the price store
type StoreWriter struct {
	store store.Writer
}

// NewStoreWriter creates a writer backed by s
func NewStoreWriter(s store.Writer) *StoreWriter {
	return &StoreWriter{store: s}
}

func (w *StoreWriter) Write(ctx context.Context, chunk []domain.PriceObservation) error {
	return w.store.Upsert(ctx, chunk)
}
