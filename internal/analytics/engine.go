package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	apperrors "cryptorecs/internal/errors"
	"cryptorecs/internal/infrastructure"
	"cryptorecs/internal/store"
	"cryptorecs/pkg/contracts/domain"
)

// DefaultConcurrency bounds the per-symbol fan-out
const DefaultConcurrency = 4

// SortDirection orders NormalizedAll results
type SortDirection string

const (
	SortAsc  SortDirection = "ASC"
	SortDesc SortDirection = "DESC"
)

// ParseSortDirection accepts ASC or DESC in any case. Empty means DESC.
func ParseSortDirection(s string) (SortDirection, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", string(SortDesc):
		return SortDesc, nil
	case string(SortAsc):
		return SortAsc, nil
	default:
		return "", apperrors.NewAppValidationError(fmt.Sprintf("sort must be ASC or DESC, got %q", s))
	}
}

// Engine computes read-only views over the price store. Disabled symbols
// never take part in any result.
type Engine struct {
	reader      store.Reader
	disabled    domain.SymbolSet
	concurrency int
	logger      *slog.Logger
	metrics     *infrastructure.BusinessMetrics
	tracer      trace.Tracer
}

// Option configures an Engine
type Option func(*Engine)

// WithConcurrency bounds how many symbols are computed at once
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithLogger sets the engine logger
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics records operation durations and skipped symbols
func WithMetrics(m *infrastructure.BusinessMetrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithTracer records a span per operation
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// NewEngine creates an engine reading from reader
func NewEngine(reader store.Reader, disabled domain.SymbolSet, opts ...Option) *Engine {
	e := &Engine{
		reader:      reader,
		disabled:    disabled,
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
		metrics:     infrastructure.NoopBusinessMetrics(),
		tracer:      noop.NewTracerProvider().Tracer("analytics"),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(slog.String("component", "analytics"))
	return e
}

// ListAll returns every observation of symbol, or of all allowed symbols
// when symbol is empty.
func (e *Engine) ListAll(ctx context.Context, symbol string) (out []domain.PriceObservation, err error) {
	ctx, done := e.observe(ctx, "list_all", attribute.String("symbol", symbol))
	defer func() { done(err) }()

	if symbol != "" && e.disabled.Contains(symbol) {
		return []domain.PriceObservation{}, nil
	}
	out, err = e.reader.Find(ctx, store.Query{Symbol: symbol, Excluding: e.disabled})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.PriceObservation{}
	}
	return out, nil
}

// NormalizedAll computes the whole-history spread of every allowed symbol
// from its cheapest and most expensive observation. Symbols whose spread is
// undefined are skipped. Ties keep ascending symbol order.
func (e *Engine) NormalizedAll(ctx context.Context, dir SortDirection) (out []domain.NormalizedResult, err error) {
	ctx, done := e.observe(ctx, "normalized_all", attribute.String("sort", string(dir)))
	defer func() { done(err) }()

	symbols, err := e.reader.ListSymbols(ctx, e.disabled)
	if err != nil {
		return nil, err
	}

	slots := make([]*domain.NormalizedResult, len(symbols))
	err = e.fanOut(ctx, len(symbols), func(ctx context.Context, i int) error {
		symbol := symbols[i]
		minObs, ok, err := e.reader.MinPrice(ctx, symbol)
		if err != nil || !ok {
			return err
		}
		maxObs, ok, err := e.reader.MaxPrice(ctx, symbol)
		if err != nil || !ok {
			return err
		}
		slots[i] = e.normalized(ctx, symbol, minObs.Price, maxObs.Price)
		return nil
	})
	if err != nil {
		return nil, err
	}

	out = collect(slots)
	sort.SliceStable(out, func(i, j int) bool {
		if dir == SortAsc {
			return out[i].Normalized < out[j].Normalized
		}
		return out[i].Normalized > out[j].Normalized
	})
	return out, nil
}

// HighestNormalizedForDay returns the symbol with the largest spread over
// the UTC day of day. The first symbol wins a tie. The bool is false when no
// allowed symbol has an observation that day.
func (e *Engine) HighestNormalizedForDay(ctx context.Context, day time.Time) (best domain.NormalizedResult, found bool, err error) {
	window := DayWindow(day)
	ctx, done := e.observe(ctx, "highest_normalized_for_day", attribute.String("day", window.From.Format(time.DateOnly)))
	defer func() { done(err) }()

	symbols, err := e.reader.ListSymbols(ctx, e.disabled)
	if err != nil {
		return domain.NormalizedResult{}, false, err
	}

	slots := make([]*domain.NormalizedResult, len(symbols))
	err = e.fanOut(ctx, len(symbols), func(ctx context.Context, i int) error {
		obs, err := e.reader.Find(ctx, store.Query{Symbol: symbols[i], From: window.From, To: window.To})
		if err != nil || len(obs) == 0 {
			return err
		}
		stats := domain.Summarize(symbols[i], obs)
		slots[i] = e.normalized(ctx, symbols[i], stats.MinPrice, stats.MaxPrice)
		return nil
	})
	if err != nil {
		return domain.NormalizedResult{}, false, err
	}

	for _, r := range collect(slots) {
		if !found || r.Normalized > best.Normalized {
			best, found = r, true
		}
	}
	return best, found, nil
}

// Statistics summarizes symbol, or every allowed symbol when symbol is
// empty. With a month anchor only observations in MonthWindow(anchor) count.
func (e *Engine) Statistics(ctx context.Context, symbol string, monthAnchor *time.Time) (out []domain.RangeStatistics, err error) {
	window := Unbounded
	attrs := []attribute.KeyValue{attribute.String("symbol", symbol)}
	if monthAnchor != nil {
		window = MonthWindow(*monthAnchor)
		attrs = append(attrs, attribute.String("month", window.From.Format("2006-01")))
	}
	ctx, done := e.observe(ctx, "statistics", attrs...)
	defer func() { done(err) }()

	return e.statistics(ctx, symbol, window)
}

// StatisticsForRange summarizes over the inclusive range [from, to]
func (e *Engine) StatisticsForRange(ctx context.Context, symbol string, from, to time.Time) (out []domain.RangeStatistics, err error) {
	ctx, done := e.observe(ctx, "statistics_for_range", attribute.String("symbol", symbol))
	defer func() { done(err) }()

	if from.After(to) {
		return nil, apperrors.NewAppValidationError(fmt.Sprintf("from %s is after to %s",
			from.UTC().Format(time.DateTime), to.UTC().Format(time.DateTime)))
	}
	return e.statistics(ctx, symbol, RangeWindow(from, to))
}

func (e *Engine) statistics(ctx context.Context, symbol string, window Window) ([]domain.RangeStatistics, error) {
	var symbols []string
	switch {
	case symbol == "":
		var err error
		if symbols, err = e.reader.ListSymbols(ctx, e.disabled); err != nil {
			return nil, err
		}
	case e.disabled.Contains(symbol):
		return []domain.RangeStatistics{{Symbol: symbol}}, nil
	default:
		symbols = []string{symbol}
	}

	out := make([]domain.RangeStatistics, len(symbols))
	err := e.fanOut(ctx, len(symbols), func(ctx context.Context, i int) error {
		obs, err := e.reader.Find(ctx, store.Query{Symbol: symbols[i], From: window.From, To: window.To})
		if err != nil {
			return err
		}
		out[i] = domain.Summarize(symbols[i], obs)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// normalized applies the skip policy for undefined spreads
func (e *Engine) normalized(ctx context.Context, symbol string, minPrice, maxPrice float64) *domain.NormalizedResult {
	n, err := Normalize(minPrice, maxPrice)
	if err != nil {
		e.logger.WarnContext(ctx, "symbol_skipped",
			slog.String("symbol", symbol),
			slog.Float64("min_price", minPrice),
			slog.Float64("max_price", maxPrice),
			slog.String("reason", err.Error()))
		e.metrics.AnalyticsSymbolsSkipped.Add(ctx, 1)
		return nil
	}
	return &domain.NormalizedResult{Symbol: symbol, Normalized: n}
}

// fanOut calls fn for every index with at most e.concurrency in flight. The
// first error cancels the rest.
func (e *Engine) fanOut(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			return fn(ctx, i)
		})
	}
	return g.Wait()
}

func (e *Engine) observe(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := e.tracer.Start(ctx, "analytics."+op, trace.WithAttributes(attrs...))
	start := time.Now()
	return ctx, func(err error) {
		infrastructure.RecordError(ctx, err)
		e.metrics.RecordAnalytics(ctx, op, time.Since(start), err)
		span.End()
	}
}

func collect(slots []*domain.NormalizedResult) []domain.NormalizedResult {
	out := make([]domain.NormalizedResult, 0, len(slots))
	for _, s := range slots {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out
}
