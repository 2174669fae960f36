package store

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	apperrors "cryptorecs/internal/errors"
	"cryptorecs/internal/infrastructure"
	"cryptorecs/pkg/contracts/domain"
)

// Guarded bounds every call of the wrapped store by a timeout and reports
// any failure as StoreUnavailable. Reads that outlive the timeout are
// abandoned; the wrapped store sees a cancelled context. Writes are awaited
// after the timeout so the reported outcome is the one the store applied.
type Guarded struct {
	next    Store
	timeout time.Duration
	tracer  trace.Tracer
	metrics *infrastructure.BusinessMetrics
}

// GuardOption configures a Guarded store
type GuardOption func(*Guarded)

// WithTracer records a span per store call
func WithTracer(tracer trace.Tracer) GuardOption {
	return func(g *Guarded) {
		if tracer != nil {
			g.tracer = tracer
		}
	}
}

// WithMetrics records call duration and errors
func WithMetrics(metrics *infrastructure.BusinessMetrics) GuardOption {
	return func(g *Guarded) {
		if metrics != nil {
			g.metrics = metrics
		}
	}
}

// NewGuarded wraps next
func NewGuarded(next Store, timeout time.Duration, opts ...GuardOption) *Guarded {
	g := &Guarded{
		next:    next,
		timeout: timeout,
		tracer:  noop.NewTracerProvider().Tracer("store"),
		metrics: infrastructure.NoopBusinessMetrics(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type outcome[T any] struct {
	value T
	err   error
}

// call runs fn under the guard timeout. With settle set, a timed out call is
// waited for instead of abandoned.
func call[T any](ctx context.Context, g *Guarded, op string, settle bool, fn func(context.Context) (T, error), attrs ...attribute.KeyValue) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	ctx, span := g.tracer.Start(ctx, "store."+op, trace.WithAttributes(attrs...))
	defer span.End()

	start := time.Now()
	done := make(chan outcome[T], 1)
	go func() {
		v, err := fn(ctx)
		done <- outcome[T]{value: v, err: err}
	}()

	var res outcome[T]
	select {
	case res = <-done:
	case <-ctx.Done():
		if settle {
			res = <-done
			break
		}
		res.err = ctx.Err()
	}

	if res.err != nil && !apperrors.IsType(res.err, apperrors.ErrTypeStoreUnavailable) {
		res.err = apperrors.NewStoreUnavailableError(op, res.err)
	}
	infrastructure.RecordError(ctx, res.err)
	g.metrics.RecordStoreCall(ctx, op, time.Since(start), res.err)

	if res.err != nil {
		var zero T
		return zero, res.err
	}
	return res.value, nil
}

func (g *Guarded) Upsert(ctx context.Context, batch []domain.PriceObservation) error {
	_, err := call(ctx, g, "upsert", true, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, g.next.Upsert(ctx, batch)
	}, attribute.Int("batch.size", len(batch)))
	return err
}

func (g *Guarded) ListSymbols(ctx context.Context, excluding domain.SymbolSet) ([]string, error) {
	return call(ctx, g, "list_symbols", false, func(ctx context.Context) ([]string, error) {
		return g.next.ListSymbols(ctx, excluding)
	})
}

type lookup struct {
	obs domain.PriceObservation
	ok  bool
}

func (g *Guarded) MinPrice(ctx context.Context, symbol string) (domain.PriceObservation, bool, error) {
	res, err := call(ctx, g, "min_price", false, func(ctx context.Context) (lookup, error) {
		obs, ok, err := g.next.MinPrice(ctx, symbol)
		return lookup{obs, ok}, err
	}, attribute.String("symbol", symbol))
	return res.obs, res.ok, err
}

func (g *Guarded) MaxPrice(ctx context.Context, symbol string) (domain.PriceObservation, bool, error) {
	res, err := call(ctx, g, "max_price", false, func(ctx context.Context) (lookup, error) {
		obs, ok, err := g.next.MaxPrice(ctx, symbol)
		return lookup{obs, ok}, err
	}, attribute.String("symbol", symbol))
	return res.obs, res.ok, err
}

func (g *Guarded) Find(ctx context.Context, q Query) ([]domain.PriceObservation, error) {
	return call(ctx, g, "find", false, func(ctx context.Context) ([]domain.PriceObservation, error) {
		return g.next.Find(ctx, q)
	}, attribute.String("symbol", q.Symbol))
}

func (g *Guarded) Ping(ctx context.Context) error {
	_, err := call(ctx, g, "ping", false, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, g.next.Ping(ctx)
	})
	return err
}

func (g *Guarded) Close() error {
	return g.next.Close()
}
