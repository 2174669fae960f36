package store

import (
	"context"
	"fmt"
	"math"
	"time"

	"cryptorecs/pkg/contracts/domain"
)

// Reader is the read side of the price store used by the analytics engine
type Reader interface {
	// ListSymbols returns distinct symbols in ascending order, minus excluding.
	ListSymbols(ctx context.Context, excluding domain.SymbolSet) ([]string, error)
	// MinPrice returns the cheapest observation of symbol. Ties go to the
	// earliest timestamp. The bool is false when symbol has no observations.
	MinPrice(ctx context.Context, symbol string) (domain.PriceObservation, bool, error)
	// MaxPrice is MinPrice for the most expensive observation.
	MaxPrice(ctx context.Context, symbol string) (domain.PriceObservation, bool, error)
	// Find returns observations matching q ordered by symbol, then timestamp.
	Find(ctx context.Context, q Query) ([]domain.PriceObservation, error)
}

// Writer is the write side of the price store used by the importer
type Writer interface {
	// Upsert writes batch atomically. A later observation with the same
	// (timestamp, symbol) replaces an earlier one, inside the batch too.
	Upsert(ctx context.Context, batch []domain.PriceObservation) error
}

// Store is the complete price store
type Store interface {
	Reader
	Writer
	Ping(ctx context.Context) error
	Close() error
}

// Query filters a Find call. Zero values mean unbounded. From and To are
// inclusive and compared at millisecond precision.
type Query struct {
	Symbol    string
	From      time.Time
	To        time.Time
	Excluding domain.SymbolSet
}

func (q Query) fromMillis() int64 {
	if q.From.IsZero() {
		return math.MinInt64
	}
	return q.From.UnixMilli()
}

func (q Query) toMillis() int64 {
	if q.To.IsZero() {
		return math.MaxInt64
	}
	return q.To.UnixMilli()
}

func (q Query) matches(o domain.PriceObservation) bool {
	if q.Symbol != "" && o.Symbol != q.Symbol {
		return false
	}
	if q.Excluding.Contains(o.Symbol) {
		return false
	}
	ms := o.Timestamp.UnixMilli()
	return ms >= q.fromMillis() && ms <= q.toMillis()
}

// validate rejects observations that can never be stored
func validate(o domain.PriceObservation) error {
	if o.Symbol == "" {
		return fmt.Errorf("observation at %d has an empty symbol", o.Timestamp.UnixMilli())
	}
	if math.IsNaN(o.Price) || math.IsInf(o.Price, 0) {
		return fmt.Errorf("observation %s@%d has a non-finite price", o.Symbol, o.Timestamp.UnixMilli())
	}
	return nil
}

// dedupe keeps the last occurrence of every natural key, preserving the
// order of first appearance.
func dedupe(batch []domain.PriceObservation) []domain.PriceObservation {
	index := make(map[domain.PriceKey]int, len(batch))
	out := make([]domain.PriceObservation, 0, len(batch))
	for _, o := range batch {
		o = domain.NewPriceObservation(o.Timestamp, o.Symbol, o.Price)
		if i, ok := index[o.Key()]; ok {
			out[i] = o
			continue
		}
		index[o.Key()] = len(out)
		out = append(out, o)
	}
	return out
}
