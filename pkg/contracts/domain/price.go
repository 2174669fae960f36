package domain

import (
	"math"
	"sort"
	"time"
)

// PriceObservation is a single price tick. (Timestamp, Symbol) is the natural key.
type PriceObservation struct {
	Timestamp time.Time `json:"timestamp" validate:"required"`
	Symbol    string    `json:"symbol" validate:"required,max=16"`
	Price     float64   `json:"price" validate:"gt=0"`
}

// NewPriceObservation builds an observation with the timestamp truncated to
// millisecond precision in UTC.
func NewPriceObservation(ts time.Time, symbol string, price float64) PriceObservation {
	return PriceObservation{
		Timestamp: NormalizeInstant(ts),
		Symbol:    symbol,
		Price:     price,
	}
}

// Key returns the natural key of the observation.
func (p PriceObservation) Key() PriceKey {
	return PriceKey{Millis: p.Timestamp.UnixMilli(), Symbol: p.Symbol}
}

// PriceKey identifies an observation by epoch milliseconds and symbol.
type PriceKey struct {
	Millis int64
	Symbol string
}

// NormalizeInstant converts t to UTC with millisecond precision.
func NormalizeInstant(t time.Time) time.Time {
	return time.UnixMilli(t.UnixMilli()).UTC()
}

// FromEpochMillis converts epoch milliseconds into a UTC instant.
func FromEpochMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// NormalizedResult is the relative price spread of a symbol.
type NormalizedResult struct {
	Symbol     string  `json:"symbol"`
	Normalized float64 `json:"normalized"`
}

// RangeStatistics summarizes a symbol over a window. Every field except
// Symbol is zero when the window holds no observations.
type RangeStatistics struct {
	Symbol   string     `json:"symbol"`
	Oldest   *time.Time `json:"oldest,omitempty"`
	Newest   *time.Time `json:"newest,omitempty"`
	MaxPrice float64    `json:"maxPrice,omitempty"`
	MinPrice float64    `json:"minPrice,omitempty"`
}

// Empty reports whether no observation contributed to the statistics.
func (s RangeStatistics) Empty() bool {
	return s.Oldest == nil && s.Newest == nil
}

// Summarize folds observations of a single symbol into RangeStatistics.
func Summarize(symbol string, observations []PriceObservation) RangeStatistics {
	stats := RangeStatistics{Symbol: symbol}
	if len(observations) == 0 {
		return stats
	}

	oldest := observations[0].Timestamp
	newest := observations[0].Timestamp
	minPrice := math.Inf(1)
	maxPrice := math.Inf(-1)

	for _, o := range observations {
		if o.Timestamp.Before(oldest) {
			oldest = o.Timestamp
		}
		if o.Timestamp.After(newest) {
			newest = o.Timestamp
		}
		minPrice = math.Min(minPrice, o.Price)
		maxPrice = math.Max(maxPrice, o.Price)
	}

	stats.Oldest = &oldest
	stats.Newest = &newest
	stats.MinPrice = minPrice
	stats.MaxPrice = maxPrice
	return stats
}

// SymbolSet is an immutable set of symbols.
type SymbolSet struct {
	members map[string]struct{}
}

// NewSymbolSet creates a set from the given symbols. Blank entries are ignored.
func NewSymbolSet(symbols ...string) SymbolSet {
	members := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		if s == "" {
			continue
		}
		members[s] = struct{}{}
	}
	return SymbolSet{members: members}
}

// Contains reports whether symbol is in the set.
func (s SymbolSet) Contains(symbol string) bool {
	_, ok := s.members[symbol]
	return ok
}

// Len returns the number of symbols in the set.
func (s SymbolSet) Len() int {
	return len(s.members)
}

// Slice returns the members in ascending order.
func (s SymbolSet) Slice() []string {
	out := make([]string, 0, len(s.members))
	for m := range s.members {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
