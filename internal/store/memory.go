package store

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/tidwall/btree"

	"cryptorecs/pkg/contracts/domain"
)

const memoryDegree = 32

var (
	errClosed = errors.New("store is closed")

	// beginningOfTime sorts before any instant an importer can produce
	beginningOfTime = time.UnixMilli(math.MinInt64 / 1000)
)

// MemoryStore keeps observations in two ordered indexes. byTime orders by
// (symbol, timestamp) and backs range scans. byPrice orders by
// (symbol, price, timestamp) and backs min/max lookups.
type MemoryStore struct {
	mu      sync.RWMutex
	byTime  *btree.BTreeG[domain.PriceObservation]
	byPrice *btree.BTreeG[domain.PriceObservation]
	symbols *btree.Map[string, int]
	closed  bool
}

// NewMemoryStore creates an empty in-process store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byTime:  btree.NewBTreeG(lessByTime),
		byPrice: btree.NewBTreeG(lessByPrice),
		symbols: btree.NewMap[string, int](memoryDegree),
	}
}

func lessByTime(a, b domain.PriceObservation) bool {
	if a.Symbol != b.Symbol {
		return a.Symbol < b.Symbol
	}
	return a.Timestamp.UnixMilli() < b.Timestamp.UnixMilli()
}

func lessByPrice(a, b domain.PriceObservation) bool {
	if a.Symbol != b.Symbol {
		return a.Symbol < b.Symbol
	}
	if a.Price != b.Price {
		return a.Price < b.Price
	}
	return a.Timestamp.UnixMilli() < b.Timestamp.UnixMilli()
}

// Upsert applies the whole batch or none of it
func (s *MemoryStore) Upsert(ctx context.Context, batch []domain.PriceObservation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, o := range batch {
		if err := validate(o); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	// the caller may have given up while the lock was contended
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, o := range dedupe(batch) {
		if prev, replaced := s.byTime.Set(o); replaced {
			s.byPrice.Delete(prev)
		} else {
			n, _ := s.symbols.Get(o.Symbol)
			s.symbols.Set(o.Symbol, n+1)
		}
		s.byPrice.Set(o)
	}
	return nil
}

func (s *MemoryStore) ListSymbols(ctx context.Context, excluding domain.SymbolSet) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}

	out := make([]string, 0, s.symbols.Len())
	s.symbols.Scan(func(symbol string, _ int) bool {
		if !excluding.Contains(symbol) {
			out = append(out, symbol)
		}
		return true
	})
	return out, nil
}

func (s *MemoryStore) MinPrice(ctx context.Context, symbol string) (domain.PriceObservation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return domain.PriceObservation{}, false, errClosed
	}
	return s.firstAtOrAbove(symbol, math.Inf(-1))
}

func (s *MemoryStore) MaxPrice(ctx context.Context, symbol string) (domain.PriceObservation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return domain.PriceObservation{}, false, errClosed
	}

	var top domain.PriceObservation
	found := false
	s.byPrice.Descend(domain.PriceObservation{Symbol: symbol, Price: math.Inf(1)}, func(o domain.PriceObservation) bool {
		top, found = o, o.Symbol == symbol
		return false
	})
	if !found {
		return domain.PriceObservation{}, false, nil
	}
	// rewind to the earliest observation at the top price
	return s.firstAtOrAbove(symbol, top.Price)
}

// firstAtOrAbove returns the earliest observation of symbol with the lowest
// price that is not below floor. Callers hold the read lock.
func (s *MemoryStore) firstAtOrAbove(symbol string, floor float64) (domain.PriceObservation, bool, error) {
	var hit domain.PriceObservation
	found := false
	pivot := domain.PriceObservation{Symbol: symbol, Price: floor, Timestamp: beginningOfTime}
	s.byPrice.Ascend(pivot, func(o domain.PriceObservation) bool {
		hit, found = o, o.Symbol == symbol
		return false
	})
	if !found {
		return domain.PriceObservation{}, false, nil
	}
	return hit, true, nil
}

func (s *MemoryStore) Find(ctx context.Context, q Query) ([]domain.PriceObservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}

	var out []domain.PriceObservation
	if q.Symbol == "" {
		s.byTime.Scan(func(o domain.PriceObservation) bool {
			if q.matches(o) {
				out = append(out, o)
			}
			return true
		})
		return out, nil
	}

	if q.Excluding.Contains(q.Symbol) {
		return out, nil
	}
	to := q.toMillis()
	pivot := domain.PriceObservation{Symbol: q.Symbol, Timestamp: beginningOfTime}
	if !q.From.IsZero() {
		pivot.Timestamp = q.From
	}
	s.byTime.Ascend(pivot, func(o domain.PriceObservation) bool {
		if o.Symbol != q.Symbol || o.Timestamp.UnixMilli() > to {
			return false
		}
		out = append(out, o)
		return true
	})
	return out, nil
}

// Len returns the number of stored observations
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byTime.Len()
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errClosed
	}
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
