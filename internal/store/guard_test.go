package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptorecs/internal/config"
	apperrors "cryptorecs/internal/errors"
	"cryptorecs/internal/shared/testutil"
	"cryptorecs/pkg/contracts/domain"
)

// stuckStore ignores cancellation so the guard has to abandon it
type stuckStore struct {
	*MemoryStore
	release chan struct{}
}

func (s *stuckStore) ListSymbols(ctx context.Context, excluding domain.SymbolSet) ([]string, error) {
	<-s.release
	return nil, nil
}

type failingStore struct {
	*MemoryStore
}

func (failingStore) Find(ctx context.Context, q Query) ([]domain.PriceObservation, error) {
	return nil, errors.New("connection refused")
}

func TestGuarded_TimeoutBecomesStoreUnavailable(t *testing.T) {
	stuck := &stuckStore{MemoryStore: NewMemoryStore(), release: make(chan struct{})}
	defer close(stuck.release)
	g := NewGuarded(stuck, 20*time.Millisecond)

	start := time.Now()
	_, err := g.ListSymbols(context.Background(), domain.SymbolSet{})

	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeStoreUnavailable))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestGuarded_WrapsBackendErrors(t *testing.T) {
	g := NewGuarded(failingStore{NewMemoryStore()}, time.Second)

	_, err := g.Find(context.Background(), Query{Symbol: "BTC"})

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestGuarded_PassesResultsThrough(t *testing.T) {
	g := NewGuarded(NewMemoryStore(), time.Second)
	ctx := context.Background()

	require.NoError(t, g.Upsert(ctx, []domain.PriceObservation{
		testutil.Obs("BTC", 0, 10),
		testutil.Obs("BTC", time.Hour, 30),
	}))

	maxObs, ok, err := g.MaxPrice(ctx, "BTC")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 30.0, maxObs.Price)

	_, ok, err = g.MinPrice(ctx, "ETH")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, g.Ping(ctx))
	assert.NoError(t, g.Close())
}

func TestOpen(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.StorageConfig
		wantErr bool
	}{
		{name: "memory", cfg: config.StorageConfig{Driver: "memory", QueryTimeout: time.Second}},
		{name: "sqlite", cfg: config.StorageConfig{Driver: "sqlite", DSN: "file::memory:", QueryTimeout: time.Second}},
		{name: "unknown", cfg: config.StorageConfig{Driver: "mongo"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := testutil.NewTestLogger(t)
			s, err := Open(tt.cfg, logger)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer s.Close()
			assert.NoError(t, s.Ping(context.Background()))
		})
	}
}

// lateStore commits every write after the caller's deadline has passed
type lateStore struct {
	*MemoryStore
	delay time.Duration
}

func (s *lateStore) Upsert(ctx context.Context, batch []domain.PriceObservation) error {
	<-ctx.Done()
	time.Sleep(s.delay)
	return s.MemoryStore.Upsert(context.WithoutCancel(ctx), batch)
}

func TestGuarded_UpsertOutcomeMatchesStore(t *testing.T) {
	batch := []domain.PriceObservation{testutil.Obs("BTC", 0, 1)}

	t.Run("write queued behind a reader is not applied", func(t *testing.T) {
		mem := NewMemoryStore()
		mem.mu.RLock()
		released := make(chan struct{})
		go func() {
			time.Sleep(80 * time.Millisecond)
			mem.mu.RUnlock()
			close(released)
		}()

		err := NewGuarded(mem, 20*time.Millisecond).Upsert(context.Background(), batch)
		<-released

		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeStoreUnavailable))
		assert.Zero(t, mem.Len())
	})

	t.Run("write committed after the deadline is reported as committed", func(t *testing.T) {
		late := &lateStore{MemoryStore: NewMemoryStore(), delay: 20 * time.Millisecond}

		err := NewGuarded(late, 20*time.Millisecond).Upsert(context.Background(), batch)

		assert.NoError(t, err)
		assert.Equal(t, 1, late.Len())
	})
}

func TestGuarded_ReadsAreAbandonedAtDeadline(t *testing.T) {
	mem := NewMemoryStore()
	require.NoError(t, mem.Upsert(context.Background(), []domain.PriceObservation{testutil.Obs("BTC", 0, 1)}))
	mem.mu.Lock()
	defer mem.mu.Unlock()

	start := time.Now()
	_, err := NewGuarded(mem, 20*time.Millisecond).Find(context.Background(), Query{Symbol: "BTC"})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
