package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPriceObservation_TruncatesToMillis(t *testing.T) {
	ts := time.Date(2022, 1, 1, 4, 0, 0, 123456789, time.FixedZone("CET", 3600))
	obs := NewPriceObservation(ts, "BTC", 46813.21)

	assert.Equal(t, time.UTC, obs.Timestamp.Location())
	assert.Equal(t, 123000000, obs.Timestamp.Nanosecond())
	assert.Equal(t, ts.UnixMilli(), obs.Timestamp.UnixMilli())
	assert.Equal(t, PriceKey{Millis: ts.UnixMilli(), Symbol: "BTC"}, obs.Key())
}

func TestSummarize(t *testing.T) {
	t1 := FromEpochMillis(1641009600000)
	t2 := FromEpochMillis(1641020400000)
	t3 := FromEpochMillis(1641031200000)

	tests := []struct {
		name         string
		observations []PriceObservation
		wantEmpty    bool
		wantMin      float64
		wantMax      float64
		wantOldest   time.Time
		wantNewest   time.Time
	}{
		{
			name:      "no observations",
			wantEmpty: true,
		},
		{
			name: "unordered observations",
			observations: []PriceObservation{
				{Timestamp: t2, Symbol: "AAA", Price: 20},
				{Timestamp: t3, Symbol: "AAA", Price: 5},
				{Timestamp: t1, Symbol: "AAA", Price: 10},
			},
			wantMin:    5,
			wantMax:    20,
			wantOldest: t1,
			wantNewest: t3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats := Summarize("AAA", tt.observations)
			assert.Equal(t, "AAA", stats.Symbol)
			assert.Equal(t, tt.wantEmpty, stats.Empty())
			if tt.wantEmpty {
				assert.Zero(t, stats.MinPrice)
				assert.Zero(t, stats.MaxPrice)
				return
			}
			require.NotNil(t, stats.Oldest)
			require.NotNil(t, stats.Newest)
			assert.Equal(t, tt.wantOldest, *stats.Oldest)
			assert.Equal(t, tt.wantNewest, *stats.Newest)
			assert.Equal(t, tt.wantMin, stats.MinPrice)
			assert.Equal(t, tt.wantMax, stats.MaxPrice)
		})
	}
}

func TestSymbolSet(t *testing.T) {
	set := NewSymbolSet("XXX", "", "DOGE", "XXX")

	assert.Equal(t, 2, set.Len())
	assert.True(t, set.Contains("XXX"))
	assert.False(t, set.Contains("xxx"))
	assert.Equal(t, []string{"DOGE", "XXX"}, set.Slice())

	var zero SymbolSet
	assert.False(t, zero.Contains("BTC"))
	assert.Empty(t, zero.Slice())
}

func TestRunClone(t *testing.T) {
	started := time.Now()
	run := Run{RunID: 1, Files: []string{"a.csv"}, StartedAt: &started, Error: &RunError{Kind: "X"}}

	clone := run.Clone()
	clone.Files[0] = "b.csv"
	clone.Error.Kind = "Y"

	assert.Equal(t, "a.csv", run.Files[0])
	assert.Equal(t, "X", run.Error.Kind)
	assert.NotSame(t, run.StartedAt, clone.StartedAt)
}
