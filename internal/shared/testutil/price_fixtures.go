package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cryptorecs/pkg/contracts/domain"
)

// BaseMillis is 2022-01-01T00:00:00Z in epoch milliseconds
const BaseMillis int64 = 1640995200000

// Obs builds an observation at BaseMillis plus the given offset
func Obs(symbol string, offset time.Duration, price float64) domain.PriceObservation {
	return domain.NewPriceObservation(domain.FromEpochMillis(BaseMillis).Add(offset), symbol, price)
}

// At builds an observation at an absolute instant
func At(symbol string, ts time.Time, price float64) domain.PriceObservation {
	return domain.NewPriceObservation(ts, symbol, price)
}

// WriteFile writes content into dir/name and returns the full path
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture %s: %v", path, err)
	}
	return path
}

// PriceCSV renders observations in the default timestamp,symbol,price layout
// with a header line.
func PriceCSV(observations ...domain.PriceObservation) string {
	var b strings.Builder
	b.WriteString("timestamp,symbol,price\n")
	for _, o := range observations {
		fmt.Fprintf(&b, "%d,%s,%g\n", o.Timestamp.UnixMilli(), o.Symbol, o.Price)
	}
	return b.String()
}

// SequentialCSV renders n rows of symbol one hour apart starting at BaseMillis.
// Prices run from 1 to n.
func SequentialCSV(symbol string, n int) string {
	obs := make([]domain.PriceObservation, 0, n)
	for i := 0; i < n; i++ {
		obs = append(obs, Obs(symbol, time.Duration(i)*time.Hour, float64(i+1)))
	}
	return PriceCSV(obs...)
}
