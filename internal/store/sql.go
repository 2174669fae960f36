package store

import (
	"context"
	"fmt"
	"log/slog"

	sloggorm "github.com/orandin/slog-gorm"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cryptorecs/pkg/contracts/domain"
)

const insertBatchSize = 500

// priceRow is the persisted form of a PriceObservation. Timestamps are kept
// as epoch milliseconds so both dialects compare them identically.
type priceRow struct {
	Timestamp int64   `gorm:"column:ts;primaryKey;autoIncrement:false;index:idx_crypto_price_symbol_ts,priority:2"`
	Symbol    string  `gorm:"column:symbol;primaryKey;size:32;index:idx_crypto_price_symbol_price,priority:1;index:idx_crypto_price_symbol_ts,priority:1"`
	Price     float64 `gorm:"column:price;not null;index:idx_crypto_price_symbol_price,priority:2"`
}

func (priceRow) TableName() string {
	return "crypto_price"
}

func toRow(o domain.PriceObservation) priceRow {
	return priceRow{Timestamp: o.Timestamp.UnixMilli(), Symbol: o.Symbol, Price: o.Price}
}

func (r priceRow) observation() domain.PriceObservation {
	return domain.PriceObservation{Timestamp: domain.FromEpochMillis(r.Timestamp), Symbol: r.Symbol, Price: r.Price}
}

// SQLStore persists observations through gorm on SQLite or PostgreSQL
type SQLStore struct {
	db *gorm.DB
}

// SQLOptions configures OpenSQL
type SQLOptions struct {
	Driver     string
	DSN        string
	LogQueries bool
	Logger     *slog.Logger
}

// OpenSQL connects to the database and migrates the crypto_price table
func OpenSQL(opts SQLOptions) (*SQLStore, error) {
	var dialector gorm.Dialector
	switch opts.Driver {
	case "sqlite":
		dialector = sqlite.Open(opts.DSN)
	case "postgres":
		dialector = postgres.Open(opts.DSN)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", opts.Driver)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gormOpts := []sloggorm.Option{sloggorm.WithHandler(logger.With(slog.String("component", "gorm")).Handler())}
	if opts.LogQueries {
		gormOpts = append(gormOpts, sloggorm.WithTraceAll())
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 sloggorm.New(gormOpts...),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", opts.Driver, err)
	}

	if opts.Driver == "sqlite" {
		// sqlite allows a single writer; ":memory:" is also per connection
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&priceRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate crypto_price: %w", err)
	}

	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Upsert(ctx context.Context, batch []domain.PriceObservation) error {
	if len(batch) == 0 {
		return ctx.Err()
	}
	for _, o := range batch {
		if err := validate(o); err != nil {
			return err
		}
	}

	unique := dedupe(batch)
	rows := make([]priceRow, len(unique))
	for i, o := range unique {
		rows[i] = toRow(o)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "ts"}, {Name: "symbol"}},
			DoUpdates: clause.AssignmentColumns([]string{"price"}),
		}).CreateInBatches(rows, insertBatchSize).Error
	})
}

func (s *SQLStore) ListSymbols(ctx context.Context, excluding domain.SymbolSet) ([]string, error) {
	q := s.db.WithContext(ctx).Model(&priceRow{}).Distinct().Order("symbol ASC")
	if excluding.Len() > 0 {
		q = q.Where("symbol NOT IN ?", excluding.Slice())
	}

	symbols := []string{}
	if err := q.Pluck("symbol", &symbols).Error; err != nil {
		return nil, err
	}
	return symbols, nil
}

func (s *SQLStore) MinPrice(ctx context.Context, symbol string) (domain.PriceObservation, bool, error) {
	return s.extreme(ctx, symbol, "price ASC")
}

func (s *SQLStore) MaxPrice(ctx context.Context, symbol string) (domain.PriceObservation, bool, error) {
	return s.extreme(ctx, symbol, "price DESC")
}

func (s *SQLStore) extreme(ctx context.Context, symbol, order string) (domain.PriceObservation, bool, error) {
	var rows []priceRow
	err := s.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order(order).
		Order("ts ASC").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return domain.PriceObservation{}, false, err
	}
	if len(rows) == 0 {
		return domain.PriceObservation{}, false, nil
	}
	return rows[0].observation(), true, nil
}

func (s *SQLStore) Find(ctx context.Context, q Query) ([]domain.PriceObservation, error) {
	tx := s.db.WithContext(ctx).Model(&priceRow{})
	if q.Symbol != "" {
		tx = tx.Where("symbol = ?", q.Symbol)
	}
	if q.Excluding.Len() > 0 {
		tx = tx.Where("symbol NOT IN ?", q.Excluding.Slice())
	}
	if !q.From.IsZero() {
		tx = tx.Where("ts >= ?", q.From.UnixMilli())
	}
	if !q.To.IsZero() {
		tx = tx.Where("ts <= ?", q.To.UnixMilli())
	}

	var rows []priceRow
	if err := tx.Order("symbol ASC").Order("ts ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]domain.PriceObservation, len(rows))
	for i, r := range rows {
		out[i] = r.observation()
	}
	return out, nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
