// Package api contains the query contracts of the HTTP API.
// Version v1 represents the current stable API version.
package api

// Layouts accepted by the crypto query parameters. Both are read as UTC.
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05"
)

// Crypto API Requests

// ListRequest filters GET /api/crypto/list
type ListRequest struct {
	Symbol string `query:"symbol" validate:"omitempty,max=32"`
}

// NormalizedAllRequest selects the order of GET /api/crypto/normalized/all
type NormalizedAllRequest struct {
	Sort string `query:"sort" validate:"omitempty"`
}

// TopNormalizedRequest selects the day of GET /api/crypto/normalized/top
type TopNormalizedRequest struct {
	Date string `query:"date" validate:"required,datetime=2006-01-02"`
}

// StatisticsRequest narrows GET /api/crypto/statistics to a symbol and
// optionally to the month containing YearMonth
type StatisticsRequest struct {
	Symbol    string `param:"symbol" validate:"omitempty,max=32"`
	YearMonth string `query:"yearMonth" validate:"omitempty,datetime=2006-01-02"`
}

// RangeStatisticsRequest bounds GET /api/crypto/range-statistics
type RangeStatisticsRequest struct {
	Symbol string `param:"symbol" validate:"omitempty,max=32"`
	From   string `query:"from" validate:"required,datetime=2006-01-02 15:04:05"`
	To     string `query:"to" validate:"required,datetime=2006-01-02 15:04:05"`
}

// Batch API Requests

// RunListRequest filters GET /api/batch/runs
type RunListRequest struct {
	Status string `query:"status" validate:"omitempty,oneof=pending running completed failed"`
	Limit  int    `query:"limit" validate:"min=0,max=100"`
}
