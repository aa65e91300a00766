package analytics

import (
	"context"
	"time"
)

// UserTotals is one aggregated dashboard row: per-user sums over the
// requested date range.
type UserTotals struct {
	Name       string  `json:"name"`
	Revenue    float64 `json:"revenue"`
	Deals      int     `json:"deals"`
	Commission float64 `json:"commission"`
}

// MonthBucket is one point of the monthly trend series.
type MonthBucket struct {
	Month   string  `json:"month"`
	Revenue float64 `json:"revenue"`
	Deals   int     `json:"deals"`
}

// DataSource supplies dashboard data. The live implementation aggregates
// storage; the demo implementation serves fixed presentation rows for
// unauthenticated visitors and never touches storage.
type DataSource interface {
	Aggregate(ctx context.Context, start, end time.Time) ([]UserTotals, error)
	Trends(ctx context.Context, windowDays int) ([]MonthBucket, error)
}

// DefaultTrendWindowDays is the trailing window for trend queries.
const DefaultTrendWindowDays = 365
