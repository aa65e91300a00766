package analytics

import (
	"context"
	"time"
)

// demoSource serves fixed sample figures to anonymous visitors so the
// dashboard renders without an account. It never touches storage.
type demoSource struct{}

// NewDemoSource returns the DataSource used for unauthenticated views.
func NewDemoSource() DataSource {
	return demoSource{}
}

func (demoSource) Aggregate(_ context.Context, _, _ time.Time) ([]UserTotals, error) {
	return []UserTotals{
		{Name: "Demo User 1", Revenue: 125000, Deals: 45, Commission: 6250},
		{Name: "Demo User 2", Revenue: 98000, Deals: 32, Commission: 4900},
		{Name: "Demo User 3", Revenue: 156000, Deals: 52, Commission: 7800},
	}, nil
}

func (demoSource) Trends(_ context.Context, _ int) ([]MonthBucket, error) {
	return nil, nil
}
