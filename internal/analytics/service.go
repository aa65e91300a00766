package analytics

import (
	"context"
	"strconv"
	"time"
)

// RepositoryPort is the storage contract for the live data source.
type RepositoryPort interface {
	AggregateByUser(ctx context.Context, start, end time.Time) ([]UserTotals, error)
	MonthlyTrends(ctx context.Context, cutoff time.Time) ([]MonthBucket, error)
}

// Service is the live DataSource: cache-aware aggregation over storage.
type Service struct {
	repo  RepositoryPort
	cache *Cache
	now   func() time.Time
}

// NewService wires a repository with the cache helper. Cache may be nil,
// in which case every call goes straight to storage.
func NewService(repo RepositoryPort, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache, now: time.Now}
}

// WithNow overrides the service clock for tests.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// Aggregate returns per-user totals over the inclusive range, sorted by
// full name for deterministic output.
func (s *Service) Aggregate(ctx context.Context, start, end time.Time) ([]UserTotals, error) {
	key, err := s.cache.BuildKey(ctx, "analytics", "aggregate", dayToken(start), dayToken(end))
	if err != nil {
		return nil, err
	}
	var rows []UserTotals
	err = s.cache.FetchJSON(ctx, key, &rows, func(ctx context.Context) (interface{}, error) {
		return s.repo.AggregateByUser(ctx, start, end)
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Trends returns monthly revenue/deal buckets for the trailing window.
func (s *Service) Trends(ctx context.Context, windowDays int) ([]MonthBucket, error) {
	if windowDays <= 0 {
		windowDays = DefaultTrendWindowDays
	}
	cutoff := s.now().AddDate(0, 0, -windowDays)
	key, err := s.cache.BuildKey(ctx, "analytics", "trends", strconv.Itoa(windowDays), dayToken(cutoff))
	if err != nil {
		return nil, err
	}
	var buckets []MonthBucket
	err = s.cache.FetchJSON(ctx, key, &buckets, func(ctx context.Context) (interface{}, error) {
		return s.repo.MonthlyTrends(ctx, cutoff)
	})
	if err != nil {
		return nil, err
	}
	return buckets, nil
}

var _ DataSource = (*Service)(nil)

func dayToken(t time.Time) string {
	return t.Format("2006-01-02")
}
