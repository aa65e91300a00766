package sales

import (
	"context"
	"time"

	"github.com/salespulse/salespulse/internal/users"
)

// RepositoryPort defines data access methods for sales records.
type RepositoryPort interface {
	Insert(ctx context.Context, sale *Sale) (*Sale, error)
	Recent(ctx context.Context, limit int) ([]SaleWithUser, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// UserSource resolves the accounts owning sales records.
type UserSource interface {
	Get(ctx context.Context, id int64) (*users.User, error)
	FindByFullName(ctx context.Context, fullName string) (*users.User, error)
}

// SettingsSource exposes the commission display mode in effect.
type SettingsSource interface {
	CommissionDisplayMode(ctx context.Context) string
}

// CacheInvalidator is notified after writes so analytics reads refresh.
type CacheInvalidator interface {
	Bump(ctx context.Context) error
}

// Service coordinates sale ingestion.
type Service struct {
	repo     RepositoryPort
	users    UserSource
	settings SettingsSource
	cache    CacheInvalidator
	now      func() time.Time
}

// NewService builds a Service instance. The cache invalidator may be nil.
func NewService(repo RepositoryPort, userSource UserSource, settings SettingsSource, cache CacheInvalidator) *Service {
	return &Service{repo: repo, users: userSource, settings: settings, cache: cache, now: time.Now}
}

// WithNow overrides the service clock for tests.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// EntryInput carries a single data-entry submission. Zero values take the
// documented defaults: date today, one deal, no revenue, no draw.
type EntryInput struct {
	UserID        int64
	Date          time.Time
	RevenueAmount float64
	NumberOfDeals int
	DrawPayment   float64
}

// RecordSale validates the target user, applies defaults, fixes the
// commission from the owner's current rate and the current display mode,
// and persists the record.
func (s *Service) RecordSale(ctx context.Context, in EntryInput) (*Sale, error) {
	if in.UserID == 0 {
		return nil, ErrUserRequired
	}
	owner, err := s.users.Get(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	sale := s.buildSale(owner, in, s.settings.CommissionDisplayMode(ctx))
	created, err := s.repo.Insert(ctx, sale)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return created, nil
}

// Recent lists the latest sales for the data-entry page.
func (s *Service) Recent(ctx context.Context, limit int) ([]SaleWithUser, error) {
	return s.repo.Recent(ctx, limit)
}

func (s *Service) buildSale(owner *users.User, in EntryInput, displayMode string) *Sale {
	date := in.Date
	if date.IsZero() {
		now := s.now()
		date = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	deals := in.NumberOfDeals
	if deals <= 0 {
		deals = 1
	}
	return &Sale{
		UserID:           owner.ID,
		Date:             date,
		RevenueAmount:    in.RevenueAmount,
		NumberOfDeals:    deals,
		CommissionEarned: Commission(in.RevenueAmount, owner.CommissionRate*100, displayMode),
		DrawPayment:      in.DrawPayment,
		PeriodType:       "month",
	}
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache != nil {
		_ = s.cache.Bump(ctx)
	}
}
