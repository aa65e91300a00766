package goals

import (
	"context"
	"strings"
	"time"

	"github.com/salespulse/salespulse/internal/shared"
)

// RepositoryPort is the storage contract for goals.
type RepositoryPort interface {
	FindByID(ctx context.Context, id int64) (*Goal, error)
	ListForUser(ctx context.Context, userID int64) ([]Goal, error)
	Create(ctx context.Context, g *Goal) (*Goal, error)
	Update(ctx context.Context, g *Goal) error
	Delete(ctx context.Context, id int64) error
}

// Service validates and persists goals.
type Service struct {
	repo RepositoryPort
}

// NewService constructs a service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Input carries the editable goal fields.
type Input struct {
	UserID        int64
	PeriodType    string
	StartDate     time.Time
	EndDate       time.Time
	TargetRevenue float64
	TargetDeals   int
}

// Create validates and stores a new goal.
func (s *Service) Create(ctx context.Context, in Input) (*Goal, error) {
	goal, err := buildGoal(in)
	if err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, goal)
}

// Update validates and rewrites an existing goal.
func (s *Service) Update(ctx context.Context, id int64, in Input) (*Goal, error) {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	goal, err := buildGoal(in)
	if err != nil {
		return nil, err
	}
	goal.ID = existing.ID
	goal.CreatedAt = existing.CreatedAt
	if err := s.repo.Update(ctx, goal); err != nil {
		return nil, err
	}
	return goal, nil
}

// ListForUser returns a user's goals.
func (s *Service) ListForUser(ctx context.Context, userID int64) ([]Goal, error) {
	return s.repo.ListForUser(ctx, userID)
}

// Delete removes one goal.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

func buildGoal(in Input) (*Goal, error) {
	if in.UserID == 0 {
		return nil, ErrUserRequired
	}
	period := strings.TrimSpace(in.PeriodType)
	if period == "" {
		period = shared.PeriodMonth
	}
	if in.EndDate.Before(in.StartDate) {
		return nil, ErrBadRange
	}
	return &Goal{
		UserID:        in.UserID,
		PeriodType:    period,
		StartDate:     in.StartDate,
		EndDate:       in.EndDate,
		TargetRevenue: in.TargetRevenue,
		TargetDeals:   in.TargetDeals,
	}, nil
}
