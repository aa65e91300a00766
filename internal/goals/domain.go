package goals

import (
	"errors"
	"time"
)

var (
	ErrUserRequired = errors.New("goals: owner required")
	ErrBadRange     = errors.New("goals: end date before start date")
)

// Goal is a per-salesperson target over an explicit date window.
type Goal struct {
	ID            int64
	UserID        int64
	PeriodType    string
	StartDate     time.Time
	EndDate       time.Time
	TargetRevenue float64
	TargetDeals   int
	CreatedAt     time.Time
}
