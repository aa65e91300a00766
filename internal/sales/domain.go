package sales

import (
	"errors"
	"time"
)

// Commission display modes configured through the Settings field toggles.
const (
	DisplayPercentage = "percentage"
	DisplayDollar     = "dollar"
)

// ErrUserRequired indicates that no target employee was selected.
var ErrUserRequired = errors.New("sales: employee selection required")

// Sale is an immutable sales record. The commission is fixed at insertion
// time from the owning user's rate and the display mode of that moment;
// later rate or mode changes never touch existing rows.
type Sale struct {
	ID               int64
	UserID           int64
	Date             time.Time
	RevenueAmount    float64
	NumberOfDeals    int
	CommissionEarned float64
	DrawPayment      float64
	PeriodType       string
}

// SaleWithUser decorates a sale with the owner's full name for listings.
type SaleWithUser struct {
	Sale
	UserName string
}
