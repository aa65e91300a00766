package settings

import (
	"errors"
	"time"

	"github.com/salespulse/salespulse/internal/shared"
)

// Themes selectable from the settings screen. The first entry is the
// fallback for unknown values.
var Themes = []string{"default", "dark", "green", "purple", "orange", "teal", "red", "pink"}

// Periods offered as the dashboard default.
var Periods = []string{shared.PeriodYTD, shared.PeriodMonth, shared.PeriodQuarter, shared.PeriodYear}

var (
	ErrInvalidTheme   = errors.New("settings: unknown theme")
	ErrInvalidDisplay = errors.New("settings: unknown commission display mode")
	ErrInvalidPeriod  = errors.New("settings: unknown default period")
)

// Settings is the single application-wide configuration row. It is
// created lazily with defaults on first read.
type Settings struct {
	ID                int64
	CommissionDisplay string
	DefaultPeriod     string
	Theme             string
	// DisplayFields toggles optional dashboard columns by key.
	DisplayFields map[string]bool
	// AdminUsername and AdminPasswordHash back the fallback
	// administrator login used before any account exists.
	AdminUsername     string
	AdminPasswordHash string
	UpdatedAt         time.Time
}

// DefaultDisplayFields lists every toggleable dashboard column, enabled.
func DefaultDisplayFields() map[string]bool {
	return map[string]bool{
		"revenue":    true,
		"deals":      true,
		"commission": true,
		"draw":       true,
	}
}

// ValidTheme reports whether the theme is one of the known palettes.
func ValidTheme(theme string) bool {
	for _, t := range Themes {
		if t == theme {
			return true
		}
	}
	return false
}

// ValidPeriod reports whether the period keyword can serve as a default.
func ValidPeriod(period string) bool {
	for _, p := range Periods {
		if p == period {
			return true
		}
	}
	return false
}
