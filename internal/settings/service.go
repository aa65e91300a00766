package settings

import (
	"context"
	"errors"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/salespulse/salespulse/internal/sales"
	"github.com/salespulse/salespulse/internal/shared"
)

// Fallback administrator credentials seeded when no settings row exists.
// The password must be changed through the settings screen.
const (
	DefaultAdminUsername = "admin"
	DefaultAdminPassword = "admin"
)

// RepositoryPort is the storage contract for settings.
type RepositoryPort interface {
	Get(ctx context.Context) (*Settings, error)
	Create(ctx context.Context, s *Settings) (*Settings, error)
	Update(ctx context.Context, s *Settings) error
}

// Service owns the lazily created settings singleton.
type Service struct {
	repo RepositoryPort

	// ensureMu serialises the first-read creation so concurrent
	// requests cannot insert two rows.
	ensureMu sync.Mutex
}

// NewService constructs a service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Get returns the settings row, creating it with defaults on first use.
func (s *Service) Get(ctx context.Context) (*Settings, error) {
	current, err := s.repo.Get(ctx)
	if err == nil {
		return current, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	s.ensureMu.Lock()
	defer s.ensureMu.Unlock()
	if current, err = s.repo.Get(ctx); err == nil {
		return current, nil
	} else if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	defaults, err := defaultSettings()
	if err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, defaults)
}

// UpdateInput carries the editable settings fields.
type UpdateInput struct {
	CommissionDisplay string
	DefaultPeriod     string
	Theme             string
	DisplayFields     map[string]bool
	// AdminPassword rotates the fallback administrator password when
	// non-empty.
	AdminPassword string
}

// Update validates and persists the settings form.
func (s *Service) Update(ctx context.Context, in UpdateInput) (*Settings, error) {
	current, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	display := strings.ToLower(strings.TrimSpace(in.CommissionDisplay))
	if display != sales.DisplayPercentage && display != sales.DisplayDollar {
		return nil, ErrInvalidDisplay
	}
	if !ValidPeriod(in.DefaultPeriod) {
		return nil, ErrInvalidPeriod
	}
	theme := strings.ToLower(strings.TrimSpace(in.Theme))
	if !ValidTheme(theme) {
		return nil, ErrInvalidTheme
	}

	current.CommissionDisplay = display
	current.DefaultPeriod = in.DefaultPeriod
	current.Theme = theme
	if in.DisplayFields != nil {
		merged := DefaultDisplayFields()
		for key := range merged {
			merged[key] = in.DisplayFields[key]
		}
		current.DisplayFields = merged
	}
	if in.AdminPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(in.AdminPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		current.AdminPasswordHash = string(hash)
	}
	if err := s.repo.Update(ctx, current); err != nil {
		return nil, err
	}
	return current, nil
}

// SaveTheme switches only the colour theme.
func (s *Service) SaveTheme(ctx context.Context, theme string) (*Settings, error) {
	theme = strings.ToLower(strings.TrimSpace(theme))
	if !ValidTheme(theme) {
		return nil, ErrInvalidTheme
	}
	current, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	current.Theme = theme
	if err := s.repo.Update(ctx, current); err != nil {
		return nil, err
	}
	return current, nil
}

// VerifyLegacyAdmin checks the fallback administrator credentials.
func (s *Service) VerifyLegacyAdmin(ctx context.Context, username, password string) error {
	current, err := s.Get(ctx)
	if err != nil {
		return err
	}
	if !strings.EqualFold(strings.TrimSpace(username), current.AdminUsername) {
		return shared.ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(current.AdminPasswordHash), []byte(password)) != nil {
		return shared.ErrInvalidCredentials
	}
	return nil
}

// CommissionDisplayMode reports the active display mode, falling back to
// percentage when settings cannot be read.
func (s *Service) CommissionDisplayMode(ctx context.Context) string {
	current, err := s.Get(ctx)
	if err != nil {
		return sales.DisplayPercentage
	}
	return current.CommissionDisplay
}

// DefaultPeriod reports the dashboard default period keyword.
func (s *Service) DefaultPeriod(ctx context.Context) string {
	current, err := s.Get(ctx)
	if err != nil {
		return shared.PeriodYTD
	}
	return current.DefaultPeriod
}

// Theme reports the active colour theme.
func (s *Service) Theme(ctx context.Context) string {
	current, err := s.Get(ctx)
	if err != nil {
		return Themes[0]
	}
	return current.Theme
}

func defaultSettings() (*Settings, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultAdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return &Settings{
		CommissionDisplay: sales.DisplayPercentage,
		DefaultPeriod:     shared.PeriodYTD,
		Theme:             Themes[0],
		DisplayFields:     DefaultDisplayFields(),
		AdminUsername:     DefaultAdminUsername,
		AdminPasswordHash: string(hash),
	}, nil
}
