package users

import (
	"context"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/salespulse/salespulse/internal/shared"
)

// RepositoryPort defines data access methods for user accounts.
type RepositoryPort interface {
	FindByID(ctx context.Context, id int64) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByName(ctx context.Context, firstName, lastName string) (*User, error)
	List(ctx context.Context) ([]User, error)
	ListByRole(ctx context.Context, role Role) ([]User, error)
	ListActiveEmployees(ctx context.Context) ([]User, error)
	HasConflict(ctx context.Context, username, email string, excludeID int64) (bool, error)
	Create(ctx context.Context, u *User) (*User, error)
	Update(ctx context.Context, u *User) error
	RecordLogin(ctx context.Context, id int64, at time.Time) error
	Delete(ctx context.Context, id int64) error
}

// Service handles account business rules.
type Service struct {
	repo RepositoryPort
	now  func() time.Time
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, now: time.Now}
}

// WithNow overrides the service clock for tests.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// Authenticate validates username/password credentials against an active
// account and stamps the last-login time on success.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.Active {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	now := s.now().UTC()
	if err := s.repo.RecordLogin(ctx, user.ID, now); err != nil {
		return nil, err
	}
	user.LastLogin = &now
	return user, nil
}

// CreateInput carries the fields accepted by account creation. The
// commission rate arrives in percent units from the form and is stored as
// a fraction.
type CreateInput struct {
	Username          string
	Email             string
	Password          string
	FirstName         string
	LastName          string
	Role              Role
	Active            bool
	HireDate          *time.Time
	BaseSalary        float64
	CommissionRatePct float64
	DrawAmount        float64
}

// Create adds a new account, rejecting duplicate username/email before any
// write happens.
func (s *Service) Create(ctx context.Context, in CreateInput) (*User, error) {
	conflict, err := s.repo.HasConflict(ctx, in.Username, in.Email, 0)
	if err != nil {
		return nil, err
	}
	if conflict {
		return nil, shared.ErrDuplicate
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := &User{
		Username:       in.Username,
		Email:          in.Email,
		PasswordHash:   string(hash),
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		Role:           in.Role,
		Active:         in.Active,
		CreatedAt:      s.now().UTC(),
		HireDate:       in.HireDate,
		BaseSalary:     in.BaseSalary,
		CommissionRate: rateFromPercent(in.CommissionRatePct),
		DrawAmount:     in.DrawAmount,
	}
	return s.repo.Create(ctx, user)
}

// UpdateInput carries the fields accepted by admin edits. An empty
// NewPassword keeps the current hash.
type UpdateInput struct {
	Username          string
	Email             string
	FirstName         string
	LastName          string
	Role              Role
	Active            bool
	NewPassword       string
	HireDate          *time.Time
	BaseSalary        float64
	CommissionRatePct float64
	DrawAmount        float64
}

// Update rewrites an account after the duplicate check.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (*User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	conflict, err := s.repo.HasConflict(ctx, in.Username, in.Email, id)
	if err != nil {
		return nil, err
	}
	if conflict {
		return nil, shared.ErrDuplicate
	}
	user.Username = in.Username
	user.Email = in.Email
	user.FirstName = in.FirstName
	user.LastName = in.LastName
	user.Role = in.Role
	user.Active = in.Active
	user.HireDate = in.HireDate
	user.BaseSalary = in.BaseSalary
	user.CommissionRate = rateFromPercent(in.CommissionRatePct)
	user.DrawAmount = in.DrawAmount
	if in.NewPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = string(hash)
	}
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ProfileInput carries the self-service profile fields.
type ProfileInput struct {
	Username          string
	Email             string
	FirstName         string
	LastName          string
	CurrentPassword   string
	NewPassword       string
	HireDate          *time.Time
	BaseSalary        float64
	CommissionRatePct float64
	DrawAmount        float64
}

// UpdateProfile applies a self-edit. Employee attributes change only for
// viewer-role accounts, and a password change requires the current one.
func (s *Service) UpdateProfile(ctx context.Context, id int64, in ProfileInput) (*User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	conflict, err := s.repo.HasConflict(ctx, in.Username, in.Email, id)
	if err != nil {
		return nil, err
	}
	if conflict {
		return nil, shared.ErrDuplicate
	}
	user.Username = in.Username
	user.Email = in.Email
	user.FirstName = in.FirstName
	user.LastName = in.LastName
	if user.Role == RoleViewer {
		user.HireDate = in.HireDate
		user.BaseSalary = in.BaseSalary
		if in.CommissionRatePct > 0 {
			user.CommissionRate = rateFromPercent(in.CommissionRatePct)
		} else {
			user.CommissionRate = DefaultCommissionRate
		}
		user.DrawAmount = in.DrawAmount
	}
	if in.NewPassword != "" {
		if in.CurrentPassword == "" {
			return nil, shared.ErrInvalidCredentials
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.CurrentPassword)); err != nil {
			return nil, shared.ErrInvalidCredentials
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = string(hash)
	}
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Delete removes an account. Deleting the acting account is rejected with
// no row removed; sales and goals of other accounts cascade away.
func (s *Service) Delete(ctx context.Context, id, actorID int64) error {
	if id == actorID {
		return shared.ErrSelfDelete
	}
	return s.repo.Delete(ctx, id)
}

// Get fetches an account by id.
func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.repo.FindByID(ctx, id)
}

// List returns all accounts.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

// ListEmployees returns active viewer-role accounts.
func (s *Service) ListEmployees(ctx context.Context) ([]User, error) {
	return s.repo.ListActiveEmployees(ctx)
}

// ListByRole returns accounts holding a role.
func (s *Service) ListByRole(ctx context.Context, role Role) ([]User, error) {
	return s.repo.ListByRole(ctx, role)
}

// FindByFullName resolves "First Last" (or a single first-name token) to an
// account, used by the bulk importer.
func (s *Service) FindByFullName(ctx context.Context, fullName string) (*User, error) {
	first, last := SplitFullName(fullName)
	return s.repo.FindByName(ctx, first, last)
}

// SplitFullName splits on the first space: first token becomes the first
// name and the remainder the last name. A single token is a first name.
func SplitFullName(fullName string) (first, last string) {
	fullName = strings.TrimSpace(fullName)
	if i := strings.IndexByte(fullName, ' '); i >= 0 {
		return fullName[:i], strings.TrimSpace(fullName[i+1:])
	}
	return fullName, ""
}

// rateFromPercent converts a form percentage (0-100) into the stored
// fraction, applying the default when absent.
func rateFromPercent(pct float64) float64 {
	if pct <= 0 {
		return DefaultCommissionRate
	}
	return pct / 100.0
}
