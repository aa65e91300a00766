package settings

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/salespulse/salespulse/internal/shared"
)

// Repository persists the singleton settings row.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get loads the settings row. Returns shared.ErrNotFound when the table
// is empty.
func (r *Repository) Get(ctx context.Context) (*Settings, error) {
	var (
		s      Settings
		fields []byte
	)
	err := r.pool.QueryRow(ctx, `SELECT id, commission_display, default_period, theme, display_fields, admin_username, admin_password_hash, updated_at
FROM settings ORDER BY id LIMIT 1`).Scan(
		&s.ID, &s.CommissionDisplay, &s.DefaultPeriod, &s.Theme, &fields, &s.AdminUsername, &s.AdminPasswordHash, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &s.DisplayFields); err != nil {
			return nil, err
		}
	}
	if s.DisplayFields == nil {
		s.DisplayFields = DefaultDisplayFields()
	}
	return &s, nil
}

// Create inserts the settings row and returns it with its assigned id.
func (r *Repository) Create(ctx context.Context, s *Settings) (*Settings, error) {
	fields, err := json.Marshal(s.DisplayFields)
	if err != nil {
		return nil, err
	}
	err = r.pool.QueryRow(ctx, `INSERT INTO settings (commission_display, default_period, theme, display_fields, admin_username, admin_password_hash, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, now()) RETURNING id, updated_at`,
		s.CommissionDisplay, s.DefaultPeriod, s.Theme, fields, s.AdminUsername, s.AdminPasswordHash).Scan(&s.ID, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Update rewrites every mutable column of the settings row.
func (r *Repository) Update(ctx context.Context, s *Settings) error {
	fields, err := json.Marshal(s.DisplayFields)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `UPDATE settings SET commission_display = $1, default_period = $2, theme = $3, display_fields = $4, admin_username = $5, admin_password_hash = $6, updated_at = now()
WHERE id = $7`,
		s.CommissionDisplay, s.DefaultPeriod, s.Theme, fields, s.AdminUsername, s.AdminPasswordHash, s.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
