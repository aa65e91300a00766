package db

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/salespulse/salespulse/internal/settings"
	"github.com/salespulse/salespulse/internal/shared"
	"github.com/salespulse/salespulse/internal/users"
)

// bootstrap retry bounds. After the attempts are exhausted the caller
// keeps serving in degraded mode and /init_db can force a re-run later.
const (
	initAttempts = 3
	retryDelay   = 2 * time.Second
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		email TEXT UNIQUE,
		password_hash TEXT NOT NULL,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'viewer',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_login TIMESTAMPTZ,
		hire_date DATE,
		base_salary DOUBLE PRECISION NOT NULL DEFAULT 0,
		commission_rate DOUBLE PRECISION NOT NULL DEFAULT 0.05,
		draw_amount DOUBLE PRECISION NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS sales (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		date DATE NOT NULL,
		revenue_amount DOUBLE PRECISION NOT NULL DEFAULT 0,
		number_of_deals INTEGER NOT NULL DEFAULT 1,
		commission_earned DOUBLE PRECISION NOT NULL DEFAULT 0,
		draw_payment DOUBLE PRECISION NOT NULL DEFAULT 0,
		period_type TEXT NOT NULL DEFAULT 'month'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sales_user_date ON sales (user_id, date)`,
	`CREATE TABLE IF NOT EXISTS goals (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		period_type TEXT NOT NULL DEFAULT 'month',
		start_date DATE NOT NULL,
		end_date DATE NOT NULL,
		target_revenue DOUBLE PRECISION NOT NULL DEFAULT 0,
		target_deals INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS settings (
		id BIGSERIAL PRIMARY KEY,
		commission_display TEXT NOT NULL DEFAULT 'percentage',
		default_period TEXT NOT NULL DEFAULT 'YTD',
		theme TEXT NOT NULL DEFAULT 'default',
		display_fields JSONB NOT NULL DEFAULT '{}',
		admin_username TEXT NOT NULL DEFAULT 'admin',
		admin_password_hash TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// Bootstrapper creates the schema and seed rows, at most once per
// process unless forced.
type Bootstrapper struct {
	pool   *pgxpool.Pool
	logger *slog.Logger

	mu          sync.Mutex
	initialized bool
}

// NewBootstrapper constructs a Bootstrapper.
func NewBootstrapper(pool *pgxpool.Pool, logger *slog.Logger) *Bootstrapper {
	return &Bootstrapper{pool: pool, logger: logger}
}

// EnsureInitialized runs the schema and seed once, retrying a bounded
// number of times. It returns the last error when every attempt failed;
// the application keeps serving and may retry later through Force.
func (b *Bootstrapper) EnsureInitialized(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.initialized {
		return nil
	}

	var lastErr error
	for attempt := 1; attempt <= initAttempts; attempt++ {
		if err := b.run(ctx); err != nil {
			lastErr = err
			b.logger.Warn("bootstrap attempt failed",
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", initAttempts),
				slog.Any("error", err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryDelay):
			}
			continue
		}
		b.initialized = true
		return nil
	}
	return fmt.Errorf("db: bootstrap failed after %d attempts: %w", initAttempts, lastErr)
}

// Force re-runs the schema and seed regardless of earlier outcomes. It
// backs the /init_db administrative endpoint.
func (b *Bootstrapper) Force(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.run(ctx); err != nil {
		return err
	}
	b.initialized = true
	return nil
}

// Initialized reports whether a bootstrap run has completed.
func (b *Bootstrapper) Initialized() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.initialized
}

func (b *Bootstrapper) run(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := b.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("db: apply schema: %w", err)
		}
	}
	if err := b.seedAdmin(ctx); err != nil {
		return err
	}
	if err := b.seedSettings(ctx); err != nil {
		return err
	}
	b.logger.Info("database bootstrap complete")
	return nil
}

// seedAdmin creates the default administrator account when the users
// table is empty. The password matches the legacy settings credentials
// and must be rotated after first login.
func (b *Bootstrapper) seedAdmin(ctx context.Context) error {
	var count int
	if err := b.pool.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&count); err != nil {
		return fmt.Errorf("db: count users: %w", err)
	}
	if count > 0 {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(settings.DefaultAdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("db: hash admin password: %w", err)
	}
	_, err = b.pool.Exec(ctx, `INSERT INTO users (username, password_hash, first_name, last_name, role, active)
VALUES ($1, $2, 'System', 'Administrator', $3, TRUE)`,
		settings.DefaultAdminUsername, string(hash), string(users.RoleAdmin))
	if err != nil {
		return fmt.Errorf("db: seed admin: %w", err)
	}
	b.logger.Info("seeded default administrator", slog.String("username", settings.DefaultAdminUsername))
	return nil
}

func (b *Bootstrapper) seedSettings(ctx context.Context) error {
	var count int
	if err := b.pool.QueryRow(ctx, `SELECT count(*) FROM settings`).Scan(&count); err != nil {
		return fmt.Errorf("db: count settings: %w", err)
	}
	if count > 0 {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(settings.DefaultAdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("db: hash settings password: %w", err)
	}
	fields, err := json.Marshal(settings.DefaultDisplayFields())
	if err != nil {
		return fmt.Errorf("db: marshal display fields: %w", err)
	}
	_, err = b.pool.Exec(ctx, `INSERT INTO settings (commission_display, default_period, theme, display_fields, admin_username, admin_password_hash)
VALUES ('percentage', $1, 'default', $2, $3, $4)`,
		shared.PeriodYTD, fields, settings.DefaultAdminUsername, string(hash))
	if err != nil {
		return fmt.Errorf("db: seed settings: %w", err)
	}
	return nil
}
