package users

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/salespulse/salespulse/internal/shared"
)

const userColumns = `id, username, COALESCE(email, ''), password_hash, first_name, last_name, role, active, created_at, last_login, hire_date, base_salary, commission_rate, draw_amount`

// Repository provides PostgreSQL backed persistence for user accounts.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Role, &u.Active, &u.CreatedAt, &u.LastLogin, &u.HireDate, &u.BaseSalary, &u.CommissionRate, &u.DrawAmount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// FindByID fetches a user by primary key.
func (r *Repository) FindByID(ctx context.Context, id int64) (*User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// FindByUsername fetches a user by unique username.
func (r *Repository) FindByUsername(ctx context.Context, username string) (*User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

// FindByName fetches a user by exact first/last name match. An empty last
// name matches on first name alone.
func (r *Repository) FindByName(ctx context.Context, firstName, lastName string) (*User, error) {
	if lastName == "" {
		return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE first_name = $1 ORDER BY id LIMIT 1`, firstName))
	}
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE first_name = $1 AND last_name = $2 ORDER BY id LIMIT 1`, firstName, lastName))
}

// List returns all users ordered by id.
func (r *Repository) List(ctx context.Context) ([]User, error) {
	return r.queryUsers(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
}

// ListByRole returns users holding the given role.
func (r *Repository) ListByRole(ctx context.Context, role Role) ([]User, error) {
	return r.queryUsers(ctx, `SELECT `+userColumns+` FROM users WHERE role = $1 ORDER BY first_name, last_name`, string(role))
}

// ListActiveEmployees returns active viewer-role users, the population that
// can carry sales records.
func (r *Repository) ListActiveEmployees(ctx context.Context) ([]User, error) {
	return r.queryUsers(ctx, `SELECT `+userColumns+` FROM users WHERE role = $1 AND active ORDER BY first_name, last_name`, string(RoleViewer))
}

func (r *Repository) queryUsers(ctx context.Context, sql string, args ...any) ([]User, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Role, &u.Active, &u.CreatedAt, &u.LastLogin, &u.HireDate, &u.BaseSalary, &u.CommissionRate, &u.DrawAmount); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// HasConflict reports whether another user already holds the username or
// the (non-empty) email, excluding excludeID.
func (r *Repository) HasConflict(ctx context.Context, username, email string, excludeID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM users WHERE (username = $1 OR ($2 <> '' AND email = $2)) AND id <> $3)`, username, email, excludeID).Scan(&exists)
	return exists, err
}

// Create inserts a new user and returns it with the assigned id.
func (r *Repository) Create(ctx context.Context, u *User) (*User, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO users (username, email, password_hash, first_name, last_name, role, active, created_at, hire_date, base_salary, commission_rate, draw_amount)
VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING id`,
		u.Username, u.Email, u.PasswordHash, u.FirstName, u.LastName, string(u.Role), u.Active, u.CreatedAt, u.HireDate, u.BaseSalary, u.CommissionRate, u.DrawAmount).Scan(&u.ID)
	if err != nil {
		return nil, mapConstraintError(err)
	}
	return u, nil
}

// Update rewrites the mutable columns of an existing user.
func (r *Repository) Update(ctx context.Context, u *User) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET username = $2, email = NULLIF($3, ''), password_hash = $4, first_name = $5, last_name = $6, role = $7, active = $8, hire_date = $9, base_salary = $10, commission_rate = $11, draw_amount = $12 WHERE id = $1`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.FirstName, u.LastName, string(u.Role), u.Active, u.HireDate, u.BaseSalary, u.CommissionRate, u.DrawAmount)
	if err != nil {
		return mapConstraintError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// RecordLogin stamps last_login.
func (r *Repository) RecordLogin(ctx context.Context, id int64, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_login = $2 WHERE id = $1`, id, at)
	return err
}

// Delete removes a user. Sales and goals cascade via foreign keys.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// mapConstraintError translates a unique violation into ErrDuplicate so the
// handler can surface it as a flash message.
func mapConstraintError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return shared.ErrDuplicate
	}
	return err
}
