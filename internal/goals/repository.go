package goals

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/salespulse/salespulse/internal/shared"
)

// Repository provides PostgreSQL backed persistence for goals.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const goalColumns = "id, user_id, period_type, start_date, end_date, target_revenue, target_deals, created_at"

func scanGoal(row pgx.Row) (*Goal, error) {
	var g Goal
	err := row.Scan(&g.ID, &g.UserID, &g.PeriodType, &g.StartDate, &g.EndDate, &g.TargetRevenue, &g.TargetDeals, &g.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// FindByID loads one goal.
func (r *Repository) FindByID(ctx context.Context, id int64) (*Goal, error) {
	return scanGoal(r.pool.QueryRow(ctx, "SELECT "+goalColumns+" FROM goals WHERE id = $1", id))
}

// ListForUser returns a user's goals, newest window first.
func (r *Repository) ListForUser(ctx context.Context, userID int64) ([]Goal, error) {
	rows, err := r.pool.Query(ctx, "SELECT "+goalColumns+" FROM goals WHERE user_id = $1 ORDER BY start_date DESC, id DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Goal
	for rows.Next() {
		var g Goal
		if err := rows.Scan(&g.ID, &g.UserID, &g.PeriodType, &g.StartDate, &g.EndDate, &g.TargetRevenue, &g.TargetDeals, &g.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Create persists a goal and returns it with its assigned id.
func (r *Repository) Create(ctx context.Context, g *Goal) (*Goal, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO goals (user_id, period_type, start_date, end_date, target_revenue, target_deals)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at`,
		g.UserID, g.PeriodType, g.StartDate, g.EndDate, g.TargetRevenue, g.TargetDeals).Scan(&g.ID, &g.CreatedAt)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// Update rewrites the mutable goal columns.
func (r *Repository) Update(ctx context.Context, g *Goal) error {
	tag, err := r.pool.Exec(ctx, `UPDATE goals SET period_type = $1, start_date = $2, end_date = $3, target_revenue = $4, target_deals = $5
WHERE id = $6`,
		g.PeriodType, g.StartDate, g.EndDate, g.TargetRevenue, g.TargetDeals, g.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes one goal.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM goals WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
