package analytics

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository runs the aggregation SQL against PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// AggregateByUser sums revenue, deals and commission per active user with
// at least one sale in the inclusive range, ordered by full name.
func (r *Repository) AggregateByUser(ctx context.Context, start, end time.Time) ([]UserTotals, error) {
	rows, err := r.pool.Query(ctx, `SELECT u.first_name || ' ' || u.last_name AS name,
COALESCE(SUM(s.revenue_amount), 0), COALESCE(SUM(s.number_of_deals), 0), COALESCE(SUM(s.commission_earned), 0)
FROM users u JOIN sales s ON s.user_id = u.id
WHERE s.date >= $1 AND s.date <= $2 AND u.active
GROUP BY u.id, u.first_name, u.last_name
ORDER BY name`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []UserTotals
	for rows.Next() {
		var row UserTotals
		if err := rows.Scan(&row.Name, &row.Revenue, &row.Deals, &row.Commission); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// MonthlyTrends buckets all sales after the cutoff by year-month,
// chronologically.
func (r *Repository) MonthlyTrends(ctx context.Context, cutoff time.Time) ([]MonthBucket, error) {
	rows, err := r.pool.Query(ctx, `SELECT to_char(s.date, 'YYYY-MM') AS month,
COALESCE(SUM(s.revenue_amount), 0), COALESCE(SUM(s.number_of_deals), 0)
FROM sales s WHERE s.date >= $1
GROUP BY month ORDER BY month`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []MonthBucket
	for rows.Next() {
		var row MonthBucket
		if err := rows.Scan(&row.Month, &row.Revenue, &row.Deals); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
