package sales

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/salespulse/salespulse/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for sales records.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert persists a single sale.
func (r *Repository) Insert(ctx context.Context, sale *Sale) (*Sale, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO sales (user_id, date, revenue_amount, number_of_deals, commission_earned, draw_payment, period_type)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		sale.UserID, sale.Date, sale.RevenueAmount, sale.NumberOfDeals, sale.CommissionEarned, sale.DrawPayment, sale.PeriodType).Scan(&sale.ID)
	if err != nil {
		return nil, err
	}
	return sale, nil
}

// Recent returns the latest sales joined with the owner names, newest first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]SaleWithUser, error) {
	rows, err := r.pool.Query(ctx, `SELECT s.id, s.user_id, s.date, s.revenue_amount, s.number_of_deals, s.commission_earned, s.draw_payment, s.period_type, u.first_name || ' ' || u.last_name
FROM sales s JOIN users u ON u.id = s.user_id ORDER BY s.date DESC, s.id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SaleWithUser
	for rows.Next() {
		var s SaleWithUser
		if err := rows.Scan(&s.ID, &s.UserID, &s.Date, &s.RevenueAmount, &s.NumberOfDeals, &s.CommissionEarned, &s.DrawPayment, &s.PeriodType, &s.UserName); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// TxRepository exposes the write operations available inside a batch.
type TxRepository interface {
	Insert(ctx context.Context, sale *Sale) (*Sale, error)
}

type txRepo struct {
	tx pgx.Tx
}

func (r *txRepo) Insert(ctx context.Context, sale *Sale) (*Sale, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO sales (user_id, date, revenue_amount, number_of_deals, commission_earned, draw_payment, period_type)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		sale.UserID, sale.Date, sale.RevenueAmount, sale.NumberOfDeals, sale.CommissionEarned, sale.DrawPayment, sale.PeriodType).Scan(&sale.ID)
	if err != nil {
		return nil, err
	}
	return sale, nil
}

// WithTx wraps the callback in a repeatable-read transaction so a bulk
// import commits atomically or not at all.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}
