package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crafted/backend/internal/models"
)

const creditColumns = `id, user_id, task_id, payout_id, entry_type, credits, balance_after, stripe_event_id, created_at`

type CreditRepo struct {
	pool *pgxpool.Pool
}

func NewCreditRepo(pool *pgxpool.Pool) *CreditRepo {
	return &CreditRepo{pool: pool}
}

func scanCredit(row pgx.Row) (*models.CreditTransaction, error) {
	var c models.CreditTransaction
	err := row.Scan(&c.ID, &c.UserID, &c.TaskID, &c.PayoutID, &c.EntryType, &c.Credits, &c.BalanceAfter, &c.StripeEventID, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateTx inserts a ledger entry within the caller's transaction.
func (r *CreditRepo) CreateTx(ctx context.Context, tx pgx.Tx, c *models.CreditTransaction) error {
	return tx.QueryRow(ctx, `
		INSERT INTO credit_transactions (id, user_id, task_id, payout_id, entry_type, credits, balance_after, stripe_event_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, c.ID, c.UserID, c.TaskID, c.PayoutID, c.EntryType, c.Credits, c.BalanceAfter, c.StripeEventID).Scan(&c.CreatedAt)
}

func (r *CreditRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.CreditTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+creditColumns+` FROM credit_transactions
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.CreditTransaction
	for rows.Next() {
		c, err := scanCredit(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// SumEarnedBefore sums task_earning credits recorded up to the cutoff time.
// Used for the holding-period balance: only earnings old enough count.
func (r *CreditRepo) SumEarnedBefore(ctx context.Context, userID uuid.UUID, cutoff time.Time) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(credits), 0)
		FROM credit_transactions
		WHERE user_id = $1 AND entry_type = $2 AND created_at <= $3
	`, userID, models.CreditEntryTaskEarning, cutoff).Scan(&total)
	return total, err
}
