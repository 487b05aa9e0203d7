package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crafted/backend/internal/models"
)

const payoutColumns = `id, freelancer_id, credits, gross_cents, net_cents, fee_cents, status, stripe_transfer_id, failure_reason, requested_at, processed_at`

type PayoutRepo struct {
	pool *pgxpool.Pool
}

func NewPayoutRepo(pool *pgxpool.Pool) *PayoutRepo {
	return &PayoutRepo{pool: pool}
}

func scanPayout(row pgx.Row) (*models.Payout, error) {
	var p models.Payout
	err := row.Scan(&p.ID, &p.FreelancerID, &p.Credits, &p.GrossCents, &p.NetCents, &p.FeeCents, &p.Status, &p.StripeTransferID, &p.FailureReason, &p.RequestedAt, &p.ProcessedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateTx inserts the payout within the caller's transaction alongside its
// payout_debit ledger row.
func (r *PayoutRepo) CreateTx(ctx context.Context, tx pgx.Tx, p *models.Payout) error {
	return tx.QueryRow(ctx, `
		INSERT INTO payouts (id, freelancer_id, credits, gross_cents, net_cents, fee_cents, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING requested_at
	`, p.ID, p.FreelancerID, p.Credits, p.GrossCents, p.NetCents, p.FeeCents, p.Status).Scan(&p.RequestedAt)
}

func (r *PayoutRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Payout, error) {
	return scanPayout(r.pool.QueryRow(ctx, `SELECT `+payoutColumns+` FROM payouts WHERE id = $1`, id))
}

// MarkProcessing claims a payout for the transfer job. Rows already in
// processing are claimed again: a job that died after claiming but before
// settling would otherwise strand the payout forever, and re-running the
// transfer is safe because the payout ID is the Stripe idempotency key.
// Returns false only for finalized (paid or failed) payouts.
func (r *PayoutRepo) MarkProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE payouts SET status = $2 WHERE id = $1 AND status IN ($3, $2)
	`, id, models.PayoutStatusProcessing, models.PayoutStatusRequested)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PayoutRepo) MarkPaid(ctx context.Context, id uuid.UUID, transferID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE payouts SET status = $2, stripe_transfer_id = $3, processed_at = $4 WHERE id = $1
	`, id, models.PayoutStatusPaid, transferID, time.Now())
	return err
}

// MarkFailedTx fails a payout unless it is failed already. Returns false for
// an already-failed payout so the caller skips the credit refund.
func (r *PayoutRepo) MarkFailedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, reason string) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE payouts SET status = $2, failure_reason = $3, processed_at = $4
		WHERE id = $1 AND status <> $2
	`, id, models.PayoutStatusFailed, reason, time.Now())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PayoutRepo) ListByFreelancer(ctx context.Context, freelancerID uuid.UUID) ([]*models.Payout, error) {
	return r.list(ctx, `SELECT `+payoutColumns+` FROM payouts WHERE freelancer_id = $1 ORDER BY requested_at DESC`, freelancerID)
}

func (r *PayoutRepo) ListAll(ctx context.Context) ([]*models.Payout, error) {
	return r.list(ctx, `SELECT `+payoutColumns+` FROM payouts ORDER BY requested_at DESC`)
}

func (r *PayoutRepo) list(ctx context.Context, sql string, args ...any) ([]*models.Payout, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Payout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// SumActiveCredits totals credits consumed by payouts that are requested,
// processing, or paid. Failed payouts release their credits back.
func (r *PayoutRepo) SumActiveCredits(ctx context.Context, freelancerID uuid.UUID) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(credits), 0)
		FROM payouts
		WHERE freelancer_id = $1 AND status IN ($2, $3, $4)
	`, freelancerID, models.PayoutStatusRequested, models.PayoutStatusProcessing, models.PayoutStatusPaid).Scan(&total)
	return total, err
}
