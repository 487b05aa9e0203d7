// Package ledger owns every credit movement. All mutations write a
// credit_transactions row next to the balance change, inside one database
// transaction; the row set is the audit trail and the balance is derivable
// from it.
package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/crafted/backend/internal/models"
)

// ErrInsufficientCredits is returned when a balance cannot cover a spend or
// payout request.
var ErrInsufficientCredits = errors.New("insufficient credits")

// UserBalanceRepo is the minimal user repository interface for the ledger.
type UserBalanceRepo interface {
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.User, error)
	DeductCredits(ctx context.Context, tx pgx.Tx, id uuid.UUID, credits int) (newBalance int, err error)
	AddCredits(ctx context.Context, tx pgx.Tx, id uuid.UUID, credits int) (newBalance int, err error)
}

// CreditEntryRepo is the minimal credit transaction interface for the ledger.
type CreditEntryRepo interface {
	CreateTx(ctx context.Context, tx pgx.Tx, c *models.CreditTransaction) error
}

// TxBeginner abstracts transaction creation so tests don't need a
// pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// CreditRecorder counts credit movement for observability. Optional.
type CreditRecorder interface {
	RecordCredits(entryType string, credits int)
}

// Service performs credit movements against the users and
// credit_transactions tables.
type Service struct {
	Pool    TxBeginner
	Users   UserBalanceRepo
	Credits CreditEntryRepo
	Metrics CreditRecorder
}

func NewService(pool TxBeginner, users UserBalanceRepo, credits CreditEntryRepo) *Service {
	return &Service{Pool: pool, Users: users, Credits: credits}
}

// record is nil-safe; movement inside a transaction that later rolls back is
// still counted, which is fine for a rate counter.
func (s *Service) record(entryType string, credits int) {
	if s.Metrics != nil {
		s.Metrics.RecordCredits(entryType, credits)
	}
}

// SpendOnTask locks the client row, deducts the task's credits, and writes a
// task_spend entry. Call within the transaction that creates the task.
func (s *Service) SpendOnTask(ctx context.Context, tx pgx.Tx, clientID, taskID uuid.UUID, credits int) error {
	client, err := s.Users.GetByIDForUpdate(ctx, tx, clientID)
	if err != nil {
		return err
	}
	if client.CreditBalance < credits {
		return ErrInsufficientCredits
	}
	newBalance, err := s.Users.DeductCredits(ctx, tx, clientID, credits)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrInsufficientCredits
		}
		return err
	}
	if err := s.Credits.CreateTx(ctx, tx, &models.CreditTransaction{
		ID:           uuid.New(),
		UserID:       clientID,
		TaskID:       &taskID,
		EntryType:    models.CreditEntryTaskSpend,
		Credits:      -credits,
		BalanceAfter: intPtr(newBalance),
	}); err != nil {
		return err
	}
	s.record(models.CreditEntryTaskSpend, credits)
	return nil
}

// RefundTask returns a cancelled task's credits to the client with a
// task_refund entry. Call within the transaction that cancels the task.
func (s *Service) RefundTask(ctx context.Context, tx pgx.Tx, clientID, taskID uuid.UUID, credits int) error {
	if credits <= 0 {
		return nil
	}
	if _, err := s.Users.GetByIDForUpdate(ctx, tx, clientID); err != nil {
		return err
	}
	newBalance, err := s.Users.AddCredits(ctx, tx, clientID, credits)
	if err != nil {
		return err
	}
	if err := s.Credits.CreateTx(ctx, tx, &models.CreditTransaction{
		ID:           uuid.New(),
		UserID:       clientID,
		TaskID:       &taskID,
		EntryType:    models.CreditEntryTaskRefund,
		Credits:      credits,
		BalanceAfter: intPtr(newBalance),
	}); err != nil {
		return err
	}
	s.record(models.CreditEntryTaskRefund, credits)
	return nil
}

// SettleEarning credits the freelancer the full task amount on approval with
// a task_earning entry. The platform's share is taken in money at payout
// time, not in credits here.
func (s *Service) SettleEarning(ctx context.Context, tx pgx.Tx, freelancerID, taskID uuid.UUID, credits int) error {
	if _, err := s.Users.GetByIDForUpdate(ctx, tx, freelancerID); err != nil {
		return err
	}
	newBalance, err := s.Users.AddCredits(ctx, tx, freelancerID, credits)
	if err != nil {
		return err
	}
	if err := s.Credits.CreateTx(ctx, tx, &models.CreditTransaction{
		ID:           uuid.New(),
		UserID:       freelancerID,
		TaskID:       &taskID,
		EntryType:    models.CreditEntryTaskEarning,
		Credits:      credits,
		BalanceAfter: intPtr(newBalance),
	}); err != nil {
		return err
	}
	s.record(models.CreditEntryTaskEarning, credits)
	return nil
}

// Purchase credits a user after a verified Stripe checkout completes. Runs
// in its own transaction; stripeEventID ties the entry back to the webhook
// delivery that caused it. The entry is written before the balance moves: a
// unique index on stripe_event_id rejects a second entry for the same event,
// so a redelivered webhook (including one racing the first delivery, or one
// replayed after a crash between commit and the processed stamp) rolls back
// without crediting again.
func (s *Service) Purchase(ctx context.Context, userID uuid.UUID, credits int, stripeEventID string) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	user, err := s.Users.GetByIDForUpdate(ctx, tx, userID)
	if err != nil {
		return err
	}
	if err := s.Credits.CreateTx(ctx, tx, &models.CreditTransaction{
		ID:            uuid.New(),
		UserID:        userID,
		EntryType:     models.CreditEntryPurchase,
		Credits:       credits,
		BalanceAfter:  intPtr(user.CreditBalance + credits),
		StripeEventID: stripeEventID,
	}); err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return err
	}
	if _, err := s.Users.AddCredits(ctx, tx, userID, credits); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	s.record(models.CreditEntryPurchase, credits)
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func intPtr(n int) *int { return &n }
