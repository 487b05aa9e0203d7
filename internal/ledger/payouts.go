package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/crafted/backend/internal/models"
)

// ErrHoldingPeriod is returned when a payout request exceeds the credits that
// have cleared the holding window.
var ErrHoldingPeriod = errors.New("requested credits not yet released from holding period")

// PayoutAmounts is the money split for one payout, in cents.
type PayoutAmounts struct {
	GrossCents int64
	NetCents   int64
	FeeCents   int64
}

// CalculatePayoutAmounts computes gross = credits * pricePerCredit,
// net = gross * artistPercentage/100 rounded to 2 decimals, and
// fee = gross - net. fee is derived from the rounded net so
// gross = net + fee holds exactly.
func CalculatePayoutAmounts(credits int, pricePerCredit, artistPercentage float64) PayoutAmounts {
	gross := decimal.NewFromInt(int64(credits)).
		Mul(decimal.NewFromFloat(pricePerCredit)).
		Round(2)
	net := gross.
		Mul(decimal.NewFromFloat(artistPercentage)).
		Div(decimal.NewFromInt(100)).
		Round(2)
	fee := gross.Sub(net)

	cents := decimal.NewFromInt(100)
	return PayoutAmounts{
		GrossCents: gross.Mul(cents).IntPart(),
		NetCents:   net.Mul(cents).IntPart(),
		FeeCents:   fee.Mul(cents).IntPart(),
	}
}

// EarningsSummer reports cumulative task earnings up to a cutoff.
type EarningsSummer interface {
	SumEarnedBefore(ctx context.Context, userID uuid.UUID, cutoff time.Time) (int, error)
}

// PayoutLedgerRepo is the payout repository interface for the ledger.
type PayoutLedgerRepo interface {
	CreateTx(ctx context.Context, tx pgx.Tx, p *models.Payout) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Payout, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) (bool, error)
	MarkPaid(ctx context.Context, id uuid.UUID, transferID string) error
	MarkFailedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, reason string) (bool, error)
	SumActiveCredits(ctx context.Context, freelancerID uuid.UUID) (int, error)
}

// PayoutService computes available balances and manages payout records.
// There is no persisted running balance: availability is recomputed from the
// ledger on every request.
type PayoutService struct {
	Pool             TxBeginner
	Users            UserBalanceRepo
	Credits          CreditEntryRepo
	Earnings         EarningsSummer
	Payouts          PayoutLedgerRepo
	PricePerCredit   float64
	ArtistPercentage float64
	HoldingPeriod    time.Duration
	Metrics          CreditRecorder
}

func (s *PayoutService) record(entryType string, credits int) {
	if s.Metrics != nil {
		s.Metrics.RecordCredits(entryType, credits)
	}
}

// AvailableCredits returns the credits a freelancer may withdraw right now:
// earnings recorded at least HoldingPeriod ago, minus credits consumed by
// requested, processing, or paid payouts.
func (s *PayoutService) AvailableCredits(ctx context.Context, freelancerID uuid.UUID) (int, error) {
	cutoff := time.Now().Add(-s.HoldingPeriod)
	earned, err := s.Earnings.SumEarnedBefore(ctx, freelancerID, cutoff)
	if err != nil {
		return 0, err
	}
	spent, err := s.Payouts.SumActiveCredits(ctx, freelancerID)
	if err != nil {
		return 0, err
	}
	available := earned - spent
	if available < 0 {
		available = 0
	}
	return available, nil
}

// RequestPayout deducts the credits, inserts the payout row, and writes the
// payout_debit ledger entry in one transaction. Availability is checked only
// after the freelancer row is locked: the lock serializes concurrent
// requests, so the second of two racing requests sees the first one's payout
// row when it recomputes.
func (s *PayoutService) RequestPayout(ctx context.Context, freelancerID uuid.UUID, credits int) (*models.Payout, error) {
	if credits <= 0 {
		return nil, errors.New("credits must be > 0")
	}

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := s.Users.GetByIDForUpdate(ctx, tx, freelancerID); err != nil {
		return nil, err
	}
	available, err := s.AvailableCredits(ctx, freelancerID)
	if err != nil {
		return nil, err
	}
	if credits > available {
		return nil, ErrHoldingPeriod
	}

	amounts := CalculatePayoutAmounts(credits, s.PricePerCredit, s.ArtistPercentage)
	payout := &models.Payout{
		ID:           uuid.New(),
		FreelancerID: freelancerID,
		Credits:      credits,
		GrossCents:   amounts.GrossCents,
		NetCents:     amounts.NetCents,
		FeeCents:     amounts.FeeCents,
		Status:       models.PayoutStatusRequested,
	}
	newBalance, err := s.Users.DeductCredits(ctx, tx, freelancerID, credits)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInsufficientCredits
		}
		return nil, err
	}
	if err := s.Payouts.CreateTx(ctx, tx, payout); err != nil {
		return nil, err
	}
	if err := s.Credits.CreateTx(ctx, tx, &models.CreditTransaction{
		ID:           uuid.New(),
		UserID:       freelancerID,
		PayoutID:     &payout.ID,
		EntryType:    models.CreditEntryPayoutDebit,
		Credits:      -credits,
		BalanceAfter: intPtr(newBalance),
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	s.record(models.CreditEntryPayoutDebit, credits)
	return payout, nil
}

// MarkPaid finalizes a payout after the Stripe transfer succeeds.
func (s *PayoutService) MarkPaid(ctx context.Context, payoutID uuid.UUID, transferID string) error {
	return s.Payouts.MarkPaid(ctx, payoutID, transferID)
}

// MarkFailed marks the payout failed and restores the debited credits to the
// freelancer in one transaction. A payout that is already failed has already
// been refunded, so the call becomes a no-op; this keeps a duplicate
// transfer.reversed delivery or a worker retry from crediting twice.
func (s *PayoutService) MarkFailed(ctx context.Context, payoutID uuid.UUID, reason string) error {
	payout, err := s.Payouts.GetByID(ctx, payoutID)
	if err != nil {
		return err
	}

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	failed, err := s.Payouts.MarkFailedTx(ctx, tx, payoutID, reason)
	if err != nil {
		return err
	}
	if !failed {
		return nil
	}
	if _, err := s.Users.GetByIDForUpdate(ctx, tx, payout.FreelancerID); err != nil {
		return err
	}
	newBalance, err := s.Users.AddCredits(ctx, tx, payout.FreelancerID, payout.Credits)
	if err != nil {
		return err
	}
	if err := s.Credits.CreateTx(ctx, tx, &models.CreditTransaction{
		ID:           uuid.New(),
		UserID:       payout.FreelancerID,
		PayoutID:     &payout.ID,
		EntryType:    models.CreditEntryPayoutRefund,
		Credits:      payout.Credits,
		BalanceAfter: intPtr(newBalance),
	}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	s.record(models.CreditEntryPayoutRefund, payout.Credits)
	return nil
}
