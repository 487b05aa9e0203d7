package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/crafted/backend/internal/models"
)

// --- payout repo mock ---

type mockPayouts struct {
	mu      sync.Mutex
	payouts map[uuid.UUID]*models.Payout
}

func newMockPayouts() *mockPayouts {
	return &mockPayouts{payouts: make(map[uuid.UUID]*models.Payout)}
}

func (m *mockPayouts) CreateTx(_ context.Context, _ pgx.Tx, p *models.Payout) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	cp.RequestedAt = time.Now()
	m.payouts[p.ID] = &cp
	return nil
}

func (m *mockPayouts) GetByID(_ context.Context, id uuid.UUID) (*models.Payout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payouts[id]
	if !ok {
		return nil, fmt.Errorf("payout %s not found", id)
	}
	cp := *p
	return &cp, nil
}

func (m *mockPayouts) MarkProcessing(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payouts[id]
	if !ok {
		return false, nil
	}
	switch p.Status {
	case models.PayoutStatusRequested, models.PayoutStatusProcessing:
		p.Status = models.PayoutStatusProcessing
		return true, nil
	}
	return false, nil
}

func (m *mockPayouts) MarkPaid(_ context.Context, id uuid.UUID, transferID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.payouts[id]
	p.Status = models.PayoutStatusPaid
	p.StripeTransferID = transferID
	return nil
}

func (m *mockPayouts) MarkFailedTx(_ context.Context, _ pgx.Tx, id uuid.UUID, reason string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.payouts[id]
	if p.Status == models.PayoutStatusFailed {
		return false, nil
	}
	p.Status = models.PayoutStatusFailed
	p.FailureReason = reason
	return true, nil
}

func (m *mockPayouts) SumActiveCredits(_ context.Context, freelancerID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, p := range m.payouts {
		if p.FreelancerID != freelancerID {
			continue
		}
		switch p.Status {
		case models.PayoutStatusRequested, models.PayoutStatusProcessing, models.PayoutStatusPaid:
			total += p.Credits
		}
	}
	return total, nil
}

func newPayoutService(users *mockUsers, credits *mockCredits, payouts *mockPayouts) *PayoutService {
	return &PayoutService{
		Pool:             mockPool{},
		Users:            users,
		Credits:          credits,
		Earnings:         credits,
		Payouts:          payouts,
		PricePerCredit:   10.0,
		ArtistPercentage: 70.0,
		HoldingPeriod:    0, // tests control timing through entry timestamps
	}
}

// ---------------------------------------------------------------------------
// Arithmetic
// ---------------------------------------------------------------------------

func TestCalculatePayoutAmounts(t *testing.T) {
	a := CalculatePayoutAmounts(10, 10.0, 70.0)
	if a.GrossCents != 10000 {
		t.Errorf("gross: got %d, want 10000", a.GrossCents)
	}
	if a.NetCents != 7000 {
		t.Errorf("net: got %d, want 7000", a.NetCents)
	}
	if a.FeeCents != 3000 {
		t.Errorf("fee: got %d, want 3000", a.FeeCents)
	}
}

// gross = net + fee must hold exactly for every non-negative credit count,
// including percentages that force rounding.
func TestPayoutAmountsSumInvariant(t *testing.T) {
	prices := []float64{10.0, 9.99, 7.77, 0.01}
	percentages := []float64{70.0, 66.67, 33.33, 85.5, 0, 100}

	for _, price := range prices {
		for _, pct := range percentages {
			for credits := 0; credits <= 500; credits++ {
				a := CalculatePayoutAmounts(credits, price, pct)
				if a.GrossCents != a.NetCents+a.FeeCents {
					t.Fatalf("credits=%d price=%v pct=%v: gross %d != net %d + fee %d",
						credits, price, pct, a.GrossCents, a.NetCents, a.FeeCents)
				}
				if a.NetCents < 0 || a.FeeCents < 0 {
					t.Fatalf("credits=%d price=%v pct=%v: negative split net=%d fee=%d",
						credits, price, pct, a.NetCents, a.FeeCents)
				}
			}
		}
	}
}

func TestPayoutAmountsRounding(t *testing.T) {
	// 3 credits at $3.33 each, 66.67% artist share:
	// gross = 9.99, net = round(6.660333) = 6.66, fee = 3.33.
	a := CalculatePayoutAmounts(3, 3.33, 66.67)
	if a.GrossCents != 999 {
		t.Errorf("gross: got %d, want 999", a.GrossCents)
	}
	if a.NetCents != 666 {
		t.Errorf("net: got %d, want 666", a.NetCents)
	}
	if a.FeeCents != 333 {
		t.Errorf("fee: got %d, want 333", a.FeeCents)
	}
}

// ---------------------------------------------------------------------------
// Availability and lifecycle
// ---------------------------------------------------------------------------

func TestAvailableCreditsSubtractsActivePayouts(t *testing.T) {
	freelancer := uuid.New()
	users := newMockUsers(user(freelancer, 100))
	credits := &mockCredits{}
	payouts := newMockPayouts()
	svc := newPayoutService(users, credits, payouts)

	ctx := context.Background()

	// 60 credits earned (timestamps in the past relative to a zero holding
	// period).
	if err := credits.CreateTx(ctx, nil, &models.CreditTransaction{
		ID: uuid.New(), UserID: freelancer,
		EntryType: models.CreditEntryTaskEarning, Credits: 60,
	}); err != nil {
		t.Fatal(err)
	}

	got, err := svc.AvailableCredits(ctx, freelancer)
	if err != nil {
		t.Fatalf("AvailableCredits: %v", err)
	}
	if got != 60 {
		t.Errorf("available: got %d, want 60", got)
	}

	// Request 40; availability drops to 20.
	if _, err := svc.RequestPayout(ctx, freelancer, 40); err != nil {
		t.Fatalf("RequestPayout: %v", err)
	}
	got, err = svc.AvailableCredits(ctx, freelancer)
	if err != nil {
		t.Fatalf("AvailableCredits: %v", err)
	}
	if got != 20 {
		t.Errorf("available after request: got %d, want 20", got)
	}
}

func TestAvailableCreditsHonorsHoldingPeriod(t *testing.T) {
	freelancer := uuid.New()
	users := newMockUsers(user(freelancer, 100))
	credits := &mockCredits{}
	payouts := newMockPayouts()
	svc := newPayoutService(users, credits, payouts)
	svc.HoldingPeriod = time.Hour // every earning below is newer than this

	if err := credits.CreateTx(context.Background(), nil, &models.CreditTransaction{
		ID: uuid.New(), UserID: freelancer,
		EntryType: models.CreditEntryTaskEarning, Credits: 60,
	}); err != nil {
		t.Fatal(err)
	}

	got, err := svc.AvailableCredits(context.Background(), freelancer)
	if err != nil {
		t.Fatalf("AvailableCredits: %v", err)
	}
	if got != 0 {
		t.Errorf("earnings inside the holding window must not be available, got %d", got)
	}

	if _, err := svc.RequestPayout(context.Background(), freelancer, 10); err != ErrHoldingPeriod {
		t.Errorf("expected ErrHoldingPeriod, got: %v", err)
	}
}

func TestRequestPayoutWritesDebitAndRow(t *testing.T) {
	freelancer := uuid.New()
	users := newMockUsers(user(freelancer, 50))
	credits := &mockCredits{}
	payouts := newMockPayouts()
	svc := newPayoutService(users, credits, payouts)

	ctx := context.Background()
	if err := credits.CreateTx(ctx, nil, &models.CreditTransaction{
		ID: uuid.New(), UserID: freelancer,
		EntryType: models.CreditEntryTaskEarning, Credits: 50,
	}); err != nil {
		t.Fatal(err)
	}

	payout, err := svc.RequestPayout(ctx, freelancer, 30)
	if err != nil {
		t.Fatalf("RequestPayout: %v", err)
	}
	if payout.Status != models.PayoutStatusRequested {
		t.Errorf("status: got %s, want requested", payout.Status)
	}
	if payout.GrossCents != payout.NetCents+payout.FeeCents {
		t.Error("payout split broken")
	}
	if got := users.balance(freelancer); got != 20 {
		t.Errorf("balance after request: got %d, want 20", got)
	}
	debits := credits.byType(models.CreditEntryPayoutDebit)
	if len(debits) != 1 || debits[0].Credits != -30 {
		t.Errorf("unexpected payout_debit entries: %+v", debits)
	}
}

// Availability is checked under the freelancer row lock. A request that
// waited on the lock while a competing request committed must see that
// payout when it recomputes, not the availability from before the wait.
func TestRequestPayoutRechecksAfterLock(t *testing.T) {
	freelancer := uuid.New()
	users := newMockUsers(user(freelancer, 100))
	credits := &mockCredits{}
	payouts := newMockPayouts()
	svc := newPayoutService(users, credits, payouts)

	ctx := context.Background()
	if err := credits.CreateTx(ctx, nil, &models.CreditTransaction{
		ID: uuid.New(), UserID: freelancer,
		EntryType: models.CreditEntryTaskEarning, Credits: 60,
	}); err != nil {
		t.Fatal(err)
	}

	// While our request holds the lock, a competing 40-credit payout has
	// already landed.
	competing := false
	users.onLock = func(uuid.UUID) {
		if competing {
			return
		}
		competing = true
		p := &models.Payout{
			ID: uuid.New(), FreelancerID: freelancer,
			Credits: 40, Status: models.PayoutStatusRequested,
		}
		payouts.payouts[p.ID] = p
	}

	if _, err := svc.RequestPayout(ctx, freelancer, 30); err != ErrHoldingPeriod {
		t.Fatalf("expected ErrHoldingPeriod after competing payout, got: %v", err)
	}
	if got := users.balance(freelancer); got != 100 {
		t.Errorf("rejected request must not move the balance: got %d, want 100", got)
	}
	if debits := credits.byType(models.CreditEntryPayoutDebit); len(debits) != 0 {
		t.Errorf("rejected request wrote debit entries: %+v", debits)
	}
}

func TestMarkFailedRestoresCredits(t *testing.T) {
	freelancer := uuid.New()
	users := newMockUsers(user(freelancer, 50))
	credits := &mockCredits{}
	payouts := newMockPayouts()
	svc := newPayoutService(users, credits, payouts)

	ctx := context.Background()
	if err := credits.CreateTx(ctx, nil, &models.CreditTransaction{
		ID: uuid.New(), UserID: freelancer,
		EntryType: models.CreditEntryTaskEarning, Credits: 50,
	}); err != nil {
		t.Fatal(err)
	}

	payout, err := svc.RequestPayout(ctx, freelancer, 30)
	if err != nil {
		t.Fatalf("RequestPayout: %v", err)
	}

	if err := svc.MarkFailed(ctx, payout.ID, "transfer declined"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if got := users.balance(freelancer); got != 50 {
		t.Errorf("balance after failed payout: got %d, want 50", got)
	}
	stored, _ := payouts.GetByID(ctx, payout.ID)
	if stored.Status != models.PayoutStatusFailed {
		t.Errorf("status: got %s, want failed", stored.Status)
	}
	if stored.FailureReason != "transfer declined" {
		t.Errorf("failure reason: got %q", stored.FailureReason)
	}

	// Failed payouts no longer count against availability.
	got, err := svc.AvailableCredits(ctx, freelancer)
	if err != nil {
		t.Fatalf("AvailableCredits: %v", err)
	}
	if got != 50 {
		t.Errorf("available after failure: got %d, want 50", got)
	}
}

// A transfer.reversed redelivery, or a worker retry racing the webhook, ends
// up calling MarkFailed on a payout that is failed already. The refund must
// happen exactly once.
func TestMarkFailedTwiceRefundsOnce(t *testing.T) {
	freelancer := uuid.New()
	users := newMockUsers(user(freelancer, 50))
	credits := &mockCredits{}
	payouts := newMockPayouts()
	svc := newPayoutService(users, credits, payouts)

	ctx := context.Background()
	if err := credits.CreateTx(ctx, nil, &models.CreditTransaction{
		ID: uuid.New(), UserID: freelancer,
		EntryType: models.CreditEntryTaskEarning, Credits: 50,
	}); err != nil {
		t.Fatal(err)
	}

	payout, err := svc.RequestPayout(ctx, freelancer, 30)
	if err != nil {
		t.Fatalf("RequestPayout: %v", err)
	}

	if err := svc.MarkFailed(ctx, payout.ID, "transfer declined"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if err := svc.MarkFailed(ctx, payout.ID, "transfer declined"); err != nil {
		t.Fatalf("second MarkFailed must be a clean no-op, got: %v", err)
	}

	if got := users.balance(freelancer); got != 50 {
		t.Errorf("balance after duplicate failure: got %d, want 50", got)
	}
	if refunds := credits.byType(models.CreditEntryPayoutRefund); len(refunds) != 1 {
		t.Errorf("payout_refund entries: got %d, want 1", len(refunds))
	}
}
