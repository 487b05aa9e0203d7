package models

import (
	"time"

	"github.com/google/uuid"
)

// Credit ledger entry types. Credits is signed: purchases, refunds and
// earnings are positive, spends and payout debits negative.
const (
	CreditEntryPurchase     = "purchase"
	CreditEntryTaskSpend    = "task_spend"
	CreditEntryTaskRefund   = "task_refund"
	CreditEntryTaskEarning  = "task_earning"
	CreditEntryPayoutDebit  = "payout_debit"
	CreditEntryPayoutRefund = "payout_refund"
)

type CreditTransaction struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"user_id"`
	TaskID        *uuid.UUID `json:"task_id,omitempty"`
	PayoutID      *uuid.UUID `json:"payout_id,omitempty"`
	EntryType     string     `json:"entry_type"`
	Credits       int        `json:"credits"`
	BalanceAfter  *int       `json:"balance_after,omitempty"`
	StripeEventID string     `json:"stripe_event_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}
